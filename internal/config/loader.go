package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from file and environment.
// Priority (highest to lowest): env vars > config file > defaults.
// No command-line flags are bound into the configuration.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v, cfg)

	v.SetEnvPrefix("PARCELWALK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("parcelwalk")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".parcelwalk"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	return Load(path)
}

// setDefaults registers default values in viper.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("rate_limit.page_delay_min", cfg.RateLimit.PageDelayMin)
	v.SetDefault("rate_limit.page_delay_max", cfg.RateLimit.PageDelayMax)
	v.SetDefault("rate_limit.document_delay_min", cfg.RateLimit.DocumentDelayMin)
	v.SetDefault("rate_limit.document_delay_max", cfg.RateLimit.DocumentDelayMax)
	v.SetDefault("rate_limit.think_every_n", cfg.RateLimit.ThinkEveryN)
	v.SetDefault("rate_limit.think_pause_min", cfg.RateLimit.ThinkPauseMin)
	v.SetDefault("rate_limit.think_pause_max", cfg.RateLimit.ThinkPauseMax)

	v.SetDefault("portal.search_timeout", cfg.Portal.SearchTimeout)
	v.SetDefault("portal.ready_probe_timeout", cfg.Portal.ReadyProbeTimeout)
	v.SetDefault("portal.max_consecutive_fails", cfg.Portal.MaxConsecutiveFails)
	v.SetDefault("portal.headless", cfg.Portal.Headless)
	v.SetDefault("portal.stealth", cfg.Portal.Stealth)

	v.SetDefault("docfetch.timeout", cfg.Docfetch.Timeout)
	v.SetDefault("docfetch.user_agent", cfg.Docfetch.UserAgent)

	v.SetDefault("executor.poll_interval", cfg.Executor.PollInterval)
	v.SetDefault("executor.spreadsheet_flush_every", cfg.Executor.SpreadsheetFlushEvery)
	v.SetDefault("executor.work_dir", cfg.Executor.WorkDir)
	v.SetDefault("executor.source_crs", cfg.Executor.SourceCRS)

	v.SetDefault("retention.max_age", cfg.Retention.MaxAge)
	v.SetDefault("retention.sweep_every", cfg.Retention.SweepEvery)

	v.SetDefault("queue.database", cfg.Queue.Database)
	v.SetDefault("queue.collection", cfg.Queue.Collection)

	v.SetDefault("blob.upload_part_size", cfg.Blob.UploadPartSize)
	v.SetDefault("blob.upload_concurrency", cfg.Blob.UploadConcurrency)

	v.SetDefault("api.addr", cfg.API.Addr)
	v.SetDefault("api.max_identifiers", cfg.API.MaxIdentifiers)
	v.SetDefault("api.max_input_bytes", cfg.API.MaxInputBytes)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("logging.output", cfg.Logging.Output)
}
