package config

import (
	"fmt"
	"time"
)

// Validate checks the configuration for invalid values before the
// daemon starts.
func Validate(cfg *Config) error {
	if cfg.RateLimit.PageDelayMin < 0 || cfg.RateLimit.PageDelayMax < cfg.RateLimit.PageDelayMin {
		return fmt.Errorf("rate_limit.page_delay range is invalid")
	}
	if cfg.RateLimit.DocumentDelayMin < 0 || cfg.RateLimit.DocumentDelayMax < cfg.RateLimit.DocumentDelayMin {
		return fmt.Errorf("rate_limit.document_delay range is invalid")
	}
	if cfg.RateLimit.ThinkEveryN < 0 {
		return fmt.Errorf("rate_limit.think_every_n must be >= 0")
	}

	if cfg.Portal.SearchTimeout <= 0 {
		return fmt.Errorf("portal.search_timeout must be > 0")
	}
	if cfg.Portal.ReadyProbeTimeout <= 0 {
		return fmt.Errorf("portal.ready_probe_timeout must be > 0")
	}
	if cfg.Portal.MaxConsecutiveFails < 1 {
		return fmt.Errorf("portal.max_consecutive_fails must be >= 1")
	}

	if cfg.Docfetch.Timeout < 45*time.Second { // spec.md §5: per-document HTTP timeout >= 45s
		return fmt.Errorf("docfetch.timeout must be >= 45s")
	}

	if cfg.Executor.PollInterval <= 0 {
		return fmt.Errorf("executor.poll_interval must be > 0")
	}
	if cfg.Executor.SpreadsheetFlushEvery < 1 {
		return fmt.Errorf("executor.spreadsheet_flush_every must be >= 1")
	}
	if cfg.Executor.WorkDir == "" {
		return fmt.Errorf("executor.work_dir must be set")
	}
	if cfg.Executor.SourceCRS <= 0 {
		return fmt.Errorf("executor.source_crs must be a positive EPSG code")
	}

	if cfg.Retention.MaxAge <= 0 {
		return fmt.Errorf("retention.max_age must be > 0")
	}
	if cfg.Retention.SweepEvery <= 0 {
		return fmt.Errorf("retention.sweep_every must be > 0")
	}

	if cfg.Queue.Database == "" || cfg.Queue.Collection == "" {
		return fmt.Errorf("queue.database and queue.collection must be set")
	}

	if cfg.API.MaxIdentifiers < 1 {
		return fmt.Errorf("api.max_identifiers must be >= 1")
	}
	if cfg.API.MaxInputBytes <= 0 {
		return fmt.Errorf("api.max_input_bytes must be > 0")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	return nil
}
