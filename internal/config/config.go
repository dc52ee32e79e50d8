// Package config holds parcelwalk's configuration surface: delays,
// timeouts, retention, and the external connection strings consumed
// by the Executor, Sweeper, and each Portal Strategy. Nothing here is
// global mutable state — a *Config is constructed once at startup and
// passed into every subsystem explicitly.
package config

import "time"

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for parcelwalkd.
type Config struct {
	RateLimit RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`
	Portal    PortalConfig    `mapstructure:"portal"     yaml:"portal"`
	Docfetch  DocfetchConfig  `mapstructure:"docfetch"   yaml:"docfetch"`
	Executor  ExecutorConfig  `mapstructure:"executor"   yaml:"executor"`
	Retention RetentionConfig `mapstructure:"retention"  yaml:"retention"`
	Queue     QueueConfig     `mapstructure:"queue"      yaml:"queue"`
	Blob      BlobConfig      `mapstructure:"blob"       yaml:"blob"`
	API       APIConfig       `mapstructure:"api"        yaml:"api"`
	Logging   LoggingConfig   `mapstructure:"logging"    yaml:"logging"`
}

// RateLimitConfig controls §4.A's per-class jittered delays and the
// periodic "thinking pause".
type RateLimitConfig struct {
	PageDelayMin     time.Duration `mapstructure:"page_delay_min"     yaml:"page_delay_min"`
	PageDelayMax     time.Duration `mapstructure:"page_delay_max"     yaml:"page_delay_max"`
	DocumentDelayMin time.Duration `mapstructure:"document_delay_min" yaml:"document_delay_min"`
	DocumentDelayMax time.Duration `mapstructure:"document_delay_max" yaml:"document_delay_max"`
	ThinkEveryN      int           `mapstructure:"think_every_n"      yaml:"think_every_n"`
	ThinkPauseMin    time.Duration `mapstructure:"think_pause_min"    yaml:"think_pause_min"`
	ThinkPauseMax    time.Duration `mapstructure:"think_pause_max"    yaml:"think_pause_max"`
}

// PortalConfig controls the Portal Strategy state machine.
type PortalConfig struct {
	SearchTimeout       time.Duration `mapstructure:"search_timeout"        yaml:"search_timeout"`
	ReadyProbeTimeout   time.Duration `mapstructure:"ready_probe_timeout"   yaml:"ready_probe_timeout"`
	MaxConsecutiveFails int           `mapstructure:"max_consecutive_fails" yaml:"max_consecutive_fails"`
	Headless            bool          `mapstructure:"headless"              yaml:"headless"`
	Stealth             bool          `mapstructure:"stealth"               yaml:"stealth"`
	// SelectorOverrides lets a specific county merge extra selectors
	// into a portal kind's base (union) selector set, per the Open
	// Question resolution in SPEC_FULL.md.
	SelectorOverrides map[string]CountySelectorOverride `mapstructure:"selector_overrides" yaml:"selector_overrides"`
}

// CountySelectorOverride adds county-specific selector candidates on
// top of a portal kind's base selector list.
type CountySelectorOverride struct {
	SearchInput []string `mapstructure:"search_input" yaml:"search_input"`
	Consent     []string `mapstructure:"consent"      yaml:"consent"`
}

// DocfetchConfig controls the Document Downloader (§4.E).
type DocfetchConfig struct {
	Timeout   time.Duration `mapstructure:"timeout"    yaml:"timeout"`
	UserAgent string        `mapstructure:"user_agent" yaml:"user_agent"`
}

// ExecutorConfig controls the Job Executor's claim loop (§4.H).
type ExecutorConfig struct {
	PollInterval          time.Duration `mapstructure:"poll_interval"           yaml:"poll_interval"`
	SpreadsheetFlushEvery int           `mapstructure:"spreadsheet_flush_every" yaml:"spreadsheet_flush_every"`
	WorkDir               string        `mapstructure:"work_dir"                yaml:"work_dir"`
	// SourceCRS is the EPSG code every supplied shapefile is assumed to
	// already be in; it is fixed by deployment, not per-job.
	SourceCRS int `mapstructure:"source_crs" yaml:"source_crs"`
}

// RetentionConfig controls the Retention Sweeper (§4.I).
type RetentionConfig struct {
	MaxAge     time.Duration `mapstructure:"max_age"     yaml:"max_age"`
	SweepEvery time.Duration `mapstructure:"sweep_every" yaml:"sweep_every"`
}

// QueueConfig controls the MongoDB-backed Queue Repository.
type QueueConfig struct {
	URI        string `mapstructure:"uri"        yaml:"uri"`
	Database   string `mapstructure:"database"   yaml:"database"`
	Collection string `mapstructure:"collection" yaml:"collection"`
}

// BlobConfig controls the S3-compatible blob store adapter.
type BlobConfig struct {
	Bucket            string `mapstructure:"bucket"             yaml:"bucket"`
	Region            string `mapstructure:"region"             yaml:"region"`
	Endpoint          string `mapstructure:"endpoint"           yaml:"endpoint"`
	UsePathStyle      bool   `mapstructure:"use_path_style"      yaml:"use_path_style"`
	PublicURLBase     string `mapstructure:"public_url_base"    yaml:"public_url_base"`
	UploadPartSize    int64  `mapstructure:"upload_part_size"   yaml:"upload_part_size"`
	UploadConcurrency int    `mapstructure:"upload_concurrency" yaml:"upload_concurrency"`
}

// APIConfig controls the thin HTTP surface.
type APIConfig struct {
	Addr           string `mapstructure:"addr"            yaml:"addr"`
	MaxIdentifiers int    `mapstructure:"max_identifiers" yaml:"max_identifiers"`
	MaxInputBytes  int64  `mapstructure:"max_input_bytes" yaml:"max_input_bytes"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	Output string `mapstructure:"output" yaml:"output"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		RateLimit: RateLimitConfig{
			PageDelayMin:     2 * time.Second,
			PageDelayMax:     5 * time.Second,
			DocumentDelayMin: 1 * time.Second,
			DocumentDelayMax: 3 * time.Second,
			ThinkEveryN:      15,
			ThinkPauseMin:    10 * time.Second,
			ThinkPauseMax:    15 * time.Second,
		},
		Portal: PortalConfig{
			SearchTimeout:       20 * time.Second,
			ReadyProbeTimeout:   30 * time.Second,
			MaxConsecutiveFails: 5,
			Headless:            true,
			Stealth:             true,
		},
		Docfetch: DocfetchConfig{
			Timeout:   45 * time.Second,
			UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		},
		Executor: ExecutorConfig{
			PollInterval:          5 * time.Second,
			SpreadsheetFlushEvery: 10,
			WorkDir:               "./work",
			SourceCRS:             4269, // NAD83 geographic, the common county shapefile delivery CRS
		},
		Retention: RetentionConfig{
			MaxAge:     30 * 24 * time.Hour,
			SweepEvery: 1 * time.Hour,
		},
		Queue: QueueConfig{
			Database:   "parcelwalk",
			Collection: "jobs",
		},
		Blob: BlobConfig{
			UploadPartSize:    8 * 1024 * 1024,
			UploadConcurrency: 4,
		},
		API: APIConfig{
			Addr:           ":8080",
			MaxIdentifiers: 1000,
			MaxInputBytes:  10 * 1024 * 1024,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}
