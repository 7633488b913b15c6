// Package model defines docket's configuration, request records, statuses
// and the error kinds shared across the request lifecycle.
package model

type Config struct {
	Paths   PathsConfig   `yaml:"paths"`
	Notion  NotionConfig  `yaml:"notion"`
	Engine  EngineConfig  `yaml:"engine"`
	Watch   WatchConfig   `yaml:"watch"`
	Logging LoggingConfig `yaml:"logging"`
}

// PathsConfig locations are relative to the directory holding docket.yaml
// unless absolute.
type PathsConfig struct {
	RequestsDir  string `yaml:"requests_dir"`
	TemplatesDir string `yaml:"templates_dir"`
	TargetsFile  string `yaml:"targets_file"`
	LogsDir      string `yaml:"logs_dir"`
}

type NotionConfig struct {
	BaseURL    string `yaml:"base_url"`
	Version    string `yaml:"version"`
	TokenEnv   string `yaml:"token_env"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

type EngineConfig struct {
	DispatchTimeoutSec int   `yaml:"dispatch_timeout_sec"` // 0 disables the per-record deadline
	Lock               *bool `yaml:"lock"`                 // nil means enabled
	JournalMaxBytes    int64 `yaml:"journal_max_bytes"`
}

type WatchConfig struct {
	DebounceSec     float64 `yaml:"debounce_sec"`
	ScanIntervalSec int     `yaml:"scan_interval_sec"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// LockEnabled reports whether passes take the store lock.
func (c EngineConfig) LockEnabled() bool {
	return c.Lock == nil || *c.Lock
}
