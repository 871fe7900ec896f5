// Package config loads Publora configuration from TOML files and the
// environment via Viper.
package config

// Config is the root Publora configuration
type Config struct {
	Database  DatabaseConfig            `mapstructure:"database"`
	Scheduler SchedulerConfig           `mapstructure:"scheduler"`
	Slots     SlotsConfig               `mapstructure:"slots"`
	Platforms map[string]PlatformConfig `mapstructure:"platforms"`
}

// DatabaseConfig controls SQLite persistence
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// SchedulerConfig controls the publish loop
type SchedulerConfig struct {
	IntervalSeconds      int `mapstructure:"interval_seconds"`
	GracePeriodMinutes   int `mapstructure:"grace_period_minutes"`
	MaxRetries           int `mapstructure:"max_retries"`
	UploadTimeoutSeconds int `mapstructure:"upload_timeout_seconds"`
}

// SlotsConfig controls auto-allocation of publish times
type SlotsConfig struct {
	SpacingHours int `mapstructure:"spacing_hours"`
}

// PlatformConfig describes one destination platform
type PlatformConfig struct {
	Endpoint      string `mapstructure:"endpoint"`
	TokenFile     string `mapstructure:"token_file"`
	RatePerMinute int    `mapstructure:"rate_per_minute"`
}
