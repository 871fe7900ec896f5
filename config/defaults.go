package config

import "github.com/spf13/viper"

// Default values for every configuration key. A missing config file is not an
// error; the defaults describe a working single-user setup.
const (
	DefaultDatabasePath         = "publora.db"
	DefaultIntervalSeconds      = 60
	DefaultGracePeriodMinutes   = 30
	DefaultMaxRetries           = 3
	DefaultUploadTimeoutSeconds = 300
	DefaultSpacingHours         = 6
)

// SetDefaults registers defaults on a Viper instance
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.path", DefaultDatabasePath)
	v.SetDefault("scheduler.interval_seconds", DefaultIntervalSeconds)
	v.SetDefault("scheduler.grace_period_minutes", DefaultGracePeriodMinutes)
	v.SetDefault("scheduler.max_retries", DefaultMaxRetries)
	v.SetDefault("scheduler.upload_timeout_seconds", DefaultUploadTimeoutSeconds)
	v.SetDefault("slots.spacing_hours", DefaultSpacingHours)
}
