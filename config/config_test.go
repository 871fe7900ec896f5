package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultDatabasePath, cfg.Database.Path)
	assert.Equal(t, DefaultIntervalSeconds, cfg.Scheduler.IntervalSeconds)
	assert.Equal(t, DefaultGracePeriodMinutes, cfg.Scheduler.GracePeriodMinutes)
	assert.Equal(t, DefaultMaxRetries, cfg.Scheduler.MaxRetries)
	assert.Equal(t, DefaultUploadTimeoutSeconds, cfg.Scheduler.UploadTimeoutSeconds)
	assert.Equal(t, DefaultSpacingHours, cfg.Slots.SpacingHours)
}

func TestLoadEnvOverride(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	t.Setenv("PUBLORA_DATABASE_PATH", "/tmp/override.db")
	t.Setenv("PUBLORA_SCHEDULER_MAX_RETRIES", "5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/override.db", cfg.Database.Path)
	assert.Equal(t, 5, cfg.Scheduler.MaxRetries)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "publora.toml")
	content := `
[database]
path = "/data/publora.db"

[scheduler]
interval_seconds = 15

[slots]
spacing_hours = 2

[platforms.youtube]
endpoint = "https://hooks.example/youtube"
token_file = "/secrets/yt.token"
rate_per_minute = 4
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "/data/publora.db", cfg.Database.Path)
	assert.Equal(t, 15, cfg.Scheduler.IntervalSeconds)
	// Unset keys keep their defaults
	assert.Equal(t, DefaultMaxRetries, cfg.Scheduler.MaxRetries)
	assert.Equal(t, 2, cfg.Slots.SpacingHours)

	yt, ok := cfg.Platforms["youtube"]
	require.True(t, ok)
	assert.Equal(t, "https://hooks.example/youtube", yt.Endpoint)
	assert.Equal(t, "/secrets/yt.token", yt.TokenFile)
	assert.Equal(t, 4, yt.RatePerMinute)
}

func TestLoadFromFileMissing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestGetDatabasePathEnvOverride(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	t.Setenv("DB_PATH", "/tmp/dev.db")

	path, err := GetDatabasePath()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/dev.db", path)
}
