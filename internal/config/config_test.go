package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripwatch/tripwatch/internal/config"
)

func TestLoad(t *testing.T) {
	tempDir := t.TempDir()

	configContent := []byte(`
speed_threshold_mph = 8.0
speed_detection_duration = "20s"
auto_stop_duration = "10m"
max_step_meters = 500.0
max_plausible_speed = 100.0
window_size = 8
diag_interval = "30s"
diag_capacity = 120
trips = true
database = "/path/to/trips.db"
source = "/dev/ttyUSB0"
log_level = "debug"
`)
	configPath := filepath.Join(tempDir, "tripwatch.toml")
	err := os.WriteFile(configPath, configContent, 0o600)
	require.NoError(t, err)

	t.Setenv("TRIPWATCH_CONFIG", configPath)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.InDelta(t, 8.0, cfg.SpeedThresholdMPH, 1e-9)
	assert.Equal(t, 20*time.Second, cfg.SpeedDetectionDuration)
	assert.Equal(t, 10*time.Minute, cfg.AutoStopDuration)
	assert.InDelta(t, 500.0, cfg.MaxStepMeters, 1e-9)
	assert.InDelta(t, 100.0, cfg.MaxPlausibleSpeed, 1e-9)
	assert.Equal(t, 8, cfg.WindowSize)
	assert.Equal(t, 30*time.Second, cfg.DiagInterval)
	assert.Equal(t, 120, cfg.DiagCapacity)
	assert.True(t, cfg.Trips)
	assert.Equal(t, "/path/to/trips.db", cfg.TripsDB)
	assert.Equal(t, "/dev/ttyUSB0", cfg.Source)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TRIPWATCH_CONFIG", filepath.Join(t.TempDir(), "missing.toml"))

	cfg, err := config.Load()
	require.NoError(t, err, "Failed to load config")

	assert.InDelta(t, 5.0, cfg.SpeedThresholdMPH, 1e-9)
	assert.Equal(t, 15*time.Second, cfg.SpeedDetectionDuration)
	assert.Equal(t, 30*time.Minute, cfg.AutoStopDuration)
	assert.InDelta(t, 1000.0, cfg.MaxStepMeters, 1e-9)
	assert.InDelta(t, 200.0, cfg.MaxPlausibleSpeed, 1e-9)
	assert.Equal(t, 5, cfg.WindowSize)
	assert.Equal(t, 20*time.Second, cfg.DiagInterval)
	assert.Equal(t, 60, cfg.DiagCapacity)
	assert.False(t, cfg.Trips)
	assert.Equal(t, "-", cfg.Source)
	assert.Equal(t, config.DefaultLogLevel, cfg.LogLevel)
}

func TestInvalidLogLevel(t *testing.T) {
	tempDir := t.TempDir()

	configContent := []byte(`
log_level = "invalid"
`)
	configPath := filepath.Join(tempDir, "tripwatch.toml")
	err := os.WriteFile(configPath, configContent, 0o600)
	require.NoError(t, err)

	t.Setenv("TRIPWATCH_CONFIG", configPath)

	_, err = config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid log level")
}

func TestValidateRejectsBadWindow(t *testing.T) {
	tempDir := t.TempDir()

	configContent := []byte(`
window_size = 1
`)
	configPath := filepath.Join(tempDir, "tripwatch.toml")
	err := os.WriteFile(configPath, configContent, 0o600)
	require.NoError(t, err)

	t.Setenv("TRIPWATCH_CONFIG", configPath)

	_, err = config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "window_size")
}

func TestLogLevelFlag(t *testing.T) {
	// Save original args and restore after test
	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()

	os.Args = []string{"cmd", "--log-level", "debug"}
	t.Setenv("TRIPWATCH_CONFIG", filepath.Join(t.TempDir(), "missing.toml"))

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel, "Expected LogLevel to be set by flag")
}

func TestValidateRejectsZeroDurations(t *testing.T) {
	tempDir := t.TempDir()

	configContent := []byte(`
auto_stop_duration = "0s"
`)
	configPath := filepath.Join(tempDir, "tripwatch.toml")
	err := os.WriteFile(configPath, configContent, 0o600)
	require.NoError(t, err)

	t.Setenv("TRIPWATCH_CONFIG", configPath)

	_, err = config.Load()
	require.Error(t, err)
}
