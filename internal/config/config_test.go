package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/gyro_pipeline/internal/config"
)

func TestLoad(t *testing.T) {
	tempDir := t.TempDir()

	configContent := []byte(`
mqtt_broker = "tcp://broker:1883"
device_id = 42
rotation = 2
scale = 0.01
full_scale_range = 8.7
sample_rate = 2000
integrator_window_us = 8000
gyro_range_code = 1
drain_interval = 5
log_level = "debug"
`)
	configPath := filepath.Join(tempDir, "gyro_pipeline.toml")
	err := os.WriteFile(configPath, configContent, 0o600)
	require.NoError(t, err)

	cfg, err := config.Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "tcp://broker:1883", cfg.MQTTBroker)
	assert.Equal(t, uint32(42), cfg.DeviceID)
	assert.Equal(t, 2, cfg.Rotation)
	assert.Equal(t, 0.01, cfg.Scale)
	assert.Equal(t, 8.7, cfg.FullScaleRange)
	assert.Equal(t, uint16(2000), cfg.SampleRate)
	assert.Equal(t, int64(8000), cfg.IntegratorWindowUs)
	assert.Equal(t, 1, cfg.GyroRangeCode)
	assert.Equal(t, 5, cfg.DrainInterval)
	assert.Equal(t, "debug", cfg.LogLevel)

	// Keys not in the file fall back to defaults.
	assert.Equal(t, "gyro/reading", cfg.TopicReading)
	assert.Equal(t, "gyro/status", cfg.TopicStatus)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "tcp://localhost:1883", cfg.MQTTBroker)
	assert.Equal(t, uint16(1000), cfg.SampleRate)
	assert.Equal(t, int64(4000), cfg.IntegratorWindowUs)
	assert.Equal(t, 3, cfg.GyroRangeCode)
	assert.Equal(t, 10, cfg.DrainInterval)
}

func TestLoadRejectsBadValues(t *testing.T) {
	tempDir := t.TempDir()

	configContent := []byte(`
gyro_range_code = 9
`)
	configPath := filepath.Join(tempDir, "gyro_pipeline.toml")
	err := os.WriteFile(configPath, configContent, 0o600)
	require.NoError(t, err)

	_, err = config.Load(configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gyro_range_code")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load("/nonexistent/gyro_pipeline.toml")
	require.Error(t, err)
}
