// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker   string `mapstructure:"mqtt_broker"`
	MQTTClientID string `mapstructure:"mqtt_client_id"`

	// Topics
	TopicReading    string `mapstructure:"topic_reading"`
	TopicDeltaAngle string `mapstructure:"topic_delta_angle"`
	TopicFIFO       string `mapstructure:"topic_fifo"`
	TopicStatus     string `mapstructure:"topic_status"`

	// Sensor identity and calibration
	DeviceID           uint32  `mapstructure:"device_id"`
	Rotation           int     `mapstructure:"rotation"`
	Scale              float64 `mapstructure:"scale"`            // counts → rad/s
	FullScaleRange     float64 `mapstructure:"full_scale_range"` // rad/s
	SampleRate         uint16  `mapstructure:"sample_rate"`      // Hz
	IntegratorWindowUs int64   `mapstructure:"integrator_window_us"`
	OffsetX            float64 `mapstructure:"offset_x"` // rad/s
	OffsetY            float64 `mapstructure:"offset_y"`
	OffsetZ            float64 `mapstructure:"offset_z"`

	// SPI FIFO source
	SPIDevice string `mapstructure:"spi_device"`
	// Gyro full scale code: 0=±250°/s, 1=±500°/s, 2=±1000°/s, 3=±2000°/s
	GyroRangeCode int `mapstructure:"gyro_range_code"`
	// Digital low pass filter configuration (0-7)
	DLPFConfig int `mapstructure:"dlpf_config"`
	// Sample rate divider: output rate = internal rate / (1 + div)
	SampleRateDiv int `mapstructure:"sample_rate_div"`
	// FIFO drain interval in milliseconds
	DrainInterval int `mapstructure:"drain_interval"`

	// Serial source
	SerialPort string `mapstructure:"serial_port"`
	SerialBaud uint   `mapstructure:"serial_baud"`

	// Simulated source
	SimAmplitude float64 `mapstructure:"sim_amplitude"` // raw counts
	SimFrequency float64 `mapstructure:"sim_frequency"` // Hz

	// Web server
	WebServerPort int `mapstructure:"web_server_port"`

	// Display
	DisplayI2CAddr        uint16 `mapstructure:"display_i2c_addr"`
	DisplayUpdateInterval int    `mapstructure:"display_update_interval"` // ms

	LogLevel string `mapstructure:"log_level"`
}

// Load reads the configuration file at path and returns a Config with
// defaults applied. An empty path skips the file and returns defaults.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("mqtt_broker", "tcp://localhost:1883")
	v.SetDefault("mqtt_client_id", "gyro-pipeline")
	v.SetDefault("topic_reading", "gyro/reading")
	v.SetDefault("topic_delta_angle", "gyro/delta_angle")
	v.SetDefault("topic_fifo", "gyro/fifo")
	v.SetDefault("topic_status", "gyro/status")
	v.SetDefault("device_id", 1)
	v.SetDefault("rotation", 0)
	v.SetDefault("scale", 0.0010653) // ±2000°/s over int16, rad/s per count
	v.SetDefault("full_scale_range", 34.9)
	v.SetDefault("sample_rate", 1000)
	v.SetDefault("integrator_window_us", 4000)
	v.SetDefault("spi_device", "/dev/spidev0.0")
	v.SetDefault("gyro_range_code", 3)
	v.SetDefault("dlpf_config", 0)
	v.SetDefault("sample_rate_div", 0)
	v.SetDefault("drain_interval", 10)
	v.SetDefault("serial_port", "/dev/serial0")
	v.SetDefault("serial_baud", 115200)
	v.SetDefault("sim_amplitude", 2000)
	v.SetDefault("sim_frequency", 10)
	v.SetDefault("web_server_port", 8080)
	v.SetDefault("display_i2c_addr", 0x3C)
	v.SetDefault("display_update_interval", 250)
	v.SetDefault("log_level", "info")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate checks the fields that have no workable zero value.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("mqtt_broker is required")
	}
	if c.SampleRate == 0 {
		return fmt.Errorf("sample_rate must be positive")
	}
	if c.GyroRangeCode < 0 || c.GyroRangeCode > 3 {
		return fmt.Errorf("gyro_range_code must be 0-3 (0=±250°/s ... 3=±2000°/s), got %d", c.GyroRangeCode)
	}
	if c.DLPFConfig < 0 || c.DLPFConfig > 7 {
		return fmt.Errorf("dlpf_config must be 0-7, got %d", c.DLPFConfig)
	}
	if c.SampleRateDiv < 0 || c.SampleRateDiv > 255 {
		return fmt.Errorf("sample_rate_div must be 0-255, got %d", c.SampleRateDiv)
	}
	if c.DrainInterval <= 0 {
		return fmt.Errorf("drain_interval must be positive")
	}
	return nil
}
