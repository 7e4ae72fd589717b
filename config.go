package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the application configuration. The signal path itself is
// configured here once at startup; the small key/value settings store
// (config_store.go) holds only what survives between runs.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Audio      AudioConfig      `yaml:"audio"`
	Waterfall  WaterfallConfig  `yaml:"waterfall"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	Prometheus PrometheusConfig `yaml:"prometheus"`
	TextLog    TextLogConfig    `yaml:"text_log"`
	Settings   SettingsConfig   `yaml:"settings"`
}

// ServerConfig contains the HTTP listener settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// AudioConfig describes the RTP PCM ingress.
type AudioConfig struct {
	// Multicast group (or unicast address) the capture side sends to.
	ListenAddress string `yaml:"listen_address"`
	Interface     string `yaml:"interface"`
	SampleRate    int    `yaml:"sample_rate"`
}

// WaterfallConfig fixes the analyser geometry.
type WaterfallConfig struct {
	BlockPower   int `yaml:"block_power"` // log2 of the analyser block size
	Samples      int `yaml:"samples"`     // colour ring depth per sub-channel
	FirstChannel int `yaml:"first_channel"`
	LastChannel  int `yaml:"last_channel"`
	Rows         int `yaml:"rows"`
	Cols         int `yaml:"cols"`

	SyncIntervalMs int `yaml:"sync_interval_ms"`
}

// MQTTConfig contains MQTT publishing settings.
type MQTTConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Broker          string        `yaml:"broker"`
	Username        string        `yaml:"username"`
	Password        string        `yaml:"password"`
	TopicPrefix     string        `yaml:"topic_prefix"`
	MetricsInterval int           `yaml:"metrics_interval_secs"`
	TLS             MQTTTLSConfig `yaml:"tls"`
}

// MQTTTLSConfig contains optional TLS settings for the MQTT broker.
type MQTTTLSConfig struct {
	Enabled    bool   `yaml:"enabled"`
	CACert     string `yaml:"ca_cert"`
	ClientCert string `yaml:"client_cert"`
	ClientKey  string `yaml:"client_key"`
}

// PrometheusConfig enables the /metrics endpoint.
type PrometheusConfig struct {
	Enabled bool `yaml:"enabled"`
}

// TextLogConfig controls the compressed decoded-text log.
type TextLogConfig struct {
	Enabled bool   `yaml:"enabled"`
	DataDir string `yaml:"data_dir"`
}

// SettingsConfig locates the persistent key/value store.
type SettingsConfig struct {
	Path string `yaml:"path"`
}

// DefaultConfig returns a runnable configuration: 64-sample blocks at
// the internal rate, two dozen CW sub-channels, a modest text area
// each.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8073},
		Audio: AudioConfig{
			ListenAddress: "239.1.2.3:5004",
			SampleRate:    8000,
		},
		Waterfall: WaterfallConfig{
			BlockPower:     6,
			Samples:        512,
			FirstChannel:   4,
			LastChannel:    27,
			Rows:           8,
			Cols:           64,
			SyncIntervalMs: 250,
		},
		MQTT: MQTTConfig{
			TopicPrefix:     "morserator",
			MetricsInterval: 60,
		},
		Prometheus: PrometheusConfig{Enabled: true},
		TextLog:    TextLogConfig{DataDir: "./data/decodes"},
		Settings:   SettingsConfig{Path: "morserator.conf"},
	}
}

// LoadConfig reads the YAML configuration file over the defaults.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate rejects geometry the waterfall cannot be built from.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}

	switch c.Audio.SampleRate {
	case 8000, 16000, 32000, 44100:
	default:
		return fmt.Errorf("unsupported audio sample rate %d", c.Audio.SampleRate)
	}

	wf := c.Waterfall
	if wf.BlockPower <= 2 {
		return fmt.Errorf("waterfall block_power %d is too small", wf.BlockPower)
	}
	if wf.Samples <= 0 {
		return fmt.Errorf("waterfall samples must be positive")
	}
	if wf.FirstChannel < 0 || wf.LastChannel >= 1<<(wf.BlockPower-1) {
		return fmt.Errorf("waterfall channels %d..%d out of range for block_power %d",
			wf.FirstChannel, wf.LastChannel, wf.BlockPower)
	}
	if wf.Rows <= 0 || wf.Cols <= 0 {
		return fmt.Errorf("invalid waterfall text geometry %dx%d", wf.Rows, wf.Cols)
	}
	if wf.SyncIntervalMs <= 0 {
		return fmt.Errorf("sync_interval_ms must be positive")
	}

	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt enabled without a broker")
	}

	return nil
}
