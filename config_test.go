package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValid(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	contents := `
server:
  port: 9000
waterfall:
  block_power: 7
  first_channel: 2
  last_channel: 40
audio:
  sample_rate: 44100
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, config.Server.Port)
	assert.Equal(t, 7, config.Waterfall.BlockPower)
	assert.Equal(t, 40, config.Waterfall.LastChannel)
	assert.Equal(t, 44100, config.Audio.SampleRate)

	// untouched keys keep their defaults
	assert.Equal(t, 512, config.Waterfall.Samples)
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"bad sample rate", func(c *Config) { c.Audio.SampleRate = 41200 }},
		{"block too small", func(c *Config) { c.Waterfall.BlockPower = 2 }},
		{"no samples", func(c *Config) { c.Waterfall.Samples = 0 }},
		{"bin out of range", func(c *Config) { c.Waterfall.LastChannel = 999 }},
		{"no text area", func(c *Config) { c.Waterfall.Rows = 0 }},
		{"mqtt without broker", func(c *Config) { c.MQTT.Enabled = true; c.MQTT.Broker = "" }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			config := DefaultConfig()
			tc.mutate(config)
			assert.Error(t, config.Validate())
		})
	}
}
