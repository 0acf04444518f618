package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)

	def := Default()
	assert.Equal(t, def.SampleCount, cfg.SampleCount)
	assert.Equal(t, def.SampleRateHz, cfg.SampleRateHz)
	assert.Equal(t, def.FilterCutoffHz, cfg.FilterCutoffHz)
	assert.Equal(t, def.Sensitivity, cfg.Sensitivity)
	assert.False(t, cfg.SendTimeDomain)
}

func TestLoadPartialFileFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
operation_id: TESTOP1
sample_count: 1024
influx:
  url: http://influx.local:8086
  token: secret
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "TESTOP1", cfg.OperationID)
	assert.Equal(t, 1024, cfg.SampleCount)
	assert.Equal(t, "http://influx.local:8086", cfg.Influx.URL)
	assert.True(t, cfg.IsInfluxConfigured())

	// Unset fields fall back to defaults.
	assert.Equal(t, Default().SampleRateHz, cfg.SampleRateHz)
	assert.Equal(t, Default().Trigger.DebounceMS, cfg.Trigger.DebounceMS)
	assert.Equal(t, DefaultAPPrefix, cfg.WiFi.APPrefix)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := Default()
	cfg.WiFi.SSID = "factory-net"
	cfg.SampleCount = 2048
	cfg.SendTimeDomain = true
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "factory-net", loaded.WiFi.SSID)
	assert.Equal(t, 2048, loaded.SampleCount)
	assert.True(t, loaded.SendTimeDomain)
	assert.True(t, loaded.IsWiFiConfigured())
}

func TestValidateBounds(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{name: "defaults are valid", mutate: func(c *Config) {}, ok: true},
		{name: "sample count too large", mutate: func(c *Config) { c.SampleCount = MaxSampleCount + 1 }, ok: false},
		{name: "sample count at max", mutate: func(c *Config) { c.SampleCount = MaxSampleCount }, ok: true},
		{name: "zero sample rate", mutate: func(c *Config) { c.SampleRateHz = 0 }, ok: false},
		{name: "negative cutoff", mutate: func(c *Config) { c.FilterCutoffHz = -1 }, ok: false},
		{name: "sensitivity out of range", mutate: func(c *Config) { c.Sensitivity = 4 }, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
