package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"CARTSYNC_API_URL", "CARTSYNC_TOKEN", "CARTSYNC_DB", "CARTSYNC_LOG_LEVEL", "CARTSYNC_MAX_READ_RETRIES"} {
		t.Setenv(k, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "cartsync", cfg.Name)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, "sum", cfg.Session.MergePolicy)
	assert.Equal(t, 30*24*time.Hour, cfg.GetRetention())
	assert.Equal(t, 30*time.Second, cfg.GetFreshnessTTL())
	assert.Equal(t, time.Second, cfg.GetCooldown())
	require.NoError(t, cfg.Validate())
}

func TestConfig_SaveLoad(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Remote.BaseURL = "https://shop.example.com/api"
	cfg.Session.MergePolicy = "max"
	cfg.Logging.Categories = map[string]bool{"coalesce": false}

	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://shop.example.com/api", loaded.Remote.BaseURL)
	assert.Equal(t, "max", loaded.Session.MergePolicy)
	assert.False(t, loaded.Logging.IsCategoryEnabled("coalesce"))
	assert.True(t, loaded.Logging.IsCategoryEnabled("session"))
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Remote.BaseURL, cfg.Remote.BaseURL)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("coalesce:\n  cooldown: 250ms\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, cfg.GetCooldown())
	assert.Equal(t, 30*time.Second, cfg.GetFreshnessTTL())
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("remote: [unterminated"), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config")
}

func TestDurationFallbacks(t *testing.T) {
	cfg := &Config{}
	cfg.Remote.Timeout = "soon"
	cfg.Coalesce.FreshnessTTL = "-5s"

	assert.Equal(t, 15*time.Second, cfg.GetTimeout())
	assert.Equal(t, 30*time.Second, cfg.GetFreshnessTTL())
	assert.Equal(t, 200*time.Millisecond, cfg.GetRetryMin())
	assert.Equal(t, 2*time.Second, cfg.GetRetryMax())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad url", func(c *Config) { c.Remote.BaseURL = "not a url" }, "base_url"},
		{"bad driver", func(c *Config) { c.Storage.Driver = "postgres" }, "storage driver"},
		{"bad policy", func(c *Config) { c.Session.MergePolicy = "prompt" }, "merge policy"},
		{"negative retries", func(c *Config) { c.Remote.MaxReadRetries = -1 }, "max_read_retries"},
		{"negative quota", func(c *Config) { c.Storage.QuotaBytes = -1 }, "quota_bytes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoggingOptions(t *testing.T) {
	lc := LoggingConfig{Level: "debug", Format: "json", File: "/tmp/cartsync.log"}
	opts := lc.Options()
	assert.True(t, opts.JSON)
	assert.Equal(t, []string{"/tmp/cartsync.log"}, opts.OutputPaths)

	lc = LoggingConfig{Level: "warn", Format: "console"}
	opts = lc.Options()
	assert.False(t, opts.JSON)
	assert.Empty(t, opts.OutputPaths)
}
