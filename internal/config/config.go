package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all cartsync configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Backend REST API
	Remote RemoteConfig `yaml:"remote"`

	// Local persistence for guest data
	Storage StorageConfig `yaml:"storage"`

	// Guest cart/wishlist envelopes
	Guest GuestConfig `yaml:"guest"`

	// Fetch coalescing windows
	Coalesce CoalesceConfig `yaml:"coalesce"`

	// Login-time merge
	Session SessionConfig `yaml:"session"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// RemoteConfig configures the account store client.
type RemoteConfig struct {
	BaseURL        string `yaml:"base_url"`
	Token          string `yaml:"token"`
	Timeout        string `yaml:"timeout"`
	MaxReadRetries int    `yaml:"max_read_retries"` // reads only; mutations are never retried
	RetryMin       string `yaml:"retry_min"`
	RetryMax       string `yaml:"retry_max"`
}

// StorageConfig configures the SQLite key/value store.
type StorageConfig struct {
	Driver     string `yaml:"driver"` // sqlite (pure Go) or sqlite3 (cgo)
	Path       string `yaml:"path"`
	QuotaBytes int64  `yaml:"quota_bytes"` // per namespace, 0 = unlimited
	Disabled   bool   `yaml:"disabled"`
}

// GuestConfig configures the anonymous store.
type GuestConfig struct {
	Namespace string `yaml:"namespace"`
	Retention string `yaml:"retention"`
}

// CoalesceConfig configures fetch suppression.
type CoalesceConfig struct {
	FreshnessTTL string `yaml:"freshness_ttl"`
	Cooldown     string `yaml:"cooldown"`
}

// SessionConfig configures the guest merge on login.
type SessionConfig struct {
	MergePolicy string `yaml:"merge_policy"` // sum or max
}

// Valid values for enumerated settings.
var (
	ValidDrivers       = []string{"sqlite", "sqlite3"}
	ValidMergePolicies = []string{"sum", "max"}
)

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "cartsync",
		Version: "0.3.0",

		Remote: RemoteConfig{
			BaseURL:        "http://localhost:8080/api",
			Timeout:        "15s",
			MaxReadRetries: 2,
			RetryMin:       "200ms",
			RetryMax:       "2s",
		},

		Storage: StorageConfig{
			Driver:     "sqlite",
			Path:       ".cartsync/guest.db",
			QuotaBytes: 5 * 1024 * 1024,
		},

		Guest: GuestConfig{
			Namespace: "guest",
			Retention: "720h",
		},

		Coalesce: CoalesceConfig{
			FreshnessTTL: "30s",
			Cooldown:     "1s",
		},

		Session: SessionConfig{
			MergePolicy: "sum",
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// DefaultPath returns the config location inside a workspace.
func DefaultPath(workspace string) string {
	return filepath.Join(workspace, ".cartsync", "config.yaml")
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Defaults still honour the environment
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if u := os.Getenv("CARTSYNC_API_URL"); u != "" {
		c.Remote.BaseURL = u
	}
	if tok := os.Getenv("CARTSYNC_TOKEN"); tok != "" {
		c.Remote.Token = tok
	}
	if path := os.Getenv("CARTSYNC_DB"); path != "" {
		c.Storage.Path = path
	}
	if lvl := os.Getenv("CARTSYNC_LOG_LEVEL"); lvl != "" {
		c.Logging.Level = lvl
	}
	if n := os.Getenv("CARTSYNC_MAX_READ_RETRIES"); n != "" {
		if v, err := strconv.Atoi(n); err == nil && v >= 0 {
			c.Remote.MaxReadRetries = v
		}
	}
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}

// GetTimeout returns the HTTP timeout as a duration.
func (c *Config) GetTimeout() time.Duration {
	return parseDuration(c.Remote.Timeout, 15*time.Second)
}

// GetRetryMin returns the first read-retry delay.
func (c *Config) GetRetryMin() time.Duration {
	return parseDuration(c.Remote.RetryMin, 200*time.Millisecond)
}

// GetRetryMax returns the read-retry delay ceiling.
func (c *Config) GetRetryMax() time.Duration {
	return parseDuration(c.Remote.RetryMax, 2*time.Second)
}

// GetRetention returns how long guest envelopes stay valid.
func (c *Config) GetRetention() time.Duration {
	return parseDuration(c.Guest.Retention, 30*24*time.Hour)
}

// GetFreshnessTTL returns the fetch freshness window.
func (c *Config) GetFreshnessTTL() time.Duration {
	return parseDuration(c.Coalesce.FreshnessTTL, 30*time.Second)
}

// GetCooldown returns the minimum gap between fetch attempts.
func (c *Config) GetCooldown() time.Duration {
	return parseDuration(c.Coalesce.Cooldown, time.Second)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Remote.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid remote base_url: %q", c.Remote.BaseURL)
	}
	if c.Remote.MaxReadRetries < 0 {
		return fmt.Errorf("max_read_retries must be >= 0, got %d", c.Remote.MaxReadRetries)
	}
	if !contains(ValidDrivers, c.Storage.Driver) {
		return fmt.Errorf("invalid storage driver: %s (valid: %v)", c.Storage.Driver, ValidDrivers)
	}
	if c.Storage.QuotaBytes < 0 {
		return fmt.Errorf("quota_bytes must be >= 0, got %d", c.Storage.QuotaBytes)
	}
	if !contains(ValidMergePolicies, c.Session.MergePolicy) {
		return fmt.Errorf("invalid merge policy: %s (valid: %v)", c.Session.MergePolicy, ValidMergePolicies)
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
