// Package config handles application configuration
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed config.sample.yaml
var sampleConfig string

// GetSampleConfig returns the embedded sample configuration content
func GetSampleConfig() string {
	return sampleConfig
}

// Store kinds for cache.store
const (
	StoreFile   = "file"
	StoreSQLite = "sqlite"
)

// Defaults applied to unset fields
const (
	DefaultBaseURL = "https://www.ourgroceries.com"
	DefaultTimeout = "30s"
	DefaultTTL     = "10m"
	DefaultListen  = "127.0.0.1:8088"
	DefaultList    = "Shopping List"
)

// ServiceConfig holds list service settings
type ServiceConfig struct {
	BaseURL string `yaml:"base_url"`
	Timeout string `yaml:"timeout"`
}

// CacheConfig holds snapshot cache settings
type CacheConfig struct {
	Dir   string `yaml:"dir"`
	TTL   string `yaml:"ttl"`
	Store string `yaml:"store"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Verbose           bool  `yaml:"verbose"`
	BackgroundEnabled *bool `yaml:"background_enabled"` // default: true
}

// WebhookConfig holds settings of 'grocat serve'
type WebhookConfig struct {
	Listen string `yaml:"listen"`
}

// Config represents the application configuration
type Config struct {
	Username    string        `yaml:"username"`
	DefaultList string        `yaml:"default_list"`
	Service     ServiceConfig `yaml:"service"`
	Cache       CacheConfig   `yaml:"cache"`
	Logging     LoggingConfig `yaml:"logging"`
	Webhook     WebhookConfig `yaml:"webhook"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.DefaultList == "" {
		c.DefaultList = DefaultList
	}
	if c.Service.BaseURL == "" {
		c.Service.BaseURL = DefaultBaseURL
	}
	if c.Service.Timeout == "" {
		c.Service.Timeout = DefaultTimeout
	}
	if c.Cache.Dir == "" {
		c.Cache.Dir = GetCacheDir()
	}
	if c.Cache.TTL == "" {
		c.Cache.TTL = DefaultTTL
	}
	if c.Cache.Store == "" {
		c.Cache.Store = StoreFile
	}
	if c.Webhook.Listen == "" {
		c.Webhook.Listen = DefaultListen
	}
}

// Load loads configuration from the specified path, or the default XDG path if empty.
// If the config file doesn't exist, it is created from the sample.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = filepath.Join(GetConfigDir(), "config.yaml")
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := writeSample(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration and fills unset fields with defaults.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid YAML in config file: %w", err)
	}
	cfg.Cache.Dir = ExpandPath(cfg.Cache.Dir)
	cfg.applyDefaults()
	return cfg, nil
}

// writeSample writes the embedded sample configuration to path
func writeSample(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Cache.Store != StoreFile && c.Cache.Store != StoreSQLite {
		return fmt.Errorf("invalid cache.store: %q (must be 'file' or 'sqlite')", c.Cache.Store)
	}

	ttl, err := time.ParseDuration(c.Cache.TTL)
	if err != nil {
		return fmt.Errorf("invalid duration for cache.ttl: %q", c.Cache.TTL)
	}
	if ttl <= 0 {
		return fmt.Errorf("cache.ttl must be positive, got %q", c.Cache.TTL)
	}

	timeout, err := time.ParseDuration(c.Service.Timeout)
	if err != nil {
		return fmt.Errorf("invalid duration for service.timeout: %q", c.Service.Timeout)
	}
	if timeout <= 0 {
		return fmt.Errorf("service.timeout must be positive, got %q", c.Service.Timeout)
	}

	if !strings.HasPrefix(c.Service.BaseURL, "http://") && !strings.HasPrefix(c.Service.BaseURL, "https://") {
		return fmt.Errorf("invalid service.base_url: %q", c.Service.BaseURL)
	}

	if _, _, err := net.SplitHostPort(c.Webhook.Listen); err != nil {
		return fmt.Errorf("invalid webhook.listen: %q", c.Webhook.Listen)
	}

	if strings.TrimSpace(c.DefaultList) == "" {
		return errors.New("default_list must not be empty")
	}
	return nil
}

// ApplyFlags applies CLI flag overrides to the configuration
func (c *Config) ApplyFlags(verbose bool, username string) {
	if verbose {
		c.Logging.Verbose = true
	}
	if username != "" {
		c.Username = username
	}
}

// IsBackgroundLoggingEnabled returns true if background logging is enabled.
// Returns true (default) if not configured.
func (c *Config) IsBackgroundLoggingEnabled() bool {
	if c.Logging.BackgroundEnabled == nil {
		return true
	}
	return *c.Logging.BackgroundEnabled
}

// GetCacheTTLDuration returns cache.ttl, or 10 minutes when it does not parse.
func (c *Config) GetCacheTTLDuration() time.Duration {
	d, err := time.ParseDuration(c.Cache.TTL)
	if err != nil || d <= 0 {
		return 10 * time.Minute
	}
	return d
}

// GetTimeoutDuration returns service.timeout, or 30 seconds when it does not parse.
func (c *Config) GetTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.Service.Timeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// GetSQLitePath returns the database file used when cache.store is sqlite
func (c *Config) GetSQLitePath() string {
	return filepath.Join(c.Cache.Dir, "snapshots.db")
}

// getXDGDir returns a directory path following the XDG Base Directory layout.
// envVar is the XDG environment variable (e.g., "XDG_CONFIG_HOME").
// fallbackPath is the relative path from home (e.g., ".config").
func getXDGDir(envVar, fallbackPath string) string {
	if xdgDir := os.Getenv(envVar); xdgDir != "" {
		return filepath.Join(xdgDir, "grocat")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", fallbackPath, "grocat")
	}
	return filepath.Join(home, fallbackPath, "grocat")
}

// GetConfigDir returns the configuration directory following the XDG Base Directory layout
func GetConfigDir() string {
	return getXDGDir("XDG_CONFIG_HOME", ".config")
}

// GetCacheDir returns the cache directory following the XDG Base Directory layout
func GetCacheDir() string {
	return getXDGDir("XDG_CACHE_HOME", ".cache")
}

// ExpandPath expands ~ and environment variables in a path
func ExpandPath(path string) string {
	if path == "" {
		return path
	}
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	return os.ExpandEnv(path)
}
