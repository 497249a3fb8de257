// Package config provides configuration loading and management for the gateway server.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment variables consumed by the gateway.
const EnvPrefix = "MGW"

const (
	defaultRateLimitMax    = 200
	defaultRateLimitWindow = 24 * time.Hour

	defaultFetchTimeout      = 30 * time.Second
	defaultFreshThreshold    = 15 * time.Minute
	defaultCriticalThreshold = time.Hour
	defaultLockDuration      = 10 * time.Minute
)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		// Validate the path to prevent path traversal attacks
		if !filepath.IsAbs(realPath) {
			if !filepath.IsLocal(realPath) {
				return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
			}
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	Database *DatabaseConfig `yaml:"database,omitempty"`
	Quota    QuotaConfig     `yaml:"quota,omitempty"`
	Catalog  CatalogConfig   `yaml:"catalog"`
}

// QuotaConfig defines the global fallback quota limits applied to new principals.
// Per-principal overrides live on the principal rows themselves.
type QuotaConfig struct {
	// RateLimitMax is the maximum number of requests per sliding window
	RateLimitMax int64 `yaml:"rateLimitMax,omitempty"`

	// RateLimitWindow is the sliding window length (e.g. "24h")
	RateLimitWindow string `yaml:"rateLimitWindow,omitempty"`
}

// CatalogConfig defines the upstream model listing and refresh policy
type CatalogConfig struct {
	// Endpoint is the base URL of the upstream model listing API.
	// The catalog syncer appends /models to this URL.
	Endpoint string `yaml:"endpoint"`

	// FetchTimeout bounds a single upstream fetch (e.g. "30s")
	FetchTimeout string `yaml:"fetchTimeout,omitempty"`

	// MinContextWindow excludes fetched models below this context window size.
	// Zero admits every model.
	MinContextWindow int64 `yaml:"minContextWindow,omitempty"`

	// FreshThreshold is the age below which catalog data is considered fresh
	// and sync attempts are skipped (e.g. "15m")
	FreshThreshold string `yaml:"freshThreshold,omitempty"`

	// CriticalThreshold is the age at which an unforced sync attempt will
	// actually run. Must be greater than FreshThreshold.
	CriticalThreshold string `yaml:"criticalThreshold,omitempty"`

	// LockDuration is the sync lease length; a lock older than this is
	// treated as abandoned by a crashed worker (e.g. "10m")
	LockDuration string `yaml:"lockDuration,omitempty"`
}

// DatabaseConfig defines database connection settings
type DatabaseConfig struct {
	// Host is the database server hostname or IP address
	Host string `yaml:"host"`

	// Port is the database server port
	Port int `yaml:"port"`

	// User is the database username
	User string `yaml:"user"`

	// PasswordFile is the path to a file containing the database password.
	// This is the recommended approach for production deployments.
	// The file should contain only the password with optional trailing whitespace.
	PasswordFile string `yaml:"passwordFile,omitempty"`

	// Database is the database name
	Database string `yaml:"database"`

	// SSLMode is the SSL mode for the connection (disable, require, verify-ca, verify-full)
	SSLMode string `yaml:"sslMode,omitempty"`

	// MaxConns is the maximum number of connections in the pool
	MaxConns int32 `yaml:"maxConns,omitempty"`

	// MinConns is the minimum number of idle connections kept in the pool
	MinConns int32 `yaml:"minConns,omitempty"`

	// ConnMaxLifetime is the maximum lifetime of a connection (e.g., "1h", "30m")
	ConnMaxLifetime string `yaml:"connMaxLifetime,omitempty"`
}

// GetPassword returns the database password using the following priority:
// 1. Read from PasswordFile if specified
// 2. Read from MGW_DATABASE_PASSWORD environment variable
//
// The password from file will have leading/trailing whitespace trimmed.
func (d *DatabaseConfig) GetPassword() (string, error) {
	// Priority 1: Read from file if specified
	if d.PasswordFile != "" {
		// Use filepath.Clean to prevent path traversal attacks
		cleanPath := filepath.Clean(d.PasswordFile)

		data, err := os.ReadFile(cleanPath)
		if err != nil {
			return "", fmt.Errorf("failed to read password from file %s: %w", d.PasswordFile, err)
		}

		// Trim whitespace (including newlines) from file content
		password := strings.TrimSpace(string(data))
		return password, nil
	}

	// Priority 2: Check environment variable
	if envPassword := os.Getenv(EnvPrefix + "_DATABASE_PASSWORD"); envPassword != "" {
		return envPassword, nil
	}

	return "", fmt.Errorf(
		"no database password configured: set passwordFile or %s_DATABASE_PASSWORD environment variable",
		EnvPrefix,
	)
}

// GetConnectionString builds a PostgreSQL connection string with proper password handling.
// The password is URL-escaped to handle special characters safely.
func (d *DatabaseConfig) GetConnectionString() (string, error) {
	password, err := d.GetPassword()
	if err != nil {
		return "", err
	}

	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "require"
	}

	// URL-escape the password to handle special characters
	escapedPassword := url.QueryEscape(password)

	connString := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User,
		escapedPassword,
		d.Host,
		d.Port,
		d.Database,
		sslMode,
	)

	return connString, nil
}

// LoadConfig loads and parses configuration from a YAML file
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	// As of now, this is required because there's no other options to load
	// configuration. Once we add more options, we can remove this check.
	if loaderCfg.path == "" {
		return nil, fmt.Errorf("path is required")
	}

	// Read the entire file into memory
	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML content
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	// Validate the config
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// GetRateLimitMax returns the configured global request limit, or the default.
func (q *QuotaConfig) GetRateLimitMax() int64 {
	if q.RateLimitMax <= 0 {
		return defaultRateLimitMax
	}
	return q.RateLimitMax
}

// GetRateLimitWindow returns the configured sliding window, or the default.
func (q *QuotaConfig) GetRateLimitWindow() (time.Duration, error) {
	return durationOrDefault(q.RateLimitWindow, defaultRateLimitWindow)
}

// GetFetchTimeout returns the configured upstream fetch timeout, or the default.
func (c *CatalogConfig) GetFetchTimeout() (time.Duration, error) {
	return durationOrDefault(c.FetchTimeout, defaultFetchTimeout)
}

// GetFreshThreshold returns the configured fresh threshold, or the default.
func (c *CatalogConfig) GetFreshThreshold() (time.Duration, error) {
	return durationOrDefault(c.FreshThreshold, defaultFreshThreshold)
}

// GetCriticalThreshold returns the configured critical threshold, or the default.
func (c *CatalogConfig) GetCriticalThreshold() (time.Duration, error) {
	return durationOrDefault(c.CriticalThreshold, defaultCriticalThreshold)
}

// GetLockDuration returns the configured sync lease length, or the default.
func (c *CatalogConfig) GetLockDuration() (time.Duration, error) {
	return durationOrDefault(c.LockDuration, defaultLockDuration)
}

func durationOrDefault(s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	return time.ParseDuration(s)
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if err := c.validateQuota(); err != nil {
		return err
	}

	return c.validateCatalog()
}

func (c *Config) validateQuota() error {
	if c.Quota.RateLimitMax < 0 {
		return fmt.Errorf("quota.rateLimitMax must not be negative")
	}
	if _, err := c.Quota.GetRateLimitWindow(); err != nil {
		return fmt.Errorf("quota.rateLimitWindow must be a valid duration (e.g., '24h'): %w", err)
	}
	return nil
}

func (c *Config) validateCatalog() error {
	if c.Catalog.Endpoint == "" {
		return fmt.Errorf("catalog.endpoint is required")
	}
	parsed, err := url.Parse(c.Catalog.Endpoint)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("catalog.endpoint must be an absolute URL, got %q", c.Catalog.Endpoint)
	}

	if _, err := c.Catalog.GetFetchTimeout(); err != nil {
		return fmt.Errorf("catalog.fetchTimeout must be a valid duration: %w", err)
	}
	if _, err := c.Catalog.GetLockDuration(); err != nil {
		return fmt.Errorf("catalog.lockDuration must be a valid duration: %w", err)
	}

	fresh, err := c.Catalog.GetFreshThreshold()
	if err != nil {
		return fmt.Errorf("catalog.freshThreshold must be a valid duration: %w", err)
	}
	critical, err := c.Catalog.GetCriticalThreshold()
	if err != nil {
		return fmt.Errorf("catalog.criticalThreshold must be a valid duration: %w", err)
	}
	if fresh >= critical {
		return fmt.Errorf("catalog.freshThreshold (%s) must be less than catalog.criticalThreshold (%s)",
			fresh, critical)
	}

	if c.Catalog.MinContextWindow < 0 {
		return fmt.Errorf("catalog.minContextWindow must not be negative")
	}

	return nil
}
