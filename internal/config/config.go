// Package config provides configuration management for the Cloud Vault CLI.
//
// Values are resolved in this order, later sources winning:
// built-in defaults, the INI config file, CLOUDVAULT_* environment
// variables, and finally command-line flags (applied by the cli package).
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/cloudvault/cloudvault-cli/internal/constants"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "CLOUDVAULT_"

// Config holds all client settings.
type Config struct {
	// Vault connection
	APIBaseURL        string        `env:"API_URL"`
	RequestTimeout    time.Duration `env:"REQUEST_TIMEOUT"`
	HealthRetries     int           `env:"HEALTH_RETRIES"`
	RequestsPerSecond float64       `env:"REQUESTS_PER_SECOND"`

	// Proxy settings. ProxyPassword is never written to the config file.
	ProxyMode     string `env:"PROXY_MODE"` // no-proxy, system, basic, ntlm
	ProxyHost     string `env:"PROXY_HOST"`
	ProxyPort     int    `env:"PROXY_PORT"`
	ProxyUser     string `env:"PROXY_USER"`
	ProxyPassword string `env:"PROXY_PASSWORD"`
	NoProxy       string `env:"NO_PROXY"`
	ProxyWarmup   bool   `env:"PROXY_WARMUP"`

	// Local state
	StateDir string `env:"STATE_DIR"`

	// Logging
	LogLevel string `env:"LOG_LEVEL"`
	LogFile  string `env:"LOG_FILE"`

	// Desktop notifications after batch uploads
	Notifications bool `env:"NOTIFY"`
}

// Validation errors
var (
	ErrMissingAPIURL    = errors.New("api_url is required")
	ErrInvalidAPIURL    = errors.New("api_url must be an absolute http(s) URL")
	ErrInvalidTimeout   = errors.New("request_timeout must be positive")
	ErrInvalidRetries   = errors.New("health_retries must be between 0 and 10")
	ErrInvalidRate      = errors.New("requests_per_second must not be negative")
	ErrInvalidProxyMode = errors.New("proxy mode must be one of: no-proxy, system, basic, ntlm")
)

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		APIBaseURL:        constants.DefaultAPIBaseURL,
		RequestTimeout:    constants.DefaultRequestTimeout,
		HealthRetries:     constants.DefaultHealthRetries,
		RequestsPerSecond: constants.DefaultRequestsPerSecond,
		ProxyMode:         "no-proxy",
		LogLevel:          "info",
	}
}

// Load resolves defaults, the config file at path (default location when
// empty) and the environment.
func Load(path string) (*Config, error) {
	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overlays CLOUDVAULT_* environment variables onto cfg.
// Unset variables leave the existing values untouched.
func ApplyEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}
	return nil
}

// Validate checks the settings needed to talk to the vault.
func (c *Config) Validate() error {
	raw := strings.TrimSpace(c.APIBaseURL)
	if raw == "" {
		return ErrMissingAPIURL
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidAPIURL
	}
	if c.RequestTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.HealthRetries < 0 || c.HealthRetries > 10 {
		return ErrInvalidRetries
	}
	if c.RequestsPerSecond < 0 {
		return ErrInvalidRate
	}
	switch strings.ToLower(c.ProxyMode) {
	case "", "no-proxy", "system", "basic", "ntlm":
	default:
		return ErrInvalidProxyMode
	}
	return nil
}

// BaseURL returns the API URL without a trailing slash.
func (c *Config) BaseURL() string {
	return strings.TrimSuffix(strings.TrimSpace(c.APIBaseURL), "/")
}
