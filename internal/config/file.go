package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"gopkg.in/ini.v1"
)

// INI format:
//
//	[vault]
//	api_url = http://localhost:5000
//	request_timeout = 30s
//	health_retries = 3
//	requests_per_second = 0
//
//	[proxy]
//	mode = no-proxy
//	host =
//	port = 0
//	user =
//	no_proxy =
//	warmup = false
//
//	[logging]
//	level = info
//	file =
//
//	[notifications]
//	enabled = false
//
// The proxy password is never written; supply it with CLOUDVAULT_PROXY_PASSWORD
// or the interactive prompt.

// LoadFile loads configuration from an INI file on top of the defaults.
// If the file doesn't exist, returns the defaults and no error.
// If the file exists but is invalid, returns an error.
func LoadFile(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		path = DefaultConfigPath()
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	iniFile, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	vault := iniFile.Section("vault")
	cfg.APIBaseURL = vault.Key("api_url").MustString(cfg.APIBaseURL)
	cfg.RequestTimeout = vault.Key("request_timeout").MustDuration(cfg.RequestTimeout)
	cfg.HealthRetries = vault.Key("health_retries").MustInt(cfg.HealthRetries)
	cfg.RequestsPerSecond = vault.Key("requests_per_second").MustFloat64(cfg.RequestsPerSecond)
	cfg.StateDir = vault.Key("state_dir").String()

	proxy := iniFile.Section("proxy")
	cfg.ProxyMode = proxy.Key("mode").MustString(cfg.ProxyMode)
	cfg.ProxyHost = proxy.Key("host").String()
	cfg.ProxyPort = proxy.Key("port").MustInt(0)
	cfg.ProxyUser = proxy.Key("user").String()
	cfg.NoProxy = proxy.Key("no_proxy").String()
	cfg.ProxyWarmup = proxy.Key("warmup").MustBool(false)

	logging := iniFile.Section("logging")
	cfg.LogLevel = logging.Key("level").MustString(cfg.LogLevel)
	cfg.LogFile = logging.Key("file").String()

	cfg.Notifications = iniFile.Section("notifications").Key("enabled").MustBool(false)

	return cfg, nil
}

// SaveFile writes cfg to an INI file.
// Creates parent directories if they don't exist.
func SaveFile(cfg *Config, path string) error {
	if path == "" {
		path = DefaultConfigPath()
	}

	if err := EnsureDir(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	iniFile := ini.Empty()

	vault, err := iniFile.NewSection("vault")
	if err != nil {
		return fmt.Errorf("failed to create vault section: %w", err)
	}
	vault.Key("api_url").SetValue(cfg.APIBaseURL)
	vault.Key("request_timeout").SetValue(cfg.RequestTimeout.String())
	vault.Key("health_retries").SetValue(strconv.Itoa(cfg.HealthRetries))
	vault.Key("requests_per_second").SetValue(strconv.FormatFloat(cfg.RequestsPerSecond, 'f', -1, 64))
	if cfg.StateDir != "" {
		vault.Key("state_dir").SetValue(cfg.StateDir)
	}

	proxy, err := iniFile.NewSection("proxy")
	if err != nil {
		return fmt.Errorf("failed to create proxy section: %w", err)
	}
	proxy.Key("mode").SetValue(cfg.ProxyMode)
	proxy.Key("host").SetValue(cfg.ProxyHost)
	proxy.Key("port").SetValue(strconv.Itoa(cfg.ProxyPort))
	proxy.Key("user").SetValue(cfg.ProxyUser)
	proxy.Key("no_proxy").SetValue(cfg.NoProxy)
	proxy.Key("warmup").SetValue(strconv.FormatBool(cfg.ProxyWarmup))

	logging, err := iniFile.NewSection("logging")
	if err != nil {
		return fmt.Errorf("failed to create logging section: %w", err)
	}
	logging.Key("level").SetValue(cfg.LogLevel)
	logging.Key("file").SetValue(cfg.LogFile)

	notify, err := iniFile.NewSection("notifications")
	if err != nil {
		return fmt.Errorf("failed to create notifications section: %w", err)
	}
	notify.Key("enabled").SetValue(strconv.FormatBool(cfg.Notifications))

	// Use temporary file + rename for atomicity
	tmpPath := path + ".tmp"
	if err := iniFile.SaveTo(tmpPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	if runtime.GOOS != "windows" {
		if err := os.Chmod(tmpPath, 0600); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("failed to set config permissions: %w", err)
		}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save config: %w", err)
	}

	return nil
}
