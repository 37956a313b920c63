package config

import (
	"os"
	"path/filepath"
	"runtime"
)

const appDirName = "cloudvault"

// ConfigDirectory returns the directory holding the config file and client state.
//
// Locations:
//   - Windows: %APPDATA%\cloudvault
//   - Unix: ~/.config/cloudvault
func ConfigDirectory() string {
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, appDirName)
		}
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), appDirName)
		}
		return filepath.Join(homeDir, ".config", appDirName)
	}
	return filepath.Join(configDir, appDirName)
}

// DefaultConfigPath returns the default INI config file path.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDirectory(), "config")
}

// StateDirectory returns the directory for persisted session state.
func (c *Config) StateDirectory() string {
	if c.StateDir != "" {
		return c.StateDir
	}
	return ConfigDirectory()
}

// StateDBPath returns the SQLite database path holding the token and user.
func (c *Config) StateDBPath() string {
	return filepath.Join(c.StateDirectory(), "state.db")
}

// EnsureDir creates dir with owner-only permissions.
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0700)
}
