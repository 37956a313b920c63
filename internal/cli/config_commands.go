// Package cli provides configuration management commands.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/cloudvault/cloudvault-cli/internal/config"
)

// newConfigCmd creates the 'config' command group.
func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage cloudvault configuration",
		Long: `Configuration management commands for cloudvault.

Commands:
  init  - Interactive configuration setup
  show  - Display current configuration
  test  - Test API connection
  path  - Show configuration file path`,
	}

	configCmd.AddCommand(newConfigInitCmd())
	configCmd.AddCommand(newConfigShowCmd())
	configCmd.AddCommand(newConfigTestCmd())
	configCmd.AddCommand(newConfigPathCmd())

	return configCmd
}

// configPath returns the --config path or the default location.
func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultConfigPath()
}

// newConfigInitCmd creates the 'config init' command.
func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration interactively",
		Long: `Interactive configuration setup. Press Enter to keep the value shown
in brackets.

Use --force to overwrite an existing configuration file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath()
			out := cmd.OutOrStdout()

			if !force {
				if _, err := os.Stat(path); err == nil {
					fmt.Fprintf(out, "Configuration already exists at: %s\n", path)
					fmt.Fprintln(out, "Use --force to overwrite or run 'config show' to view current config.")
					return nil
				}
			}

			fmt.Fprintln(out, "Cloud Vault Configuration Setup")
			fmt.Fprintln(out, "===============================")
			fmt.Fprintln(out)

			cfg, err := promptConfig(cmd.InOrStdin(), out, getConfig())
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			if err := config.SaveFile(cfg, path); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			GetLogger().Info().Str("path", path).Msg("Configuration saved")
			fmt.Fprintln(out)
			fmt.Fprintf(out, "✓ Configuration saved to: %s\n", path)
			fmt.Fprintln(out, "Test your configuration with: cloudvault config test")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing configuration")

	return cmd
}

// promptConfig asks for each setting, using base for the defaults.
func promptConfig(in io.Reader, out io.Writer, base *config.Config) (*config.Config, error) {
	cfg := *base
	var err error

	if cfg.APIBaseURL, err = readLineDefault(in, out, "API base URL", base.APIBaseURL); err != nil {
		return nil, err
	}

	timeout, err := readLineDefault(in, out, "Request timeout", base.RequestTimeout.String())
	if err != nil {
		return nil, err
	}
	if cfg.RequestTimeout, err = time.ParseDuration(timeout); err != nil {
		return nil, fmt.Errorf("invalid timeout %q: %w", timeout, err)
	}

	fmt.Fprintln(out)
	if confirm(in, out, "Configure proxy?") {
		fmt.Fprintln(out, "Proxy modes: no-proxy, system, basic, ntlm")
		mode := base.ProxyMode
		if mode == "" || mode == "no-proxy" {
			mode = "system"
		}
		if cfg.ProxyMode, err = readLineDefault(in, out, "Proxy mode", mode); err != nil {
			return nil, err
		}
		if cfg.ProxyMode == "basic" || cfg.ProxyMode == "ntlm" {
			if cfg.ProxyHost, err = readLineDefault(in, out, "Proxy host", base.ProxyHost); err != nil {
				return nil, err
			}
			port := base.ProxyPort
			if port == 0 {
				port = 8080
			}
			portInput, err := readLineDefault(in, out, "Proxy port", strconv.Itoa(port))
			if err != nil {
				return nil, err
			}
			if cfg.ProxyPort, err = strconv.Atoi(portInput); err != nil || cfg.ProxyPort <= 0 {
				return nil, fmt.Errorf("invalid proxy port %q", portInput)
			}
			if cfg.ProxyUser, err = readLineDefault(in, out, "Proxy user", base.ProxyUser); err != nil {
				return nil, err
			}
		}
	} else {
		cfg.ProxyMode = "no-proxy"
	}

	fmt.Fprintln(out)
	cfg.Notifications = confirm(in, out, "Show desktop notifications after batch uploads?")

	if cfg.LogLevel, err = readLineDefault(in, out, "Log level", base.LogLevel); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// newConfigShowCmd creates the 'config show' command.
func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display current configuration",
		Long: `Display the effective configuration.

Values are merged from:
  1. Configuration file (~/.config/cloudvault/config)
  2. Environment variables (CLOUDVAULT_*)
  3. Command-line flags (--api-url, --timeout, --state-dir)

Priority: flags > environment > config file > defaults`,
		RunE: func(cmd *cobra.Command, args []string) error {
			printConfig(cmd.OutOrStdout(), getConfig(), configPath())
			return nil
		},
	}
}

func printConfig(w io.Writer, cfg *config.Config, path string) {
	fmt.Fprintln(w, "Current Configuration")
	fmt.Fprintln(w, "=====================")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "API Settings:")
	fmt.Fprintf(w, "  API Base URL:    %s\n", cfg.APIBaseURL)
	fmt.Fprintf(w, "  Request Timeout: %s\n", cfg.RequestTimeout)
	fmt.Fprintf(w, "  Health Retries:  %d\n", cfg.HealthRetries)
	fmt.Fprintf(w, "  Requests/sec:    %g\n", cfg.RequestsPerSecond)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Proxy Settings:")
	fmt.Fprintf(w, "  Proxy Mode: %s\n", cfg.ProxyMode)
	if cfg.ProxyHost != "" {
		fmt.Fprintf(w, "  Proxy Host: %s\n", cfg.ProxyHost)
		fmt.Fprintf(w, "  Proxy Port: %d\n", cfg.ProxyPort)
	}
	if cfg.ProxyUser != "" {
		fmt.Fprintf(w, "  Proxy User: %s\n", cfg.ProxyUser)
	}
	if cfg.ProxyPassword != "" {
		fmt.Fprintf(w, "  Proxy Password: %s\n", maskSecret(cfg.ProxyPassword))
	}
	if cfg.NoProxy != "" {
		fmt.Fprintf(w, "  No Proxy:   %s\n", cfg.NoProxy)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Local Settings:")
	fmt.Fprintf(w, "  State Directory: %s\n", cfg.StateDirectory())
	fmt.Fprintf(w, "  Log Level:       %s\n", cfg.LogLevel)
	if cfg.LogFile != "" {
		fmt.Fprintf(w, "  Log File:        %s\n", cfg.LogFile)
	}
	fmt.Fprintf(w, "  Notifications:   %t\n", cfg.Notifications)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Configuration file: %s\n", path)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Fprintln(w, "  (file does not exist - using defaults)")
	}
}

// newConfigTestCmd creates the 'config test' command.
func newConfigTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Test API connection",
		Long: `Test the API connection with the current configuration. When a session
is stored, the token is validated as well.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			return withApp(func(ctx context.Context, a *app) error {
				fmt.Fprintf(out, "API URL: %s\n", a.cfg.BaseURL())

				ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
				defer cancel()

				if _, err := a.client.Health(ctx); err != nil {
					a.logger.Error().Err(err).Msg("Connection test failed")
					fmt.Fprintln(out, "✗ Connection FAILED")
					fmt.Fprintf(out, "  Error: %v\n", err)
					return fmt.Errorf("connection test failed")
				}
				fmt.Fprintln(out, "✓ Connection SUCCESSFUL")

				snap, err := a.session.Bootstrap(ctx)
				switch {
				case err != nil:
					fmt.Fprintf(out, "✗ Stored session could not be checked: %v\n", err)
				case snap.IsAuthenticated():
					fmt.Fprintf(out, "✓ Logged in as %s\n", snap.User.Email)
				default:
					fmt.Fprintln(out, "  Not logged in")
				}
				return nil
			})
		},
	}
}

// newConfigPathCmd creates the 'config path' command.
func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			path := configPath()
			if cfgFile == "" {
				fmt.Fprintln(out, "Default configuration path:")
			} else {
				fmt.Fprintln(out, "Configuration path (from --config flag):")
			}
			fmt.Fprintf(out, "  %s\n\n", path)

			if info, err := os.Stat(path); err == nil {
				fmt.Fprintln(out, "Status: ✓ File exists")
				fmt.Fprintf(out, "Size:   %d bytes\n", info.Size())
				fmt.Fprintf(out, "Modified: %s\n", info.ModTime().Format("2006-01-02 15:04:05"))
			} else {
				fmt.Fprintln(out, "Status: File does not exist")
				fmt.Fprintln(out)
				fmt.Fprintln(out, "Create a configuration file with: cloudvault config init")
			}
			return nil
		},
	}
}

// maskSecret never shows any part of s, only whether it is set.
func maskSecret(s string) string {
	if s == "" {
		return "<not set>"
	}
	return fmt.Sprintf("<set (%d chars)>", len(s))
}
