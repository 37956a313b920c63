// Package cli provides the command-line interface for cloudvault.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/cloudvault/cloudvault-cli/internal/config"
	"github.com/cloudvault/cloudvault-cli/internal/logging"
	"github.com/cloudvault/cloudvault-cli/internal/version"
)

var (
	// Global flags
	cfgFile    string
	apiBaseURL string
	timeout    time.Duration
	stateDir   string
	verbose    bool
	debug      bool

	// Global logger
	logger *logging.Logger

	// Resolved configuration, loaded once per invocation
	appConfig *config.Config

	// Global context for signal handling
	rootContext context.Context
	cancelFunc  context.CancelFunc
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cloudvault",
		Short: "Cloud Vault - command-line client for the Cloud Vault file store",
		Long: `Cloud Vault ` + version.Version + ` - Built: ` + version.BuildTime + `
Command-line client for storing, listing and retrieving files in a Cloud Vault.

Start with:
  cloudvault signup --email you@example.com
  cloudvault login
  cloudvault files upload report.pdf
  cloudvault files list`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			appConfig = cfg

			logger = logging.NewLogger(logging.Options{
				Console:  cmd.ErrOrStderr(),
				FilePath: cfg.LogFile,
			})
			switch {
			case verbose || debug:
				logging.SetGlobalLevel(zerolog.DebugLevel)
			default:
				logging.SetGlobalLevel(logging.ParseLevel(cfg.LogLevel))
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Close()
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Configuration file path (default "+config.DefaultConfigPath()+")")
	rootCmd.PersistentFlags().StringVar(&apiBaseURL, "api-url", "", "Vault API base URL (overrides config)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "Per-request timeout, e.g. 30s (overrides config)")
	rootCmd.PersistentFlags().StringVar(&stateDir, "state-dir", "", "Directory holding the session database (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output (shows debug messages)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug output (same as --verbose)")

	rootCmd.Version = version.Version + " (" + version.BuildTime + ")"

	rootCmd.AddCommand(newCompletionCmd(rootCmd))
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	return rootCmd
}

// Execute runs the CLI.
func Execute() error {
	rootContext, cancelFunc = context.WithCancel(context.Background())
	defer cancelFunc()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Loop so repeated Ctrl+C presses don't kill the process mid-write
	go func() {
		for sig := range sigChan {
			if sig != nil {
				fmt.Fprintf(os.Stderr, "\nReceived signal %v, cancelling...\n", sig)
				cancelFunc()
			}
		}
	}()

	rootCmd := NewRootCmd()
	AddCommands(rootCmd)
	err := rootCmd.Execute()

	signal.Stop(sigChan)
	close(sigChan)

	return err
}

// AddCommands adds all subcommands to the root command.
func AddCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(newSignupCmd())
	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newLogoutCmd())
	rootCmd.AddCommand(newWhoamiCmd())
	rootCmd.AddCommand(newTokenCmd())
	rootCmd.AddCommand(newFilesCmd())
	rootCmd.AddCommand(newBackupCmd())
	rootCmd.AddCommand(newHealthCmd())
	rootCmd.AddCommand(newMirrorCmd())
	rootCmd.AddCommand(newShellCmd())
	rootCmd.AddCommand(newConfigCmd())

	AddShortcuts(rootCmd)
}

// GetLogger returns the global CLI logger.
func GetLogger() *logging.Logger {
	if logger == nil {
		logger = logging.NewDefaultCLILogger()
	}
	return logger
}

// GetContext returns the global CLI context with signal handling.
// This context will be cancelled when the user presses Ctrl+C.
func GetContext() context.Context {
	if rootContext == nil {
		return context.Background()
	}
	return rootContext
}

// loadConfig resolves the config file, the environment and the global flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("api-url") {
		cfg.APIBaseURL = apiBaseURL
	}
	if flags.Changed("timeout") {
		cfg.RequestTimeout = timeout
	}
	if flags.Changed("state-dir") {
		cfg.StateDir = stateDir
	}
	return cfg, nil
}

// getConfig returns the configuration resolved in PersistentPreRunE.
func getConfig() *config.Config {
	if appConfig == nil {
		appConfig = config.NewConfig()
	}
	return appConfig
}
