// Package cli provides command shortcuts for common operations.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/cloudvault/cloudvault-cli/internal/state"
)

// AddShortcuts adds shortcut commands to the root command.
// Shortcuts provide convenient aliases for commonly-used operations.
func AddShortcuts(rootCmd *cobra.Command) {
	rootCmd.AddCommand(newUploadShortcut())
	rootCmd.AddCommand(newDownloadShortcut())
	rootCmd.AddCommand(newLsShortcut())
}

// newUploadShortcut creates the 'upload' shortcut command.
// Shortcut for: files upload
func newUploadShortcut() *cobra.Command {
	var folder string

	cmd := &cobra.Command{
		Use:   "upload <file> [file...]",
		Short: "Upload files (shortcut for 'files upload')",
		Long: `Shortcut for uploading files to the vault.

Equivalent to: cloudvault files upload <files>

Examples:
  cloudvault upload report.pdf
  cloudvault upload *.csv -d Data`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(func(ctx context.Context, a *app) error {
				return executeUpload(ctx, a, args, folder, cmd.OutOrStdout(), cmd.ErrOrStderr())
			})
		},
	}

	cmd.Flags().StringVarP(&folder, "folder", "d", "", "Upload into this folder (default: root)")

	return cmd
}

// newDownloadShortcut creates the 'download' shortcut command.
// Shortcut for: files download
func newDownloadShortcut() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "download <name>",
		Short: "Download a file (shortcut for 'files download')",
		Long: `Shortcut for downloading a file from the vault.

Equivalent to: cloudvault files download <name>

Examples:
  cloudvault download Reports/q3.pdf
  cloudvault download notes.txt -o -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(func(ctx context.Context, a *app) error {
				return executeDownload(ctx, a, args[0], output, cmd.OutOrStdout(), cmd.ErrOrStderr())
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output path, or - for stdout")

	return cmd
}

// newLsShortcut creates the 'ls' shortcut command.
// Shortcut for: files list
func newLsShortcut() *cobra.Command {
	var sortBy string
	var desc bool

	cmd := &cobra.Command{
		Use:   "ls [folder]",
		Short: "List files (shortcut for 'files list')",
		Long: `Shortcut for listing files in the vault.

Equivalent to: cloudvault files list --folder <folder>

Examples:
  cloudvault ls
  cloudvault ls Reports -s date --desc`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			folder := ""
			if len(args) == 1 {
				folder = args[0]
			}
			return withSession(func(ctx context.Context, a *app) error {
				if err := a.files.Refresh(ctx); err != nil {
					return err
				}
				st := a.files.State()
				st.SetSort(sortBy, !desc)
				st.SetCurrentFolder(folder)
				printFileList(cmd.OutOrStdout(), st.Visible())
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&sortBy, "sort", "s", state.SortByName, "Sort by name, size or date")
	cmd.Flags().BoolVar(&desc, "desc", false, "Sort in descending order")

	return cmd
}
