package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// newBackupCmd creates the 'backup' command group.
func newBackupCmd() *cobra.Command {
	backupCmd := &cobra.Command{
		Use:   "backup",
		Short: "Create and restore server-side backups",
	}

	backupCmd.AddCommand(newBackupCreateCmd())
	backupCmd.AddCommand(newBackupRestoreCmd())

	return backupCmd
}

func newBackupCreateCmd() *cobra.Command {
	var showManifest bool

	cmd := &cobra.Command{
		Use:   "create [name]",
		Short: "Snapshot all files into a named backup",
		Long: `Ask the server to snapshot your files. Without a name the server picks one.

Examples:
  cloudvault backup create
  cloudvault backup create before-cleanup --manifest`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 1 {
				name = args[0]
			}

			return withSession(func(ctx context.Context, a *app) error {
				resp, err := a.files.Backup(ctx, name)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Backup %s: %s\n", resp.BackupName, resp.Status)
				if showManifest && len(resp.Manifest) > 0 {
					var buf bytes.Buffer
					if err := json.Indent(&buf, resp.Manifest, "", "  "); err != nil {
						buf.Reset()
						buf.Write(resp.Manifest)
					}
					fmt.Fprintln(out, buf.String())
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&showManifest, "manifest", false, "Print the backup manifest returned by the server")

	return cmd
}

func newBackupRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <name>",
		Short: "Restore files from a named backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(func(ctx context.Context, a *app) error {
				resp, err := a.files.Restore(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Restore %s: %d restored, %d failed\n",
					resp.Status, resp.RestoredCount, resp.FailedCount)
				if resp.FailedCount > 0 {
					return fmt.Errorf("%d files could not be restored", resp.FailedCount)
				}
				return nil
			})
		},
	}
}
