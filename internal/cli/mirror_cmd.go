package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	inthttp "github.com/cloudvault/cloudvault-cli/internal/http"
	"github.com/cloudvault/cloudvault-cli/internal/mirror"
	"github.com/cloudvault/cloudvault-cli/internal/util/filter"
)

// newMirrorCmd creates the 'mirror' command.
func newMirrorCmd() *cobra.Command {
	var destination, include, exclude, paths string

	cmd := &cobra.Command{
		Use:   "mirror",
		Short: "Copy every vault file to a local directory or object store",
		Long: `Download each file in the vault and write it to a destination.

Destinations:
  ./backup, file:///srv/vault      local directory
  s3://bucket/prefix               Amazon S3 or an S3-compatible store
  azblob://container/prefix        Azure Blob Storage

Credentials come from the environment: the standard AWS chain (or
CLOUDVAULT_S3_ACCESS_KEY / CLOUDVAULT_S3_SECRET_KEY with CLOUDVAULT_S3_ENDPOINT),
and AZURE_STORAGE_ACCOUNT_URL with AZURE_STORAGE_SAS_TOKEN or
AZURE_STORAGE_ACCOUNT / AZURE_STORAGE_KEY.

Examples:
  cloudvault mirror --to ./vault-copy
  cloudvault mirror --to s3://archive/vault
  cloudvault mirror --to ~/reports --path "Reports/**" --exclude "*.tmp"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dest, err := mirror.ParseDestination(destination)
			if err != nil {
				return err
			}
			fc := filter.Config{
				Include:     filter.ParsePatternList(include),
				Exclude:     filter.ParsePatternList(exclude),
				PathInclude: filter.ParsePatternList(paths),
			}
			if err := fc.Validate(); err != nil {
				return err
			}
			opts, err := mirror.OptionsFromEnv()
			if err != nil {
				return fmt.Errorf("failed to read storage settings: %w", err)
			}

			return withSession(func(ctx context.Context, a *app) error {
				httpClient, err := inthttp.ConfigureHTTPClient(a.cfg, a.logger)
				if err != nil {
					return fmt.Errorf("failed to create HTTP client: %w", err)
				}
				sink, err := mirror.Open(ctx, dest, opts, httpClient)
				if err != nil {
					return err
				}

				out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()
				m := mirror.New(a.files, sink, a.logger)
				m.Filter = fc
				m.OnFile = func(name string, size int64, err error) {
					if err != nil {
						fmt.Fprintf(errOut, "✗ %s: %v\n", name, err)
						return
					}
					fmt.Fprintf(out, "✓ %s (%s)\n", name, formatBytes(size))
				}

				summary, err := m.Run(ctx)
				if err != nil {
					return err
				}
				a.notifier.MirrorComplete(summary.Destination, summary.Copied, summary.FailedCount())

				fmt.Fprintf(out, "Mirrored %d files (%s) to %s in %s\n",
					summary.Copied, formatBytes(summary.Bytes), summary.Destination,
					summary.Duration.Round(time.Millisecond))
				if n := summary.FailedCount(); n > 0 {
					return fmt.Errorf("%d files failed to mirror", n)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&destination, "to", "", "Destination directory or object store URL")
	cmd.Flags().StringVar(&include, "include", "", "Comma-separated glob patterns to copy")
	cmd.Flags().StringVar(&exclude, "exclude", "", "Comma-separated glob patterns to skip")
	cmd.Flags().StringVar(&paths, "path", "", "Comma-separated path patterns; ** matches any folders")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}
