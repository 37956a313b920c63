package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// newHealthCmd creates the 'health' command.
func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the vault API is reachable",
		Long: `Call the health endpoint. Transient failures are retried up to the
configured health_retries.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				start := time.Now()
				resp, err := a.client.Health(ctx)
				if err != nil {
					return fmt.Errorf("%s is not healthy: %w", a.cfg.BaseURL(), err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (%s)\n",
					a.cfg.BaseURL(), resp.Status, time.Since(start).Round(time.Millisecond))
				return nil
			})
		},
	}
}
