package cmd

import (
	stdcontext "context"
	"fmt"
	"time"

	"github.com/openclaw/gateway/internal/cli/api"
	"github.com/openclaw/gateway/internal/cli/output"
	"github.com/spf13/cobra"
)

func newStatsCmd(client api.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show gateway cache and sync statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := stdcontext.WithTimeout(stdcontext.Background(), 30*time.Second)
			defer cancel()

			stats, err := client.Stats(ctx)
			if err != nil {
				styler := output.NewStyler(noColor)
				styler.Fprintln(cmd.OutOrStderr(), styler.Error(fmt.Sprintf("Failed to fetch stats: %v", err)))
				return err
			}

			if outputFormat == "json" {
				jsonStr, err := output.FormatJSON(stats)
				if err != nil {
					return fmt.Errorf("failed to format output: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), jsonStr)
				return nil
			}

			fmt.Fprint(cmd.OutOrStdout(), output.StatsTable(stats))
			return nil
		},
	}
}
