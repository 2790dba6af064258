package cmd

import (
	stdcontext "context"
	"fmt"
	"time"

	"github.com/openclaw/gateway/internal/cli/api"
	"github.com/openclaw/gateway/internal/cli/output"
	"github.com/spf13/cobra"
)

func newSyncCmd(client api.Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Config synchronization",
	}
	cmd.AddCommand(newSyncNowCmd(client))
	return cmd
}

func newSyncNowCmd(client api.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "now",
		Short: "Trigger an immediate config sync",
		RunE: func(cmd *cobra.Command, args []string) error {
			styler := output.NewStyler(noColor)
			ctx, cancel := stdcontext.WithTimeout(stdcontext.Background(), 2*time.Minute)
			defer cancel()

			res, err := client.SyncNow(ctx)
			if err != nil {
				styler.Fprintln(cmd.OutOrStderr(), styler.Error(fmt.Sprintf("Sync failed: %v", err)))
				return err
			}

			if outputFormat == "json" {
				jsonStr, err := output.FormatJSON(res)
				if err != nil {
					return fmt.Errorf("failed to format output: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), jsonStr)
				return nil
			}

			if res.Success {
				styler.Fprintln(cmd.OutOrStdout(), styler.Success(
					fmt.Sprintf("Synced %d tenant record(s)", res.UsersUpdated)))
			} else {
				styler.Fprintln(cmd.OutOrStdout(), styler.Warn(
					fmt.Sprintf("Sync did not complete: %s", res.Error)))
			}
			return nil
		},
	}
}
