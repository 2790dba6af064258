package cmd

import (
	"errors"
	"fmt"

	"github.com/openclaw/gateway/internal/cli/output"
	"github.com/openclaw/gateway/internal/config"
	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Global gateway configuration",
	}
	cmd.AddCommand(newConfigShowCmd())
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the resolved multi-tenant configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			styler := output.NewStyler(noColor)

			g, err := config.Load()
			if err != nil {
				styler.Fprintln(cmd.OutOrStderr(), styler.Error(fmt.Sprintf("Failed to load config: %v", err)))
				return err
			}
			mt, err := g.ResolvedMultiTenant()
			if errors.Is(err, config.ErrUnavailable) {
				styler.Fprintln(cmd.OutOrStdout(), styler.Warn(
					fmt.Sprintf("Multi-tenant mode is not enabled: %v", err)))
				if g.Path != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "config file: %s\n", g.Path)
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "no global config file found")
				}
				return nil
			}
			if err != nil {
				return err
			}

			// Never print the service token
			redacted := *mt
			if redacted.ServiceToken != "" {
				redacted.ServiceToken = "****"
			}
			jsonStr, err := output.FormatJSON(redacted)
			if err != nil {
				return fmt.Errorf("failed to format output: %w", err)
			}
			if g.Path != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "config file: %s\n", g.Path)
			}
			fmt.Fprintln(cmd.OutOrStdout(), jsonStr)
			return nil
		},
	}
}
