package cmd

import (
	stdcontext "context"
	"fmt"
	"time"

	"github.com/openclaw/gateway/internal/cli/api"
	"github.com/openclaw/gateway/internal/cli/output"
	"github.com/spf13/cobra"
)

func newTenantCmd(client api.Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Inspect and evict cached tenants",
	}

	cmd.AddCommand(newTenantListCmd(client))
	cmd.AddCommand(newTenantGetCmd(client))
	cmd.AddCommand(newTenantEvictCmd(client))

	return cmd
}

func newTenantListCmd(client api.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List cached tenant instances",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := stdcontext.WithTimeout(stdcontext.Background(), 30*time.Second)
			defer cancel()

			tenants, err := client.ListTenants(ctx)
			if err != nil {
				styler := output.NewStyler(noColor)
				styler.Fprintln(cmd.OutOrStderr(), styler.Error(fmt.Sprintf("Failed to list tenants: %v", err)))
				return err
			}

			if outputFormat == "json" {
				jsonStr, err := output.FormatJSON(tenants)
				if err != nil {
					return fmt.Errorf("failed to format output: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), jsonStr)
				return nil
			}

			fmt.Fprint(cmd.OutOrStdout(), output.TenantTable(tenants))
			return nil
		},
	}
}

func newTenantGetCmd(client api.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "get <user-id>",
		Short: "Get one tenant's cached state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := stdcontext.WithTimeout(stdcontext.Background(), 30*time.Second)
			defer cancel()

			tenant, err := client.GetTenant(ctx, args[0])
			if err != nil {
				styler := output.NewStyler(noColor)
				styler.Fprintln(cmd.OutOrStderr(), styler.Error(fmt.Sprintf("Failed to get tenant: %v", err)))
				return err
			}

			jsonStr, err := output.FormatJSON(tenant)
			if err != nil {
				return fmt.Errorf("failed to format output: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), jsonStr)
			return nil
		},
	}
}

func newTenantEvictCmd(client api.Client) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "evict <user-id>",
		Short: "Evict a tenant from the cache",
		Long: `Evict removes a tenant instance from the in-memory cache. The tenant
re-materializes from disk on its next request. Eviction is refused while the
tenant has requests in flight unless --force is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			styler := output.NewStyler(noColor)
			ctx, cancel := stdcontext.WithTimeout(stdcontext.Background(), 30*time.Second)
			defer cancel()

			evicted, err := client.EvictTenant(ctx, args[0], force)
			if err != nil {
				styler.Fprintln(cmd.OutOrStderr(), styler.Error(fmt.Sprintf("Evict failed: %v", err)))
				return err
			}
			if evicted {
				styler.Fprintln(cmd.OutOrStdout(), styler.Success(fmt.Sprintf("Evicted %s", args[0])))
			} else {
				styler.Fprintln(cmd.OutOrStdout(), styler.Warn(
					fmt.Sprintf("%s not evicted (not cached, or has pending requests; use --force)", args[0])))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Evict even with requests in flight")
	return cmd
}
