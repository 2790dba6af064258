package cmd

import (
	"os"

	"github.com/openclaw/gateway/internal/cli/api"
	"github.com/spf13/cobra"
)

var (
	version   string
	commit    string
	buildDate string

	// Global flags
	gatewayURL   string
	outputFormat string
	noColor      bool
)

var rootCmd = &cobra.Command{
	Use:   "openclawctl",
	Short: "OpenClaw Gateway CLI",
	Long: `openclawctl inspects and operates a running multi-tenant gateway.

It provides read-only views over the tenant cache and config sync state,
plus manual eviction and sync triggers.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&gatewayURL, "gateway-url",
		getEnvOrDefault("OPENCLAW_GATEWAY_URL", "http://localhost:8080"),
		"Gateway ops API URL")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "output", "table", "Output format: json|table")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
}

func initClient() api.Client {
	return api.NewHTTPClient(gatewayURL)
}

func Execute() error {
	client := initClient()

	rootCmd.AddCommand(newStatsCmd(client))
	rootCmd.AddCommand(newTenantCmd(client))
	rootCmd.AddCommand(newSyncCmd(client))
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd.Execute()
}

func SetVersion(v, c, d string) {
	version = v
	commit = c
	buildDate = d
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
