package main

import (
	"fmt"
	"os"

	"github.com/cloo-solutions/licitai/internal/cli"
	"github.com/cloo-solutions/licitai/internal/cli/client"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "licitai",
		Short: "Licitai CLI - ask the tender assistant from the terminal",
		Long: `Licitai CLI talks to a running licitaid server.

Environment variables:
  LICITAI_API_URL       API base URL (default: http://localhost:8080)
  LICITAI_SESSION       Session id to continue (default: remembered in config)
  LICITAI_USER          Name shown to the assistant
  LICITAI_ADMIN_TOKEN   Token for admin commands`,
		Version: version,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides env and config)")
	rootCmd.PersistentFlags().String("admin-token", "", "Admin token (overrides env and config)")
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.ChatCmd())
	rootCmd.AddCommand(client.AskCmd())
	rootCmd.AddCommand(client.HistoryCmd())
	rootCmd.AddCommand(client.ResetCmd())
	rootCmd.AddCommand(client.ConfigCmd())

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
