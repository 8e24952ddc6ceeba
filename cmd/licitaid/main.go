package main

import (
	"fmt"
	"os"

	"github.com/cloo-solutions/licitai/internal/cli"
	"github.com/cloo-solutions/licitai/internal/cli/admin"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "licitaid",
		Short: "Licitai daemon and admin CLI",
		Long:  "Licitai daemon for serving the tender assistant and loading tender exports",
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.IngestCmd())
	rootCmd.AddCommand(admin.UploadCmd())
	rootCmd.AddCommand(admin.SchemaCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
