package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var (
	serverURL  string
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "arrdash",
	Short: "CLI client for the arrdash media dashboard",
	Long: `arrdash - CLI client for the arrdash media dashboard

Shows the status of Sonarr, Radarr, the indexer and Transmission,
and manages their items through the arrdashd daemon.

Run 'arrdashd' to start the daemon.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	defaultServer := "http://localhost:8585"
	if env := os.Getenv("ARRDASH_SERVER"); env != "" {
		defaultServer = env
	}
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", defaultServer, "Server URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	rootCmd.Version = version
	rootCmd.SetVersionTemplate("arrdash {{.Version}}\n")
}
