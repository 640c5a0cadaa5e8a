package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	logLevel   string
	logFormat  string

	// rootCmd runs serve when no subcommand is given.
	rootCmd = &cobra.Command{
		Use:   "server",
		Short: "Events API server - REST CRUD for events in a JSON document",
		Long: `Events API server exposes a small REST API for managing events.

Events are kept in a single JSON document on disk and every change is
written through synchronously. The same binary also ships a client for
the API (see "server events --help").`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serveCmd.RunE(cmd, args)
		},
	}
)

// Execute runs the root command. It is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// addGlobalFlags binds the flags shared by every subcommand.
func addGlobalFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "YAML config file path (optional, env vars override it)")
	flags.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error) (default: info)")
	flags.StringVar(&logFormat, "log-format", "", "log format (json, console) (default: json)")
}

func init() {
	addGlobalFlags(rootCmd)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(healthcheckCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(loadtestCmd)
}
