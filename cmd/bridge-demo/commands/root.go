// Package commands implements the bridge-demo CLI's subcommands.
package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "bridge-demo",
	Short: "Native bridge engine demo harness",
	Long: `bridge-demo drives the native bridge run loop outside of any real
host/plugin process, for manual testing and demonstration.

Use "bridge-demo [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a config file (default: built-in defaults + NATIVEBRIDGE_* env)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(handlesCmd)
	rootCmd.AddCommand(versionCmd)
}
