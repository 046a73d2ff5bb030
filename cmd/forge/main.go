// Package main is the entry point for the forge CLI.
//
// Usage:
//
//	forge serve -c forge.yaml    # Start the todo service
//	forge validate -c forge.yaml # Validate configuration
//	forge version                # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information, set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "forge",
	Short: "A reactive state store service",
	Long: `forge serves a todo list held in a reactive state store.

Every state change is re-rendered as JSON, streamed to websocket clients
and exported as Prometheus metrics.

Quick start:
  1. Create a config file (forge.yaml)
  2. Run: forge serve -c forge.yaml
  3. curl -X POST -d '{"args":["buy milk"]}' http://localhost:8080/api/actions/add

Example config:
  port: 8080
  log_level: info
  seed_file: seed.yaml
  watch_seed: true`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "forge %s\n", version)
		fmt.Fprintf(out, "  commit: %s\n", commit)
		fmt.Fprintf(out, "  built:  %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error
		os.Exit(1)
	}
}
