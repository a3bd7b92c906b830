// Package main is the entry point for the averager CLI.
//
// The averager can be run either as a library (SDK) or as a standalone binary
// with a YAML or TOML configuration file. This CLI provides the standalone
// binary approach.
//
// Usage:
//
//	averager serve -c config.yaml    # Start polling and serve the average
//	averager validate -c config.yaml # Validate configuration
//	averager fetch                   # Fetch and classify a single number
//	averager version                 # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information - set by GoReleaser at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "averager",
	Short: "Average of random numbers from a remote source",
	Long: `Averager polls a remote random number source, keeps every number it
receives, and serves their running average over HTTP.

When the source answers with its rate-limit code, polling pauses for the
configured cooldown before resuming.

Quick start:
  1. Create a config file (averager.yaml)
  2. Run: averager serve -c averager.yaml
  3. GET http://localhost:8080/random-numbers-average

Example config:
  port: 8080
  poll_interval: 1s
  cooldown: 2s
  source:
    url: https://csrng.net/csrng/csrng.php
    min: 0
    max: 100`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error, just exit with code 1
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this averager binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("averager %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
