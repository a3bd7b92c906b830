package main

import (
	"fmt"

	"github.com/jpalmerr/averager/config"
	"github.com/spf13/cobra"
)

// validateCmd validates a config file without starting the server.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate an averager configuration file without starting the server.

This command parses the YAML or TOML, expands environment variables, applies
defaults and validates all fields. It's useful for CI/CD pipelines or
pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  averager validate -c config.yaml
  averager validate --config /etc/averager/config.toml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	fmt.Printf("Config is valid!\n")
	fmt.Printf("  Port:          %d\n", cfg.Port)
	fmt.Printf("  Poll interval: %s\n", cfg.PollInterval.Duration())
	fmt.Printf("  Cooldown:      %s\n", cfg.Cooldown.Duration())
	fmt.Printf("  Source:        %s [%v, %v]\n", cfg.Source.URL, *cfg.Source.Min, *cfg.Source.Max)
	fmt.Printf("  Autostart:     %t\n", cfg.Enabled())

	return nil
}
