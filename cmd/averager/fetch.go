package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jpalmerr/averager/config"
	"github.com/jpalmerr/averager/internal/poller"
	"github.com/spf13/cobra"
)

// fetchCmd performs one request against the source and prints its classification.
var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch and classify a single number",
	Long: `Send one request to the random number source and print how it was
classified: success, rate_limited, api_error, transport_error or
validation_error. Nothing is stored.

Source settings come from the config file when one is given, otherwise from
the defaults. --url overrides the configured source url.

Exit codes:
  0 - The source returned a number
  1 - Any other outcome

Example:
  averager fetch
  averager fetch -c config.yaml
  averager fetch --url http://localhost:7000/rng`,
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().StringP("config", "c", "", "path to config file")
	fetchCmd.Flags().String("url", "", "source url, overriding the config")
}

func runFetch(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	urlOverride, _ := cmd.Flags().GetString("url")

	var (
		cfg *config.Config
		err error
	)
	if configFile != "" {
		cfg, err = config.Load(configFile)
	} else {
		cfg, err = config.Parse(nil)
	}
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if urlOverride != "" {
		if err := config.ValidateSourceURL(urlOverride); err != nil {
			return fmt.Errorf("invalid --url: %w", err)
		}
		cfg.Source.URL = urlOverride
	}

	logger := newLogger(slog.LevelWarn)
	source := poller.Source{URL: cfg.Source.URL, Min: *cfg.Source.Min, Max: *cfg.Source.Max}
	backoff := poller.NewBackoff(cfg.Source.RateLimitCode, cfg.Cooldown.Duration())

	fetcher, err := poller.NewHTTPFetcher(poller.NewClient(cfg.Source.Timeout.Duration()), source, backoff, logger)
	if err != nil {
		return fmt.Errorf("invalid source: %w", err)
	}
	defer fetcher.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	o := fetcher.Fetch(ctx)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Outcome:  %s\n", o.Kind)
	fmt.Fprintf(out, "  Status:  %d\n", o.StatusCode)
	fmt.Fprintf(out, "  Latency: %s\n", o.Latency)
	switch o.Kind {
	case poller.KindSuccess:
		fmt.Fprintf(out, "  Value:   %v\n", o.Value)
	case poller.KindRateLimited:
		fmt.Fprintf(out, "  Code:    %s\n", o.Code)
		fmt.Fprintf(out, "  Reason:  %s\n", o.Reason)
		fmt.Fprintf(out, "  Cooldown would be %s\n", backoff.Cooldown())
	case poller.KindAPIError:
		fmt.Fprintf(out, "  Code:    %s\n", o.Code)
		fmt.Fprintf(out, "  Reason:  %s\n", o.Reason)
	}

	if err := o.AsError(); err != nil {
		return fmt.Errorf("%s: %w", o.Kind, err)
	}
	return nil
}
