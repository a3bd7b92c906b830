package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/averager"
	"github.com/jpalmerr/averager/config"
	"github.com/spf13/cobra"
)

const (
	shutdownTimeout = 10 * time.Second
)

// newLogger creates a JSON logger for CLI use.
func newLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// serveCmd starts polling and the HTTP server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start polling and serve the average",
	Long: `Start the averager.

The server will:
  - Load configuration from the specified YAML or TOML file
  - Start polling the random number source (unless autostart is false)
  - Serve GET /random-numbers-average, the control API and the dashboard

The server runs until interrupted (Ctrl+C) or receives SIGTERM.

Example:
  averager serve -c config.yaml
  averager serve --config /etc/averager/config.toml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = serveCmd.MarkFlagRequired("config")
}

func runServe(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := newLogger(cfg.SlogLevel())

	logger.Info("config loaded",
		"source", cfg.Source.URL,
		"autostart", cfg.Enabled(),
	)
	logger.Info("starting server",
		"port", cfg.Port,
		"poll_interval", cfg.PollInterval.Duration().String(),
		"cooldown", cfg.Cooldown.Duration().String(),
	)

	opts := append(config.BuildOptions(cfg), averager.WithLogger(logger))

	avg, err := averager.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create averager: %w", err)
	}

	// set up context with signal handling - cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// start server - blocks until context cancelled
	errChan := make(chan error, 1)
	go func() {
		errChan <- avg.Start(ctx)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		logger.Info("shutdown complete", "samples", avg.SampleCount(), "average", avg.Average())
		return nil

	case <-ctx.Done():
		// signal received, wait for graceful shutdown with timeout
		select {
		case err := <-errChan:
			if err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			logger.Info("shutdown complete", "samples", avg.SampleCount(), "average", avg.Average())
			return nil
		case <-time.After(shutdownTimeout):
			logger.Warn("shutdown timed out",
				"timeout", shutdownTimeout.String(),
				"action", "forcing exit",
			)
			return nil
		}
	}
}
