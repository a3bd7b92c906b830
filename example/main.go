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
)

func main() {
	// start mock source (see mock_server.go)
	go StartMockRandomSource(":9999")
	time.Sleep(100 * time.Millisecond)

	// polling every 500ms trips the mock's one-per-second limit, so the
	// dashboard shows the backing_off state regularly
	avg, err := averager.New(
		averager.WithSourceURL("http://localhost:9999/csrng/csrng.php"),
		averager.WithRange(0, 100),
		averager.WithPollingInterval(500*time.Millisecond),
		averager.WithCooldown(2*time.Second),
		averager.WithPort(8080),
		averager.WithTitle("Averager Demo"),
		averager.WithOutcomeCallback(func(r averager.Result) {
			if r.Kind == averager.OutcomeRateLimited {
				slog.Info("backing off", "reason", r.Reason)
			}
		}),
	)
	if err != nil {
		slog.Error("failed to create averager", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("  Averager Demo")
	fmt.Println()
	fmt.Println("  Dashboard: http://localhost:8080")
	fmt.Println("  Average:   http://localhost:8080/random-numbers-average")
	fmt.Println("  Metrics:   http://localhost:8080/metrics")
	fmt.Println()
	fmt.Println("  Press Ctrl+C to stop")
	fmt.Println()

	// set up context with signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := avg.Start(ctx); err != nil {
		slog.Error("averager error", "error", err)
		os.Exit(1)
	}

	fmt.Printf("collected %d numbers, average %.2f\n", avg.SampleCount(), avg.Average())
}
