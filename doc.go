// Package averager samples a rate-limited random-number source and serves the
// running average of everything it has collected.
//
// A background poller fetches one number per polling interval from a
// csrng-style endpoint. Successful values are kept in memory; the average is
// answered at GET /random-numbers-average as {"average": n}. When the source
// reports its rate-limit error code, the poller backs off for a cooldown and
// then resumes. Other failures are logged and polling continues.
//
// # Quick Start
//
//	avg, _ := averager.New()
//
//	// Set up graceful shutdown on SIGINT/SIGTERM
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	avg.Start(ctx) // blocks until context is cancelled
//
// # Configuration
//
// Averager uses the functional options pattern for configuration:
//
//	avg, err := averager.New(
//	    averager.WithSourceURL("https://csrng.net/csrng/csrng.php"),
//	    averager.WithRange(0, 100),
//	    averager.WithPollingInterval(time.Second),
//	    averager.WithCooldown(2 * time.Second),
//	    averager.WithPort(9090),
//	)
//
// # Control
//
// The poller can be controlled from code or over HTTP:
//
//   - [Averager.StartPolling] or POST /api/poller/start
//   - [Averager.StopPolling] or POST /api/poller/stop
//   - [Averager.ClearSamples] or POST /api/samples/clear
//   - [Averager.Average] or GET /random-numbers-average
//
// # Architecture
//
// Averager consists of several internal packages (under internal/):
//
//   - internal/poller: fetcher, response classification, backoff policy and
//     the stopped/running/backing-off state machine
//   - internal/store: in-memory samples with running aggregates and pub/sub
//   - internal/metrics: Prometheus instruments
//   - internal/server: HTTP API, Server-Sent Events and dashboard serving
//   - dashboard: Embedded web UI assets
//
// The internal packages are not part of the public API and may change
// without notice.
package averager
