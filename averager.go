package averager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/jpalmerr/averager/dashboard"
	"github.com/jpalmerr/averager/internal/metrics"
	"github.com/jpalmerr/averager/internal/poller"
	"github.com/jpalmerr/averager/internal/server"
	"github.com/jpalmerr/averager/internal/store"
)

const (
	defaultPollingInterval = poller.DefaultInterval
	defaultCooldown        = poller.DefaultCooldown
	defaultRequestTimeout  = poller.DefaultRequestTimeout
	defaultPort            = 8080
	defaultMin             = 0
	defaultMax             = 100

	// minPollingInterval keeps the poller well clear of busy-looping.
	minPollingInterval = 100 * time.Millisecond
)

// DefaultSourceURL is the public csrng endpoint polled when no source is set.
const DefaultSourceURL = poller.DefaultSourceURL

// DefaultRateLimitCode is the source error code that triggers the cooldown.
const DefaultRateLimitCode = poller.DefaultRateLimitCode

// knownStates lists every poller state for the state gauge.
var knownStates = []string{
	string(StateStopped),
	string(StateRunning),
	string(StateBackingOff),
}

// Averager is the main orchestrator for sampling and serving the average.
//
// Averager polls a rate-limited random-number source in the background,
// keeps every accepted sample in memory, and answers queries for their
// running average over HTTP. It is created using [New] with functional
// options and started with [Averager.Start].
//
// The typical lifecycle is:
//
//	avg, err := averager.New(averager.WithPollingInterval(time.Second))
//	if err != nil {
//	    slog.Error("failed to create averager", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	avg.Start(ctx) // blocks until context cancelled
//
// SDK users that do not need the HTTP facade can drive the poller directly
// with [Averager.StartPolling], [Averager.StopPolling],
// [Averager.ClearSamples] and [Averager.Average].
type Averager struct {
	title     string
	source    poller.Source
	port      int
	autoStart bool
	logger    *slog.Logger
	callbacks []func(Result)

	store   *store.MemoryStore
	fetcher *poller.HTTPFetcher
	poller  *poller.Poller
	metrics *metrics.Metrics
}

// New creates a new [Averager] instance with the given options.
//
// Options have sensible defaults:
//   - Source: https://csrng.net/csrng/csrng.php with range [0, 100]
//   - Polling interval: 1 second
//   - Cooldown after a rate limit: 2 seconds
//   - Rate-limit code: "5"
//   - Request timeout: 5 seconds
//   - Port: 8080
//   - Auto start: true
//
// Returns an error if any option is invalid.
//
// Example:
//
//	avg, err := averager.New(
//	    averager.WithRange(1, 6),
//	    averager.WithPollingInterval(2 * time.Second),
//	    averager.WithPort(9090),
//	)
func New(opts ...Option) (*Averager, error) {
	cfg := &avgConfig{
		sourceURL:       DefaultSourceURL,
		min:             defaultMin,
		max:             defaultMax,
		pollingInterval: defaultPollingInterval,
		cooldown:        defaultCooldown,
		rateLimitCode:   DefaultRateLimitCode,
		requestTimeout:  defaultRequestTimeout,
		port:            defaultPort,
		autoStart:       true,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.port < 1 || cfg.port > 65535 {
		return nil, fmt.Errorf("port must be between 1 and 65535, got %d", cfg.port)
	}
	if cfg.min >= cfg.max {
		return nil, fmt.Errorf("min %v must be less than max %v", cfg.min, cfg.max)
	}

	// default to slog.Default() if no logger provided
	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	m, err := metrics.New(cfg.registry)
	if err != nil {
		return nil, err
	}

	source := poller.Source{URL: cfg.sourceURL, Min: cfg.min, Max: cfg.max}
	backoff := poller.NewBackoff(cfg.rateLimitCode, cfg.cooldown)

	fetcher, err := poller.NewHTTPFetcher(poller.NewClient(cfg.requestTimeout), source, backoff, logger)
	if err != nil {
		return nil, fmt.Errorf("invalid source: %w", err)
	}

	a := &Averager{
		title:     cfg.title,
		source:    source,
		port:      cfg.port,
		autoStart: cfg.autoStart,
		logger:    logger,
		callbacks: cfg.outcomeCallbacks,
		store:     store.NewMemoryStore(),
		fetcher:   fetcher,
		metrics:   m,
	}

	p, err := poller.NewPoller(poller.Config{
		Fetcher:   fetcher,
		Sink:      a.store,
		Backoff:   backoff,
		Interval:  cfg.pollingInterval,
		Logger:    logger,
		OnOutcome: a.handleOutcome,
		OnStateChange: func(s poller.State) {
			m.SetState(s.String(), knownStates...)
		},
	})
	if err != nil {
		return nil, err
	}
	a.poller = p
	m.SetState(p.State().String(), knownStates...)

	return a, nil
}

// Start begins polling (when auto start is enabled) and serves the HTTP API
// and dashboard.
//
// Start is a blocking call that runs until the provided context is cancelled.
// During execution:
//
//   - The poller starts immediately if auto start is enabled
//   - The HTTP server starts on the configured port
//   - GET /random-numbers-average answers the running average
//   - The dashboard is available at http://localhost:<port>
//
// Polling started over HTTP is bound to ctx as well, so cancelling ctx always
// stops the poller. Returns nil on graceful shutdown. Returns an error if the
// HTTP server fails to start.
func (a *Averager) Start(ctx context.Context) error {
	a.logger.Info("averager starting",
		"source", a.source.URL,
		"min", a.source.Min,
		"max", a.source.Max,
	)
	a.logger.Info("polling configured",
		"interval", a.poller.Interval().String(),
		"cooldown", a.poller.Backoff().Cooldown().String(),
		"rate_limit_code", a.poller.Backoff().Code(),
	)

	// check if context already cancelled
	if ctx.Err() != nil {
		return nil
	}

	httpServer, err := server.NewServer(server.Config{
		Controller: &controller{ctx: ctx, a: a},
		Store:      a.store,
		Port:       a.port,
		Assets:     dashboard.Assets,
		Title:      a.title,
		Metrics:    a.metrics.Handler(),
		Logger:     a.logger,
	})
	if err != nil {
		return err
	}
	if err := httpServer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	a.logger.Info("dashboard available", "url", fmt.Sprintf("http://localhost:%d", a.port))

	if a.autoStart {
		a.StartPolling(ctx)
	}

	g, gctx := errgroup.WithContext(ctx)

	// keep the sample gauges in step with the store
	g.Go(func() error {
		a.watchSamples(gctx)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.StopPolling()
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	a.fetcher.Close()
	a.logger.Info("averager stopped")
	return nil
}

// StartPolling starts the background poller. It is a no-op unless the
// poller is stopped. Cancelling ctx stops polling.
func (a *Averager) StartPolling(ctx context.Context) {
	a.poller.Start(ctx)
}

// StopPolling stops the poller, aborting any in-flight request. No sample is
// appended after StopPolling returns. Collected samples are kept.
func (a *Averager) StopPolling() {
	a.poller.Stop()
}

// ClearSamples discards every collected sample. Polling is unaffected.
func (a *Averager) ClearSamples() {
	a.store.Clear()
	a.logger.Info("samples cleared")
}

// Average returns the arithmetic mean of the collected samples, or 0 when
// there are none.
func (a *Averager) Average() float64 {
	return a.store.Average()
}

// Samples returns a copy of the collected samples in fetch-completion order.
func (a *Averager) Samples() []float64 {
	return a.store.Samples()
}

// SampleCount returns the number of collected samples without copying them.
func (a *Averager) SampleCount() int {
	return a.store.Len()
}

// Stats returns the current sample statistics.
func (a *Averager) Stats() Stats {
	return statsFromSnapshot(a.store.Snapshot())
}

// State returns the poller state.
func (a *Averager) State() State {
	return State(a.poller.State())
}

// Port returns the configured HTTP port.
func (a *Averager) Port() int {
	return a.port
}

// PollingInterval returns the pause between settled fetch attempts.
func (a *Averager) PollingInterval() time.Duration {
	return a.poller.Interval()
}

// Cooldown returns the pause applied after a rate-limit outcome.
func (a *Averager) Cooldown() time.Duration {
	return a.poller.Backoff().Cooldown()
}

// SourceURL returns the full request URL, including the range parameters.
func (a *Averager) SourceURL() string {
	u, err := a.source.RequestURL()
	if err != nil {
		// validated in New
		return a.source.URL
	}
	return u
}

// Registry returns the Prometheus registry the averager's metrics live on.
func (a *Averager) Registry() *prometheus.Registry {
	return a.metrics.Registry()
}

// handleOutcome runs on the poll goroutine after every attempt.
func (a *Averager) handleOutcome(o poller.Outcome) {
	a.metrics.ObserveOutcome(o.Kind.String(), o.Latency)

	if len(a.callbacks) == 0 {
		return
	}
	result := resultFromOutcome(o)
	for _, cb := range a.callbacks {
		invokeCallbackSafe(cb, result, a.logger)
	}
}

// watchSamples mirrors store changes into the sample gauges until ctx ends.
func (a *Averager) watchSamples(ctx context.Context) {
	ch := a.store.Subscribe()
	defer a.store.Unsubscribe(ch)

	snap := a.store.Snapshot()
	a.metrics.SetSamples(snap.Count, snap.Average)

	for {
		select {
		case snap, ok := <-ch:
			if !ok {
				return
			}
			a.metrics.SetSamples(snap.Count, snap.Average)
		case <-ctx.Done():
			return
		}
	}
}

// controller adapts the Averager to the HTTP control surface. Polling
// started over HTTP is bound to the context passed to Start.
type controller struct {
	ctx context.Context
	a   *Averager
}

func (c *controller) Start()        { c.a.StartPolling(c.ctx) }
func (c *controller) Stop()         { c.a.StopPolling() }
func (c *controller) Clear()        { c.a.ClearSamples() }
func (c *controller) State() string { return c.a.State().String() }
