package averager

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// avgConfig holds mutable state during Averager construction.
type avgConfig struct {
	title            string
	sourceURL        string
	min              float64
	max              float64
	pollingInterval  time.Duration
	cooldown         time.Duration
	rateLimitCode    string
	requestTimeout   time.Duration
	port             int
	autoStart        bool
	logger           *slog.Logger
	outcomeCallbacks []func(Result)
	registry         *prometheus.Registry
}

// Option is a function that configures an [Averager] instance during construction.
//
// Option implements the functional options pattern, allowing optional
// configuration to be passed to [New] in a type-safe, extensible way.
// Options return an error if validation fails.
type Option func(*avgConfig) error

// WithSourceURL sets the random-number source endpoint.
//
// The min and max query parameters are added from [WithRange]; any other
// query parameters in rawURL are kept. Defaults to [DefaultSourceURL].
//
// Returns an error if the URL is not an absolute http or https URL.
func WithSourceURL(rawURL string) Option {
	return func(cfg *avgConfig) error {
		u, err := url.Parse(rawURL)
		if err != nil {
			return fmt.Errorf("invalid source url: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("source url must use http or https, got %q", u.Scheme)
		}
		if u.Host == "" {
			return errors.New("source url must include a host")
		}
		cfg.sourceURL = rawURL
		return nil
	}
}

// WithRange sets the inclusive range requested from the source.
// Values outside the range are rejected as validation errors.
// Defaults to [0, 100].
//
// Returns an error if min is not less than max.
func WithRange(min, max float64) Option {
	return func(cfg *avgConfig) error {
		if min >= max {
			return fmt.Errorf("min %v must be less than max %v", min, max)
		}
		cfg.min = min
		cfg.max = max
		return nil
	}
}

// WithPollingInterval sets the pause between settled fetch attempts.
//
// The interval is measured from the end of one attempt to the start of the
// next, so requests never overlap. Defaults to 1 second.
//
// Example:
//
//	avg, err := averager.New(
//	    averager.WithPollingInterval(2 * time.Second),
//	)
//
// Returns an error if the duration is below 100ms.
func WithPollingInterval(d time.Duration) Option {
	return func(cfg *avgConfig) error {
		if d < minPollingInterval {
			return fmt.Errorf("polling interval must be at least %s, got %s", minPollingInterval, d)
		}
		cfg.pollingInterval = d
		return nil
	}
}

// WithCooldown sets how long polling pauses after the source reports a
// rate limit. Defaults to 2 seconds.
//
// Returns an error if the duration is zero or negative.
func WithCooldown(d time.Duration) Option {
	return func(cfg *avgConfig) error {
		if d <= 0 {
			return errors.New("cooldown must be positive")
		}
		cfg.cooldown = d
		return nil
	}
}

// WithRateLimitCode sets the source error code that means "too many
// requests". Defaults to "5".
//
// Returns an error if the code is empty.
func WithRateLimitCode(code string) Option {
	return func(cfg *avgConfig) error {
		if code == "" {
			return errors.New("rate limit code cannot be empty")
		}
		cfg.rateLimitCode = code
		return nil
	}
}

// WithRequestTimeout bounds each request to the source. Defaults to 5 seconds.
//
// Returns an error if the duration is below 100ms.
func WithRequestTimeout(d time.Duration) Option {
	return func(cfg *avgConfig) error {
		if d < 100*time.Millisecond {
			return fmt.Errorf("request timeout must be at least 100ms, got %s", d)
		}
		cfg.requestTimeout = d
		return nil
	}
}

// WithPort sets the HTTP port for the API and dashboard.
//
// The API will be available at http://localhost:<port>.
// Defaults to 8080 if not specified.
//
// Returns an error if the port is outside the valid range (1-65535).
func WithPort(port int) Option {
	return func(cfg *avgConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("port must be between 1 and 65535")
		}
		cfg.port = port
		return nil
	}
}

// WithLogger sets a custom [slog.Logger] for the Averager instance.
//
// This allows SDK consumers to control where logs are written and in what
// format. If not specified, [slog.Default] is used.
//
// Example:
//
//	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
//	avg, err := averager.New(averager.WithLogger(logger))
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *avgConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithTitle sets the dashboard title displayed in the browser tab and header.
//
// If not specified, defaults to "Averager".
func WithTitle(title string) Option {
	return func(cfg *avgConfig) error {
		cfg.title = title
		return nil
	}
}

// WithAutoStart controls whether [Averager.Start] begins polling on its own.
// When disabled, polling starts via POST /api/poller/start or
// [Averager.StartPolling]. Defaults to true.
func WithAutoStart(enabled bool) Option {
	return func(cfg *avgConfig) error {
		cfg.autoStart = enabled
		return nil
	}
}

// WithOutcomeCallback registers a function to be called after every fetch attempt.
//
// The callback receives a [Result] with the classified outcome, the fetched
// value (on success), the source's error code and reason (on rate limit or
// API error), and the request latency.
//
// Multiple callbacks may be registered by calling WithOutcomeCallback multiple
// times; they execute in registration order.
//
// IMPORTANT: Callbacks run on the poll goroutine and delay the next attempt
// while they execute. Long-running work should be dispatched elsewhere.
// A callback may call [Averager.StopPolling]; it returns without waiting and
// polling ends once the callback returns. Panics within callbacks are
// recovered and logged.
//
// Example:
//
//	var avg *averager.Averager
//	avg, err := averager.New(
//	    averager.WithOutcomeCallback(func(r averager.Result) {
//	        if r.Kind == averager.OutcomeRateLimited {
//	            log.Printf("rate limited: %s", r.Reason)
//	            avg.StopPolling()
//	        }
//	    }),
//	)
//
// Nil callbacks are silently ignored.
func WithOutcomeCallback(cb func(Result)) Option {
	return func(cfg *avgConfig) error {
		if cb == nil {
			return nil // no-op for nil callback (safe to call)
		}
		cfg.outcomeCallbacks = append(cfg.outcomeCallbacks, cb)
		return nil
	}
}

// WithMetricsRegistry registers the averager's Prometheus collectors on reg
// instead of a private registry. GET /metrics serves reg.
//
// Returns an error if reg is nil.
func WithMetricsRegistry(reg *prometheus.Registry) Option {
	return func(cfg *avgConfig) error {
		if reg == nil {
			return errors.New("metrics registry cannot be nil")
		}
		cfg.registry = reg
		return nil
	}
}
