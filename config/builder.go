package config

import (
	"github.com/jpalmerr/averager"
)

// BuildOptions converts parsed configuration into SDK options.
//
// The logger is not part of the file configuration; callers append
// [averager.WithLogger] themselves. Values are passed through unchanged, so
// the SDK's own validation still applies.
func BuildOptions(cfg *Config) []averager.Option {
	opts := []averager.Option{
		averager.WithPort(cfg.Port),
		averager.WithPollingInterval(cfg.PollInterval.Duration()),
		averager.WithCooldown(cfg.Cooldown.Duration()),
		averager.WithSourceURL(cfg.Source.URL),
		averager.WithRequestTimeout(cfg.Source.Timeout.Duration()),
		averager.WithRateLimitCode(cfg.Source.RateLimitCode),
		averager.WithAutoStart(cfg.Enabled()),
	}

	if cfg.Source.Min != nil && cfg.Source.Max != nil {
		opts = append(opts, averager.WithRange(*cfg.Source.Min, *cfg.Source.Max))
	}

	if cfg.Title != "" {
		opts = append(opts, averager.WithTitle(cfg.Title))
	}

	return opts
}
