package poller

import "time"

const (
	// DefaultRateLimitCode is the csrng error code for "maximum queries
	// reached in the last second".
	DefaultRateLimitCode = "5"

	// DefaultCooldown is how long polling pauses after a rate-limit outcome.
	DefaultCooldown = 2 * time.Second
)

// Backoff holds the rate-limit policy: which source error code means
// "too many requests" and how long to wait before polling again.
//
// Backoff carries no timing state of its own; the [Poller] owns the
// pause and resume. Every rate-limit code maps to the same cooldown.
type Backoff struct {
	code     string
	cooldown time.Duration
}

// NewBackoff creates a [Backoff]. An empty code or a non-positive cooldown
// fall back to [DefaultRateLimitCode] and [DefaultCooldown].
func NewBackoff(code string, cooldown time.Duration) *Backoff {
	if code == "" {
		code = DefaultRateLimitCode
	}
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Backoff{code: code, cooldown: cooldown}
}

// IsRateLimitCode reports whether a source error code is the rate-limit sentinel.
func (b *Backoff) IsRateLimitCode(code string) bool {
	return code == b.code
}

// ShouldBackoff reports whether the outcome must suspend polling.
func (b *Backoff) ShouldBackoff(o Outcome) bool {
	return o.Kind == KindRateLimited
}

// Cooldown returns the pause applied after a rate-limit outcome.
func (b *Backoff) Cooldown() time.Duration {
	return b.cooldown
}

// Code returns the configured rate-limit sentinel.
func (b *Backoff) Code() string {
	return b.code
}
