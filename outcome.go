package averager

import (
	"log/slog"
	"time"

	"github.com/jpalmerr/averager/internal/poller"
	"github.com/jpalmerr/averager/internal/store"
)

// OutcomeKind classifies a single fetch attempt.
type OutcomeKind string

const (
	// OutcomeSuccess means the source returned a number; it was added to the samples.
	OutcomeSuccess OutcomeKind = "success"

	// OutcomeRateLimited means the source refused the request for exceeding its
	// per-second quota. Polling pauses for the cooldown.
	OutcomeRateLimited OutcomeKind = "rate_limited"

	// OutcomeAPIError means the source reported any other error code.
	OutcomeAPIError OutcomeKind = "api_error"

	// OutcomeTransportError means the request failed: connection, timeout or
	// unexpected HTTP status.
	OutcomeTransportError OutcomeKind = "transport_error"

	// OutcomeValidationError means the response body had an unrecognised shape.
	OutcomeValidationError OutcomeKind = "validation_error"
)

// String implements fmt.Stringer.
func (k OutcomeKind) String() string {
	return string(k)
}

// State is the lifecycle state of the background poller.
type State string

const (
	// StateStopped means no fetches are scheduled.
	StateStopped State = "stopped"

	// StateRunning means the poller is fetching on the polling interval.
	StateRunning State = "running"

	// StateBackingOff means the poller is waiting out a rate-limit cooldown.
	StateBackingOff State = "backing_off"
)

// String implements fmt.Stringer.
func (s State) String() string {
	return string(s)
}

// Result holds the outcome of one fetch attempt.
//
// Result is passed by value to outcome callbacks; callbacks may keep it.
type Result struct {
	// Kind classifies the attempt.
	Kind OutcomeKind

	// Value is the fetched number. Only set for OutcomeSuccess.
	Value float64

	// Code and Reason are the source's error code and message.
	// Only set for OutcomeRateLimited and OutcomeAPIError.
	Code   string
	Reason string

	// Err describes transport and validation failures.
	Err error

	// StatusCode is the HTTP status code returned by the source.
	// Zero if the request failed before receiving a response.
	StatusCode int

	// Latency is the time taken to complete the HTTP request.
	Latency time.Duration

	// CheckedAt is when the attempt completed.
	CheckedAt time.Time
}

// Stats summarises the collected samples.
type Stats struct {
	Count     int
	Average   float64
	Min       float64
	Max       float64
	Last      float64
	Median    float64
	P95       float64
	UpdatedAt time.Time
}

func resultFromOutcome(o poller.Outcome) Result {
	return Result{
		Kind:       OutcomeKind(o.Kind),
		Value:      o.Value,
		Code:       o.Code,
		Reason:     o.Reason,
		Err:        o.Err,
		StatusCode: o.StatusCode,
		Latency:    o.Latency,
		CheckedAt:  o.CheckedAt,
	}
}

func statsFromSnapshot(s store.Snapshot) Stats {
	return Stats(s)
}

// invokeCallbackSafe calls an outcome callback with panic recovery.
// Panics are logged but do not propagate.
func invokeCallbackSafe(cb func(Result), result Result, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("outcome callback panicked",
				"panic", r,
				"outcome", result.Kind.String(),
			)
		}
	}()
	cb(result)
}
