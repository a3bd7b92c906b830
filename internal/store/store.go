package store

import "time"

// Snapshot is a consistent view of the sample buffer at one point in time.
//
// Snapshot is the storage representation served by the REST API and the
// SSE stream. Count is zero and every statistic is zero when the buffer
// is empty.
type Snapshot struct {
	// Count is the number of samples held.
	Count int `json:"count"`

	// Average is the arithmetic mean of all samples, or 0 when empty.
	Average float64 `json:"average"`

	// Min and Max are the smallest and largest samples.
	Min float64 `json:"min"`
	Max float64 `json:"max"`

	// Last is the most recently appended sample.
	Last float64 `json:"last"`

	// Median and P95 are estimated from a t-digest.
	Median float64 `json:"median"`
	P95    float64 `json:"p95"`

	// UpdatedAt is when the buffer last changed. Zero if it never has.
	UpdatedAt time.Time `json:"updated_at"`
}

// Store defines the sample buffer and its aggregation.
//
// Store implementations must be safe for concurrent access. Reads observe
// the buffer entirely before or entirely after any single Append or Clear.
type Store interface {
	// Append adds a sample. Range validation is the caller's job.
	Append(v float64)

	// Clear empties the buffer.
	Clear()

	// Average returns the mean of the buffer, or 0 when it is empty.
	Average() float64

	// Samples returns a copy of the buffer in append order.
	Samples() []float64

	// Snapshot returns the current statistics.
	Snapshot() Snapshot

	// Subscribe returns a channel that receives a snapshot after every change.
	// The returned channel has a buffer; slow consumers may miss updates.
	// Caller must call Unsubscribe when done to prevent resource leaks.
	Subscribe() <-chan Snapshot

	// Unsubscribe removes a subscription and closes the channel.
	// Safe to call with a channel that was already unsubscribed.
	Unsubscribe(ch <-chan Snapshot)
}
