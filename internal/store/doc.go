// Package store holds the in-memory sample buffer and its aggregation.
//
// The main components are:
//
//   - [Store]: Interface for appending, clearing, and reading samples
//   - [MemoryStore]: Mutex-guarded implementation with a running sum and
//     snapshot pub/sub
//   - [Snapshot]: Consistent statistics view (count, average, quantiles)
//
// Samples are kept in fetch-completion order. The average of an empty
// buffer is defined as 0.
package store
