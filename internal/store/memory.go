package store

import (
	"sync"
	"time"

	"github.com/influxdata/tdigest"
)

const (
	subscriberBuffer  = 100
	digestCompression = 100
)

// MemoryStore is an in-memory implementation of [Store].
//
// The average is maintained incrementally from a running sum, so Average
// is O(1) and Clear resets everything in O(1). Subscribers receive a fresh
// [Snapshot] after every Append or Clear via buffered channels; if a
// subscriber's buffer is full the update is dropped for that subscriber.
type MemoryStore struct {
	mu        sync.RWMutex
	values    []float64
	sum       float64
	min       float64
	max       float64
	digest    *tdigest.TDigest
	updatedAt time.Time

	subscribers map[chan Snapshot]struct{}
	subMu       sync.RWMutex
}

// NewMemoryStore creates an empty [MemoryStore].
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		digest:      tdigest.NewWithCompression(digestCompression),
		subscribers: make(map[chan Snapshot]struct{}),
	}
}

// Append adds v to the end of the buffer and notifies subscribers.
func (m *MemoryStore) Append(v float64) {
	m.mu.Lock()
	if len(m.values) == 0 {
		m.min, m.max = v, v
	} else {
		m.min = min(m.min, v)
		m.max = max(m.max, v)
	}
	m.values = append(m.values, v)
	m.sum += v
	m.digest.Add(v, 1)
	m.updatedAt = time.Now()
	// notify under the lock so subscribers see changes in order
	m.notifySubscribers(m.snapshotLocked())
	m.mu.Unlock()
}

// Clear empties the buffer and notifies subscribers.
func (m *MemoryStore) Clear() {
	m.mu.Lock()
	m.values = nil
	m.sum = 0
	m.min, m.max = 0, 0
	m.digest = tdigest.NewWithCompression(digestCompression)
	m.updatedAt = time.Now()
	// notify under the lock so subscribers see changes in order
	m.notifySubscribers(m.snapshotLocked())
	m.mu.Unlock()
}

// Average returns the mean of the buffer, or 0 when it is empty.
func (m *MemoryStore) Average() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.averageLocked()
}

// Len returns the number of samples held.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.values)
}

// Samples returns a copy of the buffer in append order.
func (m *MemoryStore) Samples() []float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]float64(nil), m.values...)
}

// Snapshot returns the current statistics.
func (m *MemoryStore) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

func (m *MemoryStore) averageLocked() float64 {
	if len(m.values) == 0 {
		return 0
	}
	return m.sum / float64(len(m.values))
}

func (m *MemoryStore) snapshotLocked() Snapshot {
	snap := Snapshot{
		Count:     len(m.values),
		Average:   m.averageLocked(),
		UpdatedAt: m.updatedAt,
	}
	if snap.Count == 0 {
		return snap
	}
	snap.Min = m.min
	snap.Max = m.max
	snap.Last = m.values[len(m.values)-1]
	snap.Median = m.digest.Quantile(0.5)
	snap.P95 = m.digest.Quantile(0.95)
	return snap
}

// Subscribe creates a new subscription and returns a channel for receiving snapshots.
//
// The returned channel has a buffer of 100 messages. If the buffer fills
// (slow consumer), new snapshots are dropped for this subscriber.
//
// Caller must call [MemoryStore.Unsubscribe] when done to prevent resource leaks.
func (m *MemoryStore) Subscribe() <-chan Snapshot {
	ch := make(chan Snapshot, subscriberBuffer)

	m.subMu.Lock()
	m.subscribers[ch] = struct{}{}
	m.subMu.Unlock()

	return ch
}

// Unsubscribe removes a subscription and closes its channel.
// Safe to call multiple times or with an unknown channel.
func (m *MemoryStore) Unsubscribe(ch <-chan Snapshot) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	for subCh := range m.subscribers {
		if subCh == ch {
			delete(m.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

// notifySubscribers sends without blocking; a full subscriber misses the update.
func (m *MemoryStore) notifySubscribers(snap Snapshot) {
	m.subMu.RLock()
	defer m.subMu.RUnlock()

	for ch := range m.subscribers {
		select {
		case ch <- snap:
		default:
		}
	}
}
