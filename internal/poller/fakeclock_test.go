package poller

import (
	"sync"
	"testing"
	"time"
)

// fakeClock is a manually advanced Clock. Every NewTimer call is signalled
// on armed so tests can wait for the poll loop to settle.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
	armed  chan time.Duration
}

type fakeTimer struct {
	clock *fakeClock
	at    time.Time
	c     chan time.Time
	done  bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{
		now:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		armed: make(chan time.Duration, 1024),
	}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) NewTimer(d time.Duration) Timer {
	c.mu.Lock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), c: make(chan time.Time, 1)}
	c.timers = append(c.timers, t)
	c.fireLocked()
	c.mu.Unlock()

	c.armed <- d
	return t
}

// Advance moves the clock forward and fires every timer that has come due.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	c.fireLocked()
}

func (c *fakeClock) fireLocked() {
	pending := c.timers[:0]
	for _, t := range c.timers {
		if t.done {
			continue
		}
		if t.at.After(c.now) {
			pending = append(pending, t)
			continue
		}
		t.done = true
		t.c <- c.now
	}
	c.timers = pending
}

// waitArmed blocks until the poll loop has armed its next timer and
// returns the requested duration.
func (c *fakeClock) waitArmed(t *testing.T) time.Duration {
	t.Helper()
	select {
	case d := <-c.armed:
		return d
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for the poller to arm a timer")
		return 0
	}
}

// assertNotArmed checks that no new timer is armed within a short window.
func (c *fakeClock) assertNotArmed(t *testing.T) {
	t.Helper()
	select {
	case d := <-c.armed:
		t.Fatalf("unexpected timer armed for %s", d)
	case <-time.After(30 * time.Millisecond):
	}
}

func (t *fakeTimer) C() <-chan time.Time {
	return t.c
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.done
	t.done = true
	return active
}
