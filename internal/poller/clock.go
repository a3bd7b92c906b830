package poller

import "time"

// Clock abstracts the parts of package time the [Poller] schedules with.
// Tests substitute a fake to control apparent time.
type Clock interface {
	Now() time.Time
	NewTimer(d time.Duration) Timer
}

// Timer abstracts time.Timer.
type Timer interface {
	C() <-chan time.Time
	Stop() bool
}

type realClock struct{}

type realTimer struct {
	*time.Timer
}

// RealClock returns a [Clock] backed by package time.
func RealClock() Clock {
	return realClock{}
}

// Now indirects time.Now.
func (realClock) Now() time.Time {
	return time.Now()
}

// NewTimer indirects time.NewTimer.
func (realClock) NewTimer(d time.Duration) Timer {
	return realTimer{Timer: time.NewTimer(d)}
}

// C indirects time.Timer.C.
func (t realTimer) C() <-chan time.Time {
	return t.Timer.C
}
