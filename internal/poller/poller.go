package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultInterval is the pause between settled attempts while running.
const DefaultInterval = time.Second

// State is the lifecycle state of a [Poller].
type State string

const (
	// StateStopped means no work is scheduled.
	StateStopped State = "stopped"

	// StateRunning means an attempt is in flight or armed on the interval.
	StateRunning State = "running"

	// StateBackingOff means scheduling is suspended until the cooldown elapses.
	StateBackingOff State = "backing_off"
)

// String implements fmt.Stringer.
func (s State) String() string {
	return string(s)
}

// Sink receives accepted sample values in fetch-completion order.
type Sink interface {
	Append(v float64)
}

// Config holds the collaborators and timing of a [Poller].
type Config struct {
	// Fetcher performs one classified request per attempt. Required.
	Fetcher Fetcher

	// Sink receives successful values. Required.
	Sink Sink

	// Backoff is the rate-limit policy. Defaults to NewBackoff("", 0).
	Backoff *Backoff

	// Interval is the pause after each settled attempt. Defaults to 1s.
	Interval time.Duration

	// Clock drives the interval and cooldown timers. Defaults to RealClock().
	Clock Clock

	// Logger receives lifecycle events. Defaults to slog.Default().
	Logger *slog.Logger

	// OnOutcome, if set, is called from the poll goroutine after every
	// attempt that was not cut short by Stop. It may call Stop and Start.
	OnOutcome func(Outcome)

	// OnStateChange, if set, is called on every transition with the poller's
	// lock held. It must not call back into the Poller.
	OnStateChange func(State)
}

// Poller drives fetch attempts for one source.
//
// Attempts are strictly serial: the next one is armed only after the
// previous one settles, so at most one request is in flight. A rate-limit
// outcome moves the poller to [StateBackingOff] for the backoff cooldown,
// after which it returns to [StateRunning] and fetches immediately.
//
// All methods are safe for concurrent use.
type Poller struct {
	fetcher       Fetcher
	sink          Sink
	backoff       *Backoff
	interval      time.Duration
	clock         Clock
	logger        *slog.Logger
	onOutcome     func(Outcome)
	onStateChange func(State)

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	done   chan struct{}

	// inCallback is the done channel of the loop currently running
	// onOutcome; Stop must not wait on it.
	inCallback chan struct{}
}

// NewPoller creates a stopped [Poller].
func NewPoller(cfg Config) (*Poller, error) {
	if cfg.Fetcher == nil {
		return nil, errors.New("fetcher is required")
	}
	if cfg.Sink == nil {
		return nil, errors.New("sink is required")
	}
	if cfg.Interval < 0 {
		return nil, fmt.Errorf("interval cannot be negative, got %s", cfg.Interval)
	}

	p := &Poller{
		fetcher:       cfg.Fetcher,
		sink:          cfg.Sink,
		backoff:       cfg.Backoff,
		interval:      cfg.Interval,
		clock:         cfg.Clock,
		logger:        cfg.Logger,
		onOutcome:     cfg.OnOutcome,
		onStateChange: cfg.OnStateChange,
		state:         StateStopped,
	}
	if p.backoff == nil {
		p.backoff = NewBackoff("", 0)
	}
	if p.interval == 0 {
		p.interval = DefaultInterval
	}
	if p.clock == nil {
		p.clock = RealClock()
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p, nil
}

// State returns the current lifecycle state.
func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Interval returns the pause between settled attempts.
func (p *Poller) Interval() time.Duration {
	return p.interval
}

// Backoff returns the rate-limit policy.
func (p *Poller) Backoff() *Backoff {
	return p.backoff
}

// Start begins polling in a background goroutine and returns immediately.
//
// The first attempt runs at once. Start is a no-op unless the poller is
// stopped, so repeated calls never create a second schedule. Cancelling
// ctx has the same effect as [Poller.Stop], and a ctx that is already done
// leaves the poller stopped. If ctx is nil, context.Background() is used.
func (p *Poller) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	if ctx.Err() != nil {
		return
	}

	p.mu.Lock()
	if p.state != StateStopped {
		p.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done
	p.setStateLocked(StateRunning)
	p.mu.Unlock()

	p.logger.Info("poller started", "interval", p.interval.String())

	go p.run(runCtx, done)
}

// Stop cancels the armed timer or cooldown and any in-flight request, then
// waits for the poll goroutine to exit. No value reaches the sink after
// Stop returns. Stop is idempotent.
//
// While an OnOutcome callback is running, Stop returns without waiting so
// the callback itself may call it; the loop exits as soon as the callback
// returns.
func (p *Poller) Stop() {
	p.mu.Lock()
	done := p.done
	if done != nil && done == p.inCallback {
		done = nil
	}
	if p.cancel != nil {
		p.cancel()
	}
	p.cancel = nil
	p.done = nil
	wasRunning := p.state != StateStopped
	p.setStateLocked(StateStopped)
	p.mu.Unlock()

	if done != nil {
		<-done
	}
	if wasRunning {
		p.logger.Info("poller stopped")
	}
}

// run is the poll loop: attempt, wait, attempt.
func (p *Poller) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer p.exited(done)

	for {
		outcome := p.attempt(ctx, done)
		if ctx.Err() != nil {
			return
		}

		wait := p.interval
		backingOff := p.backoff.ShouldBackoff(outcome)
		if backingOff {
			if !p.transition(ctx, StateRunning, StateBackingOff) {
				return
			}
			wait = p.backoff.Cooldown()
			p.logger.Info("backing off",
				"code", outcome.Code,
				"cooldown", wait.String(),
			)
		}

		if !p.sleep(ctx, wait) {
			return
		}

		if backingOff {
			if !p.transition(ctx, StateBackingOff, StateRunning) {
				return
			}
			p.logger.Info("resuming after cooldown")
		}
	}
}

// attempt performs one fetch and hands a successful value to the sink.
func (p *Poller) attempt(ctx context.Context, done chan struct{}) Outcome {
	outcome := p.safeFetch(ctx)

	if outcome.Kind == KindSuccess {
		// appends are serialised with Stop so none can land after it
		p.mu.Lock()
		if ctx.Err() == nil {
			p.sink.Append(outcome.Value)
		}
		p.mu.Unlock()
	}

	if ctx.Err() == nil && p.onOutcome != nil {
		p.notify(outcome, done)
	}
	return outcome
}

// notify runs onOutcome with the loop marked as in callback.
func (p *Poller) notify(o Outcome, done chan struct{}) {
	p.mu.Lock()
	p.inCallback = done
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		if p.inCallback == done {
			p.inCallback = nil
		}
		p.mu.Unlock()
	}()

	p.onOutcome(o)
}

// safeFetch calls the fetcher with panic recovery.
// A panic is logged with a correlation ID and reported as a transport error.
func (p *Poller) safeFetch(ctx context.Context) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()

			p.logger.Error("fetcher panic",
				"correlation_id", correlationID,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)

			outcome = TransportError(fmt.Errorf("fetcher panic (correlation_id: %s)", correlationID))
			outcome.CheckedAt = p.clock.Now()
		}
	}()
	return p.fetcher.Fetch(ctx)
}

// sleep waits for d on the clock. It returns false if ctx ended first.
func (p *Poller) sleep(ctx context.Context, d time.Duration) bool {
	timer := p.clock.NewTimer(d)
	select {
	case <-ctx.Done():
		timer.Stop()
		return false
	case <-timer.C():
		return true
	}
}

// transition moves from one state to another if the loop is still current.
func (p *Poller) transition(ctx context.Context, from, to State) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ctx.Err() != nil || p.state != from {
		return false
	}
	p.setStateLocked(to)
	return true
}

// exited resets the poller when its loop ends without Stop, e.g. because
// the parent context was cancelled.
func (p *Poller) exited(done chan struct{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done != done {
		return
	}
	if p.cancel != nil {
		p.cancel()
	}
	p.cancel = nil
	p.done = nil
	p.setStateLocked(StateStopped)
	p.logger.Info("poller stopped", "reason", "context done")
}

func (p *Poller) setStateLocked(s State) {
	if p.state == s {
		return
	}
	p.state = s
	if p.onStateChange != nil {
		p.onStateChange(s)
	}
}
