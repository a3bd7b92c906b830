package averager

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestWithOutcomeCallback_InvokedOnFetch(t *testing.T) {
	src := newScriptedSource(t, csrngSuccess50)

	var callCount atomic.Int32
	avg, err := New(
		WithSourceURL(src.URL),
		WithOutcomeCallback(func(r Result) { callCount.Add(1) }),
		WithPollingInterval(100*time.Millisecond),
		WithLogger(testLogger()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	avg.StartPolling(ctx)
	defer avg.StopPolling()

	waitFor(t, "a callback", func() bool { return callCount.Load() > 0 })
}

func TestWithOutcomeCallback_ReceivesCorrectFields(t *testing.T) {
	src := newScriptedSource(t, csrngSuccess50, csrngSuccess30, csrngAPIError, csrngRateLimit, csrngMalformed, csrngOutOfRange)

	var mu sync.Mutex
	var results []Result

	avg, err := New(
		WithSourceURL(src.URL),
		WithOutcomeCallback(func(r Result) {
			mu.Lock()
			results = append(results, r)
			mu.Unlock()
		}),
		WithPollingInterval(100*time.Millisecond),
		WithCooldown(100*time.Millisecond),
		WithLogger(testLogger()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	avg.StartPolling(ctx)

	waitFor(t, "five outcomes", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(results) >= 5
	})
	avg.StopPolling()

	mu.Lock()
	defer mu.Unlock()

	first := results[0]
	if first.Kind != OutcomeSuccess {
		t.Errorf("results[0].Kind = %v, want %v", first.Kind, OutcomeSuccess)
	}
	if first.Value != 30 {
		t.Errorf("results[0].Value = %v, want 30", first.Value)
	}
	if first.StatusCode != 200 {
		t.Errorf("results[0].StatusCode = %d, want 200", first.StatusCode)
	}
	if first.Latency <= 0 {
		t.Errorf("results[0].Latency = %v, want > 0", first.Latency)
	}
	if first.CheckedAt.IsZero() {
		t.Error("results[0].CheckedAt should be set")
	}

	second := results[1]
	if second.Kind != OutcomeAPIError || second.Code != "7" || second.Reason != "Cannot connect to our database." {
		t.Errorf("results[1] = %+v, want api error 7", second)
	}

	third := results[2]
	if third.Kind != OutcomeRateLimited || third.Code != "5" {
		t.Errorf("results[2] = %+v, want rate limited 5", third)
	}

	fourth := results[3]
	if fourth.Kind != OutcomeValidationError || fourth.Err == nil {
		t.Errorf("results[3] = %+v, want validation error", fourth)
	}

	fifth := results[4]
	if fifth.Kind != OutcomeValidationError || fifth.Err == nil {
		t.Errorf("results[4] = %+v, want validation error for out-of-range value", fifth)
	}
}

func TestWithOutcomeCallback_CanStopPolling(t *testing.T) {
	src := newScriptedSource(t, csrngRateLimit)

	var avg *Averager
	stopped := make(chan struct{})
	var once sync.Once

	avg, err := New(
		WithSourceURL(src.URL),
		WithOutcomeCallback(func(r Result) {
			if r.Kind == OutcomeRateLimited {
				avg.StopPolling()
				once.Do(func() { close(stopped) })
			}
		}),
		WithPollingInterval(100*time.Millisecond),
		WithLogger(testLogger()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	avg.StartPolling(ctx)
	defer avg.StopPolling()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatalf("StopPolling from outcome callback did not return; state = %s", avg.State())
	}

	if avg.State() != StateStopped {
		t.Errorf("State() = %q, want %q", avg.State(), StateStopped)
	}

	// no attempt is scheduled once the callback has stopped polling
	calls := src.Calls()
	time.Sleep(300 * time.Millisecond)
	if src.Calls() != calls {
		t.Errorf("source calls = %d after stop, want %d", src.Calls(), calls)
	}

	// polling can be restarted afterwards
	avg.StartPolling(ctx)
	waitFor(t, "a fetch after restart", func() bool { return src.Calls() > calls })
}

func TestWithOutcomeCallback_PanicRecovery(t *testing.T) {
	src := newScriptedSource(t, csrngSuccess50)

	var normalCalled atomic.Bool

	// use a logger that captures output to verify panic was logged
	var logBuf syncBuffer
	logger := slog.New(slog.NewTextHandler(&logBuf, nil))

	avg, err := New(
		WithSourceURL(src.URL),
		WithOutcomeCallback(func(r Result) { panic("intentional test panic") }),
		WithOutcomeCallback(func(r Result) { normalCalled.Store(true) }), // should still be called after panic
		WithLogger(logger),
		WithPollingInterval(100*time.Millisecond),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	avg.StartPolling(ctx)

	waitFor(t, "second callback", normalCalled.Load)
	waitFor(t, "a second fetch", func() bool { return src.Calls() >= 2 })
	avg.StopPolling()

	if !strings.Contains(logBuf.String(), "outcome callback panicked") {
		t.Error("panic should have been logged")
	}
	if avg.Average() != 50 {
		t.Errorf("Average() = %v, want 50", avg.Average())
	}
}

func TestWithOutcomeCallback_ExecutionOrder(t *testing.T) {
	src := newScriptedSource(t, csrngSuccess50)

	var order []int
	var mu sync.Mutex
	record := func(n int) func(Result) {
		return func(Result) {
			mu.Lock()
			order = append(order, n)
			mu.Unlock()
		}
	}

	avg, err := New(
		WithSourceURL(src.URL),
		WithOutcomeCallback(record(1)),
		WithOutcomeCallback(record(2)),
		WithOutcomeCallback(record(3)),
		WithPollingInterval(100*time.Millisecond),
		WithLogger(testLogger()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	avg.StartPolling(ctx)
	waitFor(t, "two rounds", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) >= 6
	})
	avg.StopPolling()

	mu.Lock()
	defer mu.Unlock()

	// verify order is always 1, 2, 3, 1, 2, 3, ...
	for i := 0; i < len(order); i++ {
		expected := (i % 3) + 1
		if order[i] != expected {
			t.Errorf("order[%d] = %d, want %d (callbacks should execute in registration order)", i, order[i], expected)
		}
	}
}

func TestWithOutcomeCallback_TransportError(t *testing.T) {
	var result Result
	var mu sync.Mutex
	done := make(chan struct{})

	avg, err := New(
		WithSourceURL("http://localhost:1"), // port 1 should fail
		WithOutcomeCallback(func(r Result) {
			mu.Lock()
			defer mu.Unlock()
			if result.Kind == "" {
				result = r
				close(done)
			}
		}),
		WithLogger(testLogger()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	avg.StartPolling(ctx)
	defer avg.StopPolling()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for callback")
	}

	mu.Lock()
	defer mu.Unlock()

	if result.Kind != OutcomeTransportError {
		t.Errorf("Kind = %q, want %q for unreachable source", result.Kind, OutcomeTransportError)
	}
	if result.Err == nil {
		t.Error("Err should not be nil for unreachable source")
	}
	if result.StatusCode != 0 {
		t.Errorf("StatusCode = %d, want 0", result.StatusCode)
	}
}

// syncBuffer is a bytes.Buffer safe for the poll goroutine and the test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
