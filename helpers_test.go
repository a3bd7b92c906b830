package averager

import (
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// testLogger returns a logger that discards all output for clean test output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const (
	csrngSuccess50  = `[{"status":"success","min":0,"max":100,"random":50}]`
	csrngSuccess30  = `[{"status":"success","min":0,"max":100,"random":30}]`
	csrngAPIError   = `[{"status":"error","code":"7","reason":"Cannot connect to our database."}]`
	csrngRateLimit  = `[{"status":"error","code":"5","reason":"Reached maximum queries in the last second..."}]`
	csrngMalformed  = `[{"status":"success"}]`
	csrngOutOfRange = `[{"status":"success","min":0,"max":100,"random":500}]`
)

// scriptedSource is a csrng-style test server that replays a fixed list of
// bodies, then repeats the fallback.
type scriptedSource struct {
	*httptest.Server

	mu       sync.Mutex
	bodies   []string
	fallback string
	calls    int
}

func newScriptedSource(t *testing.T, fallback string, bodies ...string) *scriptedSource {
	t.Helper()
	s := &scriptedSource{bodies: bodies, fallback: fallback}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls++
		body := s.fallback
		if len(s.bodies) > 0 {
			body = s.bodies[0]
			s.bodies = s.bodies[1:]
		}
		s.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *scriptedSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// freePort asks the OS for an unused TCP port.
func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to find a free port: %v", err)
	}
	defer func() { _ = ln.Close() }()
	return ln.Addr().(*net.TCPAddr).Port
}
