package main

import (
	"encoding/json"
	"log/slog"
	"math/rand"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// mockLimiter allows one request per second, like the real csrng service.
type mockLimiter struct {
	mu   sync.Mutex
	last time.Time
}

func (l *mockLimiter) allow(now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if now.Sub(l.last) < time.Second {
		return false
	}
	l.last = now
	return true
}

// StartMockRandomSource runs a csrng-style random number endpoint at
// /csrng/csrng.php. More than one request per second gets error code 5,
// and about one request in twenty fails with code 7.
// Call this in a goroutine before creating the averager.
func StartMockRandomSource(addr string) {
	limiter := &mockLimiter{}
	mux := http.NewServeMux()

	mux.HandleFunc("/csrng/csrng.php", func(w http.ResponseWriter, r *http.Request) {
		// simulate small latency variance
		time.Sleep(time.Duration(20+rand.Intn(80)) * time.Millisecond)

		w.Header().Set("Content-Type", "application/json")
		var resp map[string]any
		switch {
		case !limiter.allow(time.Now()):
			resp = map[string]any{"status": "error", "code": "5", "reason": "Reached maximum queries in the last second"}
		case rand.Intn(20) == 0:
			resp = map[string]any{"status": "error", "code": "7", "reason": "Cannot connect to our database."}
		default:
			lo, _ := strconv.Atoi(r.URL.Query().Get("min"))
			hi, err := strconv.Atoi(r.URL.Query().Get("max"))
			if err != nil || hi <= lo {
				hi = lo + 100
			}
			resp = map[string]any{"status": "success", "min": lo, "max": hi, "random": lo + rand.Intn(hi-lo+1)}
		}

		if err := json.NewEncoder(w).Encode([]map[string]any{resp}); err != nil {
			slog.Error("failed to write response", "error", err)
		}
	})

	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("mock source error", "error", err)
	}
}
