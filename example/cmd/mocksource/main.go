// Standalone mock random number source for testing the CLI.
//
// Usage:
//
//	go run ./example/cmd/mocksource
//
// Then in another terminal:
//
//	go run ./cmd/averager serve -c example/config.yaml
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"
)

func main() {
	fmt.Println("Mock random source starting on :9999")
	fmt.Println("More than one request per second returns error code 5")
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	var (
		mu   sync.Mutex
		last time.Time
	)

	http.HandleFunc("/csrng/csrng.php", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		now := time.Now()
		limited := now.Sub(last) < time.Second
		if !limited {
			last = now
		}
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if limited {
			slog.Info("rate limited", "remote", r.RemoteAddr)
			_ = json.NewEncoder(w).Encode([]map[string]any{{
				"status": "error",
				"code":   "5",
				"reason": "Reached maximum queries in the last second",
			}})
			return
		}

		lo, _ := strconv.Atoi(r.URL.Query().Get("min"))
		hi, err := strconv.Atoi(r.URL.Query().Get("max"))
		if err != nil || hi <= lo {
			hi = lo + 100
		}
		_ = json.NewEncoder(w).Encode([]map[string]any{{
			"status": "success",
			"min":    lo,
			"max":    hi,
			"random": lo + rand.Intn(hi-lo+1),
		}})
	})

	if err := http.ListenAndServe(":9999", nil); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
