package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jpalmerr/averager/internal/store"
)

const (
	// sseWriteTimeout is the maximum time allowed for a single SSE write operation.
	// This prevents goroutine leaks when clients are slow or disconnected.
	// Must be <= shutdown timeout to ensure clean shutdown.
	sseWriteTimeout = 5 * time.Second

	// shutdownTimeout bounds graceful shutdown of in-flight requests.
	shutdownTimeout = 5 * time.Second

	// defaultTitle is used when no custom title is configured.
	defaultTitle = "Averager"

	// titlePlaceholder is the marker in HTML that gets replaced with the actual title.
	titlePlaceholder = "{{.Title}}"
)

// Controller is the poller control surface the server exposes over HTTP.
type Controller interface {
	// Start begins polling. It is a no-op unless the poller is stopped.
	Start()

	// Stop halts polling and waits for the poll loop to exit.
	Stop()

	// Clear discards every collected sample.
	Clear()

	// State reports the poller state: stopped, running or backing_off.
	State() string
}

// Config holds the collaborators of a [Server].
type Config struct {
	Controller Controller
	Store      store.Store

	// Port is the TCP port to listen on. Zero lets the OS choose.
	Port int

	// Assets is the embedded filesystem containing dashboard assets (may be nil).
	Assets fs.FS

	// Title is the dashboard title (defaults to "Averager" if empty).
	Title string

	// Metrics serves GET /metrics when set.
	Metrics http.Handler

	Logger *slog.Logger
}

// Server handles HTTP requests for the averager API and dashboard.
//
// Server provides these endpoints:
//   - GET /random-numbers-average: the current average as {"average": n}
//   - GET /api/status: poller state and sample snapshot as JSON
//   - GET /api/sse: Server-Sent Events stream of snapshots
//   - POST /api/poller/start, /api/poller/stop, /api/samples/clear: control
//   - GET /metrics: Prometheus metrics (when configured)
//   - GET /: the embedded dashboard
//
// The server is designed for graceful shutdown via context cancellation.
type Server struct {
	ctrl    Controller
	store   store.Store
	port    int
	assets  fs.FS
	title   string
	metrics http.Handler
	logger  *slog.Logger

	mu         sync.Mutex
	httpServer *http.Server
	addr       net.Addr
}

// statusResponse is the body of /api/status and of the control routes.
type statusResponse struct {
	Title    string         `json:"title"`
	State    string         `json:"state"`
	Snapshot store.Snapshot `json:"snapshot"`
}

type averageResponse struct {
	Average float64 `json:"average"`
}

// NewServer creates a new HTTP [Server].
//
// The server is not started until [Server.Start] is called.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Controller == nil {
		return nil, errors.New("controller is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("store is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	title := cfg.Title
	if title == "" {
		title = defaultTitle
	}
	return &Server{
		ctrl:    cfg.Controller,
		store:   cfg.Store,
		port:    cfg.Port,
		assets:  cfg.Assets,
		title:   title,
		metrics: cfg.Metrics,
		logger:  logger,
	}, nil
}

// Handler returns the request router.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// query routes
	mux.HandleFunc("/random-numbers-average", s.handleAverage)
	mux.HandleFunc("/averageRandomNumbers", s.handleAverage)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/sse", s.handleSSE)

	// control routes
	mux.HandleFunc("/api/poller/start", s.handleControl(s.ctrl.Start))
	mux.HandleFunc("/api/poller/stop", s.handleControl(s.ctrl.Stop))
	mux.HandleFunc("/api/samples/clear", s.handleControl(s.ctrl.Clear))

	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics)
	}

	// serve dashboard assets
	if s.assets != nil {
		mux.HandleFunc("/", s.handleDashboard)
	}

	return mux
}

// Start begins serving HTTP requests in a background goroutine.
//
// Start is non-blocking and returns immediately after confirming the server
// is listening. The server will continue running until the context is
// cancelled, at which point it initiates a graceful shutdown with a 5-second
// timeout.
//
// Returns an error if the server fails to bind to the configured port.
func (s *Server) Start(ctx context.Context) error {
	// create listener first to verify port availability synchronously
	addr := fmt.Sprintf(":%d", s.port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind to port %d: %w", s.port, err)
	}

	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// BaseContext derives all request contexts from the server context.
		// When ctx is cancelled, all request contexts are also cancelled,
		// enabling graceful shutdown of long-running handlers like SSE.
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	s.mu.Lock()
	s.httpServer = httpServer
	s.addr = ln.Addr()
	s.mu.Unlock()

	s.logger.Info("http server listening", "addr", ln.Addr().String())

	go func() {
		if err := httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server error", "error", err)
		}
	}()

	// shutdown on context cancellation
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http server shutdown error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listen address, or nil before [Server.Start].
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// handleAverage answers the average query.
func (s *Server) handleAverage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, averageResponse{Average: s.store.Average()})
}

// handleStatus returns the poller state and a sample snapshot as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, s.status())
}

// handleControl wraps a control operation as a POST-only route that
// answers with the resulting status.
func (s *Server) handleControl(op func()) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		op()
		s.logger.Info("control request handled", "path", r.URL.Path, "state", s.ctrl.State())
		s.writeJSON(w, s.status())
	}
}

func (s *Server) status() statusResponse {
	return statusResponse{
		Title:    s.title,
		State:    s.ctrl.State(),
		Snapshot: s.store.Snapshot(),
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// handleDashboard serves the main dashboard page.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	if s.assets == nil {
		http.Error(w, "Dashboard not found", http.StatusInternalServerError)
		return
	}

	content, err := fs.ReadFile(s.assets, "assets/index.html")
	if err != nil {
		http.Error(w, "Dashboard not found", http.StatusInternalServerError)
		return
	}

	// apply title substitution with HTML escaping to prevent XSS
	safeTitle := html.EscapeString(s.title)
	rendered := strings.ReplaceAll(string(content), titlePlaceholder, safeTitle)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err = w.Write([]byte(rendered)); err != nil {
		s.logger.Error("failed to write dashboard response", "error", err)
	}
}

// handleSSE streams sample snapshots via Server-Sent Events.
//
// The handler uses write deadlines to prevent goroutine leaks when clients are
// slow or disconnected. Without deadlines, a blocked Fprintf call would prevent
// the handler from detecting context cancellation or channel closure.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	rc := http.NewResponseController(w)

	// track if write deadlines are supported (may not be for some ResponseWriter impls)
	deadlinesSupported := true

	writeAndFlush := func(data []byte) error {
		if deadlinesSupported {
			if err := rc.SetWriteDeadline(time.Now().Add(sseWriteTimeout)); err != nil {
				s.logger.Warn("sse write deadlines not supported", "error", err)
				deadlinesSupported = false
			}
		}

		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}

		return rc.Flush()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	ch := s.store.Subscribe()
	defer s.store.Unsubscribe(ch)

	// send the current snapshot first
	if data, err := json.Marshal(s.store.Snapshot()); err == nil {
		if err := writeAndFlush(data); err != nil {
			return
		}
	}

	for {
		select {
		case snap, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(snap)
			if err != nil {
				continue
			}
			if err := writeAndFlush(data); err != nil {
				return
			}

		case <-r.Context().Done():
			// request context is derived from server context via BaseContext,
			// so this fires on both client disconnect AND server shutdown
			return
		}
	}
}
