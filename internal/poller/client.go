package poller

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/timeout"
)

const maxResponseBodySize = 1 << 20 // 1MB

// DefaultRequestTimeout bounds a single request to the source.
const DefaultRequestTimeout = 5 * time.Second

// a single source is polled serially, so the pool stays small
const (
	defaultMaxIdleConns        = 4
	defaultMaxIdleConnsPerHost = 2
	defaultMaxConnsPerHost     = 2
	defaultIdleConnTimeout     = 60 * time.Second
)

// Response holds the raw result of an HTTP request made by [Client].
type Response struct {
	// Body contains the HTTP response body, limited to 1MB.
	Body []byte

	// StatusCode is the HTTP status code.
	// Zero if the request failed before receiving a response.
	StatusCode int

	// Latency is the total time taken for the request.
	Latency time.Duration

	// Error contains any error that occurred during the request.
	// nil indicates the request completed (though status may indicate an error).
	Error error
}

// Client is an HTTP client wrapper for polling the random-number source.
//
// Each request runs inside a failsafe-go timeout policy, so a hung source
// surfaces as a [timeout.ErrExceeded] error instead of stalling the poll loop.
// Response bodies are read in full inside the policy and limited to 1MB.
type Client struct {
	httpClient *http.Client
	timeout    time.Duration
}

// NewClient creates a new [Client] with the given per-request timeout.
// A non-positive timeout uses [DefaultRequestTimeout].
func NewClient(requestTimeout time.Duration) *Client {
	if requestTimeout <= 0 {
		requestTimeout = DefaultRequestTimeout
	}
	return &Client{
		httpClient: &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        defaultMaxIdleConns,
				MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
				MaxConnsPerHost:     defaultMaxConnsPerHost,
				IdleConnTimeout:     defaultIdleConnTimeout,
			},
		},
		timeout: requestTimeout,
	}
}

// Timeout returns the per-request time limit.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// Fetch performs a GET request and returns a structured [Response].
//
// Fetch always returns a Response; errors are captured in the Error field
// rather than returned separately.
func (c *Client) Fetch(ctx context.Context, url string) Response {
	start := time.Now()

	executor := failsafe.NewExecutor[Response](timeout.With[Response](c.timeout)).WithContext(ctx)
	resp, err := executor.GetWithExecution(func(exec failsafe.Execution[Response]) (Response, error) {
		return c.get(exec.Context(), url)
	})
	resp.Latency = time.Since(start)
	if err != nil && resp.Error == nil {
		resp.Error = err
	}
	return resp
}

func (c *Client) get(ctx context.Context, url string) (Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		err = fmt.Errorf("failed to create request: %w", err)
		return Response{Error: err}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		err = fmt.Errorf("request failed: %w", err)
		return Response{Error: err}, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		err = fmt.Errorf("failed to read response body: %w", err)
		return Response{StatusCode: resp.StatusCode, Error: err}, err
	}

	return Response{Body: body, StatusCode: resp.StatusCode}, nil
}

// Close closes all idle connections in the client's connection pool.
// Safe to call multiple times and on a nil receiver.
func (c *Client) Close() {
	if c == nil || c.httpClient == nil {
		return
	}
	if transport, ok := c.httpClient.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
}
