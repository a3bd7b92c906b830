package poller

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"
)

// DefaultSourceURL is the csrng lite endpoint.
const DefaultSourceURL = "https://csrng.net/csrng/csrng.php"

// Fetcher performs one request to the source and classifies the result.
//
// Implementations must not touch the sample store or poller state; their
// only side effects are the network call and logging.
type Fetcher interface {
	Fetch(ctx context.Context) Outcome
}

// Source describes the remote random-number endpoint and the value range
// requested from it.
type Source struct {
	// URL is the endpoint without the min/max query parameters.
	URL string

	// Min and Max bound the requested value (inclusive).
	Min float64
	Max float64
}

// RequestURL returns URL with the min and max query parameters applied.
// Existing query parameters are preserved.
func (s Source) RequestURL() (string, error) {
	u, err := url.Parse(s.URL)
	if err != nil {
		return "", fmt.Errorf("invalid source url: %w", err)
	}
	q := u.Query()
	q.Set("min", strconv.FormatFloat(s.Min, 'f', -1, 64))
	q.Set("max", strconv.FormatFloat(s.Max, 'f', -1, 64))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// HTTPFetcher is the [Fetcher] for the csrng-style HTTP source.
type HTTPFetcher struct {
	client     *Client
	source     Source
	requestURL string
	backoff    *Backoff
	logger     *slog.Logger
}

// NewHTTPFetcher creates an [HTTPFetcher]. The backoff decides which source
// error codes classify as rate limited.
func NewHTTPFetcher(client *Client, source Source, backoff *Backoff, logger *slog.Logger) (*HTTPFetcher, error) {
	if client == nil {
		return nil, fmt.Errorf("client is required")
	}
	if backoff == nil {
		return nil, fmt.Errorf("backoff is required")
	}
	if source.Min > source.Max {
		return nil, fmt.Errorf("min %v must not exceed max %v", source.Min, source.Max)
	}
	requestURL, err := source.RequestURL()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPFetcher{
		client:     client,
		source:     source,
		requestURL: requestURL,
		backoff:    backoff,
		logger:     logger,
	}, nil
}

// Fetch performs exactly one GET against the source.
func (f *HTTPFetcher) Fetch(ctx context.Context) Outcome {
	resp := f.client.Fetch(ctx, f.requestURL)

	var outcome Outcome
	if resp.Error != nil {
		outcome = TransportError(resp.Error)
	} else {
		outcome = Classify(resp.StatusCode, resp.Body, f.source, f.backoff.IsRateLimitCode)
	}
	outcome.StatusCode = resp.StatusCode
	outcome.Latency = resp.Latency
	outcome.CheckedAt = time.Now()

	f.log(outcome)
	return outcome
}

func (f *HTTPFetcher) log(o Outcome) {
	attrs := []any{
		"outcome", o.Kind.String(),
		"status_code", o.StatusCode,
		"latency_ms", o.Latency.Milliseconds(),
	}

	switch o.Kind {
	case KindSuccess:
		f.logger.Debug("number fetched", append(attrs, "value", o.Value)...)
	case KindRateLimited:
		f.logger.Info("source rate limit reached", append(attrs, "code", o.Code, "reason", o.Reason)...)
	case KindAPIError:
		f.logger.Warn("source returned an error", append(attrs, "code", o.Code, "reason", o.Reason)...)
	default:
		f.logger.Warn("fetch failed", append(attrs, "error", o.AsError().Error())...)
	}
}

// Close releases the underlying client's idle connections.
func (f *HTTPFetcher) Close() {
	f.client.Close()
}
