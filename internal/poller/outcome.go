package poller

import (
	"fmt"
	"time"
)

// Kind identifies which variant of [Outcome] a fetch produced.
type Kind string

const (
	// KindSuccess means the source returned a value inside the requested range.
	KindSuccess Kind = "success"

	// KindRateLimited means the source reported the rate-limit error code.
	KindRateLimited Kind = "rate_limited"

	// KindAPIError means the source reported any other error code.
	KindAPIError Kind = "api_error"

	// KindTransportError means the request failed before a usable body arrived.
	KindTransportError Kind = "transport_error"

	// KindValidationError means the body matched neither known response shape.
	KindValidationError Kind = "validation_error"
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	return string(k)
}

// Outcome is the classified result of one fetch attempt.
//
// Only the fields relevant to Kind are populated: Value for success,
// Code and Reason for rate-limit and API errors, Err for transport and
// validation errors. StatusCode, Latency and CheckedAt are set whenever
// the information is available.
type Outcome struct {
	Kind       Kind
	Value      float64
	Code       string
	Reason     string
	Err        error
	StatusCode int
	Latency    time.Duration
	CheckedAt  time.Time
}

// Success returns a success outcome carrying v.
func Success(v float64) Outcome {
	return Outcome{Kind: KindSuccess, Value: v}
}

// RateLimited returns a rate-limit outcome for the given source code.
func RateLimited(code, reason string) Outcome {
	return Outcome{Kind: KindRateLimited, Code: code, Reason: reason}
}

// APIError returns an outcome for a source-reported error other than rate limiting.
func APIError(code, reason string) Outcome {
	return Outcome{Kind: KindAPIError, Code: code, Reason: reason}
}

// TransportError returns an outcome for a network or I/O failure.
func TransportError(err error) Outcome {
	return Outcome{Kind: KindTransportError, Err: err}
}

// ValidationError returns an outcome for a body of unrecognised shape.
func ValidationError(err error) Outcome {
	return Outcome{Kind: KindValidationError, Err: err}
}

// AsError describes a non-success outcome, or returns nil for success.
func (o Outcome) AsError() error {
	switch o.Kind {
	case KindSuccess:
		return nil
	case KindRateLimited:
		return fmt.Errorf("rate limited (code %s): %s", o.Code, o.Reason)
	case KindAPIError:
		return fmt.Errorf("source error (code %s): %s", o.Code, o.Reason)
	default:
		if o.Err != nil {
			return o.Err
		}
		return fmt.Errorf("%s", o.Kind)
	}
}
