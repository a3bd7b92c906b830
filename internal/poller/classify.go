package poller

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	statusSuccess = "success"
	statusError   = "error"

	// cap on the body excerpt carried in transport errors
	maxBodySnippet = 256
)

// successShape is {"status":"success","min":n,"max":n,"random":n}.
type successShape struct {
	Min    *float64 `json:"min"`
	Max    *float64 `json:"max"`
	Random *float64 `json:"random"`
}

// errorShape is {"status":"error","code":"...","reason":"..."}.
type errorShape struct {
	Code   *string `json:"code"`
	Reason *string `json:"reason"`
}

// Classify turns one HTTP response from the source into an [Outcome].
//
// The body must be a JSON array holding exactly one success or error
// object. An error object is honoured whatever the HTTP status; any other
// non-2xx response is a transport error, and a 2xx body of neither shape
// is a validation error. isRateLimit decides which error codes mean the
// source's per-second quota was exceeded.
func Classify(statusCode int, body []byte, src Source, isRateLimit func(code string) bool) Outcome {
	ok2xx := statusCode >= 200 && statusCode < 300

	element, status, err := decodeElement(body)
	if err == nil && status == statusError {
		var shape errorShape
		if err = json.Unmarshal(element, &shape); err == nil {
			if shape.Code == nil || shape.Reason == nil {
				err = errors.New("error response missing code or reason")
			} else if isRateLimit != nil && isRateLimit(*shape.Code) {
				return RateLimited(*shape.Code, *shape.Reason)
			} else {
				return APIError(*shape.Code, *shape.Reason)
			}
		}
	}

	if !ok2xx {
		return TransportError(unexpectedStatus(statusCode, body))
	}
	if err != nil {
		return ValidationError(fmt.Errorf("invalid response: %w", err))
	}

	if status != statusSuccess {
		return ValidationError(fmt.Errorf("invalid response: unknown status %q", status))
	}

	var shape successShape
	if err := json.Unmarshal(element, &shape); err != nil {
		return ValidationError(fmt.Errorf("invalid response: %w", err))
	}
	if shape.Min == nil || shape.Max == nil || shape.Random == nil {
		return ValidationError(errors.New("invalid response: success response missing min, max or random"))
	}

	v := *shape.Random
	if v < src.Min || v > src.Max {
		return ValidationError(fmt.Errorf("invalid response: random %v outside requested range [%v, %v]", v, src.Min, src.Max))
	}

	return Success(v)
}

// decodeElement unwraps the one-element array and reads its status field.
func decodeElement(body []byte) (json.RawMessage, string, error) {
	var elements []json.RawMessage
	if err := json.Unmarshal(body, &elements); err != nil {
		return nil, "", fmt.Errorf("expected a JSON array: %w", err)
	}
	if len(elements) != 1 {
		return nil, "", fmt.Errorf("expected exactly one element, got %d", len(elements))
	}

	var head struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(elements[0], &head); err != nil {
		return nil, "", fmt.Errorf("expected an object with a status: %w", err)
	}
	if head.Status == "" {
		return nil, "", errors.New("missing status")
	}

	return elements[0], head.Status, nil
}

func unexpectedStatus(statusCode int, body []byte) error {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return fmt.Errorf("unexpected status %d", statusCode)
	}
	if len(text) > maxBodySnippet {
		text = text[:maxBodySnippet]
	}
	return fmt.Errorf("unexpected status %d: %s", statusCode, text)
}
