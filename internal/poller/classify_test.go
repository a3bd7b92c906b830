package poller

import (
	"net/http"
	"strings"
	"testing"
)

func TestClassify(t *testing.T) {
	src := Source{URL: DefaultSourceURL, Min: 0, Max: 100}
	isRateLimit := NewBackoff("5", 0).IsRateLimitCode

	tests := []struct {
		name       string
		statusCode int
		body       string
		wantKind   Kind
		wantValue  float64
		wantCode   string
	}{
		{
			name:       "success",
			statusCode: http.StatusOK,
			body:       `[{"status":"success","min":0,"max":100,"random":42}]`,
			wantKind:   KindSuccess,
			wantValue:  42,
		},
		{
			name:       "success at range bounds",
			statusCode: http.StatusOK,
			body:       `[{"status":"success","min":0,"max":100,"random":100}]`,
			wantKind:   KindSuccess,
			wantValue:  100,
		},
		{
			name:       "success with extra keys",
			statusCode: http.StatusOK,
			body:       `[{"status":"success","min":0,"max":100,"random":7,"extra":"ignored"}]`,
			wantKind:   KindSuccess,
			wantValue:  7,
		},
		{
			name:       "rate limited",
			statusCode: http.StatusOK,
			body:       `[{"status":"error","code":"5","reason":"Reached maximum queries in the last second..."}]`,
			wantKind:   KindRateLimited,
			wantCode:   "5",
		},
		{
			name:       "rate limited on non-2xx",
			statusCode: http.StatusTooManyRequests,
			body:       `[{"status":"error","code":"5","reason":"slow down"}]`,
			wantKind:   KindRateLimited,
			wantCode:   "5",
		},
		{
			name:       "api error",
			statusCode: http.StatusOK,
			body:       `[{"status":"error","code":"7","reason":"Cannot connect to our database."}]`,
			wantKind:   KindAPIError,
			wantCode:   "7",
		},
		{
			name:       "api error on 500",
			statusCode: http.StatusInternalServerError,
			body:       `[{"status":"error","code":"3","reason":"boom"}]`,
			wantKind:   KindAPIError,
			wantCode:   "3",
		},
		{
			name:       "non-2xx plain text",
			statusCode: http.StatusBadGateway,
			body:       `bad gateway`,
			wantKind:   KindTransportError,
		},
		{
			name:       "non-2xx empty body",
			statusCode: http.StatusServiceUnavailable,
			wantKind:   KindTransportError,
		},
		{
			name:       "not json",
			statusCode: http.StatusOK,
			body:       `<html>`,
			wantKind:   KindValidationError,
		},
		{
			name:       "bare object instead of array",
			statusCode: http.StatusOK,
			body:       `{"status":"success","min":0,"max":100,"random":42}`,
			wantKind:   KindValidationError,
		},
		{
			name:       "empty array",
			statusCode: http.StatusOK,
			body:       `[]`,
			wantKind:   KindValidationError,
		},
		{
			name:       "two elements",
			statusCode: http.StatusOK,
			body:       `[{"status":"success","min":0,"max":100,"random":1},{"status":"success","min":0,"max":100,"random":2}]`,
			wantKind:   KindValidationError,
		},
		{
			name:       "unknown status",
			statusCode: http.StatusOK,
			body:       `[{"status":"pending"}]`,
			wantKind:   KindValidationError,
		},
		{
			name:       "missing status",
			statusCode: http.StatusOK,
			body:       `[{"random":42}]`,
			wantKind:   KindValidationError,
		},
		{
			name:       "success missing random",
			statusCode: http.StatusOK,
			body:       `[{"status":"success","min":0,"max":100}]`,
			wantKind:   KindValidationError,
		},
		{
			name:       "random as string",
			statusCode: http.StatusOK,
			body:       `[{"status":"success","min":0,"max":100,"random":"42"}]`,
			wantKind:   KindValidationError,
		},
		{
			name:       "random out of range",
			statusCode: http.StatusOK,
			body:       `[{"status":"success","min":0,"max":1000,"random":500}]`,
			wantKind:   KindValidationError,
		},
		{
			name:       "error missing reason",
			statusCode: http.StatusOK,
			body:       `[{"status":"error","code":"7"}]`,
			wantKind:   KindValidationError,
		},
		{
			name:       "error code as number",
			statusCode: http.StatusOK,
			body:       `[{"status":"error","code":5,"reason":"x"}]`,
			wantKind:   KindValidationError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.statusCode, []byte(tt.body), src, isRateLimit)

			if got.Kind != tt.wantKind {
				t.Fatalf("Kind = %v, want %v (err: %v)", got.Kind, tt.wantKind, got.Err)
			}
			if got.Value != tt.wantValue {
				t.Errorf("Value = %v, want %v", got.Value, tt.wantValue)
			}
			if got.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", got.Code, tt.wantCode)
			}
			if tt.wantKind == KindTransportError || tt.wantKind == KindValidationError {
				if got.Err == nil {
					t.Error("Err = nil, want non-nil")
				}
			}
		})
	}
}

func TestClassify_CustomRateLimitCode(t *testing.T) {
	src := Source{Min: 0, Max: 100}
	body := []byte(`[{"status":"error","code":"5","reason":"x"}]`)

	got := Classify(http.StatusOK, body, src, NewBackoff("429", 0).IsRateLimitCode)
	if got.Kind != KindAPIError {
		t.Errorf("Kind = %v, want %v", got.Kind, KindAPIError)
	}

	got = Classify(http.StatusOK, body, src, nil)
	if got.Kind != KindAPIError {
		t.Errorf("Kind with nil predicate = %v, want %v", got.Kind, KindAPIError)
	}
}

func TestClassify_TransportErrorSnippet(t *testing.T) {
	body := []byte(strings.Repeat("a", 1000))
	got := Classify(http.StatusBadGateway, body, Source{Max: 100}, nil)

	if got.Kind != KindTransportError {
		t.Fatalf("Kind = %v, want %v", got.Kind, KindTransportError)
	}
	msg := got.Err.Error()
	if !strings.HasPrefix(msg, "unexpected status 502: ") {
		t.Errorf("Err = %q, want unexpected status prefix", msg)
	}
	if len(msg) > len("unexpected status 502: ")+maxBodySnippet {
		t.Errorf("len(Err) = %d, want snippet capped at %d", len(msg), maxBodySnippet)
	}
}

func TestOutcome_AsError(t *testing.T) {
	if err := Success(1).AsError(); err != nil {
		t.Errorf("Success.AsError() = %v, want nil", err)
	}
	if err := RateLimited("5", "slow").AsError(); err == nil || !strings.Contains(err.Error(), "code 5") {
		t.Errorf("RateLimited.AsError() = %v", err)
	}
	if err := APIError("7", "db down").AsError(); err == nil || !strings.Contains(err.Error(), "db down") {
		t.Errorf("APIError.AsError() = %v", err)
	}
	if err := (Outcome{Kind: KindTransportError}).AsError(); err == nil {
		t.Error("TransportError without Err should still describe itself")
	}
}
