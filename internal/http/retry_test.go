package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{"nil", nil, ErrorTypeSuccess},
		{"canceled", context.Canceled, ErrorTypeFatal},
		{"deadline", fmt.Errorf("request: %w", context.DeadlineExceeded), ErrorTypeNetwork},
		{"dial error", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, ErrorTypeNetwork},
		{"connection refused text", errors.New("dial tcp 127.0.0.1:5000: connection refused"), ErrorTypeNetwork},
		{"unauthorized", errors.New("401 Unauthorized"), ErrorTypeCredential},
		{"expired token", errors.New("token expired"), ErrorTypeCredential},
		{"bad gateway", errors.New("502 bad gateway"), ErrorTypeRetryable},
		{"unknown", errors.New("something odd"), ErrorTypeFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyError(tt.err); got != tt.want {
				t.Errorf("ClassifyError(%v) = %s, want %s", tt.err, ErrorTypeName(got), ErrorTypeName(tt.want))
			}
		})
	}
}

func TestClassifyStatus(t *testing.T) {
	tests := map[int]ErrorType{
		200: ErrorTypeSuccess,
		400: ErrorTypeFatal,
		401: ErrorTypeCredential,
		403: ErrorTypeCredential,
		404: ErrorTypeFatal,
		429: ErrorTypeRetryable,
		500: ErrorTypeFatal,
		503: ErrorTypeRetryable,
	}
	for code, want := range tests {
		if got := ClassifyStatus(code); got != want {
			t.Errorf("ClassifyStatus(%d) = %s, want %s", code, ErrorTypeName(got), ErrorTypeName(want))
		}
	}
}

func TestCheckRetry(t *testing.T) {
	ctx := context.Background()

	retry, _ := CheckRetry(ctx, nil, errors.New("connection reset by peer"))
	if !retry {
		t.Error("expected retry on network error")
	}

	retry, _ = CheckRetry(ctx, &http.Response{StatusCode: http.StatusServiceUnavailable}, nil)
	if !retry {
		t.Error("expected retry on 503")
	}

	retry, _ = CheckRetry(ctx, &http.Response{StatusCode: http.StatusUnauthorized}, nil)
	if retry {
		t.Error("must not retry on 401")
	}

	retry, _ = CheckRetry(ctx, &http.Response{StatusCode: http.StatusBadRequest}, nil)
	if retry {
		t.Error("must not retry on 400")
	}
}

func TestCheckRetry_ContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	retry, err := CheckRetry(ctx, nil, errors.New("connection reset"))
	if retry {
		t.Error("must not retry after cancellation")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestCalculateBackoff(t *testing.T) {
	if d := CalculateBackoff(0, time.Second, time.Minute); d != 0 {
		t.Errorf("attempt 0 should not wait, got %v", d)
	}

	for attempt := 1; attempt < 40; attempt++ {
		d := CalculateBackoff(attempt, 100*time.Millisecond, 2*time.Second)
		if d < 0 || d > 2*time.Second {
			t.Fatalf("attempt %d: backoff %v outside [0, 2s]", attempt, d)
		}
	}
}

func TestBackoff_UsesJitter(t *testing.T) {
	d := Backoff(10*time.Millisecond, 50*time.Millisecond, 0, nil)
	if d < 0 || d > 20*time.Millisecond {
		t.Errorf("first retry should wait at most 2*min, got %v", d)
	}
}

func TestErrorTypeName(t *testing.T) {
	if ErrorTypeName(ErrorType(99)) != "unknown" {
		t.Error("expected unknown for out-of-range type")
	}
	if ErrorTypeName(ErrorTypeNetwork) != "network" {
		t.Error("expected network")
	}
}
