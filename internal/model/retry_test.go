package model

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestInvokeWithRetry_TransientThenSuccess(t *testing.T) {
	calls := 0
	client := Func(func(ctx context.Context, prompt string, cfg InvokeConfig) (string, error) {
		calls++
		if calls < 3 {
			return "", NewInvokeError(KindTransient, errors.New("flaky"))
		}
		return "ok", nil
	})

	retry := RetryConfig{MaxAttempts: 4, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
	reply, err := InvokeWithRetry(context.Background(), client, "p", InvokeConfig{Model: "m"}, retry, zap.NewNop())
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if reply != "ok" || calls != 3 {
		t.Errorf("reply=%q calls=%d, want ok/3", reply, calls)
	}
}

func TestInvokeWithRetry_FatalNotRetried(t *testing.T) {
	calls := 0
	client := Func(func(ctx context.Context, prompt string, cfg InvokeConfig) (string, error) {
		calls++
		return "", NewInvokeError(KindFatal, errors.New("bad request"))
	})

	retry := RetryConfig{MaxAttempts: 4, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}
	_, err := InvokeWithRetry(context.Background(), client, "p", InvokeConfig{Model: "m"}, retry, zap.NewNop())
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("fatal error should not be retried, got %d calls", calls)
	}

	var ie *InvokeError
	if !errors.As(err, &ie) || ie.Kind != KindFatal {
		t.Errorf("expected fatal InvokeError, got %v", err)
	}
}

func TestInvokeWithRetry_Exhausted(t *testing.T) {
	calls := 0
	client := Func(func(ctx context.Context, prompt string, cfg InvokeConfig) (string, error) {
		calls++
		return "", NewInvokeError(KindRateLimited, errors.New("429"))
	})

	retry := RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}
	_, err := InvokeWithRetry(context.Background(), client, "p", InvokeConfig{Model: "m"}, retry, zap.NewNop())
	if !errors.Is(err, ErrAttemptsExhausted) {
		t.Fatalf("expected ErrAttemptsExhausted, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
}

func TestInvokeWithRetry_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	client := Func(func(ctx context.Context, prompt string, cfg InvokeConfig) (string, error) {
		cancel()
		return "", NewInvokeError(KindTransient, errors.New("flaky"))
	})

	retry := RetryConfig{MaxAttempts: 5, InitialBackoff: time.Hour, MaxBackoff: time.Hour}
	_, err := InvokeWithRetry(ctx, client, "p", InvokeConfig{Model: "m"}, retry, zap.NewNop())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled during backoff, got %v", err)
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"rate limited", NewInvokeError(KindRateLimited, errors.New("x")), true},
		{"timeout", NewInvokeError(KindTimeout, errors.New("x")), true},
		{"transient", NewInvokeError(KindTransient, errors.New("x")), true},
		{"fatal", NewInvokeError(KindFatal, errors.New("x")), false},
		{"unclassified", errors.New("x"), false},
		{"wrapped transient", errors.Join(errors.New("outer"), NewInvokeError(KindTransient, errors.New("x"))), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Retryable(tt.err); got != tt.want {
				t.Errorf("Retryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCalculateBackoff(t *testing.T) {
	retry := RetryConfig{InitialBackoff: time.Second, MaxBackoff: 5 * time.Second}
	wants := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second}
	for attempt, want := range wants {
		if got := calculateBackoff(retry, attempt); got != want {
			t.Errorf("attempt %d: backoff = %v, want %v", attempt, got, want)
		}
	}
}
