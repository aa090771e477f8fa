package model

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
)

// RetryConfig configures retry behavior for model invocations.
type RetryConfig struct {
	MaxAttempts    int           // Total attempts, including the first
	InitialBackoff time.Duration // Doubles after each failed attempt
	MaxBackoff     time.Duration // Backoff ceiling
}

// DefaultRetryConfig returns sensible retry defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    4,
		InitialBackoff: 2 * time.Second,
		MaxBackoff:     30 * time.Second,
	}
}

// ErrAttemptsExhausted indicates all retry attempts failed.
var ErrAttemptsExhausted = errors.New("retry attempts exhausted")

// InvokeWithRetry calls the client with exponential backoff on retryable
// failures. Fatal failures and context cancellation return immediately.
func InvokeWithRetry(ctx context.Context, client Client, prompt string, cfg InvokeConfig, retry RetryConfig, logger *zap.Logger) (string, error) {
	if retry.MaxAttempts < 1 {
		retry.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < retry.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		reply, err := client.Invoke(ctx, prompt, cfg)
		if err == nil {
			if attempt > 0 {
				logger.Info("retry succeeded",
					zap.String("model", cfg.Model),
					zap.Int("attempt", attempt+1))
			}
			return reply, nil
		}

		lastErr = err
		if !Retryable(err) {
			return "", err
		}

		logger.Warn("attempt failed",
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", retry.MaxAttempts),
			zap.Error(err))

		// Don't sleep after the last attempt.
		if attempt < retry.MaxAttempts-1 {
			backoff := calculateBackoff(retry, attempt)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	return "", fmt.Errorf("%w after %d attempts: %v", ErrAttemptsExhausted, retry.MaxAttempts, lastErr)
}

// calculateBackoff computes exponential backoff: initial * 2^attempt,
// capped at the configured maximum.
func calculateBackoff(retry RetryConfig, attempt int) time.Duration {
	backoff := float64(retry.InitialBackoff) * math.Pow(2, float64(attempt))
	if backoff > float64(retry.MaxBackoff) {
		backoff = float64(retry.MaxBackoff)
	}
	return time.Duration(backoff)
}
