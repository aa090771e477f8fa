// Package model wraps the generative model behind a one-method collaborator
// with a typed failure taxonomy, so the orchestrator can decide what to
// retry without knowing anything about transports or SDKs.
package model

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies an invocation failure for retry decisions.
type ErrorKind string

const (
	KindRateLimited ErrorKind = "rate_limited"
	KindTimeout     ErrorKind = "timeout"
	KindTransient   ErrorKind = "transient"
	KindFatal       ErrorKind = "fatal"
)

// InvokeError is a classified model invocation failure.
type InvokeError struct {
	Kind ErrorKind
	Err  error
}

func (e *InvokeError) Error() string {
	return fmt.Sprintf("model invocation failed (%s): %v", e.Kind, e.Err)
}

func (e *InvokeError) Unwrap() error {
	return e.Err
}

// NewInvokeError wraps err with a failure kind.
func NewInvokeError(kind ErrorKind, err error) *InvokeError {
	return &InvokeError{Kind: kind, Err: err}
}

// Retryable reports whether an error is worth retrying. Only classified
// non-fatal failures qualify; anything unclassified is treated as a
// programming error and surfaced immediately.
func Retryable(err error) bool {
	var ie *InvokeError
	if errors.As(err, &ie) {
		return ie.Kind != KindFatal
	}
	return false
}

// InvokeConfig carries per-request model parameters.
type InvokeConfig struct {
	Model           string
	Temperature     float32
	MaxOutputTokens int32
}

// Client is the single seam between the experiment and the model.
type Client interface {
	Invoke(ctx context.Context, prompt string, cfg InvokeConfig) (string, error)
}

// Func adapts a plain function to the Client interface.
type Func func(ctx context.Context, prompt string, cfg InvokeConfig) (string, error)

// Invoke implements Client.
func (f Func) Invoke(ctx context.Context, prompt string, cfg InvokeConfig) (string, error) {
	return f(ctx, prompt, cfg)
}
