// Package llmclient defines the LLM Backend Contract (§6.2): a single async
// operation returning text or a typed error, plus the concrete adapters the
// Request Router dispatches through.
package llmclient

import (
	"context"
	"errors"
	"time"
)

// ErrorKind classifies a backend failure for the router's retry policy.
type ErrorKind string

const (
	Transient   ErrorKind = "transient"
	RateLimited ErrorKind = "rate_limited"
	Auth        ErrorKind = "auth"
	Invalid     ErrorKind = "invalid"
)

// BackendError is the typed error every Backend implementation must return
// for a failed call; the router never has to sniff provider-specific error
// strings.
type BackendError struct {
	Kind ErrorKind
	Err  error
}

func (e *BackendError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Err.Error()
}

func (e *BackendError) Unwrap() error { return e.Err }

// Retryable reports whether the router should retry this failure class.
func (e *BackendError) Retryable() bool {
	return e.Kind == Transient || e.Kind == RateLimited
}

// AsBackendError extracts a *BackendError from err, if any.
func AsBackendError(err error) (*BackendError, bool) {
	var be *BackendError
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}

// Request is the single, model-agnostic shape every Backend call takes.
type Request struct {
	Model        string
	SystemPrompt string
	UserPrompt   string
	Temperature  float64
	MaxTokens    int
	Deadline     time.Duration
}

// Backend is the contract the core depends on; model selection is config,
// never a compile-time choice.
type Backend interface {
	Complete(ctx context.Context, req Request) (string, error)
}
