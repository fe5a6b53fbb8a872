package internal

import (
	"context"
	"errors"
	"fmt"
)

// ValidationError reports malformed input: bad scopes, empty content,
// dimension mismatches, unknown modes or strategies.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalidf(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// NotFoundError reports a lookup of an id or name that is not registered.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

func notFound(kind, id string) *NotFoundError {
	return &NotFoundError{Kind: kind, ID: id}
}

// ProviderError wraps a failure from an embedding or language model backend.
// Retryable failures (timeouts, throttling) are retried with backoff by the
// engine; fatal ones (bad credentials, bad request) surface immediately.
type ProviderError struct {
	Provider  string
	Retryable bool
	Err       error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

func providerErr(provider string, retryable bool, err error) *ProviderError {
	return &ProviderError{Provider: provider, Retryable: retryable, Err: err}
}

// ConflictError reports a state collision: reusing a live session name, or an
// import whose duplicate key matches more than one existing memory.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string { return e.Reason }

// CapacityError reports a configured hard limit being hit. The operation that
// hit it has changed nothing.
type CapacityError struct {
	Limit int
	Size  int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("capacity exceeded: %d memories at limit %d", e.Size, e.Limit)
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

func IsCapacity(err error) bool {
	var ce *CapacityError
	return errors.As(err, &ce)
}

// retryable reports whether err is a provider failure worth another attempt.
// Context cancellation is never retryable.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}
