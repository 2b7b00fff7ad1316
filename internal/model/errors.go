package model

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNoActivePeer is returned when an operation needs an open thread.
	ErrNoActivePeer = errors.New("no active conversation")
	// ErrNotFound is returned when a referenced message, peer or notification is unknown.
	ErrNotFound = errors.New("not found")
)

// TransportError is a network-level failure: connection refused, reset, timeout.
// Background polls retry it on the next tick.
type TransportError struct {
	Op      string
	Timeout bool
	Err     error
}

func (e *TransportError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("%s: request timed out: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ServerError is a non-2xx response. Message is the backend's detail text.
type ServerError struct {
	Op      string
	Status  int
	Message string
}

func (e *ServerError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: server returned %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// ValidationError blocks a submission locally; nothing reaches the backend.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// StaleResponseError marks a result superseded by a newer request for the same
// resource. It is never shown to users.
type StaleResponseError struct {
	Resource string
	Seq      uint64
}

func (e *StaleResponseError) Error() string {
	return fmt.Sprintf("stale response for %s (seq %d)", e.Resource, e.Seq)
}

// IsSkippable reports whether err should be treated as a skipped poll tick
// rather than a failure: timeouts and cancellations.
func IsSkippable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var te *TransportError
	if errors.As(err, &te) && te.Timeout {
		return true
	}
	return false
}

// IsStale reports whether err is a StaleResponseError.
func IsStale(err error) bool {
	var se *StaleResponseError
	return errors.As(err, &se)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
