package authflow

import (
	"errors"
	"fmt"
)

var (
	// ErrCancelled rejects the outcome when the user abandons the flow
	ErrCancelled = errors.New("authorization cancelled")

	// ErrOutcomeSettled is returned by operations that need a pending outcome
	ErrOutcomeSettled = errors.New("authorization outcome already settled")

	// ErrOutcomePending is returned by Outcome.Result before the outcome settles
	ErrOutcomePending = errors.New("authorization outcome pending")

	// ErrAlreadyStarted is returned when Start is called more than once
	ErrAlreadyStarted = errors.New("authorization already started")

	// ErrBrowserClosed is returned by browser surfaces after Close
	ErrBrowserClosed = errors.New("browser closed")

	errNoTarget = errors.New("navigation target is required")
)

// TransportFailure rejects the outcome when the browser could not complete a navigation
type TransportFailure struct {
	Cause error
}

// Error implements the error interface
func (e *TransportFailure) Error() string {
	return fmt.Sprintf("authorization transport failure: %v", e.Cause)
}

// Unwrap returns the underlying cause
func (e *TransportFailure) Unwrap() error {
	return e.Cause
}
