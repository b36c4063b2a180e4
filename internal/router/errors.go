package router

import (
	"errors"
	"fmt"
)

// TransientError marks a venue fault that is safe to retry: network errors,
// rate limits, 5xx-class responses.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return fmt.Sprintf("transient venue error: %v", e.Err) }
func (e *TransientError) Unwrap() error { return e.Err }

// TerminalError marks a venue fault that must not be retried: bad symbol,
// invalid precision, insufficient balance, unknown venue.
type TerminalError struct {
	Err error
}

func (e *TerminalError) Error() string { return fmt.Sprintf("terminal venue error: %v", e.Err) }
func (e *TerminalError) Unwrap() error { return e.Err }

// Transient wraps err as retryable.
func Transient(err error) error { return &TransientError{Err: err} }

// Terminal wraps err as non-retryable.
func Terminal(err error) error { return &TerminalError{Err: err} }

// Terminalf wraps a formatted message as non-retryable.
func Terminalf(format string, args ...interface{}) error {
	return &TerminalError{Err: fmt.Errorf(format, args...)}
}

// IsTransient reports whether err is retryable under the router policy.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
