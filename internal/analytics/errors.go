package analytics

import (
	"errors"
	"fmt"
)

// Validation errors are returned before any computation or I/O happens.
var (
	ErrInvalidDateRange = errors.New("invalid date range")
	ErrInvalidTimestamp = errors.New("invalid timestamp")
	ErrInvalidTask      = errors.New("invalid task id")
	ErrInvalidUser      = errors.New("invalid user id")
)

// ErrSourceUnavailable marks failures of an external collaborator (event log,
// task metadata, analytics store, fitness source). Callers may retry; the engine
// never does.
var ErrSourceUnavailable = errors.New("source unavailable")

// unavailable wraps a collaborator failure so that it matches ErrSourceUnavailable
// while keeping the original cause in the chain.
func unavailable(source string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrSourceUnavailable, source, err)
}

// IsRetryable reports whether err came from an unavailable collaborator.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrSourceUnavailable)
}

// IsValidation reports whether err is an input validation failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidDateRange) ||
		errors.Is(err, ErrInvalidTimestamp) ||
		errors.Is(err, ErrInvalidTask) ||
		errors.Is(err, ErrInvalidUser)
}
