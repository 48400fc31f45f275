// Package apperrors defines the error taxonomy shared by the registry,
// the HTTP layer and the sync engine.
package apperrors

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUnknownPattern is returned when a solution or feedback references a
	// pattern signature or id that is not in the registry.
	ErrUnknownPattern = errors.New("unknown pattern")
	// ErrUnauthorized is returned for a missing, invalid or deactivated
	// instance API key.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrConflict is returned on unique constraint violations. Upserts absorb
	// duplicate patterns and solutions, so this only surfaces on
	// relationship edges.
	ErrConflict = errors.New("conflict")
	// ErrUnavailable is returned when the central registry is unreachable.
	ErrUnavailable = errors.New("registry unavailable")
	// ErrRateLimited is returned when the caller exceeded its request budget.
	ErrRateLimited = errors.New("rate limited")
)

// ValidationError reports a malformed or missing field. Requests failing
// validation are rejected before any store mutation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

// Validation builds a ValidationError for a single field.
func Validation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
