package events

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by Service and Repository implementations.
// Callers classify them with errors.Is; wrapped storage failures match none
// of them and map to a server error.
var (
	// ErrNotFound is returned when no event carries the requested id.
	ErrNotFound = errors.New("event not found")

	// ErrConflict is returned when an identifier is already taken.
	ErrConflict = errors.New("event conflict")

	// ErrInvalidInput is returned for a missing or malformed request body.
	// Field values inside a well-formed body are never rejected.
	ErrInvalidInput = errors.New("invalid event input")
)

// InputError describes a malformed request body or field.
// It matches ErrInvalidInput with errors.Is.
type InputError struct {
	Field   string
	Message string
}

func (e InputError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Is lets errors.Is(err, ErrInvalidInput) match any InputError.
func (e InputError) Is(target error) bool {
	return target == ErrInvalidInput
}
