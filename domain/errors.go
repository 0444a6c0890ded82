package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the referenced task or user does not exist.
	ErrNotFound = errors.New("not found")
	// ErrForbidden indicates the caller does not own the referenced task.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidTransition indicates a category move outside the allowed
	// edges, or any move of a locked task.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrConflict indicates a uniqueness violation, e.g. signing up an
	// already registered email.
	ErrConflict = errors.New("already exists")
)

// ValidationError reports a missing or malformed request field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}
