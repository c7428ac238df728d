package namespace

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidIdentifier is returned for empty names or names containing
	// characters outside [A-Za-z0-9_]. It is fatal only to the attempt
	// that produced it.
	ErrInvalidIdentifier = errors.New("invalid identifier")

	// ErrDuplicateIdentifier is returned when a name is declared twice at
	// the same level of the hierarchy.
	ErrDuplicateIdentifier = errors.New("duplicate identifier")
)

// IdentifierError describes a rejected identifier.
// It matches ErrInvalidIdentifier or ErrDuplicateIdentifier via errors.Is.
type IdentifierError struct {
	Code   error  // ErrInvalidIdentifier or ErrDuplicateIdentifier
	Name   string // The offending (possibly qualified) name
	Reason string
}

// Error implements the error interface.
func (e *IdentifierError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%v: %q", e.Code, e.Name)
	}
	return fmt.Sprintf("%v: %q %s", e.Code, e.Name, e.Reason)
}

// Unwrap exposes the sentinel code to errors.Is.
func (e *IdentifierError) Unwrap() error {
	return e.Code
}
