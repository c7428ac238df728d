package module

import (
	"errors"
	"fmt"
)

var (
	// ErrArgumentKindMismatch is returned when a reactive handle is passed
	// where a static value is required, or the reverse. It is fatal only
	// to the instantiation attempt.
	ErrArgumentKindMismatch = errors.New("argument kind mismatch")

	// ErrInvalidArgument is returned for unknown, missing, or repeated
	// arguments.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidModule is returned when a module definition is unusable.
	ErrInvalidModule = errors.New("invalid module")
)

// ArgumentError describes a rejected module argument.
type ArgumentError struct {
	Code   error // ErrArgumentKindMismatch or ErrInvalidArgument
	Module string
	Param  string
	Reason string
}

// Error implements the error interface.
func (e *ArgumentError) Error() string {
	return fmt.Sprintf("%v: module %q parameter %q: %s", e.Code, e.Module, e.Param, e.Reason)
}

// Unwrap returns the sentinel code.
func (e *ArgumentError) Unwrap() error {
	return e.Code
}

// IsArgumentError returns true if err is an argument error of either kind.
func IsArgumentError(err error) bool {
	var ae *ArgumentError
	return errors.As(err, &ae)
}
