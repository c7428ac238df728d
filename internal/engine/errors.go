package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/weave/internal/module"
	"github.com/roach88/weave/internal/namespace"
	"github.com/roach88/weave/internal/reactive"
	"github.com/roach88/weave/internal/session"
)

// RuntimeError is an error surfaced by a composition root, classified into
// the composition taxonomy.
//
// RuntimeError includes structured fields for diagnostics and for the
// transport, which forwards Code to the client.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Session identifies the affected session.
	Session string

	// Target is the qualified identifier involved, if any.
	Target string

	// Seq is the logical time of the event that failed, if any.
	Seq int64

	// Err is the underlying error.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeInvalidIdentifier indicates a malformed or unknown identifier.
	ErrCodeInvalidIdentifier RuntimeErrorCode = "INVALID_IDENTIFIER"

	// ErrCodeDuplicateIdentifier indicates an identifier declared twice in
	// one scope.
	ErrCodeDuplicateIdentifier RuntimeErrorCode = "DUPLICATE_IDENTIFIER"

	// ErrCodeArgumentKindMismatch indicates a reactive handle passed where
	// a static value is required, or the reverse.
	ErrCodeArgumentKindMismatch RuntimeErrorCode = "ARGUMENT_KIND_MISMATCH"

	// ErrCodeInvalidArgument indicates a missing, unknown, or repeated
	// module argument.
	ErrCodeInvalidArgument RuntimeErrorCode = "INVALID_ARGUMENT"

	// ErrCodeInvalidModule indicates an unusable module definition.
	ErrCodeInvalidModule RuntimeErrorCode = "INVALID_MODULE"

	// ErrCodeCyclicDependency indicates a cell that reads itself.
	ErrCodeCyclicDependency RuntimeErrorCode = "CYCLIC_DEPENDENCY"

	// ErrCodeSessionClosed indicates access after teardown.
	ErrCodeSessionClosed RuntimeErrorCode = "SESSION_CLOSED"

	// ErrCodeInternal covers everything else (journal failures, panics).
	ErrCodeInternal RuntimeErrorCode = "INTERNAL"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	switch {
	case e.Session != "" && e.Target != "":
		return fmt.Sprintf("%s: %s (session=%s, target=%s)", e.Code, e.Message, e.Session, e.Target)
	case e.Session != "":
		return fmt.Sprintf("%s: %s (session=%s)", e.Code, e.Message, e.Session)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// Unwrap returns the underlying error so errors.Is sees the sentinels.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// Fatal reports whether the error leaves the session's graph or namespace
// inconsistent, so the session must be torn down.
func (e *RuntimeError) Fatal() bool {
	return e.Code == ErrCodeCyclicDependency || e.Code == ErrCodeDuplicateIdentifier
}

// Classify wraps err in a RuntimeError. An err that already is one is
// returned unchanged; nil stays nil.
func Classify(err error, sessionID, target string) *RuntimeError {
	if err == nil {
		return nil
	}
	var re *RuntimeError
	if errors.As(err, &re) {
		return re
	}
	return &RuntimeError{
		Code:    codeOf(err),
		Message: err.Error(),
		Session: sessionID,
		Target:  target,
		Err:     err,
	}
}

func codeOf(err error) RuntimeErrorCode {
	switch {
	case errors.Is(err, session.ErrSessionClosed), errors.Is(err, reactive.ErrDisposed):
		return ErrCodeSessionClosed
	case errors.Is(err, reactive.ErrCyclicDependency):
		return ErrCodeCyclicDependency
	case errors.Is(err, namespace.ErrDuplicateIdentifier):
		return ErrCodeDuplicateIdentifier
	case errors.Is(err, namespace.ErrInvalidIdentifier):
		return ErrCodeInvalidIdentifier
	case errors.Is(err, module.ErrArgumentKindMismatch):
		return ErrCodeArgumentKindMismatch
	case errors.Is(err, module.ErrInvalidArgument):
		return ErrCodeInvalidArgument
	case errors.Is(err, module.ErrInvalidModule):
		return ErrCodeInvalidModule
	default:
		return ErrCodeInternal
	}
}

// IsFatal returns true if err would tear down the session.
func IsFatal(err error) bool {
	re := Classify(err, "", "")
	return re != nil && re.Fatal()
}

// IsCycleError returns true if the error is a cyclic dependency error.
// Uses errors.As to handle wrapped errors.
func IsCycleError(err error) bool {
	re := Classify(err, "", "")
	return re != nil && re.Code == ErrCodeCyclicDependency
}

// IsSessionClosed returns true if the error reports access after teardown.
func IsSessionClosed(err error) bool {
	re := Classify(err, "", "")
	return re != nil && re.Code == ErrCodeSessionClosed
}

// CodeOf returns the taxonomy code of err, or "" for nil.
func CodeOf(err error) RuntimeErrorCode {
	re := Classify(err, "", "")
	if re == nil {
		return ""
	}
	return re.Code
}
