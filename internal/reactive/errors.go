package reactive

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCyclicDependency is returned when a cell's computation reads the
	// cell itself, directly or transitively. It is fatal to the graph.
	ErrCyclicDependency = errors.New("cyclic dependency")

	// ErrDisposed is returned when a destroyed cell, or any cell of a
	// disposed graph, is read or written.
	ErrDisposed = errors.New("cell destroyed")

	// ErrNotSource is returned when Set is called on a derived cell.
	ErrNotSource = errors.New("cell is not a source")

	// ErrWriteDuringCompute is returned when a source is written from
	// inside a computation. Computations must be side-effect free.
	ErrWriteDuringCompute = errors.New("source written during recomputation")
)

// CycleError reports the chain of cells that formed a cycle, outermost
// first, ending with the cell that was re-entered.
type CycleError struct {
	Path []string
}

// Error implements the error interface.
func (e *CycleError) Error() string {
	return fmt.Sprintf("%v: %s", ErrCyclicDependency, strings.Join(e.Path, " -> "))
}

// Unwrap exposes ErrCyclicDependency to errors.Is.
func (e *CycleError) Unwrap() error {
	return ErrCyclicDependency
}

// IsCycleError returns true if err is or wraps a cycle error.
func IsCycleError(err error) bool {
	return errors.Is(err, ErrCyclicDependency)
}

func disposedError(label string) error {
	return fmt.Errorf("%q: %w", label, ErrDisposed)
}
