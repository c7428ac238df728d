package engine

import "sync/atomic"

// SeqClock hands out the logical time of a session. Each dispatched event
// takes one tick, rejected or not, and the deltas of its pass carry the
// same tick. testutil.DeterministicClock is the rewindable test variant.
type SeqClock interface {
	Next() int64
	Current() int64
}

// Clock is the default SeqClock. It is safe for concurrent use; the zero
// value issues 1 first.
type Clock struct {
	last atomic.Int64
}

// NewClock returns a clock whose first tick is 1.
func NewClock() *Clock {
	return new(Clock)
}

// NewClockAt returns a clock that resumes after last.
func NewClockAt(last int64) *Clock {
	c := new(Clock)
	c.last.Store(last)
	return c
}

// resumeClock returns the clock for rebuilding a session whose open pass
// was stamped opened, so that the rebuilt open pass gets the same seq.
func resumeClock(opened int64) *Clock {
	return NewClockAt(max(opened-1, 0))
}

func (c *Clock) Next() int64 { return c.last.Add(1) }

func (c *Clock) Current() int64 { return c.last.Load() }
