package testutil

import "sync"

// DeterministicClock is a rewindable logical clock. It satisfies
// engine.SeqClock, so one scenario can run twice on the same clock and
// stamp identical seqs.
type DeterministicClock struct {
	mu     sync.Mutex
	origin int64 // seq before the first tick
	ticks  int64 // ticks issued or skipped since origin
}

// NewDeterministicClock returns a clock whose first Next is 1.
func NewDeterministicClock() *DeterministicClock {
	return NewDeterministicClockAt(0)
}

// NewDeterministicClockAt returns a clock whose first Next is origin+1,
// as for a session resumed after a journaled prefix.
func NewDeterministicClockAt(origin int64) *DeterministicClock {
	return &DeterministicClock{origin: origin}
}

func (c *DeterministicClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ticks++
	return c.origin + c.ticks
}

func (c *DeterministicClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.origin + c.ticks
}

// Advance burns n ticks without handing them out.
func (c *DeterministicClock) Advance(n int64) {
	c.mu.Lock()
	c.ticks += n
	c.mu.Unlock()
}

// Reset rewinds to origin.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	c.ticks = 0
	c.mu.Unlock()
}
