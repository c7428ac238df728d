package reactive

import (
	"fmt"
	"sort"

	"github.com/roach88/weave/internal/ir"
)

// State is the lifecycle state of a cell.
type State int

const (
	// StateUninitialized means the cell has never been computed.
	StateUninitialized State = iota
	// StateStale means an upstream cell changed since the last computation.
	StateStale
	// StateComputing means the cell's function is currently running.
	StateComputing
	// StateClean means the cached value is current.
	StateClean
	// StateDestroyed is terminal: reads and writes fail with ErrDisposed.
	StateDestroyed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateStale:
		return "stale"
	case StateComputing:
		return "computing"
	case StateClean:
		return "clean"
	case StateDestroyed:
		return "destroyed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Kind distinguishes sources, computed cells, and observers.
type Kind int

const (
	KindSource Kind = iota + 1
	KindComputed
	KindObserver
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindSource:
		return "source"
	case KindComputed:
		return "computed"
	case KindObserver:
		return "observer"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ComputeFunc derives a cell's value. It must be free of side effects:
// it may read other cells but never write sources.
type ComputeFunc func() (ir.IRValue, error)

// Update is passed to an observer's effect after a flush settles.
type Update struct {
	Cell    *Cell
	Value   ir.IRValue
	Err     error
	Changed bool // Value or error differs from the previous run
	First   bool // First run of the observer
}

// EffectFunc is an observer's side effect.
type EffectFunc func(Update)

// Cell is a node of the reactive graph.
type Cell struct {
	g     *Graph
	id    uint64
	label string
	kind  Kind
	state State

	value ir.IRValue
	err   error

	fn     ComputeFunc
	effect EffectFunc

	// Upstream cells in first-read order, replaced on every recomputation.
	deps   []*Cell
	depSet map[uint64]bool

	// Downstream cells keyed by id.
	subs map[uint64]*Cell

	computes  int
	suspended bool
	ran       bool
}

// ID returns the cell's graph-unique numeric id. Ids increase in creation
// order and define the consistent order observers settle in.
func (c *Cell) ID() uint64 {
	return c.id
}

// Label returns the diagnostic label given at creation.
func (c *Cell) Label() string {
	return c.label
}

// Kind returns the cell kind.
func (c *Cell) Kind() Kind {
	return c.kind
}

// State returns the current lifecycle state.
func (c *Cell) State() State {
	return c.state
}

// Computes returns how many times the cell's function has run.
func (c *Cell) Computes() int {
	return c.computes
}

// Dependencies returns the labels of the cells read during the most recent
// computation, in first-read order.
func (c *Cell) Dependencies() []string {
	out := make([]string, len(c.deps))
	for i, d := range c.deps {
		out[i] = d.label
	}
	return out
}

// Get returns the cell's current value, recomputing it first if it is
// stale. Called from inside another cell's computation, it also records
// that cell's dependency on this one.
//
// Get is the explicit "current value" accessor: a cell handle never
// evaluates implicitly.
func (c *Cell) Get() (ir.IRValue, error) {
	g := c.g
	if c.state == StateDestroyed {
		return nil, disposedError(c.label)
	}

	if caller := g.current(); caller != nil && caller != c {
		caller.track(c)
	}

	switch c.state {
	case StateClean:
		return c.value, c.err
	case StateComputing:
		return nil, g.recordCycle(c)
	}

	if c.kind == KindSource {
		c.state = StateClean
		return c.value, c.err
	}

	c.recompute()
	return c.value, c.err
}

// Peek returns the cached value without recomputing or tracking.
func (c *Cell) Peek() (ir.IRValue, error) {
	if c.state == StateDestroyed {
		return nil, disposedError(c.label)
	}
	return c.value, c.err
}

// Set writes a new value into a source cell and marks everything
// downstream stale. Nothing is recomputed until a sink is read.
//
// Writing a value equal to the current one is a no-op.
func (c *Cell) Set(v ir.IRValue) error {
	if c.state == StateDestroyed {
		return disposedError(c.label)
	}
	if c.kind != KindSource {
		return fmt.Errorf("set %q: %w", c.label, ErrNotSource)
	}
	if top := c.g.current(); top != nil {
		return fmt.Errorf("set %q from %q: %w", c.label, top.label, ErrWriteDuringCompute)
	}
	if v == nil {
		v = ir.IRNull{}
	}
	if ir.Equal(c.value, v) && c.state != StateUninitialized {
		return nil
	}

	c.value = v
	c.state = StateClean
	c.g.stats.Writes++
	c.g.invalidateDownstream(c)
	return nil
}

// Invalidate marks a derived cell and everything downstream of it stale.
// Stale observers are queued for the next Flush. Invalidating a source
// only invalidates its dependents.
func (c *Cell) Invalidate() error {
	if c.state == StateDestroyed {
		return disposedError(c.label)
	}
	if c.kind != KindSource && c.state == StateClean {
		c.markStale()
	}
	c.g.invalidateDownstream(c)
	return nil
}

// Suspend stops an observer from being scheduled by invalidations, e.g.
// while its render target is hidden. It still goes stale.
func (c *Cell) Suspend() {
	if c.kind != KindObserver || c.state == StateDestroyed {
		return
	}
	c.suspended = true
	delete(c.g.pending, c.id)
}

// Resume re-enables a suspended observer and queues it if it went stale
// in the meantime.
func (c *Cell) Resume() {
	if c.kind != KindObserver || c.state == StateDestroyed || !c.suspended {
		return
	}
	c.suspended = false
	if c.state != StateClean {
		c.g.pending[c.id] = c
	}
}

// Suspended reports whether the observer is suspended.
func (c *Cell) Suspended() bool {
	return c.suspended
}

// Destroy removes the cell from the graph. Dependents are invalidated so
// their next read observes ErrDisposed.
func (c *Cell) Destroy() {
	if c.state == StateDestroyed {
		return
	}
	c.g.invalidateDownstream(c)
	c.unlinkDeps()
	for _, sub := range c.subs {
		delete(sub.depSet, c.id)
	}
	c.subs = nil
	c.state = StateDestroyed
	c.value, c.err = nil, nil
	delete(c.g.cells, c.id)
	delete(c.g.pending, c.id)
}

// recompute runs the cell function with this cell on top of the
// computation stack, replacing its dependency set.
func (c *Cell) recompute() {
	g := c.g
	c.unlinkDeps()
	c.state = StateComputing

	g.stack = append(g.stack, c)
	v, err := c.run()
	g.stack = g.stack[:len(g.stack)-1]

	if c.state == StateDestroyed {
		return
	}
	if v == nil {
		v = ir.IRNull{}
	}
	if g.inCycle(c) {
		v, err = ir.IRNull{}, g.fault
	}

	c.value, c.err = v, err
	c.state = StateClean
	c.computes++
	g.stats.Recomputes++
}

// run calls the cell function, converting a panic into an error so the
// computation stack stays balanced.
func (c *Cell) run() (v ir.IRValue, err error) {
	defer func() {
		if r := recover(); r != nil {
			v, err = nil, fmt.Errorf("cell %q panicked: %v", c.label, r)
		}
	}()
	return c.fn()
}

// track records that c read dep during its current computation.
func (c *Cell) track(dep *Cell) {
	if c.depSet[dep.id] {
		return
	}
	c.depSet[dep.id] = true
	c.deps = append(c.deps, dep)
	dep.subs[c.id] = c
}

// unlinkDeps removes c from all of its upstream cells.
func (c *Cell) unlinkDeps() {
	for _, dep := range c.deps {
		delete(dep.subs, c.id)
	}
	c.deps = nil
	c.depSet = make(map[uint64]bool)
}

func (c *Cell) markStale() {
	c.state = StateStale
	if c.kind == KindObserver && !c.suspended {
		c.g.pending[c.id] = c
	}
}

// sortedSubs returns downstream cells in id order.
func (c *Cell) sortedSubs() []*Cell {
	out := make([]*Cell, 0, len(c.subs))
	for _, s := range c.subs {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}
