package reactive

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/roach88/weave/internal/ir"
)

// ErrReentrantFlush is returned when Flush is called from inside a
// computation or an effect.
var ErrReentrantFlush = errors.New("flush called during recomputation")

// Stats are cumulative counters for one graph.
type Stats struct {
	Cells      int   `json:"cells"`      // Live cells
	Pending    int   `json:"pending"`    // Observers queued for the next flush
	Recomputes int64 `json:"recomputes"` // Cell function executions
	Writes     int64 `json:"writes"`     // Source writes that changed a value
	Flushes    int64 `json:"flushes"`    // Completed Flush calls
	Effects    int64 `json:"effects"`    // Observer effect executions
}

// Graph is one session's dependency graph.
type Graph struct {
	nextID  uint64
	cells   map[uint64]*Cell
	stack   []*Cell
	pending map[uint64]*Cell

	fault      error
	faultCells map[uint64]bool

	flushing bool
	disposed bool

	logger *slog.Logger
	stats  Stats
}

// Option configures a Graph.
type Option func(*Graph)

// WithLogger sets the logger used for cycle and flush diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(g *Graph) {
		if l != nil {
			g.logger = l
		}
	}
}

// NewGraph creates an empty graph.
func NewGraph(opts ...Option) *Graph {
	g := &Graph{
		cells:      make(map[uint64]*Cell),
		pending:    make(map[uint64]*Cell),
		faultCells: make(map[uint64]bool),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Source creates a cell holding an externally written value.
func (g *Graph) Source(label string, initial ir.IRValue) (*Cell, error) {
	c, err := g.newCell(label, KindSource)
	if err != nil {
		return nil, err
	}
	if initial == nil {
		initial = ir.IRNull{}
	}
	c.value = initial
	c.state = StateClean
	return c, nil
}

// Computed creates a lazily evaluated derived cell. fn does not run until
// the cell is first read.
func (g *Graph) Computed(label string, fn ComputeFunc) (*Cell, error) {
	if fn == nil {
		return nil, fmt.Errorf("computed %q: nil compute function", label)
	}
	c, err := g.newCell(label, KindComputed)
	if err != nil {
		return nil, err
	}
	c.fn = fn
	return c, nil
}

// Observe creates a terminal sink. The observer is queued immediately, so
// the next Flush computes it and runs effect with First set.
func (g *Graph) Observe(label string, fn ComputeFunc, effect EffectFunc) (*Cell, error) {
	if fn == nil {
		return nil, fmt.Errorf("observer %q: nil compute function", label)
	}
	c, err := g.newCell(label, KindObserver)
	if err != nil {
		return nil, err
	}
	c.fn = fn
	c.effect = effect
	g.pending[c.id] = c
	return c, nil
}

func (g *Graph) newCell(label string, kind Kind) (*Cell, error) {
	if g.disposed {
		return nil, disposedError(label)
	}
	g.nextID++
	c := &Cell{
		g:      g,
		id:     g.nextID,
		label:  label,
		kind:   kind,
		state:  StateUninitialized,
		value:  ir.IRNull{},
		depSet: make(map[uint64]bool),
		subs:   make(map[uint64]*Cell),
	}
	g.cells[c.id] = c
	return c, nil
}

// Flush settles every queued observer, then runs the effects of those
// whose value or error changed.
//
// Observers settle in creation order. Reading an observer pulls exactly the
// stale cells it depends on, and each of those recomputes at most once
// because a recomputed cell stays clean until the next write. Effects run
// only after all observers have settled; sources written by an effect are
// picked up by the following Flush.
//
// A cycle detected at any point is returned and leaves the graph faulted:
// every later Flush returns the same error.
func (g *Graph) Flush() error {
	if g.disposed {
		return fmt.Errorf("flush: %w", ErrDisposed)
	}
	if g.flushing || len(g.stack) > 0 {
		return ErrReentrantFlush
	}
	if g.fault != nil {
		return g.fault
	}

	g.flushing = true
	defer func() { g.flushing = false }()

	var settled []Update
	for len(g.pending) > 0 {
		for _, o := range g.takePending() {
			if o.state == StateDestroyed || o.suspended {
				continue
			}
			prevValue, prevErr, first := o.value, o.err, !o.ran
			_, _ = o.Get()
			o.ran = true
			settled = append(settled, Update{
				Cell:    o,
				Value:   o.value,
				Err:     o.err,
				First:   first,
				Changed: first || !ir.Equal(prevValue, o.value) || errText(prevErr) != errText(o.err),
			})
		}
	}

	if g.fault != nil {
		g.logger.Error("reactive graph faulted", "error", g.fault)
		return g.fault
	}

	for _, u := range settled {
		if u.Cell.state == StateDestroyed || u.Cell.effect == nil {
			continue
		}
		g.stats.Effects++
		u.Cell.effect(u)
	}

	g.stats.Flushes++
	g.logger.Debug("flush settled",
		"observers", len(settled),
		"pending", len(g.pending),
		"recomputes", g.stats.Recomputes)
	return nil
}

// takePending drains the pending set in id order.
func (g *Graph) takePending() []*Cell {
	batch := make([]*Cell, 0, len(g.pending))
	for _, c := range g.pending {
		batch = append(batch, c)
	}
	sort.Slice(batch, func(i, j int) bool { return batch[i].id < batch[j].id })
	g.pending = make(map[uint64]*Cell)
	return batch
}

// invalidateDownstream marks every clean cell reachable from c stale.
// A cell that is already stale has stale dependents, so the walk stops
// there.
func (g *Graph) invalidateDownstream(c *Cell) {
	for _, sub := range c.sortedSubs() {
		if sub.state != StateClean {
			continue
		}
		sub.markStale()
		g.invalidateDownstream(sub)
	}
}

// current returns the cell being computed, or nil outside a computation.
func (g *Graph) current() *Cell {
	if len(g.stack) == 0 {
		return nil
	}
	return g.stack[len(g.stack)-1]
}

// recordCycle builds the error for a read of c while c is computing and
// faults the graph.
func (g *Graph) recordCycle(c *Cell) error {
	start := 0
	for i, s := range g.stack {
		if s == c {
			start = i
			break
		}
	}
	path := make([]string, 0, len(g.stack)-start+1)
	for _, s := range g.stack[start:] {
		path = append(path, s.label)
		g.faultCells[s.id] = true
	}
	path = append(path, c.label)

	err := &CycleError{Path: path}
	if g.fault == nil {
		g.fault = err
		g.logger.Warn("cyclic dependency detected", "path", path)
	}
	return err
}

func (g *Graph) inCycle(c *Cell) bool {
	return g.faultCells[c.id]
}

// Fault returns the cycle error that faulted the graph, or nil.
func (g *Graph) Fault() error {
	return g.fault
}

// Pending returns the number of observers queued for the next Flush.
func (g *Graph) Pending() int {
	return len(g.pending)
}

// Cells returns the live cells in creation order.
func (g *Graph) Cells() []*Cell {
	out := make([]*Cell, 0, len(g.cells))
	for _, c := range g.cells {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// Stats returns a snapshot of the graph counters.
func (g *Graph) Stats() Stats {
	s := g.stats
	s.Cells = len(g.cells)
	s.Pending = len(g.pending)
	return s
}

// Disposed reports whether Dispose has been called.
func (g *Graph) Disposed() bool {
	return g.disposed
}

// Dispose destroys every cell. Later reads, writes, and flushes fail with
// ErrDisposed. Dispose is idempotent.
func (g *Graph) Dispose() {
	if g.disposed {
		return
	}
	for _, c := range g.cells {
		c.state = StateDestroyed
		c.value, c.err = nil, nil
		c.deps, c.depSet, c.subs = nil, nil, nil
	}
	g.cells = make(map[uint64]*Cell)
	g.pending = make(map[uint64]*Cell)
	g.stack = nil
	g.disposed = true
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
