package session

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/roach88/weave/internal/ir"
	"github.com/roach88/weave/internal/module"
	"github.com/roach88/weave/internal/namespace"
	"github.com/roach88/weave/internal/reactive"
)

// RootTag is the tag of the element that holds every mounted instance's
// tree.
const RootTag = "app"

// State is the session lifecycle state.
type State int

const (
	StateOpen State = iota + 1
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Session is the runtime context of one connection.
//
// Public methods lock the session. The module.Host methods do not: they are
// called back only while Mount holds the lock.
type Session struct {
	mu sync.Mutex

	id     string
	logger *slog.Logger
	graph  *reactive.Graph
	root   *namespace.Scope
	queue  *eventQueue

	inputs    map[string]*reactive.Cell
	targets   map[string]*reactive.Cell
	instances []*module.Instance
	tree      *ir.Element

	// Deltas produced by render effects during the current Flush.
	rendered map[string]ir.Delta

	state State
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the base logger. The session adds its id to it.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// New opens a session.
func New(id string, opts ...Option) *Session {
	s := &Session{
		id:       id,
		logger:   slog.Default(),
		root:     namespace.NewRoot(),
		queue:    newEventQueue(),
		inputs:   make(map[string]*reactive.Cell),
		targets:  make(map[string]*reactive.Cell),
		tree:     &ir.Element{Tag: RootTag},
		rendered: make(map[string]ir.Delta),
		state:    StateOpen,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("session", id)
	s.graph = reactive.NewGraph(reactive.WithLogger(s.logger))
	return s
}

// ID returns the session token.
func (s *Session) ID() string {
	return s.id
}

// State returns the lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Closed reports whether the session was torn down.
func (s *Session) Closed() bool {
	return s.State() == StateClosed
}

// Mount instantiates a top-level module instance and appends its tree to
// the session tree.
func (s *Session) Mount(m *module.Module, id string, args module.Args) (*module.Instance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return nil, closedError(s.id, "mount")
	}

	inst, err := module.Instantiate(s, s.root, m, id, args)
	if err != nil {
		return nil, err
	}
	s.instances = append(s.instances, inst)
	if inst.Tree() != nil {
		s.tree.Append(inst.Tree())
	}
	return inst, nil
}

// Unmount tears down the top-level instance named id and removes its tree.
func (s *Session) Unmount(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return closedError(s.id, "unmount")
	}

	for i, inst := range s.instances {
		if inst.ID() != id {
			continue
		}
		inst.Destroy()
		s.instances = append(s.instances[:i], s.instances[i+1:]...)
		if t := inst.Tree(); t != nil {
			kept := s.tree.Children[:0]
			for _, c := range s.tree.Children {
				if c != t {
					kept = append(kept, c)
				}
			}
			s.tree.Children = kept
		}
		return nil
	}
	return &namespace.IdentifierError{Code: namespace.ErrInvalidIdentifier, Name: id, Reason: "no mounted instance"}
}

// Instance returns the mounted top-level instance named id.
func (s *Session) Instance(id string) (*module.Instance, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, inst := range s.instances {
		if inst.ID() == id {
			return inst, true
		}
	}
	return nil, false
}

// Instances returns the mounted top-level instances in mount order.
func (s *Session) Instances() []*module.Instance {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*module.Instance, len(s.instances))
	copy(out, s.instances)
	return out
}

// Tree returns the composed interface tree. Callers must not mutate it.
func (s *Session) Tree() (*ir.Element, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return nil, closedError(s.id, "tree")
	}
	return s.tree, nil
}

// Set writes a control value. Dependent cells go stale; nothing is
// recomputed until Flush.
func (s *Session) Set(target string, v ir.IRValue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return closedError(s.id, "set")
	}
	cell, ok := s.inputs[target]
	if !ok {
		if err := namespace.ValidateQualified(target); err != nil {
			return err
		}
		return &namespace.IdentifierError{Code: namespace.ErrInvalidIdentifier, Name: target, Reason: "no input control with this identifier"}
	}
	return cell.Set(v)
}

// Flush runs the recompute pass and returns one delta per render target
// whose value changed, sorted by target. seq stamps the deltas.
func (s *Session) Flush(seq int64) ([]ir.Delta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return nil, closedError(s.id, "flush")
	}

	clear(s.rendered)
	if err := s.graph.Flush(); err != nil {
		clear(s.rendered)
		return nil, err
	}

	deltas := make([]ir.Delta, 0, len(s.rendered))
	for _, d := range s.rendered {
		d.Seq = seq
		deltas = append(deltas, d)
	}
	sort.Slice(deltas, func(i, j int) bool { return deltas[i].Target < deltas[j].Target })
	clear(s.rendered)
	return deltas, nil
}

// SetVisible shows or hides a render target. Hidden targets are not
// recomputed; showing one again recomputes it on the next Flush if any of
// its inputs changed meanwhile.
func (s *Session) SetVisible(target string, visible bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return closedError(s.id, "set visible")
	}
	cell, ok := s.targets[target]
	if !ok {
		return &namespace.IdentifierError{Code: namespace.ErrInvalidIdentifier, Name: target, Reason: "no render target with this identifier"}
	}
	if visible {
		cell.Resume()
	} else {
		cell.Suspend()
	}
	return nil
}

// Value returns the current value of a control or render target without
// recomputing anything.
func (s *Session) Value(id string) (ir.IRValue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return nil, closedError(s.id, "value")
	}
	if cell, ok := s.inputs[id]; ok {
		return cell.Peek()
	}
	if cell, ok := s.targets[id]; ok {
		return cell.Peek()
	}
	return nil, &namespace.IdentifierError{Code: namespace.ErrInvalidIdentifier, Name: id, Reason: "no control or render target with this identifier"}
}

// Rendered returns the current value of every render target.
func (s *Session) Rendered() (map[string]ir.IRValue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return nil, closedError(s.id, "rendered")
	}
	out := make(map[string]ir.IRValue, len(s.targets))
	for id, cell := range s.targets {
		v, err := cell.Peek()
		if err != nil {
			continue
		}
		out[id] = v
	}
	return out, nil
}

// InputIDs returns the qualified identifiers of all controls, sorted.
func (s *Session) InputIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedKeys(s.inputs)
}

// TargetIDs returns the qualified identifiers of all bound render targets,
// sorted.
func (s *Session) TargetIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedKeys(s.targets)
}

// Stats returns the graph counters.
func (s *Session) Stats() reactive.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.Stats()
}

// Enqueue submits an event for the session's loop. Safe from any
// goroutine. Returns false once the session is closing.
func (s *Session) Enqueue(ev ir.Event) bool {
	return s.queue.Enqueue(ev)
}

// Next removes the oldest queued event without blocking.
func (s *Session) Next() (ir.Event, bool) {
	return s.queue.TryDequeue()
}

// Wait returns a channel that signals when events may be queued. It is
// closed once the session stops accepting events.
func (s *Session) Wait() <-chan struct{} {
	return s.queue.Wait()
}

// Queued returns the number of events waiting.
func (s *Session) Queued() int {
	return s.queue.Len()
}

// Draining reports whether the queue stopped accepting events.
func (s *Session) Draining() bool {
	return s.queue.Closed()
}

// StopAccepting closes the event queue. Events already queued remain
// available to Next.
func (s *Session) StopAccepting() {
	s.queue.Close()
}

// Close tears the session down: instances, cells, registrations, and the
// queue, in one pass. Close is idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return
	}
	s.queue.Close()
	for i := len(s.instances) - 1; i >= 0; i-- {
		s.instances[i].Destroy()
	}
	s.graph.Dispose()
	s.instances = nil
	s.inputs = make(map[string]*reactive.Cell)
	s.targets = make(map[string]*reactive.Cell)
	s.tree = &ir.Element{Tag: RootTag}
	s.state = StateClosed
	s.logger.Debug("session closed")
}

// Graph implements module.Host.
func (s *Session) Graph() *reactive.Graph {
	return s.graph
}

// Logger implements module.Host.
func (s *Session) Logger() *slog.Logger {
	return s.logger
}

// AddInput implements module.Host.
func (s *Session) AddInput(id string, cell *reactive.Cell) error {
	if _, exists := s.inputs[id]; exists {
		return &namespace.IdentifierError{Code: namespace.ErrDuplicateIdentifier, Name: id, Reason: "control already registered in this session"}
	}
	s.inputs[id] = cell
	return nil
}

// RemoveInput implements module.Host.
func (s *Session) RemoveInput(id string) {
	delete(s.inputs, id)
}

// AddTarget implements module.Host. The observer records a delta whenever
// the target's value or error changes.
func (s *Session) AddTarget(id string, fn reactive.ComputeFunc) (*reactive.Cell, error) {
	if _, exists := s.targets[id]; exists {
		return nil, &namespace.IdentifierError{Code: namespace.ErrDuplicateIdentifier, Name: id, Reason: "render target already bound in this session"}
	}
	cell, err := s.graph.Observe(id, fn, func(u reactive.Update) {
		if !u.Changed {
			return
		}
		d := ir.Delta{Target: id, Value: u.Value}
		if u.Err != nil {
			d.Value = ir.IRNull{}
			d.Error = u.Err.Error()
		}
		s.rendered[id] = d
	})
	if err != nil {
		return nil, err
	}
	s.targets[id] = cell
	return cell, nil
}

// RemoveTarget implements module.Host.
func (s *Session) RemoveTarget(id string) {
	delete(s.targets, id)
}

func sortedKeys(m map[string]*reactive.Cell) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
