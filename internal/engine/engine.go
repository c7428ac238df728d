package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/weave/internal/ir"
	"github.com/roach88/weave/internal/module"
	"github.com/roach88/weave/internal/session"
)

// Journal records what a composition root did, for trace and replay.
// Implemented by store.Store.
type Journal interface {
	OpenSession(ctx context.Context, rec ir.SessionRecord) error
	WriteEvent(ctx context.Context, ev ir.Event) error
	WriteDeltas(ctx context.Context, sessionID string, deltas []ir.Delta) error
	CloseSession(ctx context.Context, sessionID string, seq int64) error
}

// Renderer receives the deltas of every recompute pass. The transport
// implements it by emitting to the connection.
type Renderer interface {
	Render(sessionID string, deltas []ir.Delta)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(sessionID string, deltas []ir.Delta)

// Render calls f.
func (f RendererFunc) Render(sessionID string, deltas []ir.Delta) {
	f(sessionID, deltas)
}

// Root is the composition root of one session: it mounts module instances,
// consumes interface events, and drives the recompute pass.
//
// CRITICAL: all graph mutation happens under the root's lock, either in
// Dispatch called directly or in the Run loop. External producers use
// Enqueue.
//
// Thread-safety model:
//   - Enqueue(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine
//   - Dispatch(), Mount(), Close(): serialized by an internal mutex
type Root struct {
	mu sync.Mutex

	session  *session.Session
	clock    SeqClock
	journal  Journal
	renderer Renderer
	logger   *slog.Logger

	app     string
	appHash string
	opened  bool
	fault   *RuntimeError

	onEventError func(ev ir.Event, err *RuntimeError)
}

// Option configures a Root.
type Option func(*Root)

// WithLogger sets the logger. The session adds its token to it.
func WithLogger(l *slog.Logger) Option {
	return func(r *Root) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithJournal records sessions, events, and deltas.
func WithJournal(j Journal) Option {
	return func(r *Root) {
		r.journal = j
	}
}

// WithRenderer delivers deltas after every recompute pass.
func WithRenderer(rd Renderer) Option {
	return func(r *Root) {
		r.renderer = rd
	}
}

// WithClock replaces the logical clock.
func WithClock(c SeqClock) Option {
	return func(r *Root) {
		if c != nil {
			r.clock = c
		}
	}
}

// WithApp labels the session with the application it runs, for the journal.
func WithApp(name, hash string) Option {
	return func(r *Root) {
		r.app, r.appHash = name, hash
	}
}

// WithEventErrorHandler is called by Run for every event it rejects
// without tearing the session down. The transport uses it to tell the
// client.
func WithEventErrorHandler(fn func(ev ir.Event, err *RuntimeError)) Option {
	return func(r *Root) {
		r.onEventError = fn
	}
}

// New creates a composition root around a fresh session.
func New(sessionID string, opts ...Option) *Root {
	r := &Root{
		clock:  NewClock(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.session = session.New(sessionID, session.WithLogger(r.logger))
	r.logger = r.session.Logger()
	return r
}

// ID returns the session token.
func (r *Root) ID() string {
	return r.session.ID()
}

// Session returns the underlying session context.
func (r *Root) Session() *session.Session {
	return r.session
}

// Clock returns the logical clock.
func (r *Root) Clock() SeqClock {
	return r.clock
}

// Fault returns the fatal error that closed the session, if any.
func (r *Root) Fault() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fault == nil {
		return nil
	}
	return r.fault
}

// Mount instantiates a top-level module instance. Fatal errors tear the
// session down; others only fail this instantiation.
func (r *Root) Mount(m *module.Module, id string, args module.Args) (*module.Instance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	inst, err := r.session.Mount(m, id, args)
	if err != nil {
		return nil, r.fail(err, id, 0)
	}
	return inst, nil
}

// Open journals the session and runs the first recompute pass, rendering
// every target. Call it once, after mounting.
func (r *Root) Open(ctx context.Context) ([]ir.Delta, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.opened {
		return nil, fmt.Errorf("session %s already opened", r.ID())
	}
	tree, err := r.session.Tree()
	if err != nil {
		return nil, r.fail(err, "", 0)
	}
	treeHash, err := ir.TreeHash(tree)
	if err != nil {
		return nil, r.fail(err, "", 0)
	}

	seq := r.clock.Next()
	if r.journal != nil {
		rec := ir.SessionRecord{
			ID:        r.ID(),
			App:       r.app,
			AppHash:   r.appHash,
			TreeHash:  treeHash,
			OpenedSeq: seq,
		}
		if err := r.journal.OpenSession(ctx, rec); err != nil {
			return nil, r.fail(fmt.Errorf("journal open session: %w", err), "", seq)
		}
	}
	r.opened = true

	r.logger.Info("session opened",
		"app", r.app,
		"tree_hash", treeHash,
		"inputs", len(r.session.InputIDs()),
		"targets", len(r.session.TargetIDs()))

	return r.flush(ctx, seq)
}

// Tree returns the composed interface tree.
func (r *Root) Tree() (*ir.Element, error) {
	tree, err := r.session.Tree()
	if err != nil {
		return nil, Classify(err, r.ID(), "")
	}
	return tree, nil
}

// Dispatch applies one interface event synchronously: it stamps the event,
// writes the control's source cell, and runs the recompute pass. The
// returned deltas are also delivered to the renderer.
func (r *Root) Dispatch(ctx context.Context, ev ir.Event) ([]ir.Delta, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dispatch(ctx, ev)
}

func (r *Root) dispatch(ctx context.Context, ev ir.Event) ([]ir.Delta, error) {
	if r.session.Closed() {
		return nil, r.closedError(ev.Target)
	}
	if ev.Value == nil {
		ev.Value = ir.IRNull{}
	}
	ev.Session = r.ID()
	// The seq is claimed only after the event is journaled.
	ev.Seq = r.clock.Current() + 1
	id, err := ir.EventID(ev.Session, ev.Seq, ev.Target, ev.Value)
	if err != nil {
		return nil, r.fail(err, ev.Target, ev.Seq)
	}
	ev.ID = id

	r.logger.Debug("dispatching event",
		"seq", ev.Seq,
		"target", ev.Target,
		"value", ir.Format(ev.Value))

	// Journaled before it is applied: a rejected event still consumed a
	// seq, and replay must reject it at the same point.
	if r.journal != nil {
		if err := r.journal.WriteEvent(ctx, ev); err != nil {
			return nil, r.fail(fmt.Errorf("journal event %s: %w", ev.ID, err), ev.Target, ev.Seq)
		}
	}
	r.clock.Next()
	if err := r.session.Set(ev.Target, ev.Value); err != nil {
		return nil, r.fail(err, ev.Target, ev.Seq)
	}
	return r.flush(ctx, ev.Seq)
}

// flush runs the recompute pass for seq, journals and renders its deltas.
// The cells have already moved, so the deltas reach the renderer even when
// journaling them fails; the failure is reported afterwards.
func (r *Root) flush(ctx context.Context, seq int64) ([]ir.Delta, error) {
	deltas, err := r.session.Flush(seq)
	if err != nil {
		return nil, r.fail(err, "", seq)
	}
	if len(deltas) == 0 {
		return deltas, nil
	}
	var journalErr error
	if r.journal != nil {
		journalErr = r.journal.WriteDeltas(ctx, r.ID(), deltas)
	}
	if r.renderer != nil {
		r.renderer.Render(r.ID(), deltas)
	}
	if journalErr != nil {
		return deltas, r.fail(fmt.Errorf("journal deltas: %w", journalErr), "", seq)
	}
	return deltas, nil
}

// fail classifies err and, when it is fatal, tears the session down.
// Caller holds r.mu.
func (r *Root) fail(err error, target string, seq int64) error {
	re := Classify(err, r.ID(), target)
	if re.Seq == 0 {
		re.Seq = seq
	}
	if re.Fatal() && !r.session.Closed() {
		r.fault = re
		r.logger.Error("fatal session error, tearing down",
			"code", re.Code,
			"error", re.Message,
			"target", target,
			"seq", seq)
		r.close(context.Background())
	}
	return re
}

func (r *Root) closedError(target string) error {
	return &RuntimeError{
		Code:    ErrCodeSessionClosed,
		Message: "session is closed",
		Session: r.ID(),
		Target:  target,
		Err:     session.ErrSessionClosed,
	}
}

// SetVisible shows or hides a render target.
func (r *Root) SetVisible(target string, visible bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.session.SetVisible(target, visible); err != nil {
		return Classify(err, r.ID(), target)
	}
	return nil
}

// Enqueue submits an event for the Run loop.
// Thread-safe: may be called from any goroutine.
//
// Returns false if the session is closing.
func (r *Root) Enqueue(ev ir.Event) bool {
	return r.session.Enqueue(ev)
}

// Run consumes queued events until the context is cancelled, Stop is
// called, or a fatal error closes the session.
//
// CRITICAL: Must be called from exactly ONE goroutine.
//
// ERROR HANDLING: a non-fatal event failure (unknown target, bad value) is
// logged with full event context and processing continues. A fatal one
// ends the loop and is returned.
func (r *Root) Run(ctx context.Context) error {
	r.logger.Debug("session loop starting")

	for {
		ev, ok := r.session.Next()
		if ok {
			if _, err := r.Dispatch(ctx, ev); err != nil {
				if IsFatal(err) || IsSessionClosed(err) {
					return err
				}
				logEventError(r.logger, ev, err)
				if r.onEventError != nil {
					r.onEventError(ev, Classify(err, r.ID(), ev.Target))
				}
			}
			continue
		}

		select {
		case <-ctx.Done():
			r.logger.Debug("session loop stopping: context cancelled")
			r.session.StopAccepting()
			return ctx.Err()

		case <-r.session.Wait():
			// The signal channel closes when the queue is closed; a
			// coalesced signal on an open queue just loops back.
			if r.session.Draining() && r.session.Queued() == 0 {
				r.logger.Debug("session loop stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop makes Run return once the queued events are processed.
func (r *Root) Stop() {
	r.session.StopAccepting()
}

// Close journals the end of the session and tears it down. Close is
// idempotent.
func (r *Root) Close(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.close(ctx)
}

func (r *Root) close(ctx context.Context) {
	if r.session.Closed() {
		return
	}
	if r.journal != nil && r.opened {
		if err := r.journal.CloseSession(ctx, r.ID(), r.clock.Current()); err != nil {
			r.logger.Warn("journal close session failed", "error", err)
		}
	}
	stats := r.session.Stats()
	r.session.Close()
	r.logger.Info("session closed",
		"seq", r.clock.Current(),
		"recomputes", stats.Recomputes,
		"flushes", stats.Flushes)
}

// Closed reports whether the session was torn down.
func (r *Root) Closed() bool {
	return r.session.Closed()
}

// logEventError logs an event processing failure with full context.
func logEventError(logger *slog.Logger, ev ir.Event, err error) {
	logger.Warn("event processing failed",
		"error", err,
		"code", CodeOf(err),
		"target", ev.Target,
		"value", ir.Format(ev.Value),
		"seq", ev.Seq)
}
