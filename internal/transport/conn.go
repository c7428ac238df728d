package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/weave/internal/engine"
	"github.com/roach88/weave/internal/ir"
)

// Event names exchanged with the client.
const (
	// Client to server.
	EventInput      = "input"      // {"target": string, "value": any}
	EventVisibility = "visibility" // {"target": string, "visible": bool}

	// Server to client.
	EventTree     = "tree"     // {"session": string, "tree": element}
	EventRender   = "render"   // {"session": string, "deltas": [delta]}
	EventRejected = "rejected" // {"code", "message", "target", "seq"}
	EventClosed   = "closed"   // {"session": string, "code": string}
)

// EmitFunc sends one event to one client.
type EmitFunc func(event string, payload any)

// Conn binds one client connection to one composition root.
//
// Client events are queued on the root and applied by its Run loop in
// arrival order; deltas go back through emit. A Conn never touches the
// state of another connection's session.
type Conn struct {
	root   *engine.Root
	emit   EmitFunc
	logger *slog.Logger
	cancel context.CancelFunc
	done   chan struct{}

	// Deltas produced before the tree reaches the client are held back so
	// the client always sees "tree" first.
	mu      sync.Mutex
	ready   bool
	pending []ir.Delta

	closeOnce sync.Once
	release   func()
	forget    func() // drops the Conn from its server
}

// ID returns the session token.
func (c *Conn) ID() string {
	return c.root.ID()
}

// Root returns the connection's composition root.
func (c *Conn) Root() *engine.Root {
	return c.root
}

// Done is closed when the session loop has exited.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Render implements engine.Renderer.
func (c *Conn) Render(sessionID string, deltas []ir.Delta) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.ready {
		c.pending = append(c.pending, deltas...)
		return
	}
	c.emit(EventRender, renderPayload(sessionID, deltas))
}

// markReady sends the tree and then any deltas held back.
func (c *Conn) markReady(tree *ir.Element) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.emit(EventTree, map[string]any{
		"session": c.ID(),
		"tree":    ir.ToGo(tree.ToIR()),
	})
	c.ready = true
	if len(c.pending) > 0 {
		c.emit(EventRender, renderPayload(c.ID(), c.pending))
		c.pending = nil
	}
}

// HandleInput queues a control change. Malformed payloads are rejected
// immediately; everything else is checked when the event is applied.
func (c *Conn) HandleInput(args ...any) {
	payload, err := firstObject(args)
	if err != nil {
		c.reject(badPayload(EventInput, err))
		return
	}
	target, _ := payload["target"].(string)
	if target == "" {
		c.reject(badPayload(EventInput, errors.New("target is required")))
		return
	}
	value, err := ir.FromGo(payload["value"])
	if err != nil {
		c.reject(&engine.RuntimeError{
			Code:    engine.ErrCodeInvalidArgument,
			Message: fmt.Sprintf("value: %v", err),
			Session: c.ID(),
			Target:  target,
			Err:     err,
		})
		return
	}
	if !c.root.Enqueue(ir.Event{Target: target, Value: value}) {
		c.reject(&engine.RuntimeError{
			Code:    engine.ErrCodeSessionClosed,
			Message: "session is closed",
			Session: c.ID(),
			Target:  target,
		})
	}
}

// HandleVisibility shows or hides a render target. A target shown again
// catches up on the next recompute pass.
func (c *Conn) HandleVisibility(args ...any) {
	payload, err := firstObject(args)
	if err != nil {
		c.reject(badPayload(EventVisibility, err))
		return
	}
	target, _ := payload["target"].(string)
	visible, ok := payload["visible"].(bool)
	if target == "" || !ok {
		c.reject(badPayload(EventVisibility, errors.New("target and visible are required")))
		return
	}
	if err := c.root.SetVisible(target, visible); err != nil {
		c.reject(engine.Classify(err, c.ID(), target))
	}
}

// Close ends the session and waits for its loop to exit. Close is
// idempotent.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		c.release()
		c.cancel()
		<-c.done
	})
}

// onEventError forwards a rejected event to the client.
func (c *Conn) onEventError(_ ir.Event, err *engine.RuntimeError) {
	c.reject(err)
}

func (c *Conn) reject(err *engine.RuntimeError) {
	c.logger.Debug("event rejected", "code", err.Code, "target", err.Target, "error", err.Message)
	c.emit(EventRejected, map[string]any{
		"code":    string(err.Code),
		"message": err.Message,
		"target":  err.Target,
		"seq":     err.Seq,
	})
}

// run drives the session loop until the connection closes or a fatal
// error tears the session down.
func (c *Conn) run(ctx context.Context) {
	defer close(c.done)
	err := c.root.Run(ctx)
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return
	case engine.IsFatal(err):
		c.logger.Error("session torn down", "code", engine.CodeOf(err), "error", err)
		c.emit(EventClosed, map[string]any{"session": c.ID(), "code": string(engine.CodeOf(err))})
		// The client may stay connected; release the session now.
		if c.forget != nil {
			c.forget()
		}
		c.release()
	case engine.IsSessionClosed(err):
		c.logger.Debug("session loop ended: session closed")
	default:
		c.logger.Warn("session loop failed", "error", err)
	}
}

func renderPayload(sessionID string, deltas []ir.Delta) map[string]any {
	list := make([]any, len(deltas))
	for i, d := range deltas {
		m := map[string]any{
			"seq":    d.Seq,
			"target": d.Target,
			"value":  ir.ToGo(d.Value),
		}
		if d.Error != "" {
			m["error"] = d.Error
		}
		list[i] = m
	}
	return map[string]any{"session": sessionID, "deltas": list}
}

func firstObject(args []any) (map[string]any, error) {
	if len(args) == 0 {
		return nil, errors.New("missing payload")
	}
	m, ok := args[0].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("payload must be an object, got %T", args[0])
	}
	return m, nil
}

func badPayload(event string, err error) *engine.RuntimeError {
	return &engine.RuntimeError{
		Code:    engine.ErrCodeInvalidArgument,
		Message: fmt.Sprintf("malformed %s payload: %v", event, err),
		Err:     err,
	}
}
