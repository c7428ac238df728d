package module

import (
	"fmt"
	"log/slog"

	"github.com/roach88/weave/internal/ir"
	"github.com/roach88/weave/internal/namespace"
	"github.com/roach88/weave/internal/reactive"
)

// Context is what a behaviour sees of its instance. Every name it takes is
// local; the context rewrites it against the instance scope.
type Context struct {
	inst *Instance
	ns   *NS
}

// ID returns the qualified identifier of the instance.
func (c *Context) ID() string {
	return c.inst.id
}

// Logger returns the session logger annotated with the instance id.
func (c *Context) Logger() *slog.Logger {
	return c.inst.host.Logger().With("instance", c.inst.id)
}

// Qualify returns the qualified identifier for a local name without
// declaring it.
func (c *Context) Qualify(local string) (string, error) {
	return c.inst.scope.Qualify(local)
}

// Input returns the source cell behind the control declared as local by
// this instance's descriptor.
func (c *Context) Input(local string) (*reactive.Cell, error) {
	id, err := c.inst.scope.Qualify(local)
	if err != nil {
		return nil, err
	}
	el := c.inst.tree.Find(id)
	if el == nil || !el.IsInput() {
		return nil, &namespace.IdentifierError{
			Code:   namespace.ErrInvalidIdentifier,
			Name:   id,
			Reason: "no input control with this name",
		}
	}
	for _, cell := range c.inst.cells {
		if cell.Label() == id && cell.Kind() == reactive.KindSource {
			return cell, nil
		}
	}
	return nil, &namespace.IdentifierError{Code: namespace.ErrInvalidIdentifier, Name: id, Reason: "control has no cell"}
}

// Reactive declares a computed cell named local.
func (c *Context) Reactive(local string, fn reactive.ComputeFunc) (*reactive.Cell, error) {
	id, err := c.inst.scope.Declare(local)
	if err != nil {
		return nil, err
	}
	cell, err := c.inst.host.Graph().Computed(id, fn)
	if err != nil {
		return nil, err
	}
	c.inst.cells = append(c.inst.cells, cell)
	return cell, nil
}

// Render binds fn to the render target declared as local by this
// instance's descriptor. The target is updated whenever fn's value
// changes.
func (c *Context) Render(local string, fn reactive.ComputeFunc) error {
	id, err := c.inst.scope.Qualify(local)
	if err != nil {
		return err
	}
	el := c.inst.tree.Find(id)
	if el == nil || !el.IsTarget() {
		return &namespace.IdentifierError{
			Code:   namespace.ErrInvalidIdentifier,
			Name:   id,
			Reason: "no render target with this name",
		}
	}
	for _, t := range c.inst.targets {
		if t == id {
			return &namespace.IdentifierError{Code: namespace.ErrDuplicateIdentifier, Name: id, Reason: "render target already bound"}
		}
	}
	cell, err := c.inst.host.AddTarget(id, fn)
	if err != nil {
		return err
	}
	c.inst.cells = append(c.inst.cells, cell)
	c.inst.targets = append(c.inst.targets, id)
	return nil
}

// Observe declares an explicit observer named local. effect runs after
// each flush in which the observer was recomputed.
func (c *Context) Observe(local string, fn reactive.ComputeFunc, effect reactive.EffectFunc) (*reactive.Cell, error) {
	id, err := c.inst.scope.Declare(local)
	if err != nil {
		return nil, err
	}
	cell, err := c.inst.host.Graph().Observe(id, fn, effect)
	if err != nil {
		return nil, err
	}
	c.inst.cells = append(c.inst.cells, cell)
	return cell, nil
}

// Const declares a computed cell that always yields v. It lets a static
// value flow into a reactive parameter.
func (c *Context) Const(local string, v ir.IRValue) (*reactive.Cell, error) {
	if v == nil {
		v = ir.IRNull{}
	}
	return c.Reactive(local, func() (ir.IRValue, error) { return v, nil })
}

// Module instantiates a nested module named id. If the descriptor
// embedded a child with that id, the embedded subtree is reused and only
// reactive arguments may be supplied here.
func (c *Context) Module(m *Module, id string, args Args) (*Instance, error) {
	var pre *embedded
	if c.ns != nil {
		if e, ok := c.ns.embedded[id]; ok {
			if e.used {
				return nil, &namespace.IdentifierError{
					Code:   namespace.ErrDuplicateIdentifier,
					Name:   e.scope.ID(),
					Reason: "embedded instance already instantiated",
				}
			}
			pre = e
		}
	}
	child, err := instantiate(c.inst.host, c.inst.scope, c.inst, m, id, args, pre)
	if err != nil {
		return nil, fmt.Errorf("nested module %q: %w", id, err)
	}
	c.inst.children = append(c.inst.children, child)
	return child, nil
}
