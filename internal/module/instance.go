package module

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/roach88/weave/internal/ir"
	"github.com/roach88/weave/internal/namespace"
	"github.com/roach88/weave/internal/reactive"
)

// Host is the session an instance lives in. It owns the cell graph and the
// registries that map qualified identifiers to control cells and render
// observers.
type Host interface {
	Graph() *reactive.Graph
	Logger() *slog.Logger

	// AddInput registers the source cell behind a control.
	AddInput(id string, cell *reactive.Cell) error
	RemoveInput(id string)

	// AddTarget creates the observer that renders into a target.
	AddTarget(id string, fn reactive.ComputeFunc) (*reactive.Cell, error)
	RemoveTarget(id string)
}

// Instance is a live module instance.
type Instance struct {
	id     string
	module *Module
	tree   *ir.Element
	args   Args

	outputs Outputs

	host     Host
	scope    *namespace.Scope
	parent   *Instance
	children []*Instance

	cells   []*reactive.Cell
	inputs  []string
	targets []string

	destroyed bool
}

// Instantiate creates an instance of m named id inside parent.
//
// On failure nothing is left behind: the identifier can be reused by a
// corrected retry.
func Instantiate(host Host, parent *namespace.Scope, m *Module, id string, args Args) (*Instance, error) {
	return instantiate(host, parent, nil, m, id, args, nil)
}

func instantiate(host Host, parentScope *namespace.Scope, parent *Instance, m *Module, id string, args Args, pre *embedded) (*Instance, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	statics, reactives, err := split(m, args)
	if err != nil {
		return nil, err
	}
	if err := bindReactive(m, reactives); err != nil {
		return nil, err
	}

	var (
		scope  *namespace.Scope
		ns     *NS
		tree   *ir.Element
		config ir.IRObject
	)
	if pre != nil {
		if pre.module != m {
			return nil, fmt.Errorf("%w: %q was embedded as module %q, not %q", ErrInvalidModule, pre.scope.ID(), pre.module.Name, m.Name)
		}
		if len(statics) > 0 {
			return nil, &ArgumentError{Code: ErrInvalidArgument, Module: m.Name, Param: firstKey(statics), Reason: "static arguments of an embedded instance are fixed when it is embedded"}
		}
		scope, ns, tree, config = pre.scope, pre.ns, pre.tree, pre.config
		pre.used = true
	} else {
		if parentScope.Depth() >= MaxDepth {
			return nil, fmt.Errorf("%w: instance %q in %q exceeds nesting depth %d", ErrInvalidModule, id, parentScope.ID(), MaxDepth)
		}
		config, err = bindStatic(m, statics)
		if err != nil {
			return nil, err
		}
		scope, err = parentScope.Child(id)
		if err != nil {
			return nil, err
		}
		ns = newNS(scope)
		tree, err = describe(m, ns, config)
		if err != nil {
			scope.Detach()
			return nil, err
		}
	}

	inst := &Instance{
		id:     scope.ID(),
		module: m,
		tree:   tree,
		args:   merge(config, reactives),
		host:   host,
		scope:  scope,
		parent: parent,
	}
	if err := inst.build(ns); err != nil {
		inst.Destroy()
		return nil, fmt.Errorf("instantiate %q (%s): %w", inst.id, m.Name, err)
	}

	host.Logger().Debug("module instantiated",
		"instance", inst.id,
		"module", m.Name,
		"inputs", len(inst.inputs),
		"outputs", len(inst.outputs))
	return inst, nil
}

// build registers the instance's controls, runs its behaviour, and serves
// any embedded child the behaviour did not instantiate itself.
func (i *Instance) build(ns *NS) error {
	for _, el := range i.tree.Inputs() {
		if _, ok := i.scope.Unqualify(el.ID); !ok {
			continue // Belongs to an embedded child
		}
		cell, err := i.host.Graph().Source(el.ID, el.InitialValue())
		if err != nil {
			return err
		}
		i.cells = append(i.cells, cell)
		if err := i.host.AddInput(el.ID, cell); err != nil {
			return err
		}
		i.inputs = append(i.inputs, el.ID)
	}

	ctx := &Context{inst: i, ns: ns}
	if i.module.Server != nil {
		outputs, err := i.module.Server(ctx, i.args)
		if err != nil {
			return err
		}
		for name, cell := range outputs {
			if cell == nil {
				return fmt.Errorf("output %q is nil", name)
			}
			if err := namespace.ValidateLocal(name); err != nil {
				return fmt.Errorf("output name: %w", err)
			}
		}
		i.outputs = outputs
	}

	for _, id := range ns.order {
		e := ns.embedded[id]
		if e.used {
			continue
		}
		if _, err := ctx.Module(e.module, id, nil); err != nil {
			return err
		}
	}
	return nil
}

// ID returns the qualified identifier of the instance.
func (i *Instance) ID() string {
	return i.id
}

// Module returns the instance's module definition.
func (i *Instance) Module() *Module {
	return i.module
}

// Tree returns the interface tree produced by the descriptor, or nil for
// modules without an interface.
func (i *Instance) Tree() *ir.Element {
	return i.tree
}

// Args returns the bound arguments.
func (i *Instance) Args() Args {
	return i.args
}

// Output returns the named output handle.
func (i *Instance) Output(name string) (*reactive.Cell, bool) {
	c, ok := i.outputs[name]
	return c, ok
}

// OutputNames returns the instance's output names in sorted order.
func (i *Instance) OutputNames() []string {
	names := make([]string, 0, len(i.outputs))
	for n := range i.outputs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Value reads the current value of a named output.
func (i *Instance) Value(name string) (ir.IRValue, error) {
	c, ok := i.outputs[name]
	if !ok {
		return nil, &namespace.IdentifierError{
			Code:   namespace.ErrInvalidIdentifier,
			Name:   i.id + namespace.Separator + name,
			Reason: fmt.Sprintf("module %q has no output %q", i.module.Name, name),
		}
	}
	return c.Get()
}

// Children returns nested instances in creation order.
func (i *Instance) Children() []*Instance {
	return i.children
}

// Parent returns the enclosing instance, or nil for a top-level instance.
func (i *Instance) Parent() *Instance {
	return i.parent
}

// Inputs returns the qualified identifiers of the instance's own controls.
func (i *Instance) Inputs() []string {
	return i.inputs
}

// Targets returns the qualified identifiers of the render targets the
// instance bound.
func (i *Instance) Targets() []string {
	return i.targets
}

// Destroyed reports whether the instance was torn down.
func (i *Instance) Destroyed() bool {
	return i.destroyed
}

// Destroy tears the instance down: children first, then render observers,
// controls, and cells. Its identifier becomes free for reuse.
func (i *Instance) Destroy() {
	if i.destroyed {
		return
	}
	i.destroyed = true
	for j := len(i.children) - 1; j >= 0; j-- {
		i.children[j].Destroy()
	}
	for _, id := range i.targets {
		i.host.RemoveTarget(id)
	}
	for _, id := range i.inputs {
		i.host.RemoveInput(id)
	}
	for _, c := range i.cells {
		c.Destroy()
	}
	i.scope.Detach()
}

func firstKey(obj ir.IRObject) string {
	keys := obj.SortedKeys()
	if len(keys) == 0 {
		return ""
	}
	return keys[0]
}
