package module

import (
	"sort"

	"github.com/roach88/weave/internal/ir"
	"github.com/roach88/weave/internal/reactive"
)

// Arg is a single module argument: either a static value or a reactive
// handle.
type Arg struct {
	value ir.IRValue
	cell  *reactive.Cell
}

// StaticArg wraps a value fixed for the instance's lifetime.
func StaticArg(v ir.IRValue) Arg {
	if v == nil {
		v = ir.IRNull{}
	}
	return Arg{value: v}
}

// ReactiveArg wraps a cell handle.
func ReactiveArg(c *reactive.Cell) Arg {
	return Arg{cell: c}
}

// IsReactive reports whether the argument is a cell handle.
func (a Arg) IsReactive() bool {
	return a.cell != nil
}

// Args are the arguments an instance is created with, keyed by parameter
// name.
type Args map[string]Arg

// Static returns the static argument named name, or IRNull when it is
// absent or reactive.
func (a Args) Static(name string) ir.IRValue {
	arg, ok := a[name]
	if !ok || arg.IsReactive() {
		return ir.IRNull{}
	}
	return arg.value
}

// Cell returns the reactive argument named name, or nil.
func (a Args) Cell(name string) *reactive.Cell {
	return a[name].cell
}

// Value returns the current value of an argument. For reactive arguments
// this reads the cell, so calling it from inside a computation records
// the dependency. Absent arguments read as IRNull.
func (a Args) Value(name string) (ir.IRValue, error) {
	arg, ok := a[name]
	if !ok {
		return ir.IRNull{}, nil
	}
	if arg.IsReactive() {
		return arg.cell.Get()
	}
	return arg.value, nil
}

// Config returns the static arguments as an object.
func (a Args) Config() ir.IRObject {
	out := make(ir.IRObject)
	for name, arg := range a {
		if !arg.IsReactive() {
			out[name] = arg.value
		}
	}
	return out
}

// split separates args into static values and reactive handles, checking
// every name and kind against the module's parameters.
func split(m *Module, args Args) (ir.IRObject, Args, error) {
	names := make([]string, 0, len(args))
	for name := range args {
		names = append(names, name)
	}
	sort.Strings(names)

	statics := make(ir.IRObject)
	reactives := make(Args)
	for _, name := range names {
		arg := args[name]
		p, ok := m.Param(name)
		if !ok {
			return nil, nil, &ArgumentError{Code: ErrInvalidArgument, Module: m.Name, Param: name, Reason: "unknown parameter"}
		}
		switch {
		case p.Kind == Static && arg.IsReactive():
			return nil, nil, &ArgumentError{Code: ErrArgumentKindMismatch, Module: m.Name, Param: name, Reason: "static value required, got reactive handle"}
		case p.Kind == Reactive && !arg.IsReactive():
			return nil, nil, &ArgumentError{Code: ErrArgumentKindMismatch, Module: m.Name, Param: name, Reason: "reactive handle required, got static value"}
		case p.Kind == Static:
			statics[name] = arg.value
		default:
			reactives[name] = arg
		}
	}
	return statics, reactives, nil
}

// bindStatic applies defaults and checks required static parameters.
func bindStatic(m *Module, statics ir.IRObject) (ir.IRObject, error) {
	out := make(ir.IRObject, len(statics))
	for k, v := range statics {
		p, ok := m.Param(k)
		if !ok {
			return nil, &ArgumentError{Code: ErrInvalidArgument, Module: m.Name, Param: k, Reason: "unknown parameter"}
		}
		if p.Kind != Static {
			return nil, &ArgumentError{Code: ErrArgumentKindMismatch, Module: m.Name, Param: k, Reason: "reactive handle required, got static value"}
		}
		out[k] = v
	}
	for _, p := range m.Params {
		if p.Kind != Static {
			continue
		}
		if _, ok := out[p.Name]; ok {
			continue
		}
		if p.Required {
			return nil, &ArgumentError{Code: ErrInvalidArgument, Module: m.Name, Param: p.Name, Reason: "required static argument missing"}
		}
		if p.Default != nil {
			out[p.Name] = p.Default
		}
	}
	return out, nil
}

// bindReactive checks required reactive parameters.
func bindReactive(m *Module, reactives Args) error {
	for _, p := range m.Params {
		if p.Kind != Reactive || !p.Required {
			continue
		}
		if _, ok := reactives[p.Name]; !ok {
			return &ArgumentError{Code: ErrInvalidArgument, Module: m.Name, Param: p.Name, Reason: "required reactive argument missing"}
		}
	}
	return nil
}

// merge combines bound statics and reactive handles into the Args passed
// to the behaviour.
func merge(config ir.IRObject, reactives Args) Args {
	out := make(Args, len(config)+len(reactives))
	for k, v := range config {
		out[k] = StaticArg(v)
	}
	for k, v := range reactives {
		out[k] = v
	}
	return out
}
