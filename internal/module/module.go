package module

import (
	"fmt"

	"github.com/roach88/weave/internal/ir"
	"github.com/roach88/weave/internal/namespace"
	"github.com/roach88/weave/internal/reactive"
)

// MaxDepth bounds instance nesting so a module embedding itself fails
// instead of recursing forever.
const MaxDepth = 16

// ParamKind says whether a parameter takes a static value or a reactive
// handle.
type ParamKind int

const (
	// Static parameters are fixed for the lifetime of the instance and are
	// visible to the descriptor.
	Static ParamKind = iota + 1
	// Reactive parameters take a cell handle, read only through an explicit
	// accessor from the behaviour.
	Reactive
)

// String returns the kind name.
func (k ParamKind) String() string {
	switch k {
	case Static:
		return "static"
	case Reactive:
		return "reactive"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Param declares one module parameter.
type Param struct {
	Name     string
	Kind     ParamKind
	Required bool
	Default  ir.IRValue // Static parameters only
}

// Descriptor builds the instance's interface tree from its static
// configuration. It must be pure: the only state it touches is the NS,
// which records the identifiers it declares.
type Descriptor func(ns *NS, config ir.IRObject) (*ir.Element, error)

// Behavior registers the instance's cells and returns its named outputs.
type Behavior func(c *Context, args Args) (Outputs, error)

// Outputs maps logical output names to cell handles.
type Outputs map[string]*reactive.Cell

// Module is a reusable, independently instantiable unit.
type Module struct {
	Name   string
	UI     Descriptor
	Server Behavior
	Params []Param
}

// Validate checks the module definition.
func (m *Module) Validate() error {
	if m == nil {
		return fmt.Errorf("%w: nil module", ErrInvalidModule)
	}
	if m.Name == "" {
		return fmt.Errorf("%w: module name is required", ErrInvalidModule)
	}
	seen := make(map[string]bool, len(m.Params))
	for _, p := range m.Params {
		if err := namespace.ValidateLocal(p.Name); err != nil {
			return fmt.Errorf("%w: module %q: parameter name: %v", ErrInvalidModule, m.Name, err)
		}
		if seen[p.Name] {
			return fmt.Errorf("%w: module %q: parameter %q declared twice", ErrInvalidModule, m.Name, p.Name)
		}
		seen[p.Name] = true
		switch p.Kind {
		case Static:
		case Reactive:
			if p.Default != nil {
				return fmt.Errorf("%w: module %q: reactive parameter %q cannot have a default", ErrInvalidModule, m.Name, p.Name)
			}
		default:
			return fmt.Errorf("%w: module %q: parameter %q has no kind", ErrInvalidModule, m.Name, p.Name)
		}
	}
	return nil
}

// Param returns the parameter named name.
func (m *Module) Param(name string) (Param, bool) {
	for _, p := range m.Params {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}
