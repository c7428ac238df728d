package compiler

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/weave/internal/ir"
)

// CompileApp parses a CUE value into an AppSpec.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The value is the app struct itself:
//
//	app: {
//		name: "explorer"
//		instances: {
//			dataset: {module: "select", config: {choices: ["iris", "mtcars"]}}
//			view: {module: "summary", args: {source: {ref: "dataset.value"}}}
//		}
//	}
//
// Instances keep their declaration order. Binding order is resolved later
// by catalog.MountOrder.
func CompileApp(v cue.Value) (*ir.AppSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &ir.AppSpec{}

	nameVal := v.LookupPath(cue.ParsePath("name"))
	if !nameVal.Exists() {
		return nil, &CompileError{Field: "name", Message: "name is required", Pos: v.Pos()}
	}
	name, err := nameVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	spec.Name = name

	instVal := v.LookupPath(cue.ParsePath("instances"))
	if !instVal.Exists() {
		return nil, &CompileError{Field: "instances", Message: "at least one instance is required", Pos: v.Pos()}
	}
	iter, err := instVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		inst, err := compileInstance(iter.Selector().Unquoted(), iter.Value())
		if err != nil {
			return nil, err
		}
		spec.Instances = append(spec.Instances, *inst)
	}
	if len(spec.Instances) == 0 {
		return nil, &CompileError{Field: "instances", Message: "at least one instance is required", Pos: instVal.Pos()}
	}
	return spec, nil
}

func compileInstance(id string, v cue.Value) (*ir.InstanceSpec, error) {
	inst := &ir.InstanceSpec{ID: id}

	modVal := v.LookupPath(cue.ParsePath("module"))
	if !modVal.Exists() {
		return nil, &CompileError{Field: "module", Message: fmt.Sprintf("instance %q: module is required", id), Pos: v.Pos()}
	}
	mod, err := modVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	inst.Module = mod

	if cfgVal := v.LookupPath(cue.ParsePath("config")); cfgVal.Exists() {
		cfg, err := toIR(cfgVal)
		if err != nil {
			return nil, err
		}
		obj, ok := cfg.(ir.IRObject)
		if !ok {
			return nil, &CompileError{Field: "config", Message: fmt.Sprintf("instance %q: config must be a struct", id), Pos: cfgVal.Pos()}
		}
		inst.Config = obj
	}

	if argsVal := v.LookupPath(cue.ParsePath("args")); argsVal.Exists() {
		args, err := argsVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		inst.Bindings = make(map[string]ir.OutputRef)
		for args.Next() {
			name := args.Selector().Unquoted()
			ref, err := compileRef(id, name, args.Value())
			if err != nil {
				return nil, err
			}
			inst.Bindings[name] = ref
		}
	}
	return inst, nil
}

// compileRef parses {ref: "instance.output"}.
func compileRef(id, arg string, v cue.Value) (ir.OutputRef, error) {
	refVal := v.LookupPath(cue.ParsePath("ref"))
	if !refVal.Exists() {
		return ir.OutputRef{}, &CompileError{
			Field:   "args",
			Message: fmt.Sprintf("instance %q: argument %q must be {ref: \"instance.output\"}; static values go in config", id, arg),
			Pos:     v.Pos(),
		}
	}
	s, err := refVal.String()
	if err != nil {
		return ir.OutputRef{}, formatCUEError(err)
	}
	inst, out, ok := strings.Cut(s, ".")
	if !ok || inst == "" || out == "" || strings.Contains(out, ".") {
		return ir.OutputRef{}, &CompileError{
			Field:   "ref",
			Message: fmt.Sprintf("instance %q: argument %q: reference %q is not \"instance.output\"", id, arg, s),
			Pos:     refVal.Pos(),
		}
	}
	return ir.OutputRef{Instance: inst, Output: out}, nil
}

// toIR converts a concrete CUE value into an IRValue. Floats are rejected:
// the value model is integer-only.
func toIR(v cue.Value) (ir.IRValue, error) {
	if d, ok := v.Default(); ok {
		v = d
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}
	switch v.Kind() {
	case cue.NullKind:
		return ir.IRNull{}, nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.IRBool(b), nil
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.IRString(s), nil
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.IRInt(n), nil
	case cue.FloatKind:
		return nil, &CompileError{Field: "type", Message: "floats are not allowed; use integers", Pos: v.Pos()}
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		arr := ir.IRArray{}
		for iter.Next() {
			elem, err := toIR(iter.Value())
			if err != nil {
				return nil, err
			}
			arr = append(arr, elem)
		}
		return arr, nil
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		obj := ir.IRObject{}
		for iter.Next() {
			elem, err := toIR(iter.Value())
			if err != nil {
				return nil, err
			}
			obj[iter.Selector().Unquoted()] = elem
		}
		return obj, nil
	default:
		return nil, &CompileError{Field: "type", Message: fmt.Sprintf("unsupported value kind %s", v.Kind()), Pos: v.Pos()}
	}
}

// CompileError is a compile failure with its CUE position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return &CompileError{Field: "cue", Message: firstErr.Error()}
}
