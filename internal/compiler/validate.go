package compiler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/weave/internal/catalog"
	"github.com/roach88/weave/internal/ir"
	"github.com/roach88/weave/internal/module"
	"github.com/roach88/weave/internal/namespace"
)

// Validation error codes (E200-E299)
const (
	ErrAppNameEmpty       = "E200" // name is required
	ErrInvalidInstanceID  = "E201" // instance id is not a valid local name
	ErrDuplicateInstance  = "E202" // instance declared twice
	ErrUnknownModule      = "E203" // module not in the registry
	ErrDanglingReference  = "E204" // ref names an unknown instance
	ErrUnknownOutput      = "E205" // ref names an output the module does not declare
	ErrUnknownParam       = "E206" // config or args key is not a parameter
	ErrArgumentKind       = "E207" // static value for a reactive param, or the reverse
	ErrMissingParam       = "E208" // required parameter not supplied
	ErrBindingCycle       = "E209" // instances bind to each other
	ErrDuplicateArgument  = "E210" // parameter supplied both in config and args
	ErrNoInstances        = "E211" // app declares no instances
	ErrUnsupportedAppType = "E299" // Validate called with something else
)

// ValidationError represents an application validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a compiled app against the module registry.
// Returns all errors found (does not fail-fast).
func Validate(v any, reg *catalog.Registry) []ValidationError {
	switch spec := v.(type) {
	case *ir.AppSpec:
		return validateApp(spec, reg)
	case ir.AppSpec:
		return validateApp(&spec, reg)
	default:
		return []ValidationError{{
			Field:   "type",
			Message: fmt.Sprintf("unsupported type: %T", v),
			Code:    ErrUnsupportedAppType,
		}}
	}
}

func validateApp(spec *ir.AppSpec, reg *catalog.Registry) []ValidationError {
	var errs []ValidationError

	if strings.TrimSpace(spec.Name) == "" {
		errs = append(errs, ValidationError{Field: "name", Message: "name is required and must be non-empty", Code: ErrAppNameEmpty})
	}
	if len(spec.Instances) == 0 {
		errs = append(errs, ValidationError{Field: "instances", Message: "at least one instance is required", Code: ErrNoInstances})
	}

	seen := make(map[string]bool, len(spec.Instances))
	for _, inst := range spec.Instances {
		field := "instances." + inst.ID

		if err := namespace.ValidateLocal(inst.ID); err != nil {
			errs = append(errs, ValidationError{Field: field, Message: err.Error(), Code: ErrInvalidInstanceID})
		}
		if seen[inst.ID] {
			errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf("instance %q declared twice", inst.ID), Code: ErrDuplicateInstance})
		}
		seen[inst.ID] = true

		entry, ok := reg.Lookup(inst.Module)
		if !ok {
			errs = append(errs, ValidationError{
				Field:   field + ".module",
				Message: fmt.Sprintf("unknown module %q (known: %s)", inst.Module, strings.Join(reg.Names(), ", ")),
				Code:    ErrUnknownModule,
			})
		} else {
			errs = append(errs, validateArgs(field, inst, entry.Module)...)
		}

		for _, name := range sortedArgs(inst.Bindings) {
			ref := inst.Bindings[name]
			errs = append(errs, validateRef(spec, reg, field+".args."+name, ref)...)
		}
	}

	for _, c := range AnalyzeCycles(spec) {
		errs = append(errs, ValidationError{
			Field:   "instances." + c.Path[0],
			Message: c.Message,
			Code:    ErrBindingCycle,
		})
	}
	return errs
}

// validateArgs checks config and bindings against the module's parameters.
func validateArgs(field string, inst ir.InstanceSpec, m *module.Module) []ValidationError {
	var errs []ValidationError

	for _, key := range inst.Config.SortedKeys() {
		p, ok := m.Param(key)
		switch {
		case !ok:
			errs = append(errs, ValidationError{Field: field + ".config." + key, Message: fmt.Sprintf("module %q has no parameter %q", m.Name, key), Code: ErrUnknownParam})
		case p.Kind == module.Reactive:
			errs = append(errs, ValidationError{Field: field + ".config." + key, Message: fmt.Sprintf("parameter %q is reactive; bind it in args with {ref: ...}", key), Code: ErrArgumentKind})
		}
	}
	for _, name := range sortedArgs(inst.Bindings) {
		p, ok := m.Param(name)
		switch {
		case !ok:
			errs = append(errs, ValidationError{Field: field + ".args." + name, Message: fmt.Sprintf("module %q has no parameter %q", m.Name, name), Code: ErrUnknownParam})
		case p.Kind == module.Static:
			errs = append(errs, ValidationError{Field: field + ".args." + name, Message: fmt.Sprintf("parameter %q is static; set it in config", name), Code: ErrArgumentKind})
		}
		if _, dup := inst.Config[name]; dup {
			errs = append(errs, ValidationError{Field: field + ".args." + name, Message: fmt.Sprintf("parameter %q supplied in both config and args", name), Code: ErrDuplicateArgument})
		}
	}
	for _, p := range m.Params {
		if !p.Required {
			continue
		}
		_, inConfig := inst.Config[p.Name]
		_, inArgs := inst.Bindings[p.Name]
		if !inConfig && !inArgs {
			errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf("required %s parameter %q missing", p.Kind, p.Name), Code: ErrMissingParam})
		}
	}
	return errs
}

func validateRef(spec *ir.AppSpec, reg *catalog.Registry, field string, ref ir.OutputRef) []ValidationError {
	src := spec.Instance(ref.Instance)
	if src == nil {
		return []ValidationError{{Field: field, Message: fmt.Sprintf("reference %q names an unknown instance", ref), Code: ErrDanglingReference}}
	}
	entry, ok := reg.Lookup(src.Module)
	if !ok {
		return nil // reported on the source instance
	}
	if !entry.HasOutput(ref.Output) {
		return []ValidationError{{
			Field:   field,
			Message: fmt.Sprintf("module %q has no output %q (outputs: %s)", src.Module, ref.Output, strings.Join(entry.Outputs, ", ")),
			Code:    ErrUnknownOutput,
		}}
	}
	return nil
}

func sortedArgs(bindings map[string]ir.OutputRef) []string {
	names := make([]string, 0, len(bindings))
	for name := range bindings {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
