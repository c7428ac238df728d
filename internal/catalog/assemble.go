package catalog

import (
	"fmt"
	"sort"

	"github.com/roach88/weave/internal/engine"
	"github.com/roach88/weave/internal/ir"
	"github.com/roach88/weave/internal/module"
	"github.com/roach88/weave/internal/namespace"
	"github.com/roach88/weave/internal/reactive"
)

// Assemble resolves every instance of spec against reg and returns a
// setup function that mounts them into a root. Instances are mounted so
// that each binding's source is mounted first; ties keep declaration
// order.
//
// Assemble checks what can be checked without a session (module names,
// identifiers, binding targets, binding cycles). Argument kinds and
// configuration are checked by the module layer at mount time.
func Assemble(spec ir.AppSpec, reg *Registry) (engine.SetupFunc, error) {
	order, err := MountOrder(spec)
	if err != nil {
		return nil, err
	}

	type planned struct {
		inst  ir.InstanceSpec
		entry Entry
	}
	plan := make([]planned, 0, len(order))
	for _, inst := range order {
		entry, ok := reg.Lookup(inst.Module)
		if !ok {
			return nil, fmt.Errorf("instance %q: %w: unknown module %q", inst.ID, module.ErrInvalidModule, inst.Module)
		}
		for name, ref := range inst.Bindings {
			src := spec.Instance(ref.Instance)
			srcEntry, _ := reg.Lookup(src.Module)
			if !srcEntry.HasOutput(ref.Output) {
				return nil, &module.ArgumentError{
					Code:   module.ErrInvalidArgument,
					Module: inst.Module,
					Param:  name,
					Reason: fmt.Sprintf("module %q has no output %q", src.Module, ref.Output),
				}
			}
		}
		plan = append(plan, planned{inst: inst, entry: entry})
	}

	return func(r *engine.Root) error {
		mounted := make(map[string]*module.Instance, len(plan))
		for _, p := range plan {
			args := make(module.Args, len(p.inst.Config)+len(p.inst.Bindings))
			for k, v := range p.inst.Config {
				args[k] = module.StaticArg(v)
			}
			for name, ref := range p.inst.Bindings {
				cell, ok := mounted[ref.Instance].Output(ref.Output)
				if !ok {
					return &module.ArgumentError{
						Code:   module.ErrInvalidArgument,
						Module: p.inst.Module,
						Param:  name,
						Reason: fmt.Sprintf("%s did not produce output %q", ref.Instance, ref.Output),
					}
				}
				args[name] = module.ReactiveArg(cell)
			}
			inst, err := r.Mount(p.entry.Module, p.inst.ID, args)
			if err != nil {
				return fmt.Errorf("mount %q: %w", p.inst.ID, err)
			}
			mounted[p.inst.ID] = inst
		}
		return nil
	}, nil
}

// MountOrder sorts instances so that every binding's source comes before
// the instance bound to it (Kahn's algorithm, declaration order breaking
// ties). It fails on invalid or duplicate ids, dangling references, and
// cycles.
func MountOrder(spec ir.AppSpec) ([]ir.InstanceSpec, error) {
	index := make(map[string]int, len(spec.Instances))
	for i, inst := range spec.Instances {
		if err := namespace.ValidateLocal(inst.ID); err != nil {
			return nil, fmt.Errorf("instance id: %w", err)
		}
		if _, dup := index[inst.ID]; dup {
			return nil, &namespace.IdentifierError{
				Code:   namespace.ErrDuplicateIdentifier,
				Name:   inst.ID,
				Reason: "instance declared twice",
			}
		}
		index[inst.ID] = i
	}

	indegree := make([]int, len(spec.Instances))
	dependents := make([][]int, len(spec.Instances))
	for i, inst := range spec.Instances {
		seen := make(map[int]bool)
		for _, name := range sortedBindings(inst) {
			ref := inst.Bindings[name]
			j, ok := index[ref.Instance]
			if !ok {
				return nil, &namespace.IdentifierError{
					Code:   namespace.ErrInvalidIdentifier,
					Name:   ref.String(),
					Reason: fmt.Sprintf("instance %q binds %q to an unknown instance", inst.ID, name),
				}
			}
			if seen[j] {
				continue
			}
			seen[j] = true
			indegree[i]++
			dependents[j] = append(dependents[j], i)
		}
	}

	var ready []int
	for i := range spec.Instances {
		if indegree[i] == 0 {
			ready = append(ready, i)
		}
	}
	out := make([]ir.InstanceSpec, 0, len(spec.Instances))
	for len(ready) > 0 {
		sort.Ints(ready)
		i := ready[0]
		ready = ready[1:]
		out = append(out, spec.Instances[i])
		for _, d := range dependents[i] {
			indegree[d]--
			if indegree[d] == 0 {
				ready = append(ready, d)
			}
		}
	}
	if len(out) != len(spec.Instances) {
		var stuck []string
		for i, inst := range spec.Instances {
			if indegree[i] > 0 {
				stuck = append(stuck, inst.ID)
			}
		}
		return nil, fmt.Errorf("%w: binding cycle among instances %v", reactive.ErrCyclicDependency, stuck)
	}
	return out, nil
}

func sortedBindings(inst ir.InstanceSpec) []string {
	names := make([]string, 0, len(inst.Bindings))
	for name := range inst.Bindings {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
