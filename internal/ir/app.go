package ir

// AppSpec is a compiled application definition: the top-level module
// instances a composition root mounts for every new session.
type AppSpec struct {
	Name      string         `json:"name"`
	Instances []InstanceSpec `json:"instances"` // Mount order (dependencies first)
}

// InstanceSpec declares one top-level module instance.
type InstanceSpec struct {
	ID     string   `json:"id"`
	Module string   `json:"module"`
	Config IRObject `json:"config,omitempty"` // Static arguments

	// Bindings maps a reactive argument name to an output reference of an
	// earlier instance.
	Bindings map[string]OutputRef `json:"bindings,omitempty"`
}

// OutputRef points at a named output of another instance.
type OutputRef struct {
	Instance string `json:"instance"`
	Output   string `json:"output"`
}

// String renders the reference as "instance.output".
func (r OutputRef) String() string {
	return r.Instance + "." + r.Output
}

// Instance returns the instance spec with the given ID, or nil.
func (a *AppSpec) Instance(id string) *InstanceSpec {
	for i := range a.Instances {
		if a.Instances[i].ID == id {
			return &a.Instances[i]
		}
	}
	return nil
}

// toIR converts the spec into an IRObject for canonical hashing.
func (a AppSpec) toIR() IRValue {
	instances := make(IRArray, len(a.Instances))
	for i, inst := range a.Instances {
		obj := IRObject{
			"id":     IRString(inst.ID),
			"module": IRString(inst.Module),
		}
		if inst.Config != nil {
			obj["config"] = inst.Config
		}
		if len(inst.Bindings) > 0 {
			bindings := make(IRObject, len(inst.Bindings))
			for name, ref := range inst.Bindings {
				bindings[name] = IRString(ref.String())
			}
			obj["bindings"] = bindings
		}
		instances[i] = obj
	}
	return IRObject{
		"name":      IRString(a.Name),
		"instances": instances,
	}
}
