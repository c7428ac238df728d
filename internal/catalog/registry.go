package catalog

import (
	"fmt"
	"sort"
	"sync"

	"github.com/roach88/weave/internal/module"
)

// Entry is a registered module with the outputs its behaviour returns.
// Outputs are declared up front so application definitions can be
// checked before any session exists.
type Entry struct {
	Module  *module.Module
	Outputs []string
	Doc     string
}

// HasOutput reports whether the module declares an output named name.
func (e Entry) HasOutput(name string) bool {
	for _, o := range e.Outputs {
		if o == name {
			return true
		}
	}
	return false
}

// Registry maps module names to definitions.
//
// Thread-safety: safe for concurrent use; registration normally happens
// once at startup.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

// Register adds a module. Names are unique within a registry.
func (r *Registry) Register(m *module.Module, doc string, outputs ...string) error {
	if err := m.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[m.Name]; ok {
		return fmt.Errorf("%w: module %q already registered", module.ErrInvalidModule, m.Name)
	}
	outs := append([]string(nil), outputs...)
	sort.Strings(outs)
	r.entries[m.Name] = Entry{Module: m, Outputs: outs, Doc: doc}
	return nil
}

// MustRegister is Register for static setup; it panics on error.
func (r *Registry) MustRegister(m *module.Module, doc string, outputs ...string) {
	if err := r.Register(m, doc, outputs...); err != nil {
		panic(err)
	}
}

// Lookup returns the entry for a module name.
func (r *Registry) Lookup(name string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e, ok
}

// Names returns the registered module names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Builtins returns a registry holding the built-in modules.
func Builtins() *Registry {
	r := NewRegistry()
	r.MustRegister(Select, "single-choice control", "value")
	r.MustRegister(Text, "free-text control", "value")
	r.MustRegister(Number, "integer control", "value")
	r.MustRegister(Counter, "click counter", "count")
	r.MustRegister(Summary, "renders a reactive source with its length", "length")
	r.MustRegister(Filter, "filters reactive items by an embedded select", "matches")
	return r
}
