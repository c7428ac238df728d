package module

import (
	"fmt"
	"strings"

	"github.com/roach88/weave/internal/ir"
	"github.com/roach88/weave/internal/namespace"
)

// NS is the namespacer handed to a descriptor. It turns the local names
// the author writes into identifiers qualified by the instance scope.
//
// Errors are recorded rather than returned so descriptors stay
// expression-shaped; the first one fails the instantiation.
type NS struct {
	scope    *namespace.Scope
	embedded map[string]*embedded
	order    []string
	err      error
}

// embedded is a child instance whose descriptor already ran inside the
// parent's descriptor and whose behaviour is still to come.
type embedded struct {
	module *Module
	scope  *namespace.Scope
	ns     *NS
	config ir.IRObject
	tree   *ir.Element
	used   bool
}

func newNS(scope *namespace.Scope) *NS {
	return &NS{scope: scope, embedded: make(map[string]*embedded)}
}

// Scope returns the qualified identifier of the instance.
func (n *NS) Scope() string {
	return n.scope.ID()
}

// ID declares a local element name and returns its qualified identifier.
func (n *NS) ID(local string) string {
	qualified, err := n.scope.Declare(local)
	if err != nil {
		n.fail(err)
		if qualified == "" {
			qualified, _ = n.scope.Qualify(local)
		}
	}
	return qualified
}

// Embed runs another module's descriptor in a child scope named id and
// returns the resulting subtree for placement in this tree. The child's
// behaviour runs when the enclosing behaviour calls Context.Module with
// the same id, or automatically once the enclosing behaviour returns.
func (n *NS) Embed(m *Module, id string, config ir.IRObject) *ir.Element {
	if n.err != nil {
		return nil
	}
	if err := m.Validate(); err != nil {
		n.fail(err)
		return nil
	}
	if n.scope.Depth() >= MaxDepth {
		n.fail(fmt.Errorf("%w: embedding %q in %q exceeds nesting depth %d", ErrInvalidModule, id, n.scope.ID(), MaxDepth))
		return nil
	}
	bound, err := bindStatic(m, config)
	if err != nil {
		n.fail(err)
		return nil
	}
	child, err := n.scope.Child(id)
	if err != nil {
		n.fail(err)
		return nil
	}
	childNS := newNS(child)
	tree, err := describe(m, childNS, bound)
	if err != nil {
		child.Detach()
		n.fail(err)
		return nil
	}
	n.embedded[id] = &embedded{module: m, scope: child, ns: childNS, config: bound, tree: tree}
	n.order = append(n.order, id)
	return tree
}

// Err returns the first error recorded while describing.
func (n *NS) Err() error {
	return n.err
}

func (n *NS) fail(err error) {
	if n.err == nil {
		n.err = err
	}
}

// describe runs the module descriptor and checks that every identified
// element in the result was declared through ns or an embedded child.
func describe(m *Module, ns *NS, config ir.IRObject) (*ir.Element, error) {
	if m.UI == nil {
		return nil, nil
	}
	tree, err := m.UI(ns, config)
	if err != nil {
		return nil, fmt.Errorf("module %q descriptor: %w", m.Name, err)
	}
	if err := ns.Err(); err != nil {
		return nil, err
	}
	if err := checkTree(tree, ns.scope); err != nil {
		return nil, err
	}
	return tree, nil
}

// checkTree verifies identifier ownership and uniqueness in a subtree.
func checkTree(tree *ir.Element, scope *namespace.Scope) error {
	seen := make(map[string]bool)
	var bad error
	tree.Walk(func(el *ir.Element) bool {
		if bad != nil {
			return false
		}
		if el.ID == "" {
			return true
		}
		if seen[el.ID] {
			bad = &namespace.IdentifierError{Code: namespace.ErrDuplicateIdentifier, Name: el.ID, Reason: "appears more than once in the interface tree"}
			return false
		}
		seen[el.ID] = true
		if !owns(scope, el.ID) {
			bad = &namespace.IdentifierError{
				Code:   namespace.ErrInvalidIdentifier,
				Name:   el.ID,
				Reason: fmt.Sprintf("not declared in scope %q", scope.ID()),
			}
			return false
		}
		return true
	})
	return bad
}

// owns reports whether id was declared in scope or one of its descendants.
func owns(scope *namespace.Scope, id string) bool {
	rest := id
	if scope.ID() != "" {
		prefix := scope.ID() + namespace.Separator
		if !strings.HasPrefix(id, prefix) {
			return false
		}
		rest = strings.TrimPrefix(id, prefix)
	}
	segs := strings.Split(rest, namespace.Separator)
	s := scope
	for _, seg := range segs[:len(segs)-1] {
		child, ok := s.Lookup(seg)
		if !ok {
			return false
		}
		s = child
	}
	return s.Declared(segs[len(segs)-1])
}
