package namespace

import (
	"fmt"
	"sort"
	"strings"
)

// Separator joins scope segments and local names into qualified identifiers.
// Local names may never contain it, which is what makes Qualify injective.
const Separator = "."

// ValidateLocal checks that name is a non-empty local name made only of
// [A-Za-z0-9_].
func ValidateLocal(name string) error {
	if name == "" {
		return &IdentifierError{Code: ErrInvalidIdentifier, Name: name, Reason: "must not be empty"}
	}
	for i := 0; i < len(name); i++ {
		if !isNameByte(name[i]) {
			return &IdentifierError{
				Code:   ErrInvalidIdentifier,
				Name:   name,
				Reason: fmt.Sprintf("character %q at offset %d is outside [A-Za-z0-9_]", name[i], i),
			}
		}
	}
	return nil
}

func isNameByte(c byte) bool {
	return c == '_' ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9')
}

// ValidateQualified checks that id is a non-empty sequence of valid local
// names joined by Separator.
func ValidateQualified(id string) error {
	if id == "" {
		return &IdentifierError{Code: ErrInvalidIdentifier, Name: id, Reason: "must not be empty"}
	}
	for _, seg := range strings.Split(id, Separator) {
		if err := ValidateLocal(seg); err != nil {
			return &IdentifierError{Code: ErrInvalidIdentifier, Name: id, Reason: fmt.Sprintf("segment %q is invalid", seg)}
		}
	}
	return nil
}

// Qualify joins a scope identifier and a local name.
//
// scopeID is either "" (the root scope, in which case the local name is
// returned unchanged) or a qualified identifier. The result is deterministic
// and, because no segment can contain Separator, distinct (scopeID,
// localName) pairs never produce the same qualified identifier.
func Qualify(scopeID, localName string) (string, error) {
	if err := ValidateLocal(localName); err != nil {
		return "", err
	}
	if scopeID == "" {
		return localName, nil
	}
	if err := ValidateQualified(scopeID); err != nil {
		return "", err
	}
	return scopeID + Separator + localName, nil
}

// Split returns the scope and local parts of a qualified identifier.
// "a.b.choice" splits into ("a.b", "choice"); "choice" into ("", "choice").
func Split(qualified string) (scopeID, localName string) {
	i := strings.LastIndex(qualified, Separator)
	if i < 0 {
		return "", qualified
	}
	return qualified[:i], qualified[i+1:]
}

// Scope is one level of the namespace hierarchy.
//
// The root scope has an empty ID. Every module instance owns a child scope
// named by its instance identifier; the scope rewrites the local names the
// module author uses into qualified identifiers, so module code never
// handles its own scope ID past construction time.
//
// Scopes are not safe for concurrent use. Each belongs to exactly one
// session, which serializes all access.
type Scope struct {
	id       string
	parent   *Scope
	children map[string]*Scope
	names    map[string]bool
}

// NewRoot creates an empty root scope.
func NewRoot() *Scope {
	return &Scope{
		children: make(map[string]*Scope),
		names:    make(map[string]bool),
	}
}

// ID returns the qualified identifier of the scope ("" for the root).
func (s *Scope) ID() string {
	return s.id
}

// Parent returns the enclosing scope, or nil for the root.
func (s *Scope) Parent() *Scope {
	return s.parent
}

// Depth returns the nesting level (0 for the root).
func (s *Scope) Depth() int {
	d := 0
	for p := s.parent; p != nil; p = p.parent {
		d++
	}
	return d
}

// Qualify rewrites a local name into this scope's qualified identifier.
func (s *Scope) Qualify(localName string) (string, error) {
	return Qualify(s.id, localName)
}

// Unqualify recovers the local name of an identifier declared directly in
// this scope. It reports false for identifiers belonging to other scopes,
// including nested child scopes.
func (s *Scope) Unqualify(qualified string) (string, bool) {
	scopeID, local := Split(qualified)
	if scopeID != s.id || ValidateLocal(local) != nil {
		return "", false
	}
	return local, true
}

// Child creates the nested scope for a module instance named id.
//
// Two siblings with the same id, or a child whose id collides with a name
// already declared in this scope, fail with ErrDuplicateIdentifier.
func (s *Scope) Child(id string) (*Scope, error) {
	qualified, err := s.Qualify(id)
	if err != nil {
		return nil, err
	}
	if _, exists := s.children[id]; exists || s.names[id] {
		return nil, &IdentifierError{Code: ErrDuplicateIdentifier, Name: qualified, Reason: "already declared in this scope"}
	}
	child := &Scope{
		id:       qualified,
		parent:   s,
		children: make(map[string]*Scope),
		names:    make(map[string]bool),
	}
	s.children[id] = child
	return child, nil
}

// Lookup returns the existing child scope named id.
func (s *Scope) Lookup(id string) (*Scope, bool) {
	child, ok := s.children[id]
	return child, ok
}

// Declare reserves a local name (a control or render target) in this scope
// and returns its qualified identifier.
func (s *Scope) Declare(localName string) (string, error) {
	qualified, err := s.Qualify(localName)
	if err != nil {
		return "", err
	}
	if _, exists := s.children[localName]; exists || s.names[localName] {
		return "", &IdentifierError{Code: ErrDuplicateIdentifier, Name: qualified, Reason: "already declared in this scope"}
	}
	s.names[localName] = true
	return qualified, nil
}

// Declared reports whether localName has been declared in this scope.
func (s *Scope) Declared(localName string) bool {
	return s.names[localName]
}

// Names returns the declared local names in sorted order.
func (s *Scope) Names() []string {
	out := make([]string, 0, len(s.names))
	for n := range s.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Release removes the child scope named id so the identifier can be reused
// by a later instantiation. It is a no-op for unknown ids.
func (s *Scope) Release(id string) {
	delete(s.children, id)
}

// Detach removes this scope from its parent.
func (s *Scope) Detach() {
	if s.parent == nil {
		return
	}
	_, local := Split(s.id)
	if s.parent.children[local] == s {
		delete(s.parent.children, local)
	}
}
