package ir

import "fmt"

// Element tags with special meaning to the composition root.
const (
	TagSelect   = "select"
	TagText     = "text"
	TagNumeric  = "numeric"
	TagCheckbox = "checkbox"
	TagButton   = "button"
	TagOutput   = "output"
)

// inputTags lists the tags whose elements are backed by source cells.
var inputTags = map[string]bool{
	TagSelect:   true,
	TagText:     true,
	TagNumeric:  true,
	TagCheckbox: true,
	TagButton:   true,
}

// Element is a node of the abstract interface tree a module descriptor emits.
//
// An external renderer turns the tree into a visual surface; weave only
// guarantees that every identified element carries a qualified ID that is
// unique within the composed tree. Layout-only elements (ID == "") are
// allowed and are not addressable.
type Element struct {
	Tag      string     `json:"tag"`
	ID       string     `json:"id,omitempty"`
	Attrs    IRObject   `json:"attrs,omitempty"`
	Text     string     `json:"text,omitempty"`
	Children []*Element `json:"children,omitempty"`
}

// IsInput reports whether the element is a control backed by a source cell.
func (e *Element) IsInput() bool {
	return e != nil && e.ID != "" && inputTags[e.Tag]
}

// IsTarget reports whether the element is a render target.
func (e *Element) IsTarget() bool {
	return e != nil && e.ID != "" && e.Tag == TagOutput
}

// InitialValue returns the value a control starts with (Attrs["value"]),
// or IRNull when none was declared.
func (e *Element) InitialValue() IRValue {
	if e == nil || e.Attrs == nil {
		return IRNull{}
	}
	if v, ok := e.Attrs["value"]; ok && v != nil {
		return v
	}
	return IRNull{}
}

// Walk visits the element and all its descendants depth-first, parents
// before children. Returning false from fn skips the element's children.
func (e *Element) Walk(fn func(*Element) bool) {
	if e == nil {
		return
	}
	if !fn(e) {
		return
	}
	for _, child := range e.Children {
		child.Walk(fn)
	}
}

// Find returns the element with the given qualified ID, or nil.
func (e *Element) Find(id string) *Element {
	var found *Element
	e.Walk(func(el *Element) bool {
		if found != nil {
			return false
		}
		if el.ID == id {
			found = el
			return false
		}
		return true
	})
	return found
}

// Inputs returns all input controls in document order.
func (e *Element) Inputs() []*Element {
	var out []*Element
	e.Walk(func(el *Element) bool {
		if el.IsInput() {
			out = append(out, el)
		}
		return true
	})
	return out
}

// Targets returns all render targets in document order.
func (e *Element) Targets() []*Element {
	var out []*Element
	e.Walk(func(el *Element) bool {
		if el.IsTarget() {
			out = append(out, el)
		}
		return true
	})
	return out
}

// CheckUnique returns an error naming the first qualified ID that appears
// more than once in the tree.
func (e *Element) CheckUnique() error {
	seen := make(map[string]bool)
	var dup string
	e.Walk(func(el *Element) bool {
		if dup != "" {
			return false
		}
		if el.ID == "" {
			return true
		}
		if seen[el.ID] {
			dup = el.ID
			return false
		}
		seen[el.ID] = true
		return true
	})
	if dup != "" {
		return fmt.Errorf("element id %q appears more than once", dup)
	}
	return nil
}

// Append adds children and returns the element for chaining.
func (e *Element) Append(children ...*Element) *Element {
	for _, c := range children {
		if c != nil {
			e.Children = append(e.Children, c)
		}
	}
	return e
}

// Hash returns the content hash of the tree's canonical form.
func (e *Element) Hash() (string, error) {
	return TreeHash(e)
}

// ToIR returns the tree as an IRObject, the form hashed and sent to
// renderers.
func (e *Element) ToIR() IRValue {
	return e.toIR()
}

// toIR converts the tree into an IRObject for canonical hashing.
func (e *Element) toIR() IRValue {
	if e == nil {
		return IRNull{}
	}
	obj := IRObject{"tag": IRString(e.Tag)}
	if e.ID != "" {
		obj["id"] = IRString(e.ID)
	}
	if len(e.Attrs) > 0 {
		obj["attrs"] = e.Attrs
	}
	if e.Text != "" {
		obj["text"] = IRString(e.Text)
	}
	if len(e.Children) > 0 {
		children := make(IRArray, len(e.Children))
		for i, c := range e.Children {
			children[i] = c.toIR()
		}
		obj["children"] = children
	}
	return obj
}
