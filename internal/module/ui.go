package module

import "github.com/roach88/weave/internal/ir"

// Element constructors for descriptors. Identifiers passed in must already
// be qualified, normally via NS.ID.

// Panel groups children under an optional heading.
func Panel(title string, children ...*ir.Element) *ir.Element {
	el := &ir.Element{Tag: "panel"}
	if title != "" {
		el.Attrs = ir.IRObject{"title": ir.IRString(title)}
	}
	return el.Append(children...)
}

// Label is static text.
func Label(text string) *ir.Element {
	return &ir.Element{Tag: "label", Text: text}
}

// SelectInput is a single-choice control. selected defaults to the first
// choice when nil.
func SelectInput(id, label string, choices ir.IRArray, selected ir.IRValue) *ir.Element {
	if ir.Equal(selected, ir.IRNull{}) {
		selected = ir.IRNull{}
		if len(choices) > 0 {
			selected = choices[0]
		}
	}
	return &ir.Element{
		Tag: ir.TagSelect,
		ID:  id,
		Attrs: ir.IRObject{
			"label":   ir.IRString(label),
			"choices": choices,
			"value":   selected,
		},
	}
}

// TextInput is a free-text control.
func TextInput(id, label, value string) *ir.Element {
	return &ir.Element{
		Tag: ir.TagText,
		ID:  id,
		Attrs: ir.IRObject{
			"label": ir.IRString(label),
			"value": ir.IRString(value),
		},
	}
}

// NumericInput is an integer control.
func NumericInput(id, label string, value int64) *ir.Element {
	return &ir.Element{
		Tag: ir.TagNumeric,
		ID:  id,
		Attrs: ir.IRObject{
			"label": ir.IRString(label),
			"value": ir.IRInt(value),
		},
	}
}

// Checkbox is a boolean control.
func Checkbox(id, label string, checked bool) *ir.Element {
	return &ir.Element{
		Tag: ir.TagCheckbox,
		ID:  id,
		Attrs: ir.IRObject{
			"label": ir.IRString(label),
			"value": ir.IRBool(checked),
		},
	}
}

// Button is an action control; its value is the click count.
func Button(id, label string) *ir.Element {
	return &ir.Element{
		Tag: ir.TagButton,
		ID:  id,
		Attrs: ir.IRObject{
			"label": ir.IRString(label),
			"value": ir.IRInt(0),
		},
	}
}

// Output is a render target.
func Output(id string) *ir.Element {
	return &ir.Element{Tag: ir.TagOutput, ID: id}
}
