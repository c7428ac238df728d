package ir

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTree() *Element {
	return &Element{Tag: "div", Children: []*Element{
		{Tag: TagSelect, ID: "a.choice", Attrs: IRObject{"value": IRString("iris")}},
		{Tag: "div", Children: []*Element{
			{Tag: TagButton, ID: "b.go"},
			{Tag: TagOutput, ID: "b.result"},
		}},
		{Tag: "p", Text: "static text"},
	}}
}

func TestElementInputsAndTargets(t *testing.T) {
	tree := sampleTree()

	inputs := tree.Inputs()
	require.Len(t, inputs, 2)
	assert.Equal(t, "a.choice", inputs[0].ID)
	assert.Equal(t, "b.go", inputs[1].ID)

	targets := tree.Targets()
	require.Len(t, targets, 1)
	assert.Equal(t, "b.result", targets[0].ID)
}

func TestElementInitialValue(t *testing.T) {
	tree := sampleTree()
	assert.Equal(t, IRString("iris"), tree.Find("a.choice").InitialValue())
	assert.Equal(t, IRNull{}, tree.Find("b.go").InitialValue())
}

func TestElementFind(t *testing.T) {
	tree := sampleTree()
	assert.NotNil(t, tree.Find("b.result"))
	assert.Nil(t, tree.Find("missing"))
}

func TestElementCheckUnique(t *testing.T) {
	require.NoError(t, sampleTree().CheckUnique())

	dup := sampleTree()
	dup.Append(&Element{Tag: TagOutput, ID: "b.result"})
	err := dup.CheckUnique()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "b.result")
}

func TestElementAppendSkipsNil(t *testing.T) {
	root := &Element{Tag: "div"}
	root.Append(nil, &Element{Tag: "p"}, nil)
	assert.Len(t, root.Children, 1)
}

func TestElementToIR(t *testing.T) {
	tree := &Element{Tag: "panel", Attrs: IRObject{"title": IRString("T")}, Children: []*Element{
		{Tag: TagOutput, ID: "a.out"},
		{Tag: "label", Text: "hi"},
	}}
	want := IRObject{
		"tag":   IRString("panel"),
		"attrs": IRObject{"title": IRString("T")},
		"children": IRArray{
			IRObject{"tag": IRString(TagOutput), "id": IRString("a.out")},
			IRObject{"tag": IRString("label"), "text": IRString("hi")},
		},
	}
	if diff := cmp.Diff(IRValue(want), tree.ToIR()); diff != "" {
		t.Errorf("ToIR mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, IRNull{}, (*Element)(nil).ToIR())
}

func TestElementHash(t *testing.T) {
	h1, err := sampleTree().Hash()
	require.NoError(t, err)
	h2, err := sampleTree().Hash()
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	changed := sampleTree()
	changed.Find("a.choice").Attrs["value"] = IRString("mtcars")
	h3, err := changed.Hash()
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)
}
