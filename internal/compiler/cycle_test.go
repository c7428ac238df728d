package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/weave/internal/ir"
)

func bind(inst, out string) ir.OutputRef {
	return ir.OutputRef{Instance: inst, Output: out}
}

func TestAnalyzeCycles_Empty(t *testing.T) {
	assert.Empty(t, AnalyzeCycles(nil))
	assert.Empty(t, AnalyzeCycles(&ir.AppSpec{}))
}

func TestAnalyzeCycles_DAG(t *testing.T) {
	spec := &ir.AppSpec{Instances: []ir.InstanceSpec{
		{ID: "a", Module: "text"},
		{ID: "b", Module: "summary", Bindings: map[string]ir.OutputRef{"source": bind("a", "value")}},
		{ID: "c", Module: "summary", Bindings: map[string]ir.OutputRef{"source": bind("b", "length")}},
	}}
	assert.Empty(t, AnalyzeCycles(spec))
}

func TestAnalyzeCycles_SelfBinding(t *testing.T) {
	spec := &ir.AppSpec{Instances: []ir.InstanceSpec{
		{ID: "a", Module: "summary", Bindings: map[string]ir.OutputRef{"source": bind("a", "length")}},
	}}
	cycles := AnalyzeCycles(spec)
	require.Len(t, cycles, 1)
	assert.Equal(t, []string{"a", "a"}, cycles[0].Path)
	assert.Contains(t, cycles[0].Message, "its own output")
}

func TestAnalyzeCycles_ThreeNodeCycle(t *testing.T) {
	spec := &ir.AppSpec{Instances: []ir.InstanceSpec{
		{ID: "a", Module: "summary", Bindings: map[string]ir.OutputRef{"source": bind("b", "length")}},
		{ID: "b", Module: "summary", Bindings: map[string]ir.OutputRef{"source": bind("c", "length")}},
		{ID: "c", Module: "summary", Bindings: map[string]ir.OutputRef{"source": bind("a", "length")}},
		{ID: "d", Module: "summary", Bindings: map[string]ir.OutputRef{"source": bind("a", "length")}},
	}}
	cycles := AnalyzeCycles(spec)
	require.Len(t, cycles, 1)

	path := cycles[0].Path
	require.Len(t, path, 4)
	assert.Equal(t, path[0], path[3], "path closes on itself")
	assert.ElementsMatch(t, []string{"a", "b", "c"}, path[:3])
	assert.Contains(t, cycles[0].Message, "→")
}

func TestAnalyzeCycles_IgnoresDanglingRefs(t *testing.T) {
	spec := &ir.AppSpec{Instances: []ir.InstanceSpec{
		{ID: "a", Module: "summary", Bindings: map[string]ir.OutputRef{"source": bind("ghost", "value")}},
	}}
	assert.Empty(t, AnalyzeCycles(spec))
}

func TestAnalyzeCycles_Stable(t *testing.T) {
	spec := &ir.AppSpec{Instances: []ir.InstanceSpec{
		{ID: "x", Module: "summary", Bindings: map[string]ir.OutputRef{"source": bind("y", "length")}},
		{ID: "y", Module: "summary", Bindings: map[string]ir.OutputRef{"source": bind("x", "length")}},
		{ID: "p", Module: "summary", Bindings: map[string]ir.OutputRef{"source": bind("p", "length")}},
	}}
	first := AnalyzeCycles(spec)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, AnalyzeCycles(spec))
	}
	require.Len(t, first, 2)
}
