package compiler

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/weave/internal/catalog"
	"github.com/roach88/weave/internal/ir"
)

func codes(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func TestValidate_ExplorerIsValid(t *testing.T) {
	spec, err := Load(filepath.Join("testdata", "explorer.cue"))
	require.NoError(t, err)
	assert.Empty(t, Validate(spec, catalog.Builtins()))
	assert.Empty(t, Validate(*spec, catalog.Builtins()))
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name string
		spec ir.AppSpec
		want []string
	}{
		{
			name: "empty",
			spec: ir.AppSpec{},
			want: []string{ErrAppNameEmpty, ErrNoInstances},
		},
		{
			name: "bad and duplicate ids",
			spec: ir.AppSpec{Name: "x", Instances: []ir.InstanceSpec{
				{ID: "a-b", Module: "text"},
				{ID: "t", Module: "text"},
				{ID: "t", Module: "text"},
			}},
			want: []string{ErrInvalidInstanceID, ErrDuplicateInstance},
		},
		{
			name: "unknown module",
			spec: ir.AppSpec{Name: "x", Instances: []ir.InstanceSpec{{ID: "a", Module: "slider"}}},
			want: []string{ErrUnknownModule},
		},
		{
			name: "dangling reference",
			spec: ir.AppSpec{Name: "x", Instances: []ir.InstanceSpec{
				{ID: "v", Module: "summary", Bindings: map[string]ir.OutputRef{"source": bind("nope", "value")}},
			}},
			want: []string{ErrDanglingReference},
		},
		{
			name: "unknown output",
			spec: ir.AppSpec{Name: "x", Instances: []ir.InstanceSpec{
				{ID: "t", Module: "text"},
				{ID: "v", Module: "summary", Bindings: map[string]ir.OutputRef{"source": bind("t", "count")}},
			}},
			want: []string{ErrUnknownOutput},
		},
		{
			name: "unknown parameters",
			spec: ir.AppSpec{Name: "x", Instances: []ir.InstanceSpec{
				{ID: "t", Module: "text", Config: ir.IRObject{"color": ir.IRString("red")}},
				{ID: "u", Module: "text", Bindings: map[string]ir.OutputRef{"feed": bind("t", "value")}},
			}},
			want: []string{ErrUnknownParam, ErrUnknownParam},
		},
		{
			name: "kind mismatch both ways",
			spec: ir.AppSpec{Name: "x", Instances: []ir.InstanceSpec{
				{ID: "t", Module: "text"},
				{ID: "v", Module: "summary", Config: ir.IRObject{"source": ir.IRString("fixed")}},
				{ID: "w", Module: "summary",
					Bindings: map[string]ir.OutputRef{"source": bind("t", "value"), "title": bind("t", "value")}},
			}},
			want: []string{ErrArgumentKind, ErrArgumentKind},
		},
		{
			name: "missing required",
			spec: ir.AppSpec{Name: "x", Instances: []ir.InstanceSpec{{ID: "s", Module: "select"}}},
			want: []string{ErrMissingParam},
		},
		{
			name: "supplied twice",
			spec: ir.AppSpec{Name: "x", Instances: []ir.InstanceSpec{
				{ID: "t", Module: "text"},
				{ID: "v", Module: "summary",
					Config:   ir.IRObject{"source": ir.IRString("fixed")},
					Bindings: map[string]ir.OutputRef{"source": bind("t", "value")}},
			}},
			want: []string{ErrArgumentKind, ErrDuplicateArgument},
		},
		{
			name: "binding cycle",
			spec: ir.AppSpec{Name: "x", Instances: []ir.InstanceSpec{
				{ID: "a", Module: "summary", Bindings: map[string]ir.OutputRef{"source": bind("b", "length")}},
				{ID: "b", Module: "summary", Bindings: map[string]ir.OutputRef{"source": bind("a", "length")}},
			}},
			want: []string{ErrBindingCycle},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, codes(Validate(tt.spec, catalog.Builtins())))
		})
	}
}

func TestValidate_UnsupportedType(t *testing.T) {
	errs := Validate("nope", catalog.Builtins())
	require.Len(t, errs, 1)
	assert.Equal(t, ErrUnsupportedAppType, errs[0].Code)
}

func TestValidationError_Error(t *testing.T) {
	err := ValidationError{Field: "instances.a", Message: "boom", Code: ErrUnknownModule}
	assert.Equal(t, "[E203] instances.a: boom", err.Error())
}
