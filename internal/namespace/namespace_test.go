package namespace

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateLocal(t *testing.T) {
	tests := []struct {
		name  string
		input string
		valid bool
	}{
		{"simple", "choice", true},
		{"underscore and digits", "plot_2", true},
		{"leading digit", "1st", true},
		{"empty", "", false},
		{"separator", "a.b", false},
		{"dash", "my-input", false},
		{"space", "my input", false},
		{"unicode", "café", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateLocal(tt.input)
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidIdentifier))
		})
	}
}

func TestQualify(t *testing.T) {
	q, err := Qualify("a", "choice")
	require.NoError(t, err)
	assert.Equal(t, "a.choice", q)

	q, err = Qualify("", "choice")
	require.NoError(t, err)
	assert.Equal(t, "choice", q)

	q, err = Qualify("filter1.pick", "choice")
	require.NoError(t, err)
	assert.Equal(t, "filter1.pick.choice", q)
}

func TestQualifyRejectsInvalid(t *testing.T) {
	_, err := Qualify("a", "")
	assert.ErrorIs(t, err, ErrInvalidIdentifier)

	_, err = Qualify("a", "x.y")
	assert.ErrorIs(t, err, ErrInvalidIdentifier)

	_, err = Qualify("a..b", "x")
	assert.ErrorIs(t, err, ErrInvalidIdentifier)
}

// Distinct (scope, local) pairs never collide, even when the concatenated
// text would be ambiguous without the character restriction.
func TestQualifyInjective(t *testing.T) {
	scopes := []string{"", "a", "b", "a.b", "ab", "a_b", "a.b.c"}
	locals := []string{"b", "c", "b_c", "bc", "choice", "x1"}

	seen := make(map[string][2]string)
	for _, s := range scopes {
		for _, l := range locals {
			q, err := Qualify(s, l)
			require.NoError(t, err)
			if prev, dup := seen[q]; dup {
				t.Fatalf("Qualify(%q,%q) and Qualify(%q,%q) both produced %q", prev[0], prev[1], s, l, q)
			}
			seen[q] = [2]string{s, l}
		}
	}
}

func TestSplit(t *testing.T) {
	s, l := Split("a.b.choice")
	assert.Equal(t, "a.b", s)
	assert.Equal(t, "choice", l)

	s, l = Split("choice")
	assert.Equal(t, "", s)
	assert.Equal(t, "choice", l)
}

func TestScopeSiblingsAreDistinct(t *testing.T) {
	root := NewRoot()
	a, err := root.Child("a")
	require.NoError(t, err)
	b, err := root.Child("b")
	require.NoError(t, err)

	qa, err := a.Declare("choice")
	require.NoError(t, err)
	qb, err := b.Declare("choice")
	require.NoError(t, err)

	assert.Equal(t, "a.choice", qa)
	assert.Equal(t, "b.choice", qb)
	assert.NotEqual(t, qa, qb)
}

func TestScopeDuplicateSibling(t *testing.T) {
	root := NewRoot()
	_, err := root.Child("a")
	require.NoError(t, err)

	_, err = root.Child("a")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateIdentifier)

	var idErr *IdentifierError
	require.ErrorAs(t, err, &idErr)
	assert.Equal(t, "a", idErr.Name)
}

func TestScopeDuplicateDeclare(t *testing.T) {
	root := NewRoot()
	a, err := root.Child("a")
	require.NoError(t, err)

	_, err = a.Declare("choice")
	require.NoError(t, err)
	_, err = a.Declare("choice")
	assert.ErrorIs(t, err, ErrDuplicateIdentifier)

	// A nested instance cannot shadow a declared control either.
	_, err = a.Child("choice")
	assert.ErrorIs(t, err, ErrDuplicateIdentifier)
}

func TestScopeNesting(t *testing.T) {
	root := NewRoot()
	filter, err := root.Child("filter1")
	require.NoError(t, err)
	pick, err := filter.Child("pick")
	require.NoError(t, err)

	assert.Equal(t, "filter1.pick", pick.ID())
	assert.Equal(t, 2, pick.Depth())
	assert.Same(t, filter, pick.Parent())

	q, err := pick.Qualify("choice")
	require.NoError(t, err)
	assert.Equal(t, "filter1.pick.choice", q)
}

func TestScopeUnqualify(t *testing.T) {
	root := NewRoot()
	a, err := root.Child("a")
	require.NoError(t, err)

	local, ok := a.Unqualify("a.choice")
	assert.True(t, ok)
	assert.Equal(t, "choice", local)

	_, ok = a.Unqualify("b.choice")
	assert.False(t, ok)

	_, ok = a.Unqualify("a.pick.choice")
	assert.False(t, ok, "nested scopes are not unqualified by the parent")
}

func TestScopeReleaseAllowsReuse(t *testing.T) {
	root := NewRoot()
	a, err := root.Child("a")
	require.NoError(t, err)
	a.Detach()

	_, ok := root.Lookup("a")
	assert.False(t, ok)

	_, err = root.Child("a")
	assert.NoError(t, err)

	root.Release("a")
	_, err = root.Child("a")
	assert.NoError(t, err)
}

func TestScopeNames(t *testing.T) {
	root := NewRoot()
	a, err := root.Child("a")
	require.NoError(t, err)
	for _, n := range []string{"zeta", "alpha", "mid"} {
		_, err := a.Declare(n)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, a.Names())
	assert.True(t, a.Declared("mid"))
	assert.False(t, a.Declared("other"))
}
