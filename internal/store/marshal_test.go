package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/weave/internal/ir"
)

func TestMarshalValue_Canonical(t *testing.T) {
	got, err := marshalValue(ir.IRObject{"b": ir.IRInt(2), "a": ir.Strings("x")})
	require.NoError(t, err)
	assert.Equal(t, `{"a":["x"],"b":2}`, got)

	got, err = marshalValue(nil)
	require.NoError(t, err)
	assert.Equal(t, "null", got)
}

func TestUnmarshalValue_LargeIntegers(t *testing.T) {
	v, err := unmarshalValue(`{"n":9007199254740993}`)
	require.NoError(t, err)
	assert.Equal(t, ir.IRObject{"n": ir.IRInt(9007199254740993)}, v)

	_, err = unmarshalValue(`1.5`)
	assert.Error(t, err)
}
