package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"null", IRNull{}, "null"},
		{"go nil", nil, "null"},
		{"bools", IRArray{IRBool(true), IRBool(false)}, "[true,false]"},
		{"ints", IRArray{IRInt(-100), IRInt(0), IRInt(9223372036854775807)}, "[-100,0,9223372036854775807]"},
		{"empty containers", IRObject{"a": IRArray{}, "o": IRObject{}}, `{"a":[],"o":{}}`},
		{"nested keys sorted", IRObject{"z": IRObject{"b": IRInt(1), "a": IRInt(2)}, "a": IRInt(3)}, `{"a":3,"z":{"a":2,"b":1}}`},
		{"plain go map", map[string]any{"b": 1, "a": "x"}, `{"a":"x","b":1}`},
		{"no html escaping", IRString("<a & b>"), `"<a & b>"`},
		{"quote and backslash", IRString(`say "hi" \o/`), `"say \"hi\" \\o/"`},
		{"short escapes", IRString("a\tb\nc\rd\be\ff"), `"a\tb\nc\rd\be\ff"`},
		{"other controls", IRString("\x00\x1f"), `"\u0000\u001f"`},
		{"line separators stay literal", IRString("a\u2028b\u2029"), "\"a\u2028b\u2029\""},
		{"escaped-looking text", IRString(`a\u2028b`), `"a\\u2028b"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MarshalCanonical(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestMarshalCanonical_KeysOrderedByUTF16(t *testing.T) {
	// U+10000 is a surrogate pair starting 0xD800, so it sorts before U+E000.
	got, err := MarshalCanonical(IRObject{"\uE000": IRInt(1), "\U00010000": IRInt(2)})
	require.NoError(t, err)
	assert.Equal(t, "{\"\U00010000\":2,\"\uE000\":1}", string(got))
}

func TestMarshalCanonical_NormalizesToNFC(t *testing.T) {
	decomposed, err := MarshalCanonical(IRObject{"caf" + "e\u0301": IRString("e\u0301")})
	require.NoError(t, err)
	assert.Equal(t, "{\"caf\u00e9\":\"\u00e9\"}", string(decomposed))
}

func TestMarshalCanonical_RejectsFloats(t *testing.T) {
	for _, in := range []any{3.5, map[string]any{"x": 0.25}, []any{1, 1e300}} {
		_, err := MarshalCanonical(in)
		assert.Error(t, err, "%v", in)
	}
}

func TestMarshalCanonical_WholeFloatsAreInts(t *testing.T) {
	got, err := MarshalCanonical(map[string]any{"n": 4.0})
	require.NoError(t, err)
	assert.Equal(t, `{"n":4}`, string(got))
}
