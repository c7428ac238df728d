package store

import (
	"fmt"

	"github.com/roach88/weave/internal/ir"
)

// marshalValue converts an IRValue to canonical JSON TEXT for storage.
// Uses RFC 8785 canonical JSON for deterministic serialization; a nil
// value is stored as null.
func marshalValue(v ir.IRValue) (string, error) {
	if v == nil {
		v = ir.IRNull{}
	}
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("marshal value: %w", err)
	}
	return string(data), nil
}

// unmarshalValue parses canonical JSON TEXT back into an IRValue.
// ir.UnmarshalIRValue decodes numbers via json.Number, so integers above
// 2^53 survive the round trip.
func unmarshalValue(data string) (ir.IRValue, error) {
	v, err := ir.UnmarshalIRValue([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal value: %w", err)
	}
	return v, nil
}
