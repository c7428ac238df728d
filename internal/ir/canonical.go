package ir

import (
	"fmt"
	"strconv"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical encodes v as canonical JSON: object keys sorted by
// UTF-16 code units, strings NFC normalized, no insignificant whitespace
// and no HTML escaping. Journal rows, delta comparison and app hashes all
// go through it, so equal values always produce equal bytes.
//
// Floats are rejected. Null is allowed: an untouched control or an output
// that computed nothing is a legitimate value.
func MarshalCanonical(v any) ([]byte, error) {
	irv, err := FromGo(v)
	if err != nil {
		return nil, err
	}
	return marshalCanonical(irv)
}

func marshalCanonical(v IRValue) ([]byte, error) {
	return appendCanonical(make([]byte, 0, 64), v)
}

func appendCanonical(dst []byte, v IRValue) ([]byte, error) {
	switch val := v.(type) {
	case nil, IRNull:
		return append(dst, "null"...), nil
	case IRBool:
		return strconv.AppendBool(dst, bool(val)), nil
	case IRInt:
		return strconv.AppendInt(dst, int64(val), 10), nil
	case IRString:
		return appendCanonicalString(dst, string(val)), nil
	case IRArray:
		dst = append(dst, '[')
		for i, elem := range val {
			if i > 0 {
				dst = append(dst, ',')
			}
			var err error
			if dst, err = appendCanonical(dst, elem); err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
		}
		return append(dst, ']'), nil
	case IRObject:
		dst = append(dst, '{')
		for i, k := range val.SortedKeys() {
			if i > 0 {
				dst = append(dst, ',')
			}
			dst = appendCanonicalString(dst, k)
			dst = append(dst, ':')
			var err error
			if dst, err = appendCanonical(dst, val[k]); err != nil {
				return nil, fmt.Errorf("value for key %q: %w", k, err)
			}
		}
		return append(dst, '}'), nil
	default:
		return nil, fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
}

const hexDigits = "0123456789abcdef"

// appendCanonicalString quotes s after NFC normalization. Only the quote,
// the backslash and control characters are escaped; invalid UTF-8 becomes
// U+FFFD.
func appendCanonicalString(dst []byte, s string) []byte {
	s = norm.NFC.String(s)
	dst = append(dst, '"')
	for i := 0; i < len(s); {
		c := s[i]
		if c >= utf8.RuneSelf {
			r, size := utf8.DecodeRuneInString(s[i:])
			if r == utf8.RuneError && size == 1 {
				dst = append(dst, "�"...)
			} else {
				dst = append(dst, s[i:i+size]...)
			}
			i += size
			continue
		}
		switch {
		case c == '"' || c == '\\':
			dst = append(dst, '\\', c)
		case c == '\b':
			dst = append(dst, '\\', 'b')
		case c == '\f':
			dst = append(dst, '\\', 'f')
		case c == '\n':
			dst = append(dst, '\\', 'n')
		case c == '\r':
			dst = append(dst, '\\', 'r')
		case c == '\t':
			dst = append(dst, '\\', 't')
		case c < 0x20:
			dst = append(dst, '\\', 'u', '0', '0', hexDigits[c>>4], hexDigits[c&0xf])
		default:
			dst = append(dst, c)
		}
		i++
	}
	return append(dst, '"')
}
