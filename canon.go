package docstore

import (
	"fmt"
	"math"
)

// Canonical key encoding: a byte string whose lexicographic order matches the
// document order null < false < true < numbers < strings < arrays < objects.
// Range boundaries and RangeFilter attribute values canonicalize through the
// same encoding, so "the key of doc[attr] lies within the range" is a plain
// bytes comparison. GroupedReduce keys its accumulator map by the same bytes.

const (
	canonNull   byte = 0x10
	canonFalse  byte = 0x20
	canonTrue   byte = 0x21
	canonNumber byte = 0x30
	canonString byte = 0x40
	canonArray  byte = 0x50
	canonObject byte = 0x60

	canonTerm byte = 0x00
)

// canonicalBoundKey converts a scalar document to a Key usable as a range
// boundary. Arrays, objects and NaN have no boundary representation and
// yield a RangeBoundError.
func canonicalBoundKey(d Document) (Key, error) {
	switch v := d.v.(type) {
	case nil, bool, string:
		return Key(appendCanonicalKey(nil, v)), nil
	case float64:
		if math.IsNaN(v) {
			return nil, rangeBoundErrf(d, "NaN is not a valid range boundary")
		}
		return Key(appendCanonicalKey(nil, v)), nil
	default:
		return nil, rangeBoundErrf(d, "%T cannot be used as a range boundary", v)
	}
}

// canonicalGroupKey converts any document into grouping-map key bytes.
func canonicalGroupKey(d Document) Key {
	return Key(appendCanonicalKey(nil, d.v))
}

func appendCanonicalKey(buf []byte, v any) []byte {
	switch v := v.(type) {
	case nil:
		return append(buf, canonNull)
	case bool:
		if v {
			return append(buf, canonTrue)
		}
		return append(buf, canonFalse)
	case float64:
		buf = append(buf, canonNumber)
		bits := math.Float64bits(v)
		if bits&(1<<63) != 0 {
			bits = ^bits
		} else {
			bits ^= 1 << 63
		}
		return appendUint64(buf, bits)
	case string:
		buf = append(buf, canonString)
		return appendTerminatedString(buf, v)
	case []any:
		buf = append(buf, canonArray)
		for _, el := range v {
			buf = appendCanonicalKey(buf, el)
		}
		return append(buf, canonTerm)
	case map[string]any:
		buf = append(buf, canonObject)
		for _, k := range sortedObjectKeys(v) {
			buf = appendTerminatedString(buf, k)
			buf = appendCanonicalKey(buf, v[k])
		}
		return append(buf, canonTerm)
	default:
		panic(fmt.Errorf("non-normalized value %T in canonical key encoding", v))
	}
}

// appendTerminatedString writes s with embedded zero bytes escaped as
// 0x00 0xFF, terminated by a bare 0x00, preserving lexicographic order.
func appendTerminatedString(buf []byte, s string) []byte {
	for i := 0; i < len(s); i++ {
		c := s[i]
		buf = append(buf, c)
		if c == 0 {
			buf = append(buf, 0xFF)
		}
	}
	return append(buf, canonTerm)
}
