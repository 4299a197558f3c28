package docstore

import "bytes"

// MaxKeyLen is the maximum permitted key length. Predecessor relies on it
// to produce the 0xFF padding that sits immediately below a given key.
const MaxKeyLen = 250

// Key is an opaque, totally ordered byte string identifying a stored document.
type Key []byte

// Recency is the logical timestamp attached to every mutation. Backfill uses
// it to decide which entries changed since a given point.
type Recency uint64

// Clone preserves the nil/empty distinction: the empty key is a valid bound,
// nil means no bound.
func (k Key) Clone() Key {
	if k == nil {
		return nil
	}
	out := make(Key, len(k))
	copy(out, k)
	return out
}

func (k Key) Compare(other Key) int {
	return bytes.Compare(k, other)
}

func (k Key) Equal(other Key) bool {
	return bytes.Equal(k, other)
}

// Predecessor returns the greatest key strictly less than k, assuming all keys
// are at most MaxKeyLen bytes. Returns nil, false when no such key exists
// (k is empty).
func (k Key) Predecessor() (Key, bool) {
	n := len(k)
	if n == 0 {
		return nil, false
	}
	if k[n-1] == 0 {
		return k[:n-1].Clone(), true
	}
	p := make(Key, MaxKeyLen)
	copy(p, k)
	p[n-1]--
	for i := n; i < MaxKeyLen; i++ {
		p[i] = 0xFF
	}
	return p, true
}

// KeyRange defines a range of keys. A nil Lower or Upper means the range is
// unbounded on that side. The constructors use mnemonics: O means open,
// I means inclusive, E means exclusive; the first letter is for the lower
// bound, the second for the upper bound.
type KeyRange struct {
	Lower    Key
	Upper    Key
	LowerInc bool
	UpperInc bool
}

func RangeOO() KeyRange         { return KeyRange{} }
func RangeIO(l Key) KeyRange    { return KeyRange{Lower: l, LowerInc: true} }
func RangeEO(l Key) KeyRange    { return KeyRange{Lower: l, LowerInc: false} }
func RangeOI(u Key) KeyRange    { return KeyRange{Upper: u, UpperInc: true} }
func RangeOE(u Key) KeyRange    { return KeyRange{Upper: u, UpperInc: false} }
func RangeII(l, u Key) KeyRange { return KeyRange{Lower: l, Upper: u, LowerInc: true, UpperInc: true} }
func RangeIE(l, u Key) KeyRange {
	return KeyRange{Lower: l, Upper: u, LowerInc: true, UpperInc: false}
}
func RangeEI(l, u Key) KeyRange {
	return KeyRange{Lower: l, Upper: u, LowerInc: false, UpperInc: true}
}
func RangeEE(l, u Key) KeyRange {
	return KeyRange{Lower: l, Upper: u, LowerInc: false, UpperInc: false}
}

func (r KeyRange) Contains(k Key) bool {
	if r.Lower != nil {
		c := bytes.Compare(k, r.Lower)
		if c < 0 || (c == 0 && !r.LowerInc) {
			return false
		}
	}
	if r.Upper != nil {
		c := bytes.Compare(k, r.Upper)
		if c > 0 || (c == 0 && !r.UpperInc) {
			return false
		}
	}
	return true
}

func (r KeyRange) IsSuperset(s KeyRange) bool {
	if r.Lower != nil {
		if s.Lower == nil {
			return false
		}
		c := bytes.Compare(r.Lower, s.Lower)
		if c > 0 {
			return false
		}
		if c == 0 && !r.LowerInc && s.LowerInc {
			return false
		}
	}
	if r.Upper != nil {
		if s.Upper == nil {
			return false
		}
		c := bytes.Compare(r.Upper, s.Upper)
		if c < 0 {
			return false
		}
		if c == 0 && !r.UpperInc && s.UpperInc {
			return false
		}
	}
	return true
}

// Intersect clips r to s. The second return value is false when the two
// ranges do not overlap at all.
func (r KeyRange) Intersect(s KeyRange) (KeyRange, bool) {
	out := r
	if s.Lower != nil {
		if out.Lower == nil {
			out.Lower, out.LowerInc = s.Lower, s.LowerInc
		} else {
			c := bytes.Compare(s.Lower, out.Lower)
			if c > 0 {
				out.Lower, out.LowerInc = s.Lower, s.LowerInc
			} else if c == 0 && !s.LowerInc {
				out.LowerInc = false
			}
		}
	}
	if s.Upper != nil {
		if out.Upper == nil {
			out.Upper, out.UpperInc = s.Upper, s.UpperInc
		} else {
			c := bytes.Compare(s.Upper, out.Upper)
			if c < 0 {
				out.Upper, out.UpperInc = s.Upper, s.UpperInc
			} else if c == 0 && !s.UpperInc {
				out.UpperInc = false
			}
		}
	}
	if out.Lower != nil && out.Upper != nil {
		c := bytes.Compare(out.Lower, out.Upper)
		if c > 0 {
			return KeyRange{}, false
		}
		if c == 0 && (!out.LowerInc || !out.UpperInc) {
			return KeyRange{}, false
		}
	}
	return out, true
}

// eraseBounds converts the range into the exclusive-left/inclusive-right pair
// of concrete keys consumed by the generic range-erase primitive. nil means
// unbounded on that side. empty is true when the range provably contains no
// keys at all.
func (r KeyRange) eraseBounds() (leftExclusive, rightInclusive Key, empty bool) {
	if r.Lower != nil {
		if r.LowerInc {
			if p, ok := r.Lower.Predecessor(); ok {
				leftExclusive = p
			}
			// No predecessor means the lower bound is the least possible key;
			// leave leftExclusive nil to admit everything from the start.
		} else {
			leftExclusive = r.Lower
		}
	}
	if r.Upper != nil {
		if r.UpperInc {
			rightInclusive = r.Upper
		} else {
			p, ok := r.Upper.Predecessor()
			if !ok {
				return nil, nil, true
			}
			rightInclusive = p
		}
	}
	return leftExclusive, rightInclusive, false
}

func inc(data []byte) bool {
	n := len(data)
	for i := n - 1; i >= 0; i-- {
		if data[i] != 0xFF {
			for j := i; j < n; j++ {
				data[j]++
			}
			return true
		}
	}
	return false
}
