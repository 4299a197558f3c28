package docstore

import (
	"strings"
	"testing"
)

func TestEraseRange(t *testing.T) {
	db := setup(t)
	db.Write(func(tx *Tx) {
		for _, key := range []string{"a", "b", "c", "d", "e"} {
			mustSet(t, tx, key, key, 1)
		}
	})

	db.Write(func(tx *Tx) {
		ensure(tx.EraseRange(RangeII(k("b"), k("d")), nil))
	})

	db.Read(func(tx *Tx) {
		for _, key := range []string{"a", "e"} {
			_, found := mustGet(t, tx, key)
			deepEqual(t, found, true)
		}
		for _, key := range []string{"b", "c", "d"} {
			_, found := mustGet(t, tx, key)
			deepEqual(t, found, false)
		}
	})
}

func TestEraseRangeTester(t *testing.T) {
	db := setup(t)
	db.Write(func(tx *Tx) {
		for _, key := range []string{"x1", "x2", "y1", "y2", "z1"} {
			mustSet(t, tx, key, key, 1)
		}
	})

	// Coarse range over everything, refined to keys starting with "y".
	db.Write(func(tx *Tx) {
		ensure(tx.EraseRange(RangeOO(), func(key Key) bool {
			return strings.HasPrefix(string(key), "y")
		}))
	})

	db.Read(func(tx *Tx) {
		for _, key := range []string{"x1", "x2", "z1"} {
			_, found := mustGet(t, tx, key)
			deepEqual(t, found, true)
		}
		for _, key := range []string{"y1", "y2"} {
			_, found := mustGet(t, tx, key)
			deepEqual(t, found, false)
		}
	})
}

func TestEraseRangeRemovesTombstones(t *testing.T) {
	db := setup(t)
	db.Write(func(tx *Tx) {
		mustSet(t, tx, "a", 1, 1)
		mustDelete(t, tx, "a", 2)
	})
	db.Write(func(tx *Tx) {
		ensure(tx.EraseRange(RangeOO(), nil))
	})
	db.Read(func(tx *Tx) {
		buck := tx.dataBucket()
		if got := buck.Get(k("a")); got != nil {
			t.Fatalf("tombstone for a survived the erase: %x", got)
		}
	})
}

func TestEraseRangeExclusiveBounds(t *testing.T) {
	db := setup(t)
	db.Write(func(tx *Tx) {
		for _, key := range []string{"a", "b", "c"} {
			mustSet(t, tx, key, key, 1)
		}
	})
	db.Write(func(tx *Tx) {
		ensure(tx.EraseRange(RangeEE(k("a"), k("c")), nil))
	})
	db.Read(func(tx *Tx) {
		_, found := mustGet(t, tx, "a")
		deepEqual(t, found, true)
		_, found = mustGet(t, tx, "b")
		deepEqual(t, found, false)
		_, found = mustGet(t, tx, "c")
		deepEqual(t, found, true)
	})
}

func TestEraseRangeEmptyIsNoop(t *testing.T) {
	db := setup(t)
	db.Write(func(tx *Tx) {
		mustSet(t, tx, "", 1, 1)
		mustSet(t, tx, "a", 2, 1)
	})
	db.Write(func(tx *Tx) {
		ensure(tx.EraseRange(RangeOE(Key{}), nil))
	})
	db.Read(func(tx *Tx) {
		_, found := mustGet(t, tx, "")
		deepEqual(t, found, true)
		_, found = mustGet(t, tx, "a")
		deepEqual(t, found, true)
	})
}

func TestEraseRangeZeroByteBound(t *testing.T) {
	db := setup(t)
	db.Write(func(tx *Tx) {
		mustSet(t, tx, "", 0, 1)
		mustSet(t, tx, "a", 1, 1)
		mustSet(t, tx, "b", 2, 1)
	})

	// Upper bound of 0x00 exclusive covers only the empty key; its predecessor
	// is the empty key, not an absent bound.
	db.Write(func(tx *Tx) {
		ensure(tx.EraseRange(RangeOE(Key{0x00}), nil))
	})
	db.Read(func(tx *Tx) {
		_, found := mustGet(t, tx, "")
		deepEqual(t, found, false)
		_, found = mustGet(t, tx, "a")
		deepEqual(t, found, true)
		_, found = mustGet(t, tx, "b")
		deepEqual(t, found, true)
	})

	// Inclusive lower bound of 0x00 must not admit the empty key.
	db.Write(func(tx *Tx) {
		mustSet(t, tx, "", 0, 2)
	})
	db.Write(func(tx *Tx) {
		ensure(tx.EraseRange(RangeIO(Key{0x00}), nil))
	})
	db.Read(func(tx *Tx) {
		_, found := mustGet(t, tx, "")
		deepEqual(t, found, true)
		_, found = mustGet(t, tx, "a")
		deepEqual(t, found, false)
	})
}

func TestErasedRangeMarkerRoundTrip(t *testing.T) {
	cases := []erasedRange{
		{rng: RangeOO(), rec: 0},
		{rng: RangeII(k("a"), k("b")), rec: 17},
		{rng: RangeEO(k("a")), rec: 1},
		{rng: RangeOE(k("z")), rec: 1 << 40},
		{rng: RangeIE(Key{}, k("m")), rec: 3},
	}
	for _, er := range cases {
		got := must(decodeErasedRange(encodeErasedRange(nil, er)))
		deepEqual(t, got.rec, er.rec)
		deepEqual(t, got.rng.LowerInc, er.rng.LowerInc)
		deepEqual(t, got.rng.UpperInc, er.rng.UpperInc)
		deepEqual(t, got.rng.Lower == nil, er.rng.Lower == nil)
		deepEqual(t, got.rng.Upper == nil, er.rng.Upper == nil)
		if !Key(got.rng.Lower).Equal(er.rng.Lower) || !Key(got.rng.Upper).Equal(er.rng.Upper) {
			t.Errorf("marker bounds changed: %v vs %v", got.rng, er.rng)
		}
	}
}
