package docstore

import (
	"strings"
	"testing"
)

func TestStats(t *testing.T) {
	db := setup(t)
	db.Write(func(tx *Tx) {
		mustSet(t, tx, "a", 1, 1)
		mustSet(t, tx, "b", 2, 2)
		mustSet(t, tx, "c", 3, 3)
		mustDelete(t, tx, "b", 4)
		ensure(tx.EraseRange(RangeII(k("c"), k("c")), nil))
	})

	db.Read(func(tx *Tx) {
		st := must(tx.Stats())
		deepEqual(t, st.LiveEntries, 1)
		deepEqual(t, st.Tombstones, 1)
		deepEqual(t, st.ErasedRanges, 1)
		deepEqual(t, st.MaxRecency, Recency(4))
		if st.DataBytes <= 0 {
			t.Fatalf("DataBytes = %d, wanted > 0", st.DataBytes)
		}
	})
}

func TestReaderWriterGauges(t *testing.T) {
	db := setup(t)
	deepEqual(t, db.ReaderCount.Load(), int64(0))
	deepEqual(t, db.WriterCount.Load(), int64(0))

	rtx := db.BeginRead()
	deepEqual(t, db.ReaderCount.Load(), int64(1))
	rtx.Close()
	deepEqual(t, db.ReaderCount.Load(), int64(0))

	wtx := db.BeginUpdate()
	deepEqual(t, db.WriterCount.Load(), int64(1))
	ensure(wtx.Commit())
	wtx.Close()
	deepEqual(t, db.WriterCount.Load(), int64(0))

	ensure(db.Tx(false, func(tx *Tx) error { return nil }))
	deepEqual(t, db.ReaderCount.Load(), int64(0))
}

func TestDump(t *testing.T) {
	db := setup(t)
	db.Write(func(tx *Tx) {
		mustSet(t, tx, "a", map[string]any{"v": 1}, 1)
		mustDelete(t, tx, "a", 2)
		mustSet(t, tx, "b", "kept", 3)
		ensure(tx.EraseRange(RangeII(k("z"), k("z")), func(Key) bool { return true }))
	})

	db.Read(func(tx *Tx) {
		s := tx.Dump(DumpAll)
		if !strings.Contains(s, "tombstone @2") {
			t.Errorf("dump lacks the tombstone:\n%s", s)
		}
		if !strings.Contains(s, `"kept" @3`) {
			t.Errorf("dump lacks the live entry:\n%s", s)
		}

		s = tx.Dump(DumpEntries)
		if strings.Contains(s, "tombstone") {
			t.Errorf("entries-only dump includes tombstones:\n%s", s)
		}
	})
}
