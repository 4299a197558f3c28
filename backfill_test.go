package docstore

import (
	"context"
	"fmt"
	"testing"
)

// collectingSink records backfill callbacks as printable strings so tests can
// compare whole sequences.
type collectingSink struct {
	items    []string
	progress int
}

func (s *collectingSink) OnDeleteRange(rng KeyRange) error {
	s.items = append(s.items, fmt.Sprintf("delrange %s..%s", string(rng.Lower), string(rng.Upper)))
	return nil
}

func (s *collectingSink) OnDeletion(key Key, rec Recency) error {
	s.items = append(s.items, fmt.Sprintf("del %s@%d", string(key), rec))
	return nil
}

func (s *collectingSink) OnKeyValue(atom BackfillAtom) error {
	s.items = append(s.items, fmt.Sprintf("kv %s=%v@%d", string(atom.Key), atom.Doc, atom.Recency))
	return nil
}

func (s *collectingSink) OnProgress(key Key) {
	s.progress++
}

func TestBackfillSince(t *testing.T) {
	db := setup(t)

	// k1 untouched since t0, k2 set at t2, k3 set at t0 then deleted at t2.
	db.Write(func(tx *Tx) {
		mustSet(t, tx, "k1", "old", 0)
		mustSet(t, tx, "k3", "doomed", 0)
	})
	db.Write(func(tx *Tx) {
		mustSet(t, tx, "k2", "new", 2)
		mustDelete(t, tx, "k3", 2)
	})

	var sink collectingSink
	db.Read(func(tx *Tx) {
		ensure(tx.Backfill(context.Background(), RangeOO(), 1, &sink))
	})

	deepEqual(t, sink.items, []string{
		`kv k2="new"@2`,
		"del k3@2",
	})
	deepEqual(t, sink.progress, 3)
}

func TestBackfillRangeRestriction(t *testing.T) {
	db := setup(t)
	db.Write(func(tx *Tx) {
		mustSet(t, tx, "a", 1, 5)
		mustSet(t, tx, "m", 2, 5)
		mustSet(t, tx, "z", 3, 5)
	})

	var sink collectingSink
	db.Read(func(tx *Tx) {
		ensure(tx.Backfill(context.Background(), RangeII(k("b"), k("n")), 0, &sink))
	})
	deepEqual(t, sink.items, []string{"kv m=2@5"})
}

func TestBackfillErasedRange(t *testing.T) {
	db := setup(t)
	db.Write(func(tx *Tx) {
		mustSet(t, tx, "a", 1, 1)
		mustSet(t, tx, "b", 2, 2)
		mustSet(t, tx, "c", 3, 3)
	})
	db.Write(func(tx *Tx) {
		ensure(tx.EraseRange(RangeII(k("b"), k("c")), nil))
	})
	// A later write inside the erased range, older than the erase evidence
	// would suggest from `since` alone.
	db.Write(func(tx *Tx) {
		mustSet(t, tx, "b", "readded", 1)
	})

	var sink collectingSink
	db.Read(func(tx *Tx) {
		ensure(tx.Backfill(context.Background(), RangeOO(), 2, &sink))
	})

	// The erased range is reported, and the live entry inside it is re-sent
	// even though its recency predates since; "a" stays silent.
	deepEqual(t, sink.items, []string{
		"delrange b..c",
		`kv b="readded"@1`,
	})
}

func TestBackfillErasedRangeClipped(t *testing.T) {
	db := setup(t)
	db.Write(func(tx *Tx) {
		mustSet(t, tx, "a", 1, 1)
		mustSet(t, tx, "b", 2, 2)
	})
	db.Write(func(tx *Tx) {
		ensure(tx.EraseRange(RangeOO(), nil))
	})

	var sink collectingSink
	db.Read(func(tx *Tx) {
		ensure(tx.Backfill(context.Background(), RangeII(k("a"), k("a")), 0, &sink))
	})
	deepEqual(t, sink.items, []string{"delrange a..a"})
}

func TestBackfillOldErasedRangeFiltered(t *testing.T) {
	db := setup(t)
	db.Write(func(tx *Tx) {
		mustSet(t, tx, "a", 1, 1)
	})
	db.Write(func(tx *Tx) {
		ensure(tx.EraseRange(RangeOO(), nil))
	})

	var sink collectingSink
	db.Read(func(tx *Tx) {
		// The erase's max recency is 1, so since=5 filters it out.
		ensure(tx.Backfill(context.Background(), RangeOO(), 5, &sink))
	})
	isempty(t, sink.items)
}

func TestBackfillCancellation(t *testing.T) {
	db := setup(t)
	db.Write(func(tx *Tx) {
		for i := 0; i < 10; i++ {
			mustSet(t, tx, fmt.Sprintf("k%02d", i), i, 1)
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var sink collectingSink
	db.Read(func(tx *Tx) {
		err := tx.Backfill(ctx, RangeOO(), 0, &sink)
		if err != context.Canceled {
			t.Fatalf("Backfill = %v, wanted context.Canceled", err)
		}
	})
	isempty(t, sink.items)
}

func TestBackfillSinkContainmentAssertion(t *testing.T) {
	checked := checkedBackfillSink{rng: RangeII(k("a"), k("b")), sink: &collectingSink{}}
	defer func() {
		if recover() == nil {
			t.Fatalf("out-of-range emission did not panic")
		}
	}()
	checked.OnDeletion(k("z"), 1)
}
