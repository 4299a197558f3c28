package docstore

import (
	"testing"
)

func TestOnChange(t *testing.T) {
	db := setup(t)

	var changes []Change
	db.Write(func(tx *Tx) {
		tx.OnChange(func(chg Change) {
			changes = append(changes, chg)
		})
		mustSet(t, tx, "a", 1, 1)
		mustSet(t, tx, "b", 2, 2)
		mustDelete(t, tx, "a", 3)
		mustDelete(t, tx, "nope", 3) // Missing, no change
		ensure(tx.EraseRange(RangeII(k("b"), k("b")), nil))
	})

	if len(changes) != 4 {
		t.Fatalf("got %d changes, wanted 4: %v", len(changes), changes)
	}
	deepEqual(t, changes[0].Op, OpSet)
	deepEqual(t, changes[0].Key, k("a"))
	deepEqual(t, changes[0].Recency, Recency(1))
	deepEqual(t, changes[1].Op, OpSet)
	deepEqual(t, changes[2].Op, OpDelete)
	deepEqual(t, changes[2].Key, k("a"))
	deepEqual(t, changes[3].Op, OpErase)
	deepEqual(t, changes[3].Range, RangeII(k("b"), k("b")))
	deepEqual(t, changes[3].Recency, Recency(2))
}

func TestOpString(t *testing.T) {
	deepEqual(t, OpSet.String(), "set")
	deepEqual(t, OpDelete.String(), "delete")
	deepEqual(t, OpErase.String(), "erase")
	deepEqual(t, Op(99).String(), "Op(99)")
}
