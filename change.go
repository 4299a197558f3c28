package docstore

import "fmt"

type Op int

const (
	OpNone Op = iota
	OpSet
	OpDelete
	OpErase
)

func (op Op) String() string {
	switch op {
	case OpNone:
		return "none"
	case OpSet:
		return "set"
	case OpDelete:
		return "delete"
	case OpErase:
		return "erase"
	default:
		return fmt.Sprintf("Op(%d)", int(op))
	}
}

// Change describes a single applied mutation. For OpErase, Range is set and
// Key is nil; for the point ops it is the other way around.
type Change struct {
	Op      Op
	Key     Key
	Range   KeyRange
	Recency Recency
}

// OnChange registers a handler invoked after every mutation this transaction
// applies, in order. Handlers see changes before commit; a rolled back
// transaction's changes never reach storage.
func (tx *Tx) OnChange(f func(chg Change)) {
	tx.changeHandler = f
}

func (tx *Tx) notifyChange(chg Change) {
	if tx.changeHandler != nil {
		tx.changeHandler(chg)
	}
}
