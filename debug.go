package docstore

import (
	"fmt"
	"strings"
)

type DumpFlags uint64

const (
	DumpEntries = DumpFlags(1 << iota)
	DumpTombstones
	DumpErasedRanges

	DumpAll = DumpFlags(0xFFFFFFFFFFFFFFFF)
)

func (f DumpFlags) Contains(v DumpFlags) bool {
	return (f & v) == v
}

// Dump renders the shard's raw contents for debugging.
func (tx *Tx) Dump(f DumpFlags) string {
	var buf strings.Builder
	err := traverseRange(tx.dataBucket(), RangeOO(), func(k, v []byte) (bool, error) {
		vle, err := decodeValue(Key(k), v)
		if err != nil {
			fmt.Fprintf(&buf, "%s: CORRUPT: %v\n", hexstr(k), err)
			return true, nil
		}
		if vle.isTombstone() {
			if f.Contains(DumpTombstones) {
				fmt.Fprintf(&buf, "%s: tombstone @%d\n", hexstr(k), vle.Recency)
			}
			return true, nil
		}
		if f.Contains(DumpEntries) {
			doc, err := decodeDocument(Key(k), vle)
			if err != nil {
				fmt.Fprintf(&buf, "%s: CORRUPT: %v\n", hexstr(k), err)
			} else {
				fmt.Fprintf(&buf, "%s: %v @%d\n", hexstr(k), doc, vle.Recency)
			}
		}
		return true, nil
	})
	if err != nil {
		fmt.Fprintf(&buf, "ERROR: %v\n", err)
	}
	if f.Contains(DumpErasedRanges) {
		err := traverseRange(tx.erasedBucket(), RangeOO(), func(k, v []byte) (bool, error) {
			er, err := decodeErasedRange(k)
			if err != nil {
				fmt.Fprintf(&buf, "erased: CORRUPT: %v\n", err)
				return true, nil
			}
			fmt.Fprintf(&buf, "erased: [%s..%s] @%d\n", hexstr(er.rng.Lower), hexstr(er.rng.Upper), er.rec)
			return true, nil
		})
		if err != nil {
			fmt.Fprintf(&buf, "ERROR: %v\n", err)
		}
	}
	return buf.String()
}
