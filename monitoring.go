package docstore

// StoreStats is a point-in-time summary of the shard's contents, computed by
// a full sweep; intended for monitoring and tests, not hot paths.
type StoreStats struct {
	LiveEntries  int
	Tombstones   int
	ErasedRanges int
	DataBytes    int
	MaxRecency   Recency
}

func (tx *Tx) Stats() (StoreStats, error) {
	var st StoreStats
	err := traverseRange(tx.dataBucket(), RangeOO(), func(k, v []byte) (bool, error) {
		vle, err := decodeValue(Key(k), v)
		if err != nil {
			return false, err
		}
		if vle.isTombstone() {
			st.Tombstones++
		} else {
			st.LiveEntries++
			st.DataBytes += len(v)
		}
		if vle.Recency > st.MaxRecency {
			st.MaxRecency = vle.Recency
		}
		return true, nil
	})
	if err != nil {
		return st, err
	}
	err = traverseRange(tx.erasedBucket(), RangeOO(), func(k, v []byte) (bool, error) {
		st.ErasedRanges++
		return true, nil
	})
	return st, err
}
