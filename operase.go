package docstore

// KeyTester refines a range erase: only keys it accepts are removed. A nil
// tester accepts every key.
type KeyTester func(key Key) bool

// erasedRange is the record left behind by EraseRange: the requested range
// plus the greatest recency among the entries actually removed. Backfill
// treats it as range-level evidence of deletion.
type erasedRange struct {
	rng KeyRange
	rec Recency
}

const (
	erLowerSet = 1 << iota
	erLowerInc
	erUpperSet
	erUpperInc
)

func encodeErasedRange(buf []byte, er erasedRange) []byte {
	var bounds byte
	if er.rng.Lower != nil {
		bounds |= erLowerSet
	}
	if er.rng.LowerInc {
		bounds |= erLowerInc
	}
	if er.rng.Upper != nil {
		bounds |= erUpperSet
	}
	if er.rng.UpperInc {
		bounds |= erUpperInc
	}
	buf = append(buf, bounds)
	buf = appendUvarint(buf, uint64(er.rec))
	buf = appendVarbytes(buf, er.rng.Lower)
	buf = appendVarbytes(buf, er.rng.Upper)
	return buf
}

func decodeErasedRange(data []byte) (erasedRange, error) {
	var er erasedRange
	d := makeByteDecoder(data)
	raw, err := d.Raw(1)
	if err != nil {
		return er, corruptErrf(nil, data, d.Off(), err, "bad erased range bounds")
	}
	bounds := raw[0]
	v, err := d.Uvarint()
	if err != nil {
		return er, corruptErrf(nil, data, d.Off(), err, "bad erased range recency")
	}
	er.rec = Recency(v)
	lower, err := d.VarBytes()
	if err != nil {
		return er, corruptErrf(nil, data, d.Off(), err, "bad erased range lower bound")
	}
	upper, err := d.VarBytes()
	if err != nil {
		return er, corruptErrf(nil, data, d.Off(), err, "bad erased range upper bound")
	}
	if bounds&erLowerSet != 0 {
		er.rng.Lower = Key(lower).Clone()
	}
	if bounds&erUpperSet != 0 {
		er.rng.Upper = Key(upper).Clone()
	}
	er.rng.LowerInc = bounds&erLowerInc != 0
	er.rng.UpperInc = bounds&erUpperInc != 0
	return er, nil
}

// EraseRange removes every entry within rng accepted by tester, tombstones
// included, and records an erased-range marker so that Backfill can report
// the wholesale deletion. Unlike Delete, erased entries leave no per-key
// trace behind.
func (tx *Tx) EraseRange(rng KeyRange, tester KeyTester) error {
	leftEx, rightIncl, empty := rng.eraseBounds()
	if empty {
		return nil
	}

	var maxRec Recency
	var erased int
	err := eraseRangeGeneric(tx.dataBucket(), leftEx, rightIncl, tester, func(k Key, vle value) error {
		if vle.Recency > maxRec {
			maxRec = vle.Recency
		}
		erased++
		return nil
	})
	if err != nil {
		return err
	}
	if erased == 0 {
		return nil
	}

	buf := keyBytesPool.Get().([]byte)
	defer releaseKeyBytes(buf)
	marker := encodeErasedRange(buf, erasedRange{rng: rng, rec: maxRec})
	if err := tx.erasedBucket().Put(marker, nil); err != nil {
		return err
	}
	tx.markWritten()
	tx.notifyChange(Change{Op: OpErase, Range: rng, Recency: maxRec})
	if tx.db.isVerbose() {
		tx.db.logf("db: ERASE %s [%s..%s] => %d entries, max recency %d", dataBucket, hexstr(rng.Lower), hexstr(rng.Upper), erased, maxRec)
	}
	return nil
}

// eraseRangeGeneric walks the bucket over (leftEx, rightIncl], removing every
// entry accepted by tester. deleter observes each entry before removal; its
// error aborts the walk with the entry still in place.
func eraseRangeGeneric(buck storageBucket, leftEx, rightIncl Key, tester KeyTester, deleter func(k Key, vle value) error) error {
	c := buck.Cursor()
	var k, v []byte
	if leftEx != nil {
		k, v = c.Seek(leftEx)
		if k != nil && Key(k).Equal(leftEx) {
			k, v = c.Next()
		}
	} else {
		k, v = c.First()
	}
	for k != nil {
		if rightIncl != nil && Key(k).Compare(rightIncl) > 0 {
			return nil
		}
		if tester == nil || tester(Key(k)) {
			key := Key(k).Clone()
			vle, err := decodeValue(key, v)
			if err != nil {
				return err
			}
			if err := deleter(key, vle); err != nil {
				return err
			}
			if err := c.Delete(); err != nil {
				return err
			}
			// Not every backend's cursor survives a delete-then-Next intact,
			// so reposition explicitly past the removed key.
			k, v = c.Seek(key)
			if k != nil && Key(k).Equal(key) {
				k, v = c.Next()
			}
			continue
		}
		k, v = c.Next()
	}
	return nil
}
