package docstore

import (
	"context"
	"fmt"
)

// Backfill replays everything a lagging replica needs to catch up: wholesale
// range erasures, point deletions still present as tombstones, and current
// documents. The sink receives items strictly inside the requested range;
// emitting anything outside it is a programming error and panics.

type BackfillAtom struct {
	Key     Key
	Doc     Document
	Recency Recency
}

type BackfillSink interface {
	// OnDeleteRange reports that every key in rng may have been erased
	// wholesale. Live entries inside rng are re-sent through OnKeyValue
	// afterwards, so acting on the deletion first always converges.
	OnDeleteRange(rng KeyRange) error

	// OnDeletion reports a point deletion of key at rec.
	OnDeletion(key Key, rec Recency) error

	// OnKeyValue reports the current document under a key.
	OnKeyValue(atom BackfillAtom) error
}

// backfillProgressSink is implemented by sinks that want a callback after
// every entry considered, whether or not it was emitted.
type backfillProgressSink interface {
	OnProgress(key Key)
}

// checkedBackfillSink enforces the containment contract before forwarding.
type checkedBackfillSink struct {
	rng  KeyRange
	sink BackfillSink
}

func (s checkedBackfillSink) OnDeleteRange(rng KeyRange) error {
	if !s.rng.IsSuperset(rng) {
		panic(fmt.Sprintf("backfill emitted delete range [%s..%s] outside [%s..%s]", hexstr(rng.Lower), hexstr(rng.Upper), hexstr(s.rng.Lower), hexstr(s.rng.Upper)))
	}
	return s.sink.OnDeleteRange(rng)
}

func (s checkedBackfillSink) OnDeletion(key Key, rec Recency) error {
	if !s.rng.Contains(key) {
		panic(fmt.Sprintf("backfill emitted deletion of %s outside [%s..%s]", hexstr(key), hexstr(s.rng.Lower), hexstr(s.rng.Upper)))
	}
	return s.sink.OnDeletion(key, rec)
}

func (s checkedBackfillSink) OnKeyValue(atom BackfillAtom) error {
	if !s.rng.Contains(atom.Key) {
		panic(fmt.Sprintf("backfill emitted value at %s outside [%s..%s]", hexstr(atom.Key), hexstr(s.rng.Lower), hexstr(s.rng.Upper)))
	}
	return s.sink.OnKeyValue(atom)
}

// Backfill sends every change within rng made at or after since to sink:
// erased-range markers first, then a single ordered pass over the data bucket
// emitting tombstones as deletions and live entries as key-values. Live
// entries older than since are still sent when they lie inside an emitted
// erased range, because the recipient may have just dropped them.
//
// The context is checked between entries; on cancellation the error is
// returned with all previously delivered items standing.
func (tx *Tx) Backfill(ctx context.Context, rng KeyRange, since Recency, sink BackfillSink) error {
	checked := checkedBackfillSink{rng: rng, sink: sink}
	progress, _ := sink.(backfillProgressSink)

	emitted, err := tx.backfillErasedRanges(ctx, rng, since, checked)
	if err != nil {
		return err
	}

	count := 0
	err = traverseRange(tx.dataBucket(), rng, func(k, v []byte) (bool, error) {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		key := Key(k).Clone()
		vle, err := decodeValue(key, v)
		if err != nil {
			tx.db.logger.Warn("backfill hit corrupted value", hexAttr("key", key))
			return false, err
		}
		if vle.isTombstone() {
			if vle.Recency >= since {
				if err := checked.OnDeletion(key, vle.Recency); err != nil {
					return false, err
				}
				count++
			}
		} else if vle.Recency >= since || containedInAny(key, emitted) {
			doc, err := decodeDocument(key, vle)
			if err != nil {
				return false, err
			}
			if err := checked.OnKeyValue(BackfillAtom{Key: key, Doc: doc, Recency: vle.Recency}); err != nil {
				return false, err
			}
			count++
		}
		if progress != nil {
			progress.OnProgress(key)
		}
		return true, nil
	})
	if err != nil {
		return err
	}
	if tx.db.isVerbose() {
		tx.db.logf("db: BACKFILL [%s..%s] since %d => %d items, %d erased ranges", hexstr(rng.Lower), hexstr(rng.Upper), since, count, len(emitted))
	}
	return nil
}

// backfillErasedRanges emits OnDeleteRange for every erased-range marker that
// intersects rng with recency at or after since, clipped to rng. Returns the
// clipped ranges that were emitted.
func (tx *Tx) backfillErasedRanges(ctx context.Context, rng KeyRange, since Recency, sink checkedBackfillSink) ([]KeyRange, error) {
	var emitted []KeyRange
	err := traverseRange(tx.erasedBucket(), RangeOO(), func(k, v []byte) (bool, error) {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		er, err := decodeErasedRange(k)
		if err != nil {
			return false, err
		}
		if er.rec < since {
			return true, nil
		}
		clipped, ok := er.rng.Intersect(rng)
		if !ok {
			return true, nil
		}
		if err := sink.OnDeleteRange(clipped); err != nil {
			return false, err
		}
		emitted = append(emitted, clipped)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return emitted, nil
}

func containedInAny(key Key, ranges []KeyRange) bool {
	for _, r := range ranges {
		if r.Contains(key) {
			return true
		}
	}
	return false
}
