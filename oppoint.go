package docstore

import (
	"fmt"
)

// Point operations. Each one runs a locked lookup-or-create against the data
// bucket: the writable storage transaction is the lock scope, so between the
// lookup and the write no other mutation can slip in.

type PointWriteOutcome int

const (
	// Stored means the document was written under a key with no live prior
	// value.
	Stored PointWriteOutcome = iota
	// Duplicate means a live document already existed under the key; the new
	// document replaced it.
	Duplicate
)

func (o PointWriteOutcome) String() string {
	switch o {
	case Stored:
		return "stored"
	case Duplicate:
		return "duplicate"
	default:
		return fmt.Sprintf("PointWriteOutcome(%d)", int(o))
	}
}

type PointDeleteOutcome int

const (
	// Deleted means a live document existed and was replaced by a tombstone.
	Deleted PointDeleteOutcome = iota
	// Missing means there was nothing live to delete.
	Missing
)

func (o PointDeleteOutcome) String() string {
	switch o {
	case Deleted:
		return "deleted"
	case Missing:
		return "missing"
	default:
		return fmt.Sprintf("PointDeleteOutcome(%d)", int(o))
	}
}

type PointReadResponse struct {
	Doc     Document
	Found   bool
	Recency Recency
}

type PointWriteResponse struct {
	Outcome PointWriteOutcome
}

type PointDeleteResponse struct {
	Outcome PointDeleteOutcome
}

// keyvalueLocation is the result of the lookup step shared by all point
// operations: the data bucket positioned at key, plus whatever is currently
// stored there (possibly nothing, possibly a tombstone).
type keyvalueLocation struct {
	buck   storageBucket
	key    Key
	raw    []byte
	vle    value
	exists bool
}

func (tx *Tx) lookupKeyValue(key Key) (keyvalueLocation, error) {
	loc := keyvalueLocation{
		buck: tx.dataBucket(),
		key:  key,
	}
	loc.raw = loc.buck.Get(key)
	if loc.raw == nil {
		return loc, nil
	}
	vle, err := decodeValue(key, loc.raw)
	if err != nil {
		return loc, err
	}
	loc.vle = vle
	loc.exists = true
	return loc, nil
}

func (loc *keyvalueLocation) isLive() bool {
	return loc.exists && !loc.vle.isTombstone()
}

// Get returns the live document stored under key. A tombstone reads the same
// as an absent key.
func (tx *Tx) Get(key Key) (PointReadResponse, error) {
	tx.db.ReadCount.Add(1)
	loc, err := tx.lookupKeyValue(key)
	if err != nil {
		return PointReadResponse{}, err
	}
	if !loc.isLive() {
		if tx.db.isVerbose() {
			tx.db.logf("db: GET.NOTFOUND %s/%s", dataBucket, hexstr(key))
		}
		return PointReadResponse{}, nil
	}
	doc, err := decodeDocument(key, loc.vle)
	if err != nil {
		return PointReadResponse{}, err
	}
	if tx.db.isVerbose() {
		tx.db.logf("db: GET %s/%s => %v", dataBucket, hexstr(key), doc)
	}
	return PointReadResponse{Doc: doc, Found: true, Recency: loc.vle.Recency}, nil
}

// Set stores doc under key with the given recency, replacing whatever was
// there. The outcome reports whether a live prior value existed (Duplicate)
// or not (Stored); either way the latest document wins. Overwriting a
// tombstone counts as Stored.
func (tx *Tx) Set(key Key, doc Document, rec Recency) (PointWriteResponse, error) {
	if err := tx.db.validateDocument(key, doc); err != nil {
		return PointWriteResponse{}, err
	}
	loc, err := tx.lookupKeyValue(key)
	if err != nil {
		return PointWriteResponse{}, err
	}
	outcome := Stored
	if loc.isLive() {
		outcome = Duplicate
	}

	buf := valueBytesPool.Get().([]byte)
	raw, err := encodeLiveValue(buf, doc, rec)
	if err != nil {
		releaseValueBytes(buf)
		return PointWriteResponse{}, err
	}
	tx.addValueBuf(raw)
	if err := loc.buck.Put(key, raw); err != nil {
		return PointWriteResponse{}, err
	}
	tx.markWritten()
	tx.notifyChange(Change{Op: OpSet, Key: key.Clone(), Recency: rec})
	if tx.db.isVerbose() {
		tx.db.logf("db: SET.%s %s/%s => %v", map[PointWriteOutcome]string{Stored: "NEW", Duplicate: "REPLACE"}[outcome], dataBucket, hexstr(key), doc)
	}
	return PointWriteResponse{Outcome: outcome}, nil
}

// Delete replaces the live document under key with a tombstone carrying rec.
// An absent or already-tombstoned key yields Missing and writes nothing.
func (tx *Tx) Delete(key Key, rec Recency) (PointDeleteResponse, error) {
	loc, err := tx.lookupKeyValue(key)
	if err != nil {
		return PointDeleteResponse{}, err
	}
	if !loc.isLive() {
		if tx.db.isVerbose() {
			tx.db.logf("db: DELETE.MISSING %s/%s", dataBucket, hexstr(key))
		}
		return PointDeleteResponse{Outcome: Missing}, nil
	}

	buf := valueBytesPool.Get().([]byte)
	raw := encodeTombstone(buf, rec)
	tx.addValueBuf(raw)
	if err := loc.buck.Put(key, raw); err != nil {
		return PointDeleteResponse{}, err
	}
	tx.markWritten()
	tx.notifyChange(Change{Op: OpDelete, Key: key.Clone(), Recency: rec})
	if tx.db.isVerbose() {
		tx.db.logf("db: DELETE %s/%s", dataBucket, hexstr(key))
	}
	return PointDeleteResponse{Outcome: Deleted}, nil
}
