package docstore

import (
	"fmt"
	"slices"
	"sync"

	"github.com/cockroachdb/pebble"
)

// Pebble-backed storage. Pebble has no native buckets, so a flat keyspace is
// split by prefixing every key with the bucket name and a zero byte; bucket
// existence is tracked by marker keys in a reserved meta prefix. A writable
// transaction is an indexed batch; a read-only transaction is a snapshot.

const pebbleMetaPrefix = "\x00bucket\x00"

type pebbleStorage struct {
	pdb *pebble.DB

	// Pebble batches have no mutual exclusion of their own; wmu upholds the
	// single-writer guarantee the storage seam promises.
	wmu sync.Mutex
}

func newPebbleStorage(pdb *pebble.DB) storage {
	return &pebbleStorage{pdb: pdb}
}

func openPebble(dir string) (*pebble.DB, error) {
	opts := &pebble.Options{
		Cache: pebble.NewCache(64 * 1024 * 1024),
	}
	return pebble.Open(dir, opts)
}

func (s *pebbleStorage) BeginTx(writable bool) (storageTx, error) {
	if writable {
		s.wmu.Lock()
		return &pebbleStorageTx{batch: s.pdb.NewIndexedBatch(), release: s.wmu.Unlock}, nil
	}
	return &pebbleStorageTx{snap: s.pdb.NewSnapshot()}, nil
}

func (s *pebbleStorage) Close() error {
	return s.pdb.Close()
}

type pebbleStorageTx struct {
	batch   *pebble.Batch
	snap    *pebble.Snapshot
	iters   []*pebble.Iterator
	release func()
	done    bool
}

func (tx *pebbleStorageTx) Writable() bool { return tx.batch != nil }

func (tx *pebbleStorageTx) reader() pebble.Reader {
	if tx.batch != nil {
		return tx.batch
	}
	return tx.snap
}

func (tx *pebbleStorageTx) has(key []byte) bool {
	_, closer, err := tx.reader().Get(key)
	if err == pebble.ErrNotFound {
		return false
	}
	ensure(err)
	ensure(closer.Close())
	return true
}

func (tx *pebbleStorageTx) Bucket(name string) storageBucket {
	if !tx.has(pebbleMarkerKey(name)) {
		return nil
	}
	return pebbleBucket{tx: tx, prefix: pebbleKeyPrefix(name)}
}

func (tx *pebbleStorageTx) CreateBucket(name string) (storageBucket, error) {
	if tx.batch == nil {
		return nil, fmt.Errorf("tx not writable")
	}
	marker := pebbleMarkerKey(name)
	if !tx.has(marker) {
		if err := tx.batch.Set(marker, nil, nil); err != nil {
			return nil, err
		}
	}
	return pebbleBucket{tx: tx, prefix: pebbleKeyPrefix(name)}, nil
}

// finish closes all iterators opened through this transaction (Pebble
// requires every iterator closed before the batch or snapshot goes away) and
// releases the writer lock.
func (tx *pebbleStorageTx) finish() {
	for _, it := range tx.iters {
		_ = it.Close()
	}
	tx.iters = nil
	if tx.release != nil {
		tx.release()
		tx.release = nil
	}
	tx.done = true
}

func (tx *pebbleStorageTx) Commit() error {
	if tx.done {
		return nil
	}
	tx.finish()
	if tx.batch != nil {
		if err := tx.batch.Commit(pebble.Sync); err != nil {
			return err
		}
		return tx.batch.Close()
	}
	return tx.snap.Close()
}

func (tx *pebbleStorageTx) Rollback() error {
	if tx.done {
		return nil
	}
	tx.finish()
	if tx.batch != nil {
		return tx.batch.Close()
	}
	return tx.snap.Close()
}

func pebbleMarkerKey(name string) []byte {
	return append([]byte(pebbleMetaPrefix), name...)
}

func pebbleKeyPrefix(name string) []byte {
	return append([]byte(name), 0)
}

type pebbleBucket struct {
	tx     *pebbleStorageTx
	prefix []byte
}

func (b pebbleBucket) fullKey(key []byte) []byte {
	return append(slices.Clone(b.prefix), key...)
}

func (b pebbleBucket) Get(key []byte) []byte {
	val, closer, err := b.tx.reader().Get(b.fullKey(key))
	if err == pebble.ErrNotFound {
		return nil
	}
	ensure(err)
	out := slices.Clone(val)
	ensure(closer.Close())
	return out
}

func (b pebbleBucket) Put(key, value []byte) error {
	if b.tx.batch == nil {
		return fmt.Errorf("tx not writable")
	}
	return b.tx.batch.Set(b.fullKey(key), value, nil)
}

func (b pebbleBucket) Delete(key []byte) error {
	if b.tx.batch == nil {
		return fmt.Errorf("tx not writable")
	}
	return b.tx.batch.Delete(b.fullKey(key), nil)
}

func (b pebbleBucket) Cursor() storageCursor {
	upper := slices.Clone(b.prefix)
	if !inc(upper) {
		upper = nil
	}
	iter, err := b.tx.reader().NewIter(&pebble.IterOptions{
		LowerBound: b.prefix,
		UpperBound: upper,
	})
	ensure(err)
	b.tx.iters = append(b.tx.iters, iter)
	return &pebbleCursor{b: b, iter: iter}
}

type pebbleCursor struct {
	b    pebbleBucket
	iter *pebble.Iterator
	full []byte // full key at the current position
}

func (c *pebbleCursor) cur() ([]byte, []byte) {
	if !c.iter.Valid() {
		c.full = nil
		return nil, nil
	}
	c.full = slices.Clone(c.iter.Key())
	val, err := c.iter.ValueAndErr()
	ensure(err)
	return c.full[len(c.b.prefix):], slices.Clone(val)
}

func (c *pebbleCursor) First() ([]byte, []byte) {
	c.iter.First()
	return c.cur()
}

func (c *pebbleCursor) Seek(seek []byte) ([]byte, []byte) {
	c.iter.SeekGE(c.b.fullKey(seek))
	return c.cur()
}

func (c *pebbleCursor) Next() ([]byte, []byte) {
	c.iter.Next()
	return c.cur()
}

func (c *pebbleCursor) Delete() error {
	if c.b.tx.batch == nil {
		return fmt.Errorf("tx not writable")
	}
	if c.full == nil {
		return nil
	}
	return c.b.tx.batch.Delete(c.full, nil)
}

var _ storage = (*pebbleStorage)(nil)
