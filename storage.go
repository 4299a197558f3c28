package docstore

import "errors"

// ErrBucketNotFound is returned by storageTx.Bucket helpers when the bucket
// doesn't exist.
var ErrBucketNotFound = errors.New("bucket not found")

// storage represents an ordered key-value storage backend (Bolt, in-memory,
// Pebble, etc.). The execution layer treats it as an external collaborator:
// it supplies ordered traversal, point lookup and the transaction scope, and
// knows nothing about documents.
type storage interface {
	// BeginTx starts a new transaction. Backends guarantee at most one
	// writable transaction at a time; that exclusivity is the lock scope for
	// all point mutations.
	BeginTx(writable bool) (storageTx, error)
	// Close closes the storage.
	Close() error
}

// storageTx represents a storage transaction.
type storageTx interface {
	// Writable returns true if this is a writable transaction.
	Writable() bool

	// Bucket returns a named bucket, or nil if the bucket doesn't exist.
	Bucket(name string) storageBucket

	// CreateBucket creates a bucket if it doesn't exist.
	CreateBucket(name string) (storageBucket, error)

	// Commit commits the transaction.
	Commit() error

	// Rollback aborts the transaction. It should be safe to call multiple times.
	Rollback() error
}

// storageBucket represents a bucket (sorted key-value collection).
type storageBucket interface {
	// Get retrieves a value by key. Returns nil if not found.
	Get(key []byte) []byte

	// Put stores a key-value pair.
	Put(key, value []byte) error

	// Delete removes a key.
	Delete(key []byte) error

	// Cursor returns a cursor for ascending iteration.
	Cursor() storageCursor
}

// storageCursor iterates over a sorted bucket in ascending key order.
type storageCursor interface {
	// First moves to the first key-value pair.
	First() (key, value []byte)

	// Seek moves to the first key >= seek.
	Seek(seek []byte) (key, value []byte)

	// Next moves to the next key-value pair.
	Next() (key, value []byte)

	// Delete deletes the current key-value pair. Positioning after a delete
	// is backend-specific; callers must re-Seek before continuing.
	Delete() error
}

// traverseRange walks the bucket ascending over rng, invoking fn per entry.
// fn returns false to stop the traversal early. This is the traversal
// primitive underneath both Backfill and RangeScan.
func traverseRange(buck storageBucket, rng KeyRange, fn func(k, v []byte) (bool, error)) error {
	c := buck.Cursor()
	var k, v []byte
	if rng.Lower != nil {
		k, v = c.Seek(rng.Lower)
		if k != nil && !rng.LowerInc && Key(k).Equal(rng.Lower) {
			k, v = c.Next()
		}
	} else {
		k, v = c.First()
	}
	for k != nil {
		if rng.Upper != nil {
			cmp := Key(k).Compare(rng.Upper)
			if cmp > 0 || (cmp == 0 && !rng.UpperInc) {
				return nil
			}
		}
		cont, err := fn(k, v)
		if err != nil {
			return err
		}
		if !cont {
			return nil
		}
		k, v = c.Next()
	}
	return nil
}
