package docstore

import (
	"fmt"
	"runtime/debug"
	"sync/atomic"
)

type Txish interface {
	DBTx() *Tx
}

// Tx is a store transaction. Writable transactions are exclusive per store;
// that exclusivity is the lock scope behind every point operation's
// lookup-or-create step.
type Tx struct {
	db      *Store
	stx     storageTx
	written bool

	// Encoded values handed to the storage layer stay referenced until the
	// transaction ends (Bolt does not copy them), so pooled buffers are
	// released in Close, not at the call site.
	valueBufs [][]byte

	// gauge is the ReaderCount or WriterCount this transaction is counted in;
	// Close decrements it.
	gauge *atomic.Int64

	changeHandler func(chg Change)
}

func (db *Store) newTx(stx storageTx) *Tx {
	return &Tx{
		db:  db,
		stx: stx,
	}
}

// DBTx implements Txish
func (tx *Tx) DBTx() *Tx {
	return tx
}

func (tx *Tx) DB() *Store {
	return tx.db
}

func (tx *Tx) IsWritable() bool {
	return tx.stx.Writable()
}

// Tx runs f inside a transaction, recovering panics into errors.
func (db *Store) Tx(writable bool, f func(tx *Tx) error) error {
	stx, err := db.stg.BeginTx(writable)
	if err != nil {
		return err
	}
	tx := db.newTx(stx)
	if writable {
		tx.countIn(&db.WriterCount)
	} else {
		tx.countIn(&db.ReaderCount)
	}
	defer tx.Close()
	err = safelyCall(f, tx)
	if err != nil {
		return err
	}
	if writable {
		return tx.Commit()
	}
	return nil
}

type panicked struct {
	reason interface{}
	stack  string
}

func (p panicked) Error() string {
	return fmt.Sprintf("panic: %v\n\n%s", p.reason, p.stack)
}

func safelyCall(fn func(*Tx) error, tx *Tx) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = panicked{p, string(debug.Stack())}
		}
	}()
	return fn(tx)
}

func (db *Store) BeginRead() *Tx {
	stx, err := db.stg.BeginTx(false)
	if err != nil {
		panic(fmt.Errorf("failed to start reading: %w", err))
	}
	tx := db.newTx(stx)
	tx.countIn(&db.ReaderCount)
	return tx
}

func (db *Store) Read(f func(tx *Tx)) {
	tx := db.BeginRead()
	defer tx.Close()
	f(tx)
}

func (db *Store) ReadErr(f func(tx *Tx) error) error {
	tx := db.BeginRead()
	defer tx.Close()
	return f(tx)
}

func (db *Store) Write(f func(tx *Tx)) {
	tx := db.BeginUpdate()
	defer tx.Close()
	f(tx)
	err := tx.Commit()
	if err != nil {
		panic(fmt.Errorf("commit: %w", err))
	}
}

func (db *Store) WriteErr(f func(tx *Tx) error) error {
	tx := db.BeginUpdate()
	defer tx.Close()
	err := f(tx)
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (db *Store) BeginUpdate() *Tx {
	stx, err := db.stg.BeginTx(true)
	if err != nil {
		panic(fmt.Errorf("db.BeginTx(true) failed: %w", err))
	}
	tx := db.newTx(stx)
	tx.countIn(&db.WriterCount)
	return tx
}

func (tx *Tx) markWritten() {
	tx.written = true
}

func (tx *Tx) countIn(gauge *atomic.Int64) {
	gauge.Add(1)
	tx.gauge = gauge
}

func (tx *Tx) addValueBuf(buf []byte) {
	tx.valueBufs = append(tx.valueBufs, buf)
}

func (tx *Tx) Close() {
	// Rollback after Commit is a no-op in every backend, so Close is safe
	// to defer unconditionally.
	err := tx.stx.Rollback()
	if err != nil {
		panic(err)
	}
	for i, buf := range tx.valueBufs {
		releaseValueBytes(buf)
		tx.valueBufs[i] = nil
	}
	tx.valueBufs = nil
	if tx.gauge != nil {
		tx.gauge.Add(-1)
		tx.gauge = nil
	}
}

func (tx *Tx) Commit() error {
	if tx.written {
		tx.db.WriteCount.Add(1)
	}
	return tx.stx.Commit()
}

func (tx *Tx) dataBucket() storageBucket {
	b := tx.stx.Bucket(dataBucket)
	if b == nil {
		panic(fmt.Errorf("%w: %s", ErrBucketNotFound, dataBucket))
	}
	return b
}

func (tx *Tx) erasedBucket() storageBucket {
	b := tx.stx.Bucket(erasedBucket)
	if b == nil {
		panic(fmt.Errorf("%w: %s", ErrBucketNotFound, erasedBucket))
	}
	return b
}
