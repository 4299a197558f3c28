package docstore

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/xeipuuv/gojsonschema"
	"go.etcd.io/bbolt"
)

const (
	dataBucket   = "data"
	erasedBucket = "erased"
)

const (
	// DefaultMaxChunkSize bounds how much response data a single unterminated
	// range scan accumulates before reporting truncation.
	DefaultMaxChunkSize = 1 << 20

	// DefaultScanItemSizeEstimate is the constant per-document size heuristic
	// charged against the chunk budget. A placeholder rather than a measured
	// size; see RangeScan.
	DefaultScanItemSizeEstimate = 250
)

// Store is a single shard's document store: an ordered key space of
// msgpack-encoded documents over a key-value storage backend.
type Store struct {
	stg     storage
	logger  *slog.Logger
	logf    func(format string, args ...any)
	verbose bool

	schema           *gojsonschema.Schema
	maxChunkSize     int
	itemSizeEstimate int

	ReaderCount atomic.Int64
	WriterCount atomic.Int64
	ReadCount   atomic.Uint64
	WriteCount  atomic.Uint64
}

type Options struct {
	Logger    *slog.Logger
	Logf      func(format string, args ...any)
	Verbose   bool
	IsTesting bool
	MmapSize  int

	// MaxChunkSize overrides DefaultMaxChunkSize when positive.
	MaxChunkSize int

	// ScanItemSizeEstimate overrides DefaultScanItemSizeEstimate when positive.
	ScanItemSizeEstimate int

	// SchemaJSON, when non-empty, is a JSON Schema every stored document must
	// satisfy; Set returns DocumentInvalidError on violation.
	SchemaJSON string
}

// Open opens a Bolt-backed store at path.
func Open(path string, opt Options) (*Store, error) {
	bopt := &bbolt.Options{}
	*bopt = *bbolt.DefaultOptions
	bopt.Timeout = 10 * time.Second
	if opt.IsTesting {
		bopt.NoSync = true
		bopt.NoFreelistSync = true
		bopt.InitialMmapSize = 1024 * 1024 * 5
	} else {
		bopt.InitialMmapSize = 1024 * 1024 * 1024
		bopt.FreelistType = bbolt.FreelistMapType
	}
	if opt.MmapSize != 0 {
		bopt.InitialMmapSize = opt.MmapSize
	}

	bdb, err := bbolt.Open(path, 0666, bopt)
	if err != nil {
		return nil, fmt.Errorf("docstore: %w", err)
	}
	return newStore(newBoltStorage(bdb), opt)
}

// OpenMemory opens a transient in-memory store, mainly for tests.
func OpenMemory(opt Options) (*Store, error) {
	return newStore(newMemStorage(), opt)
}

// OpenPebble opens a Pebble-backed store in dir.
func OpenPebble(dir string, opt Options) (*Store, error) {
	pdb, err := openPebble(dir)
	if err != nil {
		return nil, fmt.Errorf("docstore: %w", err)
	}
	return newStore(newPebbleStorage(pdb), opt)
}

func newStore(stg storage, opt Options) (*Store, error) {
	db := &Store{
		stg:              stg,
		logger:           opt.Logger,
		logf:             opt.Logf,
		verbose:          opt.Verbose,
		maxChunkSize:     DefaultMaxChunkSize,
		itemSizeEstimate: DefaultScanItemSizeEstimate,
	}
	if opt.MaxChunkSize > 0 {
		db.maxChunkSize = opt.MaxChunkSize
	}
	if opt.ScanItemSizeEstimate > 0 {
		db.itemSizeEstimate = opt.ScanItemSizeEstimate
	}
	if db.logger == nil {
		db.logger = slog.Default()
	}
	if opt.SchemaJSON != "" {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(opt.SchemaJSON))
		if err != nil {
			stg.Close()
			return nil, fmt.Errorf("docstore: invalid document schema: %w", err)
		}
		db.schema = schema
	}

	db.Write(func(tx *Tx) {
		must(tx.stx.CreateBucket(dataBucket))
		must(tx.stx.CreateBucket(erasedBucket))
	})

	return db, nil
}

func (db *Store) Close() {
	err := db.stg.Close()
	if err != nil {
		panic(fmt.Errorf("docstore: closing: %w", err))
	}
}

// validateDocument checks doc against the configured JSON Schema, if any.
func (db *Store) validateDocument(key Key, doc Document) error {
	if db.schema == nil {
		return nil
	}
	result, err := db.schema.Validate(gojsonschema.NewGoLoader(doc.Value()))
	if err != nil {
		return fmt.Errorf("docstore: schema validation: %w", err)
	}
	if result.Valid() {
		return nil
	}
	issues := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		issues = append(issues, desc.String())
	}
	return &DocumentInvalidError{Key: key.Clone(), Issues: issues}
}

func (db *Store) isVerbose() bool {
	return db.verbose && db.logf != nil
}

// MaxChunkSize returns the scan response budget this store enforces.
func (db *Store) MaxChunkSize() int {
	return db.maxChunkSize
}
