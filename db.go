package docdb

import (
	"fmt"
	"log/slog"
	"sync"
)

// DB is a set of collections and singleton records over one Store.
//
// A single reader/writer lock orders all collection operations: writes are
// exclusive, while reads and queries share it.
type DB struct {
	store         Store
	logger        *slog.Logger
	verbose       bool
	metrics       *Metrics
	compressAbove int

	mu sync.RWMutex

	collsMu     sync.Mutex
	collections map[string]*Collection
}

type Options struct {
	// Logger defaults to slog.Default().
	Logger  *slog.Logger
	Verbose bool

	// IsTesting trades durability for speed in Bolt-backed databases.
	IsTesting bool
	MmapSize  int

	// Metrics, if set, receives search, write and cache statistics.
	Metrics *Metrics

	// CompressAbove enables lz4 compression of stored records whose
	// encoded size exceeds this many bytes. Zero disables compression.
	CompressAbove int
}

func (opt *Options) logger() *slog.Logger {
	if opt.Logger != nil {
		return opt.Logger
	}
	return slog.Default()
}

// Open opens a Bolt-backed database at path.
func Open(path string, opt Options) (*DB, error) {
	store, err := OpenBolt(path, opt)
	if err != nil {
		return nil, err
	}
	return New(store, opt), nil
}

// New returns a database over an existing store. Closing the database
// closes the store.
func New(store Store, opt Options) *DB {
	return &DB{
		store:         store,
		logger:        opt.logger(),
		verbose:       opt.Verbose,
		metrics:       opt.Metrics,
		compressAbove: opt.CompressAbove,
		collections:   make(map[string]*Collection),
	}
}

func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.store.Close()
}

// Store returns the underlying substrate.
func (db *DB) Store() Store {
	return db.store
}

// Collection declares a collection with the given indexes. Each name may
// be declared once per DB. Use Reindex after adding indexes to a
// collection that already holds records.
func (db *DB) Collection(name string, indexes Indexes, opts ...CollectionOption) (*Collection, error) {
	db.collsMu.Lock()
	defer db.collsMu.Unlock()
	if _, ok := db.collections[name]; ok {
		return nil, fmt.Errorf("%w: %s", ErrCollectionExists, name)
	}
	c, err := newCollection(db, name, indexes, opts)
	if err != nil {
		return nil, err
	}
	db.collections[name] = c
	return c, nil
}

// CollectionNamed returns a previously declared collection, or nil.
func (db *DB) CollectionNamed(name string) *Collection {
	db.collsMu.Lock()
	defer db.collsMu.Unlock()
	return db.collections[name]
}

// Collections returns the declared collections sorted by name.
func (db *DB) Collections() []*Collection {
	db.collsMu.Lock()
	defer db.collsMu.Unlock()
	names := sortedKeys(db.collections)
	colls := make([]*Collection, len(names))
	for i, name := range names {
		colls[i] = db.collections[name]
	}
	return colls
}
