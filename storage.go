package docdb

import "errors"

// ErrClosed is returned by stores that have been closed.
var ErrClosed = errors.New("store closed")

// Store is an ordered key-value substrate (Bolt, in-memory, etc.). Keys
// are compared byte-wise. All methods are safe for concurrent use.
type Store interface {
	// Get returns a copy of the value stored under key, or nil if missing.
	Get(key []byte) ([]byte, error)

	// Scan iterates over the keys of the given range. The iterator must
	// be closed; it is also released once exhausted.
	Scan(rang RawRange) Iterator

	// Update runs f as one atomic write. If f returns an error, none of
	// its writes are applied.
	Update(f func(w StoreWriter) error) error

	Close() error
}

// StoreWriter is handed to Store.Update.
type StoreWriter interface {
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error
}

// Iterator walks a key range. Key and Value are only valid until the next
// call to Next.
type Iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Err() error
	Close() error
}

// storageCursor is the minimal positioning interface the backends expose
// to RawRange.
type storageCursor interface {
	First() (key, value []byte)
	Last() (key, value []byte)
	// Seek moves to the first key >= seek.
	Seek(seek []byte) (key, value []byte)
	Next() (key, value []byte)
	Prev() (key, value []byte)
}

type errIterator struct {
	err error
}

func (it errIterator) Next() bool    { return false }
func (it errIterator) Key() []byte   { return nil }
func (it errIterator) Value() []byte { return nil }
func (it errIterator) Err() error    { return it.err }
func (it errIterator) Close() error  { return nil }
