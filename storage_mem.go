package docdb

import (
	"bytes"
	"log/slog"
	"slices"
	"sort"
	"sync"
)

// memStore is a transient in-memory Store. Every committed Update publishes
// a new sorted snapshot, so iterators never observe a half-applied write
// and never hold locks.
type memStore struct {
	mu      sync.RWMutex
	writeMu sync.Mutex
	items   []memKV // sorted by key, never mutated once published
	closed  bool
	logger  *slog.Logger
}

type memKV struct {
	key   []byte
	value []byte
}

// NewMemStore returns an empty in-memory Store, intended for tests and
// ephemeral databases.
func NewMemStore() Store {
	return &memStore{logger: slog.Default()}
}

func (s *memStore) snapshot() ([]memKV, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	return s.items, nil
}

func (s *memStore) Get(key []byte) ([]byte, error) {
	items, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	if i, ok := memFind(items, key); ok {
		return bytes.Clone(items[i].value), nil
	}
	return nil, nil
}

func (s *memStore) Scan(rang RawRange) Iterator {
	items, err := s.snapshot()
	if err != nil {
		return errIterator{err}
	}
	return rang.newCursor(&memCursor{items: items, pos: -1}, s.logger, nil)
}

func (s *memStore) Update(f func(w StoreWriter) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	base, err := s.snapshot()
	if err != nil {
		return err
	}
	w := &memWriter{base: base, pending: make(map[string][]byte)}
	if err := f(w); err != nil {
		return err
	}
	if len(w.pending) == 0 {
		return nil
	}
	next := w.apply()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.items = next
	return nil
}

func (s *memStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.items = nil
	return nil
}

type memWriter struct {
	base    []memKV
	pending map[string][]byte // nil value means delete
}

func (w *memWriter) Get(key []byte) ([]byte, error) {
	if v, ok := w.pending[string(key)]; ok {
		return bytes.Clone(v), nil
	}
	if i, ok := memFind(w.base, key); ok {
		return bytes.Clone(w.base[i].value), nil
	}
	return nil, nil
}

func (w *memWriter) Put(key, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	w.pending[string(key)] = bytes.Clone(value)
	return nil
}

func (w *memWriter) Delete(key []byte) error {
	w.pending[string(key)] = nil
	return nil
}

func (w *memWriter) apply() []memKV {
	keys := make([]string, 0, len(w.pending))
	for k := range w.pending {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	out := make([]memKV, 0, len(w.base)+len(keys))
	i := 0
	for _, k := range keys {
		kb := []byte(k)
		for i < len(w.base) && bytes.Compare(w.base[i].key, kb) < 0 {
			out = append(out, w.base[i])
			i++
		}
		if i < len(w.base) && bytes.Equal(w.base[i].key, kb) {
			i++
		}
		if v := w.pending[k]; v != nil {
			out = append(out, memKV{key: kb, value: v})
		}
	}
	return append(out, w.base[i:]...)
}

func memFind(items []memKV, key []byte) (int, bool) {
	i := sort.Search(len(items), func(i int) bool {
		return bytes.Compare(items[i].key, key) >= 0
	})
	return i, i < len(items) && bytes.Equal(items[i].key, key)
}

type memCursor struct {
	items []memKV
	pos   int
}

func (c *memCursor) at() ([]byte, []byte) {
	if c.pos < 0 || c.pos >= len(c.items) {
		return nil, nil
	}
	kv := c.items[c.pos]
	return kv.key, kv.value
}

func (c *memCursor) First() ([]byte, []byte) {
	c.pos = 0
	return c.at()
}

func (c *memCursor) Last() ([]byte, []byte) {
	c.pos = len(c.items) - 1
	return c.at()
}

func (c *memCursor) Seek(seek []byte) ([]byte, []byte) {
	c.pos, _ = memFind(c.items, seek)
	return c.at()
}

func (c *memCursor) Next() ([]byte, []byte) {
	if c.pos < len(c.items) {
		c.pos++
	}
	return c.at()
}

func (c *memCursor) Prev() ([]byte, []byte) {
	if c.pos >= 0 {
		c.pos--
	}
	return c.at()
}
