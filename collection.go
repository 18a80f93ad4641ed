package docdb

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/andreyvit/docdb/lru"
	"github.com/andreyvit/docdb/sortable"
)

const (
	DefaultCacheCapacity = 1000
	cacheShards          = 8
)

// Indexes maps field names to the kind used to encode their values.
type Indexes map[string]sortable.Kind

type searchMode int

const (
	searchRace searchMode = iota
	searchSortedOnly
	searchCrawledOnly
)

// Collection is a named set of records with declared secondary indexes.
type Collection struct {
	db      *DB
	name    string
	path    string
	indexes Indexes
	fields  []string // sorted names of declared indexes
	cache   *lru.Sharded[Record]
	watch   watchRegistry
	sc      *scanContext
	mode    searchMode
}

type CollectionOption func(c *collectionOptions)

type collectionOptions struct {
	cacheCapacity int
}

// WithCacheCapacity bounds the number of cached records; zero disables caching.
func WithCacheCapacity(n int) CollectionOption {
	return func(o *collectionOptions) {
		o.cacheCapacity = n
	}
}

func newCollection(db *DB, name string, indexes Indexes, opts []CollectionOption) (*Collection, error) {
	if !validName(name) {
		return nil, fmt.Errorf("%w: collection %q", ErrInvalidName, name)
	}
	o := collectionOptions{cacheCapacity: DefaultCacheCapacity}
	for _, f := range opts {
		f(&o)
	}
	idx := make(Indexes, len(indexes))
	for field, kind := range indexes {
		if !validName(field) || field == idIndex {
			return nil, fmt.Errorf("%w: index %q of %s", ErrInvalidName, field, name)
		}
		if !kind.Valid() {
			return nil, fmt.Errorf("%w: index %q of %s has unknown kind %v", ErrInvalidName, field, name, kind)
		}
		idx[field] = kind
	}
	return &Collection{
		db:      db,
		name:    name,
		path:    collectionPath(name),
		indexes: idx,
		fields:  sortedKeys(idx),
		cache:   lru.NewSharded[Record](max(o.cacheCapacity, 0), cacheShards),
		sc:      &scanContext{store: db.store, logger: db.logger},
	}, nil
}

func (c *Collection) Name() string { return c.name }

// Indexes returns the declared indexes.
func (c *Collection) Indexes() Indexes {
	out := make(Indexes, len(c.indexes))
	for k, v := range c.indexes {
		out[k] = v
	}
	return out
}

// Get returns the record stored under id, or nil if there is none.
func (c *Collection) Get(id string) (Record, error) {
	c.db.mu.RLock()
	defer c.db.mu.RUnlock()
	rec, err := c.load(id)
	return rec.Clone(), err
}

// load reads a record through the cache. The caller must hold the lock, and
// must not modify the result.
func (c *Collection) load(id string) (Record, error) {
	if rec, ok := c.cache.Get(id); ok {
		c.db.metrics.cacheLookup(c.name, true)
		return rec, nil
	}
	c.db.metrics.cacheLookup(c.name, false)
	rec, err := c.loadStored(id)
	if err != nil || rec == nil {
		return nil, err
	}
	c.cache.Set(id, rec)
	return rec, nil
}

func (c *Collection) loadStored(id string) (Record, error) {
	raw, err := c.db.store.Get([]byte(c.primaryKey(id)))
	if err != nil || raw == nil {
		return nil, err
	}
	rec, err := decodeRecord(raw)
	if err != nil {
		return nil, collErrf(c, "", id, err, "")
	}
	return rec, nil
}

// Set stores rec under id, updating indexes, and returns the indexed fields
// whose previous value was replaced.
func (c *Collection) Set(id string, rec Record) ([]string, error) {
	if !validID(id) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	rec, err := normalizeRecord(rec)
	if err != nil {
		return nil, collErrf(c, "", id, err, "")
	}
	changed, _, err := c.write(id, rec, false)
	if err != nil {
		return nil, err
	}
	c.watch.notify(&Change{Collection: c.name, Op: OpPut, ID: id, Fields: changed})
	return changed, nil
}

// Insert stores rec under a new time-ordered id and returns the id.
func (c *Collection) Insert(rec Record) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	s := id.String()
	if _, err := c.Set(s, rec); err != nil {
		return "", err
	}
	return s, nil
}

// Del removes the record and its index entries. Returns false if there
// was no such record.
func (c *Collection) Del(id string) (bool, error) {
	if !validID(id) {
		return false, nil
	}
	_, existed, err := c.write(id, nil, false)
	if err != nil || !existed {
		return false, err
	}
	c.watch.notify(&Change{Collection: c.name, Op: OpDelete, ID: id})
	return true, nil
}

// write replaces (rec != nil) or deletes (rec == nil) one record and its
// index entries in one atomic substrate update. The previous value is read
// from the substrate, never from the cache. With force, the stored record
// is written back with all of its entries, whatever rec is.
func (c *Collection) write(id string, rec Record, force bool) (changed []string, existed bool, err error) {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()

	op := OpPut
	if rec == nil && !force {
		op = OpDelete
	}
	start := time.Now()
	pk := []byte(c.primaryKey(id))
	err = c.db.store.Update(func(w StoreWriter) error {
		changed, existed = nil, false
		raw, err := w.Get(pk)
		if err != nil {
			return err
		}
		var old Record
		if raw != nil {
			existed = true
			old, err = decodeRecord(raw)
			if err != nil {
				return collErrf(c, "", id, err, "")
			}
		}
		if force {
			if !existed {
				return nil
			}
			rec = old
		}
		if rec == nil && !existed {
			return nil
		}

		for _, field := range c.fields {
			kind := c.indexes[field]
			oldEntries := fieldEntries(kind, old, field)
			newEntries := fieldEntries(kind, rec, field)
			removed, added := diffEntries(oldEntries, newEntries)
			if force {
				added = newEntries
			}
			for _, v := range removed {
				if err := w.Delete([]byte(c.entryKey(field, v, id))); err != nil {
					return err
				}
			}
			for _, v := range added {
				if err := w.Put([]byte(c.entryKey(field, v, id)), []byte(id)); err != nil {
					return err
				}
			}
			if existed && rec != nil && len(removed) > 0 && len(added) > 0 {
				changed = append(changed, field)
			}
		}

		idKey := []byte(c.entryKey(idIndex, id, id))
		if rec == nil {
			if err := w.Delete(idKey); err != nil {
				return err
			}
			return w.Delete(pk)
		}
		if !existed || force {
			if err := w.Put(idKey, []byte(id)); err != nil {
				return err
			}
		}
		data, err := encodeValue(map[string]any(rec), c.db.compressAbove)
		if err != nil {
			return collErrf(c, "", id, err, "encode")
		}
		return w.Put(pk, data)
	})
	if err != nil {
		return nil, false, err
	}

	if rec == nil {
		c.cache.Delete(id)
	} else {
		c.cache.Set(id, rec.Clone())
	}
	if existed || rec != nil {
		c.db.metrics.wrote(c.name, op, time.Since(start))
	}
	if c.db.verbose {
		c.db.logger.LogAttrs(context.Background(), slog.LevelDebug, "docdb: write",
			slog.String("op", op.String()),
			slog.String("collection", c.name),
			slog.String("id", id),
			slog.Any("changed", changed))
	}
	return changed, existed, nil
}

// Reindex rewrites the index entries of every stored record, for example
// after declaring a new index. Entries of indexes that are no longer
// declared are left alone. Running it twice has no further effect.
func (c *Collection) Reindex() error {
	var ids []string
	err := func() error {
		c.db.mu.RLock()
		defer c.db.mu.RUnlock()
		prefix := c.primaryPrefix()
		it := c.db.store.Scan(RawPrefix([]byte(prefix)))
		defer it.Close()
		for it.Next() {
			ids = append(ids, string(it.Key()[len(prefix):]))
		}
		return it.Err()
	}()
	if err != nil {
		return err
	}

	for _, id := range ids {
		if _, _, err := c.write(id, nil, true); err != nil {
			return err
		}
	}
	c.db.logger.LogAttrs(context.Background(), slog.LevelInfo, "docdb: reindexed",
		slog.String("collection", c.name),
		slog.Int("records", len(ids)))
	return nil
}

// Watch registers fn to be called after every committed set or delete.
func (c *Collection) Watch(fn func(id string)) *Subscription {
	return c.watch.add(&watcher{onID: fn})
}

// WatchFields registers fn to be called for each of the given fields whose
// indexed value a committed set replaced.
func (c *Collection) WatchFields(fn func(id, field string), fields ...string) *Subscription {
	return c.watch.add(&watcher{onField: fn, fields: fields})
}

// candidate encodes a field of rec for checking against rules.
func (c *Collection) candidate(field string, rec Record) candidate {
	return fieldCandidate(c.indexes[field], rec, field)
}

func (c *Collection) passes(rec Record, where []indexFilter) bool {
	for i := range where {
		w := &where[i]
		cand := c.candidate(w.field, rec)
		for j := range w.rules {
			if w.rules[j].fails(&cand) {
				return false
			}
		}
	}
	return true
}
