package docdb

import (
	"fmt"
)

// Singleton is a single typed value stored under a fixed key, outside of
// any collection. Useful for settings and counters.
type Singleton struct {
	db  *DB
	key string
}

func (db *DB) Singleton(key string) *Singleton {
	return &Singleton{db: db, key: key}
}

// Get decodes the stored value into v. Returns false if nothing is stored.
func (s *Singleton) Get(v any) (bool, error) {
	raw, err := s.db.store.Get([]byte(singletonKey(s.key)))
	if err != nil || raw == nil {
		return false, err
	}
	if err := decodeValue(raw, v); err != nil {
		return false, fmt.Errorf("singleton %s: %w", s.key, err)
	}
	return true, nil
}

func (s *Singleton) Set(v any) error {
	data, err := encodeValue(v, s.db.compressAbove)
	if err != nil {
		return fmt.Errorf("singleton %s: %w", s.key, err)
	}
	return s.db.store.Update(func(w StoreWriter) error {
		return w.Put([]byte(singletonKey(s.key)), data)
	})
}

// Delete removes the stored value, reporting whether there was one.
func (s *Singleton) Delete() (bool, error) {
	var existed bool
	err := s.db.store.Update(func(w StoreWriter) error {
		k := []byte(singletonKey(s.key))
		v, err := w.Get(k)
		if err != nil || v == nil {
			return err
		}
		existed = true
		return w.Delete(k)
	})
	return existed, err
}

// SingletonValue returns the stored value, or def() when nothing is stored.
func SingletonValue[T any](s *Singleton, def func() T) (T, error) {
	var v T
	ok, err := s.Get(&v)
	if err != nil {
		var zero T
		return zero, err
	}
	if !ok {
		if def != nil {
			return def(), nil
		}
		var zero T
		return zero, nil
	}
	return v, nil
}
