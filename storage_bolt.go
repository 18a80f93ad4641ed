package docdb

import (
	"bytes"
	"fmt"
	"log/slog"
	"time"

	"go.etcd.io/bbolt"
)

var boltBucketName = []byte("docdb")

type boltStore struct {
	bdb    *bbolt.DB
	logger *slog.Logger
}

// OpenBolt opens (creating if needed) a Bolt file and returns it as a Store.
func OpenBolt(path string, opt Options) (Store, error) {
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
		return nil, fmt.Errorf("docdb: %w", err)
	}
	err = bdb.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltBucketName)
		return err
	})
	if err != nil {
		bdb.Close()
		return nil, fmt.Errorf("docdb: %w", err)
	}
	return &boltStore{bdb: bdb, logger: opt.logger()}, nil
}

func (s *boltStore) Get(key []byte) ([]byte, error) {
	var result []byte
	err := s.bdb.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket(boltBucketName).Get(key); v != nil {
			result = bytes.Clone(v)
		}
		return nil
	})
	return result, boltErr(err)
}

// Scan holds a read transaction open until the iterator is closed or
// exhausted.
func (s *boltStore) Scan(rang RawRange) Iterator {
	btx, err := s.bdb.Begin(false)
	if err != nil {
		return errIterator{boltErr(err)}
	}
	c := btx.Bucket(boltBucketName).Cursor()
	return rang.newCursor(c, s.logger, btx.Rollback)
}

func (s *boltStore) Update(f func(w StoreWriter) error) error {
	return boltErr(s.bdb.Update(func(tx *bbolt.Tx) error {
		return f(boltWriter{b: tx.Bucket(boltBucketName)})
	}))
}

func boltErr(err error) error {
	if err == bbolt.ErrDatabaseNotOpen {
		return ErrClosed
	}
	return err
}

func (s *boltStore) Close() error {
	return s.bdb.Close()
}

type boltWriter struct {
	b *bbolt.Bucket
}

func (w boltWriter) Get(key []byte) ([]byte, error) {
	return bytes.Clone(w.b.Get(key)), nil
}

func (w boltWriter) Put(key, value []byte) error { return w.b.Put(key, value) }

func (w boltWriter) Delete(key []byte) error { return w.b.Delete(key) }
