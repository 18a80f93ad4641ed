package docdb

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

type DumpFlags uint64

const (
	DumpCollectionHeaders = DumpFlags(1 << iota)
	DumpRecords
	DumpStats
	DumpIndexes
	DumpIndexEntries

	DumpAll = DumpFlags(0xFFFFFFFFFFFFFFFF)
)

var (
	dumpSep1 = strings.Repeat("=", 80)
	dumpSep2 = strings.Repeat("-", 60)
)

func (f DumpFlags) Contains(v DumpFlags) bool {
	return (f & v) == v
}

// Dump renders the declared collections for debugging.
func (db *DB) Dump(f DumpFlags) (string, error) {
	var buf strings.Builder
	for _, c := range db.Collections() {
		if err := c.dump(&buf, f); err != nil {
			return buf.String(), err
		}
	}
	return buf.String(), nil
}

func (c *Collection) dump(w *strings.Builder, f DumpFlags) error {
	prefix := c.name
	s, err := c.Stats()
	if err != nil {
		return err
	}

	if f.Contains(DumpCollectionHeaders) {
		fmt.Fprintln(w, dumpSep1)
		fmt.Fprintf(w, "%s (%d records)\n", prefix, s.Records)
	}
	if f.Contains(DumpStats) {
		fmt.Fprintf(w, "%s.stats: index_entries = %d, data_size = %d, index_size = %d, total_size = %d\n", prefix, s.IndexEntries, s.DataSize, s.IndexSize, s.TotalSize())
	}

	c.db.mu.RLock()
	defer c.db.mu.RUnlock()

	if f.Contains(DumpRecords) {
		if f.Contains(DumpStats) {
			fmt.Fprintln(w, dumpSep2)
		}
		pp := c.primaryPrefix()
		it := c.db.store.Scan(RawPrefix([]byte(pp)))
		var pos int
		for it.Next() {
			pos++
			id := string(it.Key()[len(pp):])
			rec, err := decodeRecord(it.Value())
			var data []byte
			if err == nil {
				data, err = json.Marshal(rec)
			}
			if err != nil {
				fmt.Fprintf(w, "%s.%d %s ** ERROR: %v\n", prefix, pos, id, err)
				continue
			}
			fmt.Fprintf(w, "%s.%d %s = %s\n", prefix, pos, id, data)
		}
		if err := it.Err(); err != nil {
			return err
		}
	}

	if f.Contains(DumpIndexes) {
		for _, field := range slices.Insert(slices.Clone(c.fields), 0, idIndex) {
			if err := c.dumpIndex(w, prefix, f, field); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Collection) dumpIndex(w *strings.Builder, prefix string, f DumpFlags, field string) error {
	fmt.Fprintln(w, dumpSep2)
	prefix = prefix + ".i." + field
	if field == idIndex {
		fmt.Fprintf(w, "%s\n", prefix)
	} else {
		fmt.Fprintf(w, "%s (%v)\n", prefix, c.indexes[field])
	}
	if !f.Contains(DumpIndexEntries) {
		return nil
	}

	path := c.indexPath(field)
	it := c.db.store.Scan(RawPrefix([]byte(path)))
	var pos int
	for it.Next() {
		pos++
		value, id, _ := splitEntry(string(it.Key()[len(path):]))
		fmt.Fprintf(w, "%s.%d: %q => %s\n", prefix, pos, value, id)
	}
	return it.Err()
}
