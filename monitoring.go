package docdb

import (
	"encoding/json"
)

type CollectionStats struct {
	Records      int            `json:"records"`
	IndexEntries int            `json:"index_entries"`
	ByIndex      map[string]int `json:"by_index"`

	DataSize  int `json:"data_size"`
	IndexSize int `json:"index_size"`
}

func (cs *CollectionStats) TotalSize() int {
	return cs.DataSize + cs.IndexSize
}

func (cs *CollectionStats) String() string {
	return string(must(json.Marshal(cs)))
}

// Stats counts the stored entries of the collection. Index entries
// include array sentinels; ByIndex also reports the id pseudo-index.
func (c *Collection) Stats() (CollectionStats, error) {
	c.db.mu.RLock()
	defer c.db.mu.RUnlock()

	result := CollectionStats{ByIndex: make(map[string]int)}

	prefix := []byte(c.primaryPrefix())
	it := c.db.store.Scan(RawPrefix(prefix))
	for it.Next() {
		result.Records++
		result.DataSize += len(it.Key()) + len(it.Value())
	}
	it.Close()
	if err := it.Err(); err != nil {
		return result, err
	}

	for _, field := range append([]string{idIndex}, c.fields...) {
		it := c.db.store.Scan(RawPrefix([]byte(c.indexPath(field))))
		n := 0
		for it.Next() {
			n++
			result.IndexSize += len(it.Key()) + len(it.Value())
		}
		it.Close()
		if err := it.Err(); err != nil {
			return result, err
		}
		result.ByIndex[field] = n
		if field != idIndex {
			result.IndexEntries += n
		}
	}
	return result, nil
}
