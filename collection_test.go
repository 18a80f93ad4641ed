package docdb

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/andreyvit/docdb/sortable"
)

var noteIndexes = Indexes{
	"title":  sortable.String,
	"tags":   sortable.String,
	"effort": sortable.Number,
}

// collectionKeys lists every stored key of c in readable form.
func collectionKeys(t testing.TB, c *Collection) []string {
	t.Helper()
	var out []string
	it := c.db.store.Scan(RawPrefix([]byte(c.path)))
	defer it.Close()
	for it.Next() {
		out = append(out, strings.ReplaceAll(string(it.Key()[len(c.path):]), sep, "|"))
	}
	ensure(it.Err())
	return out
}

func TestCollectionCRUD(t *testing.T) {
	eachStore(t, func(t *testing.T, db *DB) {
		c := must(db.Collection("note", noteIndexes))

		if rec := must(c.Get("1")); rec != nil {
			t.Fatalf("** Get before Set = %v, wanted nil", rec)
		}

		isempty(t, must(c.Set("1", Record{"title": "Hello", "tags": []string{"b", "a"}, "effort": 2, "body": map[string]any{"n": 1}})))
		deepEqual(t, must(c.Get("1")), Record{
			"title":  "Hello",
			"tags":   []any{"b", "a"},
			"effort": 2.0,
			"body":   map[string]any{"n": 1.0},
		})

		two := sortable.EncodeNumber(2)
		deepEqual(t, collectionKeys(t, c), []string{
			"|1",
			"effort|" + two + "|1",
			"id|1|1",
			"tags|\x061|1",
			"tags|a|1",
			"tags|b|1",
			"title|Hello|1",
		})

		deepEqual(t, must(c.Set("1", Record{"title": "Hello", "tags": []string{}})), []string{"effort", "tags"})
		deepEqual(t, collectionKeys(t, c), []string{
			"|1",
			"effort|\x00|1",
			"id|1|1",
			"tags|\x060|1",
			"title|Hello|1",
		})

		deepEqual(t, must(c.Del("1")), true)
		deepEqual(t, must(c.Del("1")), false)
		isempty(t, collectionKeys(t, c))
		if rec := must(c.Get("1")); rec != nil {
			t.Fatalf("** Get after Del = %v, wanted nil", rec)
		}
	})
}

func TestCollectionGetReturnsCopy(t *testing.T) {
	c := must(setupMem(t).Collection("note", noteIndexes))
	must(c.Set("1", Record{"tags": []any{"a"}}))

	rec := must(c.Get("1"))
	rec["tags"].([]any)[0] = "zzz"
	rec["title"] = "changed"

	deepEqual(t, must(c.Get("1")), Record{"tags": []any{"a"}})
	deepEqual(t, must(c.SelectIDList(t.Context(), Query{Where: map[string]Filter{"tags": {Eq: "a"}}})), []string{"1"})
}

func TestCollectionChangedFields(t *testing.T) {
	c := must(setupMem(t).Collection("note", noteIndexes))

	isempty(t, must(c.Set("1", Record{"title": "a", "tags": []any{"x"}})))
	isempty(t, must(c.Set("1", Record{"title": "a", "tags": []any{"x"}, "body": "unindexed"})))
	deepEqual(t, must(c.Set("1", Record{"title": "b", "tags": []any{"x"}})), []string{"title"})

	// adding or removing array elements alone does not replace a value
	isempty(t, must(c.Set("1", Record{"title": "b", "tags": []any{"x", "y"}})))
	isempty(t, must(c.Set("1", Record{"title": "b", "tags": []any{"y"}})))

	deepEqual(t, must(c.Set("1", Record{"tags": []any{"z"}, "effort": 1})), []string{"effort", "tags", "title"})
}

func TestCollectionWatch(t *testing.T) {
	c := must(setupMem(t).Collection("note", noteIndexes))

	var ids []string
	var fields []string
	sub := c.Watch(func(id string) { ids = append(ids, id) })
	fsub := c.WatchFields(func(id, field string) { fields = append(fields, id+"."+field) }, "title", "effort")

	must(c.Set("1", Record{"title": "a"}))
	must(c.Set("2", Record{"title": "a"}))
	must(c.Set("1", Record{"title": "b", "tags": []any{"x"}}))
	must(c.Set("1", Record{"title": "b", "tags": []any{"y"}, "effort": 3}))
	must(c.Del("2"))
	must(c.Del("2"))

	deepEqual(t, ids, []string{"1", "2", "1", "1", "2"})
	deepEqual(t, fields, []string{"1.title", "1.effort"})

	sub.Stop()
	fsub.Stop()
	sub.Stop()
	must(c.Set("1", Record{"title": "c"}))
	deepEqual(t, ids, []string{"1", "2", "1", "1", "2"})
	deepEqual(t, fields, []string{"1.title", "1.effort"})
}

func TestCollectionReindex(t *testing.T) {
	eachStore(t, func(t *testing.T, db *DB) {
		c := must(db.Collection("note", Indexes{"title": sortable.String}))
		must(c.Set("1", Record{"title": "a", "effort": 2}))
		must(c.Set("2", Record{"title": "b", "effort": 1}))
		must(c.Set("3", Record{"title": "c"}))

		// the same data seen by a process that declares one more index
		db2 := New(db.Store(), Options{})
		c2 := must(db2.Collection("note", Indexes{"title": sortable.String, "effort": sortable.Number}))

		q := Query{Where: map[string]Filter{"effort": {Gte: 1}}, OrderBy: []Order{Asc("effort")}}
		c2.mode = searchCrawledOnly
		isempty(t, must(c2.SelectIDList(t.Context(), q)))

		ensure(c2.Reindex())
		keys := collectionKeys(t, c2)
		for _, mode := range []searchMode{searchRace, searchSortedOnly, searchCrawledOnly} {
			c2.mode = mode
			deepEqual(t, must(c2.SelectIDList(t.Context(), q)), []string{"2", "1"})
		}

		ensure(c2.Reindex())
		deepEqual(t, collectionKeys(t, c2), keys)
		deepEqual(t, must(c2.Get("3")), Record{"title": "c"})
	})
}

func TestCollectionInsert(t *testing.T) {
	c := must(setupMem(t).Collection("note", noteIndexes))
	id1 := must(c.Insert(Record{"title": "first"}))
	id2 := must(c.Insert(Record{"title": "second"}))

	u := must(uuid.Parse(id1))
	deepEqual(t, u.Version(), uuid.Version(7))
	if id1 == id2 {
		t.Fatalf("** Insert reused id %s", id1)
	}
	deepEqual(t, must(c.Get(id2)), Record{"title": "second"})
}

func TestCollectionInvalid(t *testing.T) {
	db := setupMem(t)

	for _, name := range []string{"", "a\x03b"} {
		if _, err := db.Collection(name, nil); !errors.Is(err, ErrInvalidName) {
			t.Errorf("** Collection(%q) err = %v, wanted ErrInvalidName", name, err)
		}
	}
	if _, err := db.Collection("x", Indexes{"id": sortable.String}); !errors.Is(err, ErrInvalidName) {
		t.Errorf("** index named id: err = %v, wanted ErrInvalidName", err)
	}
	if _, err := db.Collection("y", Indexes{"f": sortable.Kind(99)}); !errors.Is(err, ErrInvalidName) {
		t.Errorf("** unknown kind: err = %v, wanted ErrInvalidName", err)
	}

	c := must(db.Collection("note", noteIndexes))
	for _, id := range []string{"", "a\x03b", "a\x04", "\x06"} {
		if _, err := c.Set(id, Record{}); !errors.Is(err, ErrInvalidID) {
			t.Errorf("** Set(%q) err = %v, wanted ErrInvalidID", id, err)
		}
	}
	if ok := must(c.Del("")); ok {
		t.Errorf("** Del(\"\") = true")
	}

	_, err := c.Set("1", Record{"f": make(chan int)})
	if !errors.Is(err, ErrUnsupportedValue) {
		t.Errorf("** unsupported value: err = %v, wanted ErrUnsupportedValue", err)
	}
	var ce *CollectionError
	if !errors.As(err, &ce) || ce.Collection != "note" || ce.ID != "1" {
		t.Errorf("** unsupported value: err = %#v, wanted CollectionError for note/1", err)
	}
	isempty(t, collectionKeys(t, c))
}

func TestCollectionCache(t *testing.T) {
	m := NewMetrics("docdb")
	reg := prometheus.NewPedanticRegistry()
	ensure(m.Register(reg))
	db := New(NewMemStore(), Options{Metrics: m})

	cached := must(db.Collection("cached", noteIndexes))
	uncached := must(db.Collection("uncached", noteIndexes, WithCacheCapacity(0)))
	for _, c := range []*Collection{cached, uncached} {
		must(c.Set("1", Record{"title": "a"}))
		must(c.Get("1"))
		must(c.Get("1"))
		deepEqual(t, must(c.Get("1")), Record{"title": "a"})
	}

	deepEqual(t, testutil.ToFloat64(m.CacheLookups.WithLabelValues("cached", "hit")), 3.0)
	deepEqual(t, testutil.ToFloat64(m.CacheLookups.WithLabelValues("cached", "miss")), 0.0)
	deepEqual(t, testutil.ToFloat64(m.CacheLookups.WithLabelValues("uncached", "miss")), 3.0)
	deepEqual(t, testutil.ToFloat64(m.Writes.WithLabelValues("cached", "put")), 1.0)

	// deletes must not leave stale records behind in the cache
	must(cached.Del("1"))
	if rec := must(cached.Get("1")); rec != nil {
		t.Errorf("** cached record survived Del: %v", rec)
	}
	deepEqual(t, testutil.ToFloat64(m.Writes.WithLabelValues("cached", "delete")), 1.0)

	if n := testutil.CollectAndCount(m.Searches); n != 0 {
		t.Errorf("** %d search series before any search", n)
	}
	must(cached.SelectIDList(t.Context(), Query{}))
	deepEqual(t, testutil.ToFloat64(m.Searches.WithLabelValues("cached", pathSorted)), 1.0)
}

func TestCollectionStats(t *testing.T) {
	c := must(setupMem(t).Collection("note", noteIndexes))
	must(c.Set("1", Record{"title": "a", "tags": []any{"x", "y"}}))
	must(c.Set("2", Record{"title": "b"}))

	st := must(c.Stats())
	deepEqual(t, st.Records, 2)
	deepEqual(t, st.ByIndex, map[string]int{"id": 2, "title": 2, "effort": 2, "tags": 4})
	deepEqual(t, st.IndexEntries, 8)
	if st.DataSize == 0 || st.IndexSize == 0 || st.TotalSize() != st.DataSize+st.IndexSize {
		t.Errorf("** sizes = %s", st.String())
	}
	if !strings.Contains(st.String(), `"records":2`) {
		t.Errorf("** String() = %s", st.String())
	}
}
