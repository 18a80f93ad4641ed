package docdb

import (
	"context"
	"errors"
	"iter"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	pathSorted  = "sorted"
	pathCrawled = "crawled"
)

// SelectIDs streams the ids of records matching q.
//
// Queries hold the database read lock until iteration ends, and writers
// wait for it. Don't call other Collection methods from inside the loop;
// use Select to get the records themselves.
func (c *Collection) SelectIDs(ctx context.Context, q Query) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		p := c.plan(q)
		c.db.mu.RLock()
		defer c.db.mu.RUnlock()

		stopped := false
		err := c.search(ctx, p, func(id string) bool {
			if !yield(id, nil) {
				stopped = true
				return false
			}
			return true
		})
		if err != nil && !stopped {
			yield("", err)
		}
	}
}

// Select streams the records matching q along with their ids. Yielded
// records are copies owned by the caller.
func (c *Collection) Select(ctx context.Context, q Query) iter.Seq2[Row, error] {
	return func(yield func(Row, error) bool) {
		p := c.plan(q)
		c.db.mu.RLock()
		defer c.db.mu.RUnlock()

		stopped := false
		var loadErr error
		err := c.search(ctx, p, func(id string) bool {
			rec, err := c.load(id)
			if err != nil {
				loadErr = err
				return false
			}
			if rec == nil {
				return true
			}
			if !yield(Row{ID: id, Record: rec.Clone()}, nil) {
				stopped = true
				return false
			}
			return true
		})
		if err == nil {
			err = loadErr
		}
		if err != nil && !stopped {
			yield(Row{}, err)
		}
	}
}

// SelectIDList collects SelectIDs into a slice.
func (c *Collection) SelectIDList(ctx context.Context, q Query) ([]string, error) {
	var ids []string
	for id, err := range c.SelectIDs(ctx, q) {
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// SelectAll collects Select into a slice.
func (c *Collection) SelectAll(ctx context.Context, q Query) ([]Row, error) {
	var rows []Row
	for row, err := range c.Select(ctx, q) {
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Count returns the number of records SelectIDs would produce.
func (c *Collection) Count(ctx context.Context, q Query) (int, error) {
	var n int
	for _, err := range c.SelectIDs(ctx, q) {
		if err != nil {
			return 0, err
		}
		n++
	}
	return n, nil
}

// search produces the ids matching p, in order, after applying the offset
// and the limit, and records which strategy answered.
//
// The caller must hold the read lock.
func (c *Collection) search(ctx context.Context, p *plan, emit func(id string) bool) error {
	start := time.Now()
	path, err := c.run(ctx, p, emit)
	if err == nil && path != "" {
		c.db.metrics.searched(c.name, path, time.Since(start))
	}
	return err
}

// run does the work of search and returns the strategy that produced the
// result. When p has filters, it races two strategies: walking the sort
// index and checking each record (sorted), and intersecting the per-filter
// index scans and sorting the result (crawled). Sorted results stream out
// as they come; if the crawled result is ready first, it supplies the rest
// and the sorted walk is cancelled.
func (c *Collection) run(ctx context.Context, p *plan, emit func(id string) bool) (string, error) {
	if p.limit == 0 {
		return "", nil
	}
	emitted := 0
	out := func(id string) bool {
		emitted++
		if !emit(id) {
			return false
		}
		return p.limit < 0 || emitted < p.limit
	}

	crawlable := len(p.where) > 0
	switch {
	case !crawlable || c.mode == searchSortedOnly:
		return pathSorted, c.sorted(ctx, p, out)
	case c.mode == searchCrawledOnly:
		ids, err := c.crawl(ctx, p)
		if err != nil {
			return "", err
		}
		for _, id := range ids {
			if !out(id) {
				break
			}
		}
		return pathCrawled, nil
	}

	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(raceCtx)

	sortedCh := make(chan string)
	crawledCh := make(chan []string, 1)
	g.Go(func() error {
		defer close(sortedCh)
		return c.sorted(gctx, p, func(id string) bool {
			select {
			case sortedCh <- id:
				return true
			case <-gctx.Done():
				return false
			}
		})
	})
	g.Go(func() error {
		ids, err := c.crawl(gctx, p)
		if err != nil {
			return err
		}
		crawledCh <- ids
		return nil
	})

	winner := pathSorted
loop:
	for {
		select {
		case id, ok := <-sortedCh:
			if !ok || !out(id) {
				break loop
			}
		case ids := <-crawledCh:
			winner = pathCrawled
			cancel()
			for _, id := range ids[min(emitted, len(ids)):] {
				if !out(id) {
					break
				}
			}
			break loop
		}
	}
	cancel()

	err := g.Wait()
	if err != nil && errors.Is(err, context.Canceled) && ctx.Err() == nil {
		err = nil
	}
	return winner, err
}

// sorted walks the index of the first sort field (or the id index) in
// order, skipping records that fail the filters. With several sort fields,
// it visits the distinct values of the first one and searches each of
// them by the remaining fields.
//
// An array record has an entry per element and is placed by the first one
// in scan order. Only records listed under the non-empty sentinel can
// repeat, so only those are remembered; ordering by a scalar field keeps
// no per-record state.
func (c *Collection) sorted(ctx context.Context, p *plan, emit func(id string) bool) error {
	if len(p.orderBy) > 1 {
		return c.sortedGroups(ctx, p, emit)
	}

	var path string
	var rang RawRange
	var arrays map[string]bool
	if len(p.orderBy) == 0 {
		path = c.indexPath(idIndex)
		rang = RawPrefix([]byte(path))
	} else {
		o := p.orderBy[0]
		path = c.indexPath(o.Field)
		rang = RawPrefix([]byte(path))
		rang.Reverse = o.Desc
		var err error
		arrays, err = c.arrayRecords(o.Field)
		if err != nil {
			return err
		}
	}

	it := c.db.store.Scan(rang)
	defer it.Close()
	skip := p.offset
	for it.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		value, id, ok := splitEntry(string(it.Key()[len(path):]))
		if !ok || value == sentinelNonEmpty {
			continue
		}
		if placed, multi := arrays[id]; multi {
			if placed {
				continue
			}
			arrays[id] = true
		}
		if len(p.where) > 0 {
			rec, err := c.load(id)
			if err != nil {
				return err
			}
			if rec == nil || !c.passes(rec, p.where) {
				continue
			}
		}
		if skip > 0 {
			skip--
			continue
		}
		if !emit(id) {
			return nil
		}
	}
	return it.Err()
}

// arrayRecords returns the ids of records whose field is a non-empty
// array, mapped to false.
func (c *Collection) arrayRecords(field string) (map[string]bool, error) {
	prefix := c.groupPrefix(field, sentinelNonEmpty)
	it := c.db.store.Scan(RawPrefix([]byte(prefix)))
	defer it.Close()
	var ids map[string]bool
	for it.Next() {
		if ids == nil {
			ids = make(map[string]bool)
		}
		ids[string(it.Key()[len(prefix):])] = false
	}
	return ids, it.Err()
}

// sortedGroups handles several sort fields. Each distinct value of the
// first field is searched by the remaining ones, with the value added as
// an equality filter. An array record turns up in the group of every
// element, and is emitted only from the group of its first element in
// sort direction.
func (c *Collection) sortedGroups(ctx context.Context, p *plan, emit func(id string) bool) error {
	o := p.orderBy[0]
	path := c.indexPath(o.Field)
	rang := RawPrefix([]byte(path))
	rang.Reverse = o.Desc

	skip := p.offset
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		group, ok, err := c.firstGroup(rang)
		if err != nil || !ok {
			return err
		}
		if o.Desc {
			rang.Upper, rang.UpperInc = []byte(group), false
		} else {
			rang.Lower, rang.LowerInc = []byte(pastGroup(group)), true
		}

		value := group[len(path) : len(group)-1]
		if value == sentinelNonEmpty {
			continue
		}
		var loadErr error
		stopped := false
		_, err = c.run(ctx, p.inGroup(o.Field, value), func(id string) bool {
			rec, err := c.load(id)
			if err != nil {
				loadErr = err
				return false
			}
			if rec == nil || c.sortKey(o, rec) != value {
				return true
			}
			if skip > 0 {
				skip--
				return true
			}
			if !emit(id) {
				stopped = true
				return false
			}
			return true
		})
		if err == nil {
			err = loadErr
		}
		if err != nil || stopped {
			return err
		}
	}
}

func (c *Collection) firstGroup(rang RawRange) (string, bool, error) {
	it := c.db.store.Scan(rang)
	defer it.Close()
	if it.Next() {
		return groupOf(string(it.Key())), true, nil
	}
	return "", false, it.Err()
}

// crawl intersects the scans of every filter rule, then orders and pages
// the resulting ids.
func (c *Collection) crawl(ctx context.Context, p *plan) ([]string, error) {
	var scanners []Scanner
	for _, w := range p.where {
		path := c.indexPath(w.field)
		prefix := path
		for i := range w.rules {
			if np, ok := w.rules[i].narrow(path); ok {
				prefix = np
				break
			}
		}
		n := len(scanners)
		for i := range w.rules {
			scanners = append(scanners, w.rules[i].scanners(c.sc, path)...)
		}
		if len(scanners) == n {
			scanners = append(scanners, c.sc.fullScan(path, prefix))
		}
	}
	s := newIntersection(scanners)
	defer s.Close()

	var ids []string
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		id, ok, err := s.Next(Hint{})
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		ids = append(ids, id)
	}

	if len(p.orderBy) > 0 {
		type item struct {
			id   string
			keys []string
		}
		items := make([]item, 0, len(ids))
		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			rec, err := c.load(id)
			if err != nil {
				return nil, err
			}
			if rec == nil {
				continue
			}
			keys := make([]string, len(p.orderBy))
			for i, o := range p.orderBy {
				keys[i] = c.sortKey(o, rec)
			}
			items = append(items, item{id, keys})
		}
		lastDesc := p.orderBy[len(p.orderBy)-1].Desc
		slices.SortFunc(items, func(a, b item) int {
			for i, o := range p.orderBy {
				if r := strings.Compare(a.keys[i], b.keys[i]); r != 0 {
					if o.Desc {
						return -r
					}
					return r
				}
			}
			r := strings.Compare(a.id, b.id)
			if lastDesc {
				return -r
			}
			return r
		})
		ids = ids[:0]
		for _, it := range items {
			ids = append(ids, it.id)
		}
	}

	if p.offset >= len(ids) {
		return nil, nil
	}
	ids = ids[p.offset:]
	if p.limit >= 0 && p.limit < len(ids) {
		ids = ids[:p.limit]
	}
	return ids, nil
}

// sortKey is the encoded value a record is ordered by. Arrays order by
// their first element in the direction of o, and empty arrays by the
// emptiness sentinel, matching the walk over the index.
func (c *Collection) sortKey(o Order, rec Record) string {
	cand := c.candidate(o.Field, rec)
	if !cand.isArray {
		return cand.value
	}
	if len(cand.values) == 0 {
		return sentinelEmpty
	}
	if o.Desc {
		return slices.Max(cand.values)
	}
	return slices.Min(cand.values)
}
