// Package lru provides a capacity-bounded least-recently-used cache.
package lru

import (
	"container/list"
	"sync"

	"github.com/cespare/xxhash/v2"
)

type Cache[K comparable, V any] struct {
	mu       sync.Mutex
	capacity int
	list     *list.List
	items    map[K]*list.Element
}

type entry[K comparable, V any] struct {
	key   K
	value V
}

// New returns a cache holding at most capacity entries. A cache with
// a non-positive capacity stores nothing.
func New[K comparable, V any](capacity int) *Cache[K, V] {
	return &Cache[K, V]{
		capacity: capacity,
		list:     list.New(),
		items:    make(map[K]*list.Element),
	}
}

func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.list.MoveToFront(elem)
		return elem.Value.(*entry[K, V]).value, true
	}
	var zero V
	return zero, false
}

func (c *Cache[K, V]) Set(key K, value V) {
	if c.capacity <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		elem.Value.(*entry[K, V]).value = value
		c.list.MoveToFront(elem)
		return
	}
	c.items[key] = c.list.PushFront(&entry[K, V]{key, value})
	for c.list.Len() > c.capacity {
		c.evictOldest()
	}
}

func (c *Cache[K, V]) evictOldest() {
	elem := c.list.Back()
	if elem == nil {
		return
	}
	delete(c.items, elem.Value.(*entry[K, V]).key)
	c.list.Remove(elem)
}

func (c *Cache[K, V]) Delete(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		delete(c.items, key)
		c.list.Remove(elem)
		return true
	}
	return false
}

func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.list.Len()
}

func (c *Cache[K, V]) Capacity() int {
	return c.capacity
}

func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.list.Init()
	clear(c.items)
}

// minShardCapacity keeps small caches in a single shard, so that their
// eviction order stays exact.
const minShardCapacity = 64

// Sharded splits a string-keyed cache into independently locked shards
// chosen by key hash. The total capacity is divided evenly between shards.
type Sharded[V any] struct {
	shards []*Cache[string, V]
}

func NewSharded[V any](capacity, shards int) *Sharded[V] {
	if shards < 1 {
		shards = 1
	}
	for shards > 1 && capacity/shards < minShardCapacity {
		shards /= 2
	}
	per := capacity / shards
	s := &Sharded[V]{shards: make([]*Cache[string, V], shards)}
	for i := range s.shards {
		n := per
		if i < capacity%shards {
			n++
		}
		s.shards[i] = New[string, V](n)
	}
	return s
}

func (s *Sharded[V]) shard(key string) *Cache[string, V] {
	if len(s.shards) == 1 {
		return s.shards[0]
	}
	return s.shards[xxhash.Sum64String(key)%uint64(len(s.shards))]
}

func (s *Sharded[V]) Get(key string) (V, bool) { return s.shard(key).Get(key) }
func (s *Sharded[V]) Set(key string, value V)  { s.shard(key).Set(key, value) }
func (s *Sharded[V]) Delete(key string) bool   { return s.shard(key).Delete(key) }

func (s *Sharded[V]) Len() int {
	var n int
	for _, c := range s.shards {
		n += c.Len()
	}
	return n
}

func (s *Sharded[V]) Clear() {
	for _, c := range s.shards {
		c.Clear()
	}
}
