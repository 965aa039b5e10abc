package cache

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// --------------------------------------------------------------------------
// Entry
// --------------------------------------------------------------------------

// Entry is a cached value together with its write-back state.
type Entry[V any] struct {
	Value V
	// Dirty is set if the value changed since it was last persisted.
	Dirty bool
	// Persisted is set if the backing store is known to hold a row for the key
	// (possibly stale when Dirty is set).
	Persisted bool
}

// Item is a key with its entry, as returned by Oldest and DirtyItems.
type Item[K comparable, V any] struct {
	Key   K
	Entry *Entry[V]
}

// --------------------------------------------------------------------------
// LRU
// --------------------------------------------------------------------------

// LRU is a bounded mapping ordered by access recency (least recently used
// first). It only tracks state: deciding when and how dirty entries are
// written back is up to the owner.
//
// Thread-safety: LRU is not thread-safe, the owner must synchronize access.
type LRU[K comparable, V any] struct {
	items     *orderedmap.OrderedMap[K, *Entry[V]]
	maxSize   int
	batchSize int
}

// NewLRU creates a cache holding up to maxSize entries at rest. Once it
// grows beyond maxSize, the owner is expected to evict batchSize entries at
// once. maxSize 0 means the cache is disabled (every Put overflows); a
// batchSize <= 0 defaults to 1.
func NewLRU[K comparable, V any](maxSize, batchSize int) *LRU[K, V] {
	if maxSize < 0 {
		maxSize = 0
	}
	if batchSize <= 0 {
		batchSize = 1
	}
	return &LRU[K, V]{
		items:     orderedmap.New[K, *Entry[V]](),
		maxSize:   maxSize,
		batchSize: batchSize,
	}
}

// MaxSize returns the configured bound.
func (c *LRU[K, V]) MaxSize() int {
	return c.maxSize
}

// BatchSize returns the configured eviction batch size.
func (c *LRU[K, V]) BatchSize() int {
	return c.batchSize
}

// Enabled reports whether the cache may hold entries at rest.
func (c *LRU[K, V]) Enabled() bool {
	return c.maxSize > 0
}

// Len returns the number of cached entries.
func (c *LRU[K, V]) Len() int {
	return c.items.Len()
}

// Get returns the entry for key and marks it as most recently used.
func (c *LRU[K, V]) Get(key K) (*Entry[V], bool) {
	entry, ok := c.items.Get(key)
	if !ok {
		return nil, false
	}
	_ = c.items.MoveToBack(key)
	return entry, true
}

// Peek returns the entry for key without touching its recency.
func (c *LRU[K, V]) Peek(key K) (*Entry[V], bool) {
	return c.items.Get(key)
}

// Has reports whether key is cached.
func (c *LRU[K, V]) Has(key K) bool {
	_, ok := c.items.Get(key)
	return ok
}

// Put inserts or replaces the entry for key at the most recently used position.
func (c *LRU[K, V]) Put(key K, entry *Entry[V]) {
	if _, existed := c.items.Set(key, entry); existed {
		_ = c.items.MoveToBack(key)
	}
}

// Remove drops key from the cache and returns its entry.
func (c *LRU[K, V]) Remove(key K) (*Entry[V], bool) {
	return c.items.Delete(key)
}

// Overflowing reports whether the cache holds more than maxSize entries.
func (c *LRU[K, V]) Overflowing() bool {
	return c.items.Len() > c.maxSize
}

// Oldest returns up to n entries, least recently used first.
func (c *LRU[K, V]) Oldest(n int) []Item[K, V] {
	if n > c.items.Len() {
		n = c.items.Len()
	}
	out := make([]Item[K, V], 0, n)
	for pair := c.items.Oldest(); pair != nil && len(out) < n; pair = pair.Next() {
		out = append(out, Item[K, V]{Key: pair.Key, Entry: pair.Value})
	}
	return out
}

// EvictionCandidates returns the batch that should be evicted, least
// recently used first, or nil if the cache is not overflowing.
func (c *LRU[K, V]) EvictionCandidates() []Item[K, V] {
	if !c.Overflowing() {
		return nil
	}
	return c.Oldest(c.batchSize)
}

// DirtyItems returns all dirty entries, least recently used first.
func (c *LRU[K, V]) DirtyItems() []Item[K, V] {
	var out []Item[K, V]
	for pair := c.items.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Value.Dirty {
			out = append(out, Item[K, V]{Key: pair.Key, Entry: pair.Value})
		}
	}
	return out
}

// Keys returns all cached keys, least recently used first.
func (c *LRU[K, V]) Keys() []K {
	out := make([]K, 0, c.items.Len())
	for pair := c.items.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Key)
	}
	return out
}

// Clear drops every entry, dirty or not.
func (c *LRU[K, V]) Clear() {
	c.items = orderedmap.New[K, *Entry[V]]()
}
