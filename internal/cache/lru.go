// Package cache provides caching implementations for Kestrel.
package cache

import (
	"bytes"
	"container/list"
	"context"
	"sync"
	"time"
)

// DefaultLRUSize is the capacity used when none is configured.
const DefaultLRUSize = 10000

// LRUStats is a point-in-time view of an LRUCache.
type LRUStats struct {
	Entries   int   `json:"entries"`
	Capacity  int   `json:"capacity"`
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Expired   int64 `json:"expired"`
}

// LRUCache is an in-process, size-bounded cache. It serves as the "memory"
// cache and as L1 of the two-phase cache. Entries are visible to this
// process only.
type LRUCache struct {
	mu       sync.Mutex
	capacity int
	index    map[string]*list.Element
	recency  *list.List // front is most recently used
	now      func() time.Time
	stats    LRUStats
}

type lruEntry struct {
	key     string
	value   []byte
	expires time.Time // zero means no expiry
}

func (e *lruEntry) expired(now time.Time) bool {
	return !e.expires.IsZero() && now.After(e.expires)
}

// NewLRUCache creates a cache holding at most capacity entries.
func NewLRUCache(capacity int) *LRUCache {
	if capacity <= 0 {
		capacity = DefaultLRUSize
	}
	return &LRUCache{
		capacity: capacity,
		index:    make(map[string]*list.Element),
		recency:  list.New(),
		now:      time.Now,
	}
}

// Get returns a copy of the value under key, or nil when absent or expired.
func (c *LRUCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.index[key]
	if !ok {
		c.stats.Misses++
		return nil, nil
	}
	entry := elem.Value.(*lruEntry)
	if entry.expired(c.now()) {
		c.drop(elem)
		c.stats.Expired++
		c.stats.Misses++
		return nil, nil
	}

	c.recency.MoveToFront(elem)
	c.stats.Hits++
	return bytes.Clone(entry.value), nil
}

// Set stores a copy of value. A non-positive ttl keeps the entry until it is
// evicted or deleted. When full, an expired entry is reclaimed before the
// least recently used one.
func (c *LRUCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	var expires time.Time
	if ttl > 0 {
		expires = now.Add(ttl)
	}

	if elem, ok := c.index[key]; ok {
		entry := elem.Value.(*lruEntry)
		entry.value = bytes.Clone(value)
		entry.expires = expires
		c.recency.MoveToFront(elem)
		return nil
	}

	c.index[key] = c.recency.PushFront(&lruEntry{key: key, value: bytes.Clone(value), expires: expires})
	for c.recency.Len() > c.capacity {
		c.reclaim(now)
	}
	return nil
}

// Delete removes key if present.
func (c *LRUCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.index[key]; ok {
		c.drop(elem)
	}
	return nil
}

// Ping always succeeds.
func (c *LRUCache) Ping(context.Context) error {
	return nil
}

// Close empties the cache. Counters are kept.
func (c *LRUCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.index = make(map[string]*list.Element)
	c.recency.Init()
	return nil
}

// Stats returns the current counters.
func (c *LRUCache) Stats() LRUStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Entries = c.recency.Len()
	s.Capacity = c.capacity
	return s
}

// reclaim frees one slot, preferring the stalest expired entry.
func (c *LRUCache) reclaim(now time.Time) {
	for elem := c.recency.Back(); elem != nil; elem = elem.Prev() {
		if elem.Value.(*lruEntry).expired(now) {
			c.drop(elem)
			c.stats.Expired++
			return
		}
	}
	if oldest := c.recency.Back(); oldest != nil {
		c.drop(oldest)
		c.stats.Evictions++
	}
}

func (c *LRUCache) drop(elem *list.Element) {
	c.recency.Remove(elem)
	delete(c.index, elem.Value.(*lruEntry).key)
}
