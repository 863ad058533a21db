// Package cache provides a small byte-block cache used by blobstore's
// CachingStore to avoid re-fetching the same range from a remote backend.
package cache

import (
	"container/list"
	"context"
	"sync"
)

// CacheKind distinguishes what a CacheKey addresses. Only blob block
// data is cached today; the field exists so a future manifest or
// metadata cache can share the same key space without colliding.
type CacheKind int

const (
	CacheKindBlob CacheKind = iota
)

// CacheKey identifies one cached block: blob name plus its block index
// (not byte offset) within that blob.
type CacheKey struct {
	Kind   CacheKind
	Path   string
	Offset uint64
}

// BlockCache is a bounded, concurrency-safe cache of blob blocks.
type BlockCache interface {
	Get(ctx context.Context, key CacheKey) ([]byte, bool)
	Set(ctx context.Context, key CacheKey, data []byte)
	// Invalidate removes every entry for which match returns true.
	Invalidate(match func(CacheKey) bool)
}

type lruEntry struct {
	key  CacheKey
	data []byte
}

// lruBlockCache is a size-bounded LRU keyed by CacheKey, evicting the
// least-recently-used block once the total cached bytes exceed maxBytes.
type lruBlockCache struct {
	mu       sync.Mutex
	maxBytes int64
	used     int64
	ll       *list.List
	elems    map[CacheKey]*list.Element
	onEvict  func(CacheKey)
}

// NewLRUBlockCache creates a BlockCache that evicts entries once the sum
// of their sizes exceeds maxBytes. onEvict, if non-nil, is called with
// the key of every evicted or invalidated entry.
func NewLRUBlockCache(maxBytes int64, onEvict func(CacheKey)) BlockCache {
	return &lruBlockCache{
		maxBytes: maxBytes,
		ll:       list.New(),
		elems:    make(map[CacheKey]*list.Element),
		onEvict:  onEvict,
	}
}

func (c *lruBlockCache) Get(_ context.Context, key CacheKey) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.elems[key]
	if !ok {
		return nil, false
	}
	c.ll.MoveToFront(el)
	return el.Value.(*lruEntry).data, true
}

func (c *lruBlockCache) Set(_ context.Context, key CacheKey, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.elems[key]; ok {
		c.used += int64(len(data)) - int64(len(el.Value.(*lruEntry).data))
		el.Value.(*lruEntry).data = data
		c.ll.MoveToFront(el)
	} else {
		c.elems[key] = c.ll.PushFront(&lruEntry{key: key, data: data})
		c.used += int64(len(data))
	}
	c.evict()
}

func (c *lruBlockCache) evict() {
	for c.used > c.maxBytes {
		back := c.ll.Back()
		if back == nil {
			return
		}
		entry := back.Value.(*lruEntry)
		c.ll.Remove(back)
		delete(c.elems, entry.key)
		c.used -= int64(len(entry.data))
		if c.onEvict != nil {
			c.onEvict(entry.key)
		}
	}
}

func (c *lruBlockCache) Invalidate(match func(CacheKey) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for el := c.ll.Front(); el != nil; {
		next := el.Next()
		entry := el.Value.(*lruEntry)
		if match(entry.key) {
			c.ll.Remove(el)
			delete(c.elems, entry.key)
			c.used -= int64(len(entry.data))
			if c.onEvict != nil {
				c.onEvict(entry.key)
			}
		}
		el = next
	}
}
