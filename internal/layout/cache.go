package layout

import (
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"
)

// RowCache caches wrapped row counts with LRU eviction.
// Entries are keyed by content and width, so edits never need explicit
// invalidation; stale entries simply age out.
type RowCache struct {
	mu        sync.RWMutex
	entries   map[cacheKey]*cacheEntry
	wrapper   *Wrapper
	maxSize   int
	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

type cacheKey struct {
	hash  uint64
	width int
}

type cacheEntry struct {
	rows       int
	lastAccess time.Time
}

// CacheStats reports cache effectiveness.
type CacheStats struct {
	Size      int
	MaxSize   int
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// NewRowCache creates a row cache.
// maxSize is the maximum number of entries (0 = unlimited).
func NewRowCache(w *Wrapper, maxSize int) *RowCache {
	if maxSize < 0 {
		maxSize = 0
	}
	return &RowCache{
		entries: make(map[cacheKey]*cacheEntry),
		wrapper: w,
		maxSize: maxSize,
	}
}

// Rows returns the wrapped row count of text at width, computing it on a
// miss.
func (c *RowCache) Rows(text string, width int) int {
	key := cacheKey{hash: hashText(text), width: width}

	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		e.lastAccess = time.Now()
		rows := e.rows
		c.mu.Unlock()
		c.hits.Add(1)
		return rows
	}
	c.mu.Unlock()

	c.misses.Add(1)
	rows := c.wrapper.Rows(text, width)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &cacheEntry{rows: rows, lastAccess: time.Now()}
	if c.maxSize > 0 && len(c.entries) > c.maxSize {
		c.evict()
	}
	return rows
}

// Clear drops every entry.
func (c *RowCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[cacheKey]*cacheEntry)
}

// evict removes the least recently used entries until under maxSize.
// Must be called with write lock held.
func (c *RowCache) evict() {
	type keyTime struct {
		key  cacheKey
		time time.Time
	}

	entries := make([]keyTime, 0, len(c.entries))
	for k, e := range c.entries {
		entries = append(entries, keyTime{k, e.lastAccess})
	}
	for i := 1; i < len(entries); i++ {
		j := i
		for j > 0 && entries[j].time.Before(entries[j-1].time) {
			entries[j], entries[j-1] = entries[j-1], entries[j]
			j--
		}
	}

	toRemove := len(entries) - c.maxSize
	for i := 0; i < toRemove; i++ {
		delete(c.entries, entries[i].key)
	}
	if toRemove > 0 {
		c.evictions.Add(uint64(toRemove))
	}
}

// Stats returns cache statistics.
func (c *RowCache) Stats() CacheStats {
	c.mu.RLock()
	size := len(c.entries)
	c.mu.RUnlock()
	return CacheStats{
		Size:      size,
		MaxSize:   c.maxSize,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}

func hashText(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}
