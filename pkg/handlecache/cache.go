// Package handlecache maps logical paths to opaque remote file handles.
//
// The cache is bounded and evicts the least recently accessed entry once its
// capacity is exceeded. Every operation runs under one mutex; lookups are
// O(1), while RemoveAll and RemoveByValue scan all entries.
package handlecache

import (
	"bytes"
	"container/list"
	"strings"
	"sync"
)

// DefaultCapacity is used when New is given a non-positive capacity.
const DefaultCapacity = 1000

// Cache is an access-ordered path to handle cache. Safe for concurrent use.
type Cache struct {
	capacity int
	mu       sync.Mutex
	entries  map[string]*list.Element
	lru      *list.List
	metrics  Metrics
}

type entry struct {
	path   string
	handle []byte
}

// New creates a cache holding at most capacity entries. A nil metrics
// disables instrumentation.
func New(capacity int, metrics Metrics) *Cache {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Cache{
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		lru:      list.New(),
		metrics:  metrics,
	}
}

// Put inserts or replaces the handle for path and marks it most recently
// used. The handle is copied.
func (c *Cache) Put(path string, handle []byte) {
	stored := bytes.Clone(handle)

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[path]; ok {
		elem.Value.(*entry).handle = stored
		c.lru.MoveToFront(elem)
		return
	}

	c.entries[path] = c.lru.PushFront(&entry{path: path, handle: stored})
	for c.lru.Len() > c.capacity {
		c.removeElement(c.lru.Back())
		c.metrics.RecordEviction()
	}
	c.metrics.SetSize(c.lru.Len())
}

// Get returns a copy of the handle cached for path, promoting the entry.
func (c *Cache) Get(path string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[path]
	if !ok {
		c.metrics.RecordLookup(false)
		return nil, false
	}
	c.lru.MoveToFront(elem)
	c.metrics.RecordLookup(true)
	return bytes.Clone(elem.Value.(*entry).handle), true
}

// Remove deletes the entry for path if present.
func (c *Cache) Remove(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[path]; ok {
		c.removeElement(elem)
		c.metrics.SetSize(c.lru.Len())
	}
}

// RemoveAll deletes prefix itself and every path below it. Matching is by
// path component, so "/a/b" covers "/a/b/c" but not "/a/bc". It returns the
// number of entries removed.
func (c *Cache) RemoveAll(prefix string) int {
	trimmed := strings.TrimSuffix(prefix, "/")

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for path, elem := range c.entries {
		if isUnder(path, trimmed) {
			c.removeElement(elem)
			removed++
		}
	}
	if removed > 0 {
		c.metrics.SetSize(c.lru.Len())
	}
	return removed
}

// RemoveByValue deletes every entry mapped to handle and returns the number
// removed. Used when the server reports a handle stale and the caller no
// longer knows its path.
func (c *Cache) RemoveByValue(handle []byte) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for elem := c.lru.Front(); elem != nil; {
		next := elem.Next()
		if bytes.Equal(elem.Value.(*entry).handle, handle) {
			c.removeElement(elem)
			removed++
		}
		elem = next
	}
	if removed > 0 {
		c.metrics.SetSize(c.lru.Len())
	}
	return removed
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Capacity returns the maximum number of entries.
func (c *Cache) Capacity() int {
	return c.capacity
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*list.Element)
	c.lru.Init()
	c.metrics.SetSize(0)
}

func (c *Cache) removeElement(elem *list.Element) {
	c.lru.Remove(elem)
	delete(c.entries, elem.Value.(*entry).path)
}

func isUnder(path, prefix string) bool {
	if prefix == "" {
		// "/" trimmed: everything is below the root
		return true
	}
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	return len(path) == len(prefix) || path[len(prefix)] == '/'
}
