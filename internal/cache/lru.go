// Package cache holds the in-memory recency cache that fronts the tile store.
package cache

import (
	"container/list"
	"sync"

	"github.com/cesargomez89/tilevault/internal/domain"
)

type entry struct {
	key   domain.TileKey
	value []byte
}

// LRU is a strict least-recently-used cache of tile bytes. Lookups,
// promotion and eviction are O(1). A capacity of 0 disables caching.
type LRU struct {
	mu       sync.Mutex
	capacity int
	items    map[domain.TileKey]*list.Element
	order    *list.List
}

// NewLRU creates a cache holding at most capacity tiles.
func NewLRU(capacity int) *LRU {
	if capacity < 0 {
		capacity = 0
	}
	return &LRU{
		capacity: capacity,
		items:    make(map[domain.TileKey]*list.Element),
		order:    list.New(),
	}
}

// Get returns the cached bytes and promotes the entry.
func (c *LRU) Get(key domain.TileKey) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(elem)
	return elem.Value.(*entry).value, true
}

// Has reports presence and promotes the entry like Get.
func (c *LRU) Has(key domain.TileKey) bool {
	_, ok := c.Get(key)
	return ok
}

// Contains reports presence without touching recency.
func (c *LRU) Contains(key domain.TileKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.items[key]
	return ok
}

// Set inserts or replaces an entry as most recently used, evicting the
// least recently used entry when full.
func (c *LRU) Set(key domain.TileKey, value []byte) {
	if c.capacity == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		elem.Value.(*entry).value = value
		c.order.MoveToFront(elem)
		return
	}

	if c.order.Len() >= c.capacity {
		if oldest := c.order.Back(); oldest != nil {
			delete(c.items, oldest.Value.(*entry).key)
			c.order.Remove(oldest)
		}
	}

	c.items[key] = c.order.PushFront(&entry{key: key, value: value})
}

// Add inserts key only if it is absent and ok (when non-nil) reports true.
// Both checks run under the cache lock, which lets a loader publish a value
// read from the backend without overwriting a newer write or resurrecting a
// deleted tile.
func (c *LRU) Add(key domain.TileKey, value []byte, ok func() bool) bool {
	if c.capacity == 0 {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.items[key]; exists {
		return false
	}
	if ok != nil && !ok() {
		return false
	}

	if c.order.Len() >= c.capacity {
		if oldest := c.order.Back(); oldest != nil {
			delete(c.items, oldest.Value.(*entry).key)
			c.order.Remove(oldest)
		}
	}
	c.items[key] = c.order.PushFront(&entry{key: key, value: value})
	return true
}

// RemoveRange drops every entry of source at r.Z whose (x, y) lies in r.
// It walks whichever is smaller: the cache or the rectangle.
func (c *LRU) RemoveRange(source string, r domain.TileRange) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	if r.Count() < int64(len(c.items)) {
		for x := r.MinX; x <= r.MaxX; x++ {
			for y := r.MinY; y <= r.MaxY; y++ {
				key := domain.TileKey{Source: source, Z: r.Z, X: x, Y: y}
				if elem, ok := c.items[key]; ok {
					delete(c.items, key)
					c.order.Remove(elem)
					removed++
				}
			}
		}
		return removed
	}

	for key, elem := range c.items {
		if key.Source == source && key.Z == r.Z && r.Contains(key.X, key.Y) {
			delete(c.items, key)
			c.order.Remove(elem)
			removed++
		}
	}
	return removed
}

// Len returns the number of cached tiles.
func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Cap returns the configured capacity.
func (c *LRU) Cap() int {
	return c.capacity
}
