// Atelier - Artwork Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package cache

import "sync"

// lruEntry is a node in the LRU doubly-linked list.
type lruEntry[V any] struct {
	key   string
	value V
	prev  *lruEntry[V]
	next  *lruEntry[V]
}

// EvictFunc is called with the key and value of an entry pushed out by capacity.
type EvictFunc[V any] func(key string, value V)

// LRU implements a thread-safe Least Recently Used map with O(1) Get, Add and
// eviction. A doubly-linked list keeps recency order; head.next is the most
// recently used entry and tail.prev the least recently used.
type LRU[V any] struct {
	mu sync.Mutex

	capacity int
	items    map[string]*lruEntry[V]
	head     *lruEntry[V]
	tail     *lruEntry[V]
	onEvict  EvictFunc[V]

	hits   int64
	misses int64
}

// NewLRU creates an LRU holding at most capacity entries.
// onEvict may be nil. It runs outside the cache lock.
func NewLRU[V any](capacity int, onEvict EvictFunc[V]) *LRU[V] {
	if capacity <= 0 {
		capacity = 10000
	}

	c := &LRU[V]{
		capacity: capacity,
		items:    make(map[string]*lruEntry[V], capacity),
		head:     &lruEntry[V]{},
		tail:     &lruEntry[V]{},
		onEvict:  onEvict,
	}
	c.head.next = c.tail
	c.tail.prev = c.head

	return c
}

// Get returns the value for key and marks it most recently used.
func (c *LRU[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.items[key]; ok {
		c.moveToFront(entry)
		c.hits++
		return entry.value, true
	}

	c.misses++
	var zero V
	return zero, false
}

// AddIfAbsent stores value unless key is already present. It returns the
// value held by the cache afterwards and whether value was the one stored.
func (c *LRU[V]) AddIfAbsent(key string, value V) (actual V, added bool) {
	c.mu.Lock()

	if entry, ok := c.items[key]; ok {
		c.moveToFront(entry)
		c.mu.Unlock()
		return entry.value, false
	}

	evicted := c.addLocked(key, value)
	c.mu.Unlock()

	c.notify(evicted)
	return value, true
}

// Add inserts or replaces key and marks it most recently used.
func (c *LRU[V]) Add(key string, value V) {
	c.mu.Lock()
	evicted := c.addLocked(key, value)
	c.mu.Unlock()

	c.notify(evicted)
}

// Remove deletes key without invoking the eviction callback.
// Returns true if the entry was present.
func (c *LRU[V]) Remove(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.items[key]; ok {
		c.removeEntry(entry)
		return true
	}
	return false
}

// Len returns the current number of entries.
func (c *LRU[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Values returns all values from most to least recently used.
func (c *LRU[V]) Values() []V {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]V, 0, len(c.items))
	for e := c.head.next; e != c.tail; e = e.next {
		out = append(out, e.value)
	}
	return out
}

// Stats returns hit/miss statistics and the current size.
func (c *LRU[V]) Stats() (hits, misses int64, size int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses, len(c.items)
}

// addLocked inserts or updates an entry and returns entries evicted by capacity.
// Must be called with mu held.
func (c *LRU[V]) addLocked(key string, value V) []*lruEntry[V] {
	if entry, ok := c.items[key]; ok {
		entry.value = value
		c.moveToFront(entry)
		return nil
	}

	entry := &lruEntry[V]{key: key, value: value}
	c.addToFront(entry)
	c.items[key] = entry

	var evicted []*lruEntry[V]
	for len(c.items) > c.capacity {
		oldest := c.tail.prev
		c.removeEntry(oldest)
		evicted = append(evicted, oldest)
	}
	return evicted
}

func (c *LRU[V]) notify(evicted []*lruEntry[V]) {
	if c.onEvict == nil {
		return
	}
	for _, e := range evicted {
		c.onEvict(e.key, e.value)
	}
}

func (c *LRU[V]) addToFront(entry *lruEntry[V]) {
	entry.prev = c.head
	entry.next = c.head.next
	c.head.next.prev = entry
	c.head.next = entry
}

func (c *LRU[V]) moveToFront(entry *lruEntry[V]) {
	entry.prev.next = entry.next
	entry.next.prev = entry.prev
	c.addToFront(entry)
}

func (c *LRU[V]) removeEntry(entry *lruEntry[V]) {
	entry.prev.next = entry.next
	entry.next.prev = entry.prev
	delete(c.items, entry.key)
}
