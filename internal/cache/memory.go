package cache

import (
	"container/list"
	"sync"
	"time"
)

// Memory is a size-bounded LRU of byte slices.
type Memory struct {
	capacity int64
	size     int64

	items map[string]*list.Element
	order *list.List // front is most recently used

	mu    sync.Mutex
	stats Stats
}

type memoryEntry struct {
	key    string
	value  []byte
	stored time.Time
}

// NewMemory creates an LRU holding at most capacity bytes.
func NewMemory(capacity int64) *Memory {
	return &Memory{
		capacity: capacity,
		items:    make(map[string]*list.Element),
		order:    list.New(),
	}
}

// Get returns a copy of the value and marks it most recently used.
func (c *Memory) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		c.stats.Misses++
		return nil, false
	}
	c.order.MoveToFront(elem)
	c.stats.Hits++
	return append([]byte(nil), elem.Value.(*memoryEntry).value...), true
}

// Put stores value, evicting least recently used entries to make room.
// The cache keeps its own copy.
func (c *Memory) Put(key string, value []byte) error {
	n := int64(len(value))
	if n > c.capacity {
		return ErrItemTooLarge
	}
	value = append([]byte(nil), value...)

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.remove(elem)
	}
	for c.size+n > c.capacity && c.order.Len() > 0 {
		c.remove(c.order.Back())
		c.stats.Evictions++
	}

	c.items[key] = c.order.PushFront(&memoryEntry{key: key, value: value, stored: time.Now()})
	c.size += n
	return nil
}

// Prune drops entries stored longer than maxAge ago.
func (c *Memory) Prune(maxAge time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for elem := c.order.Back(); elem != nil; {
		prev := elem.Prev()
		if elem.Value.(*memoryEntry).stored.Before(cutoff) {
			c.remove(elem)
			removed++
		}
		elem = prev
	}
	return removed
}

// Clear empties the cache.
func (c *Memory) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element)
	c.order.Init()
	c.size = 0
}

// Stats returns a snapshot of the counters.
func (c *Memory) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Capacity = c.capacity
	s.Size = c.size
	s.Items = len(c.items)
	return s
}

func (c *Memory) remove(elem *list.Element) {
	entry := c.order.Remove(elem).(*memoryEntry)
	delete(c.items, entry.key)
	c.size -= int64(len(entry.value))
}
