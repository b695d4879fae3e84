package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// MemoryStore is an in-process map store. It has no background goroutine;
// expired entries go away on Get or when Sweep runs after a write.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]memoryEntry
	now   func() time.Time
}

func NewMemoryStore(opts ...Option) *MemoryStore {
	o := buildOptions(opts)
	return &MemoryStore{
		items: make(map[string]memoryEntry),
		now:   o.now,
	}
}

// Get retrieves value from cache.
func (c *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	entry, ok := c.items[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}

	now := c.now()
	if entry.expired(now) {
		c.mu.Lock()
		if e, exists := c.items[key]; exists && e.expired(now) {
			delete(c.items, key)
		}
		c.mu.Unlock()
		return nil, false, nil
	}

	return entry.value, true, nil
}

// Set stores value with ttl. A non-positive ttl removes the key.
func (c *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		c.mu.Lock()
		delete(c.items, key)
		c.mu.Unlock()
		return nil
	}

	// Copy to decouple from caller's buffer
	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)

	expiresAt := c.now().Add(ttl)

	c.mu.Lock()
	c.items[key] = memoryEntry{
		value:     valueCopy,
		expiresAt: expiresAt,
	}
	c.mu.Unlock()

	return nil
}

// Sweep removes every expired entry.
func (c *MemoryStore) Sweep(_ context.Context) (int, error) {
	now := c.now()
	removed := 0

	c.mu.Lock()
	for k, v := range c.items {
		if v.expired(now) {
			delete(c.items, k)
			removed++
		}
	}
	c.mu.Unlock()

	return removed, nil
}

// Len returns the number of items currently in the cache.
func (c *MemoryStore) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Clear removes all items from cache.
func (c *MemoryStore) Clear() {
	c.mu.Lock()
	c.items = make(map[string]memoryEntry)
	c.mu.Unlock()
}

var (
	_ Store   = (*MemoryStore)(nil)
	_ Sweeper = (*MemoryStore)(nil)
)
