package cache

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru"
)

// LRUStore bounds the number of cached renders; the least recently used entry
// is dropped when full. Expiry works the same as MemoryStore.
type LRUStore struct {
	items *lru.Cache
	now   func() time.Time
}

func NewLRUStore(size int, opts ...Option) (*LRUStore, error) {
	items, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("create lru store: %w", err)
	}
	o := buildOptions(opts)
	return &LRUStore{items: items, now: o.now}, nil
}

func (c *LRUStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := c.items.Get(key)
	if !ok {
		return nil, false, nil
	}
	entry := v.(memoryEntry)
	if entry.expired(c.now()) {
		c.items.Remove(key)
		return nil, false, nil
	}
	return entry.value, true, nil
}

func (c *LRUStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		c.items.Remove(key)
		return nil
	}

	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)

	c.items.Add(key, memoryEntry{value: valueCopy, expiresAt: c.now().Add(ttl)})
	return nil
}

// Sweep removes expired entries without touching recency order.
func (c *LRUStore) Sweep(_ context.Context) (int, error) {
	now := c.now()
	removed := 0
	for _, k := range c.items.Keys() {
		v, ok := c.items.Peek(k)
		if !ok {
			continue
		}
		if v.(memoryEntry).expired(now) {
			c.items.Remove(k)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of items currently in the cache.
func (c *LRUStore) Len() int {
	return c.items.Len()
}

var (
	_ Store   = (*LRUStore)(nil)
	_ Sweeper = (*LRUStore)(nil)
)
