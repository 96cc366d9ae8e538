package cache

import (
	"sync"
	"time"
)

// Cache is a small TTL cache. It is constructed once and passed to whoever
// needs it; there is deliberately no package-level instance.
type Cache struct {
	mu    sync.Mutex
	ttl   time.Duration
	items map[string]item
	now   func() time.Time
}

type item struct {
	value     any
	expiresAt time.Time
}

func New(ttl time.Duration) *Cache {
	return &Cache{
		ttl:   ttl,
		items: make(map[string]item),
		now:   time.Now,
	}
}

func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	it, ok := c.items[key]
	if !ok {
		return nil, false
	}

	if c.now().After(it.expiresAt) {
		delete(c.items, key)
		return nil, false
	}

	return it.value, true
}

func (c *Cache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = item{value: value, expiresAt: c.now().Add(c.ttl)}
}

func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.items, key)
}
