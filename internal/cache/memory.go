package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// memoryCache is the process-local fallback used when Redis is not
// available. Expired entries are reported as misses immediately and
// reclaimed by a janitor.
type memoryCache struct {
	mu         sync.RWMutex
	entries    map[string]memoryEntry
	defaultTTL time.Duration
	done       chan struct{}
	closeOnce  sync.Once
}

func NewMemory(defaultTTL time.Duration) Cache {
	c := &memoryCache{
		entries:    make(map[string]memoryEntry),
		defaultTTL: defaultTTL,
		done:       make(chan struct{}),
	}
	go c.janitor()
	return c
}

func (c *memoryCache) janitor() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case now := <-ticker.C:
			c.mu.Lock()
			for key, e := range c.entries {
				if now.After(e.expiresAt) {
					delete(c.entries, key)
				}
			}
			c.mu.Unlock()
		}
	}
}

func (c *memoryCache) Get(ctx context.Context, key string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || time.Now().After(e.expiresAt) {
		return nil, false
	}
	return e.value, true
}

func (c *memoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryEntry{
		value:     append([]byte(nil), value...),
		expiresAt: time.Now().Add(ttl),
	}
}

func (c *memoryCache) Delete(ctx context.Context, keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		delete(c.entries, key)
	}
}

func (c *memoryCache) DeletePrefix(ctx context.Context, prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
}

func (c *memoryCache) Ping(ctx context.Context) error {
	return nil
}

func (c *memoryCache) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}
