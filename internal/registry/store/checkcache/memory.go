package checkcache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	available bool
	expiresAt time.Time
}

// InMemory mirrors the Redis cache for unit tests and single-instance runs.
type InMemory struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]memoryEntry
}

// NewInMemory builds an empty memory cache with the given entry TTL.
func NewInMemory(ttl time.Duration) *InMemory {
	return &InMemory{ttl: ttl, entries: make(map[string]memoryEntry)}
}

func (c *InMemory) Get(_ context.Context, name string) (available bool, ok bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, found := c.entries[name]
	if !found || time.Now().After(entry.expiresAt) {
		delete(c.entries, name)
		return false, false, nil
	}
	return entry.available, true, nil
}

func (c *InMemory) Set(_ context.Context, name string, available bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[name] = memoryEntry{available: available, expiresAt: time.Now().Add(c.ttl)}
	return nil
}

func (c *InMemory) Invalidate(_ context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, name)
	return nil
}
