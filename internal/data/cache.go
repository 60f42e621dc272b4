package data

import (
	"context"
	"sync"
	"time"

	"github.com/example/ragbot/internal/biz/domain"
)

// ResponseCache is an in-process TTL cache for generated answers, keyed
// by normalized query text. Counters grow monotonically for the process
// lifetime; ClearExpired removes stale entries without resetting them.
type ResponseCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	stats   domain.CacheStats
}

type cacheEntry struct {
	answer    string
	createdAt time.Time
	expiresAt time.Time
}

// NewResponseCache creates an empty response cache
func NewResponseCache() *ResponseCache {
	return &ResponseCache{
		entries: make(map[string]cacheEntry),
	}
}

// Lookup returns the cached answer for a key. An expired entry counts as
// both expired and a miss, and is removed.
func (c *ResponseCache) Lookup(ctx context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		c.stats.Misses++
		return "", false, nil
	}
	if time.Now().After(entry.expiresAt) {
		delete(c.entries, key)
		c.stats.Expired++
		c.stats.Misses++
		return "", false, nil
	}
	c.stats.Hits++
	return entry.answer, true, nil
}

// Store records an answer under a key with the given TTL
func (c *ResponseCache) Store(ctx context.Context, key, answer string, ttl time.Duration) error {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry{
		answer:    answer,
		createdAt: now,
		expiresAt: now.Add(ttl),
	}
	return nil
}

// ClearExpired drops stale entries and returns how many were removed
func (c *ResponseCache) ClearExpired(ctx context.Context) (int64, domain.CacheStats, error) {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	var count int64
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
			count++
		}
	}
	return count, c.stats, nil
}

// Stats returns the current counters
func (c *ResponseCache) Stats(ctx context.Context) domain.CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Len returns the number of live entries, expired or not
func (c *ResponseCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
