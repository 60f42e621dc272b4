package repo

import (
	"context"
	"time"

	"github.com/example/ragbot/internal/biz/domain"
)

// CacheRepo is the response cache interface.
// Keys are normalized query strings; eviction policy belongs to the
// implementation, not the caller.
type CacheRepo interface {
	// Lookup returns the cached answer for a key. ok is false on a miss
	// or an expired entry.
	Lookup(ctx context.Context, key string) (answer string, ok bool, err error)

	// Store records an answer under a key with the given TTL
	Store(ctx context.Context, key, answer string, ttl time.Duration) error

	// ClearExpired drops stale entries without resetting counters.
	// Returns how many entries were removed and the current stats.
	ClearExpired(ctx context.Context) (int64, domain.CacheStats, error)

	// Stats returns the current counters
	Stats(ctx context.Context) domain.CacheStats
}
