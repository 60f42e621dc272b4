package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/example/ragbot/internal/biz/domain"
	"github.com/example/ragbot/internal/biz/repo"
)

// DefaultMaxContext is the context size used when the caller passes none
const DefaultMaxContext = 5

// Answering resolves queries through the response cache, falling back to
// the answer-generation engine on a miss. Cache failures degrade to a
// bypass and never fail the query.
type Answering struct {
	cache   repo.CacheRepo
	engine  repo.EngineRepo
	ttl     time.Duration
	timeout time.Duration
}

// NewAnswering creates a new answering usecase
func NewAnswering(cache repo.CacheRepo, engine repo.EngineRepo, ttl, timeout time.Duration) *Answering {
	return &Answering{
		cache:   cache,
		engine:  engine,
		ttl:     ttl,
		timeout: timeout,
	}
}

// NormalizeQuery canonicalizes a query for cache keying
func NormalizeQuery(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}

// Answer resolves a query. The Cached flag on the result faithfully
// reflects whether the cache returned a hit.
func (a *Answering) Answer(ctx context.Context, query string, maxContext int, useCache bool) (*domain.QueryResult, error) {
	if maxContext <= 0 {
		maxContext = DefaultMaxContext
	}
	key := NormalizeQuery(query)

	if useCache {
		answer, ok, err := a.cache.Lookup(ctx, key)
		if err != nil {
			// Degrade to a bypass; the engine still answers
			fmt.Printf("[Answering] Cache lookup failed, bypassing: %v\n", err)
		} else if ok {
			return &domain.QueryResult{
				Answer:    answer,
				Context:   nil,
				Timestamp: time.Now(),
				Query:     query,
				Cached:    true,
			}, nil
		}
	}

	genCtx := ctx
	if a.timeout > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	result, err := a.engine.Generate(genCtx, query, maxContext)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	if useCache {
		// Store even after a lookup error; a store failure must not fail
		// the response
		if err := a.cache.Store(ctx, key, result.Answer, a.ttl); err != nil {
			fmt.Printf("[Answering] Cache store failed: %v\n", err)
		}
	}

	return &domain.QueryResult{
		Answer:    result.Answer,
		Context:   result.Context,
		Timestamp: time.Now(),
		Query:     query,
		Cached:    false,
	}, nil
}
