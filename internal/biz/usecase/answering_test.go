package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/ragbot/internal/biz/domain"
	"github.com/example/ragbot/internal/biz/repo"
)

// fakeCache is a scriptable CacheRepo
type fakeCache struct {
	entries     map[string]string
	lookupErr   error
	storeErr    error
	storeCalls  int
	lookupCalls int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]string)}
}

func (c *fakeCache) Lookup(ctx context.Context, key string) (string, bool, error) {
	c.lookupCalls++
	if c.lookupErr != nil {
		return "", false, c.lookupErr
	}
	answer, ok := c.entries[key]
	return answer, ok, nil
}

func (c *fakeCache) Store(ctx context.Context, key, answer string, ttl time.Duration) error {
	c.storeCalls++
	if c.storeErr != nil {
		return c.storeErr
	}
	c.entries[key] = answer
	return nil
}

func (c *fakeCache) ClearExpired(ctx context.Context) (int64, domain.CacheStats, error) {
	return 0, domain.CacheStats{}, nil
}

func (c *fakeCache) Stats(ctx context.Context) domain.CacheStats {
	return domain.CacheStats{}
}

// fakeEngine returns a fixed answer and records the maxContext it saw
type fakeEngine struct {
	answer     string
	err        error
	calls      int
	maxContext int
}

func (e *fakeEngine) Generate(ctx context.Context, query string, maxContext int) (*repo.GenerationResult, error) {
	e.calls++
	e.maxContext = maxContext
	if e.err != nil {
		return nil, e.err
	}
	return &repo.GenerationResult{Answer: e.answer}, nil
}

func TestNormalizeQuery(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"What Is The Refund Policy?", "what is the refund policy?"},
		{"  spaced   out  query ", "spaced out query"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeQuery(tt.in); got != tt.want {
			t.Errorf("NormalizeQuery(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestAnswerMissThenHit(t *testing.T) {
	cache := newFakeCache()
	engine := &fakeEngine{answer: "Refunds process in 5 days."}
	a := NewAnswering(cache, engine, time.Hour, 0)

	res, err := a.Answer(context.Background(), "What is the refund policy?", 5, true)
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if res.Cached {
		t.Error("First answer should not be cached")
	}
	if res.Answer != "Refunds process in 5 days." {
		t.Errorf("Answer = %q", res.Answer)
	}
	if engine.calls != 1 {
		t.Errorf("Engine calls = %d, want 1", engine.calls)
	}

	// Same query, different casing: must hit via normalization
	res, err = a.Answer(context.Background(), "WHAT IS THE REFUND POLICY?", 5, true)
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if !res.Cached {
		t.Error("Second answer should be cached")
	}
	if engine.calls != 1 {
		t.Errorf("Engine should not be called on a hit, calls = %d", engine.calls)
	}
}

func TestAnswerBypassesCacheWhenDisabled(t *testing.T) {
	cache := newFakeCache()
	engine := &fakeEngine{answer: "a"}
	a := NewAnswering(cache, engine, time.Hour, 0)

	res, err := a.Answer(context.Background(), "q", 5, false)
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if res.Cached {
		t.Error("Cached should be false with useCache=false")
	}
	if cache.lookupCalls != 0 || cache.storeCalls != 0 {
		t.Errorf("Cache should be untouched, lookup=%d store=%d", cache.lookupCalls, cache.storeCalls)
	}
}

func TestAnswerCacheErrorDegradesToBypass(t *testing.T) {
	cache := newFakeCache()
	cache.lookupErr = errors.New("cache backend down")
	engine := &fakeEngine{answer: "a"}
	a := NewAnswering(cache, engine, time.Hour, 0)

	res, err := a.Answer(context.Background(), "q", 5, true)
	if err != nil {
		t.Fatalf("Cache error must not fail the answer: %v", err)
	}
	if res.Cached {
		t.Error("Cached should be false after a cache error")
	}
	if engine.calls != 1 {
		t.Errorf("Engine calls = %d, want 1", engine.calls)
	}
	// The fresh result is still offered to the cache
	if cache.storeCalls != 1 {
		t.Errorf("Store calls = %d, want 1", cache.storeCalls)
	}
}

func TestAnswerStoreErrorIsNotFatal(t *testing.T) {
	cache := newFakeCache()
	cache.storeErr = errors.New("cache backend down")
	engine := &fakeEngine{answer: "a"}
	a := NewAnswering(cache, engine, time.Hour, 0)

	if _, err := a.Answer(context.Background(), "q", 5, true); err != nil {
		t.Fatalf("Store error must not fail the answer: %v", err)
	}
}

func TestAnswerEngineErrorPropagates(t *testing.T) {
	cache := newFakeCache()
	engine := &fakeEngine{err: errors.New("generation failed")}
	a := NewAnswering(cache, engine, time.Hour, 0)

	if _, err := a.Answer(context.Background(), "q", 5, true); err == nil {
		t.Error("Engine error should propagate")
	}
	if cache.storeCalls != 0 {
		t.Error("Nothing should be stored on engine failure")
	}
}

func TestAnswerClampsMaxContext(t *testing.T) {
	cache := newFakeCache()
	engine := &fakeEngine{answer: "a"}
	a := NewAnswering(cache, engine, time.Hour, 0)

	if _, err := a.Answer(context.Background(), "q", 0, false); err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if engine.maxContext != DefaultMaxContext {
		t.Errorf("maxContext = %d, want %d", engine.maxContext, DefaultMaxContext)
	}

	if _, err := a.Answer(context.Background(), "q", 12, false); err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if engine.maxContext != 12 {
		t.Errorf("Positive maxContext must pass through, got %d", engine.maxContext)
	}
}
