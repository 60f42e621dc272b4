package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/ragbot/internal/biz/domain"
)

// flakyLockRepo implements the MessageRepo lock operations, failing a
// configured number of times before succeeding
type flakyLockRepo struct {
	claimFailures    int
	completeFailures int
	claimCalls       int
	completeCalls    int
	claimResult      domain.ClaimResult
}

func (r *flakyLockRepo) Append(ctx context.Context, msg *domain.Message) (*domain.Message, error) {
	return msg, nil
}

func (r *flakyLockRepo) Get(ctx context.Context, channelID, msgID string) (*domain.Message, error) {
	return nil, domain.ErrNotFound
}

func (r *flakyLockRepo) TryClaim(ctx context.Context, channelID, msgID string) (domain.ClaimResult, error) {
	r.claimCalls++
	if r.claimCalls <= r.claimFailures {
		return domain.AlreadyClaimed, errors.New("write failed")
	}
	return r.claimResult, nil
}

func (r *flakyLockRepo) Complete(ctx context.Context, channelID, msgID string) error {
	r.completeCalls++
	if r.completeCalls <= r.completeFailures {
		return errors.New("write failed")
	}
	return nil
}

func (r *flakyLockRepo) ReclaimStale(ctx context.Context, channelID string, cutoff time.Time) (int64, error) {
	return 2, nil
}

func (r *flakyLockRepo) RecentHistory(ctx context.Context, channelID string, limit int) ([]domain.Message, error) {
	return nil, nil
}

func newTestLock(repo *flakyLockRepo) *Lock {
	l := NewLock(repo)
	l.backoff = time.Millisecond
	return l
}

func TestTryClaimRetriesTransientFailures(t *testing.T) {
	repo := &flakyLockRepo{claimFailures: 2, claimResult: domain.Claimed}
	l := newTestLock(repo)

	result, err := l.TryClaim(context.Background(), "help", "m1")
	if err != nil {
		t.Fatalf("TryClaim should succeed after retries, got %v", err)
	}
	if result != domain.Claimed {
		t.Errorf("Expected Claimed, got %v", result)
	}
	if repo.claimCalls != 3 {
		t.Errorf("Expected 3 claim attempts, got %d", repo.claimCalls)
	}
}

func TestTryClaimExhaustsAttempts(t *testing.T) {
	repo := &flakyLockRepo{claimFailures: 10}
	l := newTestLock(repo)

	if _, err := l.TryClaim(context.Background(), "help", "m1"); err == nil {
		t.Error("TryClaim should surface the error after bounded attempts")
	}
	if repo.claimCalls != 3 {
		t.Errorf("Expected 3 claim attempts, got %d", repo.claimCalls)
	}
}

func TestTryClaimConflictIsNotRetried(t *testing.T) {
	repo := &flakyLockRepo{claimResult: domain.AlreadyClaimed}
	l := newTestLock(repo)

	result, err := l.TryClaim(context.Background(), "help", "m1")
	if err != nil {
		t.Fatalf("Conflict is benign, got error %v", err)
	}
	if result != domain.AlreadyClaimed {
		t.Errorf("Expected AlreadyClaimed, got %v", result)
	}
	if repo.claimCalls != 1 {
		t.Errorf("Conflict should not be retried, got %d attempts", repo.claimCalls)
	}
}

func TestCompleteRetries(t *testing.T) {
	repo := &flakyLockRepo{completeFailures: 1}
	l := newTestLock(repo)

	if err := l.Complete(context.Background(), "help", "m1"); err != nil {
		t.Fatalf("Complete should succeed after retry, got %v", err)
	}
	if repo.completeCalls != 2 {
		t.Errorf("Expected 2 complete attempts, got %d", repo.completeCalls)
	}
}

func TestReclaimStale(t *testing.T) {
	repo := &flakyLockRepo{}
	l := newTestLock(repo)

	n, err := l.ReclaimStale(context.Background(), "help", 5*time.Minute)
	if err != nil {
		t.Fatalf("ReclaimStale failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 reclaimed, got %d", n)
	}
}
