package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/example/ragbot/internal/biz/domain"
	"github.com/example/ragbot/internal/biz/repo"
)

// Lock coordinates the optimistic per-message claim protocol.
// The storage layer provides the atomic compare-and-swap; this layer adds
// bounded retries for transient write failures. A claim conflict is a
// normal outcome and is never retried.
type Lock struct {
	messageRepo repo.MessageRepo
	maxAttempts int
	backoff     time.Duration
}

// NewLock creates a new lock coordinator
func NewLock(messageRepo repo.MessageRepo) *Lock {
	return &Lock{
		messageRepo: messageRepo,
		maxAttempts: 3,
		backoff:     200 * time.Millisecond,
	}
}

// TryClaim attempts to claim a message for exclusive handling
func (l *Lock) TryClaim(ctx context.Context, channelID, msgID string) (domain.ClaimResult, error) {
	var lastErr error
	for attempt := 1; attempt <= l.maxAttempts; attempt++ {
		result, err := l.messageRepo.TryClaim(ctx, channelID, msgID)
		if err == nil {
			return result, nil
		}
		lastErr = err
		fmt.Printf("[Lock] Claim attempt %d/%d failed for %s: %v\n", attempt, l.maxAttempts, msgID, err)
		if !l.wait(ctx, attempt) {
			break
		}
	}
	return domain.AlreadyClaimed, fmt.Errorf("claim %s: %w", msgID, lastErr)
}

// Complete marks a claimed message as processed, releasing the claim.
// This is the only legal way out of the processing state short of the
// staleness sweep.
func (l *Lock) Complete(ctx context.Context, channelID, msgID string) error {
	var lastErr error
	for attempt := 1; attempt <= l.maxAttempts; attempt++ {
		err := l.messageRepo.Complete(ctx, channelID, msgID)
		if err == nil {
			return nil
		}
		lastErr = err
		fmt.Printf("[Lock] Complete attempt %d/%d failed for %s: %v\n", attempt, l.maxAttempts, msgID, err)
		if !l.wait(ctx, attempt) {
			break
		}
	}
	return fmt.Errorf("complete %s: %w", msgID, lastErr)
}

// ReclaimStale releases claims whose processing started longer than
// threshold ago, returning those messages to the unclaimed state
func (l *Lock) ReclaimStale(ctx context.Context, channelID string, threshold time.Duration) (int64, error) {
	cutoff := time.Now().Add(-threshold)
	n, err := l.messageRepo.ReclaimStale(ctx, channelID, cutoff)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale: %w", err)
	}
	return n, nil
}

func (l *Lock) wait(ctx context.Context, attempt int) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(time.Duration(attempt) * l.backoff):
		return true
	}
}
