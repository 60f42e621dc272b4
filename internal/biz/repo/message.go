package repo

import (
	"context"
	"time"

	"github.com/example/ragbot/internal/biz/domain"
)

// MessageRepo is the message store interface.
// Claim and Complete must be atomic conditional updates at the storage
// layer so the protocol holds across independent processes.
type MessageRepo interface {
	// Append writes a new message and returns it with ID and CreatedAt assigned
	Append(ctx context.Context, msg *domain.Message) (*domain.Message, error)

	// Get fetches one message by ID
	Get(ctx context.Context, channelID, msgID string) (*domain.Message, error)

	// TryClaim atomically marks the message as processing, succeeding only
	// if it was neither processing nor processed at write time.
	// Returns domain.AlreadyClaimed when another claimant won.
	TryClaim(ctx context.Context, channelID, msgID string) (domain.ClaimResult, error)

	// Complete marks a claimed message as processed and releases the claim.
	// Completing an already-processed message is a no-op.
	Complete(ctx context.Context, channelID, msgID string) error

	// ReclaimStale releases claims whose processing started before cutoff,
	// returning them to the unclaimed state. Returns how many were reset.
	ReclaimStale(ctx context.Context, channelID string, cutoff time.Time) (int64, error)

	// RecentHistory returns the most recent messages in a channel, oldest first
	RecentHistory(ctx context.Context, channelID string, limit int) ([]domain.Message, error)
}
