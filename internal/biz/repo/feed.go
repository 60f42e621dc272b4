package repo

import (
	"context"
	"time"

	"github.com/example/ragbot/internal/biz/domain"
)

// Subscription is a handle on an active change feed subscription
type Subscription interface {
	// Events delivers change events; the channel is closed when the
	// subscription ends
	Events() <-chan domain.ChangeEvent

	// Unsubscribe stops delivery and closes the events channel
	Unsubscribe()
}

// ChangeFeedRepo watches a message collection for changes
type ChangeFeedRepo interface {
	// Subscribe starts watching messages in a channel whose creation time
	// is at or after the watermark. Delivery is at-least-once; consumers
	// must tolerate duplicates.
	Subscribe(ctx context.Context, channelID string, watermark time.Time) (Subscription, error)
}
