package data

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/ragbot/internal/biz/domain"
	"github.com/example/ragbot/internal/biz/repo"
)

// MemoryStore is an in-memory message store with change feed fan-out.
// Used for local development and tests; claims are serialized under the
// store mutex so the conditional-update contract holds for callers.
type MemoryStore struct {
	mu       sync.Mutex
	messages map[string][]*domain.Message // channelID -> insertion order
	byID     map[string]*domain.Message
	subs     map[*memorySub]struct{}
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		messages: make(map[string][]*domain.Message),
		byID:     make(map[string]*domain.Message),
		subs:     make(map[*memorySub]struct{}),
	}
}

// Append writes a new message and fans it out to subscribers
func (s *MemoryStore) Append(ctx context.Context, msg *domain.Message) (*domain.Message, error) {
	s.mu.Lock()

	stored := *msg
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	s.messages[stored.ChannelID] = append(s.messages[stored.ChannelID], &stored)
	s.byID[stored.ID] = &stored

	subs := make([]*memorySub, 0, len(s.subs))
	for sub := range s.subs {
		if sub.channelID == stored.ChannelID && !stored.CreatedAt.Before(sub.watermark) {
			subs = append(subs, sub)
		}
	}
	s.mu.Unlock()

	out := stored
	for _, sub := range subs {
		sub.deliver(domain.ChangeEvent{Type: domain.EventAdded, Message: out})
	}
	return &out, nil
}

// Get fetches one message by ID
func (s *MemoryStore) Get(ctx context.Context, channelID, msgID string) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.byID[msgID]
	if !ok || msg.ChannelID != channelID {
		return nil, domain.ErrNotFound
	}
	out := *msg
	return &out, nil
}

// TryClaim atomically marks the message as processing
func (s *MemoryStore) TryClaim(ctx context.Context, channelID, msgID string) (domain.ClaimResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.byID[msgID]
	if !ok || msg.ChannelID != channelID {
		return domain.AlreadyClaimed, domain.ErrNotFound
	}
	if msg.IsProcessing || msg.IsProcessed {
		return domain.AlreadyClaimed, nil
	}
	now := time.Now()
	msg.IsProcessing = true
	msg.ProcessingStartedAt = &now
	return domain.Claimed, nil
}

// Complete marks a claimed message as processed
func (s *MemoryStore) Complete(ctx context.Context, channelID, msgID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.byID[msgID]
	if !ok || msg.ChannelID != channelID {
		return domain.ErrNotFound
	}
	if msg.IsProcessed {
		return nil
	}
	now := time.Now()
	msg.IsProcessing = false
	msg.IsProcessed = true
	msg.ProcessedAt = &now
	return nil
}

// ReclaimStale releases claims whose processing started before cutoff
func (s *MemoryStore) ReclaimStale(ctx context.Context, channelID string, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for _, msg := range s.messages[channelID] {
		if msg.IsProcessing && !msg.IsProcessed &&
			msg.ProcessingStartedAt != nil && msg.ProcessingStartedAt.Before(cutoff) {
			msg.IsProcessing = false
			msg.ProcessingStartedAt = nil
			count++
		}
	}
	return count, nil
}

// RecentHistory returns the most recent messages, oldest first
func (s *MemoryStore) RecentHistory(ctx context.Context, channelID string, limit int) ([]domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.messages[channelID]
	start := 0
	if limit > 0 && len(msgs) > limit {
		start = len(msgs) - limit
	}
	out := make([]domain.Message, 0, len(msgs)-start)
	for _, msg := range msgs[start:] {
		out = append(out, *msg)
	}
	return out, nil
}

// Subscribe starts a change feed over the channel. Messages already stored
// with CreatedAt at or after the watermark are delivered first, matching
// the initial-snapshot behavior of a real store watch.
func (s *MemoryStore) Subscribe(ctx context.Context, channelID string, watermark time.Time) (repo.Subscription, error) {
	sub := &memorySub{
		channelID: channelID,
		watermark: watermark,
		ch:        make(chan domain.ChangeEvent, 256),
		store:     s,
	}

	s.mu.Lock()
	var backlog []domain.Message
	for _, msg := range s.messages[channelID] {
		if !msg.CreatedAt.Before(watermark) {
			backlog = append(backlog, *msg)
		}
	}
	s.subs[sub] = struct{}{}
	s.mu.Unlock()

	for _, msg := range backlog {
		sub.deliver(domain.ChangeEvent{Type: domain.EventAdded, Message: msg})
	}
	return sub, nil
}

type memorySub struct {
	channelID string
	watermark time.Time
	ch        chan domain.ChangeEvent
	store     *MemoryStore

	closeMu sync.Mutex
	closed  bool
}

func (sub *memorySub) Events() <-chan domain.ChangeEvent {
	return sub.ch
}

func (sub *memorySub) Unsubscribe() {
	sub.store.mu.Lock()
	delete(sub.store.subs, sub)
	sub.store.mu.Unlock()

	sub.closeMu.Lock()
	defer sub.closeMu.Unlock()
	if !sub.closed {
		sub.closed = true
		close(sub.ch)
	}
}

func (sub *memorySub) deliver(ev domain.ChangeEvent) {
	sub.closeMu.Lock()
	defer sub.closeMu.Unlock()
	if sub.closed {
		return
	}
	select {
	case sub.ch <- ev:
	default:
		fmt.Printf("[MemoryStore] Subscriber buffer full, dropping event %s\n", ev.Message.ID)
	}
}
