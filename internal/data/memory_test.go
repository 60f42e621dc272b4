package data

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/example/ragbot/internal/biz/domain"
)

func appendTestMessage(t *testing.T, s *MemoryStore, content string) *domain.Message {
	t.Helper()
	msg, err := s.Append(context.Background(), &domain.Message{
		ChannelID:  "help",
		Content:    content,
		AuthorID:   "u1",
		AuthorName: "Alice",
	})
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	return msg
}

func TestMemoryAtMostOneClaim(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	msg := appendTestMessage(t, s, "hey chatbot hi")

	const claimants = 50
	var wg sync.WaitGroup
	results := make(chan domain.ClaimResult, claimants)

	for i := 0; i < claimants; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := s.TryClaim(ctx, "help", msg.ID)
			if err != nil {
				t.Errorf("TryClaim failed: %v", err)
				return
			}
			results <- result
		}()
	}
	wg.Wait()
	close(results)

	var claimed int
	for result := range results {
		if result == domain.Claimed {
			claimed++
		}
	}
	if claimed != 1 {
		t.Errorf("Exactly one claimant must win, got %d", claimed)
	}
}

func TestMemoryLockProgression(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	msg := appendTestMessage(t, s, "hey chatbot hi")

	result, err := s.TryClaim(ctx, "help", msg.ID)
	if err != nil || result != domain.Claimed {
		t.Fatalf("First claim: result=%v err=%v", result, err)
	}

	got, _ := s.Get(ctx, "help", msg.ID)
	if !got.IsProcessing || got.IsProcessed || got.ProcessingStartedAt == nil {
		t.Errorf("After claim: %+v", got)
	}

	if err := s.Complete(ctx, "help", msg.ID); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	got, _ = s.Get(ctx, "help", msg.ID)
	if got.IsProcessing || !got.IsProcessed || got.ProcessedAt == nil {
		t.Errorf("After complete: %+v", got)
	}

	// Completing again is a no-op
	if err := s.Complete(ctx, "help", msg.ID); err != nil {
		t.Errorf("Second complete should be a no-op, got %v", err)
	}

	// A processed message can never be claimed again
	result, err = s.TryClaim(ctx, "help", msg.ID)
	if err != nil || result != domain.AlreadyClaimed {
		t.Errorf("Claim of processed message: result=%v err=%v", result, err)
	}
}

func TestMemoryClaimUnknownMessage(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.TryClaim(context.Background(), "help", "nope"); err != domain.ErrNotFound {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestMemoryReclaimStale(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	msg := appendTestMessage(t, s, "hey chatbot hi")

	if _, err := s.TryClaim(ctx, "help", msg.ID); err != nil {
		t.Fatalf("TryClaim failed: %v", err)
	}

	// Cutoff in the future reclaims the just-made claim
	n, err := s.ReclaimStale(ctx, "help", time.Now().Add(time.Second))
	if err != nil {
		t.Fatalf("ReclaimStale failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Reclaimed = %d, want 1", n)
	}

	got, _ := s.Get(ctx, "help", msg.ID)
	if got.IsProcessing || got.IsProcessed {
		t.Errorf("Reclaimed message should be unclaimed: %+v", got)
	}

	// And it is claimable again
	result, err := s.TryClaim(ctx, "help", msg.ID)
	if err != nil || result != domain.Claimed {
		t.Errorf("Reclaimed message should be claimable: result=%v err=%v", result, err)
	}
}

func TestMemoryReclaimSkipsProcessed(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	msg := appendTestMessage(t, s, "hey chatbot hi")

	s.TryClaim(ctx, "help", msg.ID)
	s.Complete(ctx, "help", msg.ID)

	n, err := s.ReclaimStale(ctx, "help", time.Now().Add(time.Second))
	if err != nil {
		t.Fatalf("ReclaimStale failed: %v", err)
	}
	if n != 0 {
		t.Errorf("Processed messages must never be reclaimed, got %d", n)
	}
}

func TestMemoryRecentHistory(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	appendTestMessage(t, s, "one")
	appendTestMessage(t, s, "two")
	appendTestMessage(t, s, "three")

	msgs, err := s.RecentHistory(ctx, "help", 2)
	if err != nil {
		t.Fatalf("RecentHistory failed: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Content != "two" || msgs[1].Content != "three" {
		t.Errorf("History order wrong: %q, %q", msgs[0].Content, msgs[1].Content)
	}
}

func TestMemorySubscribeDeliversAdds(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	sub, err := s.Subscribe(ctx, "help", time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Unsubscribe()

	msg := appendTestMessage(t, s, "hey chatbot hi")

	select {
	case ev := <-sub.Events():
		if ev.Type != domain.EventAdded {
			t.Errorf("Event type = %v, want added", ev.Type)
		}
		if ev.Message.ID != msg.ID {
			t.Errorf("Event message ID = %q, want %q", ev.Message.ID, msg.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("No event delivered")
	}
}

func TestMemorySubscribeHonorsWatermark(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	appendTestMessage(t, s, "old message")

	sub, err := s.Subscribe(ctx, "help", time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Unsubscribe()

	select {
	case ev := <-sub.Events():
		t.Errorf("Message before the watermark should not be delivered: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}
