package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/example/ragbot/internal/biz/domain"
	"github.com/example/ragbot/internal/biz/repo"
)

// Responder publishes bot-authored messages into the collection
type Responder struct {
	messageRepo repo.MessageRepo
	botUserID   string
	maxAttempts int
	backoff     time.Duration
}

// NewResponder creates a new responder
func NewResponder(messageRepo repo.MessageRepo, botUserID string) *Responder {
	return &Responder{
		messageRepo: messageRepo,
		botUserID:   botUserID,
		maxAttempts: 3,
		backoff:     200 * time.Millisecond,
	}
}

// SendMessage appends a bot-authored message to the channel
func (r *Responder) SendMessage(ctx context.Context, channelID, text string) error {
	msg := &domain.Message{
		ChannelID:  channelID,
		Content:    text,
		AuthorID:   r.botUserID,
		AuthorName: domain.BotDisplayName,
		IsBot:      true,
	}

	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		_, err := r.messageRepo.Append(ctx, msg)
		if err == nil {
			return nil
		}
		lastErr = err
		fmt.Printf("[Responder] Send attempt %d/%d failed: %v\n", attempt, r.maxAttempts, err)
		select {
		case <-ctx.Done():
			return fmt.Errorf("send message: %w", lastErr)
		case <-time.After(time.Duration(attempt) * r.backoff):
		}
	}
	return fmt.Errorf("send message: %w", lastErr)
}

// SendBotResponse publishes the interim thinking indicator, then the
// generated answer, or the apology when generation fails. The thinking
// indicator is always committed before the answer so the user sees the
// thinking -> answered sequence.
//
// A non-nil error means nothing (or not even the apology) reached the
// user; the caller decides whether to release the claim.
func (r *Responder) SendBotResponse(ctx context.Context, channelID string, generate func(context.Context) (string, error)) error {
	if err := r.SendMessage(ctx, channelID, domain.ThinkingMarker); err != nil {
		return fmt.Errorf("send thinking indicator: %w", err)
	}

	answer, err := generate(ctx)
	if err != nil {
		fmt.Printf("[Responder] Generation failed: %v\n", err)
		if aerr := r.SendMessage(ctx, channelID, domain.ApologyText); aerr != nil {
			return fmt.Errorf("send apology: %w", aerr)
		}
		return nil
	}

	if err := r.SendMessage(ctx, channelID, answer); err != nil {
		fmt.Printf("[Responder] Answer publish failed: %v\n", err)
		if aerr := r.SendMessage(ctx, channelID, domain.ApologyText); aerr != nil {
			return fmt.Errorf("send apology: %w", aerr)
		}
	}
	return nil
}
