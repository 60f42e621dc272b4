package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/example/ragbot/internal/biz/domain"
	"github.com/example/ragbot/internal/biz/repo"
	"github.com/example/ragbot/internal/biz/usecase"
)

// Coordinator drives the trigger-response pipeline off the change feed.
// Per trigger: classify, claim, answer, publish, complete. Failures are
// contained to the trigger that raised them; the claim is the only
// serialization point, so distinct triggers run concurrently on a
// bounded worker pool.
type Coordinator struct {
	feed       repo.ChangeFeedRepo
	classifier *usecase.Classifier
	lock       *usecase.Lock
	responder  *usecase.Responder
	answering  *usecase.Answering
	seen       *usecase.SeenSet

	channelID  string
	maxContext int

	workers chan struct{}
	wg      sync.WaitGroup
	sub     repo.Subscription
}

// NewCoordinator creates a new coordinator
func NewCoordinator(
	feed repo.ChangeFeedRepo,
	classifier *usecase.Classifier,
	lock *usecase.Lock,
	responder *usecase.Responder,
	answering *usecase.Answering,
	seen *usecase.SeenSet,
	channelID string,
	maxContext int,
	workerCount int,
) *Coordinator {
	if workerCount <= 0 {
		workerCount = 4
	}
	return &Coordinator{
		feed:       feed,
		classifier: classifier,
		lock:       lock,
		responder:  responder,
		answering:  answering,
		seen:       seen,
		channelID:  channelID,
		maxContext: maxContext,
		workers:    make(chan struct{}, workerCount),
	}
}

// Start subscribes to the change feed and begins dispatching triggers.
// Only messages created from now on are observed.
func (c *Coordinator) Start(ctx context.Context) error {
	sub, err := c.feed.Subscribe(ctx, c.channelID, time.Now())
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	c.sub = sub

	fmt.Printf("[Coordinator] Watching channel %s\n", c.channelID)
	go c.loop(ctx)
	return nil
}

// Stop unsubscribes and waits for in-flight triggers to finish
func (c *Coordinator) Stop() {
	if c.sub != nil {
		c.sub.Unsubscribe()
	}
	c.wg.Wait()
	fmt.Println("[Coordinator] Stopped")
}

func (c *Coordinator) loop(ctx context.Context) {
	for ev := range c.sub.Events() {
		// Only additions can carry new triggers; the coordinator's own
		// lock writes come back as modifications
		if ev.Type != domain.EventAdded {
			continue
		}

		msg := ev.Message
		if !c.classifier.IsTrigger(&msg) {
			continue
		}

		// Local pre-filter only; the storage-backed claim below is the
		// authoritative duplicate guard
		if !c.seen.MarkSeen(msg.ID) {
			fmt.Printf("[Coordinator] Duplicate event ignored: %s\n", msg.ID)
			continue
		}

		select {
		case c.workers <- struct{}{}:
		case <-ctx.Done():
			return
		}

		c.wg.Add(1)
		go func(msg domain.Message) {
			defer c.wg.Done()
			defer func() { <-c.workers }()
			c.handle(ctx, msg)
		}(msg)
	}
}

func (c *Coordinator) handle(ctx context.Context, msg domain.Message) {
	result, err := c.lock.TryClaim(ctx, msg.ChannelID, msg.ID)
	if err != nil {
		fmt.Printf("[Coordinator] Claim failed for %s: %v\n", msg.ID, err)
		return
	}
	if result == domain.AlreadyClaimed {
		fmt.Printf("[Coordinator] %s already claimed elsewhere\n", msg.ID)
		return
	}

	query := c.classifier.ExtractQuery(msg.Content)
	fmt.Printf("[Coordinator] Handling trigger %s: %q\n", msg.ID, query)

	err = c.responder.SendBotResponse(ctx, msg.ChannelID, func(ctx context.Context) (string, error) {
		res, err := c.answering.Answer(ctx, query, c.maxContext, true)
		if err != nil {
			return "", err
		}
		return res.Answer, nil
	})
	if err != nil {
		// Nothing reached the user; leave the claim for the staleness
		// sweep so the trigger can be answered after recovery
		fmt.Printf("[Coordinator] Publish failed for %s, leaving claim for sweep: %v\n", msg.ID, err)
		return
	}

	if err := c.lock.Complete(ctx, msg.ChannelID, msg.ID); err != nil {
		fmt.Printf("[Coordinator] Complete failed for %s: %v\n", msg.ID, err)
	}
}
