package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/example/ragbot/internal/biz/usecase"
)

// Sweeper periodically releases claims abandoned by crashed handlers.
// A claim older than the staleness threshold is returned to the
// unclaimed state so the trigger becomes visible again.
type Sweeper struct {
	lock      *usecase.Lock
	channelID string
	threshold time.Duration
	interval  time.Duration

	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewSweeper creates a new sweeper
func NewSweeper(lock *usecase.Lock, channelID string, threshold, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = threshold / 2
	}
	if interval < 30*time.Second {
		interval = 30 * time.Second
	}
	return &Sweeper{
		lock:      lock,
		channelID: channelID,
		threshold: threshold,
		interval:  interval,
		stopCh:    make(chan struct{}),
	}
}

// Start starts the sweep loop
func (s *Sweeper) Start(ctx context.Context) {
	if s.running {
		return
	}
	s.running = true
	s.wg.Add(1)
	go s.loop(ctx)
	fmt.Printf("[Sweeper] Started with interval %v, threshold %v\n", s.interval, s.threshold)
}

// Stop stops the sweep loop
func (s *Sweeper) Stop() {
	if !s.running {
		return
	}
	s.running = false
	close(s.stopCh)
	s.wg.Wait()
	fmt.Println("[Sweeper] Stopped")
}

func (s *Sweeper) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.SweepOnce(ctx)
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// SweepOnce runs a single reclaim pass
func (s *Sweeper) SweepOnce(ctx context.Context) {
	n, err := s.lock.ReclaimStale(ctx, s.channelID, s.threshold)
	if err != nil {
		fmt.Printf("[Sweeper] Sweep failed: %v\n", err)
		return
	}
	if n > 0 {
		fmt.Printf("[Sweeper] Released %d stale claims\n", n)
	}
}
