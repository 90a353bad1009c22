package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"collabrag/internal/logger"
)

type PendingReindexer interface {
	ReindexPending(ctx context.Context, olderThan time.Duration, limit int) (int, error)
}

// Sweeper periodically reindexes files left pending longer than grace.
type Sweeper struct {
	reindexer PendingReindexer
	interval  time.Duration
	grace     time.Duration
	batch     int
	log       *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewSweeper(reindexer PendingReindexer, interval, grace time.Duration, batch int, log *slog.Logger) *Sweeper {
	return &Sweeper{
		reindexer: reindexer,
		interval:  interval,
		grace:     grace,
		batch:     batch,
		log:       logger.OrDiscard(log),
	}
}

// Start is a no-op when the interval is not positive.
func (s *Sweeper) Start(ctx context.Context) {
	if s.cancel != nil || s.interval <= 0 {
		return
	}
	sweepCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-ticker.C:
				s.sweep(sweepCtx)
			}
		}
	}()
}

func (s *Sweeper) sweep(ctx context.Context) {
	n, err := s.reindexer.ReindexPending(ctx, s.grace, s.batch)
	if err != nil {
		s.log.Warn("pending sweep finished with errors", "reindexed", n, "error", err)
		return
	}
	if n > 0 {
		s.log.Info("pending sweep reindexed files", "reindexed", n)
	}
}

func (s *Sweeper) Close() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}
