package service

import (
	"context"
	"time"

	"github.com/timmy/stickergen/internal/logger"
)

// StaleJobSweeper fails jobs that have sat in pending or processing for too long,
// e.g. because the process running their worker died.
type StaleJobSweeper struct {
	jobs       JobStore
	staleAfter time.Duration
	interval   time.Duration
	now        func() time.Time
}

func NewStaleJobSweeper(jobs JobStore, staleAfter, interval time.Duration) *StaleJobSweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &StaleJobSweeper{
		jobs:       jobs,
		staleAfter: staleAfter,
		interval:   interval,
		now:        time.Now,
	}
}

// Enabled reports whether sweeping is configured.
func (s *StaleJobSweeper) Enabled() bool {
	return s.staleAfter > 0
}

// SweepOnce fails every job not updated within staleAfter and returns how many were affected.
func (s *StaleJobSweeper) SweepOnce(ctx context.Context) (int64, error) {
	if !s.Enabled() {
		return 0, nil
	}
	n, err := s.jobs.FailStale(ctx, s.now().Add(-s.staleAfter), MsgStaleJob)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		logger.With(logger.Fields{}).WithCount(int(n)).Warn(ctx, "Marked stale jobs as failed")
	}
	return n, nil
}

// Run sweeps every interval until ctx is cancelled.
func (s *StaleJobSweeper) Run(ctx context.Context) {
	if !s.Enabled() {
		return
	}
	ctx = logger.SetComponent(ctx, "sweeper")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
			logger.CtxError(ctx, "Stale job sweep failed: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
