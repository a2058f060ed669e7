package service

import (
	"context"
	"time"

	"github.com/pharmaflow/pharmacy-backend/pkg/logger"
)

// SweepScheduler runs the expiry sweep and the archival pass periodically.
// Both passes are idempotent, so overlapping runs from several service
// instances are harmless.
type SweepScheduler struct {
	sweeps   *SweepService
	interval time.Duration
	logger   *logger.Logger
	cancel   context.CancelFunc
}

// NewSweepScheduler creates a new sweep scheduler
func NewSweepScheduler(sweeps *SweepService, interval time.Duration, log *logger.Logger) *SweepScheduler {
	return &SweepScheduler{
		sweeps:   sweeps,
		interval: interval,
		logger:   log,
	}
}

// Start starts the scheduler in a background goroutine. The first cycle
// runs immediately.
func (s *SweepScheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	go func() {
		s.logger.Info().Dur("interval", s.interval).Msg("sweep scheduler started")

		s.runCycle(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info().Msg("sweep scheduler stopped")
				return
			case <-ticker.C:
				s.runCycle(ctx)
			}
		}
	}()
}

// Stop stops the scheduler goroutine
func (s *SweepScheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *SweepScheduler) runCycle(ctx context.Context) {
	start := time.Now()
	today := start.UTC()

	if _, err := s.sweeps.SweepExpiring(ctx, today); err != nil {
		s.logger.Error().Err(err).Msg("scheduled expiry sweep failed")
	}

	if _, err := s.sweeps.ArchiveExhausted(ctx, today); err != nil {
		s.logger.Error().Err(err).Msg("scheduled archival pass failed")
	}

	s.logger.Info().Dur("duration", time.Since(start)).Msg("sweep cycle completed")
}
