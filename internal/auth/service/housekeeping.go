package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/inkwellhq/inkwell/internal/auth/session"
	"github.com/inkwellhq/inkwell/internal/auth/store"
)

// DefaultEventRetention is how long security events are kept before the
// housekeeping loop prunes them.
const DefaultEventRetention = 90 * 24 * time.Hour

// sweeper is implemented by session stores that need an explicit pass to
// drop expired entries (the in-memory driver; Redis expires keys itself).
type sweeper interface {
	Sweep()
}

// HousekeepingService periodically cleans up expired database records to
// prevent unbounded growth of security events, remember tokens, and pending
// two-factor challenges.
type HousekeepingService struct {
	Store          store.Store
	Sessions       session.Store
	Logger         *slog.Logger
	Interval       time.Duration
	EventRetention time.Duration

	// Internal channels for lifecycle management
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a new housekeeping service with the given
// interval. If interval is 0 or negative, defaults to 1 hour.
func NewHousekeepingService(st store.Store, sessions session.Store, logger *slog.Logger, interval, retention time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 1 * time.Hour
	}
	if retention <= 0 {
		retention = DefaultEventRetention
	}

	return &HousekeepingService{
		Store:          st,
		Sessions:       sessions,
		Logger:         logger,
		Interval:       interval,
		EventRetention: retention,
		stopCh:         make(chan struct{}),
		doneCh:         make(chan struct{}),
	}
}

// Start begins the background worker that periodically runs cleanup.
// This is non-blocking and should be called after the database is ready.
// Call Stop() to gracefully shutdown the worker.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop gracefully shuts down the background worker.
// Blocks until the worker has finished any in-progress cleanup.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	// Run cleanup immediately on startup
	s.cleanup()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopCh:
			return
		}
	}
}

// cleanup performs the actual deletion of expired records.
// Each deletion is independent - failures in one won't stop the others.
func (s *HousekeepingService) cleanup() {
	ctx := context.Background()
	s.Logger.Debug("starting housekeeping cleanup")

	if err := s.Store.RememberTokens().DeleteExpired(ctx); err != nil {
		s.Logger.Error("failed to delete expired remember tokens", "error", err)
	}

	if err := s.Store.Challenges().DeleteExpiredChallenges(ctx); err != nil {
		s.Logger.Error("failed to delete expired two-factor challenges", "error", err)
	}

	cutoff := time.Now().UTC().Add(-s.EventRetention)
	if err := s.Store.SecurityEvents().DeleteOlderThan(ctx, cutoff); err != nil {
		s.Logger.Error("failed to prune security events", "error", err)
	}

	if sw, ok := s.Sessions.(sweeper); ok {
		sw.Sweep()
	}

	s.Logger.Debug("housekeeping cleanup completed")
}
