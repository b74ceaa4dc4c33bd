package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/harborview-digital/showcase/internal/auth/store"
)

// HousekeepingService periodically prunes dead session rows and expired
// verification/reset tokens so the auth tables never grow unbounded. The
// revocation blacklist needs no sweeping: its entries carry their own TTL.
type HousekeepingService struct {
	Store    store.Store
	Logger   *slog.Logger
	Interval time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates the background cleaner. A non-positive
// interval defaults to 1 hour.
func NewHousekeepingService(st store.Store, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 1 * time.Hour
	}
	return &HousekeepingService{
		Store:    st,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the worker. Non-blocking; call Stop to shut down.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping started", "interval", s.Interval)
}

// Stop shuts the worker down, blocking until any in-progress sweep ends.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep runs one cleanup round. Errors are logged and the next tick tries
// again; housekeeping never takes the service down.
func (s *HousekeepingService) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	now := time.Now()

	if err := s.Store.Sessions().DeleteExpired(ctx, now); err != nil {
		s.Logger.Error("expired session sweep failed", slog.Any("error", err))
	}
	if err := s.Store.Accounts().ClearExpiredTokens(ctx, now); err != nil {
		s.Logger.Error("expired token sweep failed", slog.Any("error", err))
	}
}
