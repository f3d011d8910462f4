package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/tokenbridge/internal/bridge/store"
)

// HousekeepingService periodically prunes the exchange audit log so it does
// not grow without bound.
type HousekeepingService struct {
	Store     store.Store
	Logger    *slog.Logger
	Interval  time.Duration
	Retention time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a housekeeping service. Interval defaults to
// one hour and retention to 30 days.
func NewHousekeepingService(st store.Store, logger *slog.Logger, interval, retention time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = time.Hour
	}
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}

	return &HousekeepingService{
		Store:     st,
		Logger:    logger,
		Interval:  interval,
		Retention: retention,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start runs cleanup now and then on every tick until Stop is called.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval, "retention", s.Retention)
}

// Stop shuts down the worker and waits for an in-progress cleanup.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.Cleanup(context.Background())

	for {
		select {
		case <-ticker.C:
			s.Cleanup(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// Cleanup deletes audit rows older than the retention window.
func (s *HousekeepingService) Cleanup(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-s.Retention)

	deleted, err := s.Store.Exchanges().DeleteExchangesBefore(ctx, cutoff)
	if err != nil {
		s.Logger.Error("failed to prune exchange audit log", "error", err)
		return
	}

	s.Logger.Info("housekeeping cleanup completed", "deleted_exchanges", deleted, "cutoff", cutoff)
}
