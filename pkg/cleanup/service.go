// Package cleanup provides data retention enforcement.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/ai-council/councild/pkg/config"
)

// RequestPurger deletes terminal requests past the retention window.
// Implemented by services.RequestService.
type RequestPurger interface {
	PurgeOld(ctx context.Context, retentionDays int) (int, error)
}

// Service periodically purges terminal requests older than the
// retention window; dependent rows cascade. Idempotent and safe to run
// from multiple pods.
type Service struct {
	config *config.RetentionConfig
	purger RequestPurger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a new cleanup service.
func NewService(cfg *config.RetentionConfig, purger RequestPurger) *Service {
	return &Service{
		config: cfg,
		purger: purger,
	}
}

// Start launches the background cleanup loop.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("Cleanup service started",
		"request_retention_days", s.config.RequestRetentionDays,
		"interval", s.config.CleanupInterval)
}

// Stop signals the cleanup loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("Cleanup service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.purge(ctx)

	ticker := time.NewTicker(s.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.purge(ctx)
		}
	}
}

func (s *Service) purge(ctx context.Context) {
	count, err := s.purger.PurgeOld(ctx, s.config.RequestRetentionDays)
	if err != nil {
		slog.Error("Retention: request purge failed", "error", err)
		return
	}
	if count > 0 {
		slog.Info("Retention: purged old requests", "count", count)
	}
}
