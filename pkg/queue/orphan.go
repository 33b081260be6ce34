package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// orphanState tracks orphan recovery metrics (thread-safe).
type orphanState struct {
	mu               sync.Mutex
	lastOrphanScan   time.Time
	orphansRecovered int
}

// runOrphanRecovery periodically returns requests with stale heartbeats
// to the pending queue so another replica can pick them up. All pods
// run this independently; the update is idempotent.
func (p *WorkerPool) runOrphanRecovery(ctx context.Context) {
	ticker := time.NewTicker(p.config.OrphanDetectionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			recovered, err := p.store.RecoverOrphans(ctx, p.config.OrphanThreshold)
			if err != nil {
				slog.Error("Orphan recovery failed", "error", err)
				continue
			}
			p.orphans.mu.Lock()
			p.orphans.lastOrphanScan = time.Now()
			p.orphans.orphansRecovered += recovered
			p.orphans.mu.Unlock()
		}
	}
}
