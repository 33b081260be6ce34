package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ai-council/councild/pkg/config"
)

// WorkerPool manages a pool of queue workers.
type WorkerPool struct {
	podID     string
	store     RequestStore
	outcomes  OutcomeStore
	processor Processor
	config    *config.QueueConfig
	workers   []*Worker
	stopCh    chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup

	// Request cancel registry: request_id -> cancel function
	activeRequests map[string]context.CancelFunc
	mu             sync.RWMutex
	started        bool

	// Orphan detection state
	orphans orphanState
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(podID string, store RequestStore, outcomes OutcomeStore, processor Processor, cfg *config.QueueConfig) *WorkerPool {
	return &WorkerPool{
		podID:          podID,
		store:          store,
		outcomes:       outcomes,
		processor:      processor,
		config:         cfg,
		workers:        make([]*Worker, 0, cfg.WorkerCount),
		stopCh:         make(chan struct{}),
		activeRequests: make(map[string]context.CancelFunc),
	}
}

// Start releases requests left over from a previous run of this pod,
// then spawns the worker goroutines and the orphan recovery loop.
// Safe to call multiple times; subsequent calls are no-ops.
func (p *WorkerPool) Start(ctx context.Context) error {
	if p.started {
		slog.Warn("Worker pool already started, ignoring duplicate Start call", "pod_id", p.podID)
		return nil
	}
	p.started = true

	if _, err := p.store.ReleaseOwned(ctx, p.podID); err != nil {
		return fmt.Errorf("startup orphan release failed: %w", err)
	}

	slog.Info("Starting worker pool", "pod_id", p.podID, "worker_count", p.config.WorkerCount)

	for i := 0; i < p.config.WorkerCount; i++ {
		workerID := fmt.Sprintf("%s-worker-%d", p.podID, i)
		worker := NewWorker(workerID, p.podID, p.store, p.outcomes, p.processor, p.config, p)
		p.workers = append(p.workers, worker)
		worker.Start(ctx)
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.runOrphanRecovery(ctx)
	}()

	slog.Info("Worker pool started")
	return nil
}

// Stop signals all workers to stop and waits for them to finish.
// Workers finish their current requests before exiting.
func (p *WorkerPool) Stop() {
	slog.Info("Stopping worker pool gracefully")

	active := p.getActiveRequestIDs()
	if len(active) > 0 {
		slog.Info("Waiting for active requests to complete",
			"count", len(active),
			"request_ids", active)
	}

	for _, worker := range p.workers {
		worker.Stop()
	}

	p.stopOnce.Do(func() { close(p.stopCh) })
	p.wg.Wait()

	slog.Info("Worker pool stopped gracefully")
}

// RegisterRequest stores a cancel function for manual cancellation.
func (p *WorkerPool) RegisterRequest(requestID string, cancel context.CancelFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.activeRequests[requestID] = cancel
}

// UnregisterRequest removes the cancel function when processing ends.
func (p *WorkerPool) UnregisterRequest(requestID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.activeRequests, requestID)
}

// CancelRequest triggers context cancellation for a request on this pod.
// Returns true if the request was found and cancelled here. Requests
// running on other replicas are reached through the cancelling status,
// which their worker's heartbeat loop polls.
func (p *WorkerPool) CancelRequest(requestID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if cancel, ok := p.activeRequests[requestID]; ok {
		cancel()
		return true
	}
	return false
}

// Health returns the current health status of the pool.
func (p *WorkerPool) Health() *PoolHealth {
	ctx := context.Background()

	queueDepth, errQ := p.store.CountPending(ctx)
	if errQ != nil {
		slog.Error("Failed to query queue depth for health check",
			"pod_id", p.podID, "error", errQ)
	}

	activeRequests, errA := p.store.CountInProgress(ctx)
	if errA != nil {
		slog.Error("Failed to query active requests for health check",
			"pod_id", p.podID, "error", errA)
	}

	workerStats := make([]WorkerHealth, len(p.workers))
	activeWorkers := 0
	for i, worker := range p.workers {
		stats := worker.Health()
		workerStats[i] = stats
		if stats.Status == string(WorkerStatusWorking) {
			activeWorkers++
		}
	}

	// DB errors affect health status: if we can't reach the DB, we're
	// not healthy.
	dbHealthy := errQ == nil && errA == nil
	isHealthy := len(p.workers) > 0 && activeRequests <= p.config.MaxConcurrentRequests && dbHealthy

	p.orphans.mu.Lock()
	lastOrphanScan := p.orphans.lastOrphanScan
	orphansRecovered := p.orphans.orphansRecovered
	p.orphans.mu.Unlock()

	var dbError string
	if !dbHealthy {
		if errQ != nil {
			dbError = fmt.Sprintf("queue depth query failed: %v", errQ)
		} else {
			dbError = fmt.Sprintf("active requests query failed: %v", errA)
		}
	}

	return &PoolHealth{
		IsHealthy:        isHealthy,
		DBReachable:      dbHealthy,
		DBError:          dbError,
		PodID:            p.podID,
		ActiveWorkers:    activeWorkers,
		TotalWorkers:     len(p.workers),
		ActiveRequests:   activeRequests,
		MaxConcurrent:    p.config.MaxConcurrentRequests,
		QueueDepth:       queueDepth,
		WorkerStats:      workerStats,
		LastOrphanScan:   lastOrphanScan,
		OrphansRecovered: orphansRecovered,
	}
}

// getActiveRequestIDs returns IDs of currently processing requests (for logging).
func (p *WorkerPool) getActiveRequestIDs() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	requests := make([]string, 0, len(p.activeRequests))
	for id := range p.activeRequests {
		requests = append(requests, id)
	}
	return requests
}
