package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/ai-council/councild/pkg/config"
	"github.com/ai-council/councild/pkg/models"
	"github.com/ai-council/councild/pkg/orchestrator"
	"github.com/ai-council/councild/pkg/services"
)

// WorkerStatus represents the current state of a worker.
type WorkerStatus string

// Worker status constants.
const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusWorking WorkerStatus = "working"
)

// Worker is a single queue worker that polls for and processes requests.
type Worker struct {
	id        string
	podID     string
	store     RequestStore
	outcomes  OutcomeStore
	processor Processor
	config    *config.QueueConfig
	pool      RequestRegistry
	stopCh    chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup

	// Health tracking
	mu                sync.RWMutex
	status            WorkerStatus
	currentRequestID  string
	requestsProcessed int
	lastActivity      time.Time
}

// RequestRegistry is the subset of WorkerPool used by Worker for
// cancel-function registration.
type RequestRegistry interface {
	RegisterRequest(requestID string, cancel context.CancelFunc)
	UnregisterRequest(requestID string)
}

// NewWorker creates a new queue worker.
func NewWorker(id, podID string, store RequestStore, outcomes OutcomeStore, processor Processor, cfg *config.QueueConfig, pool RequestRegistry) *Worker {
	return &Worker{
		id:           id,
		podID:        podID,
		store:        store,
		outcomes:     outcomes,
		processor:    processor,
		config:       cfg,
		pool:         pool,
		stopCh:       make(chan struct{}),
		status:       WorkerStatusIdle,
		lastActivity: time.Now(),
	}
}

// Start begins the worker polling loop in a goroutine.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

// Stop signals the worker to stop and waits for it to finish.
// It is safe to call Stop multiple times.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
}

// Health returns the current worker health status.
func (w *Worker) Health() WorkerHealth {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return WorkerHealth{
		ID:                w.id,
		Status:            string(w.status),
		CurrentRequestID:  w.currentRequestID,
		RequestsProcessed: w.requestsProcessed,
		LastActivity:      w.lastActivity,
	}
}

// run is the main worker loop.
func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	log := slog.With("worker_id", w.id, "pod_id", w.podID)
	log.Info("Worker started")

	for {
		select {
		case <-w.stopCh:
			log.Info("Worker shutting down")
			return
		case <-ctx.Done():
			log.Info("Context cancelled, worker shutting down")
			return
		default:
			if err := w.pollAndProcess(ctx); err != nil {
				if errors.Is(err, ErrNoRequestsAvailable) || errors.Is(err, ErrAtCapacity) {
					w.sleep(w.pollInterval())
					continue
				}
				log.Error("Error processing request", "error", err)
				w.sleep(time.Second) // Brief backoff on error
			}
		}
	}
}

// sleep waits for the given duration or until stop is signalled.
func (w *Worker) sleep(d time.Duration) {
	select {
	case <-w.stopCh:
	case <-time.After(d):
	}
}

// pollAndProcess checks capacity, claims a request, and processes it.
func (w *Worker) pollAndProcess(ctx context.Context) error {
	// Global capacity check is best-effort; racy with concurrent
	// workers but bounded by WorkerCount and mitigated by poll jitter.
	activeCount, err := w.store.CountInProgress(ctx)
	if err != nil {
		return fmt.Errorf("checking active requests: %w", err)
	}
	if activeCount >= w.config.MaxConcurrentRequests {
		return ErrAtCapacity
	}

	req, err := w.store.ClaimNextPending(ctx, w.podID)
	if errors.Is(err, services.ErrNotFound) {
		return ErrNoRequestsAvailable
	}
	if err != nil {
		return err
	}

	log := slog.With("request_id", req.ID, "worker_id", w.id)
	log.Info("Request claimed", "mode", req.Mode)

	w.setStatus(WorkerStatusWorking, req.ID)
	defer w.setStatus(WorkerStatusIdle, "")

	reqCtx, cancelRequest := context.WithTimeout(ctx, w.config.RequestTimeout)
	defer cancelRequest()

	// Register the cancel function so API cancellation reaches a request
	// running on this pod directly.
	w.pool.RegisterRequest(req.ID, cancelRequest)
	defer w.pool.UnregisterRequest(req.ID)

	heartbeatCtx, cancelHeartbeat := context.WithCancel(reqCtx)
	defer cancelHeartbeat()
	go w.runHeartbeat(heartbeatCtx, req.ID, cancelRequest)

	outcome, procErr := w.processor.Process(reqCtx, req)

	cancelHeartbeat()

	// Terminal updates use a background context; reqCtx may be cancelled.
	if err := w.finishRequest(context.Background(), req, outcome, procErr, reqCtx.Err()); err != nil {
		log.Error("Failed to record terminal status", "error", err)
		return err
	}

	w.mu.Lock()
	w.requestsProcessed++
	w.mu.Unlock()

	log.Info("Request processing complete", "status", req.Status)
	return nil
}

// finishRequest persists the outcome (on success) and moves the request
// to its terminal status. The request's Status field is updated to
// reflect what was written.
func (w *Worker) finishRequest(ctx context.Context, req *models.Request, outcome *orchestrator.Outcome, procErr, ctxErr error) error {
	if req.Intent != "" {
		if err := w.store.RecordAnalysis(ctx, req.ID, req.Intent, req.Complexity); err != nil {
			slog.Warn("Failed to record analysis", "request_id", req.ID, "error", err)
		}
	}

	if procErr == nil {
		if err := w.outcomes.Save(ctx, req.ID, outcome); err != nil {
			msg := fmt.Sprintf("failed to persist outcome: %v", err)
			req.Status = models.StatusFailed
			return w.store.Finish(ctx, req.ID, models.StatusFailed, req.ActualCost, &msg)
		}
		req.Status = models.StatusCompleted
		return w.store.Finish(ctx, req.ID, models.StatusCompleted, req.ActualCost, nil)
	}

	status := models.StatusFailed
	msg := procErr.Error()
	oerr, ok := orchestrator.AsError(procErr)
	switch {
	case ok && oerr.Code == orchestrator.CodeCancelled:
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			status = models.StatusTimedOut
			msg = fmt.Sprintf("request timed out after %v", w.config.RequestTimeout)
		} else {
			status = models.StatusCancelled
		}
	case errors.Is(ctxErr, context.DeadlineExceeded):
		status = models.StatusTimedOut
		msg = fmt.Sprintf("request timed out after %v", w.config.RequestTimeout)
	}

	req.Status = status
	return w.store.Finish(ctx, req.ID, status, req.ActualCost, &msg)
}

// runHeartbeat periodically refreshes last_interaction_at for orphan
// detection and polls for API-requested cancellation, which may have
// been set through any replica.
func (w *Worker) runHeartbeat(ctx context.Context, requestID string, cancelRequest context.CancelFunc) {
	ticker := time.NewTicker(w.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.store.Heartbeat(ctx, requestID, w.podID); err != nil {
				slog.Warn("Heartbeat update failed", "request_id", requestID, "error", err)
			}
			cancelling, err := w.store.IsCancelling(ctx, requestID)
			if err != nil {
				slog.Warn("Cancellation check failed", "request_id", requestID, "error", err)
				continue
			}
			if cancelling {
				slog.Info("Cancellation detected, stopping request", "request_id", requestID)
				cancelRequest()
				return
			}
		}
	}
}

// pollInterval returns the poll duration with jitter.
func (w *Worker) pollInterval() time.Duration {
	base := w.config.PollInterval
	jitter := w.config.PollIntervalJitter
	if jitter <= 0 {
		return base
	}
	// Range: [base - jitter, base + jitter]
	offset := time.Duration(rand.Int63n(int64(2 * jitter)))
	return base - jitter + offset
}

// setStatus updates the worker's health tracking state.
func (w *Worker) setStatus(status WorkerStatus, requestID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = status
	w.currentRequestID = requestID
	w.lastActivity = time.Now()
}
