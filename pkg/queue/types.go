// Package queue provides the database-backed request queue and the
// worker pool that drains it.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/ai-council/councild/pkg/config"
	"github.com/ai-council/councild/pkg/models"
	"github.com/ai-council/councild/pkg/orchestrator"
)

// Sentinel errors for queue operations.
var (
	// ErrNoRequestsAvailable indicates no pending requests are in the queue.
	ErrNoRequestsAvailable = errors.New("no requests available")

	// ErrAtCapacity indicates the global concurrent request limit has been
	// reached.
	ErrAtCapacity = errors.New("at capacity")
)

// RequestStore is the persistence surface workers need: claiming,
// heartbeating, cancellation checks, and terminal updates. Implemented
// by services.RequestService.
type RequestStore interface {
	ClaimNextPending(ctx context.Context, podID string) (*models.Request, error)
	Heartbeat(ctx context.Context, requestID, podID string) error
	IsCancelling(ctx context.Context, requestID string) (bool, error)
	CountInProgress(ctx context.Context) (int, error)
	CountPending(ctx context.Context) (int, error)
	Finish(ctx context.Context, requestID string, status models.RequestStatus, actualCost float64, errorMessage *string) error
	RecordAnalysis(ctx context.Context, requestID, intent string, complexity config.Complexity) error
	RecoverOrphans(ctx context.Context, threshold time.Duration) (int, error)
	ReleaseOwned(ctx context.Context, podID string) (int, error)
}

// OutcomeStore persists what a finished pipeline run produced.
// Implemented by services.OutcomeService.
type OutcomeStore interface {
	Save(ctx context.Context, requestID string, outcome *orchestrator.Outcome) error
}

// Processor runs one claimed request through the orchestration
// pipeline. Implemented by orchestrator.Pipeline.
type Processor interface {
	Process(ctx context.Context, req *models.Request) (*orchestrator.Outcome, error)
}

// PoolHealth contains health information for the entire worker pool.
type PoolHealth struct {
	IsHealthy        bool           `json:"is_healthy"`
	DBReachable      bool           `json:"db_reachable"`
	DBError          string         `json:"db_error,omitempty"`
	PodID            string         `json:"pod_id"`
	ActiveWorkers    int            `json:"active_workers"`
	TotalWorkers     int            `json:"total_workers"`
	ActiveRequests   int            `json:"active_requests"`
	MaxConcurrent    int            `json:"max_concurrent"`
	QueueDepth       int            `json:"queue_depth"`
	WorkerStats      []WorkerHealth `json:"worker_stats"`
	LastOrphanScan   time.Time      `json:"last_orphan_scan"`
	OrphansRecovered int            `json:"orphans_recovered"`
}

// WorkerHealth contains health information for a single worker.
type WorkerHealth struct {
	ID                string    `json:"id"`
	Status            string    `json:"status"` // "idle" or "working"
	CurrentRequestID  string    `json:"current_request_id,omitempty"`
	RequestsProcessed int       `json:"requests_processed"`
	LastActivity      time.Time `json:"last_activity"`
}
