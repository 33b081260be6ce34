// Package services contains the persistence-backed application services
// sitting between the HTTP layer and the orchestration pipeline.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ai-council/councild/pkg/config"
	"github.com/ai-council/councild/pkg/cost"
	"github.com/ai-council/councild/pkg/database"
	"github.com/ai-council/councild/pkg/models"
	"github.com/ai-council/councild/pkg/orchestrator"
	"github.com/ai-council/councild/pkg/ratelimit"
	"github.com/ai-council/councild/pkg/registry"
)

const (
	minPromptLength = 1
	maxPromptLength = 5000

	defaultPageSize = 10
	maxPageSize     = 20
)

// RequestService manages the request lifecycle: submission through the
// quota gate, status reads, history, cancellation, and the worker-pool
// claim/heartbeat protocol.
type RequestService struct {
	db        *database.Client
	limiter   *ratelimit.Limiter
	estimator *cost.Estimator
	registry  *registry.Registry
}

// NewRequestService creates a new RequestService.
func NewRequestService(db *database.Client, limiter *ratelimit.Limiter, estimator *cost.Estimator, reg *registry.Registry) *RequestService {
	return &RequestService{db: db, limiter: limiter, estimator: estimator, registry: reg}
}

// Submit validates the request, enforces the rate limit, estimates its
// cost, and enqueues it as pending. Fails fast with NoProviders when the
// registry is empty.
func (s *RequestService) Submit(ctx context.Context, principal string, role config.Role, submit models.SubmitRequest) (*models.Request, error) {
	if n := len(submit.Prompt); n < minPromptLength || n > maxPromptLength {
		return nil, NewValidationError("prompt",
			fmt.Sprintf("length must be between %d and %d characters", minPromptLength, maxPromptLength))
	}
	mode := submit.Mode
	if mode == "" {
		mode = config.ModeBalanced
	}
	if !mode.IsValid() {
		return nil, NewValidationError("mode", fmt.Sprintf("unknown execution mode %q", mode))
	}

	if len(s.registry.All()) == 0 {
		return nil, orchestrator.NewError(orchestrator.CodeNoProviders, "no providers available")
	}

	decision, err := s.limiter.Check(ctx, principal, role)
	if err != nil {
		return nil, fmt.Errorf("failed to check rate limit: %w", err)
	}
	if !decision.Allowed {
		limited := orchestrator.NewError(orchestrator.CodeRateLimited,
			fmt.Sprintf("rate limit of %d requests per hour exceeded", decision.Limit))
		limited.RetryAfter = decision.RetryAfter
		return nil, limited
	}

	estimate := s.estimator.Estimate(ctx, len(submit.Prompt), mode)

	req := &models.Request{
		ID:            uuid.NewString(),
		Principal:     principal,
		Role:          role,
		Prompt:        submit.Prompt,
		Mode:          mode,
		Status:        models.StatusPending,
		EstimatedCost: estimate.EstimatedCost,
		CreatedAt:     time.Now(),
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO requests (request_id, principal, role, prompt, mode, status, estimated_cost, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		req.ID, req.Principal, req.Role, req.Prompt, req.Mode, req.Status, req.EstimatedCost, req.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	slog.Info("Request submitted",
		"request_id", req.ID, "principal", principal, "mode", mode,
		"estimated_cost", req.EstimatedCost)
	return req, nil
}

// Get returns a request by id.
func (s *RequestService) Get(ctx context.Context, requestID string) (*models.Request, error) {
	var req models.Request
	err := s.db.GetContext(ctx, &req, `SELECT * FROM requests WHERE request_id = $1`, requestID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get request: %w", err)
	}
	return &req, nil
}

// History returns the principal's requests, newest first, paginated.
func (s *RequestService) History(ctx context.Context, filters models.RequestFilters) (*models.RequestListResponse, error) {
	page := filters.Page
	if page < 1 {
		page = 1
	}
	pageSize := filters.PageSize
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	where, args := historyFilter(filters)

	var total int
	if err := s.db.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM requests`+where, args...); err != nil {
		return nil, fmt.Errorf("failed to count requests: %w", err)
	}

	query := fmt.Sprintf(`SELECT * FROM requests%s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		where, pageSize, (page-1)*pageSize)
	requests := []*models.Request{}
	if err := s.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}

	return &models.RequestListResponse{
		Requests:   requests,
		TotalCount: total,
		Page:       page,
		PageSize:   pageSize,
	}, nil
}

// historyFilter builds the WHERE clause for History. Exported logic is
// kept SQL-free enough to unit test without a database.
func historyFilter(filters models.RequestFilters) (string, []any) {
	var clauses []string
	var args []any
	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if filters.Principal != "" {
		add("principal = $%d", filters.Principal)
	}
	if filters.Mode != "" {
		add("mode = $%d", filters.Mode)
	}
	if filters.Status != "" {
		add("status = $%d", filters.Status)
	}
	if filters.PromptLike != "" {
		add("prompt ILIKE $%d", "%"+filters.PromptLike+"%")
	}
	if filters.CreatedAfter != nil {
		add("created_at >= $%d", *filters.CreatedAfter)
	}
	if filters.CreatedBefore != nil {
		add("created_at <= $%d", *filters.CreatedBefore)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// Cancel requests cancellation. Pending requests cancel immediately;
// in-flight ones move to cancelling and are stopped by their worker.
func (s *RequestService) Cancel(ctx context.Context, requestID string) (*models.Request, error) {
	req, err := s.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}

	switch req.Status {
	case models.StatusPending:
		_, err = s.db.ExecContext(ctx, `
			UPDATE requests SET status = $1, completed_at = NOW()
			WHERE request_id = $2 AND status = $3`,
			models.StatusCancelled, requestID, models.StatusPending)
	case models.StatusInProgress:
		_, err = s.db.ExecContext(ctx, `
			UPDATE requests SET status = $1
			WHERE request_id = $2 AND status = $3`,
			models.StatusCancelling, requestID, models.StatusInProgress)
	case models.StatusCancelling:
		return req, nil
	default:
		return nil, ErrNotCancellable
	}
	if err != nil {
		return nil, fmt.Errorf("failed to cancel request: %w", err)
	}

	slog.Info("Request cancellation requested", "request_id", requestID)
	return s.Get(ctx, requestID)
}

// ClaimNextPending atomically claims the oldest pending request for a
// worker. FOR UPDATE SKIP LOCKED keeps concurrent workers and replicas
// from claiming the same row. Returns ErrNotFound when the queue is
// empty.
func (s *RequestService) ClaimNextPending(ctx context.Context, podID string) (*models.Request, error) {
	var req models.Request
	err := s.db.GetContext(ctx, &req, `
		UPDATE requests
		SET status = $1, started_at = NOW(), pod_id = $2, last_interaction_at = NOW()
		WHERE request_id = (
			SELECT request_id FROM requests
			WHERE status = $3
			ORDER BY created_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING *`,
		models.StatusInProgress, podID, models.StatusPending)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim pending request: %w", err)
	}
	return &req, nil
}

// Heartbeat refreshes the claim on an in-flight request.
func (s *RequestService) Heartbeat(ctx context.Context, requestID, podID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE requests SET last_interaction_at = NOW()
		WHERE request_id = $1 AND pod_id = $2`,
		requestID, podID)
	if err != nil {
		return fmt.Errorf("failed to heartbeat request: %w", err)
	}
	return nil
}

// IsCancelling reports whether cancellation was requested for an
// in-flight request.
func (s *RequestService) IsCancelling(ctx context.Context, requestID string) (bool, error) {
	var status models.RequestStatus
	err := s.db.GetContext(ctx, &status,
		`SELECT status FROM requests WHERE request_id = $1`, requestID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("failed to read request status: %w", err)
	}
	return status == models.StatusCancelling, nil
}

// CountInProgress counts requests currently being processed across all
// replicas, for the global concurrency cap.
func (s *RequestService) CountInProgress(ctx context.Context) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `
		SELECT COUNT(*) FROM requests WHERE status IN ($1, $2)`,
		models.StatusInProgress, models.StatusCancelling)
	if err != nil {
		return 0, fmt.Errorf("failed to count in-progress requests: %w", err)
	}
	return n, nil
}

// CountPending returns the queue depth.
func (s *RequestService) CountPending(ctx context.Context) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM requests WHERE status = $1`, models.StatusPending)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending requests: %w", err)
	}
	return n, nil
}

// ReleaseOwned returns this pod's in-flight requests to the pending
// queue. Called once at startup so work lost in a crash is retried
// without waiting for the orphan threshold.
func (s *RequestService) ReleaseOwned(ctx context.Context, podID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE requests
		SET status = $1, pod_id = NULL, started_at = NULL, last_interaction_at = NULL
		WHERE pod_id = $2 AND status IN ($3, $4)`,
		models.StatusPending, podID, models.StatusInProgress, models.StatusCancelling)
	if err != nil {
		return 0, fmt.Errorf("failed to release owned requests: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		slog.Warn("Released requests from previous run", "pod_id", podID, "count", n)
	}
	return int(n), nil
}

// Finish moves a request to a terminal status, recording the error
// message for failures.
func (s *RequestService) Finish(ctx context.Context, requestID string, status models.RequestStatus, actualCost float64, errorMessage *string) error {
	if !status.IsTerminal() {
		return fmt.Errorf("status %s is not terminal", status)
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE requests
		SET status = $1, actual_cost = $2, error_message = $3, completed_at = NOW()
		WHERE request_id = $4`,
		status, actualCost, errorMessage, requestID)
	if err != nil {
		return fmt.Errorf("failed to finish request: %w", err)
	}
	return nil
}

// RecordAnalysis persists the analyzer verdict once it is known.
func (s *RequestService) RecordAnalysis(ctx context.Context, requestID, intent string, complexity config.Complexity) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE requests SET intent = $1, complexity = $2 WHERE request_id = $3`,
		intent, complexity, requestID)
	if err != nil {
		return fmt.Errorf("failed to record analysis: %w", err)
	}
	return nil
}

// PurgeOld deletes terminal requests older than the retention window.
// Dependent rows (subtasks, responses, final responses, cost breakdown,
// progress messages) go with them through ON DELETE CASCADE.
func (s *RequestService) PurgeOld(ctx context.Context, retentionDays int) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM requests
		WHERE status IN ($1, $2, $3, $4)
		  AND completed_at < NOW() - $5::interval`,
		models.StatusCompleted, models.StatusFailed, models.StatusCancelled, models.StatusTimedOut,
		fmt.Sprintf("%d days", retentionDays))
	if err != nil {
		return 0, fmt.Errorf("failed to purge old requests: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// RecoverOrphans returns requests whose worker stopped heartbeating to
// the pending queue so another replica can pick them up.
func (s *RequestService) RecoverOrphans(ctx context.Context, threshold time.Duration) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE requests
		SET status = $1, pod_id = NULL, started_at = NULL, last_interaction_at = NULL
		WHERE status IN ($2, $3)
		  AND last_interaction_at < NOW() - $4::interval`,
		models.StatusPending, models.StatusInProgress, models.StatusCancelling,
		fmt.Sprintf("%d seconds", int(threshold.Seconds())))
	if err != nil {
		return 0, fmt.Errorf("failed to recover orphaned requests: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		slog.Warn("Recovered orphaned requests", "count", n)
	}
	return int(n), nil
}
