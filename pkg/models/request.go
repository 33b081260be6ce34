package models

import (
	"time"

	"github.com/ai-council/councild/pkg/config"
)

// RequestStatus tracks a request through the worker pool lifecycle.
type RequestStatus string

const (
	StatusPending    RequestStatus = "pending"
	StatusInProgress RequestStatus = "in_progress"
	StatusCancelling RequestStatus = "cancelling"
	StatusCompleted  RequestStatus = "completed"
	StatusFailed     RequestStatus = "failed"
	StatusCancelled  RequestStatus = "cancelled"
	StatusTimedOut   RequestStatus = "timed_out"
)

// IsTerminal reports whether the status is a final state.
func (s RequestStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusTimedOut:
		return true
	default:
		return false
	}
}

// Request is a submitted orchestration request.
type Request struct {
	ID        string               `json:"request_id" db:"request_id"`
	Principal string               `json:"principal" db:"principal"`
	Role      config.Role          `json:"role" db:"role"`
	Prompt    string               `json:"prompt" db:"prompt"`
	Mode      config.ExecutionMode `json:"mode" db:"mode"`
	Status    RequestStatus        `json:"status" db:"status"`

	// Analyzer output, recorded verbatim for auditability.
	Intent     string            `json:"intent,omitempty" db:"intent"`
	Complexity config.Complexity `json:"complexity,omitempty" db:"complexity"`

	EstimatedCost float64 `json:"estimated_cost" db:"estimated_cost"`
	ActualCost    float64 `json:"actual_cost" db:"actual_cost"`

	ErrorMessage *string `json:"error_message,omitempty" db:"error_message"`

	// PodID and LastInteractionAt support multi-replica orphan detection.
	PodID             *string    `json:"-" db:"pod_id"`
	LastInteractionAt *time.Time `json:"-" db:"last_interaction_at"`

	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty" db:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

// SubmitRequest contains fields for submitting a new request.
type SubmitRequest struct {
	Prompt string               `json:"prompt"`
	Mode   config.ExecutionMode `json:"mode"`
}

// RequestFilters contains filtering options for listing request history.
type RequestFilters struct {
	Principal     string               `json:"principal,omitempty"`
	Mode          config.ExecutionMode `json:"mode,omitempty"`
	Status        RequestStatus        `json:"status,omitempty"`
	PromptLike    string               `json:"prompt_like,omitempty"`
	CreatedAfter  *time.Time           `json:"created_after,omitempty"`
	CreatedBefore *time.Time           `json:"created_before,omitempty"`
	Page          int                  `json:"page,omitempty"`
	PageSize      int                  `json:"page_size,omitempty"`
}

// RequestListResponse contains a paginated request list, newest first.
type RequestListResponse struct {
	Requests   []*Request `json:"requests"`
	TotalCount int        `json:"total_count"`
	Page       int        `json:"page"`
	PageSize   int        `json:"page_size"`
}
