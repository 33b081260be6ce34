package models

import (
	"time"

	"github.com/ai-council/councild/pkg/config"
)

// SubtaskStatus tracks an individual subtask through execution.
type SubtaskStatus string

const (
	SubtaskPending   SubtaskStatus = "pending"
	SubtaskRunning   SubtaskStatus = "running"
	SubtaskCompleted SubtaskStatus = "completed"
	SubtaskFailed    SubtaskStatus = "failed"
)

// Subtask is one unit of decomposed work routed to a model.
type Subtask struct {
	ID        string `json:"subtask_id" db:"subtask_id"`
	RequestID string `json:"request_id" db:"request_id"`

	// Index preserves the decomposition order for synthesis.
	Index       int              `json:"index" db:"idx"`
	Description string           `json:"description" db:"description"`
	Type        config.TaskType  `json:"task_type" db:"task_type"`
	Risk        config.RiskLevel `json:"risk" db:"risk"`
	Status      SubtaskStatus    `json:"status" db:"status"`

	// AssignedModel is the router's primary choice; FallbackModel is set
	// when the primary failed and a fallback produced the answer.
	AssignedModel string  `json:"assigned_model,omitempty" db:"assigned_model"`
	FallbackModel *string `json:"fallback_model,omitempty" db:"fallback_model"`

	ErrorMessage *string `json:"error_message,omitempty" db:"error_message"`

	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}
