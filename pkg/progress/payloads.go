package progress

// Typed payloads for the structured message kinds. Field names are part
// of the client contract; changing them breaks stream consumers.

// AnalysisPayload accompanies analysis_complete.
type AnalysisPayload struct {
	Intent     string `json:"intent"`
	Complexity string `json:"complexity"`
}

// DecompositionPayload accompanies decomposition_complete.
type DecompositionPayload struct {
	SubtaskCount int                 `json:"subtaskCount"`
	Subtasks     []DecomposedSubtask `json:"subtasks"`
}

// DecomposedSubtask is one entry in the decomposition summary.
type DecomposedSubtask struct {
	SubtaskID   string `json:"subtaskId"`
	TaskType    string `json:"taskType"`
	Description string `json:"description"`
}

// RoutingAssignment is one subtask's binding in routing_complete.
type RoutingAssignment struct {
	SubtaskID string  `json:"subtaskId"`
	TaskType  string  `json:"taskType"`
	ModelID   string  `json:"modelId"`
	Provider  string  `json:"provider"`
	Score     float64 `json:"score"`
	Reason    string  `json:"reason"`
}

// RoutingPayload accompanies routing_complete.
type RoutingPayload struct {
	Assignments []RoutingAssignment `json:"assignments"`
}

// ExecutionPayload accompanies execution_progress, one per subtask
// completion. Fallback fields are set only when the primary failed.
type ExecutionPayload struct {
	SubtaskID  string  `json:"subtaskId"`
	Status     string  `json:"status"` // completed | failed
	ModelID    string  `json:"modelId,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Cost       float64 `json:"cost,omitempty"`
	ElapsedMS  int64   `json:"elapsedMs,omitempty"`

	UsedFallback       bool   `json:"usedFallback,omitempty"`
	PrimaryModelFailed string `json:"primaryModelFailed,omitempty"`
	FallbackModel      string `json:"fallbackModel,omitempty"`
	FallbackReason     string `json:"fallbackReason,omitempty"`

	Error string `json:"error,omitempty"`
}

// ArbitrationPayload accompanies arbitration_decision.
type ArbitrationPayload struct {
	SubtaskID string  `json:"subtaskId"`
	Outcome   string  `json:"outcome"`
	Winner    string  `json:"winner,omitempty"`
	RunnerUp  string  `json:"runnerUp,omitempty"`
	Delta     float64 `json:"delta"`
	Reason    string  `json:"reason"`
}

// DiscrepancyPayload accompanies cost_discrepancy.
type DiscrepancyPayload struct {
	Direction string  `json:"direction"`
	Ratio     float64 `json:"ratio"`
	Mode      string  `json:"mode"`
	Estimated float64 `json:"estimated"`
	Actual    float64 `json:"actual"`
}

// ErrorPayload accompanies error and cancelled messages.
type ErrorPayload struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}
