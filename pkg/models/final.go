package models

import "time"

// ArbitrationOutcome is the verdict reached when multiple answers to the
// same subtask compete.
type ArbitrationOutcome string

const (
	// ArbitrationDecided means a single winner was chosen.
	ArbitrationDecided ArbitrationOutcome = "DECIDED"
	// ArbitrationInconclusive means the top answers were too close to
	// call; both are surfaced.
	ArbitrationInconclusive ArbitrationOutcome = "INCONCLUSIVE"
)

// ArbitrationDecision records how competing answers for one subtask were
// resolved. Decisions are always recorded, even for single-answer subtasks.
type ArbitrationDecision struct {
	SubtaskID string             `json:"subtask_id"`
	Outcome   ArbitrationOutcome `json:"outcome"`

	WinnerResponseID string `json:"winner_response_id,omitempty"`
	// RunnerUpResponseID is kept alongside the winner for INCONCLUSIVE.
	RunnerUpResponseID string `json:"runner_up_response_id,omitempty"`

	// Discarded lists response IDs dropped for confidence below the floor.
	Discarded []string `json:"discarded,omitempty"`

	// Delta is the winner-vs-runner-up weighted confidence gap.
	Delta  float64 `json:"delta"`
	Reason string  `json:"reason"`
}

// FailedSubtask annotates a subtask whose execution could not produce any
// answer; the synthesis marks the gap instead of failing the request.
type FailedSubtask struct {
	SubtaskID   string `json:"subtask_id"`
	Description string `json:"description"`
	Reason      string `json:"reason"`
}

// FinalResponse is the synthesized answer returned to the caller.
type FinalResponse struct {
	RequestID string `json:"request_id" db:"request_id"`
	Content   string `json:"content" db:"content"`

	// OverallConfidence is the length-weighted mean of surviving answers.
	OverallConfidence float64 `json:"overall_confidence" db:"overall_confidence"`

	Cost CostBreakdown `json:"cost" db:"-"`

	ModelsUsed []string `json:"models_used" db:"-"`

	// ProviderUsage summarizes per-provider spend.
	ProviderUsage []*ProviderCostEntry `json:"provider_usage,omitempty" db:"-"`

	SelectionLog []*SelectionEntry      `json:"selection_log,omitempty" db:"-"`
	Arbitrations []*ArbitrationDecision `json:"arbitrations,omitempty" db:"-"`
	Failed       []*FailedSubtask       `json:"failed_subtasks,omitempty" db:"-"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
