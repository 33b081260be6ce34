package models

import (
	"time"

	"github.com/ai-council/councild/pkg/config"
)

// ScoredAlternative is one runner-up candidate recorded alongside a
// routing decision.
type ScoredAlternative struct {
	ModelID string  `json:"model_id"`
	Score   float64 `json:"score"`
}

// BreakerSnapshot captures a provider's circuit state at decision time.
type BreakerSnapshot struct {
	Provider string `json:"provider"`
	State    string `json:"state"`
}

// SelectionEntry is one routing decision in the request's selection log.
// Every selection the router makes is recorded, including fallbacks.
type SelectionEntry struct {
	SubtaskID string          `json:"subtask_id"`
	TaskType  config.TaskType `json:"task_type"`

	ChosenModel string  `json:"chosen_model"`
	Score       float64 `json:"score"`
	Reason      string  `json:"reason"`

	// Alternatives holds up to the top three runner-ups by score.
	Alternatives []ScoredAlternative `json:"alternatives,omitempty"`

	// Snapshot records breaker states of the candidate set, so a routing
	// decision can be audited after the fact.
	Snapshot []BreakerSnapshot `json:"snapshot,omitempty"`

	// Fallback marks re-selections after a primary model failed.
	Fallback  bool      `json:"fallback,omitempty"`
	DecidedAt time.Time `json:"decided_at"`
}
