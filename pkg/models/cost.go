package models

import "github.com/ai-council/councild/pkg/config"

// CostEstimate is the ex-ante prediction for one execution mode.
type CostEstimate struct {
	Mode          config.ExecutionMode `json:"mode"`
	EstimatedCost float64              `json:"estimated_cost"`
	// EstimatedSeconds is the predicted wall-clock time.
	EstimatedSeconds float64 `json:"estimated_seconds"`
	// ExceedsCap flags estimates above the configured per-request ceiling.
	// The cap is advisory; submission is not blocked.
	ExceedsCap bool `json:"exceeds_cap,omitempty"`
}

// CostBreakdown is the ex-post accounting attached to a final response.
type CostBreakdown struct {
	EstimatedCost float64 `json:"estimated_cost"`
	ActualCost    float64 `json:"actual_cost"`

	// DiscrepancyRatio is |actual-estimated| / estimated. Above the
	// configured threshold a discrepancy event is published.
	DiscrepancyRatio float64 `json:"discrepancy_ratio"`

	ByModel   map[string]float64 `json:"by_model"`
	BySubtask map[string]float64 `json:"by_subtask"`

	TotalInputTokens  int `json:"total_input_tokens"`
	TotalOutputTokens int `json:"total_output_tokens"`
}

// ProviderCostEntry is one persisted row of per-provider spend for a
// request, used for historical reporting.
type ProviderCostEntry struct {
	RequestID    string  `json:"request_id" db:"request_id"`
	Provider     string  `json:"provider" db:"provider"`
	ModelID      string  `json:"model_id" db:"model_id"`
	Calls        int     `json:"calls" db:"calls"`
	InputTokens  int     `json:"input_tokens" db:"input_tokens"`
	OutputTokens int     `json:"output_tokens" db:"output_tokens"`
	Cost         float64 `json:"cost" db:"cost"`
}
