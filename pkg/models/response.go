package models

import (
	"time"

	"github.com/ai-council/councild/pkg/config"
)

// SelfAssessment is the structured self-evaluation an agent attaches to
// its answer. Missing fields get conservative defaults at extraction time.
type SelfAssessment struct {
	// Confidence in [0,1]. Answers below the arbitration floor (0.3) are
	// discarded before comparison.
	Confidence  float64          `json:"confidence"`
	Assumptions []string         `json:"assumptions,omitempty"`
	Risk        config.RiskLevel `json:"risk"`
	Limitations string           `json:"limitations,omitempty"`
}

// AgentResponse is a single model's answer to a subtask, with usage and
// cost accounting attached.
type AgentResponse struct {
	ID        string `json:"response_id" db:"response_id"`
	SubtaskID string `json:"subtask_id" db:"subtask_id"`
	RequestID string `json:"request_id" db:"request_id"`

	ModelID  string `json:"model_id" db:"model_id"`
	Provider string `json:"provider" db:"provider"`

	Content    string         `json:"content" db:"content"`
	Assessment SelfAssessment `json:"assessment" db:"-"`

	InputTokens  int     `json:"input_tokens" db:"input_tokens"`
	OutputTokens int     `json:"output_tokens" db:"output_tokens"`
	Cost         float64 `json:"cost" db:"cost"`

	// TokensEstimated is set when the provider returned no usage block
	// and token counts were derived from content length.
	TokensEstimated bool `json:"tokens_estimated,omitempty" db:"tokens_estimated"`

	// UsedFallback marks answers produced by a fallback model after the
	// primary failed; FallbackReason carries the primary's failure kind.
	UsedFallback   bool    `json:"used_fallback" db:"used_fallback"`
	FallbackReason *string `json:"fallback_reason,omitempty" db:"fallback_reason"`

	Elapsed   time.Duration `json:"elapsed_ms" db:"elapsed_ms"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
}
