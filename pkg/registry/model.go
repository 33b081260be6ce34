package registry

import "github.com/ai-council/councild/pkg/config"

// Model describes one routable model and its pricing/latency profile.
type Model struct {
	// ID is the registry identifier, e.g. "groq-llama3-70b".
	ID string `json:"id"`

	// Provider is the hosting provider key, e.g. "groq".
	Provider string `json:"provider"`

	// Name is the provider-side model name sent on the wire.
	Name string `json:"name"`

	Capabilities []config.TaskType `json:"capabilities"`

	// Per-token USD prices.
	InputTokenCost  float64 `json:"input_token_cost"`
	OutputTokenCost float64 `json:"output_token_cost"`

	// AvgLatencySeconds is the observed p50 latency for a typical call.
	AvgLatencySeconds float64 `json:"avg_latency_seconds"`

	MaxContext  int     `json:"max_context"`
	Reliability float64 `json:"reliability"`

	// LocalOnly marks models that run on local infrastructure (Ollama).
	LocalOnly bool `json:"local_only,omitempty"`
}

// UnitCost is the combined per-token price used for cost tie-breaks.
func (m *Model) UnitCost() float64 {
	return m.InputTokenCost + m.OutputTokenCost
}

// Supports reports whether the model advertises the given task type.
func (m *Model) Supports(t config.TaskType) bool {
	for _, c := range m.Capabilities {
		if c == t {
			return true
		}
	}
	return false
}
