package cost

import (
	"math"
	"sort"

	"github.com/ai-council/councild/pkg/models"
	"github.com/ai-council/councild/pkg/registry"
)

// epsilon guards the discrepancy division against a zero estimate.
const epsilon = 1e-9

// CallCost prices one provider call against a model's unit prices.
func CallCost(m *registry.Model, inputTokens, outputTokens int) float64 {
	return float64(inputTokens)*m.InputTokenCost + float64(outputTokens)*m.OutputTokenCost
}

// Breakdown aggregates actual spend over a request's responses and
// compares it against the ex-ante estimate.
func Breakdown(estimated float64, responses []*models.AgentResponse) models.CostBreakdown {
	b := models.CostBreakdown{
		EstimatedCost: estimated,
		ByModel:       make(map[string]float64),
		BySubtask:     make(map[string]float64),
	}

	for _, r := range responses {
		b.ActualCost += r.Cost
		b.ByModel[r.ModelID] += r.Cost
		b.BySubtask[r.SubtaskID] += r.Cost
		b.TotalInputTokens += r.InputTokens
		b.TotalOutputTokens += r.OutputTokens
	}

	b.DiscrepancyRatio = math.Abs(b.ActualCost-estimated) / math.Max(estimated, epsilon)
	return b
}

// ProviderUsage groups spend per (provider, model) for the persisted
// provider_cost_breakdown rows, in deterministic order.
func ProviderUsage(requestID string, responses []*models.AgentResponse) []*models.ProviderCostEntry {
	type key struct{ provider, model string }
	agg := make(map[key]*models.ProviderCostEntry)

	for _, r := range responses {
		k := key{r.Provider, r.ModelID}
		entry, ok := agg[k]
		if !ok {
			entry = &models.ProviderCostEntry{
				RequestID: requestID,
				Provider:  r.Provider,
				ModelID:   r.ModelID,
			}
			agg[k] = entry
		}
		entry.Calls++
		entry.InputTokens += r.InputTokens
		entry.OutputTokens += r.OutputTokens
		entry.Cost += r.Cost
	}

	out := make([]*models.ProviderCostEntry, 0, len(agg))
	for _, entry := range agg {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Provider != out[j].Provider {
			return out[i].Provider < out[j].Provider
		}
		return out[i].ModelID < out[j].ModelID
	})
	return out
}

// Discrepancy describes an estimate that missed by more than the
// configured threshold.
type Discrepancy struct {
	Direction string  `json:"direction"` // "over" or "under"
	Ratio     float64 `json:"ratio"`
	Estimated float64 `json:"estimated"`
	Actual    float64 `json:"actual"`
}

// CheckDiscrepancy reports whether actual spend diverged from the
// estimate beyond the threshold. Discrepancies are informational only;
// they never fail a request.
func CheckDiscrepancy(estimated, actual, threshold float64) (*Discrepancy, bool) {
	ratio := math.Abs(actual-estimated) / math.Max(estimated, epsilon)
	if ratio <= threshold {
		return nil, false
	}
	direction := "over"
	if actual < estimated {
		direction = "under"
	}
	return &Discrepancy{
		Direction: direction,
		Ratio:     ratio,
		Estimated: estimated,
		Actual:    actual,
	}, true
}
