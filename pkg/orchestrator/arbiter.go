package orchestrator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ai-council/councild/pkg/models"
	"github.com/ai-council/councild/pkg/registry"
)

// arbitrationFloor discards answers whose self-assessed confidence is
// too low to be worth comparing.
const arbitrationFloor = 0.3

// inconclusiveDelta is the weighted-confidence gap below which two
// disagreeing answers are too close to call.
const inconclusiveDelta = 0.1

// Arbiter resolves competing answers to the same subtask. Disagreement
// is never merged silently; every resolution is recorded.
type Arbiter struct {
	registry *registry.Registry
}

// NewArbiter creates an arbiter.
func NewArbiter(reg *registry.Registry) *Arbiter {
	return &Arbiter{registry: reg}
}

// Arbitrate ranks the responses for one subtask and returns the
// decision plus the responses synthesis should keep: one winner, or
// winner and runner-up when the outcome is INCONCLUSIVE. A decision is
// recorded even for a single response.
func (a *Arbiter) Arbitrate(subtask *models.Subtask, responses []*models.AgentResponse) (*models.ArbitrationDecision, []*models.AgentResponse) {
	decision := &models.ArbitrationDecision{
		SubtaskID: subtask.ID,
		Outcome:   models.ArbitrationDecided,
	}

	var candidates []*models.AgentResponse
	for _, r := range responses {
		if r.Assessment.Confidence < arbitrationFloor {
			decision.Discarded = append(decision.Discarded, r.ID)
			continue
		}
		candidates = append(candidates, r)
	}

	// Everything below the floor: keep the least-bad answer rather than
	// failing a subtask that did produce output.
	if len(candidates) == 0 && len(responses) > 0 {
		best := responses[0]
		for _, r := range responses[1:] {
			if r.Assessment.Confidence > best.Assessment.Confidence {
				best = r
			}
		}
		decision.WinnerResponseID = best.ID
		decision.Discarded = nil
		decision.Reason = "all candidates below confidence floor; kept highest"
		return decision, []*models.AgentResponse{best}
	}

	if len(candidates) == 1 {
		decision.WinnerResponseID = candidates[0].ID
		decision.Reason = "single candidate"
		return decision, candidates
	}

	sort.Slice(candidates, func(i, j int) bool {
		wi, wj := a.weighted(candidates[i]), a.weighted(candidates[j])
		if wi != wj {
			return wi > wj
		}
		return candidates[i].ID < candidates[j].ID
	})

	winner, runnerUp := candidates[0], candidates[1]
	delta := a.weighted(winner) - a.weighted(runnerUp)
	decision.WinnerResponseID = winner.ID
	decision.RunnerUpResponseID = runnerUp.ID
	decision.Delta = delta

	if delta < inconclusiveDelta && disagree(winner, runnerUp) {
		decision.Outcome = models.ArbitrationInconclusive
		decision.Reason = fmt.Sprintf(
			"disagreeing answers within %.3f of each other; presenting both", delta)
		return decision, []*models.AgentResponse{winner, runnerUp}
	}

	decision.Reason = fmt.Sprintf(
		"highest weighted confidence %.3f (margin %.3f over %s)",
		a.weighted(winner), delta, runnerUp.ModelID)
	return decision, []*models.AgentResponse{winner}
}

// weighted is confidence scaled by the producing model's reliability.
// Unknown models count at full reliability rather than being zeroed out.
func (a *Arbiter) weighted(r *models.AgentResponse) float64 {
	reliability := 1.0
	if m, err := a.registry.Get(r.ModelID); err == nil {
		reliability = m.Reliability
	}
	return r.Assessment.Confidence * reliability
}

// disagree compares the answers' extractable claims after
// normalization. Equal claims mean the answers agree even when their
// prose differs elsewhere.
func disagree(a, b *models.AgentResponse) bool {
	return extractClaim(a.Content) != extractClaim(b.Content)
}

// extractClaim is the short comparable span of an answer: its first
// sentence, trimmed and lowercased.
func extractClaim(content string) string {
	sentences := splitSentences(content)
	claim := content
	if len(sentences) > 0 {
		claim = sentences[0]
	}
	claim = strings.ToLower(strings.TrimSpace(claim))
	claim = strings.Join(strings.Fields(claim), " ")
	if len(claim) > 160 {
		claim = claim[:160]
	}
	return claim
}
