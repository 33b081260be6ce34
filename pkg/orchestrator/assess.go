package orchestrator

import (
	"strings"

	"github.com/ai-council/councild/pkg/models"
)

// hedges are phrases that lower extracted confidence. Each distinct
// hedge found costs a tenth, down to the floor.
var hedges = []string{
	"might", "may be", "possibly", "perhaps", "unsure", "not sure",
	"unclear", "i think", "probably", "cannot determine", "hard to say",
	"uncertain",
}

const (
	baseConfidence  = 0.9
	hedgePenalty    = 0.1
	confidenceFloor = 0.3
)

// extractAssessment derives a structured self-assessment from raw model
// output. Providers in this catalog return plain text, so confidence is
// a hedging heuristic, assumptions are lifted from explicit
// "Assumption:" lines, and risk is inherited from the subtask.
func extractAssessment(content string, subtask *models.Subtask) models.SelfAssessment {
	a := models.SelfAssessment{
		Confidence: baseConfidence,
		Risk:       subtask.Risk,
	}
	if strings.TrimSpace(content) == "" {
		a.Confidence = 0
		return a
	}

	lower := strings.ToLower(content)
	for _, h := range hedges {
		if strings.Contains(lower, h) {
			a.Confidence -= hedgePenalty
		}
	}
	if a.Confidence < confidenceFloor {
		a.Confidence = confidenceFloor
	}

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-* "))
		lowerLine := strings.ToLower(trimmed)
		if strings.HasPrefix(lowerLine, "assumption:") || strings.HasPrefix(lowerLine, "assuming ") {
			a.Assumptions = append(a.Assumptions, trimmed)
		}
		if strings.HasPrefix(lowerLine, "limitation:") {
			a.Limitations = trimmed
		}
	}
	return a
}
