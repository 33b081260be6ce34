package orchestrator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ai-council/councild/pkg/models"
)

// Synthesize combines the surviving responses into one body, preserving
// the decomposition order, deduplicating repeated sentences, and
// annotating subtasks that produced nothing. Inconclusive arbitration
// renders both answers as explicit alternatives.
func Synthesize(subtasks []*models.Subtask, kept map[string][]*models.AgentResponse, failed []*models.FailedSubtask) (string, float64, []string) {
	ordered := make([]*models.Subtask, len(subtasks))
	copy(ordered, subtasks)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Index < ordered[j].Index })

	failedByID := make(map[string]*models.FailedSubtask, len(failed))
	for _, f := range failed {
		failedByID[f.SubtaskID] = f
	}

	seen := make(map[string]bool)
	var sections []string
	multi := len(ordered) > 1

	for _, st := range ordered {
		responses := kept[st.ID]

		var body string
		switch {
		case len(responses) >= 2:
			// Too close to call; never silently merge.
			body = fmt.Sprintf("Alternative A (%s):\n%s\n\nAlternative B (%s):\n%s",
				responses[0].ModelID, dedupSentences(responses[0].Content, seen),
				responses[1].ModelID, dedupSentences(responses[1].Content, seen))
		case len(responses) == 1:
			body = dedupSentences(responses[0].Content, seen)
		default:
			f := failedByID[st.ID]
			reason := "no response produced"
			if f != nil {
				reason = f.Reason
			}
			body = fmt.Sprintf("_This part could not be completed: %s._", reason)
		}
		if strings.TrimSpace(body) == "" {
			continue
		}

		if multi {
			sections = append(sections, fmt.Sprintf("## %s\n\n%s", headingOf(st.Description), body))
		} else {
			sections = append(sections, body)
		}
	}

	content := strings.Join(sections, "\n\n")
	return content, overallConfidence(ordered, kept), modelsUsed(kept)
}

// overallConfidence is the length-weighted mean of surviving answer
// confidences, scaled down by the fraction of subtasks that succeeded.
func overallConfidence(subtasks []*models.Subtask, kept map[string][]*models.AgentResponse) float64 {
	var weighted, total float64
	succeeded := 0
	for _, st := range subtasks {
		responses := kept[st.ID]
		if len(responses) == 0 {
			continue
		}
		succeeded++
		for _, r := range responses {
			w := float64(len(r.Content))
			weighted += r.Assessment.Confidence * w
			total += w
		}
	}
	if total == 0 || len(subtasks) == 0 {
		return 0
	}
	return (weighted / total) * (float64(succeeded) / float64(len(subtasks)))
}

func modelsUsed(kept map[string][]*models.AgentResponse) []string {
	seen := make(map[string]bool)
	var out []string
	for _, responses := range kept {
		for _, r := range responses {
			if !seen[r.ModelID] {
				seen[r.ModelID] = true
				out = append(out, r.ModelID)
			}
		}
	}
	sort.Strings(out)
	return out
}

// headingOf normalizes a subtask description into a heading: sentence
// case, no terminal punctuation, bounded length.
func headingOf(description string) string {
	h := strings.TrimSpace(strings.TrimRight(strings.TrimSpace(description), ".!?:"))
	if h == "" {
		return "Result"
	}
	if len(h) > 80 {
		h = h[:77] + "..."
	}
	return strings.ToUpper(h[:1]) + h[1:]
}

// dedupSentences drops sentences already emitted earlier in the
// synthesis, comparing on a whitespace-collapsed lowercase key.
func dedupSentences(content string, seen map[string]bool) string {
	sentences := splitSentences(content)
	if len(sentences) == 0 {
		return strings.TrimSpace(content)
	}
	var out []string
	for _, s := range sentences {
		key := strings.Join(strings.Fields(strings.ToLower(s)), " ")
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return strings.Join(out, " ")
}
