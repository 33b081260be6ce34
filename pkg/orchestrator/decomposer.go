package orchestrator

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ai-council/councild/pkg/config"
	"github.com/ai-council/councild/pkg/models"
)

// taskKeywords drive task-type classification. A clause is scanned
// against these in config.TaskTypeSpecificity order; the first type with
// a match wins, so the most specific interpretation takes precedence.
var taskKeywords = map[config.TaskType][]string{
	config.TaskCodeGeneration: {"code", "python", "javascript", "golang", "program", "implement", "function", "script", "sql", "api"},
	config.TaskDebugging:      {"debug", "fix", "bug", "stack trace", "traceback", "crash", "error message"},
	config.TaskReasoning:      {"explain", "why", "analyze", "reason", "compare", "evaluate", "prove"},
	config.TaskResearch:       {"research", "list", "find", "summarize", "overview", "uses", "examples", "sources"},
	config.TaskFactCheck:      {"fact", "true or false", "is it true", "accurate", "citation"},
	config.TaskVerification:   {"verify", "check", "validate", "review", "proofread", "consistency"},
	config.TaskCreative:       {"story", "poem", "creative", "imagine", "slogan", "brainstorm", "name for"},
}

// classifyTask maps a clause to a task type, defaulting to REASONING
// when nothing matches.
func classifyTask(clause string) config.TaskType {
	lower := strings.ToLower(clause)
	for _, t := range config.TaskTypeSpecificity {
		for _, kw := range taskKeywords[t] {
			if strings.Contains(lower, kw) {
				return t
			}
		}
	}
	return config.TaskReasoning
}

// riskFor is the default risk attached at decomposition time. An agent
// may revise it downward or upward in its self-assessment.
func riskFor(t config.TaskType) config.RiskLevel {
	switch t {
	case config.TaskCodeGeneration, config.TaskDebugging:
		return config.RiskMedium
	default:
		return config.RiskLow
	}
}

// Decompose turns a request into an ordered list of atomic subtasks.
// TRIVIAL and SIMPLE prompts yield a single subtask identical to the
// input; richer prompts are split on sentence boundaries and
// connectives, then clamped to the mode's depth bounds.
func Decompose(req *models.Request, analysis Analysis) []*models.Subtask {
	params := config.ParamsFor(req.Mode)

	// TRIVIAL and SIMPLE bypass decomposition entirely: one subtask,
	// identical to the input, regardless of the mode's depth bounds.
	switch analysis.Complexity {
	case config.ComplexityTrivial, config.ComplexitySimple:
		prompt := strings.TrimSpace(req.Prompt)
		return []*models.Subtask{newSubtask(req.ID, 0, prompt, classifyTask(prompt))}
	}

	clauses := splitClauses(req.Prompt)

	// Clamp to MaxDepth by folding the tail into the last subtask;
	// no clause is ever dropped.
	if len(clauses) > params.MaxDepth {
		tail := strings.Join(clauses[params.MaxDepth-1:], " ")
		clauses = append(clauses[:params.MaxDepth-1], tail)
	}

	subtasks := make([]*models.Subtask, 0, params.MinDepth)
	for i, clause := range clauses {
		t := classifyTask(clause)
		subtasks = append(subtasks, newSubtask(req.ID, i, clause, t))
	}

	// Pad to MinDepth with verification passes over the whole prompt.
	for len(subtasks) < params.MinDepth {
		desc := fmt.Sprintf("Verify the accuracy and internal consistency of the answer to: %s", analysis.Intent)
		subtasks = append(subtasks, newSubtask(req.ID, len(subtasks), desc, config.TaskVerification))
	}

	return subtasks
}

func newSubtask(requestID string, index int, description string, t config.TaskType) *models.Subtask {
	return &models.Subtask{
		ID:          uuid.NewString(),
		RequestID:   requestID,
		Index:       index,
		Description: strings.TrimSpace(description),
		Type:        t,
		Risk:        riskFor(t),
		Status:      models.SubtaskPending,
		CreatedAt:   time.Now(),
	}
}

// splitClauses breaks a prompt into atomic work units: sentences first,
// then connective-joined clauses within each sentence.
func splitClauses(prompt string) []string {
	var out []string
	for _, sentence := range splitSentences(prompt) {
		for _, clause := range splitConnectives(sentence) {
			clause = strings.TrimSpace(strings.Trim(clause, ".!?;,"))
			if clause != "" {
				out = append(out, clause)
			}
		}
	}
	if len(out) == 0 {
		out = []string{strings.TrimSpace(prompt)}
	}
	return out
}

func splitConnectives(sentence string) []string {
	parts := []string{sentence}
	for _, c := range connectives {
		var next []string
		for _, p := range parts {
			next = append(next, splitCaseInsensitive(p, c)...)
		}
		parts = next
	}
	return parts
}

// splitCaseInsensitive splits s on sep without regard to case,
// preserving the original text of the fragments.
func splitCaseInsensitive(s, sep string) []string {
	lower := strings.ToLower(s)
	sepLower := strings.ToLower(sep)
	var out []string
	for {
		i := strings.Index(lower, sepLower)
		if i < 0 {
			out = append(out, s)
			return out
		}
		out = append(out, s[:i])
		s = s[i+len(sep):]
		lower = lower[i+len(sep):]
	}
}
