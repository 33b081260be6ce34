package orchestrator

import (
	"strings"

	"github.com/ai-council/councild/pkg/config"
)

// Analysis is the analyzer's verdict on an incoming prompt. It is
// recorded verbatim on the request and in the progress log.
type Analysis struct {
	Intent     string
	Complexity config.Complexity
}

// connectives are the clause joiners that signal a multi-part request.
// Longer forms come first so "and then" is consumed before "then".
var connectives = []string{
	", and then ",
	" and then ",
	", then ",
	" then ",
	" also ",
	" additionally ",
	" afterwards ",
	" as well as ",
	"; ",
}

// Analyze classifies a prompt's complexity and derives a one-line
// intent. TRIVIAL and SIMPLE prompts bypass decomposition entirely.
func Analyze(prompt string) Analysis {
	trimmed := strings.TrimSpace(prompt)
	sentences := splitSentences(trimmed)
	parts := countClauses(trimmed)
	words := len(strings.Fields(trimmed))

	var complexity config.Complexity
	switch {
	case parts <= 1 && len(sentences) <= 1 && words <= 12:
		complexity = config.ComplexityTrivial
	case parts <= 1 && len(sentences) <= 2:
		complexity = config.ComplexitySimple
	case parts <= 3:
		complexity = config.ComplexityCompound
	default:
		complexity = config.ComplexityComplex
	}

	return Analysis{
		Intent:     intentOf(sentences, trimmed),
		Complexity: complexity,
	}
}

// intentOf is a single-shot description of what the caller wants: the
// first sentence, bounded to keep the progress log readable.
func intentOf(sentences []string, fallback string) string {
	intent := fallback
	if len(sentences) > 0 {
		intent = sentences[0]
	}
	intent = strings.TrimSpace(intent)
	if len(intent) > 120 {
		intent = intent[:117] + "..."
	}
	return intent
}

// countClauses counts the clause units a prompt would decompose into:
// sentence boundaries plus explicit connectives.
func countClauses(prompt string) int {
	n := 0
	for _, s := range splitSentences(prompt) {
		n += 1 + connectiveCount(s)
	}
	return n
}

// connectiveCount counts joiners without double-counting overlapping
// forms; each match is consumed as it is counted.
func connectiveCount(s string) int {
	lower := strings.ToLower(s)
	n := 0
	for _, c := range connectives {
		n += strings.Count(lower, c)
		lower = strings.ReplaceAll(lower, c, " ")
	}
	return n
}

// splitSentences breaks text on terminal punctuation, dropping empty
// fragments.
func splitSentences(text string) []string {
	var out []string
	var sb strings.Builder
	for _, r := range text {
		sb.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if s := strings.TrimSpace(sb.String()); s != "" {
				out = append(out, s)
			}
			sb.Reset()
		}
	}
	if s := strings.TrimSpace(sb.String()); s != "" {
		out = append(out, s)
	}
	return out
}
