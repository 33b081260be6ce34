package orchestrator

import (
	"fmt"
	"sort"
	"time"

	"github.com/ai-council/councild/pkg/breaker"
	"github.com/ai-council/councild/pkg/config"
	"github.com/ai-council/councild/pkg/models"
	"github.com/ai-council/councild/pkg/registry"
)

// Scoring weights. Availability dominates: an unhealthy provider is
// never worth a cheaper price.
const (
	weightAvailability = 0.40
	weightCost         = 0.25
	weightLatency      = 0.15
	weightCapability   = 0.10
	weightReliability  = 0.10
)

// Router binds subtasks to models. It consults the registry for
// capability and health, and the breaker manager to keep tripped
// providers out of the candidate set.
type Router struct {
	registry *registry.Registry
	breakers *breaker.Manager
}

// NewRouter creates a router.
func NewRouter(reg *registry.Registry, breakers *breaker.Manager) *Router {
	return &Router{registry: reg, breakers: breakers}
}

// Selection is a routing decision: the bound model plus its audit entry.
type Selection struct {
	Model *registry.Model
	Entry *models.SelectionEntry
}

type scoredCandidate struct {
	model *registry.Model
	score float64
}

// Route selects the best model for a subtask. exclude removes models
// that already failed this subtask, for fallback re-selection. Returns
// a NoRoute error when the candidate set is empty.
func (r *Router) Route(subtask *models.Subtask, mode config.ExecutionMode, exclude map[string]bool) (*Selection, error) {
	candidates := r.candidates(subtask.Type, exclude)
	if len(candidates) == 0 {
		return nil, NewError(CodeNoRoute,
			fmt.Sprintf("no available model supports task type %s", subtask.Type))
	}

	if mode == config.ModeFast {
		candidates = dropSlowerThanMedian(candidates)
	}

	scored := score(candidates, mode)
	sortScored(scored)

	winner := scored[0]
	entry := &models.SelectionEntry{
		SubtaskID:   subtask.ID,
		TaskType:    subtask.Type,
		ChosenModel: winner.model.ID,
		Score:       winner.score,
		Reason: fmt.Sprintf("highest score %.1f among %d candidates for %s",
			winner.score, len(scored), subtask.Type),
		Fallback:  len(exclude) > 0,
		DecidedAt: time.Now(),
	}
	for _, alt := range scored[1:] {
		entry.Alternatives = append(entry.Alternatives, models.ScoredAlternative{
			ModelID: alt.model.ID,
			Score:   alt.score,
		})
		if len(entry.Alternatives) == 3 {
			break
		}
	}
	entry.Snapshot = r.snapshot(candidates)

	return &Selection{Model: winner.model, Entry: entry}, nil
}

// RouteAll binds every subtask up front, before execution begins.
// Subtasks with no route are returned separately; they fail without
// aborting the rest.
func (r *Router) RouteAll(subtasks []*models.Subtask, mode config.ExecutionMode) (map[string]*Selection, map[string]error) {
	selections := make(map[string]*Selection, len(subtasks))
	unroutable := make(map[string]error)
	for _, st := range subtasks {
		sel, err := r.Route(st, mode, nil)
		if err != nil {
			unroutable[st.ID] = err
			continue
		}
		selections[st.ID] = sel
	}
	return selections, unroutable
}

// candidates builds the set C: models supporting the task type, on a
// provider that is not down, with a breaker willing to admit a call.
func (r *Router) candidates(t config.TaskType, exclude map[string]bool) []*registry.Model {
	var out []*registry.Model
	for _, m := range r.registry.ByTaskType(t) {
		if exclude[m.ID] {
			continue
		}
		if r.registry.Availability(m.ID) == 0 {
			continue
		}
		if !r.breakers.Get(m.Provider).Ready() {
			continue
		}
		out = append(out, m)
	}
	return out
}

// dropSlowerThanMedian keeps candidates at or below the 50th-percentile
// latency of the set.
func dropSlowerThanMedian(candidates []*registry.Model) []*registry.Model {
	latencies := make([]float64, len(candidates))
	for i, m := range candidates {
		latencies[i] = m.AvgLatencySeconds
	}
	sort.Float64s(latencies)
	median := latencies[(len(latencies)-1)/2]

	var out []*registry.Model
	for _, m := range candidates {
		if m.AvgLatencySeconds <= median {
			out = append(out, m)
		}
	}
	return out
}

// score computes the weighted score for every candidate. Cost and
// latency are min-max normalized over the candidate set so the scale is
// stable per invocation; availability is flat 100 because anything less
// than fully-routable was already filtered out.
func score(candidates []*registry.Model, mode config.ExecutionMode) []scoredCandidate {
	minCost, maxCost := minMax(candidates, (*registry.Model).UnitCost)
	minLat, maxLat := minMax(candidates, func(m *registry.Model) float64 { return m.AvgLatencySeconds })
	maxCaps := 0
	for _, m := range candidates {
		if len(m.Capabilities) > maxCaps {
			maxCaps = len(m.Capabilities)
		}
	}

	out := make([]scoredCandidate, len(candidates))
	for i, m := range candidates {
		costScore := 100 * (1 - normalize(m.UnitCost(), minCost, maxCost))
		latencyScore := 100 * (1 - normalize(m.AvgLatencySeconds, minLat, maxLat))
		capabilityScore := 100 * float64(len(m.Capabilities)) / float64(maxCaps)

		reliability := m.Reliability
		if mode == config.ModeBestQuality {
			reliability *= 1.5
		}

		out[i] = scoredCandidate{
			model: m,
			score: weightAvailability*100 +
				weightCost*costScore +
				weightLatency*latencyScore +
				weightCapability*capabilityScore +
				weightReliability*100*reliability,
		}
	}
	return out
}

// sortScored orders by score descending with deterministic tie-breaks:
// lowest unit cost, then lowest latency, then lexicographic model id.
func sortScored(scored []scoredCandidate) {
	sort.Slice(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.model.UnitCost() != b.model.UnitCost() {
			return a.model.UnitCost() < b.model.UnitCost()
		}
		if a.model.AvgLatencySeconds != b.model.AvgLatencySeconds {
			return a.model.AvgLatencySeconds < b.model.AvgLatencySeconds
		}
		return a.model.ID < b.model.ID
	})
}

// snapshot records the breaker state of every provider in the candidate
// set, so the decision can be audited later.
func (r *Router) snapshot(candidates []*registry.Model) []models.BreakerSnapshot {
	seen := make(map[string]bool)
	var out []models.BreakerSnapshot
	for _, m := range candidates {
		if seen[m.Provider] {
			continue
		}
		seen[m.Provider] = true
		out = append(out, models.BreakerSnapshot{
			Provider: m.Provider,
			State:    string(r.breakers.Get(m.Provider).State()),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Provider < out[j].Provider })
	return out
}

func minMax(candidates []*registry.Model, f func(*registry.Model) float64) (float64, float64) {
	lo, hi := f(candidates[0]), f(candidates[0])
	for _, m := range candidates[1:] {
		v := f(m)
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

// normalize maps v into [0,1] over [lo,hi]; a degenerate range counts
// as best so identical candidates score identically.
func normalize(v, lo, hi float64) float64 {
	if hi == lo {
		return 0
	}
	return (v - lo) / (hi - lo)
}
