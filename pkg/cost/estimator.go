package cost

import (
	"context"
	"log/slog"
	"math"
	"sort"

	"github.com/ai-council/councild/pkg/config"
	"github.com/ai-council/councild/pkg/models"
	"github.com/ai-council/councild/pkg/registry"
)

// charsPerToken is the baseline token density of English prompt text.
const charsPerToken = 0.25

// Estimator predicts request cost and wall-clock time before execution.
// Estimates are derived from the expected model mix for the mode, not
// from routing, so they are cheap and cacheable.
type Estimator struct {
	registry *registry.Registry
	cfg      *config.CostConfig
	cache    *EstimateCache
}

// NewEstimator creates an estimator. cache may be nil to disable caching.
func NewEstimator(reg *registry.Registry, cfg *config.CostConfig, cache *EstimateCache) *Estimator {
	return &Estimator{registry: reg, cfg: cfg, cache: cache}
}

// Estimate predicts cost and time for one mode. Request length is
// bucketed to the nearest 10 characters for cache locality.
func (e *Estimator) Estimate(ctx context.Context, length int, mode config.ExecutionMode) *models.CostEstimate {
	bucket := (length / 10) * 10

	if e.cache != nil {
		if cached, ok := e.cache.Get(ctx, bucket, mode); ok {
			return cached
		}
	}

	est := e.compute(bucket, mode)

	if e.cache != nil {
		e.cache.Set(ctx, bucket, mode, est)
	}
	return est
}

// EstimateAll returns estimates for every mode, with the cross-mode
// monotonicity invariant enforced: a richer mode never reports a lower
// cost or time than a cheaper one.
func (e *Estimator) EstimateAll(ctx context.Context, length int) map[config.ExecutionMode]*models.CostEstimate {
	order := []config.ExecutionMode{config.ModeFast, config.ModeBalanced, config.ModeBestQuality}
	out := make(map[config.ExecutionMode]*models.CostEstimate, len(order))

	var prev *models.CostEstimate
	for _, mode := range order {
		est := e.Estimate(ctx, length, mode)
		if prev != nil {
			est.EstimatedCost = math.Max(est.EstimatedCost, prev.EstimatedCost)
			est.EstimatedSeconds = math.Max(est.EstimatedSeconds, prev.EstimatedSeconds)
		}
		out[mode] = est
		prev = est
	}
	return out
}

func (e *Estimator) compute(length int, mode config.ExecutionMode) *models.CostEstimate {
	params := config.ParamsFor(mode)

	inputTokens := math.Ceil(float64(length) * charsPerToken * params.SubtaskMultiplier)
	outputTokens := math.Ceil(float64(length) * charsPerToken * params.OutputMultiplier)

	mix := e.mixModel(mode)
	est := &models.CostEstimate{Mode: mode}
	if mix == nil {
		// Empty registry; submission fails elsewhere with NoProviders.
		return est
	}

	est.EstimatedCost = inputTokens*mix.InputTokenCost + outputTokens*mix.OutputTokenCost
	// Latency of the expected mix model, scaled by decomposition depth as
	// a proxy for sequential batches.
	est.EstimatedSeconds = mix.AvgLatencySeconds * params.SubtaskMultiplier
	est.ExceedsCap = e.cfg.MaxCostPerRequest > 0 && est.EstimatedCost > e.cfg.MaxCostPerRequest

	if est.ExceedsCap {
		slog.Warn("Estimate exceeds per-request cost cap",
			"mode", mode, "estimated_cost", est.EstimatedCost, "cap", e.cfg.MaxCostPerRequest)
	}
	return est
}

// mixModel picks the model that stands in for the mode's expected mix:
// cheapest for FAST, median unit cost for BALANCED, most reliable for
// BEST_QUALITY.
func (e *Estimator) mixModel(mode config.ExecutionMode) *registry.Model {
	all := e.registry.All()
	if len(all) == 0 {
		return nil
	}

	byCost := make([]*registry.Model, len(all))
	copy(byCost, all)
	sort.Slice(byCost, func(i, j int) bool {
		if byCost[i].UnitCost() != byCost[j].UnitCost() {
			return byCost[i].UnitCost() < byCost[j].UnitCost()
		}
		return byCost[i].ID < byCost[j].ID
	})

	switch mode {
	case config.ModeFast:
		return byCost[0]
	case config.ModeBestQuality:
		best := all[0]
		for _, m := range all[1:] {
			if m.Reliability > best.Reliability ||
				(m.Reliability == best.Reliability && m.ID < best.ID) {
				best = m
			}
		}
		return best
	default:
		return byCost[len(byCost)/2]
	}
}
