package config

import "time"

// ModeParams are the fixed execution parameters attached to a mode.
// They drive decomposition depth, routing bias, executor parallelism,
// per-call deadlines, and the ex-ante cost estimate.
type ModeParams struct {
	// SubtaskMultiplier scales the baseline input-token estimate: deeper
	// decomposition re-sends more prompt material.
	SubtaskMultiplier float64

	// OutputMultiplier scales the baseline output-token estimate.
	OutputMultiplier float64

	// MaxParallel caps concurrent subtask executions.
	MaxParallel int

	// CallDeadline bounds a single provider call.
	CallDeadline time.Duration

	// MinDepth and MaxDepth bound the number of subtasks the decomposer
	// may produce for a non-trivial prompt.
	MinDepth int
	MaxDepth int
}

var modeParams = map[ExecutionMode]ModeParams{
	ModeFast: {
		SubtaskMultiplier: 1.5,
		OutputMultiplier:  1.5,
		MaxParallel:       2,
		CallDeadline:      15 * time.Second,
		MinDepth:          1,
		MaxDepth:          2,
	},
	ModeBalanced: {
		SubtaskMultiplier: 3.0,
		OutputMultiplier:  2.0,
		MaxParallel:       3,
		CallDeadline:      30 * time.Second,
		MinDepth:          3,
		MaxDepth:          4,
	},
	ModeBestQuality: {
		SubtaskMultiplier: 5.0,
		OutputMultiplier:  3.0,
		MaxParallel:       5,
		CallDeadline:      60 * time.Second,
		MinDepth:          4,
		MaxDepth:          6,
	},
}

// ParamsFor returns the parameter set for a mode. Unknown modes fall back
// to BALANCED so a bad value degrades instead of crashing mid-pipeline;
// callers are expected to validate the mode at the boundary.
func ParamsFor(mode ExecutionMode) ModeParams {
	if p, ok := modeParams[mode]; ok {
		return p
	}
	return modeParams[ModeBalanced]
}
