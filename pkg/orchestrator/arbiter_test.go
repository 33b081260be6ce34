package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ai-council/councild/pkg/config"
	"github.com/ai-council/councild/pkg/models"
	"github.com/ai-council/councild/pkg/registry"
)

func arbiterRegistry() *registry.Registry {
	return registry.NewWithModels([]*registry.Model{
		reasoningModel("model-a", "alpha", 2e-6, 1.0, 0.95),
		reasoningModel("model-b", "beta", 4e-6, 1.0, 0.92),
	})
}

func response(id, modelID, content string, confidence float64) *models.AgentResponse {
	return &models.AgentResponse{
		ID:        id,
		SubtaskID: "st-1",
		ModelID:   modelID,
		Content:   content,
		Assessment: models.SelfAssessment{
			Confidence: confidence,
			Risk:       config.RiskLow,
		},
	}
}

func TestArbitrate_SingleCandidate(t *testing.T) {
	a := NewArbiter(arbiterRegistry())
	st := reasoningSubtask()

	decision, kept := a.Arbitrate(st, []*models.AgentResponse{
		response("r1", "model-a", "The answer is 42.", 0.9),
	})

	assert.Equal(t, models.ArbitrationDecided, decision.Outcome)
	assert.Equal(t, "r1", decision.WinnerResponseID)
	require.Len(t, kept, 1)
}

func TestArbitrate_HighestWeightedConfidenceWins(t *testing.T) {
	a := NewArbiter(arbiterRegistry())
	st := reasoningSubtask()

	// Agreeing answers: products 0.9*0.95=0.855 vs 0.88*0.92=0.810.
	decision, kept := a.Arbitrate(st, []*models.AgentResponse{
		response("r1", "model-a", "X is a caching proxy. It sits in front of origin servers.", 0.90),
		response("r2", "model-b", "X is a caching proxy. It reduces origin load.", 0.88),
	})

	assert.Equal(t, models.ArbitrationDecided, decision.Outcome)
	assert.Equal(t, "r1", decision.WinnerResponseID)
	assert.Equal(t, "r2", decision.RunnerUpResponseID)
	assert.InDelta(t, 0.045, decision.Delta, 0.001)
	require.Len(t, kept, 1)
	assert.Equal(t, "r1", kept[0].ID)
}

func TestArbitrate_InconclusiveOnCloseDisagreement(t *testing.T) {
	reg := registry.NewWithModels([]*registry.Model{
		reasoningModel("model-a", "alpha", 2e-6, 1.0, 0.95),
		reasoningModel("model-b", "beta", 4e-6, 1.0, 0.95),
	})
	a := NewArbiter(reg)
	st := reasoningSubtask()

	// Disagreeing claims with products 0.779 vs 0.760: too close to call.
	decision, kept := a.Arbitrate(st, []*models.AgentResponse{
		response("r1", "model-a", "X is a caching proxy.", 0.82),
		response("r2", "model-b", "X is a message broker.", 0.80),
	})

	assert.Equal(t, models.ArbitrationInconclusive, decision.Outcome)
	require.Len(t, kept, 2, "both alternatives must survive for synthesis")
	assert.Equal(t, "r1", kept[0].ID)
	assert.Equal(t, "r2", kept[1].ID)
}

func TestArbitrate_CloseButAgreeingIsDecided(t *testing.T) {
	reg := registry.NewWithModels([]*registry.Model{
		reasoningModel("model-a", "alpha", 2e-6, 1.0, 0.95),
		reasoningModel("model-b", "beta", 4e-6, 1.0, 0.95),
	})
	a := NewArbiter(reg)
	st := reasoningSubtask()

	// Same claim either way; a small delta is no reason to hedge.
	decision, kept := a.Arbitrate(st, []*models.AgentResponse{
		response("r1", "model-a", "X is a caching proxy.", 0.82),
		response("r2", "model-b", "x is a CACHING proxy.", 0.80),
	})

	assert.Equal(t, models.ArbitrationDecided, decision.Outcome)
	require.Len(t, kept, 1)
	assert.Equal(t, "r1", kept[0].ID)
}

func TestArbitrate_DropsBelowConfidenceFloor(t *testing.T) {
	a := NewArbiter(arbiterRegistry())
	st := reasoningSubtask()

	decision, kept := a.Arbitrate(st, []*models.AgentResponse{
		response("r1", "model-a", "Solid answer here.", 0.9),
		response("r2", "model-b", "Wild guess.", 0.2),
	})

	assert.Equal(t, models.ArbitrationDecided, decision.Outcome)
	assert.Equal(t, "r1", decision.WinnerResponseID)
	assert.Equal(t, []string{"r2"}, decision.Discarded)
	require.Len(t, kept, 1)
}

func TestArbitrate_AllBelowFloorKeepsLeastBad(t *testing.T) {
	a := NewArbiter(arbiterRegistry())
	st := reasoningSubtask()

	decision, kept := a.Arbitrate(st, []*models.AgentResponse{
		response("r1", "model-a", "Guess one.", 0.1),
		response("r2", "model-b", "Guess two.", 0.25),
	})

	assert.Equal(t, "r2", decision.WinnerResponseID)
	require.Len(t, kept, 1)
	assert.Equal(t, "r2", kept[0].ID)
}
