package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ai-council/councild/pkg/breaker"
	"github.com/ai-council/councild/pkg/config"
	"github.com/ai-council/councild/pkg/models"
	"github.com/ai-council/councild/pkg/progress"
	"github.com/ai-council/councild/pkg/provider"
	"github.com/ai-council/councild/pkg/registry"
)

// fakeClient scripts provider behavior per call number.
type fakeClient struct {
	name string
	fn   func(ctx context.Context, call int, req provider.Request) (*provider.Result, error)

	mu    sync.Mutex
	calls int
}

func (c *fakeClient) Name() string { return c.name }

func (c *fakeClient) Generate(ctx context.Context, req provider.Request) (*provider.Result, error) {
	c.mu.Lock()
	c.calls++
	n := c.calls
	c.mu.Unlock()
	return c.fn(ctx, n, req)
}

func (c *fakeClient) HealthCheck(ctx context.Context) registry.HealthStatus {
	return registry.HealthHealthy
}

func (c *fakeClient) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// fakeClients satisfies ClientSource over a fixed provider map.
type fakeClients map[string]provider.Client

func (f fakeClients) ForProvider(name string) (provider.Client, error) {
	c, ok := f[name]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", name)
	}
	return c, nil
}

func succeedWith(content string, in, out int) func(ctx context.Context, call int, req provider.Request) (*provider.Result, error) {
	return func(ctx context.Context, call int, req provider.Request) (*provider.Result, error) {
		return &provider.Result{Content: content, InputTokens: in, OutputTokens: out}, nil
	}
}

func rateLimited(name string) error {
	return &provider.Error{Provider: name, Kind: provider.KindRateLimit, Message: "quota exhausted", Retryable: true}
}

func serverError(name string) error {
	return &provider.Error{Provider: name, Kind: provider.KindServer, Message: "internal error", Retryable: true}
}

func newTestPipeline(t *testing.T, modelList []*registry.Model, clients fakeClients) (*Pipeline, *progress.Bus, *breaker.Manager) {
	t.Helper()
	bus := progress.NewBus(progress.NewMemoryStore(), config.DefaultConfig().Progress)
	breakers := breaker.NewManager(breaker.Settings{})
	reg := registry.NewWithModels(modelList)
	return NewPipeline(config.DefaultConfig(), reg, breakers, clients, bus), bus, breakers
}

// history drains the persisted messages for a request, in seq order.
func history(t *testing.T, bus *progress.Bus, requestID string) []*progress.Message {
	t.Helper()
	sub, err := bus.Subscribe(context.Background(), requestID, 0)
	require.NoError(t, err)
	defer sub.Close()

	var out []*progress.Message
	for {
		select {
		case m := <-sub.Messages():
			out = append(out, m)
		case <-time.After(100 * time.Millisecond):
			return out
		}
	}
}

func kindsOf(msgs []*progress.Message) []progress.Kind {
	out := make([]progress.Kind, len(msgs))
	for i, m := range msgs {
		out[i] = m.Kind
	}
	return out
}

func findKind(msgs []*progress.Message, kind progress.Kind) (*progress.Message, bool) {
	for _, m := range msgs {
		if m.Kind == kind {
			return m, true
		}
	}
	return nil, false
}

func pipelineRequest(prompt string, mode config.ExecutionMode, estimated float64) *models.Request {
	return &models.Request{
		ID:            "req-1",
		Principal:     "user-1",
		Role:          config.RoleAuthenticated,
		Prompt:        prompt,
		Mode:          mode,
		Status:        models.StatusInProgress,
		EstimatedCost: estimated,
		CreatedAt:     time.Now(),
	}
}

func TestProcess_TrivialFastPath(t *testing.T) {
	modelA := reasoningModel("model-a", "alpha", 2e-6, 0.5, 0.95)
	modelB := reasoningModel("model-b", "beta", 10e-6, 0.5, 0.95)
	clients := fakeClients{
		"alpha": &fakeClient{name: "alpha", fn: succeedWith("Hello.", 10, 5)},
		"beta":  &fakeClient{name: "beta", fn: succeedWith("Hello.", 10, 5)},
	}
	p, bus, _ := newTestPipeline(t, []*registry.Model{modelA, modelB}, clients)

	req := pipelineRequest("Say hello in one word", config.ModeFast, 15e-6)
	outcome, err := p.Process(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, config.ComplexityTrivial, req.Complexity)
	require.Len(t, outcome.Subtasks, 1)
	assert.Equal(t, "model-a", outcome.Subtasks[0].AssignedModel)

	// Cost is tokens priced at the cheap model's rates.
	assert.InDelta(t, 10*1e-6+5*1e-6, outcome.Final.Cost.ActualCost, 1e-12)
	assert.InDelta(t, outcome.Final.Cost.ActualCost, req.ActualCost, 1e-12)
	assert.Equal(t, []string{"model-a"}, outcome.Final.ModelsUsed)

	msgs := history(t, bus, req.ID)
	assert.Equal(t, []progress.Kind{
		progress.KindAnalysisStarted,
		progress.KindAnalysisComplete,
		progress.KindDecompositionComplete,
		progress.KindRoutingComplete,
		progress.KindExecutionProgress,
		progress.KindSynthesisStarted,
		progress.KindFinalResponse,
	}, kindsOf(msgs))

	// Sequence numbers are dense from 1.
	for i, m := range msgs {
		assert.Equal(t, int64(i+1), m.Seq)
	}

	routing, ok := findKind(msgs, progress.KindRoutingComplete)
	require.True(t, ok)
	var payload progress.RoutingPayload
	require.NoError(t, json.Unmarshal(routing.Data, &payload))
	require.Len(t, payload.Assignments, 1)
	assert.Equal(t, "model-a", payload.Assignments[0].ModelID)
}

func TestProcess_FallbackOnRateLimit(t *testing.T) {
	modelA := reasoningModel("model-a", "alpha", 2e-6, 0.5, 0.95)
	modelB := reasoningModel("model-b", "beta", 10e-6, 0.5, 0.95)
	alpha := &fakeClient{name: "alpha", fn: func(ctx context.Context, call int, req provider.Request) (*provider.Result, error) {
		return nil, rateLimited("alpha")
	}}
	beta := &fakeClient{name: "beta", fn: succeedWith("Hello.", 10, 5)}
	p, bus, breakers := newTestPipeline(t, []*registry.Model{modelA, modelB}, fakeClients{"alpha": alpha, "beta": beta})

	req := pipelineRequest("Say hello in one word", config.ModeFast, 150e-6)
	outcome, err := p.Process(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, outcome.Responses, 1)
	resp := outcome.Responses[0]
	assert.True(t, resp.UsedFallback)
	assert.Equal(t, "model-b", resp.ModelID)
	require.NotNil(t, resp.FallbackReason)
	assert.Equal(t, "rate limit", *resp.FallbackReason)

	// A single failure never trips the breaker.
	assert.Equal(t, breaker.StateClosed, breakers.Get("alpha").State())

	msgs := history(t, bus, req.ID)
	exec, ok := findKind(msgs, progress.KindExecutionProgress)
	require.True(t, ok)
	var payload progress.ExecutionPayload
	require.NoError(t, json.Unmarshal(exec.Data, &payload))
	assert.True(t, payload.UsedFallback)
	assert.Equal(t, "model-a", payload.PrimaryModelFailed)
	assert.Equal(t, "model-b", payload.FallbackModel)
	assert.Equal(t, "rate limit", payload.FallbackReason)

	require.Len(t, outcome.Final.ProviderUsage, 1)
	assert.Equal(t, "beta", outcome.Final.ProviderUsage[0].Provider)
	assert.Equal(t, 1, outcome.Final.ProviderUsage[0].Calls)

	// The fallback selection is in the audit log after the primary.
	require.Len(t, outcome.Final.SelectionLog, 2)
	assert.False(t, outcome.Final.SelectionLog[0].Fallback)
	assert.True(t, outcome.Final.SelectionLog[1].Fallback)
}

func TestProcess_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	modelA := reasoningModel("model-a", "alpha", 2e-6, 0.5, 0.95)
	alpha := &fakeClient{name: "alpha", fn: func(ctx context.Context, call int, req provider.Request) (*provider.Result, error) {
		return nil, serverError("alpha")
	}}
	p, _, breakers := newTestPipeline(t, []*registry.Model{modelA}, fakeClients{"alpha": alpha})

	for i := 0; i < 5; i++ {
		req := pipelineRequest("Say hello in one word", config.ModeFast, 15e-6)
		req.ID = fmt.Sprintf("req-%d", i)
		_, err := p.Process(context.Background(), req)
		oe, ok := AsError(err)
		require.True(t, ok)
		assert.Equal(t, CodeOrchestrationFailed, oe.Code)
	}
	require.Equal(t, breaker.StateOpen, breakers.Get("alpha").State())
	require.Equal(t, 5, alpha.callCount())

	// With the breaker open the provider drops out of routing; the next
	// request fails fast without touching the network.
	req := pipelineRequest("Say hello in one word", config.ModeFast, 15e-6)
	req.ID = "req-after-open"
	_, err := p.Process(context.Background(), req)
	oe, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, CodeNoRoute, oe.Code)
	assert.Equal(t, 5, alpha.callCount())
}

func TestProcess_CostDiscrepancyEvent(t *testing.T) {
	expensive := reasoningModel("model-a", "alpha", 2e-5, 0.5, 0.95)
	alpha := &fakeClient{name: "alpha", fn: succeedWith("A long answer.", 600, 600)}
	p, bus, _ := newTestPipeline(t, []*registry.Model{expensive}, fakeClients{"alpha": alpha})

	// Actual spend 1200 tokens * 1e-5 = 0.012 against a 0.005 estimate.
	req := pipelineRequest("Say hello in one word", config.ModeBalanced, 0.005)
	outcome, err := p.Process(context.Background(), req)
	require.NoError(t, err)
	assert.InDelta(t, 0.012, outcome.Final.Cost.ActualCost, 1e-9)

	msgs := history(t, bus, req.ID)
	disc, ok := findKind(msgs, progress.KindCostDiscrepancy)
	require.True(t, ok, "expected a cost_discrepancy event")
	var payload progress.DiscrepancyPayload
	require.NoError(t, json.Unmarshal(disc.Data, &payload))
	assert.Equal(t, "over", payload.Direction)
	assert.InDelta(t, 1.4, payload.Ratio, 0.01)
	assert.Equal(t, "BALANCED", payload.Mode)

	// Discrepancy is informational: the request still completed.
	_, ok = findKind(msgs, progress.KindFinalResponse)
	assert.True(t, ok)
}

func TestProcess_BestQualityRedundantDispatchArbitrates(t *testing.T) {
	modelA := reasoningModel("model-a", "alpha", 2e-6, 0.5, 0.95)
	modelB := reasoningModel("model-b", "beta", 10e-6, 0.5, 0.95)
	clients := fakeClients{
		"alpha": &fakeClient{name: "alpha", fn: succeedWith("X is a caching proxy.", 10, 5)},
		"beta":  &fakeClient{name: "beta", fn: succeedWith("X is a message broker.", 10, 5)},
	}
	p, bus, _ := newTestPipeline(t, []*registry.Model{modelA, modelB}, clients)

	req := pipelineRequest("What is X?", config.ModeBestQuality, 1e-4)
	outcome, err := p.Process(context.Background(), req)
	require.NoError(t, err)

	// Both models answered the single subtask.
	require.Len(t, outcome.Responses, 2)
	require.Len(t, outcome.Final.Arbitrations, 1)
	decision := outcome.Final.Arbitrations[0]
	assert.Equal(t, models.ArbitrationInconclusive, decision.Outcome)
	assert.Contains(t, outcome.Final.Content, "Alternative A")
	assert.Contains(t, outcome.Final.Content, "Alternative B")

	msgs := history(t, bus, req.ID)
	_, ok := findKind(msgs, progress.KindArbitrationDecision)
	assert.True(t, ok, "competing answers must publish an arbitration event")
}

func TestProcess_PartialFailureAnnotates(t *testing.T) {
	// Reasoning is served; code generation has no provider at all.
	modelA := reasoningModel("model-a", "alpha", 2e-6, 0.5, 0.95)
	alpha := &fakeClient{name: "alpha", fn: succeedWith("Done.", 10, 5)}
	p, _, _ := newTestPipeline(t, []*registry.Model{modelA}, fakeClients{"alpha": alpha})

	req := pipelineRequest("Explain X, then write Python for X, then list 3 uses.", config.ModeBalanced, 1e-4)
	outcome, err := p.Process(context.Background(), req)
	require.NoError(t, err, "partial failure must not fail the request")

	require.NotEmpty(t, outcome.Final.Failed)
	assert.Contains(t, outcome.Final.Content, "could not be completed")
	assert.Less(t, outcome.Final.OverallConfidence, 0.9)
}

func TestProcess_InvalidInput(t *testing.T) {
	modelA := reasoningModel("model-a", "alpha", 2e-6, 0.5, 0.95)
	p, _, _ := newTestPipeline(t, []*registry.Model{modelA}, fakeClients{})

	_, err := p.Process(context.Background(), pipelineRequest("", config.ModeFast, 0))
	oe, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, CodeInvalidInput, oe.Code)
}

func TestProcess_Cancellation(t *testing.T) {
	modelA := reasoningModel("model-a", "alpha", 2e-6, 0.5, 0.95)
	alpha := &fakeClient{name: "alpha", fn: func(ctx context.Context, call int, req provider.Request) (*provider.Result, error) {
		<-ctx.Done()
		return nil, &provider.Error{Provider: "alpha", Kind: provider.KindTimeout, Message: "cancelled", Retryable: true}
	}}
	p, bus, _ := newTestPipeline(t, []*registry.Model{modelA}, fakeClients{"alpha": alpha})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	req := pipelineRequest("Say hello in one word", config.ModeFast, 15e-6)
	_, err := p.Process(ctx, req)
	oe, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, CodeCancelled, oe.Code)

	msgs := history(t, bus, req.ID)
	last := msgs[len(msgs)-1]
	assert.Equal(t, progress.KindCancelled, last.Kind, "cancelled must be the final event")
}
