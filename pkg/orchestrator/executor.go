package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/ai-council/councild/pkg/breaker"
	"github.com/ai-council/councild/pkg/config"
	"github.com/ai-council/councild/pkg/cost"
	"github.com/ai-council/councild/pkg/models"
	"github.com/ai-council/councild/pkg/progress"
	"github.com/ai-council/councild/pkg/provider"
	"github.com/ai-council/councild/pkg/registry"
)

// ClientSource resolves a provider key to its wire client.
// *provider.Factory satisfies it; tests inject scripted clients.
type ClientSource interface {
	ForProvider(name string) (provider.Client, error)
}

// Executor runs routed subtasks concurrently under the mode's
// parallelism cap, with one fallback re-route per subtask on provider
// failure.
type Executor struct {
	registry *registry.Registry
	breakers *breaker.Manager
	clients  ClientSource
	router   *Router
	bus      *progress.Bus
}

// NewExecutor creates an executor.
func NewExecutor(reg *registry.Registry, breakers *breaker.Manager, clients ClientSource, router *Router, bus *progress.Bus) *Executor {
	return &Executor{
		registry: reg,
		breakers: breakers,
		clients:  clients,
		router:   router,
		bus:      bus,
	}
}

// ExecutionResult is everything execution produced for a request.
type ExecutionResult struct {
	// Responses holds every successful AgentResponse, including
	// redundant dispatches awaiting arbitration.
	Responses []*models.AgentResponse

	// BySubtask groups responses by subtask id.
	BySubtask map[string][]*models.AgentResponse

	// Failed lists subtasks that produced no answer at all.
	Failed []*models.FailedSubtask

	// Selections holds fallback and redundant-dispatch routing entries
	// made during execution, to be appended to the request's log.
	Selections []*models.SelectionEntry
}

// Execute runs all routed subtasks. Per-subtask failures never abort
// the request; the synthesizer annotates the gaps. Unroutable subtasks
// are folded in as failures.
func (e *Executor) Execute(ctx context.Context, req *models.Request, subtasks []*models.Subtask, selections map[string]*Selection, unroutable map[string]error) *ExecutionResult {
	params := config.ParamsFor(req.Mode)
	sem := semaphore.NewWeighted(int64(params.MaxParallel))

	result := &ExecutionResult{BySubtask: make(map[string][]*models.AgentResponse)}
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, st := range subtasks {
		if err := unroutable[st.ID]; err != nil {
			e.markFailed(ctx, result, &mu, st, err.Error())
			continue
		}
		sel := selections[st.ID]

		wg.Add(1)
		go func(st *models.Subtask, sel *Selection) {
			defer wg.Done()
			e.runSubtask(ctx, req, st, sel, params, sem, result, &mu)
		}(st, sel)
	}
	wg.Wait()

	sort.Slice(result.Failed, func(i, j int) bool {
		return result.Failed[i].SubtaskID < result.Failed[j].SubtaskID
	})
	return result
}

// runSubtask executes one subtask: the primary dispatch with its
// fallback path, plus a redundant dispatch in BEST_QUALITY when a
// second model is available.
func (e *Executor) runSubtask(ctx context.Context, req *models.Request, st *models.Subtask, sel *Selection, params config.ModeParams, sem *semaphore.Weighted, result *ExecutionResult, mu *sync.Mutex) {
	var redundant *Selection
	if req.Mode == config.ModeBestQuality {
		// A second opinion for arbitration; best-effort, no fallback.
		if alt, err := e.router.Route(st, req.Mode, map[string]bool{sel.Model.ID: true}); err == nil {
			redundant = alt
			mu.Lock()
			result.Selections = append(result.Selections, alt.Entry)
			mu.Unlock()
		}
	}

	var wg sync.WaitGroup
	if redundant != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				return
			}
			defer sem.Release(1)
			if resp, _ := e.attempt(ctx, st, redundant.Model, params); resp != nil {
				e.record(ctx, result, mu, st, resp)
			}
		}()
	}

	if err := sem.Acquire(ctx, 1); err != nil {
		wg.Wait()
		return
	}
	primaryResp, primaryErr := e.attempt(ctx, st, sel.Model, params)
	sem.Release(1)

	if primaryResp != nil {
		st.Status = models.SubtaskCompleted
		now := time.Now()
		st.CompletedAt = &now
		e.record(ctx, result, mu, st, primaryResp)
		wg.Wait()
		return
	}
	if ctx.Err() != nil {
		wg.Wait()
		return
	}

	e.fallback(ctx, req, st, sel, params, sem, result, mu, primaryErr)
	wg.Wait()
}

// fallback re-routes once with the failed model excluded and retries.
func (e *Executor) fallback(ctx context.Context, req *models.Request, st *models.Subtask, sel *Selection, params config.ModeParams, sem *semaphore.Weighted, result *ExecutionResult, mu *sync.Mutex, primaryErr error) {
	reason := failureReason(primaryErr)
	slog.Warn("Primary model failed, attempting fallback",
		"request_id", req.ID, "subtask_id", st.ID,
		"model", sel.Model.ID, "reason", reason)

	alt, routeErr := e.router.Route(st, req.Mode, map[string]bool{sel.Model.ID: true})
	if routeErr != nil {
		e.markFailed(ctx, result, mu, st,
			fmt.Sprintf("%s; no fallback available", reason))
		return
	}
	mu.Lock()
	result.Selections = append(result.Selections, alt.Entry)
	mu.Unlock()

	if err := sem.Acquire(ctx, 1); err != nil {
		return
	}
	resp, err := e.attempt(ctx, st, alt.Model, params)
	sem.Release(1)

	if resp == nil {
		if ctx.Err() != nil {
			return
		}
		e.markFailed(ctx, result, mu, st,
			fmt.Sprintf("%s; fallback %s: %s", reason, alt.Model.ID, failureReason(err)))
		return
	}

	resp.UsedFallback = true
	fr := reason
	resp.FallbackReason = &fr

	st.Status = models.SubtaskCompleted
	st.FallbackModel = &alt.Model.ID
	now := time.Now()
	st.CompletedAt = &now

	mu.Lock()
	result.Responses = append(result.Responses, resp)
	result.BySubtask[st.ID] = append(result.BySubtask[st.ID], resp)
	mu.Unlock()

	e.publish(ctx, st.RequestID, progress.ExecutionPayload{
		SubtaskID:          st.ID,
		Status:             "completed",
		ModelID:            alt.Model.ID,
		Confidence:         resp.Assessment.Confidence,
		Cost:               resp.Cost,
		ElapsedMS:          resp.Elapsed.Milliseconds(),
		UsedFallback:       true,
		PrimaryModelFailed: sel.Model.ID,
		FallbackModel:      alt.Model.ID,
		FallbackReason:     reason,
	})
}

// attempt performs one provider call under the breaker and the mode's
// call deadline.
func (e *Executor) attempt(ctx context.Context, st *models.Subtask, m *registry.Model, params config.ModeParams) (*models.AgentResponse, error) {
	br := e.breakers.Get(m.Provider)
	if !br.Allow() {
		return nil, NewError(CodeNoRoute,
			fmt.Sprintf("circuit open for provider %s", m.Provider))
	}

	client, err := e.clients.ForProvider(m.Provider)
	if err != nil {
		br.RecordFailure()
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, params.CallDeadline)
	defer cancel()

	start := time.Now()
	res, err := client.Generate(callCtx, provider.Request{
		Model:       m.Name,
		Prompt:      st.Description,
		MaxTokens:   maxTokensFor(st, params),
		Temperature: 0.7,
	})
	elapsed := time.Since(start)

	if err != nil {
		br.RecordFailure()
		return nil, err
	}
	br.RecordSuccess()

	return &models.AgentResponse{
		ID:              uuid.NewString(),
		SubtaskID:       st.ID,
		RequestID:       st.RequestID,
		ModelID:         m.ID,
		Provider:        m.Provider,
		Content:         res.Content,
		Assessment:      extractAssessment(res.Content, st),
		InputTokens:     res.InputTokens,
		OutputTokens:    res.OutputTokens,
		Cost:            cost.CallCost(m, res.InputTokens, res.OutputTokens),
		TokensEstimated: res.TokensEstimated,
		Elapsed:         elapsed,
		CreatedAt:       time.Now(),
	}, nil
}

// record stores a successful response and publishes its progress event.
func (e *Executor) record(ctx context.Context, result *ExecutionResult, mu *sync.Mutex, st *models.Subtask, resp *models.AgentResponse) {
	mu.Lock()
	result.Responses = append(result.Responses, resp)
	result.BySubtask[st.ID] = append(result.BySubtask[st.ID], resp)
	mu.Unlock()

	e.publish(ctx, st.RequestID, progress.ExecutionPayload{
		SubtaskID:  st.ID,
		Status:     "completed",
		ModelID:    resp.ModelID,
		Confidence: resp.Assessment.Confidence,
		Cost:       resp.Cost,
		ElapsedMS:  resp.Elapsed.Milliseconds(),
	})
}

// markFailed records a subtask that produced no answer. The request
// continues; the synthesizer notes the gap.
func (e *Executor) markFailed(ctx context.Context, result *ExecutionResult, mu *sync.Mutex, st *models.Subtask, reason string) {
	st.Status = models.SubtaskFailed
	st.ErrorMessage = &reason

	mu.Lock()
	result.Failed = append(result.Failed, &models.FailedSubtask{
		SubtaskID:   st.ID,
		Description: st.Description,
		Reason:      reason,
	})
	mu.Unlock()

	e.publish(ctx, st.RequestID, progress.ExecutionPayload{
		SubtaskID: st.ID,
		Status:    "failed",
		Error:     reason,
	})
}

func (e *Executor) publish(ctx context.Context, requestID string, payload progress.ExecutionPayload) {
	if _, err := e.bus.Publish(ctx, requestID, progress.KindExecutionProgress, payload); err != nil {
		slog.Error("Failed to publish execution progress",
			"request_id", requestID, "error", err)
	}
}

// maxTokensFor sizes the completion budget from the subtask length and
// the mode's output multiplier, with a sane floor.
func maxTokensFor(st *models.Subtask, params config.ModeParams) int {
	n := int(math.Ceil(float64(len(st.Description)) * 0.25 * params.OutputMultiplier))
	if n < 256 {
		n = 256
	}
	return n
}

// failureReason turns a dispatch error into the short reason string
// carried on fallback events. Raw provider payloads never surface.
func failureReason(err error) string {
	if pe, ok := provider.AsError(err); ok {
		switch pe.Kind {
		case provider.KindRateLimit:
			return "rate limit"
		case provider.KindTimeout:
			return "timeout"
		case provider.KindTransport:
			return "transport error"
		case provider.KindAuth:
			return "auth error"
		case provider.KindServer:
			return "server error"
		default:
			return "invalid request"
		}
	}
	if oe, ok := AsError(err); ok {
		return oe.Message
	}
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
