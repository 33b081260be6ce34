// Package orchestrator implements the request pipeline: analysis,
// decomposition, routing, parallel execution with fallback, arbitration,
// and synthesis. Every stage publishes its progress on the bus.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ai-council/councild/pkg/breaker"
	"github.com/ai-council/councild/pkg/config"
	"github.com/ai-council/councild/pkg/cost"
	"github.com/ai-council/councild/pkg/models"
	"github.com/ai-council/councild/pkg/progress"
	"github.com/ai-council/councild/pkg/registry"
)

const (
	minPromptLength = 1
	maxPromptLength = 5000
)

// Pipeline wires the stages over the shared components. One Pipeline
// serves all requests; per-request state lives on the arguments.
type Pipeline struct {
	cfg      *config.Config
	registry *registry.Registry
	router   *Router
	executor *Executor
	arbiter  *Arbiter
	bus      *progress.Bus
}

// NewPipeline assembles a pipeline from its collaborators.
func NewPipeline(cfg *config.Config, reg *registry.Registry, breakers *breaker.Manager, clients ClientSource, bus *progress.Bus) *Pipeline {
	router := NewRouter(reg, breakers)
	return &Pipeline{
		cfg:      cfg,
		registry: reg,
		router:   router,
		executor: NewExecutor(reg, breakers, clients, router, bus),
		arbiter:  NewArbiter(reg),
		bus:      bus,
	}
}

// Outcome carries everything a completed request produced, for
// persistence by the caller.
type Outcome struct {
	Final     *models.FinalResponse
	Subtasks  []*models.Subtask
	Responses []*models.AgentResponse
}

// Process runs one request through the full pipeline. The request's
// Intent, Complexity, and ActualCost fields are filled in as stages
// complete. Failures are returned as *Error with a stable code.
func (p *Pipeline) Process(ctx context.Context, req *models.Request) (*Outcome, error) {
	if n := len(req.Prompt); n < minPromptLength || n > maxPromptLength {
		return nil, p.fail(ctx, req, CodeInvalidInput,
			fmt.Sprintf("prompt length %d outside [%d,%d]", n, minPromptLength, maxPromptLength))
	}
	if len(p.registry.All()) == 0 {
		return nil, p.fail(ctx, req, CodeNoProviders, "no providers available")
	}

	start := time.Now()
	slog.Info("Processing request",
		"request_id", req.ID, "mode", req.Mode, "principal", req.Principal)

	// Analysis.
	p.publish(ctx, req.ID, progress.KindAnalysisStarted, nil)
	analysis := Analyze(req.Prompt)
	req.Intent = analysis.Intent
	req.Complexity = analysis.Complexity
	p.publish(ctx, req.ID, progress.KindAnalysisComplete, progress.AnalysisPayload{
		Intent:     analysis.Intent,
		Complexity: string(analysis.Complexity),
	})

	// Decomposition.
	subtasks := Decompose(req, analysis)
	p.publish(ctx, req.ID, progress.KindDecompositionComplete, decompositionPayload(subtasks))

	if err := p.checkCancelled(ctx, req); err != nil {
		return nil, err
	}

	// Routing.
	selections, unroutable := p.router.RouteAll(subtasks, req.Mode)
	if len(selections) == 0 {
		return nil, p.fail(ctx, req, CodeNoRoute, "no subtask could be routed to any model")
	}
	for _, st := range subtasks {
		if sel, ok := selections[st.ID]; ok {
			st.AssignedModel = sel.Model.ID
			st.Status = models.SubtaskRunning
		}
	}
	p.publish(ctx, req.ID, progress.KindRoutingComplete, routingPayload(subtasks, selections))

	// Execution.
	exec := p.executor.Execute(ctx, req, subtasks, selections, unroutable)
	if err := p.checkCancelled(ctx, req); err != nil {
		return nil, err
	}
	if len(exec.Responses) == 0 {
		return nil, p.fail(ctx, req, CodeOrchestrationFailed, "all subtasks failed")
	}

	// Arbitration. Decisions are recorded for every answered subtask;
	// events are published only when answers actually competed.
	kept := make(map[string][]*models.AgentResponse, len(subtasks))
	var decisions []*models.ArbitrationDecision
	for _, st := range subtasks {
		responses := exec.BySubtask[st.ID]
		if len(responses) == 0 {
			continue
		}
		decision, winners := p.arbiter.Arbitrate(st, responses)
		kept[st.ID] = winners
		decisions = append(decisions, decision)
		if len(responses) > 1 {
			p.publish(ctx, req.ID, progress.KindArbitrationDecision, progress.ArbitrationPayload{
				SubtaskID: st.ID,
				Outcome:   string(decision.Outcome),
				Winner:    decision.WinnerResponseID,
				RunnerUp:  decision.RunnerUpResponseID,
				Delta:     decision.Delta,
				Reason:    decision.Reason,
			})
		}
	}

	// Synthesis.
	p.publish(ctx, req.ID, progress.KindSynthesisStarted, nil)
	content, confidence, used := Synthesize(subtasks, kept, exec.Failed)

	breakdown := cost.Breakdown(req.EstimatedCost, exec.Responses)
	req.ActualCost = breakdown.ActualCost
	p.reportDiscrepancy(ctx, req, breakdown.ActualCost)

	final := &models.FinalResponse{
		RequestID:         req.ID,
		Content:           content,
		OverallConfidence: confidence,
		Cost:              breakdown,
		ModelsUsed:        used,
		ProviderUsage:     cost.ProviderUsage(req.ID, exec.Responses),
		SelectionLog:      selectionLog(subtasks, selections, exec.Selections),
		Arbitrations:      decisions,
		Failed:            exec.Failed,
		CreatedAt:         time.Now(),
	}
	p.publish(ctx, req.ID, progress.KindFinalResponse, final)

	slog.Info("Request completed",
		"request_id", req.ID,
		"subtasks", len(subtasks),
		"failed", len(exec.Failed),
		"actual_cost", breakdown.ActualCost,
		"elapsed", time.Since(start))

	return &Outcome{
		Final:     final,
		Subtasks:  subtasks,
		Responses: exec.Responses,
	}, nil
}

// checkCancelled maps context cancellation to the terminal cancelled
// path: one cancelled event, then silence.
func (p *Pipeline) checkCancelled(ctx context.Context, req *models.Request) error {
	if ctx.Err() == nil {
		return nil
	}
	p.publish(context.WithoutCancel(ctx), req.ID, progress.KindCancelled, progress.ErrorPayload{
		Code:    string(CodeCancelled),
		Message: "request cancelled",
	})
	return NewError(CodeCancelled, "request cancelled")
}

// fail publishes a terminal error event and returns the typed error.
func (p *Pipeline) fail(ctx context.Context, req *models.Request, code ErrorCode, message string) error {
	err := NewError(code, message)
	slog.Warn("Request failed",
		"request_id", req.ID, "code", code, "message", message)
	p.publish(ctx, req.ID, progress.KindError, progress.ErrorPayload{
		Code:    string(code),
		Message: message,
	})
	return err
}

func (p *Pipeline) publish(ctx context.Context, requestID string, kind progress.Kind, payload any) {
	if _, err := p.bus.Publish(ctx, requestID, kind, payload); err != nil {
		slog.Error("Failed to publish progress event",
			"request_id", requestID, "kind", kind, "error", err)
	}
}

// reportDiscrepancy compares actual spend against the submit-time
// estimate. Informational only; the request never fails on it.
func (p *Pipeline) reportDiscrepancy(ctx context.Context, req *models.Request, actual float64) {
	d, ok := cost.CheckDiscrepancy(req.EstimatedCost, actual, p.cfg.Cost.DiscrepancyThreshold)
	if !ok {
		return
	}
	slog.Warn("Cost estimate discrepancy",
		"request_id", req.ID, "direction", d.Direction, "ratio", d.Ratio,
		"estimated", d.Estimated, "actual", d.Actual)
	p.publish(ctx, req.ID, progress.KindCostDiscrepancy, progress.DiscrepancyPayload{
		Direction: d.Direction,
		Ratio:     d.Ratio,
		Mode:      string(req.Mode),
		Estimated: d.Estimated,
		Actual:    d.Actual,
	})
}

func decompositionPayload(subtasks []*models.Subtask) progress.DecompositionPayload {
	payload := progress.DecompositionPayload{SubtaskCount: len(subtasks)}
	for _, st := range subtasks {
		payload.Subtasks = append(payload.Subtasks, progress.DecomposedSubtask{
			SubtaskID:   st.ID,
			TaskType:    string(st.Type),
			Description: st.Description,
		})
	}
	return payload
}

func routingPayload(subtasks []*models.Subtask, selections map[string]*Selection) progress.RoutingPayload {
	var payload progress.RoutingPayload
	for _, st := range subtasks {
		sel, ok := selections[st.ID]
		if !ok {
			continue
		}
		payload.Assignments = append(payload.Assignments, progress.RoutingAssignment{
			SubtaskID: st.ID,
			TaskType:  string(st.Type),
			ModelID:   sel.Model.ID,
			Provider:  sel.Model.Provider,
			Score:     sel.Entry.Score,
			Reason:    sel.Entry.Reason,
		})
	}
	return payload
}

// selectionLog is the full audit trail: the initial bindings in subtask
// order, then the fallback and redundant selections made mid-flight.
func selectionLog(subtasks []*models.Subtask, selections map[string]*Selection, extra []*models.SelectionEntry) []*models.SelectionEntry {
	var log []*models.SelectionEntry
	for _, st := range subtasks {
		if sel, ok := selections[st.ID]; ok {
			log = append(log, sel.Entry)
		}
	}
	return append(log, extra...)
}
