package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ai-council/councild/pkg/cost"
	"github.com/ai-council/councild/pkg/database"
	"github.com/ai-council/councild/pkg/models"
	"github.com/ai-council/councild/pkg/orchestrator"
)

// OutcomeService persists what a completed pipeline run produced:
// subtasks, agent responses, the final response, and the per-provider
// cost breakdown, in one transaction.
type OutcomeService struct {
	db *database.Client
}

// NewOutcomeService creates a new OutcomeService.
func NewOutcomeService(db *database.Client) *OutcomeService {
	return &OutcomeService{db: db}
}

// Save writes the full outcome of a request.
func (s *OutcomeService) Save(ctx context.Context, requestID string, outcome *orchestrator.Outcome) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin outcome tx: %w", err)
	}
	defer tx.Rollback()

	for _, st := range outcome.Subtasks {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO subtasks (subtask_id, request_id, idx, description, task_type, risk,
			                      status, assigned_model, fallback_model, error_message,
			                      created_at, completed_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			st.ID, st.RequestID, st.Index, st.Description, st.Type, st.Risk,
			st.Status, st.AssignedModel, st.FallbackModel, st.ErrorMessage,
			st.CreatedAt, st.CompletedAt)
		if err != nil {
			return fmt.Errorf("failed to insert subtask: %w", err)
		}
	}

	for _, r := range outcome.Responses {
		assessment, err := json.Marshal(r.Assessment)
		if err != nil {
			return fmt.Errorf("failed to marshal assessment: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO responses (response_id, subtask_id, request_id, model_id, provider,
			                       content, assessment, input_tokens, output_tokens, cost,
			                       tokens_estimated, used_fallback, fallback_reason,
			                       elapsed_ms, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
			r.ID, r.SubtaskID, r.RequestID, r.ModelID, r.Provider,
			r.Content, assessment, r.InputTokens, r.OutputTokens, r.Cost,
			r.TokensEstimated, r.UsedFallback, r.FallbackReason,
			r.Elapsed.Milliseconds(), r.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert response: %w", err)
		}
	}

	final := outcome.Final
	metadata, err := json.Marshal(final)
	if err != nil {
		return fmt.Errorf("failed to marshal final response: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO final_responses (request_id, content, overall_confidence, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		requestID, final.Content, final.OverallConfidence, metadata, final.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert final response: %w", err)
	}

	for _, entry := range cost.ProviderUsage(requestID, outcome.Responses) {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO provider_cost_breakdown (request_id, provider, model_id, calls,
			                                     input_tokens, output_tokens, cost)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			entry.RequestID, entry.Provider, entry.ModelID, entry.Calls,
			entry.InputTokens, entry.OutputTokens, entry.Cost)
		if err != nil {
			return fmt.Errorf("failed to insert provider cost breakdown: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit outcome: %w", err)
	}
	return nil
}

// Result returns the persisted final response for a request.
func (s *OutcomeService) Result(ctx context.Context, requestID string) (*models.FinalResponse, error) {
	var metadata []byte
	err := s.db.GetContext(ctx, &metadata,
		`SELECT metadata FROM final_responses WHERE request_id = $1`, requestID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get final response: %w", err)
	}

	var final models.FinalResponse
	if err := json.Unmarshal(metadata, &final); err != nil {
		return nil, fmt.Errorf("failed to unmarshal final response: %w", err)
	}
	return &final, nil
}

// ProviderUsage returns the persisted per-provider spend for a request.
func (s *OutcomeService) ProviderUsage(ctx context.Context, requestID string) ([]*models.ProviderCostEntry, error) {
	entries := []*models.ProviderCostEntry{}
	err := s.db.SelectContext(ctx, &entries, `
		SELECT * FROM provider_cost_breakdown
		WHERE request_id = $1
		ORDER BY provider, model_id`, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to list provider usage: %w", err)
	}
	return entries, nil
}

// Subtasks returns a request's subtasks in decomposition order.
func (s *OutcomeService) Subtasks(ctx context.Context, requestID string) ([]*models.Subtask, error) {
	subtasks := []*models.Subtask{}
	err := s.db.SelectContext(ctx, &subtasks, `
		SELECT * FROM subtasks WHERE request_id = $1 ORDER BY idx`, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subtasks: %w", err)
	}
	return subtasks, nil
}
