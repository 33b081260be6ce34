package database

import (
	"context"
	"database/sql"
	"fmt"
)

// CreateGINIndexes creates the full-text search GIN index on request
// prompts. The history endpoint's substring filter stays fast without it,
// but degrades to sequential scans on large tables.
func CreateGINIndexes(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_requests_prompt_gin
		ON requests USING gin(to_tsvector('english', prompt))`)
	if err != nil {
		return fmt.Errorf("failed to create prompt GIN index: %w", err)
	}
	return nil
}
