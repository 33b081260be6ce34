package progress

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// PostgresStore persists progress messages in the progress_messages
// table. Sequence assignment runs inside a transaction; publishes for a
// single request are already serialized by the bus, so the MAX(seq)+1
// subquery cannot race with itself.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore creates a store over an existing database handle.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type messageRow struct {
	Seq       int64     `db:"seq"`
	RequestID string    `db:"request_id"`
	Kind      string    `db:"kind"`
	CreatedAt time.Time `db:"created_at"`
	Payload   []byte    `db:"payload"`
}

func (r *messageRow) toMessage() *Message {
	return &Message{
		Seq:       r.Seq,
		RequestID: r.RequestID,
		Kind:      Kind(r.Kind),
		Timestamp: r.CreatedAt,
		Data:      r.Payload,
	}
}

// Append implements Store.
func (s *PostgresStore) Append(ctx context.Context, requestID string, kind Kind, data []byte) (*Message, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin append tx: %w", err)
	}
	defer tx.Rollback()

	var row messageRow
	err = tx.QueryRowxContext(ctx, `
		INSERT INTO progress_messages (request_id, seq, kind, payload, created_at)
		VALUES ($1,
		        (SELECT COALESCE(MAX(seq), 0) + 1 FROM progress_messages WHERE request_id = $1),
		        $2, $3, NOW())
		RETURNING seq, request_id, kind, payload, created_at`,
		requestID, string(kind), data).StructScan(&row)
	if err != nil {
		return nil, fmt.Errorf("failed to append progress message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit progress message: %w", err)
	}
	return row.toMessage(), nil
}

// ListSince implements Store.
func (s *PostgresStore) ListSince(ctx context.Context, requestID string, sinceSeq int64, limit int) ([]*Message, error) {
	query := `
		SELECT seq, request_id, kind, payload, created_at
		FROM progress_messages
		WHERE request_id = $1 AND seq > $2
		ORDER BY seq ASC`
	args := []any{requestID, sinceSeq}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}

	var rows []messageRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list progress messages: %w", err)
	}

	out := make([]*Message, len(rows))
	for i := range rows {
		out[i] = rows[i].toMessage()
	}
	return out, nil
}

// Prune implements Store. Pruning never rewinds sequence assignment:
// MAX(seq) is taken over remaining rows, so the bus guards against
// pruning the newest row of an active request via acked-seq tracking.
func (s *PostgresStore) Prune(ctx context.Context, requestID string, uptoSeq int64) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM progress_messages
		WHERE request_id = $1
		  AND seq <= $2
		  AND seq < (SELECT MAX(seq) FROM progress_messages WHERE request_id = $1)`,
		requestID, uptoSeq)
	if err != nil {
		return fmt.Errorf("failed to prune progress messages: %w", err)
	}
	return nil
}

// DeleteExpired implements Store.
func (s *PostgresStore) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM progress_messages WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired progress messages: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
