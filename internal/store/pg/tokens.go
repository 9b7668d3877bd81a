package pg

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/agentmemory/backend/internal/store"
)

// TokenConsumptionStore is the Postgres-backed store.TokenConsumptionStore.
type TokenConsumptionStore struct {
	db *sql.DB
}

// NewTokenConsumptionStore wraps db as a store.TokenConsumptionStore.
func NewTokenConsumptionStore(db *sql.DB) *TokenConsumptionStore {
	return &TokenConsumptionStore{db: db}
}

// Append inserts one immutable token-usage record.
func (s *TokenConsumptionStore) Append(ctx context.Context, t *store.TokenConsumptionData) error {
	if t.ID == uuid.Nil {
		t.ID = store.GenID()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO token_consumption (id, agent_id, session_id, tool_name, input_tokens, output_tokens, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())`,
		t.ID, t.AgentID, t.SessionID, t.ToolName, t.InputTokens, t.OutputTokens)
	if err != nil {
		return fmt.Errorf("append token consumption: %w", err)
	}
	return nil
}

// SumSince returns the total input/output tokens consumed by agentID since
// the given time, used by the Capacity Monitor's rolling window.
func (s *TokenConsumptionStore) SumSince(ctx context.Context, agentID string, since time.Time) (int64, int64, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(input_tokens), 0), COALESCE(SUM(output_tokens), 0)
		FROM token_consumption WHERE agent_id = $1 AND created_at >= $2`, agentID, since)

	var in, out int64
	if err := row.Scan(&in, &out); err != nil {
		return 0, 0, fmt.Errorf("sum token consumption: %w", err)
	}
	return in, out, nil
}

// ListByAgent returns individual consumption records since the given time,
// oldest first, for consumption-rate estimation.
func (s *TokenConsumptionStore) ListByAgent(ctx context.Context, agentID string, since time.Time) ([]*store.TokenConsumptionData, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, agent_id, session_id, tool_name, input_tokens, output_tokens, created_at
		FROM token_consumption WHERE agent_id = $1 AND created_at >= $2 ORDER BY created_at ASC`,
		agentID, since)
	if err != nil {
		return nil, fmt.Errorf("list token consumption: %w", err)
	}
	defer rows.Close()

	var out []*store.TokenConsumptionData
	for rows.Next() {
		var t store.TokenConsumptionData
		if err := rows.Scan(&t.ID, &t.AgentID, &t.SessionID, &t.ToolName, &t.InputTokens, &t.OutputTokens, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan token consumption: %w", err)
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}
