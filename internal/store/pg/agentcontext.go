package pg

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/agentmemory/backend/internal/store"
)

// AgentContextStore is the Postgres-backed store.AgentContextStore.
type AgentContextStore struct {
	db *sql.DB
}

// NewAgentContextStore wraps db as a store.AgentContextStore.
func NewAgentContextStore(db *sql.DB) *AgentContextStore { return &AgentContextStore{db: db} }

// Upsert writes or replaces one agent's surviving context for a compaction.
func (s *AgentContextStore) Upsert(ctx context.Context, a *store.AgentContextData) error {
	if a.ID == uuid.Nil {
		a.ID = store.GenID()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agent_context (id, session_id, compact_id, agent_id, progress_summary, tools_used, role_context, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (session_id, compact_id, agent_id) DO UPDATE SET
			progress_summary = $5, tools_used = $6, role_context = $7, updated_at = now()`,
		a.ID, a.SessionID, a.CompactID, a.AgentID, a.ProgressSummary, pq.StringArray(a.ToolsUsed), a.RoleContext)
	if err != nil {
		return fmt.Errorf("upsert agent context: %w", err)
	}
	return nil
}

// ListBySnapshot returns every agent's surviving context for one compaction.
func (s *AgentContextStore) ListBySnapshot(ctx context.Context, sessionID uuid.UUID, compactID string) ([]*store.AgentContextData, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, compact_id, agent_id, progress_summary, tools_used, role_context, updated_at
		FROM agent_context WHERE session_id = $1 AND compact_id = $2`, sessionID, compactID)
	if err != nil {
		return nil, fmt.Errorf("list agent context: %w", err)
	}
	defer rows.Close()

	var out []*store.AgentContextData
	for rows.Next() {
		var a store.AgentContextData
		var tools pq.StringArray
		if err := rows.Scan(&a.ID, &a.SessionID, &a.CompactID, &a.AgentID, &a.ProgressSummary, &tools, &a.RoleContext, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan agent context: %w", err)
		}
		a.ToolsUsed = []string(tools)
		out = append(out, &a)
	}
	return out, rows.Err()
}
