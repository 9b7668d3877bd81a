package pg

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/agentmemory/backend/internal/store"
)

// ActionStore is the Postgres-backed store.ActionStore.
type ActionStore struct {
	db *sql.DB
}

// NewActionStore wraps db as a store.ActionStore.
func NewActionStore(db *sql.DB) *ActionStore { return &ActionStore{db: db} }

const actionColumns = `id, subtask_id, session_id, tool_name, tool_type, input_head,
	exit_code, duration_ms, file_paths, input_tokens, output_tokens, created_at`

// Create inserts an action record. Writes here are expected to be
// fire-and-forget from the caller's perspective (see internal/tracking).
func (s *ActionStore) Create(ctx context.Context, a *store.ActionData) error {
	if a.ID == uuid.Nil {
		a.ID = store.GenID()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO actions (id, subtask_id, session_id, tool_name, tool_type, input_head,
			exit_code, duration_ms, file_paths, input_tokens, output_tokens, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now())`,
		a.ID, a.SubtaskID, a.SessionID, a.ToolName, a.ToolType, a.InputHead,
		a.ExitCode, a.DurationMS, pq.StringArray(a.FilePaths), a.InputTokens, a.OutTokens)
	if err != nil {
		return fmt.Errorf("create action: %w", err)
	}
	return nil
}

func scanAction(row interface{ Scan(...any) error }) (*store.ActionData, error) {
	var a store.ActionData
	var paths pq.StringArray
	if err := row.Scan(&a.ID, &a.SubtaskID, &a.SessionID, &a.ToolName, &a.ToolType, &a.InputHead,
		&a.ExitCode, &a.DurationMS, &paths, &a.InputTokens, &a.OutTokens, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.FilePaths = []string(paths)
	return &a, nil
}

// ListBySubtask returns actions for a subtask, oldest first.
func (s *ActionStore) ListBySubtask(ctx context.Context, subtaskID uuid.UUID, page store.PageOpts) ([]*store.ActionData, error) {
	page = page.Normalize(100, 500)
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+actionColumns+` FROM actions WHERE subtask_id = $1
		ORDER BY created_at ASC LIMIT $2 OFFSET $3`, subtaskID, page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("list actions by subtask: %w", err)
	}
	defer rows.Close()
	return scanActionRows(rows)
}

// ListBySession returns actions for a session, newest first.
func (s *ActionStore) ListBySession(ctx context.Context, sessionID uuid.UUID, page store.PageOpts) ([]*store.ActionData, error) {
	page = page.Normalize(100, 500)
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+actionColumns+` FROM actions WHERE session_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`, sessionID, page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("list actions by session: %w", err)
	}
	defer rows.Close()
	return scanActionRows(rows)
}

func scanActionRows(rows *sql.Rows) ([]*store.ActionData, error) {
	var out []*store.ActionData
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// DeleteOlderThan prunes action rows created before cutoff, used by the
// Cleanup Worker to bound telemetry retention.
func (s *ActionStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM actions WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old actions: %w", err)
	}
	return res.RowsAffected()
}
