package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/agentmemory/backend/internal/store"
)

// SubtaskStore is the Postgres-backed store.SubtaskStore. Claim and
// Complete use row-level atomic updates rather than a SELECT-then-UPDATE
// pair, so two agents racing for the same subtask never both win.
type SubtaskStore struct {
	db *sql.DB
}

// NewSubtaskStore wraps db as a store.SubtaskStore.
func NewSubtaskStore(db *sql.DB) *SubtaskStore { return &SubtaskStore{db: db} }

const subtaskColumns = `id, task_id, session_id, agent_type, agent_id, description,
	status, priority, retry_count, parent_agent_id, batch_id, blocked_by, created_at, updated_at`

func scanSubtask(row interface{ Scan(...any) error }) (*store.SubtaskData, error) {
	var t store.SubtaskData
	var blockedBy pq.StringArray
	if err := row.Scan(&t.ID, &t.TaskID, &t.SessionID, &t.AgentType, &t.AgentID, &t.Description,
		&t.Status, &t.Priority, &t.RetryCount, &t.ParentAgentID, &t.BatchID, &blockedBy,
		&t.CreatedAt, &t.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	for _, raw := range blockedBy {
		if id, err := uuid.Parse(raw); err == nil {
			t.BlockedBy = append(t.BlockedBy, id)
		}
	}
	return &t, nil
}

func blockedByArray(ids []uuid.UUID) pq.StringArray {
	out := make(pq.StringArray, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

// Create inserts a new subtask in pending status.
func (s *SubtaskStore) Create(ctx context.Context, t *store.SubtaskData) error {
	if t.ID == uuid.Nil {
		t.ID = store.GenID()
	}
	if t.Status == "" {
		t.Status = store.SubtaskStatusPending
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subtasks (id, task_id, session_id, agent_type, agent_id, description,
			status, priority, retry_count, parent_agent_id, batch_id, blocked_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, $9, $10, $11, now(), now())`,
		t.ID, t.TaskID, t.SessionID, t.AgentType, t.AgentID, t.Description,
		t.Status, t.Priority, t.ParentAgentID, t.BatchID, blockedByArray(t.BlockedBy))
	if err != nil {
		return fmt.Errorf("create subtask: %w", err)
	}
	return nil
}

// Get fetches a subtask by id.
func (s *SubtaskStore) Get(ctx context.Context, id uuid.UUID) (*store.SubtaskData, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+subtaskColumns+` FROM subtasks WHERE id = $1`, id)
	t, err := scanSubtask(row)
	if err != nil {
		return nil, fmt.Errorf("get subtask: %w", err)
	}
	return t, nil
}

// ListByTask returns every subtask in a wave.
func (s *SubtaskStore) ListByTask(ctx context.Context, taskID uuid.UUID) ([]*store.SubtaskData, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+subtaskColumns+` FROM subtasks
		WHERE task_id = $1 ORDER BY created_at ASC`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list subtasks by task: %w", err)
	}
	defer rows.Close()
	return scanSubtaskRows(rows)
}

// ListByStatus returns subtasks in a given status, highest priority first
// and oldest first within a priority.
func (s *SubtaskStore) ListByStatus(ctx context.Context, status string, page store.PageOpts) ([]*store.SubtaskData, error) {
	page = page.Normalize(50, 200)
	rows, err := s.db.QueryContext(ctx, `SELECT `+subtaskColumns+` FROM subtasks
		WHERE status = $1 ORDER BY priority DESC, created_at ASC LIMIT $2 OFFSET $3`,
		status, page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("list subtasks by status: %w", err)
	}
	defer rows.Close()
	return scanSubtaskRows(rows)
}

// Search filters subtasks by optional agent type, agent-id, and status set.
func (s *SubtaskStore) Search(ctx context.Context, agentType, agentID string, statuses []string, page store.PageOpts) ([]*store.SubtaskData, error) {
	page = page.Normalize(50, 200)
	query := `SELECT ` + subtaskColumns + ` FROM subtasks WHERE 1=1`
	args := []any{}
	n := 0
	nextArg := func(v any) string {
		n++
		args = append(args, v)
		return fmt.Sprintf("$%d", n)
	}
	if agentType != "" {
		query += " AND agent_type = " + nextArg(agentType)
	}
	if agentID != "" {
		query += " AND agent_id = " + nextArg(agentID)
	}
	if len(statuses) > 0 {
		query += " AND status = ANY(" + nextArg(pq.StringArray(statuses)) + ")"
	}
	query += " ORDER BY created_at DESC LIMIT " + nextArg(page.Limit) + " OFFSET " + nextArg(page.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search subtasks: %w", err)
	}
	defer rows.Close()
	return scanSubtaskRows(rows)
}

func scanSubtaskRows(rows *sql.Rows) ([]*store.SubtaskData, error) {
	var out []*store.SubtaskData
	for rows.Next() {
		t, err := scanSubtask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subtask: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Claim atomically transitions a pending, unblocked subtask to running and
// assigns agentID as its owner. It returns false (no error) if another
// caller already claimed it, it is still blocked, or it does not exist.
func (s *SubtaskStore) Claim(ctx context.Context, id uuid.UUID, agentID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE subtasks SET status = $3, agent_id = $2, updated_at = now()
		WHERE id = $1 AND status = $4 AND cardinality(blocked_by) = 0`,
		id, agentID, store.SubtaskStatusRunning, store.SubtaskStatusPending)
	if err != nil {
		return false, fmt.Errorf("claim subtask: %w", err)
	}
	return rowsAffected(res)
}

// UpdateStatus sets a subtask's status directly (pause/resume/fail).
func (s *SubtaskStore) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE subtasks SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("update subtask status: %w", err)
	}
	ok, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if !ok {
		return store.ErrNotFound
	}
	return nil
}

// Complete marks a subtask completed and removes it from the blocked_by
// array of every dependent subtask in the same transaction, returning the
// ids of subtasks that became unblocked as a result.
func (s *SubtaskStore) Complete(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin complete subtask tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE subtasks SET status = $2, updated_at = now() WHERE id = $1`,
		id, store.SubtaskStatusCompleted)
	if err != nil {
		return nil, fmt.Errorf("complete subtask: %w", err)
	}
	if ok, err := rowsAffected(res); err != nil {
		return nil, err
	} else if !ok {
		return nil, store.ErrNotFound
	}

	rows, err := tx.QueryContext(ctx, `
		UPDATE subtasks SET blocked_by = array_remove(blocked_by, $1), updated_at = now()
		WHERE $1 = ANY(blocked_by)
		RETURNING id, cardinality(blocked_by)`, id.String())
	if err != nil {
		return nil, fmt.Errorf("unblock dependents: %w", err)
	}

	var unblocked []uuid.UUID
	for rows.Next() {
		var depID uuid.UUID
		var remaining int
		if err := rows.Scan(&depID, &remaining); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan dependent: %w", err)
		}
		if remaining == 0 {
			unblocked = append(unblocked, depID)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit complete subtask: %w", err)
	}
	return unblocked, nil
}

// IncrementRetry bumps a subtask's retry counter and returns the new value.
func (s *SubtaskStore) IncrementRetry(ctx context.Context, id uuid.UUID) (int, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE subtasks SET retry_count = retry_count + 1, updated_at = now()
		WHERE id = $1 RETURNING retry_count`, id)
	var n int
	if err := row.Scan(&n); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, store.ErrNotFound
		}
		return 0, fmt.Errorf("increment retry: %w", err)
	}
	return n, nil
}
