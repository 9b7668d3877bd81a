package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/agentmemory/backend/internal/store"
)

// TaskStore is the Postgres-backed store.TaskStore.
type TaskStore struct {
	db *sql.DB
}

// NewTaskStore wraps db as a store.TaskStore.
func NewTaskStore(db *sql.DB) *TaskStore { return &TaskStore{db: db} }

// Create inserts a new task (wave) row.
func (s *TaskStore) Create(ctx context.Context, t *store.TaskData) error {
	if t.ID == uuid.Nil {
		t.ID = store.GenID()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, request_id, wave, created_at)
		VALUES ($1, $2, $3, now())`, t.ID, t.RequestID, t.Wave)
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

// Get fetches a task by id.
func (s *TaskStore) Get(ctx context.Context, id uuid.UUID) (*store.TaskData, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, request_id, wave, created_at FROM tasks WHERE id = $1`, id)

	var t store.TaskData
	if err := row.Scan(&t.ID, &t.RequestID, &t.Wave, &t.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get task: %w", err)
	}
	return &t, nil
}

// ListByRequest returns tasks for a request, ordered by wave.
func (s *TaskStore) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]*store.TaskData, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, request_id, wave, created_at FROM tasks
		WHERE request_id = $1 ORDER BY wave ASC`, requestID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var out []*store.TaskData
	for rows.Next() {
		var t store.TaskData
		if err := rows.Scan(&t.ID, &t.RequestID, &t.Wave, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}
