package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/agentmemory/backend/internal/store"
)

// BatchStore is the Postgres-backed store.BatchStore.
type BatchStore struct {
	db *sql.DB
}

// NewBatchStore wraps db as a store.BatchStore.
func NewBatchStore(db *sql.DB) *BatchStore { return &BatchStore{db: db} }

// Create inserts a new batch/wave aggregate.
func (s *BatchStore) Create(ctx context.Context, b *store.BatchData) error {
	if b.ID == uuid.Nil {
		b.ID = store.GenID()
	}
	if b.Status == "" {
		b.Status = store.BatchStatusPending
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO batches (id, task_id, total, completed, failed, status, created_at, updated_at)
		VALUES ($1, $2, $3, 0, 0, $4, now(), now())`, b.ID, b.TaskID, b.Total, b.Status)
	if err != nil {
		return fmt.Errorf("create batch: %w", err)
	}
	return nil
}

func scanBatch(row interface{ Scan(...any) error }) (*store.BatchData, error) {
	var b store.BatchData
	if err := row.Scan(&b.ID, &b.TaskID, &b.Total, &b.Completed, &b.Failed, &b.Status, &b.CreatedAt, &b.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

const batchColumns = `id, task_id, total, completed, failed, status, created_at, updated_at`

// Get fetches a batch by id.
func (s *BatchStore) Get(ctx context.Context, id uuid.UUID) (*store.BatchData, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+batchColumns+` FROM batches WHERE id = $1`, id)
	b, err := scanBatch(row)
	if err != nil {
		return nil, fmt.Errorf("get batch: %w", err)
	}
	return b, nil
}

// RecordCompletion atomically increments a batch's completed or failed
// counter and, once every subtask has reported in, flips status to failed
// if any subtask failed and to completed otherwise.
func (s *BatchStore) RecordCompletion(ctx context.Context, id uuid.UUID, failed bool) (*store.BatchData, error) {
	col := "completed"
	if failed {
		col = "failed"
	}
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(`
		UPDATE batches SET %s = %s + 1,
			status = CASE WHEN completed + failed + 1 >= total THEN
				CASE WHEN failed + CASE WHEN $2 THEN 1 ELSE 0 END > 0 THEN $3 ELSE $4 END
				ELSE $5 END,
			updated_at = now()
		WHERE id = $1
		RETURNING `+batchColumns, col, col), id, failed,
		store.BatchStatusFailed, store.BatchStatusCompleted, store.BatchStatusRunning)

	b, err := scanBatch(row)
	if err != nil {
		return nil, fmt.Errorf("record batch completion: %w", err)
	}
	return b, nil
}
