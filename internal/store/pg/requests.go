package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/agentmemory/backend/internal/store"
)

// RequestStore is the Postgres-backed store.RequestStore.
type RequestStore struct {
	db *sql.DB
}

// NewRequestStore wraps db as a store.RequestStore.
func NewRequestStore(db *sql.DB) *RequestStore { return &RequestStore{db: db} }

// Create inserts a new request row.
func (s *RequestStore) Create(ctx context.Context, r *store.RequestData) error {
	if r.ID == uuid.Nil {
		r.ID = store.GenID()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO requests (id, session_id, prompt, prompt_type, created_at)
		VALUES ($1, $2, $3, $4, now())`, r.ID, r.SessionID, r.Prompt, r.PromptType)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return nil
}

// Get fetches a request by id.
func (s *RequestStore) Get(ctx context.Context, id uuid.UUID) (*store.RequestData, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, session_id, prompt, prompt_type, created_at FROM requests WHERE id = $1`, id)

	var r store.RequestData
	if err := row.Scan(&r.ID, &r.SessionID, &r.Prompt, &r.PromptType, &r.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get request: %w", err)
	}
	return &r, nil
}

// ListBySession returns requests for a session, newest first.
func (s *RequestStore) ListBySession(ctx context.Context, sessionID uuid.UUID, page store.PageOpts) ([]*store.RequestData, error) {
	page = page.Normalize(50, 200)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, prompt, prompt_type, created_at FROM requests
		WHERE session_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		sessionID, page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	defer rows.Close()

	var out []*store.RequestData
	for rows.Next() {
		var r store.RequestData
		if err := rows.Scan(&r.ID, &r.SessionID, &r.Prompt, &r.PromptType, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}
