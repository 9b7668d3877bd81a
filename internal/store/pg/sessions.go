package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/agentmemory/backend/internal/store"
)

// SessionStore is the Postgres-backed store.SessionStore.
type SessionStore struct {
	db *sql.DB
}

// NewSessionStore wraps db as a store.SessionStore.
func NewSessionStore(db *sql.DB) *SessionStore { return &SessionStore{db: db} }

// Create inserts a new session row.
func (s *SessionStore) Create(ctx context.Context, sess *store.SessionData) error {
	if sess.ID == uuid.Nil {
		sess.ID = store.GenID()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, project_id, session_key, started_at)
		VALUES ($1, $2, $3, $4)`,
		sess.ID, sess.ProjectID, sess.SessionKey, sess.StartedAt)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func scanSession(row interface {
	Scan(...any) error
}) (*store.SessionData, error) {
	var sess store.SessionData
	if err := row.Scan(&sess.ID, &sess.ProjectID, &sess.SessionKey, &sess.StartedAt,
		&sess.EndedAt, &sess.ToolCalls, &sess.Successes, &sess.Errors,
		&sess.Compacted, &sess.CompactCount); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &sess, nil
}

const sessionColumns = `id, project_id, session_key, started_at, ended_at,
	tool_calls, successes, errors, compacted, compact_count`

// Get fetches a session by id.
func (s *SessionStore) Get(ctx context.Context, id uuid.UUID) (*store.SessionData, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
	sess, err := scanSession(row)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

// GetByKey fetches a session by its caller-chosen idempotent key.
func (s *SessionStore) GetByKey(ctx context.Context, sessionKey string) (*store.SessionData, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE session_key = $1`, sessionKey)
	sess, err := scanSession(row)
	if err != nil {
		return nil, fmt.Errorf("get session by key: %w", err)
	}
	return sess, nil
}

// Close sets a session's end timestamp.
func (s *SessionStore) Close(ctx context.Context, id uuid.UUID, endedAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE sessions SET ended_at = $2 WHERE id = $1`, id, endedAt)
	if err != nil {
		return fmt.Errorf("close session: %w", err)
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

// RecordToolCall increments the session's tool-call counters.
func (s *SessionStore) RecordToolCall(ctx context.Context, id uuid.UUID, success bool) error {
	col := "errors"
	if success {
		col = "successes"
	}
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(
		`UPDATE sessions SET tool_calls = tool_calls + 1, %s = %s + 1 WHERE id = $1`, col, col), id)
	if err != nil {
		return fmt.Errorf("record tool call: %w", err)
	}
	return nil
}

// IncrementCompactCount marks the session compacted and bumps its counter.
func (s *SessionStore) IncrementCompactCount(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET compacted = true, compact_count = compact_count + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("increment compact count: %w", err)
	}
	return nil
}

// List returns sessions for a project, newest first.
func (s *SessionStore) List(ctx context.Context, projectID uuid.UUID, page store.PageOpts) ([]*store.SessionData, error) {
	page = page.Normalize(50, 200)
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sessionColumns+` FROM sessions
		WHERE project_id = $1 ORDER BY started_at DESC LIMIT $2 OFFSET $3`,
		projectID, page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []*store.SessionData
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}
