package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/agentmemory/backend/internal/store"
)

// ProjectStore is the Postgres-backed store.ProjectStore.
type ProjectStore struct {
	db *sql.DB
}

// NewProjectStore wraps db as a store.ProjectStore.
func NewProjectStore(db *sql.DB) *ProjectStore { return &ProjectStore{db: db} }

// GetOrCreate returns the project rooted at path, creating it if absent.
// The unique index on path makes this race-safe under concurrent callers.
func (s *ProjectStore) GetOrCreate(ctx context.Context, path, name string) (*store.ProjectData, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO projects (id, path, name, created_at, updated_at)
		VALUES (gen_random_uuid(), $1, $2, now(), now())
		ON CONFLICT (path) DO UPDATE SET updated_at = projects.updated_at
		RETURNING id, path, name, created_at, updated_at`, path, name)

	var p store.ProjectData
	if err := row.Scan(&p.ID, &p.Path, &p.Name, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, fmt.Errorf("get or create project: %w", err)
	}
	return &p, nil
}

// Get fetches a project by id.
func (s *ProjectStore) Get(ctx context.Context, id uuid.UUID) (*store.ProjectData, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, path, name, created_at, updated_at FROM projects WHERE id = $1`, id)

	var p store.ProjectData
	if err := row.Scan(&p.ID, &p.Path, &p.Name, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get project: %w", err)
	}
	return &p, nil
}

// Delete removes a project; ON DELETE CASCADE on the sessions/requests/
// tasks/subtasks foreign keys handles the rest.
func (s *ProjectStore) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	ok, err := rowsAffected(res)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	if !ok {
		return store.ErrNotFound
	}
	return nil
}

// List returns projects ordered by most recently created.
func (s *ProjectStore) List(ctx context.Context, page store.PageOpts) ([]*store.ProjectData, error) {
	page = page.Normalize(50, 200)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, path, name, created_at, updated_at FROM projects
		ORDER BY created_at DESC LIMIT $1 OFFSET $2`, page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var out []*store.ProjectData
	for rows.Next() {
		var p store.ProjectData
		if err := rows.Scan(&p.ID, &p.Path, &p.Name, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}
