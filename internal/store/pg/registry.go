package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/agentmemory/backend/internal/store"
)

// RegistryStore is the Postgres-backed store.RegistryStore.
type RegistryStore struct {
	db *sql.DB
}

// NewRegistryStore wraps db as a store.RegistryStore.
func NewRegistryStore(db *sql.DB) *RegistryStore { return &RegistryStore{db: db} }

const registryColumns = `agent_type, category, allowed_tools, forbidden_actions, max_files,
	waves, recommended_model, default_scope`

func scanRegistryEntry(row interface{ Scan(...any) error }) (*store.AgentRegistryEntryData, error) {
	var e store.AgentRegistryEntryData
	var allowed, forbidden pq.StringArray
	var waves pq.Int64Array
	var defaultScope []byte
	if err := row.Scan(&e.AgentType, &e.Category, &allowed, &forbidden, &e.MaxFiles,
		&waves, &e.RecommendedModel, &defaultScope); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	e.AllowedTools = []string(allowed)
	e.ForbiddenActions = []string(forbidden)
	for _, w := range waves {
		e.Waves = append(e.Waves, int(w))
	}
	e.DefaultScope = defaultScope
	return &e, nil
}

// Get fetches the declarative configuration for one agent type.
func (s *RegistryStore) Get(ctx context.Context, agentType string) (*store.AgentRegistryEntryData, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+registryColumns+` FROM agent_registry WHERE agent_type = $1`, agentType)
	e, err := scanRegistryEntry(row)
	if err != nil {
		return nil, fmt.Errorf("get registry entry: %w", err)
	}
	return e, nil
}

// All returns every registered agent type.
func (s *RegistryStore) All(ctx context.Context) ([]*store.AgentRegistryEntryData, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+registryColumns+` FROM agent_registry ORDER BY agent_type`)
	if err != nil {
		return nil, fmt.Errorf("list registry entries: %w", err)
	}
	defer rows.Close()

	var out []*store.AgentRegistryEntryData
	for rows.Next() {
		e, err := scanRegistryEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan registry entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Upsert writes or replaces the declarative configuration for an agent type.
func (s *RegistryStore) Upsert(ctx context.Context, e *store.AgentRegistryEntryData) error {
	waves := make(pq.Int64Array, len(e.Waves))
	for i, w := range e.Waves {
		waves[i] = int64(w)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agent_registry (agent_type, category, allowed_tools, forbidden_actions,
			max_files, waves, recommended_model, default_scope)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (agent_type) DO UPDATE SET
			category = $2, allowed_tools = $3, forbidden_actions = $4, max_files = $5,
			waves = $6, recommended_model = $7, default_scope = $8`,
		e.AgentType, e.Category, pq.StringArray(e.AllowedTools), pq.StringArray(e.ForbiddenActions),
		e.MaxFiles, waves, e.RecommendedModel, []byte(e.DefaultScope))
	if err != nil {
		return fmt.Errorf("upsert registry entry: %w", err)
	}
	return nil
}
