package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/agentmemory/backend/internal/store"
)

// CapacityStore is the Postgres-backed store.CapacityStore.
type CapacityStore struct {
	db *sql.DB
}

// NewCapacityStore wraps db as a store.CapacityStore.
func NewCapacityStore(db *sql.DB) *CapacityStore { return &CapacityStore{db: db} }

const capacityColumns = `agent_id, current_usage, consumption_rate, predicted_exhaustion_minutes,
	zone, last_compact_at, compact_count, updated_at`

// Get fetches an agent's capacity aggregate.
func (s *CapacityStore) Get(ctx context.Context, agentID string) (*store.AgentCapacityData, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+capacityColumns+` FROM agent_capacity WHERE agent_id = $1`, agentID)

	var c store.AgentCapacityData
	if err := row.Scan(&c.AgentID, &c.CurrentUsage, &c.ConsumptionRate, &c.PredictedExhaustMins,
		&c.Zone, &c.LastCompactAt, &c.CompactCount, &c.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get agent capacity: %w", err)
	}
	return &c, nil
}

// Upsert writes the full capacity aggregate, as recomputed by the Capacity
// Monitor on every tick.
func (s *CapacityStore) Upsert(ctx context.Context, c *store.AgentCapacityData) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agent_capacity (agent_id, current_usage, consumption_rate,
			predicted_exhaustion_minutes, zone, last_compact_at, compact_count, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (agent_id) DO UPDATE SET
			current_usage = $2, consumption_rate = $3, predicted_exhaustion_minutes = $4,
			zone = $5, last_compact_at = $6, compact_count = $7, updated_at = now()`,
		c.AgentID, c.CurrentUsage, c.ConsumptionRate, c.PredictedExhaustMins,
		c.Zone, c.LastCompactAt, c.CompactCount)
	if err != nil {
		return fmt.Errorf("upsert agent capacity: %w", err)
	}
	return nil
}

// All returns the capacity aggregate for every agent the monitor is
// tracking.
func (s *CapacityStore) All(ctx context.Context) ([]*store.AgentCapacityData, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+capacityColumns+` FROM agent_capacity`)
	if err != nil {
		return nil, fmt.Errorf("list agent capacity: %w", err)
	}
	defer rows.Close()

	var out []*store.AgentCapacityData
	for rows.Next() {
		var c store.AgentCapacityData
		if err := rows.Scan(&c.AgentID, &c.CurrentUsage, &c.ConsumptionRate, &c.PredictedExhaustMins,
			&c.Zone, &c.LastCompactAt, &c.CompactCount, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan agent capacity: %w", err)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}
