package pg

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	"github.com/agentmemory/backend/internal/store"
)

// routingBaseWeight is the starting weight for a keyword/tool pair before
// any feedback has been recorded.
const routingBaseWeight = 1.0

// RoutingStore is the Postgres-backed store.RoutingStore. Weight is
// recomputed server-side on every upsert using
// weight = base * success_rate * log(usage_count+1), so readers never see a
// stale derived value.
type RoutingStore struct {
	db *sql.DB
}

// NewRoutingStore wraps db as a store.RoutingStore.
func NewRoutingStore(db *sql.DB) *RoutingStore { return &RoutingStore{db: db} }

// Upsert records one routing outcome for (keyword, toolName), recomputing
// the entry's weight from the updated usage/success counters.
func (s *RoutingStore) Upsert(ctx context.Context, keyword, toolName, toolType string, success bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin routing upsert: %w", err)
	}
	defer tx.Rollback()

	successInc := 0
	if success {
		successInc = 1
	}

	row := tx.QueryRowContext(ctx, `
		INSERT INTO routing_entries (id, keyword, tool_name, tool_type, usage_count, success_count, weight, updated_at)
		VALUES (gen_random_uuid(), $1, $2, $3, 1, $4, $5, now())
		ON CONFLICT (keyword, tool_name) DO UPDATE SET
			usage_count = routing_entries.usage_count + 1,
			success_count = routing_entries.success_count + $4,
			updated_at = now()
		RETURNING usage_count, success_count`,
		keyword, toolName, toolType, successInc, routingBaseWeight*float64(successInc))

	var usage, successCount int64
	if err := row.Scan(&usage, &successCount); err != nil {
		return fmt.Errorf("upsert routing entry: %w", err)
	}

	weight := computeRoutingWeight(usage, successCount)
	if _, err := tx.ExecContext(ctx, `
		UPDATE routing_entries SET weight = $3 WHERE keyword = $1 AND tool_name = $2`,
		keyword, toolName, weight); err != nil {
		return fmt.Errorf("update routing weight: %w", err)
	}

	return tx.Commit()
}

// computeRoutingWeight implements weight = base * success_rate * log(usage_count+1).
func computeRoutingWeight(usageCount, successCount int64) float64 {
	if usageCount <= 0 {
		return routingBaseWeight
	}
	successRate := float64(successCount) / float64(usageCount)
	return routingBaseWeight * successRate * math.Log(float64(usageCount)+1)
}

func scanRoutingEntry(row interface{ Scan(...any) error }) (*store.RoutingEntryData, error) {
	var e store.RoutingEntryData
	if err := row.Scan(&e.ID, &e.Keyword, &e.ToolName, &e.ToolType, &e.UsageCount, &e.SuccessCount, &e.Weight, &e.UpdatedAt); err != nil {
		return nil, err
	}
	return &e, nil
}

const routingColumns = `id, keyword, tool_name, tool_type, usage_count, success_count, weight, updated_at`

// ListByKeyword returns every tool scored for keyword, highest weight first.
func (s *RoutingStore) ListByKeyword(ctx context.Context, keyword string) ([]*store.RoutingEntryData, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+routingColumns+` FROM routing_entries WHERE keyword = $1 ORDER BY weight DESC`, keyword)
	if err != nil {
		return nil, fmt.Errorf("list routing entries by keyword: %w", err)
	}
	defer rows.Close()
	return scanRoutingRows(rows)
}

// All returns every routing entry, for bulk export/diagnostics.
func (s *RoutingStore) All(ctx context.Context) ([]*store.RoutingEntryData, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+routingColumns+` FROM routing_entries`)
	if err != nil {
		return nil, fmt.Errorf("list all routing entries: %w", err)
	}
	defer rows.Close()
	return scanRoutingRows(rows)
}

func scanRoutingRows(rows *sql.Rows) ([]*store.RoutingEntryData, error) {
	var out []*store.RoutingEntryData
	for rows.Next() {
		e, err := scanRoutingEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan routing entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
