package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/agentmemory/backend/internal/store"
)

// SnapshotStore is the Postgres-backed store.SnapshotStore. The payload
// column holds whatever bytes internal/snapshot already compressed — this
// layer is deliberately unaware of the compression format.
type SnapshotStore struct {
	db *sql.DB
}

// NewSnapshotStore wraps db as a store.SnapshotStore.
func NewSnapshotStore(db *sql.DB) *SnapshotStore { return &SnapshotStore{db: db} }

const snapshotColumns = `id, session_id, compact_id, payload, modified_files, summary, created_at`

func scanSnapshot(row interface{ Scan(...any) error }) (*store.SnapshotData, error) {
	var sn store.SnapshotData
	var modified pq.StringArray
	if err := row.Scan(&sn.ID, &sn.SessionID, &sn.CompactID, &sn.Payload, &modified, &sn.Summary, &sn.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	sn.ModifiedFiles = []string(modified)
	return &sn, nil
}

// Save inserts a snapshot row inside its own transaction so a failure
// midway never leaves a partially written payload visible to Restore.
func (s *SnapshotStore) Save(ctx context.Context, sn *store.SnapshotData) error {
	if sn.ID == uuid.Nil {
		sn.ID = store.GenID()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save snapshot: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO snapshots (id, session_id, compact_id, payload, modified_files, summary, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())`,
		sn.ID, sn.SessionID, sn.CompactID, sn.Payload, pq.StringArray(sn.ModifiedFiles), sn.Summary)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return tx.Commit()
}

// GetLatest returns the most recent snapshot for a session.
func (s *SnapshotStore) GetLatest(ctx context.Context, sessionID uuid.UUID) (*store.SnapshotData, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+snapshotColumns+` FROM snapshots WHERE session_id = $1
		ORDER BY created_at DESC LIMIT 1`, sessionID)
	sn, err := scanSnapshot(row)
	if err != nil {
		return nil, fmt.Errorf("get latest snapshot: %w", err)
	}
	return sn, nil
}

// Get returns a specific compaction's snapshot.
func (s *SnapshotStore) Get(ctx context.Context, sessionID uuid.UUID, compactID string) (*store.SnapshotData, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+snapshotColumns+` FROM snapshots WHERE session_id = $1 AND compact_id = $2`,
		sessionID, compactID)
	sn, err := scanSnapshot(row)
	if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	return sn, nil
}

// DeleteOlderThan prunes snapshots created before cutoff.
func (s *SnapshotStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old snapshots: %w", err)
	}
	return res.RowsAffected()
}
