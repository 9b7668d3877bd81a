package pg

import (
	"database/sql"
	"fmt"

	"github.com/agentmemory/backend/internal/store"
)

// NewPGStores opens a Postgres connection pool and wires every store
// interface to a concrete implementation sharing that pool.
func NewPGStores(dsn string, poolSize int) (*store.Stores, error) {
	db, err := OpenDB(dsn, poolSize)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	return &store.Stores{
		Projects:      NewProjectStore(db),
		Sessions:      NewSessionStore(db),
		Requests:      NewRequestStore(db),
		Tasks:         NewTaskStore(db),
		Subtasks:      NewSubtaskStore(db),
		Actions:       NewActionStore(db),
		Messages:      NewMessageStore(db),
		Subscriptions: NewSubscriptionStore(db),
		Routing:       NewRoutingStore(db),
		Tokens:        NewTokenConsumptionStore(db),
		Capacity:      NewCapacityStore(db),
		Registry:      NewRegistryStore(db),
		Snapshots:     NewSnapshotStore(db),
		AgentContext:  NewAgentContextStore(db),
		Batches:       NewBatchStore(db),
		Notify:        NewPGNotifier(db),
		Close:         db.Close,
	}, nil
}

// rowsAffected reports whether exactly one row was affected by res, wrapping
// the RowsAffected error path that every atomic-update store method shares.
func rowsAffected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}
