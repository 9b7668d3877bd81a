package pg

import (
	"database/sql"
	"os"
	"testing"
)

// testDB opens a connection against TEST_DATABASE_URL and truncates every
// table before handing it to the caller. Tests that need Postgres skip
// themselves in short mode or when the env var isn't set, the same gate the
// host tool's own store tests use for anything that needs a live backend.
func testDB(t *testing.T) *sql.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres-backed test in short mode")
	}
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping postgres-backed test")
	}

	db, err := OpenDB(dsn, 5)
	if err != nil {
		t.Fatalf("OpenDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	truncateAll(t, db)
	return db
}

func truncateAll(t *testing.T, db *sql.DB) {
	t.Helper()
	const stmt = `TRUNCATE TABLE
		agent_context, snapshots, agent_registry, agent_capacity, token_consumption,
		routing_entries, subscriptions, messages, actions, batches, subtasks,
		tasks, requests, sessions, projects
		RESTART IDENTITY CASCADE`
	if _, err := db.Exec(stmt); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
}
