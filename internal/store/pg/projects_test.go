package pg

import (
	"context"
	"testing"

	"github.com/agentmemory/backend/internal/store"
)

func TestProjectStoreGetOrCreateIsIdempotentByPath(t *testing.T) {
	db := testDB(t)
	s := NewProjectStore(db)
	ctx := context.Background()

	first, err := s.GetOrCreate(ctx, "/repo/a", "repo-a")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	second, err := s.GetOrCreate(ctx, "/repo/a", "repo-a-renamed")
	if err != nil {
		t.Fatalf("GetOrCreate (2nd call): %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("GetOrCreate: ID = %s on 2nd call, want %s (same path)", second.ID, first.ID)
	}
}

func TestProjectStoreGetMissingReturnsNotFound(t *testing.T) {
	db := testDB(t)
	s := NewProjectStore(db)

	if _, err := s.Get(context.Background(), store.GenID()); err != store.ErrNotFound {
		t.Fatalf("Get: err = %v, want store.ErrNotFound", err)
	}
}

func TestProjectStoreDeleteMissingReturnsNotFound(t *testing.T) {
	db := testDB(t)
	s := NewProjectStore(db)

	if err := s.Delete(context.Background(), store.GenID()); err != store.ErrNotFound {
		t.Fatalf("Delete: err = %v, want store.ErrNotFound", err)
	}
}

func TestProjectStoreListOrdersByRecentFirst(t *testing.T) {
	db := testDB(t)
	s := NewProjectStore(db)
	ctx := context.Background()

	if _, err := s.GetOrCreate(ctx, "/repo/older", "older"); err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if _, err := s.GetOrCreate(ctx, "/repo/newer", "newer"); err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}

	got, err := s.List(ctx, store.PageOpts{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("List: len = %d, want 2", len(got))
	}
	if got[0].Path != "/repo/newer" {
		t.Fatalf("List[0].Path = %q, want the most recently created project first", got[0].Path)
	}
}
