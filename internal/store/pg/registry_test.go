package pg

import (
	"context"
	"testing"

	"github.com/agentmemory/backend/internal/store"
)

func TestRegistryStoreUpsertThenGet(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	registry := NewRegistryStore(db)

	entry := &store.AgentRegistryEntryData{
		AgentType:        "custom-agent",
		Category:         "custom",
		AllowedTools:     []string{"read", "edit"},
		ForbiddenActions: []string{"delete"},
		MaxFiles:         10,
		Waves:            []int{1, 2},
		RecommendedModel: "sonnet",
		DefaultScope:     []byte(`{}`),
	}
	if err := registry.Upsert(ctx, entry); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, err := registry.Get(ctx, "custom-agent")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Category != "custom" || got.MaxFiles != 10 || len(got.Waves) != 2 {
		t.Fatalf("got = %+v, want Category=custom MaxFiles=10 Waves=[1 2]", got)
	}
}

func TestRegistryStoreUpsertReplacesExisting(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	registry := NewRegistryStore(db)

	entry := &store.AgentRegistryEntryData{AgentType: "replace-me", Category: "v1", MaxFiles: 1, DefaultScope: []byte(`{}`)}
	if err := registry.Upsert(ctx, entry); err != nil {
		t.Fatalf("Upsert (v1): %v", err)
	}
	entry.Category = "v2"
	entry.MaxFiles = 2
	if err := registry.Upsert(ctx, entry); err != nil {
		t.Fatalf("Upsert (v2): %v", err)
	}

	got, err := registry.Get(ctx, "replace-me")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Category != "v2" || got.MaxFiles != 2 {
		t.Fatalf("got = %+v, want Category=v2 MaxFiles=2", got)
	}
}

func TestRegistryStoreGetMissingReturnsNotFound(t *testing.T) {
	db := testDB(t)
	registry := NewRegistryStore(db)

	if _, err := registry.Get(context.Background(), "does-not-exist"); err != store.ErrNotFound {
		t.Fatalf("Get: err = %v, want store.ErrNotFound", err)
	}
}

func TestRegistryStoreAllReturnsEveryEntry(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	registry := NewRegistryStore(db)

	for _, agentType := range []string{"type-a", "type-b"} {
		entry := &store.AgentRegistryEntryData{AgentType: agentType, Category: "cat", DefaultScope: []byte(`{}`)}
		if err := registry.Upsert(ctx, entry); err != nil {
			t.Fatalf("Upsert(%s): %v", agentType, err)
		}
	}

	got, err := registry.All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("All: len = %d, want 2", len(got))
	}
}
