package pg

import (
	"context"
	"testing"

	"github.com/agentmemory/backend/internal/store"
)

func TestCapacityStoreUpsertThenGet(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	capacity := NewCapacityStore(db)

	c := &store.AgentCapacityData{
		AgentID:         "agent-1",
		CurrentUsage:    1000,
		ConsumptionRate: 2.5,
		Zone:            store.ZoneYellow,
	}
	if err := capacity.Upsert(ctx, c); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, err := capacity.Get(ctx, "agent-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.CurrentUsage != 1000 || got.Zone != store.ZoneYellow {
		t.Fatalf("got = %+v, want CurrentUsage=1000 Zone=yellow", got)
	}
}

func TestCapacityStoreUpsertOverwritesZone(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	capacity := NewCapacityStore(db)

	c := &store.AgentCapacityData{AgentID: "agent-2", Zone: store.ZoneGreen}
	if err := capacity.Upsert(ctx, c); err != nil {
		t.Fatalf("Upsert (green): %v", err)
	}
	c.Zone = store.ZoneRed
	c.CurrentUsage = 99000
	if err := capacity.Upsert(ctx, c); err != nil {
		t.Fatalf("Upsert (red): %v", err)
	}

	got, err := capacity.Get(ctx, "agent-2")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Zone != store.ZoneRed || got.CurrentUsage != 99000 {
		t.Fatalf("got = %+v, want Zone=red CurrentUsage=99000", got)
	}
}

func TestCapacityStoreGetMissingReturnsNotFound(t *testing.T) {
	db := testDB(t)
	capacity := NewCapacityStore(db)

	if _, err := capacity.Get(context.Background(), "unknown-agent"); err != store.ErrNotFound {
		t.Fatalf("Get: err = %v, want store.ErrNotFound", err)
	}
}

func TestCapacityStoreAllReturnsEveryAgent(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	capacity := NewCapacityStore(db)

	for _, id := range []string{"agent-a", "agent-b"} {
		if err := capacity.Upsert(ctx, &store.AgentCapacityData{AgentID: id, Zone: store.ZoneGreen}); err != nil {
			t.Fatalf("Upsert(%s): %v", id, err)
		}
	}

	got, err := capacity.All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("All: len = %d, want 2", len(got))
	}
}
