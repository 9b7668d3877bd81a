package capacity

import (
	"context"
	"testing"
	"time"

	"github.com/agentmemory/backend/internal/store"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		fraction float64
		want     string
	}{
		{0.0, store.ZoneGreen},
		{0.49, store.ZoneGreen},
		{0.50, store.ZoneYellow},
		{0.74, store.ZoneYellow},
		{0.75, store.ZoneOrange},
		{0.89, store.ZoneOrange},
		{0.90, store.ZoneRed},
		{1.20, store.ZoneRed},
	}
	for _, c := range cases {
		if got := classify(c.fraction); got != c.want {
			t.Errorf("classify(%v) = %q, want %q", c.fraction, got, c.want)
		}
	}
}

type fakeCapacityStore struct {
	byAgent map[string]*store.AgentCapacityData
}

func (f *fakeCapacityStore) Get(ctx context.Context, agentID string) (*store.AgentCapacityData, error) {
	c, ok := f.byAgent[agentID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return c, nil
}

func (f *fakeCapacityStore) Upsert(ctx context.Context, c *store.AgentCapacityData) error {
	if f.byAgent == nil {
		f.byAgent = map[string]*store.AgentCapacityData{}
	}
	f.byAgent[c.AgentID] = c
	return nil
}

func (f *fakeCapacityStore) All(ctx context.Context) ([]*store.AgentCapacityData, error) {
	var out []*store.AgentCapacityData
	for _, c := range f.byAgent {
		out = append(out, c)
	}
	return out, nil
}

type fakeTokenStore struct {
	input, output int64
}

func (f *fakeTokenStore) Append(ctx context.Context, t *store.TokenConsumptionData) error { return nil }

func (f *fakeTokenStore) SumSince(ctx context.Context, agentID string, since time.Time) (int64, int64, error) {
	return f.input, f.output, nil
}

func (f *fakeTokenStore) ListByAgent(ctx context.Context, agentID string, since time.Time) ([]*store.TokenConsumptionData, error) {
	return nil, nil
}

func TestSampleClassifiesHighUsageAsRed(t *testing.T) {
	caps := &fakeCapacityStore{byAgent: map[string]*store.AgentCapacityData{
		"agent-1": {AgentID: "agent-1", Zone: store.ZoneGreen},
	}}
	toks := &fakeTokenStore{input: 95_000, output: 95_000} // 190k / 200k default budget = 0.95 -> red
	m := New(caps, toks, nil, nil)

	got, err := m.Sample(context.Background(), "agent-1")
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if got.Zone != store.ZoneRed {
		t.Fatalf("Zone = %q, want red", got.Zone)
	}
	if got.CurrentUsage != 190_000 {
		t.Fatalf("CurrentUsage = %d, want 190000", got.CurrentUsage)
	}
}

func TestSampleLowUsageIsGreenWithNoForecast(t *testing.T) {
	caps := &fakeCapacityStore{}
	toks := &fakeTokenStore{input: 0, output: 0}
	m := New(caps, toks, nil, nil)

	got, err := m.Sample(context.Background(), "agent-2")
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if got.Zone != store.ZoneGreen {
		t.Fatalf("Zone = %q, want green", got.Zone)
	}
	if got.PredictedExhaustMins != nil {
		t.Fatalf("PredictedExhaustMins = %v, want nil at zero consumption rate", *got.PredictedExhaustMins)
	}
}

func TestNoteCompactCreatesRowWhenMissing(t *testing.T) {
	caps := &fakeCapacityStore{}
	m := New(caps, &fakeTokenStore{}, nil, nil)

	if err := m.NoteCompact(context.Background(), "agent-3"); err != nil {
		t.Fatalf("NoteCompact: %v", err)
	}
	agg, err := caps.Get(context.Background(), "agent-3")
	if err != nil {
		t.Fatalf("Get after NoteCompact: %v", err)
	}
	if agg.CompactCount != 1 {
		t.Fatalf("CompactCount = %d, want 1", agg.CompactCount)
	}
	if agg.LastCompactAt == nil {
		t.Fatal("LastCompactAt = nil, want set")
	}
}
