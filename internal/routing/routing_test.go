package routing

import (
	"context"
	"testing"

	"github.com/agentmemory/backend/internal/store"
)

type fakeRoutingStore struct {
	byKeyword map[string][]*store.RoutingEntryData
}

func (f *fakeRoutingStore) Upsert(ctx context.Context, keyword, toolName, toolType string, success bool) error {
	return nil
}

func (f *fakeRoutingStore) ListByKeyword(ctx context.Context, keyword string) ([]*store.RoutingEntryData, error) {
	return f.byKeyword[keyword], nil
}

func (f *fakeRoutingStore) All(ctx context.Context) ([]*store.RoutingEntryData, error) {
	var out []*store.RoutingEntryData
	for _, entries := range f.byKeyword {
		out = append(out, entries...)
	}
	return out, nil
}

func TestTokenize(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"Fix the Login Bug", []string{"fix", "the", "login", "bug"}},
		{"a an i go", nil},
		{"retry retry retry", []string{"retry"}},
		{"", nil},
	}
	for _, c := range cases {
		got := tokenize(c.in)
		if len(got) != len(c.want) {
			t.Fatalf("tokenize(%q) = %v, want %v", c.in, got, c.want)
		}
		for i := range got {
			if got[i] != c.want[i] {
				t.Fatalf("tokenize(%q) = %v, want %v", c.in, got, c.want)
			}
		}
	}
}

func TestSuggestRanksByWeightThenName(t *testing.T) {
	store := &fakeRoutingStore{byKeyword: map[string][]*store.RoutingEntryData{
		"login": {
			{ToolName: "auth-fixer", ToolType: "edit", Weight: 2.5},
			{ToolName: "grep", ToolType: "search", Weight: 2.5},
			{ToolName: "zzz-tool", ToolType: "edit", Weight: 9.0},
		},
	}}
	r := New(store)

	got, err := r.Suggest(context.Background(), "login bug", 2)
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(got) = %d, want 2", len(got))
	}
	if got[0].ToolName != "zzz-tool" {
		t.Fatalf("got[0].ToolName = %q, want zzz-tool (highest weight)", got[0].ToolName)
	}
	if got[1].ToolName != "auth-fixer" {
		t.Fatalf("got[1].ToolName = %q, want auth-fixer (tiebreak alphabetical)", got[1].ToolName)
	}
}

func TestSuggestEmptyQueryReturnsNil(t *testing.T) {
	r := New(&fakeRoutingStore{byKeyword: map[string][]*store.RoutingEntryData{}})
	got, err := r.Suggest(context.Background(), "a an", 5)
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if got != nil {
		t.Fatalf("got = %v, want nil", got)
	}
}

func TestSuggestSumsWeightAcrossMatchingKeywords(t *testing.T) {
	s := &fakeRoutingStore{byKeyword: map[string][]*store.RoutingEntryData{
		"fix": {
			{ToolName: "pytest", ToolType: "test", Weight: 1.0, UsageCount: 10},
			{ToolName: "grep", ToolType: "search", Weight: 4.0, UsageCount: 1},
		},
		"login": {
			{ToolName: "pytest", ToolType: "test", Weight: 3.5, UsageCount: 10},
		},
	}}
	r := New(s)

	got, err := r.Suggest(context.Background(), "fix login bug", 5)
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(got) = %d, want 2", len(got))
	}
	// pytest's weight is the sum of its two keyword hits (1.0 + 3.5 = 4.5),
	// which beats grep's single-keyword 4.0 even though grep's lone entry
	// outweighs either of pytest's individually.
	if got[0].ToolName != "pytest" {
		t.Fatalf("got[0].ToolName = %q, want pytest (summed weight wins)", got[0].ToolName)
	}
	if got[0].Weight != 4.5 {
		t.Fatalf("got[0].Weight = %v, want 4.5", got[0].Weight)
	}
}

func TestSuggestTiesBreakByUsageCountThenName(t *testing.T) {
	s := &fakeRoutingStore{byKeyword: map[string][]*store.RoutingEntryData{
		"test": {
			{ToolName: "pytest", ToolType: "test", Weight: 2.0, UsageCount: 100},
			{ToolName: "jest", ToolType: "test", Weight: 2.0, UsageCount: 50},
			{ToolName: "atool", ToolType: "test", Weight: 2.0, UsageCount: 50},
		},
	}}
	r := New(s)

	got, err := r.Suggest(context.Background(), "test", 5)
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len(got) = %d, want 3", len(got))
	}
	if got[0].ToolName != "pytest" {
		t.Fatalf("got[0].ToolName = %q, want pytest (highest usage_count breaks the weight tie)", got[0].ToolName)
	}
	if got[1].ToolName != "atool" || got[2].ToolName != "jest" {
		t.Fatalf("got[1:] = %v, want [atool jest] (name breaks the remaining tie)", []string{got[1].ToolName, got[2].ToolName})
	}
}

func TestSuggestDefaultsTopK(t *testing.T) {
	entries := make([]*store.RoutingEntryData, 0, 10)
	for i := 0; i < 10; i++ {
		entries = append(entries, &store.RoutingEntryData{ToolName: string(rune('a' + i)), Weight: float64(i)})
	}
	s := &fakeRoutingStore{byKeyword: map[string][]*store.RoutingEntryData{"widget": entries}}
	r := New(s)

	got, err := r.Suggest(context.Background(), "widget", 0)
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("len(got) = %d, want default topK of 5", len(got))
	}
}
