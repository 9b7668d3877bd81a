package contextgen

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/agentmemory/backend/internal/store"
)

type fakeRegistryStore struct {
	entries map[string]*store.AgentRegistryEntryData
}

func (f *fakeRegistryStore) Get(ctx context.Context, agentType string) (*store.AgentRegistryEntryData, error) {
	e, ok := f.entries[agentType]
	if !ok {
		return nil, store.ErrNotFound
	}
	return e, nil
}
func (f *fakeRegistryStore) All(ctx context.Context) ([]*store.AgentRegistryEntryData, error) {
	return nil, nil
}
func (f *fakeRegistryStore) Upsert(ctx context.Context, e *store.AgentRegistryEntryData) error {
	return nil
}

type fakeSubtaskStore struct {
	assigned    []*store.SubtaskData
	gotAgentID  string
	gotStatuses []string
}

func (f *fakeSubtaskStore) Create(ctx context.Context, s *store.SubtaskData) error { return nil }
func (f *fakeSubtaskStore) Get(ctx context.Context, id uuid.UUID) (*store.SubtaskData, error) {
	return nil, store.ErrNotFound
}
func (f *fakeSubtaskStore) ListByTask(ctx context.Context, taskID uuid.UUID) ([]*store.SubtaskData, error) {
	return nil, nil
}
func (f *fakeSubtaskStore) ListByStatus(ctx context.Context, status string, page store.PageOpts) ([]*store.SubtaskData, error) {
	return nil, nil
}
func (f *fakeSubtaskStore) Search(ctx context.Context, agentType, agentID string, statuses []string, page store.PageOpts) ([]*store.SubtaskData, error) {
	f.gotAgentID = agentID
	f.gotStatuses = statuses
	return f.assigned, nil
}
func (f *fakeSubtaskStore) Claim(ctx context.Context, id uuid.UUID, agentID string) (bool, error) {
	return false, nil
}
func (f *fakeSubtaskStore) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	return nil
}
func (f *fakeSubtaskStore) Complete(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	return nil, nil
}
func (f *fakeSubtaskStore) IncrementRetry(ctx context.Context, id uuid.UUID) (int, error) {
	return 0, nil
}

type fakeMessageStore struct {
	pending []*store.MessageData
}

func (f *fakeMessageStore) Send(ctx context.Context, m *store.MessageData) error { return nil }
func (f *fakeMessageStore) Get(ctx context.Context, id uuid.UUID) (*store.MessageData, error) {
	return nil, store.ErrNotFound
}
func (f *fakeMessageStore) Pending(ctx context.Context, agentID, topic string, page store.PageOpts) ([]*store.MessageData, error) {
	return f.pending, nil
}
func (f *fakeMessageStore) List(ctx context.Context, filter store.MessageFilter, page store.PageOpts) ([]*store.MessageData, error) {
	return f.pending, nil
}
func (f *fakeMessageStore) MarkRead(ctx context.Context, id uuid.UUID, agentID string) error {
	return nil
}
func (f *fakeMessageStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
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
func (f *fakeCapacityStore) Upsert(ctx context.Context, c *store.AgentCapacityData) error { return nil }
func (f *fakeCapacityStore) All(ctx context.Context) ([]*store.AgentCapacityData, error) {
	return nil, nil
}

func TestGenerateAllowsEmptyAgentType(t *testing.T) {
	g := New(&fakeRegistryStore{}, &fakeSubtaskStore{}, &fakeMessageStore{}, &fakeCapacityStore{})
	brief, err := g.Generate(context.Background(), "", "agent-1", 1000)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if brief.Category != string(CategoryDeveloper) {
		t.Fatalf("Category = %q, want developer default for empty agent type", brief.Category)
	}
}

func TestGenerateClassifiesKnownCategory(t *testing.T) {
	reg := &fakeRegistryStore{entries: map[string]*store.AgentRegistryEntryData{
		"tester": {AgentType: "tester", Category: "verification"},
	}}
	g := New(reg, &fakeSubtaskStore{}, &fakeMessageStore{}, &fakeCapacityStore{})

	brief, err := g.Generate(context.Background(), "tester", "", 1000)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if brief.Category != string(CategoryValidator) {
		t.Fatalf("Category = %q, want validator for tester", brief.Category)
	}
	wantOrder := []string{"assigned_work", "messages", "capabilities", "capacity"}
	if len(brief.Sections) != len(wantOrder) {
		t.Fatalf("len(Sections) = %d, want %d", len(brief.Sections), len(wantOrder))
	}
	for i, name := range wantOrder {
		if brief.Sections[i].Name != name {
			t.Fatalf("Sections[%d].Name = %q, want %q", i, brief.Sections[i].Name, name)
		}
	}
}

func TestGenerateUnknownAgentTypeUsesDefaults(t *testing.T) {
	g := New(&fakeRegistryStore{entries: map[string]*store.AgentRegistryEntryData{}}, &fakeSubtaskStore{}, &fakeMessageStore{}, &fakeCapacityStore{})
	brief, err := g.Generate(context.Background(), "mystery-type", "", 1000)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if brief.Category != string(CategoryDeveloper) {
		t.Fatalf("Category = %q, want developer default for unknown agent type", brief.Category)
	}
	capabilities := brief.Sections[indexOf(brief.Sections, "capabilities")].Body
	if !strings.Contains(capabilities, "no registry entry") {
		t.Fatalf("capabilities section = %q, want a no-registry-entry fallback", capabilities)
	}
}

func TestGenerateAssignedWorkMatchesAgentIDAndActiveStatuses(t *testing.T) {
	subtasks := &fakeSubtaskStore{assigned: []*store.SubtaskData{
		{ID: uuid.New(), Description: "fix the gateway", Status: store.SubtaskStatusRunning},
	}}
	g := New(&fakeRegistryStore{}, subtasks, &fakeMessageStore{}, &fakeCapacityStore{})

	brief, err := g.Generate(context.Background(), "coder", "agent-7", 1000)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if subtasks.gotAgentID != "agent-7" {
		t.Fatalf("Search called with agentID %q, want agent-7", subtasks.gotAgentID)
	}
	wantStatuses := []string{store.SubtaskStatusRunning, store.SubtaskStatusBlocked, store.SubtaskStatusPaused}
	if len(subtasks.gotStatuses) != len(wantStatuses) {
		t.Fatalf("Search statuses = %v, want %v", subtasks.gotStatuses, wantStatuses)
	}
	for i, s := range wantStatuses {
		if subtasks.gotStatuses[i] != s {
			t.Fatalf("Search statuses[%d] = %q, want %q", i, subtasks.gotStatuses[i], s)
		}
	}
	body := brief.Sections[indexOf(brief.Sections, "assigned_work")].Body
	if !strings.Contains(body, "fix the gateway") {
		t.Fatalf("assigned_work section = %q, want it to mention the subtask", body)
	}
}

func TestGenerateRecordsSources(t *testing.T) {
	subtaskID := uuid.New()
	subtasks := &fakeSubtaskStore{assigned: []*store.SubtaskData{
		{ID: subtaskID, Description: "ship the fix", Status: store.SubtaskStatusRunning, Priority: 5},
	}}
	g := New(&fakeRegistryStore{}, subtasks, &fakeMessageStore{}, &fakeCapacityStore{})

	brief, err := g.Generate(context.Background(), "coder", "agent-7", 1000)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	var found bool
	for _, src := range brief.Sources {
		if src.Type == "task" && src.ID == subtaskID.String() {
			found = true
			if src.Relevance <= 0 || src.Relevance > 1 {
				t.Fatalf("source relevance = %v, want within (0,1]", src.Relevance)
			}
			if src.Summary != "ship the fix" {
				t.Fatalf("source summary = %q, want subtask description", src.Summary)
			}
		}
	}
	if !found {
		t.Fatal("Sources: no entry for the assigned subtask")
	}
}

func TestGenerateTruncatesToCharBudget(t *testing.T) {
	reg := &fakeRegistryStore{entries: map[string]*store.AgentRegistryEntryData{
		"coder": {AgentType: "coder", Category: strings.Repeat("x", 10000)},
	}}
	g := New(reg, &fakeSubtaskStore{}, &fakeMessageStore{}, &fakeCapacityStore{})

	brief, err := g.Generate(context.Background(), "coder", "", 10)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !brief.Truncated {
		t.Fatal("Truncated = false, want true when content exceeds the token budget")
	}
}

func indexOf(sections []Section, name string) int {
	for i, s := range sections {
		if s.Name == name {
			return i
		}
	}
	return -1
}
