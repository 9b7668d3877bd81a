package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ProjectStore persists filesystem-root projects.
type ProjectStore interface {
	GetOrCreate(ctx context.Context, path, name string) (*ProjectData, error)
	Get(ctx context.Context, id uuid.UUID) (*ProjectData, error)
	List(ctx context.Context, page PageOpts) ([]*ProjectData, error)
	// Delete removes a project and cascades to every session, request,
	// task, and subtask rooted under it.
	Delete(ctx context.Context, id uuid.UUID) error
}

// SessionStore persists conversations.
type SessionStore interface {
	Create(ctx context.Context, s *SessionData) error
	Get(ctx context.Context, id uuid.UUID) (*SessionData, error)
	GetByKey(ctx context.Context, sessionKey string) (*SessionData, error)
	Close(ctx context.Context, id uuid.UUID, endedAt time.Time) error
	RecordToolCall(ctx context.Context, id uuid.UUID, success bool) error
	IncrementCompactCount(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, projectID uuid.UUID, page PageOpts) ([]*SessionData, error)
}

// RequestStore persists user turns.
type RequestStore interface {
	Create(ctx context.Context, r *RequestData) error
	Get(ctx context.Context, id uuid.UUID) (*RequestData, error)
	ListBySession(ctx context.Context, sessionID uuid.UUID, page PageOpts) ([]*RequestData, error)
}

// TaskStore persists waves of work.
type TaskStore interface {
	Create(ctx context.Context, t *TaskData) error
	Get(ctx context.Context, id uuid.UUID) (*TaskData, error)
	ListByRequest(ctx context.Context, requestID uuid.UUID) ([]*TaskData, error)
}

// SubtaskStore persists and mutates agent invocations.
type SubtaskStore interface {
	Create(ctx context.Context, s *SubtaskData) error
	Get(ctx context.Context, id uuid.UUID) (*SubtaskData, error)
	ListByTask(ctx context.Context, taskID uuid.UUID) ([]*SubtaskData, error)
	ListByStatus(ctx context.Context, status string, page PageOpts) ([]*SubtaskData, error)
	// Search filters by optional agent type, optional agent-id, and an
	// optional set of statuses (no status filter when empty).
	Search(ctx context.Context, agentType, agentID string, statuses []string, page PageOpts) ([]*SubtaskData, error)
	// Claim atomically transitions a pending subtask with no blockers to
	// running, returning false if another caller already claimed it or a
	// blocker is still unresolved.
	Claim(ctx context.Context, id uuid.UUID, agentID string) (bool, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	// Complete marks the subtask completed and removes it from the
	// blocked_by array of every dependent subtask in the same transaction.
	Complete(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error)
	IncrementRetry(ctx context.Context, id uuid.UUID) (int, error)
}

// ActionStore persists tool invocation records.
type ActionStore interface {
	Create(ctx context.Context, a *ActionData) error
	ListBySubtask(ctx context.Context, subtaskID uuid.UUID, page PageOpts) ([]*ActionData, error)
	ListBySession(ctx context.Context, sessionID uuid.UUID, page PageOpts) ([]*ActionData, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// MessageFilter narrows MessageStore.List. Zero values mean "no filter" on
// that dimension except Unread, where nil also means "no filter" (a true
// pointer restricts to unread messages, a false one to already-read ones).
type MessageFilter struct {
	Recipient string
	Topic     string
	Kind      string
	Unread    *bool
}

// MessageStore persists inter-agent messages.
type MessageStore interface {
	Send(ctx context.Context, m *MessageData) error
	Get(ctx context.Context, id uuid.UUID) (*MessageData, error)
	// Pending returns unread, unexpired messages addressed to agentID or
	// broadcast, highest priority first and oldest first within a priority.
	Pending(ctx context.Context, agentID string, topic string, page PageOpts) ([]*MessageData, error)
	// List returns messages matching filter, including already-read ones
	// when filter.Unread is nil (only those when it is false),
	// newest-priority-first.
	List(ctx context.Context, filter MessageFilter, page PageOpts) ([]*MessageData, error)
	MarkRead(ctx context.Context, id uuid.UUID, agentID string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// SubscriptionStore persists agent topic subscriptions.
type SubscriptionStore interface {
	Subscribe(ctx context.Context, agentID, topic string) (*SubscriptionData, error)
	Unsubscribe(ctx context.Context, agentID, topic string) error
	ListByAgent(ctx context.Context, agentID string) ([]*SubscriptionData, error)
	ListByTopic(ctx context.Context, topic string) ([]*SubscriptionData, error)
}

// RoutingStore persists keyword-to-tool feedback weights.
type RoutingStore interface {
	Upsert(ctx context.Context, keyword, toolName, toolType string, success bool) error
	ListByKeyword(ctx context.Context, keyword string) ([]*RoutingEntryData, error)
	All(ctx context.Context) ([]*RoutingEntryData, error)
}

// TokenConsumptionStore persists per-call token usage.
type TokenConsumptionStore interface {
	Append(ctx context.Context, t *TokenConsumptionData) error
	SumSince(ctx context.Context, agentID string, since time.Time) (input, output int64, err error)
	ListByAgent(ctx context.Context, agentID string, since time.Time) ([]*TokenConsumptionData, error)
}

// CapacityStore persists the rolling per-agent capacity aggregate.
type CapacityStore interface {
	Get(ctx context.Context, agentID string) (*AgentCapacityData, error)
	Upsert(ctx context.Context, c *AgentCapacityData) error
	All(ctx context.Context) ([]*AgentCapacityData, error)
}

// RegistryStore persists declarative agent-type configuration.
type RegistryStore interface {
	Get(ctx context.Context, agentType string) (*AgentRegistryEntryData, error)
	All(ctx context.Context) ([]*AgentRegistryEntryData, error)
	Upsert(ctx context.Context, e *AgentRegistryEntryData) error
}

// SnapshotStore persists compressed pre-compaction state.
type SnapshotStore interface {
	Save(ctx context.Context, s *SnapshotData) error
	GetLatest(ctx context.Context, sessionID uuid.UUID) (*SnapshotData, error)
	Get(ctx context.Context, sessionID uuid.UUID, compactID string) (*SnapshotData, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// AgentContextStore persists the surviving per-agent record across a compact.
type AgentContextStore interface {
	Upsert(ctx context.Context, a *AgentContextData) error
	ListBySnapshot(ctx context.Context, sessionID uuid.UUID, compactID string) ([]*AgentContextData, error)
}

// BatchStore persists wave/batch progress aggregates.
type BatchStore interface {
	Create(ctx context.Context, b *BatchData) error
	Get(ctx context.Context, id uuid.UUID) (*BatchData, error)
	RecordCompletion(ctx context.Context, id uuid.UUID, failed bool) (*BatchData, error)
}

// Notifier publishes a NOTIFY-style message on a channel. Implementations
// truncate oversized payloads and substitute a marker object rather than
// silently dropping the notification.
type Notifier interface {
	Publish(ctx context.Context, channel string, payload any) error
}

// Stores aggregates every entity store plus the cross-cutting notifier.
// Fields are interfaces so tests can substitute fakes without touching the
// Postgres package.
type Stores struct {
	Projects     ProjectStore
	Sessions     SessionStore
	Requests     RequestStore
	Tasks        TaskStore
	Subtasks     SubtaskStore
	Actions      ActionStore
	Messages     MessageStore
	Subscriptions SubscriptionStore
	Routing      RoutingStore
	Tokens       TokenConsumptionStore
	Capacity     CapacityStore
	Registry     RegistryStore
	Snapshots    SnapshotStore
	AgentContext AgentContextStore
	Batches      BatchStore
	Notify       Notifier

	// Close releases the underlying connection pool, if any.
	Close func() error
}
