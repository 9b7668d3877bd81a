// Package store defines the typed storage contracts over the relational
// database: one interface and one data struct per entity family from the
// data model, plus the Stores aggregate that wires concrete implementations
// together.
package store

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Subtask status values.
const (
	SubtaskStatusPending   = "pending"
	SubtaskStatusRunning   = "running"
	SubtaskStatusPaused    = "paused"
	SubtaskStatusBlocked   = "blocked"
	SubtaskStatusCompleted = "completed"
	SubtaskStatusFailed    = "failed"
)

// Action tool types.
const (
	ToolTypeBuiltin = "builtin"
	ToolTypeAgent   = "agent"
	ToolTypeSkill   = "skill"
	ToolTypeCommand = "command"
	ToolTypeMCP     = "mcp"
)

// Message kinds.
const (
	MessageKindInfo         = "info"
	MessageKindRequest      = "request"
	MessageKindResponse     = "response"
	MessageKindNotification = "notification"
)

// BroadcastRecipient is the sentinel `to_agent_id` value meaning "all
// subscribed agents".
const BroadcastRecipient = "broadcast"

// Capacity zones.
const (
	ZoneGreen  = "green"
	ZoneYellow = "yellow"
	ZoneOrange = "orange"
	ZoneRed    = "red"
)

// Batch/wave status values.
const (
	BatchStatusPending   = "pending"
	BatchStatusRunning   = "running"
	BatchStatusCompleted = "completed"
	BatchStatusFailed    = "failed"
)

// GenID returns a fresh random entity identifier.
func GenID() uuid.UUID { return uuid.New() }

// ProjectData is an external filesystem root.
type ProjectData struct {
	ID        uuid.UUID `json:"id"`
	Path      string    `json:"path"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SessionData is one conversation with the assistant.
type SessionData struct {
	ID           uuid.UUID  `json:"id"`
	ProjectID    uuid.UUID  `json:"projectId"`
	SessionKey   string     `json:"sessionKey"`
	StartedAt    time.Time  `json:"startedAt"`
	EndedAt      *time.Time `json:"endedAt,omitempty"`
	ToolCalls    int64      `json:"toolCalls"`
	Successes    int64      `json:"successes"`
	Errors       int64      `json:"errors"`
	Compacted    bool       `json:"compacted"`
	CompactCount int        `json:"compactCount"`
}

// Closed reports whether the session's end timestamp has been set.
func (s SessionData) Closed() bool { return s.EndedAt != nil }

// RequestData is one user turn within a session.
type RequestData struct {
	ID         uuid.UUID `json:"id"`
	SessionID  uuid.UUID `json:"sessionId"`
	Prompt     string    `json:"prompt"`
	PromptType string    `json:"promptType"`
	CreatedAt  time.Time `json:"createdAt"`
}

// TaskData is a wave of work within a request.
type TaskData struct {
	ID        uuid.UUID `json:"id"`
	RequestID uuid.UUID `json:"requestId"`
	Wave      int       `json:"wave"`
	CreatedAt time.Time `json:"createdAt"`
}

// SubtaskData is one agent invocation.
type SubtaskData struct {
	ID            uuid.UUID   `json:"id"`
	TaskID        uuid.UUID   `json:"taskId"`
	SessionID     uuid.UUID   `json:"sessionId"`
	AgentType     string      `json:"agentType"`
	AgentID       string      `json:"agentId"`
	Description   string      `json:"description"`
	Status        string      `json:"status"`
	Priority      int         `json:"priority"`
	RetryCount    int         `json:"retryCount"`
	ParentAgentID *string     `json:"parentAgentId,omitempty"`
	BatchID       *uuid.UUID  `json:"batchId,omitempty"`
	BlockedBy     []uuid.UUID `json:"blockedBy,omitempty"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

// ActionData is a single tool invocation record.
type ActionData struct {
	ID          uuid.UUID  `json:"id"`
	SubtaskID   *uuid.UUID `json:"subtaskId,omitempty"`
	SessionID   uuid.UUID  `json:"sessionId"`
	ToolName    string     `json:"toolName"`
	ToolType    string     `json:"toolType"`
	InputHead   string     `json:"inputHead"`
	ExitCode    int        `json:"exitCode"`
	DurationMS  int64      `json:"durationMs"`
	FilePaths   []string   `json:"filePaths,omitempty"`
	InputTokens *int64     `json:"inputTokens,omitempty"`
	OutTokens   *int64     `json:"outputTokens,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// Productive reports whether the action should feed routing feedback:
// non-error, non safety-block invocations only.
func (a ActionData) Productive() bool {
	return a.ExitCode == 0
}

// MessageData is an inter-agent payload.
type MessageData struct {
	ID        uuid.UUID       `json:"id"`
	FromAgent string          `json:"fromAgent"`
	ToAgent   string          `json:"toAgent"`
	Topic     string          `json:"topic"`
	Kind      string          `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	Priority  int             `json:"priority"`
	CreatedAt time.Time       `json:"createdAt"`
	ExpiresAt *time.Time      `json:"expiresAt,omitempty"`
	ReadBy    []string        `json:"readBy,omitempty"`
}

// Expired reports whether the message is past its TTL as of now.
func (m MessageData) Expired(now time.Time) bool {
	return m.ExpiresAt != nil && now.After(*m.ExpiresAt)
}

// ReadByAgent reports whether agentID has already marked this message read.
func (m MessageData) ReadByAgent(agentID string) bool {
	for _, r := range m.ReadBy {
		if r == agentID {
			return true
		}
	}
	return false
}

// SubscriptionData is an (agent-id, topic-pattern) tuple.
type SubscriptionData struct {
	ID        uuid.UUID `json:"id"`
	AgentID   string    `json:"agentId"`
	Topic     string    `json:"topic"`
	CreatedAt time.Time `json:"createdAt"`
}

// RoutingEntryData is a (keyword, tool) feedback-weighted scoring row.
type RoutingEntryData struct {
	ID           uuid.UUID `json:"id"`
	Keyword      string    `json:"keyword"`
	ToolName     string    `json:"toolName"`
	ToolType     string    `json:"toolType"`
	UsageCount   int64     `json:"usageCount"`
	SuccessCount int64     `json:"successCount"`
	Weight       float64   `json:"weight"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// TokenConsumptionData is an immutable per-call token usage row.
type TokenConsumptionData struct {
	ID           uuid.UUID `json:"id"`
	AgentID      string    `json:"agentId"`
	SessionID    uuid.UUID `json:"sessionId"`
	ToolName     string    `json:"toolName"`
	InputTokens  int64     `json:"inputTokens"`
	OutputTokens int64     `json:"outputTokens"`
	CreatedAt    time.Time `json:"createdAt"`
}

// AgentCapacityData is the per-agent rolling capacity aggregate.
type AgentCapacityData struct {
	AgentID              string     `json:"agentId"`
	CurrentUsage         int64      `json:"currentUsage"`
	ConsumptionRate      float64    `json:"consumptionRate"`
	PredictedExhaustMins *float64   `json:"predictedExhaustionMinutes,omitempty"`
	Zone                 string     `json:"zone"`
	LastCompactAt        *time.Time `json:"lastCompactAt,omitempty"`
	CompactCount         int        `json:"compactCount"`
	UpdatedAt            time.Time  `json:"updatedAt"`
}

// AgentRegistryEntryData is declarative per-agent-type configuration.
type AgentRegistryEntryData struct {
	AgentType         string          `json:"agentType"`
	Category          string          `json:"category"`
	AllowedTools      []string        `json:"allowedTools,omitempty"`
	ForbiddenActions  []string        `json:"forbiddenActions,omitempty"`
	MaxFiles          int             `json:"maxFiles"`
	Waves             []int           `json:"waves,omitempty"`
	RecommendedModel  string          `json:"recommendedModel,omitempty"`
	DefaultScope      json.RawMessage `json:"defaultScope,omitempty"`
}

// SnapshotData is the compressed persisted state saved before compaction.
type SnapshotData struct {
	ID           uuid.UUID `json:"id"`
	SessionID    uuid.UUID `json:"sessionId"`
	CompactID    string    `json:"compactId"`
	Payload      []byte    `json:"-"`
	ModifiedFiles []string `json:"modifiedFiles,omitempty"`
	Summary      string    `json:"summary,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// AgentContextData is the surviving per-agent record across a compact.
type AgentContextData struct {
	ID              uuid.UUID `json:"id"`
	SessionID       uuid.UUID `json:"sessionId"`
	CompactID       string    `json:"compactId"`
	AgentID         string    `json:"agentId"`
	ProgressSummary string    `json:"progressSummary"`
	ToolsUsed       []string  `json:"toolsUsed,omitempty"`
	RoleContext     string    `json:"roleContext,omitempty"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// BatchData groups subtasks submitted together as one wave.
type BatchData struct {
	ID        uuid.UUID `json:"id"`
	TaskID    uuid.UUID `json:"taskId"`
	Total     int       `json:"total"`
	Completed int       `json:"completed"`
	Failed    int       `json:"failed"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PageOpts is the common (limit, offset) pagination pair.
type PageOpts struct {
	Limit  int
	Offset int
}

// Normalize clamps limit/offset to sane bounds.
func (p PageOpts) Normalize(defaultLimit, maxLimit int) PageOpts {
	if p.Limit <= 0 {
		p.Limit = defaultLimit
	}
	if p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}
