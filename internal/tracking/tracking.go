// Package tracking implements fire-and-forget action ingestion: a single
// Record call persists the action, updates the session's tool-call counters
// and feeds the routing weight table, so instrumented agents pay one round
// trip per tool invocation. Project, session, task and subtask lifecycle
// and token consumption have their own Tracker methods.
package tracking

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/agentmemory/backend/internal/apierror"
	"github.com/agentmemory/backend/internal/bus"
	"github.com/agentmemory/backend/internal/routing"
	"github.com/agentmemory/backend/internal/store"
	"github.com/agentmemory/backend/pkg/protocol"
)

// Tracker is the Action/Task tracking component.
type Tracker struct {
	projects store.ProjectStore
	sessions store.SessionStore
	requests store.RequestStore
	tasks    store.TaskStore
	subtasks store.SubtaskStore
	actions  store.ActionStore
	routing  store.RoutingStore
	tokens   store.TokenConsumptionStore
	notify   store.Notifier
	pub      bus.Publisher
}

// New constructs a Tracker over the given stores.
func New(
	projects store.ProjectStore,
	sessions store.SessionStore,
	requests store.RequestStore,
	tasks store.TaskStore,
	subtasks store.SubtaskStore,
	actions store.ActionStore,
	routing store.RoutingStore,
	tokens store.TokenConsumptionStore,
	notify store.Notifier,
	pub bus.Publisher,
) *Tracker {
	return &Tracker{
		projects: projects, sessions: sessions, requests: requests, tasks: tasks,
		subtasks: subtasks, actions: actions, routing: routing, tokens: tokens,
		notify: notify, pub: pub,
	}
}

// ResolveProject finds or creates the project at path.
func (t *Tracker) ResolveProject(ctx context.Context, path, name string) (*store.ProjectData, error) {
	if path == "" {
		return nil, apierror.Validation("project path is required")
	}
	p, err := t.projects.GetOrCreate(ctx, path, name)
	if err != nil {
		return nil, fmt.Errorf("resolve project: %w", err)
	}
	return p, nil
}

// StartSession opens a session under projectID.
func (t *Tracker) StartSession(ctx context.Context, projectID uuid.UUID, sessionKey, agentType string) (*store.SessionData, error) {
	s := &store.SessionData{
		ID:         store.GenID(),
		ProjectID:  projectID,
		SessionKey: sessionKey,
		AgentType:  agentType,
		StartedAt:  time.Now(),
	}
	if err := t.sessions.Create(ctx, s); err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}
	return s, nil
}

// EndSession marks a session closed.
func (t *Tracker) EndSession(ctx context.Context, id uuid.UUID) error {
	if err := t.sessions.Close(ctx, id, time.Now()); err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	return nil
}

// CreateTask records a new wave of work under a request, publishing
// task.created.
func (t *Tracker) CreateTask(ctx context.Context, requestID uuid.UUID, wave int) (*store.TaskData, error) {
	task := &store.TaskData{
		ID:        store.GenID(),
		RequestID: requestID,
		Wave:      wave,
	}
	if err := t.tasks.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	t.publish(ctx, protocol.EventTaskCreated, task)
	return task, nil
}

// CreateSubtask records a new subtask, possibly blocked on others.
func (t *Tracker) CreateSubtask(ctx context.Context, taskID, sessionID uuid.UUID, agentType, description string, blockedBy []uuid.UUID) (*store.SubtaskData, error) {
	if description == "" {
		return nil, apierror.Validation("subtask description is required")
	}
	st := &store.SubtaskData{
		ID:          store.GenID(),
		TaskID:      taskID,
		SessionID:   sessionID,
		AgentType:   agentType,
		Description: description,
		Status:      store.SubtaskStatusPending,
		BlockedBy:   blockedBy,
	}
	if err := t.subtasks.Create(ctx, st); err != nil {
		return nil, fmt.Errorf("create subtask: %w", err)
	}
	t.publish(ctx, protocol.EventSubtaskCreated, st)
	return st, nil
}

// Claim atomically assigns a pending, unblocked subtask to agentID.
func (t *Tracker) Claim(ctx context.Context, id uuid.UUID, agentID string) (bool, error) {
	ok, err := t.subtasks.Claim(ctx, id, agentID)
	if err != nil {
		return false, fmt.Errorf("claim subtask: %w", err)
	}
	if ok {
		t.publish(ctx, protocol.EventSubtaskClaimed, map[string]any{"subtask_id": id, "agent_id": agentID})
	}
	return ok, nil
}

// Complete marks a subtask completed, unblocks anything waiting on it, and
// publishes one event per unblocked subtask plus one for the completion
// itself.
func (t *Tracker) Complete(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	unblocked, err := t.subtasks.Complete(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("complete subtask: %w", err)
	}
	t.publish(ctx, protocol.EventSubtaskCompleted, map[string]any{"subtask_id": id})
	for _, u := range unblocked {
		t.publish(ctx, protocol.EventSubtaskUnblocked, map[string]any{"subtask_id": u})
	}
	return unblocked, nil
}

// Fail marks a subtask failed and increments its retry counter, returning
// the new retry count so callers can decide whether to requeue.
func (t *Tracker) Fail(ctx context.Context, id uuid.UUID) (int, error) {
	if err := t.subtasks.UpdateStatus(ctx, id, store.SubtaskStatusFailed); err != nil {
		return 0, fmt.Errorf("mark subtask failed: %w", err)
	}
	n, err := t.subtasks.IncrementRetry(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("increment retry: %w", err)
	}
	t.publish(ctx, protocol.EventSubtaskFailed, map[string]any{"subtask_id": id, "retry_count": n})
	return n, nil
}

// RecordInput describes one tool invocation to ingest. It carries the host
// hook's tool_name, session_id and optional agent_id, plus InputHead, the
// leading slice of tool_input kept for indexing; the hook's tool_output
// and cwd are not carried.
type RecordInput struct {
	SubtaskID  *uuid.UUID
	SessionID  uuid.UUID
	AgentID    string
	ToolName   string
	ToolType   string
	InputHead  string
	ExitCode   int
	DurationMS int64
	FilePaths  []string
}

// Record ingests a single tool-call action: it persists the action,
// updates the session's tool-call counters, derives routing keywords from
// the tool name and input head and feeds the routing weight table with
// them, and never returns an error that would be worth retrying from the
// agent's perspective — failures are logged and swallowed so
// instrumentation never blocks the agent's own work.
func (t *Tracker) Record(ctx context.Context, in RecordInput) {
	action := &store.ActionData{
		ID:         store.GenID(),
		SubtaskID:  in.SubtaskID,
		SessionID:  in.SessionID,
		ToolName:   in.ToolName,
		ToolType:   in.ToolType,
		InputHead:  in.InputHead,
		ExitCode:   in.ExitCode,
		DurationMS: in.DurationMS,
		FilePaths:  in.FilePaths,
		CreatedAt:  time.Now(),
	}
	if err := t.actions.Create(ctx, action); err != nil {
		slog.Warn("tracking: record action failed", "error", err)
		return
	}

	success := action.Productive()
	if err := t.sessions.RecordToolCall(ctx, in.SessionID, success); err != nil {
		slog.Warn("tracking: update session tool counters failed", "error", err)
	}

	if in.ToolName != "" {
		for _, kw := range routing.Tokenize(in.ToolName + " " + in.InputHead) {
			if err := t.routing.Upsert(ctx, kw, in.ToolName, in.ToolType, success); err != nil {
				slog.Warn("tracking: routing upsert failed", "keyword", kw, "error", err)
			}
		}
	}
}

// RecordTokens appends a token-consumption sample for agentID.
func (t *Tracker) RecordTokens(ctx context.Context, agentID string, sessionID uuid.UUID, toolName string, inputTokens, outputTokens int64) error {
	tok := &store.TokenConsumptionData{
		ID:           store.GenID(),
		AgentID:      agentID,
		SessionID:    sessionID,
		ToolName:     toolName,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		CreatedAt:    time.Now(),
	}
	if err := t.tokens.Append(ctx, tok); err != nil {
		return fmt.Errorf("record tokens: %w", err)
	}
	return nil
}

func (t *Tracker) publish(ctx context.Context, event string, payload any) {
	if t.pub != nil {
		t.pub.Broadcast(bus.Event{Name: event, Payload: payload})
	}
	if t.notify != nil {
		if err := t.notify.Publish(ctx, event, payload); err != nil {
			slog.Warn("tracking: publish failed", "event", event, "error", err)
		}
	}
}
