package pg

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/uuid"

	"github.com/agentmemory/backend/internal/store"
)

func seedTask(t *testing.T, ctx context.Context, db *sql.DB, path string) (*store.SessionData, *store.TaskData) {
	t.Helper()
	proj, err := NewProjectStore(db).GetOrCreate(ctx, path, path)
	if err != nil {
		t.Fatalf("GetOrCreate project: %v", err)
	}
	sess := &store.SessionData{ProjectID: proj.ID, SessionKey: path + "-session"}
	if err := NewSessionStore(db).Create(ctx, sess); err != nil {
		t.Fatalf("Create session: %v", err)
	}
	req := &store.RequestData{SessionID: sess.ID, Prompt: "do work", PromptType: "task"}
	if err := NewRequestStore(db).Create(ctx, req); err != nil {
		t.Fatalf("Create request: %v", err)
	}
	task := &store.TaskData{RequestID: req.ID, Wave: 0}
	if err := NewTaskStore(db).Create(ctx, task); err != nil {
		t.Fatalf("Create task: %v", err)
	}
	return sess, task
}

func TestSubtaskStoreClaimSucceedsOnceForPending(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	sess, task := seedTask(t, ctx, db, "/repo/subtask-claim")

	subtasks := NewSubtaskStore(db)
	st := &store.SubtaskData{TaskID: task.ID, SessionID: sess.ID, AgentType: "coder", Description: "implement feature"}
	if err := subtasks.Create(ctx, st); err != nil {
		t.Fatalf("Create: %v", err)
	}

	ok, err := subtasks.Claim(ctx, st.ID, "agent-1")
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if !ok {
		t.Fatal("Claim: expected the first claim on a pending subtask to succeed")
	}

	ok, err = subtasks.Claim(ctx, st.ID, "agent-2")
	if err != nil {
		t.Fatalf("2nd Claim: %v", err)
	}
	if ok {
		t.Fatal("Claim: expected the 2nd claim on an already-running subtask to fail")
	}
}

func TestSubtaskStoreClaimRejectsBlocked(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	sess, task := seedTask(t, ctx, db, "/repo/subtask-blocked")

	subtasks := NewSubtaskStore(db)
	blocker := &store.SubtaskData{TaskID: task.ID, SessionID: sess.ID, AgentType: "coder", Description: "step 1"}
	if err := subtasks.Create(ctx, blocker); err != nil {
		t.Fatalf("Create blocker: %v", err)
	}
	blocked := &store.SubtaskData{TaskID: task.ID, SessionID: sess.ID, AgentType: "coder", Description: "step 2", BlockedBy: []uuid.UUID{blocker.ID}}
	if err := subtasks.Create(ctx, blocked); err != nil {
		t.Fatalf("Create blocked: %v", err)
	}

	ok, err := subtasks.Claim(ctx, blocked.ID, "agent-1")
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if ok {
		t.Fatal("Claim: expected claim on a blocked subtask to fail")
	}
}

func TestSubtaskStoreCompleteUnblocksDependents(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	sess, task := seedTask(t, ctx, db, "/repo/subtask-complete")

	subtasks := NewSubtaskStore(db)
	blocker := &store.SubtaskData{TaskID: task.ID, SessionID: sess.ID, AgentType: "coder", Description: "step 1"}
	if err := subtasks.Create(ctx, blocker); err != nil {
		t.Fatalf("Create blocker: %v", err)
	}
	blocked := &store.SubtaskData{TaskID: task.ID, SessionID: sess.ID, AgentType: "coder", Description: "step 2", BlockedBy: []uuid.UUID{blocker.ID}}
	if err := subtasks.Create(ctx, blocked); err != nil {
		t.Fatalf("Create blocked: %v", err)
	}

	unblocked, err := subtasks.Complete(ctx, blocker.ID)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if len(unblocked) != 1 || unblocked[0] != blocked.ID {
		t.Fatalf("Complete: unblocked = %v, want [%s]", unblocked, blocked.ID)
	}

	got, err := subtasks.Get(ctx, blocked.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.BlockedBy) != 0 {
		t.Fatalf("Get: BlockedBy = %v, want empty after the blocker completed", got.BlockedBy)
	}
}

func TestSubtaskStoreIncrementRetry(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	sess, task := seedTask(t, ctx, db, "/repo/subtask-retry")

	subtasks := NewSubtaskStore(db)
	st := &store.SubtaskData{TaskID: task.ID, SessionID: sess.ID, AgentType: "coder", Description: "flaky step"}
	if err := subtasks.Create(ctx, st); err != nil {
		t.Fatalf("Create: %v", err)
	}

	n, err := subtasks.IncrementRetry(ctx, st.ID)
	if err != nil {
		t.Fatalf("IncrementRetry: %v", err)
	}
	if n != 1 {
		t.Fatalf("IncrementRetry: n = %d, want 1", n)
	}
}
