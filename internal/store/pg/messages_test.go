package pg

import (
	"context"
	"testing"
	"time"

	"github.com/agentmemory/backend/internal/store"
)

func TestMessageStoreSendThenGet(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	messages := NewMessageStore(db)

	m := &store.MessageData{
		FromAgent: "agent-a",
		ToAgent:   "agent-b",
		Topic:     "status",
		Kind:      store.MessageKindInfo,
		Payload:   []byte(`{"ok":true}`),
		Priority:  5,
	}
	if err := messages.Send(ctx, m); err != nil {
		t.Fatalf("Send: %v", err)
	}

	got, err := messages.Get(ctx, m.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.FromAgent != "agent-a" || got.ToAgent != "agent-b" || got.Priority != 5 {
		t.Fatalf("got = %+v, want FromAgent=agent-a ToAgent=agent-b Priority=5", got)
	}
}

func TestMessageStorePendingFiltersReadAndExpired(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	messages := NewMessageStore(db)

	unread := &store.MessageData{FromAgent: "a", ToAgent: "agent-c", Kind: store.MessageKindInfo, Payload: []byte("{}"), Priority: 1}
	if err := messages.Send(ctx, unread); err != nil {
		t.Fatalf("Send unread: %v", err)
	}

	past := time.Now().Add(-time.Hour)
	expired := &store.MessageData{FromAgent: "a", ToAgent: "agent-c", Kind: store.MessageKindInfo, Payload: []byte("{}"), Priority: 1, ExpiresAt: &past}
	if err := messages.Send(ctx, expired); err != nil {
		t.Fatalf("Send expired: %v", err)
	}

	readAlready := &store.MessageData{FromAgent: "a", ToAgent: "agent-c", Kind: store.MessageKindInfo, Payload: []byte("{}"), Priority: 1}
	if err := messages.Send(ctx, readAlready); err != nil {
		t.Fatalf("Send read: %v", err)
	}
	if err := messages.MarkRead(ctx, readAlready.ID, "agent-c"); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}

	got, err := messages.Pending(ctx, "agent-c", "", store.PageOpts{})
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(got) != 1 || got[0].ID != unread.ID {
		t.Fatalf("Pending: got %d messages, want exactly the unread, unexpired one", len(got))
	}
}

func TestMessageStorePendingMatchesBroadcast(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	messages := NewMessageStore(db)

	broadcast := &store.MessageData{FromAgent: "a", ToAgent: store.BroadcastRecipient, Kind: store.MessageKindInfo, Payload: []byte("{}"), Priority: 1}
	if err := messages.Send(ctx, broadcast); err != nil {
		t.Fatalf("Send: %v", err)
	}

	got, err := messages.Pending(ctx, "any-agent", "", store.PageOpts{})
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(got) != 1 || got[0].ID != broadcast.ID {
		t.Fatalf("Pending: expected broadcast message for any agent, got %d", len(got))
	}
}

func TestMessageStoreDeleteExpired(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	messages := NewMessageStore(db)

	past := time.Now().Add(-time.Minute)
	m := &store.MessageData{FromAgent: "a", ToAgent: "b", Kind: store.MessageKindInfo, Payload: []byte("{}"), Priority: 1, ExpiresAt: &past}
	if err := messages.Send(ctx, m); err != nil {
		t.Fatalf("Send: %v", err)
	}

	n, err := messages.DeleteExpired(ctx, time.Now())
	if err != nil {
		t.Fatalf("DeleteExpired: %v", err)
	}
	if n != 1 {
		t.Fatalf("DeleteExpired: n = %d, want 1", n)
	}

	if _, err := messages.Get(ctx, m.ID); err != store.ErrNotFound {
		t.Fatalf("Get after delete: err = %v, want store.ErrNotFound", err)
	}
}
