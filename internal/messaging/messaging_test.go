package messaging

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/agentmemory/backend/internal/apierror"
	"github.com/agentmemory/backend/internal/store"
)

func TestClampPriority(t *testing.T) {
	cases := []struct {
		in   int
		want int
	}{
		{-5, 0}, {0, 0}, {4, 4}, {9, 9}, {20, 9},
	}
	for _, c := range cases {
		if got := clampPriority(c.in); got != c.want {
			t.Errorf("clampPriority(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}

type fakeMessageStore struct {
	sent []*store.MessageData
}

func (f *fakeMessageStore) Send(ctx context.Context, m *store.MessageData) error {
	f.sent = append(f.sent, m)
	return nil
}
func (f *fakeMessageStore) Get(ctx context.Context, id uuid.UUID) (*store.MessageData, error) {
	return nil, store.ErrNotFound
}
func (f *fakeMessageStore) Pending(ctx context.Context, agentID, topic string, page store.PageOpts) ([]*store.MessageData, error) {
	return f.sent, nil
}
func (f *fakeMessageStore) List(ctx context.Context, filter store.MessageFilter, page store.PageOpts) ([]*store.MessageData, error) {
	return f.sent, nil
}
func (f *fakeMessageStore) MarkRead(ctx context.Context, id uuid.UUID, agentID string) error {
	return nil
}
func (f *fakeMessageStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}

type fakeSubscriptionStore struct{}

func (f *fakeSubscriptionStore) Subscribe(ctx context.Context, agentID, topic string) (*store.SubscriptionData, error) {
	return &store.SubscriptionData{AgentID: agentID, Topic: topic}, nil
}
func (f *fakeSubscriptionStore) Unsubscribe(ctx context.Context, agentID, topic string) error {
	return nil
}
func (f *fakeSubscriptionStore) ListByAgent(ctx context.Context, agentID string) ([]*store.SubscriptionData, error) {
	return nil, nil
}
func (f *fakeSubscriptionStore) ListByTopic(ctx context.Context, topic string) ([]*store.SubscriptionData, error) {
	return nil, nil
}

func TestSendRequiresFromAndTo(t *testing.T) {
	b := New(&fakeMessageStore{}, &fakeSubscriptionStore{}, nil, time.Hour)

	if _, err := b.Send(context.Background(), SendInput{To: "agent-b"}); err == nil {
		t.Fatal("Send: expected error for missing from, got nil")
	} else if apiErr, ok := apierror.As(err); !ok || apiErr.Kind != apierror.KindValidation {
		t.Fatalf("Send: err = %v, want a validation apierror", err)
	}

	if _, err := b.Send(context.Background(), SendInput{From: "agent-a"}); err == nil {
		t.Fatal("Send: expected error for missing to, got nil")
	}
}

func TestSendDefaultsKindPayloadAndTTL(t *testing.T) {
	store_ := &fakeMessageStore{}
	b := New(store_, &fakeSubscriptionStore{}, nil, time.Hour)

	msg, err := b.Send(context.Background(), SendInput{From: "a", To: "b", Priority: 15})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if msg.Kind != store.MessageKindInfo {
		t.Fatalf("Kind = %q, want default %q", msg.Kind, store.MessageKindInfo)
	}
	if string(msg.Payload) != "{}" {
		t.Fatalf("Payload = %q, want {}", msg.Payload)
	}
	if msg.Priority != 9 {
		t.Fatalf("Priority = %d, want clamped to 9", msg.Priority)
	}
	if msg.ExpiresAt == nil {
		t.Fatal("ExpiresAt = nil, want set from the default TTL")
	}
}

func TestPendingRequiresAgentID(t *testing.T) {
	b := New(&fakeMessageStore{}, &fakeSubscriptionStore{}, nil, time.Hour)
	if _, err := b.Pending(context.Background(), "", "", store.PageOpts{}); err == nil {
		t.Fatal("Pending: expected error for missing agent id, got nil")
	}
}
