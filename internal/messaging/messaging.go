// Package messaging implements the inter-agent Message Bus: send, list
// pending, mark read, subscribe/unsubscribe, and expiry, all layered over
// store.MessageStore with a Postgres NOTIFY fan-out on every send.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/agentmemory/backend/internal/apierror"
	"github.com/agentmemory/backend/internal/store"
	"github.com/agentmemory/backend/pkg/protocol"
)

const (
	minPriority = 0
	maxPriority = 9
)

// Bus is the Message Bus component.
type Bus struct {
	messages store.MessageStore
	subs     store.SubscriptionStore
	notify   store.Notifier
	defaultTTL time.Duration
}

// New constructs a Bus over the given stores, applying defaultTTL to any
// message sent without an explicit expiry.
func New(messages store.MessageStore, subs store.SubscriptionStore, notify store.Notifier, defaultTTL time.Duration) *Bus {
	return &Bus{messages: messages, subs: subs, notify: notify, defaultTTL: defaultTTL}
}

// SendInput is the caller-supplied shape for Send; Priority is clamped to
// [0,9] and Payload must already be valid JSON.
type SendInput struct {
	From     string
	To       string
	Topic    string
	Kind     string
	Payload  json.RawMessage
	Priority int
	TTL      time.Duration
}

func clampPriority(p int) int {
	if p < minPriority {
		return minPriority
	}
	if p > maxPriority {
		return maxPriority
	}
	return p
}

// Send validates and persists a message, then publishes message.new so
// subscribed WebSocket clients and polling agents both learn about it.
func (b *Bus) Send(ctx context.Context, in SendInput) (*store.MessageData, error) {
	if in.From == "" {
		return nil, apierror.Validation("from is required")
	}
	if in.To == "" {
		return nil, apierror.Validation("to is required")
	}
	if in.Kind == "" {
		in.Kind = store.MessageKindInfo
	}
	if len(in.Payload) == 0 {
		in.Payload = json.RawMessage(`{}`)
	}

	ttl := in.TTL
	if ttl <= 0 {
		ttl = b.defaultTTL
	}
	var expiresAt *time.Time
	if ttl > 0 {
		t := time.Now().Add(ttl)
		expiresAt = &t
	}

	msg := &store.MessageData{
		ID:        store.GenID(),
		FromAgent: in.From,
		ToAgent:   in.To,
		Topic:     in.Topic,
		Kind:      in.Kind,
		Payload:   in.Payload,
		Priority:  clampPriority(in.Priority),
		ExpiresAt: expiresAt,
	}

	if err := b.messages.Send(ctx, msg); err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}

	if b.notify != nil {
		_ = b.notify.Publish(ctx, protocol.EventMessageNew, msg)
	}

	return msg, nil
}

// Pending returns an agent's unread, unexpired messages, optionally
// filtered to one topic.
func (b *Bus) Pending(ctx context.Context, agentID, topic string, page store.PageOpts) ([]*store.MessageData, error) {
	if agentID == "" {
		return nil, apierror.Validation("agent id is required")
	}
	msgs, err := b.messages.Pending(ctx, agentID, topic, page)
	if err != nil {
		return nil, fmt.Errorf("list pending messages: %w", err)
	}
	return msgs, nil
}

// List returns messages matching filter, unfiltered by read status unless
// filter.Unread is set. Unlike Pending it can surface already-read
// messages, so a caller can audit who has seen a broadcast.
func (b *Bus) List(ctx context.Context, filter store.MessageFilter, page store.PageOpts) ([]*store.MessageData, error) {
	if filter.Recipient == "" {
		return nil, apierror.Validation("recipient is required")
	}
	msgs, err := b.messages.List(ctx, filter, page)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}

// MarkRead records that agentID has consumed message id.
func (b *Bus) MarkRead(ctx context.Context, id uuid.UUID, agentID string) error {
	if err := b.messages.MarkRead(ctx, id, agentID); err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}

// Subscribe registers agentID's interest in topic.
func (b *Bus) Subscribe(ctx context.Context, agentID, topic string) (*store.SubscriptionData, error) {
	if agentID == "" || topic == "" {
		return nil, apierror.Validation("agent id and topic are required")
	}
	sub, err := b.subs.Subscribe(ctx, agentID, topic)
	if err != nil {
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	return sub, nil
}

// Unsubscribe removes agentID's interest in topic.
func (b *Bus) Unsubscribe(ctx context.Context, agentID, topic string) error {
	if err := b.subs.Unsubscribe(ctx, agentID, topic); err != nil {
		return fmt.Errorf("unsubscribe: %w", err)
	}
	return nil
}

// DeliverPending is the polling counterpart to Subscribe: an agent calls it
// to drain everything addressed to it since it last checked.
func (b *Bus) DeliverPending(ctx context.Context, agentID string, page store.PageOpts) ([]*store.MessageData, error) {
	return b.Pending(ctx, agentID, "", page)
}

// PruneExpired deletes messages past their TTL, called by the Cleanup
// Worker.
func (b *Bus) PruneExpired(ctx context.Context, now time.Time) (int64, error) {
	n, err := b.messages.DeleteExpired(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("prune expired messages: %w", err)
	}
	return n, nil
}
