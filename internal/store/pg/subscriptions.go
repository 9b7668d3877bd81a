package pg

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/agentmemory/backend/internal/store"
)

// SubscriptionStore is the Postgres-backed store.SubscriptionStore.
type SubscriptionStore struct {
	db *sql.DB
}

// NewSubscriptionStore wraps db as a store.SubscriptionStore.
func NewSubscriptionStore(db *sql.DB) *SubscriptionStore { return &SubscriptionStore{db: db} }

// Subscribe registers agentID's interest in topic, idempotently.
func (s *SubscriptionStore) Subscribe(ctx context.Context, agentID, topic string) (*store.SubscriptionData, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO subscriptions (id, agent_id, topic, created_at)
		VALUES (gen_random_uuid(), $1, $2, now())
		ON CONFLICT (agent_id, topic) DO UPDATE SET agent_id = subscriptions.agent_id
		RETURNING id, agent_id, topic, created_at`, agentID, topic)

	var sub store.SubscriptionData
	if err := row.Scan(&sub.ID, &sub.AgentID, &sub.Topic, &sub.CreatedAt); err != nil {
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	return &sub, nil
}

// Unsubscribe removes a subscription.
func (s *SubscriptionStore) Unsubscribe(ctx context.Context, agentID, topic string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM subscriptions WHERE agent_id = $1 AND topic = $2`, agentID, topic)
	if err != nil {
		return fmt.Errorf("unsubscribe: %w", err)
	}
	return nil
}

// ListByAgent returns every topic agentID is subscribed to.
func (s *SubscriptionStore) ListByAgent(ctx context.Context, agentID string) ([]*store.SubscriptionData, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, agent_id, topic, created_at FROM subscriptions WHERE agent_id = $1`, agentID)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions by agent: %w", err)
	}
	defer rows.Close()
	return scanSubscriptionRows(rows)
}

// ListByTopic returns every subscriber of topic.
func (s *SubscriptionStore) ListByTopic(ctx context.Context, topic string) ([]*store.SubscriptionData, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, agent_id, topic, created_at FROM subscriptions WHERE topic = $1`, topic)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions by topic: %w", err)
	}
	defer rows.Close()
	return scanSubscriptionRows(rows)
}

func scanSubscriptionRows(rows *sql.Rows) ([]*store.SubscriptionData, error) {
	var out []*store.SubscriptionData
	for rows.Next() {
		var sub store.SubscriptionData
		if err := rows.Scan(&sub.ID, &sub.AgentID, &sub.Topic, &sub.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		out = append(out, &sub)
	}
	return out, rows.Err()
}
