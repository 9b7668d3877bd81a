package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/agentmemory/backend/internal/store"
)

// MessageStore is the Postgres-backed store.MessageStore.
type MessageStore struct {
	db *sql.DB
}

// NewMessageStore wraps db as a store.MessageStore.
func NewMessageStore(db *sql.DB) *MessageStore { return &MessageStore{db: db} }

const messageColumns = `id, from_agent, to_agent, topic, kind, payload, priority,
	created_at, expires_at, read_by`

// Send inserts a message addressed to a specific agent or the broadcast
// recipient.
func (s *MessageStore) Send(ctx context.Context, m *store.MessageData) error {
	if m.ID == uuid.Nil {
		m.ID = store.GenID()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, from_agent, to_agent, topic, kind, payload, priority,
			created_at, expires_at, read_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), $8, '{}')`,
		m.ID, m.FromAgent, m.ToAgent, m.Topic, m.Kind, []byte(m.Payload), m.Priority, m.ExpiresAt)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

func scanMessage(row interface{ Scan(...any) error }) (*store.MessageData, error) {
	var m store.MessageData
	var payload []byte
	var readBy pq.StringArray
	if err := row.Scan(&m.ID, &m.FromAgent, &m.ToAgent, &m.Topic, &m.Kind, &payload, &m.Priority,
		&m.CreatedAt, &m.ExpiresAt, &readBy); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	m.Payload = payload
	m.ReadBy = []string(readBy)
	return &m, nil
}

// Get fetches a message by id.
func (s *MessageStore) Get(ctx context.Context, id uuid.UUID) (*store.MessageData, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = $1`, id)
	m, err := scanMessage(row)
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	return m, nil
}

// Pending returns unread, unexpired messages addressed to agentID or
// broadcast, filtered by topic when topic is non-empty, highest priority
// and oldest first.
func (s *MessageStore) Pending(ctx context.Context, agentID, topic string, page store.PageOpts) ([]*store.MessageData, error) {
	page = page.Normalize(50, 200)
	query := `SELECT ` + messageColumns + ` FROM messages
		WHERE (to_agent = $1 OR to_agent = $2)
		AND NOT ($3 = ANY(read_by))
		AND (expires_at IS NULL OR expires_at > now())`
	args := []any{agentID, store.BroadcastRecipient, agentID}
	n := 3
	if topic != "" {
		n++
		query += fmt.Sprintf(" AND topic = $%d", n)
		args = append(args, topic)
	}
	query += fmt.Sprintf(" ORDER BY priority DESC, created_at ASC LIMIT $%d OFFSET $%d", n+1, n+2)
	args = append(args, page.Limit, page.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list pending messages: %w", err)
	}
	defer rows.Close()

	var out []*store.MessageData
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// List returns messages matching filter: recipient (addressed to it
// directly or broadcast) when non-empty, topic and kind when non-empty,
// and unread status when filter.Unread is non-nil. A nil Unread includes
// both read and unread messages.
func (s *MessageStore) List(ctx context.Context, filter store.MessageFilter, page store.PageOpts) ([]*store.MessageData, error) {
	page = page.Normalize(50, 200)
	query := `SELECT ` + messageColumns + ` FROM messages WHERE 1=1`
	args := []any{}
	n := 0
	nextArg := func(v any) string {
		n++
		args = append(args, v)
		return fmt.Sprintf("$%d", n)
	}
	if filter.Recipient != "" {
		query += fmt.Sprintf(" AND (to_agent = %s OR to_agent = %s)", nextArg(filter.Recipient), nextArg(store.BroadcastRecipient))
	}
	if filter.Topic != "" {
		query += " AND topic = " + nextArg(filter.Topic)
	}
	if filter.Kind != "" {
		query += " AND kind = " + nextArg(filter.Kind)
	}
	if filter.Unread != nil {
		if filter.Recipient == "" {
			return nil, fmt.Errorf("list messages: unread filter requires a recipient")
		}
		clause := "NOT (%s = ANY(read_by))"
		if !*filter.Unread {
			clause = "%s = ANY(read_by)"
		}
		query += " AND " + fmt.Sprintf(clause, nextArg(filter.Recipient))
	}
	query += " AND (expires_at IS NULL OR expires_at > now())"
	query += " ORDER BY priority DESC, created_at DESC LIMIT " + nextArg(page.Limit) + " OFFSET " + nextArg(page.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []*store.MessageData
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// MarkRead appends agentID to a message's read_by set, idempotently.
func (s *MessageStore) MarkRead(ctx context.Context, id uuid.UUID, agentID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE messages SET read_by = array_append(read_by, $2)
		WHERE id = $1 AND NOT ($2 = ANY(read_by))`, id, agentID)
	if err != nil {
		return fmt.Errorf("mark message read: %w", err)
	}
	if _, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("mark message read rows affected: %w", err)
	}
	return nil
}

// DeleteExpired removes messages past their TTL as of now, used by the
// Cleanup Worker.
func (s *MessageStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM messages WHERE expires_at IS NOT NULL AND expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired messages: %w", err)
	}
	return res.RowsAffected()
}
