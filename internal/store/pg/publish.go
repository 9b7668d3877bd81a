package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
)

// notifyPayloadLimit is kept below Postgres's 8000-byte NOTIFY payload
// ceiling; anything larger is replaced with a truncation marker rather than
// failing the publish, since the full row is always retrievable by the
// listener issuing its own query against the entity id.
const notifyPayloadLimit = 7900

// PGNotifier publishes to Postgres NOTIFY channels. Oversized payloads are
// never sent raw — pg_notify would simply error — so they are replaced with
// a small marker object carrying just enough to let a listener re-fetch.
type PGNotifier struct {
	db *sql.DB
}

// NewPGNotifier wraps db as a Notifier.
func NewPGNotifier(db *sql.DB) *PGNotifier {
	return &PGNotifier{db: db}
}

// truncatedMarker is sent instead of the real payload when it would exceed
// notifyPayloadLimit. ID carries the entity the listener must refetch;
// without it a truncated notification gives the listener nothing to act on.
type truncatedMarker struct {
	Truncated bool   `json:"truncated"`
	ID        string `json:"id"`
	Size      int    `json:"size"`
}

// entityIDKeys is the priority-ordered set of JSON fields that identify the
// entity a notification payload is about, covering both whole-row payloads
// (tagged "id") and the ad hoc event maps the tracking/capacity components
// publish (tagged "*_id").
var entityIDKeys = []string{"id", "subtask_id", "task_id", "session_id", "message_id", "agent_id"}

// extractEntityID best-effort recovers the id a JSON payload is about, so a
// truncation marker can still tell a listener what to refetch.
func extractEntityID(data []byte) string {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return ""
	}
	for _, key := range entityIDKeys {
		if v, ok := doc[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// Publish sends payload as a NOTIFY on channel. If the encoded payload
// exceeds the Postgres NOTIFY size limit, a truncation marker carrying the
// entity's id is sent instead and a warning is logged so listeners know to
// re-fetch the full row by that id.
func (n *PGNotifier) Publish(ctx context.Context, channel string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal notify payload: %w", err)
	}

	if len(data) > notifyPayloadLimit {
		id := extractEntityID(data)
		slog.Warn("store.notify_truncated", "channel", channel, "size", len(data), "id", id)
		data, err = json.Marshal(truncatedMarker{Truncated: true, ID: id, Size: len(data)})
		if err != nil {
			return fmt.Errorf("marshal truncation marker: %w", err)
		}
	}

	_, err = n.db.ExecContext(ctx, `SELECT pg_notify($1, $2)`, channel, string(data))
	if err != nil {
		return fmt.Errorf("notify %s: %w", channel, err)
	}
	return nil
}
