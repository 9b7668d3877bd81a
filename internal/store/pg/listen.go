package pg

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/agentmemory/backend/internal/bus"
)

// pollFallbackInterval is how often Bridge re-checks its LISTEN connection
// when a WaitForNotification call errors, mirroring the polling fallback
// agentpg-style clients fall back to when LISTEN/NOTIFY isn't reliably
// available (e.g. behind certain connection poolers).
const pollFallbackInterval = 2 * time.Second

// Bridge holds a dedicated LISTEN connection and republishes every
// pg_notify it receives onto an in-process bus.Publisher, decoupling every
// other component from Postgres's wire format.
type Bridge struct {
	dsn      string
	channels []string
	pub      bus.Publisher
}

// NewBridge constructs a Bridge that will LISTEN on channels and republish
// onto pub.
func NewBridge(dsn string, channels []string, pub bus.Publisher) *Bridge {
	return &Bridge{dsn: dsn, channels: channels, pub: pub}
}

// Run connects, issues LISTEN for every configured channel, and forwards
// notifications until ctx is cancelled. On connection loss it reconnects
// after pollFallbackInterval rather than giving up.
func (b *Bridge) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := b.runOnce(ctx); err != nil {
			slog.Warn("store.listen_reconnecting", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(pollFallbackInterval):
			}
		}
	}
}

func (b *Bridge) runOnce(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, b.dsn)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)

	for _, ch := range b.channels {
		if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{ch}.Sanitize()); err != nil {
			return err
		}
	}

	for {
		notif, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}

		var payload any
		if err := json.Unmarshal([]byte(notif.Payload), &payload); err != nil {
			payload = notif.Payload
		}

		b.pub.Broadcast(bus.Event{Name: notif.Channel, Payload: payload})
	}
}
