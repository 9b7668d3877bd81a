// Package cleanup implements the background retention sweep: expired
// messages are deleted on every tick, while action and snapshot history
// are pruned only on the cron cadence configured for the deployment.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/adhocore/gronx"

	"github.com/agentmemory/backend/internal/config"
	"github.com/agentmemory/backend/internal/store"
)

// tickInterval is how often the worker checks the cron expression and
// expires messages; it is independent of the cron cadence itself, which
// governs only the heavier action/snapshot prune.
const tickInterval = time.Minute

// Worker is the Cleanup component.
type Worker struct {
	messages  store.MessageStore
	actions   store.ActionStore
	snapshots store.SnapshotStore
	cfg       config.CleanupConfig

	lastDue time.Time
}

// New constructs a Worker over the given stores and retention config.
func New(messages store.MessageStore, actions store.ActionStore, snapshots store.SnapshotStore, cfg config.CleanupConfig) *Worker {
	return &Worker{messages: messages, actions: actions, snapshots: snapshots, cfg: cfg}
}

// Run blocks until ctx is cancelled, expiring messages every tick and
// running the heavier action/snapshot prune whenever cron reports the
// configured expression is due.
func (w *Worker) Run(ctx context.Context, cron gronx.Gronx) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.expireMessages(ctx)

			due, err := cron.IsDue(w.cfg.Cron)
			if err != nil {
				slog.Warn("cleanup: cron evaluation failed", "error", err)
				continue
			}
			if due {
				w.pruneHistory(ctx)
			}
		}
	}
}

func (w *Worker) expireMessages(ctx context.Context) {
	n, err := w.messages.DeleteExpired(ctx, time.Now())
	if err != nil {
		slog.Warn("cleanup: expire messages failed", "error", err)
		return
	}
	if n > 0 {
		slog.Info("cleanup: expired messages", "count", n)
	}
}

func (w *Worker) pruneHistory(ctx context.Context) {
	if w.cfg.ActionRetention > 0 {
		cutoff := time.Now().Add(-w.cfg.ActionRetention)
		n, err := w.actions.DeleteOlderThan(ctx, cutoff)
		if err != nil {
			slog.Warn("cleanup: prune actions failed", "error", err)
		} else if n > 0 {
			slog.Info("cleanup: pruned actions", "count", n, "cutoff", cutoff)
		}
	}

	if w.cfg.SnapshotRetention > 0 {
		cutoff := time.Now().Add(-w.cfg.SnapshotRetention)
		n, err := w.snapshots.DeleteOlderThan(ctx, cutoff)
		if err != nil {
			slog.Warn("cleanup: prune snapshots failed", "error", err)
		} else if n > 0 {
			slog.Info("cleanup: pruned snapshots", "count", n, "cutoff", cutoff)
		}
	}
}
