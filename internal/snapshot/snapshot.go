// Package snapshot implements the compact save/restore protocol: agents
// about to lose their context window persist a zstd-compressed blob of
// working state, and the next agent in the chain restores from it (or
// falls back to live session state when nothing was saved).
package snapshot

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"github.com/agentmemory/backend/internal/apierror"
	"github.com/agentmemory/backend/internal/bus"
	"github.com/agentmemory/backend/internal/store"
	"github.com/agentmemory/backend/pkg/protocol"
)

// snapshotFormat identifies the on-disk payload shape so future format
// changes can be detected instead of silently misdecoded.
const snapshotFormat byte = 1

// header is: [format byte][version byte][uncompressed length uint32 BE],
// followed by the zstd-compressed body.
const headerLen = 1 + 1 + 4

// Engine is the Snapshot component.
type Engine struct {
	snapshots store.SnapshotStore
	agentCtx  store.AgentContextStore
	sessions  store.SessionStore
	notify    store.Notifier
	pub       bus.Publisher

	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// New constructs an Engine over the given stores. The zstd encoder/decoder
// are built once and reused across calls; zstd.Encoder/Decoder are safe for
// concurrent use.
func New(snapshots store.SnapshotStore, agentCtx store.AgentContextStore, sessions store.SessionStore, notify store.Notifier, pub bus.Publisher) *Engine {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		panic(fmt.Sprintf("snapshot: build zstd encoder: %v", err))
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		panic(fmt.Sprintf("snapshot: build zstd decoder: %v", err))
	}
	return &Engine{snapshots: snapshots, agentCtx: agentCtx, sessions: sessions, notify: notify, pub: pub, encoder: enc, decoder: dec}
}

// AgentState is one agent's surviving record across a compact, saved
// alongside the bulk payload.
type AgentState struct {
	AgentID         string
	ProgressSummary string
	ToolsUsed       []string
	RoleContext     string
}

// SaveInput is the caller-supplied shape for Save.
type SaveInput struct {
	SessionID     uuid.UUID
	CompactID     string
	ModifiedFiles []string
	Summary       string
	Payload       []byte // uncompressed; Save compresses it
	Agents        []AgentState
}

func (e *Engine) compress(raw []byte) []byte {
	body := e.encoder.EncodeAll(raw, nil)
	buf := make([]byte, headerLen, headerLen+len(body))
	buf[0] = snapshotFormat
	buf[1] = 1 // protocol version
	binary.BigEndian.PutUint32(buf[2:6], uint32(len(raw)))
	buf = append(buf, body...)
	return buf
}

func (e *Engine) decompress(framed []byte) ([]byte, error) {
	if len(framed) < headerLen {
		return nil, fmt.Errorf("snapshot payload too short: %d bytes", len(framed))
	}
	if framed[0] != snapshotFormat {
		return nil, fmt.Errorf("unrecognized snapshot format byte %d", framed[0])
	}
	wantLen := binary.BigEndian.Uint32(framed[2:6])
	raw, err := e.decoder.DecodeAll(framed[headerLen:], make([]byte, 0, wantLen))
	if err != nil {
		return nil, fmt.Errorf("decompress snapshot: %w", err)
	}
	return raw, nil
}

// Save persists a compressed snapshot plus the per-agent context rows for
// compactID, publishing snapshot.saved on success. The caller is
// responsible for compacting the session's own context window; Save only
// persists the handoff state.
func (e *Engine) Save(ctx context.Context, in SaveInput) (*store.SnapshotData, error) {
	if in.CompactID == "" {
		return nil, apierror.Validation("compact id is required")
	}

	sn := &store.SnapshotData{
		ID:            store.GenID(),
		SessionID:     in.SessionID,
		CompactID:     in.CompactID,
		Payload:       e.compress(in.Payload),
		ModifiedFiles: in.ModifiedFiles,
		Summary:       in.Summary,
		CreatedAt:     time.Now(),
	}
	if err := e.snapshots.Save(ctx, sn); err != nil {
		return nil, fmt.Errorf("save snapshot: %w", err)
	}

	for _, a := range in.Agents {
		ac := &store.AgentContextData{
			ID:              store.GenID(),
			SessionID:       in.SessionID,
			CompactID:       in.CompactID,
			AgentID:         a.AgentID,
			ProgressSummary: a.ProgressSummary,
			ToolsUsed:       a.ToolsUsed,
			RoleContext:     a.RoleContext,
			UpdatedAt:       time.Now(),
		}
		if err := e.agentCtx.Upsert(ctx, ac); err != nil {
			return nil, fmt.Errorf("save agent context for %s: %w", a.AgentID, err)
		}
	}

	if err := e.sessions.IncrementCompactCount(ctx, in.SessionID); err != nil {
		return nil, fmt.Errorf("increment compact count: %w", err)
	}

	e.publish(ctx, protocol.EventSnapshotSaved, map[string]any{
		"session_id": in.SessionID,
		"compact_id": in.CompactID,
	})

	return sn, nil
}

// RestoreResult is the decoded counterpart to a saved snapshot.
type RestoreResult struct {
	Payload       []byte
	ModifiedFiles []string
	Summary       string
	Agents        []*store.AgentContextData
	CreatedAt     time.Time
	FromLiveState bool
}

// Restore returns the most recent snapshot for sessionID, decompressing
// its payload and attaching the per-agent context rows saved alongside it.
// If no snapshot exists at all, Restore falls back to reporting that the
// caller should reconstruct state from the live session rather than
// erroring, since a brand-new session has nothing to restore from.
func (e *Engine) Restore(ctx context.Context, sessionID uuid.UUID) (*RestoreResult, error) {
	sn, err := e.snapshots.GetLatest(ctx, sessionID)
	if err != nil {
		if err == store.ErrNotFound {
			return &RestoreResult{FromLiveState: true}, nil
		}
		return nil, fmt.Errorf("load latest snapshot: %w", err)
	}

	raw, err := e.decompress(sn.Payload)
	if err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", sn.ID, err)
	}

	agents, err := e.agentCtx.ListBySnapshot(ctx, sessionID, sn.CompactID)
	if err != nil {
		return nil, fmt.Errorf("load agent context: %w", err)
	}

	e.publish(ctx, protocol.EventSnapshotRestored, map[string]any{
		"session_id": sessionID,
		"compact_id": sn.CompactID,
	})

	return &RestoreResult{
		Payload:       raw,
		ModifiedFiles: sn.ModifiedFiles,
		Summary:       sn.Summary,
		Agents:        agents,
		CreatedAt:     sn.CreatedAt,
	}, nil
}

// RestoreAt restores a specific compact generation rather than the latest.
func (e *Engine) RestoreAt(ctx context.Context, sessionID uuid.UUID, compactID string) (*RestoreResult, error) {
	sn, err := e.snapshots.Get(ctx, sessionID, compactID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, apierror.NotFound(fmt.Sprintf("no snapshot %s for session %s", compactID, sessionID))
		}
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	raw, err := e.decompress(sn.Payload)
	if err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", sn.ID, err)
	}
	agents, err := e.agentCtx.ListBySnapshot(ctx, sessionID, compactID)
	if err != nil {
		return nil, fmt.Errorf("load agent context: %w", err)
	}
	return &RestoreResult{
		Payload: raw, ModifiedFiles: sn.ModifiedFiles, Summary: sn.Summary,
		Agents: agents, CreatedAt: sn.CreatedAt,
	}, nil
}

// PruneOlderThan deletes snapshots past the retention cutoff, called by the
// Cleanup Worker.
func (e *Engine) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := e.snapshots.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}
	return n, nil
}

func (e *Engine) publish(ctx context.Context, event string, payload any) {
	if e.pub != nil {
		e.pub.Broadcast(bus.Event{Name: event, Payload: payload})
	}
	if e.notify != nil {
		_ = e.notify.Publish(ctx, event, payload)
	}
}
