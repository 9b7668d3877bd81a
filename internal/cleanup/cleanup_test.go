package cleanup

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/agentmemory/backend/internal/config"
	"github.com/agentmemory/backend/internal/store"
)

type fakeMessageStore struct {
	deleteExpiredCalls int
	toDelete            int64
	err                 error
}

func (f *fakeMessageStore) Send(ctx context.Context, m *store.MessageData) error { return nil }
func (f *fakeMessageStore) Get(ctx context.Context, id uuid.UUID) (*store.MessageData, error) {
	return nil, store.ErrNotFound
}
func (f *fakeMessageStore) Pending(ctx context.Context, agentID, topic string, page store.PageOpts) ([]*store.MessageData, error) {
	return nil, nil
}
func (f *fakeMessageStore) List(ctx context.Context, filter store.MessageFilter, page store.PageOpts) ([]*store.MessageData, error) {
	return nil, nil
}
func (f *fakeMessageStore) MarkRead(ctx context.Context, id uuid.UUID, agentID string) error {
	return nil
}
func (f *fakeMessageStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	f.deleteExpiredCalls++
	return f.toDelete, f.err
}

type fakeActionStore struct {
	deleteOlderThanCalls int
	lastCutoff           time.Time
	toDelete             int64
}

func (f *fakeActionStore) Create(ctx context.Context, a *store.ActionData) error { return nil }
func (f *fakeActionStore) ListBySubtask(ctx context.Context, subtaskID uuid.UUID, page store.PageOpts) ([]*store.ActionData, error) {
	return nil, nil
}
func (f *fakeActionStore) ListBySession(ctx context.Context, sessionID uuid.UUID, page store.PageOpts) ([]*store.ActionData, error) {
	return nil, nil
}
func (f *fakeActionStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	f.deleteOlderThanCalls++
	f.lastCutoff = cutoff
	return f.toDelete, nil
}

type fakeSnapshotStore struct {
	deleteOlderThanCalls int
}

func (f *fakeSnapshotStore) Save(ctx context.Context, s *store.SnapshotData) error { return nil }
func (f *fakeSnapshotStore) GetLatest(ctx context.Context, sessionID uuid.UUID) (*store.SnapshotData, error) {
	return nil, store.ErrNotFound
}
func (f *fakeSnapshotStore) Get(ctx context.Context, sessionID uuid.UUID, compactID string) (*store.SnapshotData, error) {
	return nil, store.ErrNotFound
}
func (f *fakeSnapshotStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	f.deleteOlderThanCalls++
	return 0, nil
}

func TestExpireMessagesCallsDeleteExpired(t *testing.T) {
	messages := &fakeMessageStore{toDelete: 3}
	w := New(messages, &fakeActionStore{}, &fakeSnapshotStore{}, config.CleanupConfig{})

	w.expireMessages(context.Background())

	if messages.deleteExpiredCalls != 1 {
		t.Fatalf("deleteExpiredCalls = %d, want 1", messages.deleteExpiredCalls)
	}
}

func TestExpireMessagesToleratesStoreError(t *testing.T) {
	messages := &fakeMessageStore{err: context.DeadlineExceeded}
	w := New(messages, &fakeActionStore{}, &fakeSnapshotStore{}, config.CleanupConfig{})

	w.expireMessages(context.Background())
}

func TestPruneHistoryPrunesBothWhenRetentionSet(t *testing.T) {
	actions := &fakeActionStore{toDelete: 5}
	snapshots := &fakeSnapshotStore{}
	cfg := config.CleanupConfig{
		ActionRetention:   24 * time.Hour,
		SnapshotRetention: 48 * time.Hour,
	}
	w := New(&fakeMessageStore{}, actions, snapshots, cfg)

	w.pruneHistory(context.Background())

	if actions.deleteOlderThanCalls != 1 {
		t.Fatalf("actions.deleteOlderThanCalls = %d, want 1", actions.deleteOlderThanCalls)
	}
	if snapshots.deleteOlderThanCalls != 1 {
		t.Fatalf("snapshots.deleteOlderThanCalls = %d, want 1", snapshots.deleteOlderThanCalls)
	}
}

func TestPruneHistorySkipsWhenRetentionZero(t *testing.T) {
	actions := &fakeActionStore{}
	snapshots := &fakeSnapshotStore{}
	w := New(&fakeMessageStore{}, actions, snapshots, config.CleanupConfig{})

	w.pruneHistory(context.Background())

	if actions.deleteOlderThanCalls != 0 {
		t.Fatalf("actions.deleteOlderThanCalls = %d, want 0 when ActionRetention is 0", actions.deleteOlderThanCalls)
	}
	if snapshots.deleteOlderThanCalls != 0 {
		t.Fatalf("snapshots.deleteOlderThanCalls = %d, want 0 when SnapshotRetention is 0", snapshots.deleteOlderThanCalls)
	}
}

func TestPruneHistoryCutoffReflectsRetention(t *testing.T) {
	actions := &fakeActionStore{}
	cfg := config.CleanupConfig{ActionRetention: time.Hour}
	w := New(&fakeMessageStore{}, actions, &fakeSnapshotStore{}, cfg)

	before := time.Now().Add(-time.Hour)
	w.pruneHistory(context.Background())
	after := time.Now().Add(-time.Hour)

	if actions.lastCutoff.Before(before.Add(-time.Second)) || actions.lastCutoff.After(after.Add(time.Second)) {
		t.Fatalf("lastCutoff = %v, want within a second of now-1h", actions.lastCutoff)
	}
}
