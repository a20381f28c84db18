package services

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/petterhj/yt-dvr/sources"
	"github.com/petterhj/yt-dvr/store"
	"github.com/petterhj/yt-dvr/types"
)

func testLogger() *log.Logger {
	return log.New(io.Discard)
}

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

// recordingHub captures published progress updates in order.
type recordingHub struct {
	mu      sync.Mutex
	updates []types.ProgressUpdate
}

func (h *recordingHub) Publish(event string, data any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if update, ok := data.(types.ProgressUpdate); ok {
		h.updates = append(h.updates, update)
	}
}

func (h *recordingHub) Updates() []types.ProgressUpdate {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]types.ProgressUpdate(nil), h.updates...)
}

// storeItem persists an item for the fake source's id without going
// through the facade.
func storeItem(t *testing.T, st store.Store, item types.Item) types.Item {
	t.Helper()
	item.ID = uuid.New().String()
	stored, err := st.InsertItem(context.Background(), item)
	require.NoError(t, err)
	return stored
}

// queuedJob creates an item plus a job advanced to QUEUED, ready for the
// runner.
func queuedJob(t *testing.T, st store.Store, jobs *Jobs, src *sources.FakeSource, itemID string) types.JobWithItem {
	t.Helper()
	ctx := context.Background()

	item := storeItem(t, st, src.AddItem(itemID, "Video "+itemID))

	job, err := jobs.Create(ctx, item)
	require.NoError(t, err)

	job, err = jobs.Enqueue(ctx, job)
	require.NoError(t, err)

	return types.JobWithItem{Job: job, Item: item}
}
