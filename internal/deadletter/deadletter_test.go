package deadletter

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tidesync/internal/models"
	"tidesync/internal/storage"
)

type failingStore struct {
	storage.Store
	failing bool
}

func (f *failingStore) Set(ctx context.Context, key string, data []byte) error {
	if f.failing {
		return errors.New("disk full")
	}
	return f.Store.Set(ctx, key, data)
}

func newTestSink(t *testing.T) *Sink {
	t.Helper()
	s, err := New(context.Background(), storage.NewMemoryStore(0), "", zerolog.Nop())
	require.NoError(t, err)
	return s
}

func failedOp(id string) models.Operation {
	return models.Operation{
		ID:         id,
		Entity:     models.EntityProduct,
		Action:     models.ActionUpdate,
		Payload:    models.ProductPayload(models.Product{ID: "p-1", Name: "widget"}),
		RetryCount: 3,
	}
}

func TestAddResetsRetryCount(t *testing.T) {
	s := newTestSink(t)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, failedOp("op-1"), "remote responded 500"))

	entries := s.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "op-1", entries[0].Op.ID)
	assert.Equal(t, 0, entries[0].Op.RetryCount)
	assert.Equal(t, "remote responded 500", entries[0].Reason)
	assert.False(t, entries[0].FailedAt.IsZero())
	assert.Equal(t, 1, s.Count())
}

func TestDrainClearsAndReturns(t *testing.T) {
	s := newTestSink(t)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, failedOp("op-1"), "a"))
	require.NoError(t, s.Add(ctx, failedOp("op-2"), "b"))

	drained, err := s.Drain(ctx)
	require.NoError(t, err)
	assert.Len(t, drained, 2)
	assert.Equal(t, 0, s.Count())
}

func TestClear(t *testing.T) {
	s := newTestSink(t)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, failedOp("op-1"), "a"))
	require.NoError(t, s.Clear(ctx))
	assert.Equal(t, 0, s.Count())
	assert.Empty(t, s.Entries())
}

func TestAddRollbackOnPersistFailure(t *testing.T) {
	store := &failingStore{Store: storage.NewMemoryStore(0)}
	s, err := New(context.Background(), store, "", zerolog.Nop())
	require.NoError(t, err)
	ctx := context.Background()

	store.failing = true
	require.Error(t, s.Add(ctx, failedOp("op-1"), "x"))
	assert.Equal(t, 0, s.Count())
}

func TestReloadFromStorage(t *testing.T) {
	store := storage.NewMemoryStore(0)
	ctx := context.Background()

	s, err := New(ctx, store, "", zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, s.Add(ctx, failedOp("op-1"), "kept"))

	reloaded, err := New(ctx, store, "", zerolog.Nop())
	require.NoError(t, err)
	require.Equal(t, 1, reloaded.Count())
	assert.Equal(t, "kept", reloaded.Entries()[0].Reason)
}
