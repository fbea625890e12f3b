package oplog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tidesync/internal/models"
	"tidesync/internal/storage"
)

// failingStore errors on Set while failing is true.
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

func newTestLog(t *testing.T) *Log {
	t.Helper()
	l, err := New(context.Background(), storage.NewMemoryStore(0), "", 0, zerolog.Nop())
	require.NoError(t, err)
	return l
}

func productOp(id string, name string) *models.Operation {
	return &models.Operation{
		ID:     id,
		Entity: models.EntityProduct,
		Action: models.ActionCreate,
		Payload: models.ProductPayload(models.Product{
			ID:        "p-" + name,
			Name:      name,
			UpdatedAt: time.Now(),
		}),
	}
}

func TestEnqueueDequeueFIFO(t *testing.T) {
	l := newTestLog(t)
	ctx := context.Background()

	first := productOp("", "first")
	second := productOp("", "second")
	third := productOp("", "third")

	require.NoError(t, l.Enqueue(ctx, first))
	require.NoError(t, l.Enqueue(ctx, second))
	require.NoError(t, l.Enqueue(ctx, third))

	assert.NotEmpty(t, first.ID)
	assert.False(t, first.EnqueuedAt.IsZero())
	assert.Equal(t, 3, l.Size())

	head, ok := l.Peek()
	require.True(t, ok)
	assert.Equal(t, first.ID, head.ID)

	// Dequeue always returns the earliest remaining operation.
	got, ok, err := l.Dequeue(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, first.ID, got.ID)

	got, ok, err = l.Dequeue(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, second.ID, got.ID)

	assert.Equal(t, 1, l.Size())

	got, ok, err = l.Dequeue(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, third.ID, got.ID)

	_, ok, err = l.Dequeue(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, l.Size())
}

func TestRemoveArbitrary(t *testing.T) {
	l := newTestLog(t)
	ctx := context.Background()

	a := productOp("", "a")
	b := productOp("", "b")
	c := productOp("", "c")
	require.NoError(t, l.Enqueue(ctx, a))
	require.NoError(t, l.Enqueue(ctx, b))
	require.NoError(t, l.Enqueue(ctx, c))

	require.NoError(t, l.Remove(ctx, b.ID))
	assert.Equal(t, 2, l.Size())

	snapshot := l.Snapshot()
	assert.Equal(t, a.ID, snapshot[0].ID)
	assert.Equal(t, c.ID, snapshot[1].ID)

	assert.ErrorIs(t, l.Remove(ctx, "unknown"), ErrNotFound)
}

func TestEnqueueRollbackOnPersistFailure(t *testing.T) {
	store := &failingStore{Store: storage.NewMemoryStore(0)}
	l, err := New(context.Background(), store, "", 0, zerolog.Nop())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, l.Enqueue(ctx, productOp("", "ok")))

	store.failing = true
	err = l.Enqueue(ctx, productOp("", "bad"))
	require.Error(t, err)

	// The failed append was rolled back; memory matches storage.
	assert.Equal(t, 1, l.Size())
	store.failing = false

	head, ok := l.Peek()
	require.True(t, ok)
	assert.Equal(t, "p-ok", head.Payload.Products[0].ID)
}

func TestEnqueueSizeGuard(t *testing.T) {
	store := storage.NewMemoryStore(64)
	l, err := New(context.Background(), store, "", 0, zerolog.Nop())
	require.NoError(t, err)

	err = l.Enqueue(context.Background(), productOp("", "way-too-big-for-the-tiny-limit"))
	require.ErrorIs(t, err, storage.ErrTooLarge)
	assert.Equal(t, 0, l.Size())
}

func TestIncrementRetryBudget(t *testing.T) {
	l := newTestLog(t)
	ctx := context.Background()

	op := productOp("", "retry")
	require.NoError(t, l.Enqueue(ctx, op))

	updated, exceeded, err := l.IncrementRetry(ctx, op.ID)
	require.NoError(t, err)
	assert.False(t, exceeded)
	assert.Equal(t, 1, updated.RetryCount)

	_, exceeded, err = l.IncrementRetry(ctx, op.ID)
	require.NoError(t, err)
	assert.False(t, exceeded)

	// Third failure exhausts the budget: removed and flagged for dead letter.
	removed, exceeded, err := l.IncrementRetry(ctx, op.ID)
	require.NoError(t, err)
	assert.True(t, exceeded)
	assert.Equal(t, op.ID, removed.ID)
	assert.Equal(t, 3, removed.RetryCount)
	assert.Equal(t, 0, l.Size())

	_, _, err = l.IncrementRetry(ctx, op.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestQueueInfo(t *testing.T) {
	l := newTestLog(t)
	ctx := context.Background()

	info := l.Info()
	assert.Equal(t, 0, info.Count)
	assert.Nil(t, info.OldestEnqueuedAt)

	first := productOp("", "one")
	require.NoError(t, l.Enqueue(ctx, first))
	require.NoError(t, l.Enqueue(ctx, productOp("", "two")))

	info = l.Info()
	assert.Equal(t, 2, info.Count)
	assert.Positive(t, info.SizeBytes)
	require.NotNil(t, info.OldestEnqueuedAt)
	assert.Equal(t, first.EnqueuedAt.Unix(), info.OldestEnqueuedAt.Unix())
}

func TestReloadFromStorage(t *testing.T) {
	store := storage.NewMemoryStore(0)
	ctx := context.Background()

	l, err := New(ctx, store, "", 0, zerolog.Nop())
	require.NoError(t, err)
	op := productOp("", "persisted")
	require.NoError(t, l.Enqueue(ctx, op))

	reloaded, err := New(ctx, store, "", 0, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.Size())
	head, ok := reloaded.Peek()
	require.True(t, ok)
	assert.Equal(t, op.ID, head.ID)
}

func TestPendingRecordIDs(t *testing.T) {
	l := newTestLog(t)
	ctx := context.Background()

	require.NoError(t, l.Enqueue(ctx, productOp("", "queued")))
	require.NoError(t, l.Enqueue(ctx, &models.Operation{
		Entity:  models.EntityCustomer,
		Action:  models.ActionCreate,
		Payload: models.CustomerPayload(models.Customer{ID: "c-1", Name: "Ann"}),
	}))

	ids := l.PendingRecordIDs(models.EntityProduct)
	assert.Contains(t, ids, "p-queued")
	assert.NotContains(t, ids, "c-1")
}
