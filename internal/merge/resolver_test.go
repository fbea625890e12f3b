package merge

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tidesync/internal/models"
	"tidesync/internal/oplog"
	"tidesync/internal/remote"
	"tidesync/internal/storage"
)

func newTestResolver(t *testing.T) (*Resolver, *MemoryStore, *oplog.Log) {
	t.Helper()
	log, err := oplog.New(context.Background(), storage.NewMemoryStore(0), "test:oplog", 3, zerolog.Nop())
	require.NoError(t, err)
	local := NewMemoryStore()
	return NewResolver(local, log, zerolog.Nop()), local, log
}

func productAt(id string, updated time.Time) models.Product {
	return models.Product{
		ID:        id,
		Name:      "item " + id,
		CreatedAt: updated,
		UpdatedAt: updated,
	}
}

func rawProduct(t *testing.T, p models.Product) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(p)
	require.NoError(t, err)
	return raw
}

func TestApplyEventNewerWins(t *testing.T) {
	r, local, _ := newTestResolver(t)
	base := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

	local.Put(models.EntityProduct, productAt("p1", base))

	newer := productAt("p1", base.Add(time.Minute))
	newer.Name = "renamed"
	err := r.ApplyEvent(models.EntityProduct, remote.Event{
		Type:  remote.EventUpdate,
		Table: "products",
		New:   rawProduct(t, newer),
	})
	require.NoError(t, err)

	got, ok := local.Get(models.EntityProduct, "p1")
	require.True(t, ok)
	assert.Equal(t, "renamed", got.(models.Product).Name)
}

func TestApplyEventOlderLoses(t *testing.T) {
	r, local, _ := newTestResolver(t)
	base := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

	current := productAt("p1", base)
	current.Name = "current"
	local.Put(models.EntityProduct, current)

	stale := productAt("p1", base.Add(-time.Minute))
	stale.Name = "stale"
	err := r.ApplyEvent(models.EntityProduct, remote.Event{
		Type: remote.EventUpdate,
		New:  rawProduct(t, stale),
	})
	require.NoError(t, err)

	got, ok := local.Get(models.EntityProduct, "p1")
	require.True(t, ok)
	assert.Equal(t, "current", got.(models.Product).Name)
}

func TestApplyEventTieKeepsLocal(t *testing.T) {
	r, local, _ := newTestResolver(t)
	base := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

	current := productAt("p1", base)
	current.Name = "local copy"
	local.Put(models.EntityProduct, current)

	// Echo of our own write carries the same timestamp.
	echo := productAt("p1", base)
	echo.Name = "remote echo"
	err := r.ApplyEvent(models.EntityProduct, remote.Event{
		Type: remote.EventUpdate,
		New:  rawProduct(t, echo),
	})
	require.NoError(t, err)

	got, ok := local.Get(models.EntityProduct, "p1")
	require.True(t, ok)
	assert.Equal(t, "local copy", got.(models.Product).Name)
}

func TestApplyEventSoftDeleteRemovesLocal(t *testing.T) {
	r, local, _ := newTestResolver(t)
	base := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

	local.Put(models.EntityProduct, productAt("p1", base))

	deletedAt := base.Add(time.Minute)
	tomb := productAt("p1", deletedAt)
	tomb.Deleted = true
	tomb.DeletedAt = &deletedAt
	err := r.ApplyEvent(models.EntityProduct, remote.Event{
		Type: remote.EventUpdate,
		New:  rawProduct(t, tomb),
	})
	require.NoError(t, err)

	_, ok := local.Get(models.EntityProduct, "p1")
	assert.False(t, ok)
}

func TestApplyEventUnknownRecordInserted(t *testing.T) {
	r, local, _ := newTestResolver(t)
	base := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

	err := r.ApplyEvent(models.EntityProduct, remote.Event{
		Type: remote.EventInsert,
		New:  rawProduct(t, productAt("p9", base)),
	})
	require.NoError(t, err)

	_, ok := local.Get(models.EntityProduct, "p9")
	assert.True(t, ok)
}

func TestReconcileMergesAndAdds(t *testing.T) {
	r, local, _ := newTestResolver(t)
	ctx := context.Background()
	base := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

	stale := productAt("p1", base)
	stale.Name = "stale local"
	local.Put(models.EntityProduct, stale)

	fresher := productAt("p1", base.Add(time.Hour))
	fresher.Name = "remote wins"
	brandNew := productAt("p2", base)

	err := r.Reconcile(ctx, models.EntityProduct, []json.RawMessage{
		rawProduct(t, fresher),
		rawProduct(t, brandNew),
	})
	require.NoError(t, err)

	got, ok := local.Get(models.EntityProduct, "p1")
	require.True(t, ok)
	assert.Equal(t, "remote wins", got.(models.Product).Name)

	_, ok = local.Get(models.EntityProduct, "p2")
	assert.True(t, ok)
}

func TestReconcilePrunesOrphans(t *testing.T) {
	r, local, log := newTestResolver(t)
	ctx := context.Background()
	base := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

	// p1 exists remotely, p2 is local-only without a pending operation,
	// p3 is local-only but still queued for upload.
	local.Put(models.EntityProduct, productAt("p1", base))
	local.Put(models.EntityProduct, productAt("p2", base))
	queued := productAt("p3", base)
	local.Put(models.EntityProduct, queued)

	err := log.Enqueue(ctx, &models.Operation{
		Entity:  models.EntityProduct,
		Action:  models.ActionCreate,
		Payload: models.ProductPayload(queued),
	})
	require.NoError(t, err)

	err = r.Reconcile(ctx, models.EntityProduct, []json.RawMessage{
		rawProduct(t, productAt("p1", base)),
	})
	require.NoError(t, err)

	_, ok := local.Get(models.EntityProduct, "p1")
	assert.True(t, ok, "remote-backed record survives")
	_, ok = local.Get(models.EntityProduct, "p2")
	assert.False(t, ok, "orphan without pending op is pruned")
	_, ok = local.Get(models.EntityProduct, "p3")
	assert.True(t, ok, "unsynced local creation survives")
}

func TestReconcileNonReimportableKeepsLocalOnly(t *testing.T) {
	r, local, _ := newTestResolver(t)
	ctx := context.Background()
	base := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

	local.Put(models.EntityCustomer, models.Customer{ID: "c1", Name: "walk-in", CreatedAt: base, UpdatedAt: base})

	err := r.Reconcile(ctx, models.EntityCustomer, nil)
	require.NoError(t, err)

	_, ok := local.Get(models.EntityCustomer, "c1")
	assert.True(t, ok)
}
