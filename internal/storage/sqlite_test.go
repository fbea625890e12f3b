package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sync.db")
	store, err := NewSQLiteStore(path, 0)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	t.Run("MissingKey", func(t *testing.T) {
		data, err := store.Get(ctx, "tidesync:missing")
		require.NoError(t, err)
		assert.Nil(t, data)
	})

	t.Run("SetGetDelete", func(t *testing.T) {
		err := store.Set(ctx, "tidesync:oplog", []byte(`[{"id":"op-1"}]`))
		require.NoError(t, err)

		data, err := store.Get(ctx, "tidesync:oplog")
		require.NoError(t, err)
		assert.JSONEq(t, `[{"id":"op-1"}]`, string(data))

		require.NoError(t, store.Delete(ctx, "tidesync:oplog"))
		data, err = store.Get(ctx, "tidesync:oplog")
		require.NoError(t, err)
		assert.Nil(t, data)
	})

	t.Run("Overwrite", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "k", []byte("one")))
		require.NoError(t, store.Set(ctx, "k", []byte("two")))
		data, err := store.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, "two", string(data))
	})
}

func TestSQLiteStoreSizeGuard(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync.db")
	store, err := NewSQLiteStore(path, 16)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	err = store.Set(ctx, "k", make([]byte, 17))
	require.ErrorIs(t, err, ErrTooLarge)

	// Nothing was written.
	data, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync.db")
	ctx := context.Background()

	store, err := NewSQLiteStore(path, 0)
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "tidesync:deadletter", []byte(`[]`)))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(path, 0)
	require.NoError(t, err)
	defer reopened.Close()

	data, err := reopened.Get(ctx, "tidesync:deadletter")
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(data))
}
