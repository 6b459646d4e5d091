package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"etoken-wallet/internal/domain"
	"etoken-wallet/internal/storage"
)

func TestDirectoryStore_UpsertAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewDirectoryStore(pool)
	ctx := context.Background()

	entry := &domain.DirectoryEntry{
		ID:       "entry-1",
		TokenID:  "aa11",
		Name:     "Region Coin",
		Ticker:   "RGN",
		Decimals: 2,
		ImageURL: "https://img/rgn.png",
		Region:   "north",
	}
	require.NoError(t, store.Upsert(ctx, entry))

	got, err := store.GetByTokenID(ctx, "aa11")
	require.NoError(t, err)
	assert.Equal(t, entry, got)

	entry.Name = "Renamed"
	require.NoError(t, store.Upsert(ctx, entry))
	got, err = store.GetByTokenID(ctx, "aa11")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)

	_, err = store.GetByTokenID(ctx, "AA11")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDirectoryStore_List(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewDirectoryStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, &domain.DirectoryEntry{ID: "b", TokenID: "t2"}))
	require.NoError(t, store.Upsert(ctx, &domain.DirectoryEntry{ID: "a", TokenID: "t1"}))

	got, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
}

func TestDirectoryStore_TokenIDTakenByOtherEntry(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewDirectoryStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, &domain.DirectoryEntry{ID: "a", TokenID: "t1"}))
	err := store.Upsert(ctx, &domain.DirectoryEntry{ID: "b", TokenID: "t1"})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}
