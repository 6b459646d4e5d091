package postgres

import (
	"context"
	"fmt"
	"time"

	"etoken-wallet/internal/storage"
)

// FavoritesStore implements storage.FavoritesStore using PostgreSQL.
type FavoritesStore struct {
	pool *Pool
}

// NewFavoritesStore creates a new FavoritesStore.
func NewFavoritesStore(pool *Pool) *FavoritesStore {
	return &FavoritesStore{pool: pool}
}

// Compile-time interface check.
var _ storage.FavoritesStore = (*FavoritesStore)(nil)

// Add marks entryID as a favorite of owner. Returns true if it was not already present.
func (s *FavoritesStore) Add(ctx context.Context, owner, entryID string) (_ bool, err error) {
	if owner == "" || entryID == "" {
		return false, storage.ErrInvalidInput
	}
	defer observe("favorites_add", time.Now(), &err)

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO favorites (owner_address, entry_id)
		VALUES ($1, $2)
		ON CONFLICT (owner_address, entry_id) DO NOTHING
	`, owner, entryID)
	if err != nil {
		return false, fmt.Errorf("insert favorite: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Contains reports whether entryID is a favorite of owner.
func (s *FavoritesStore) Contains(ctx context.Context, owner, entryID string) (_ bool, err error) {
	defer observe("favorites_contains", time.Now(), &err)

	var exists bool
	err = s.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM favorites WHERE owner_address = $1 AND entry_id = $2)
	`, owner, entryID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check favorite: %w", err)
	}
	return exists, nil
}

// List retrieves all favorite entry IDs of owner, sorted.
func (s *FavoritesStore) List(ctx context.Context, owner string) (_ []string, err error) {
	defer observe("favorites_list", time.Now(), &err)

	rows, err := s.pool.Query(ctx, `
		SELECT entry_id FROM favorites WHERE owner_address = $1 ORDER BY entry_id
	`, owner)
	if err != nil {
		return nil, fmt.Errorf("query favorites: %w", err)
	}
	defer rows.Close()

	result := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan favorite: %w", err)
		}
		result = append(result, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate favorites: %w", err)
	}
	return result, nil
}
