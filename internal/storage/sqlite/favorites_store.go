package sqlite

import (
	"context"
	"fmt"
	"time"

	"etoken-wallet/internal/storage"
)

// FavoritesStore implements storage.FavoritesStore on a local DB.
type FavoritesStore struct {
	db *DB
}

// NewFavoritesStore creates a new FavoritesStore.
func NewFavoritesStore(db *DB) *FavoritesStore {
	return &FavoritesStore{db: db}
}

var _ storage.FavoritesStore = (*FavoritesStore)(nil)

// Add marks entryID as a favorite of owner. Returns true if it was not already present.
func (s *FavoritesStore) Add(ctx context.Context, owner, entryID string) (added bool, err error) {
	if owner == "" || entryID == "" {
		return false, storage.ErrInvalidInput
	}
	defer observe("favorites_add", time.Now(), &err)

	err = s.db.withLock(ctx, func() error {
		res, err := s.db.db.ExecContext(ctx, `
			INSERT INTO favorites (owner_address, entry_id, added_at)
			VALUES (?, ?, ?)
			ON CONFLICT(owner_address, entry_id) DO NOTHING
		`, owner, entryID, time.Now().UTC().UnixMilli())
		if err != nil {
			return fmt.Errorf("insert favorite: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("insert favorite: %w", err)
		}
		added = n == 1
		return nil
	})
	return added, err
}

// Contains reports whether entryID is a favorite of owner.
func (s *FavoritesStore) Contains(ctx context.Context, owner, entryID string) (bool, error) {
	var n int
	err := s.db.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM favorites WHERE owner_address = ? AND entry_id = ?", owner, entryID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check favorite: %w", err)
	}
	return n > 0, nil
}

// List retrieves all favorite entry IDs of owner, sorted.
func (s *FavoritesStore) List(ctx context.Context, owner string) ([]string, error) {
	rows, err := s.db.db.QueryContext(ctx,
		"SELECT entry_id FROM favorites WHERE owner_address = ? ORDER BY entry_id", owner)
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
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
