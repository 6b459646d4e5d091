package storage

import (
	"context"

	"etoken-wallet/internal/domain"
)

// HistoryStore provides access to the append-only action history.
type HistoryStore interface {
	// Append adds a new entry. Returns ErrDuplicateKey if the entry ID exists.
	Append(ctx context.Context, e *domain.HistoryEntry) error

	// ListByOwner retrieves up to limit entries for an owner, newest first.
	// A non-positive limit returns all entries.
	ListByOwner(ctx context.Context, owner string, limit int) ([]*domain.HistoryEntry, error)
}

// DirectoryStore provides read access to the curated token directory.
type DirectoryStore interface {
	// GetByTokenID retrieves the entry for an exact token ID. Returns ErrNotFound if not listed.
	GetByTokenID(ctx context.Context, tokenID string) (*domain.DirectoryEntry, error)

	// List retrieves all entries ordered by ID.
	List(ctx context.Context) ([]*domain.DirectoryEntry, error)

	// Upsert inserts or replaces an entry. Used for seeding.
	Upsert(ctx context.Context, e *domain.DirectoryEntry) error
}

// FavoritesStore provides access to per-owner favorite directory entries.
// Scans only ever add to it.
type FavoritesStore interface {
	// Add marks entryID as a favorite of owner. Returns true if it was not already present.
	Add(ctx context.Context, owner, entryID string) (bool, error)

	// Contains reports whether entryID is a favorite of owner.
	Contains(ctx context.Context, owner, entryID string) (bool, error)

	// List retrieves all favorite entry IDs of owner, sorted.
	List(ctx context.Context, owner string) ([]string, error)
}

// SnapshotStore provides access to per-scan holding snapshots.
type SnapshotStore interface {
	// InsertBulk appends snapshots.
	InsertBulk(ctx context.Context, snaps []*domain.HoldingSnapshot) error

	// GetByOwner retrieves snapshots for owner scanned within [start, end] (inclusive),
	// ordered by scanned_at ASC, token_id ASC.
	GetByOwner(ctx context.Context, owner string, start, end int64) ([]*domain.HoldingSnapshot, error)
}
