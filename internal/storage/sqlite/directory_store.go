package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"etoken-wallet/internal/domain"
	"etoken-wallet/internal/storage"
)

// DirectoryStore implements storage.DirectoryStore on a local DB.
type DirectoryStore struct {
	db *DB
}

// NewDirectoryStore creates a new DirectoryStore.
func NewDirectoryStore(db *DB) *DirectoryStore {
	return &DirectoryStore{db: db}
}

var _ storage.DirectoryStore = (*DirectoryStore)(nil)

const directoryColumns = "id, token_id, name, ticker, decimals, image_url, region, verified"

type scanner interface {
	Scan(dest ...any) error
}

// GetByTokenID retrieves the entry for an exact token ID. Returns ErrNotFound if not listed.
func (s *DirectoryStore) GetByTokenID(ctx context.Context, tokenID string) (*domain.DirectoryEntry, error) {
	row := s.db.db.QueryRowContext(ctx,
		"SELECT "+directoryColumns+" FROM token_directory WHERE token_id = ?", tokenID)
	e, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get directory entry: %w", err)
	}
	return e, nil
}

// List retrieves all entries ordered by ID.
func (s *DirectoryStore) List(ctx context.Context) ([]*domain.DirectoryEntry, error) {
	rows, err := s.db.db.QueryContext(ctx, "SELECT "+directoryColumns+" FROM token_directory ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list directory: %w", err)
	}
	defer rows.Close()

	var result []*domain.DirectoryEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan directory entry: %w", err)
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate directory: %w", err)
	}
	return result, nil
}

// Upsert inserts or replaces an entry keyed by ID.
func (s *DirectoryStore) Upsert(ctx context.Context, e *domain.DirectoryEntry) error {
	if e == nil || e.ID == "" || e.TokenID == "" {
		return storage.ErrInvalidInput
	}
	return s.db.withLock(ctx, func() error {
		_, err := s.db.db.ExecContext(ctx, `
			INSERT INTO token_directory (`+directoryColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				token_id=excluded.token_id,
				name=excluded.name,
				ticker=excluded.ticker,
				decimals=excluded.decimals,
				image_url=excluded.image_url,
				region=excluded.region,
				verified=excluded.verified
		`, e.ID, e.TokenID, e.Name, e.Ticker, e.Decimals, e.ImageURL, e.Region, e.Verified)
		if err != nil {
			if strings.Contains(err.Error(), "UNIQUE constraint failed") {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("upsert directory entry: %w", err)
		}
		return nil
	})
}

func scanEntry(row scanner) (*domain.DirectoryEntry, error) {
	var e domain.DirectoryEntry
	if err := row.Scan(&e.ID, &e.TokenID, &e.Name, &e.Ticker, &e.Decimals,
		&e.ImageURL, &e.Region, &e.Verified); err != nil {
		return nil, err
	}
	return &e, nil
}
