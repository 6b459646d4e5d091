package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"etoken-wallet/internal/domain"
	"etoken-wallet/internal/storage"
)

// DirectoryStore implements storage.DirectoryStore using PostgreSQL.
type DirectoryStore struct {
	pool *Pool
}

// NewDirectoryStore creates a new DirectoryStore.
func NewDirectoryStore(pool *Pool) *DirectoryStore {
	return &DirectoryStore{pool: pool}
}

// Compile-time interface check.
var _ storage.DirectoryStore = (*DirectoryStore)(nil)

const directoryColumns = `id, token_id, name, ticker, decimals, image_url, region, verified`

// GetByTokenID retrieves the entry for an exact token ID. Returns ErrNotFound if not listed.
func (s *DirectoryStore) GetByTokenID(ctx context.Context, tokenID string) (_ *domain.DirectoryEntry, err error) {
	defer observe("directory_get", time.Now(), &err)

	query := `SELECT ` + directoryColumns + ` FROM token_directory WHERE token_id = $1`

	e, err := scanDirectoryEntry(s.pool.QueryRow(ctx, query, tokenID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get directory entry: %w", err)
	}
	return e, nil
}

// List retrieves all entries ordered by ID.
func (s *DirectoryStore) List(ctx context.Context) (_ []*domain.DirectoryEntry, err error) {
	defer observe("directory_list", time.Now(), &err)

	rows, err := s.pool.Query(ctx, `SELECT `+directoryColumns+` FROM token_directory ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query directory: %w", err)
	}
	defer rows.Close()

	var result []*domain.DirectoryEntry
	for rows.Next() {
		e, err := scanDirectoryEntry(rows)
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
func (s *DirectoryStore) Upsert(ctx context.Context, e *domain.DirectoryEntry) (err error) {
	if e == nil || e.ID == "" || e.TokenID == "" {
		return storage.ErrInvalidInput
	}
	defer observe("directory_upsert", time.Now(), &err)

	query := `
		INSERT INTO token_directory (` + directoryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			token_id = EXCLUDED.token_id,
			name = EXCLUDED.name,
			ticker = EXCLUDED.ticker,
			decimals = EXCLUDED.decimals,
			image_url = EXCLUDED.image_url,
			region = EXCLUDED.region,
			verified = EXCLUDED.verified
	`

	_, err = s.pool.Exec(ctx, query,
		e.ID, e.TokenID, e.Name, e.Ticker, e.Decimals, e.ImageURL, e.Region, e.Verified,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			// token_id already listed under another entry ID
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("upsert directory entry: %w", err)
	}
	return nil
}

func scanDirectoryEntry(row pgx.Row) (*domain.DirectoryEntry, error) {
	var e domain.DirectoryEntry
	err := row.Scan(
		&e.ID,
		&e.TokenID,
		&e.Name,
		&e.Ticker,
		&e.Decimals,
		&e.ImageURL,
		&e.Region,
		&e.Verified,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
