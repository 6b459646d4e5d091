package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"etoken-wallet/internal/domain"
	"etoken-wallet/internal/storage"
)

// HistoryStore implements storage.HistoryStore using PostgreSQL.
type HistoryStore struct {
	pool *Pool
}

// NewHistoryStore creates a new HistoryStore.
func NewHistoryStore(pool *Pool) *HistoryStore {
	return &HistoryStore{pool: pool}
}

// Compile-time interface check.
var _ storage.HistoryStore = (*HistoryStore)(nil)

// Append adds a new entry. Returns ErrDuplicateKey if id exists.
func (s *HistoryStore) Append(ctx context.Context, e *domain.HistoryEntry) (err error) {
	if e == nil || e.ID == "" || e.OwnerAddress == "" {
		return storage.ErrInvalidInput
	}
	defer observe("history_append", time.Now(), &err)

	query := `
		INSERT INTO action_history (
			id, owner_address, token_id, ticker, action_type,
			amount, transaction_id, details, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err = s.pool.Exec(ctx, query,
		e.ID,
		e.OwnerAddress,
		e.TokenID,
		e.Ticker,
		string(e.ActionType),
		e.Amount,
		e.TransactionID,
		e.Details,
		e.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert history entry: %w", err)
	}
	return nil
}

// ListByOwner retrieves up to limit entries for owner, newest first.
func (s *HistoryStore) ListByOwner(ctx context.Context, owner string, limit int) (_ []*domain.HistoryEntry, err error) {
	defer observe("history_list", time.Now(), &err)

	query := `
		SELECT id, owner_address, token_id, ticker, action_type,
			amount, transaction_id, details, created_at
		FROM action_history
		WHERE owner_address = $1
		ORDER BY created_at DESC, id DESC
	`
	args := []any{owner}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var result []*domain.HistoryEntry
	for rows.Next() {
		e, err := scanHistoryEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return result, nil
}

func scanHistoryEntry(row pgx.Row) (*domain.HistoryEntry, error) {
	var e domain.HistoryEntry
	var action string

	err := row.Scan(
		&e.ID,
		&e.OwnerAddress,
		&e.TokenID,
		&e.Ticker,
		&action,
		&e.Amount,
		&e.TransactionID,
		&e.Details,
		&e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.ActionType = domain.ActionType(action)
	return &e, nil
}
