package sqlite

import (
	"context"
	"fmt"
	"time"

	"etoken-wallet/internal/domain"
	"etoken-wallet/internal/storage"
)

// HistoryStore implements storage.HistoryStore on a local DB.
type HistoryStore struct {
	db *DB
}

// NewHistoryStore creates a new HistoryStore.
func NewHistoryStore(db *DB) *HistoryStore {
	return &HistoryStore{db: db}
}

var _ storage.HistoryStore = (*HistoryStore)(nil)

// Append adds a new entry. Returns ErrDuplicateKey if the ID exists.
func (s *HistoryStore) Append(ctx context.Context, e *domain.HistoryEntry) (err error) {
	if e == nil || e.ID == "" || e.OwnerAddress == "" {
		return storage.ErrInvalidInput
	}
	defer observe("history_append", time.Now(), &err)

	return s.db.withLock(ctx, func() error {
		res, err := s.db.db.ExecContext(ctx, `
			INSERT INTO action_history (
				id, owner_address, token_id, ticker, action_type,
				amount, transaction_id, details, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO NOTHING
		`, e.ID, e.OwnerAddress, e.TokenID, e.Ticker, string(e.ActionType),
			e.Amount, e.TransactionID, e.Details, e.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert history entry: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("insert history entry: %w", err)
		}
		if n == 0 {
			return storage.ErrDuplicateKey
		}
		return nil
	})
}

// ListByOwner retrieves up to limit entries for owner, newest first.
func (s *HistoryStore) ListByOwner(ctx context.Context, owner string, limit int) (_ []*domain.HistoryEntry, err error) {
	defer observe("history_list", time.Now(), &err)

	if limit <= 0 {
		limit = -1 // no limit
	}
	rows, err := s.db.db.QueryContext(ctx, `
		SELECT id, owner_address, token_id, ticker, action_type,
			amount, transaction_id, details, created_at
		FROM action_history
		WHERE owner_address = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, owner, limit)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var result []*domain.HistoryEntry
	for rows.Next() {
		var (
			e      domain.HistoryEntry
			action string
		)
		if err := rows.Scan(&e.ID, &e.OwnerAddress, &e.TokenID, &e.Ticker, &action,
			&e.Amount, &e.TransactionID, &e.Details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		e.ActionType = domain.ActionType(action)
		result = append(result, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return result, nil
}
