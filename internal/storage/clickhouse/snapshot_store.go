package clickhouse

import (
	"context"
	"fmt"
	"time"

	"etoken-wallet/internal/domain"
	"etoken-wallet/internal/storage"
)

// SnapshotStore implements storage.SnapshotStore using ClickHouse.
type SnapshotStore struct {
	conn *Conn
}

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore(conn *Conn) *SnapshotStore {
	return &SnapshotStore{conn: conn}
}

// Compile-time interface check.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)

// InsertBulk appends snapshots in one batch. Fails the entire batch on invalid input.
func (s *SnapshotStore) InsertBulk(ctx context.Context, snaps []*domain.HoldingSnapshot) (err error) {
	if len(snaps) == 0 {
		return nil
	}
	for _, sn := range snaps {
		if sn == nil || sn.OwnerAddress == "" || sn.TokenID == "" {
			return storage.ErrInvalidInput
		}
	}
	defer observe("snapshot_insert", time.Now(), &err)

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO holding_snapshots (
			owner_address, token_id, ticker, raw_balance, decimals, scanned_at, generation
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, sn := range snaps {
		err = batch.Append(
			sn.OwnerAddress, sn.TokenID, sn.Ticker, sn.RawBalance,
			uint8(sn.Decimals), sn.ScannedAt, sn.Generation,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByOwner retrieves snapshots for owner within [start, end], ordered by scanned_at, token_id.
func (s *SnapshotStore) GetByOwner(ctx context.Context, owner string, start, end int64) (_ []*domain.HoldingSnapshot, err error) {
	defer observe("snapshot_get", time.Now(), &err)

	rows, err := s.conn.Query(ctx, `
		SELECT owner_address, token_id, ticker, raw_balance, decimals, scanned_at, generation
		FROM holding_snapshots
		WHERE owner_address = ? AND scanned_at >= ? AND scanned_at <= ?
		ORDER BY scanned_at ASC, token_id ASC
	`, owner, start, end)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var result []*domain.HoldingSnapshot
	for rows.Next() {
		var (
			sn       domain.HoldingSnapshot
			decimals uint8
		)
		if err := rows.Scan(
			&sn.OwnerAddress, &sn.TokenID, &sn.Ticker, &sn.RawBalance,
			&decimals, &sn.ScannedAt, &sn.Generation,
		); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		sn.Decimals = int(decimals)
		result = append(result, &sn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return result, nil
}
