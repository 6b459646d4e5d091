package memory

import (
	"context"
	"errors"
	"testing"

	"etoken-wallet/internal/domain"
	"etoken-wallet/internal/storage"
)

func TestSnapshotStore_GetByOwnerRange(t *testing.T) {
	store := NewSnapshotStore()
	ctx := context.Background()

	err := store.InsertBulk(ctx, []*domain.HoldingSnapshot{
		{OwnerAddress: "ecash:a", TokenID: "t2", RawBalance: "5", ScannedAt: 2000},
		{OwnerAddress: "ecash:a", TokenID: "t1", RawBalance: "7", ScannedAt: 2000},
		{OwnerAddress: "ecash:a", TokenID: "t1", RawBalance: "6", ScannedAt: 1000},
		{OwnerAddress: "ecash:a", TokenID: "t1", RawBalance: "9", ScannedAt: 5000},
	})
	if err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	result, err := store.GetByOwner(ctx, "ecash:a", 1000, 2000)
	if err != nil {
		t.Fatalf("GetByOwner failed: %v", err)
	}
	if len(result) != 3 {
		t.Fatalf("expected 3 snapshots, got %d", len(result))
	}
	if result[0].ScannedAt != 1000 || result[1].TokenID != "t1" || result[2].TokenID != "t2" {
		t.Errorf("unexpected order: %+v %+v %+v", result[0], result[1], result[2])
	}
}

func TestSnapshotStore_InvalidBatchRejected(t *testing.T) {
	store := NewSnapshotStore()
	ctx := context.Background()

	err := store.InsertBulk(ctx, []*domain.HoldingSnapshot{
		{OwnerAddress: "ecash:a", TokenID: "t1"},
		{OwnerAddress: "ecash:a"},
	})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}

	result, _ := store.GetByOwner(ctx, "ecash:a", 0, 1<<62)
	if len(result) != 0 {
		t.Errorf("partial batch stored: %d", len(result))
	}
}
