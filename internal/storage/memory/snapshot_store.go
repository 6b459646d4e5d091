package memory

import (
	"context"
	"sort"
	"sync"

	"etoken-wallet/internal/domain"
	"etoken-wallet/internal/storage"
)

// SnapshotStore is an in-memory implementation of storage.SnapshotStore.
type SnapshotStore struct {
	mu      sync.RWMutex
	byOwner map[string][]*domain.HoldingSnapshot
}

// NewSnapshotStore creates a new in-memory snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		byOwner: make(map[string][]*domain.HoldingSnapshot),
	}
}

// InsertBulk appends snapshots. Fails the entire batch on invalid input.
func (s *SnapshotStore) InsertBulk(_ context.Context, snaps []*domain.HoldingSnapshot) error {
	for _, sn := range snaps {
		if sn == nil || sn.OwnerAddress == "" || sn.TokenID == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sn := range snaps {
		snapCopy := *sn
		s.byOwner[sn.OwnerAddress] = append(s.byOwner[sn.OwnerAddress], &snapCopy)
	}
	return nil
}

// GetByOwner retrieves snapshots for owner within [start, end].
func (s *SnapshotStore) GetByOwner(_ context.Context, owner string, start, end int64) ([]*domain.HoldingSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.HoldingSnapshot
	for _, sn := range s.byOwner[owner] {
		if sn.ScannedAt >= start && sn.ScannedAt <= end {
			snapCopy := *sn
			result = append(result, &snapCopy)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].ScannedAt != result[j].ScannedAt {
			return result[i].ScannedAt < result[j].ScannedAt
		}
		return result[i].TokenID < result[j].TokenID
	})
	return result, nil
}

var _ storage.SnapshotStore = (*SnapshotStore)(nil)
