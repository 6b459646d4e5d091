package memory

import (
	"context"
	"sort"
	"sync"

	"etoken-wallet/internal/domain"
	"etoken-wallet/internal/storage"
)

// HistoryStore is an in-memory implementation of storage.HistoryStore.
type HistoryStore struct {
	mu      sync.RWMutex
	entries []*domain.HistoryEntry
	ids     map[string]struct{}
}

// NewHistoryStore creates a new in-memory history store.
func NewHistoryStore() *HistoryStore {
	return &HistoryStore{
		ids: make(map[string]struct{}),
	}
}

// Append adds a new entry. Returns ErrDuplicateKey if the ID exists.
func (s *HistoryStore) Append(_ context.Context, e *domain.HistoryEntry) error {
	if e == nil || e.ID == "" || e.OwnerAddress == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.ids[e.ID]; exists {
		return storage.ErrDuplicateKey
	}

	entryCopy := *e
	s.entries = append(s.entries, &entryCopy)
	s.ids[e.ID] = struct{}{}
	return nil
}

// ListByOwner retrieves entries for owner, newest first.
func (s *HistoryStore) ListByOwner(_ context.Context, owner string, limit int) ([]*domain.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.HistoryEntry
	for _, e := range s.entries {
		if e.OwnerAddress == owner {
			entryCopy := *e
			result = append(result, &entryCopy)
		}
	}

	// Stable on insertion order for equal timestamps, newest insert first.
	for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
		result[i], result[j] = result[j], result[i]
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt > result[j].CreatedAt
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

var _ storage.HistoryStore = (*HistoryStore)(nil)
