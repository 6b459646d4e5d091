package memory

import (
	"context"
	"sort"
	"sync"

	"etoken-wallet/internal/storage"
)

// FavoritesStore is an in-memory implementation of storage.FavoritesStore.
type FavoritesStore struct {
	mu      sync.RWMutex
	byOwner map[string]map[string]struct{}
}

// NewFavoritesStore creates a new in-memory favorites store.
func NewFavoritesStore() *FavoritesStore {
	return &FavoritesStore{
		byOwner: make(map[string]map[string]struct{}),
	}
}

// Add marks entryID as a favorite of owner.
func (s *FavoritesStore) Add(_ context.Context, owner, entryID string) (bool, error) {
	if owner == "" || entryID == "" {
		return false, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.byOwner[owner]
	if !ok {
		set = make(map[string]struct{})
		s.byOwner[owner] = set
	}
	if _, exists := set[entryID]; exists {
		return false, nil
	}
	set[entryID] = struct{}{}
	return true, nil
}

// Contains reports whether entryID is a favorite of owner.
func (s *FavoritesStore) Contains(_ context.Context, owner, entryID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.byOwner[owner][entryID]
	return exists, nil
}

// List retrieves all favorite entry IDs of owner, sorted.
func (s *FavoritesStore) List(_ context.Context, owner string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]string, 0, len(s.byOwner[owner]))
	for id := range s.byOwner[owner] {
		result = append(result, id)
	}
	sort.Strings(result)
	return result, nil
}

var _ storage.FavoritesStore = (*FavoritesStore)(nil)
