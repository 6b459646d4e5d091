package memory

import (
	"context"
	"sort"
	"sync"

	"etoken-wallet/internal/domain"
	"etoken-wallet/internal/storage"
)

// DirectoryStore is an in-memory implementation of storage.DirectoryStore.
type DirectoryStore struct {
	mu        sync.RWMutex
	byTokenID map[string]*domain.DirectoryEntry
}

// NewDirectoryStore creates a new in-memory directory, optionally seeded.
func NewDirectoryStore(entries ...*domain.DirectoryEntry) *DirectoryStore {
	s := &DirectoryStore{
		byTokenID: make(map[string]*domain.DirectoryEntry),
	}
	for _, e := range entries {
		_ = s.Upsert(context.Background(), e)
	}
	return s
}

// GetByTokenID retrieves the entry for tokenID. Returns ErrNotFound if not listed.
func (s *DirectoryStore) GetByTokenID(_ context.Context, tokenID string) (*domain.DirectoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.byTokenID[tokenID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	entryCopy := *e
	return &entryCopy, nil
}

// List retrieves all entries ordered by ID.
func (s *DirectoryStore) List(_ context.Context) ([]*domain.DirectoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.DirectoryEntry, 0, len(s.byTokenID))
	for _, e := range s.byTokenID {
		entryCopy := *e
		result = append(result, &entryCopy)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// Upsert inserts or replaces an entry keyed by token ID.
func (s *DirectoryStore) Upsert(_ context.Context, e *domain.DirectoryEntry) error {
	if e == nil || e.ID == "" || e.TokenID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entryCopy := *e
	s.byTokenID[e.TokenID] = &entryCopy
	return nil
}

var _ storage.DirectoryStore = (*DirectoryStore)(nil)
