package scanner

import (
	"sync"
	"time"

	"etoken-wallet/internal/domain"
)

// Result is what the UI reads. Holdings from the last committed scan stay
// visible while a new scan is Loading and after a failed one.
type Result struct {
	Holdings   []domain.TokenHolding
	LastScanAt time.Time
	Loading    bool
	Err        error
	Generation uint64
}

// Store holds the latest scan result. One Store is shared per process and
// injected wherever holdings are read.
type Store struct {
	mu        sync.RWMutex
	holdings  []domain.TokenHolding
	lastAt    time.Time
	err       error
	committed uint64
	started   uint64
}

// NewStore creates an empty result store.
func NewStore() *Store {
	return &Store{}
}

// Get returns a copy of the current result.
func (s *Store) Get() Result {
	s.mu.RLock()
	defer s.mu.RUnlock()

	holdings := make([]domain.TokenHolding, len(s.holdings))
	copy(holdings, s.holdings)
	return Result{
		Holdings:   holdings,
		LastScanAt: s.lastAt,
		Loading:    s.started > s.committed,
		Err:        s.err,
		Generation: s.committed,
	}
}

func (s *Store) begin(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen > s.started {
		s.started = gen
	}
}

// commit stores holdings if gen is newer than the committed generation.
func (s *Store) commit(gen uint64, holdings []domain.TokenHolding, at time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen <= s.committed {
		return false
	}
	s.committed = gen
	s.holdings = holdings
	s.lastAt = at
	s.err = nil
	return true
}

// fail records err for gen, keeping the last-known-good holdings.
func (s *Store) fail(gen uint64, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen <= s.committed {
		return false
	}
	s.committed = gen
	s.err = err
	return true
}
