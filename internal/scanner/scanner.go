// Package scanner reconciles the wallet's on-chain token holdings against the
// curated directory and auto-favorites every listed token the wallet holds.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"etoken-wallet/internal/amount"
	"etoken-wallet/internal/domain"
	"etoken-wallet/internal/invalidation"
	"etoken-wallet/internal/observability"
	"etoken-wallet/internal/storage"
	"etoken-wallet/internal/wallet"
)

// Defaults.
const (
	DefaultMetadataTimeout = 5 * time.Second
	DefaultConcurrency     = 4
)

// ErrMetadata marks a chain metadata lookup that fell back to placeholders.
var ErrMetadata = errors.New("token metadata unavailable")

// Config configures a Scanner.
type Config struct {
	OwnerAddress    string
	MetadataTimeout time.Duration
	Concurrency     int
}

// Mode is the UI context a scan is requested from.
type Mode struct {
	Connected     bool
	SelectedEntry string // non-empty when a single directory entry is open
}

// ShouldRun reports whether a scan is wanted: only with a connected wallet
// and in the overview, not while a single entry is selected.
func ShouldRun(connected bool, selectedEntry string) bool {
	return connected && selectedEntry == ""
}

// Scanner runs reconciliation scans.
type Scanner struct {
	wallet    wallet.Wallet
	directory storage.DirectoryStore
	favorites storage.FavoritesStore
	snapshots storage.SnapshotStore
	store     *Store
	cfg       Config
	logger    *zap.Logger
	gen       atomic.Uint64
	now       func() time.Time
}

// New creates a scanner. snapshots may be nil.
func New(w wallet.Wallet, directory storage.DirectoryStore, favorites storage.FavoritesStore, snapshots storage.SnapshotStore, store *Store, cfg Config, logger *zap.Logger) *Scanner {
	if cfg.MetadataTimeout <= 0 {
		cfg.MetadataTimeout = DefaultMetadataTimeout
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if store == nil {
		store = NewStore()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{
		wallet:    w,
		directory: directory,
		favorites: favorites,
		snapshots: snapshots,
		store:     store,
		cfg:       cfg,
		logger:    logger.Named("scanner"),
		now:       time.Now,
	}
}

// Store returns the result store.
func (s *Scanner) Store() *Store {
	return s.store
}

// ShouldRun is the package-level ShouldRun for a Mode.
func (s *Scanner) ShouldRun(m Mode) bool {
	return ShouldRun(m.Connected, m.SelectedEntry)
}

// Run performs one scan and returns the store's result afterwards.
// A listing failure is returned and recorded in Result.Err; holdings are kept.
func (s *Scanner) Run(ctx context.Context) (Result, error) {
	gen := s.gen.Add(1)
	s.store.begin(gen)
	start := s.now()
	log := s.logger.With(zap.Uint64("generation", gen))

	tokens, err := s.wallet.ListETokens(ctx)
	if err != nil {
		err = fmt.Errorf("list tokens: %w", err)
		s.store.fail(gen, err)
		observability.RecordScan("failed", time.Since(start).Seconds(), 0)
		log.Warn("scan failed", zap.Error(err))
		return s.store.Get(), err
	}

	var held []wallet.TokenBalance
	for _, t := range tokens {
		if t.Balance != nil && t.Balance.Sign() > 0 {
			held = append(held, t)
		}
	}

	holdings := make([]domain.TokenHolding, len(held))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i, t := range held {
		g.Go(func() error {
			holdings[i] = s.resolve(gctx, t)
			return nil
		})
	}
	_ = g.Wait()

	at := s.now()
	if !s.store.commit(gen, holdings, at) {
		observability.RecordScan("superseded", time.Since(start).Seconds(), len(holdings))
		log.Debug("scan superseded by newer generation")
		return s.store.Get(), nil
	}
	// Favorites only grow, so a superseded scan must not reach them.
	added := s.favorite(ctx, holdings)
	observability.RecordScan("committed", time.Since(start).Seconds(), len(holdings))
	observability.UpdateLastSuccessfulScan(at.Unix())
	log.Info("scan committed", zap.Int("holdings", len(holdings)), zap.Int("favorites_added", added))

	s.snapshot(ctx, gen, holdings, at)
	return s.store.Get(), nil
}

// resolve joins one balance with chain metadata and the directory.
func (s *Scanner) resolve(ctx context.Context, t wallet.TokenBalance) domain.TokenHolding {
	h := domain.TokenHolding{
		TokenID:    t.TokenID,
		RawBalance: t.Balance,
		Ticker:     domain.PlaceholderTicker,
		Name:       domain.PlaceholderName,
		ImageURL:   domain.PlaceholderImage,
	}

	info, err := s.metadata(ctx, t.TokenID)
	if err != nil {
		observability.RecordMetadataFailure()
		s.logger.Debug("using placeholder metadata", zap.String("token_id", t.TokenID), zap.Error(err))
	} else {
		h.MetadataOK = true
		h.Ticker = info.Ticker
		h.Decimals = info.Decimals
		if info.Name != "" {
			h.Name = info.Name
		}
	}

	entry, err := s.directory.GetByTokenID(ctx, t.TokenID)
	switch {
	case err == nil:
		h.Entry = entry
		h.Verified = true
		if entry.Name != "" {
			h.Name = entry.Name
		}
		if entry.ImageURL != "" {
			h.ImageURL = entry.ImageURL
		}
		h.Region = entry.Region
	case !errors.Is(err, storage.ErrNotFound):
		s.logger.Warn("directory lookup failed", zap.String("token_id", t.TokenID), zap.Error(err))
	}

	h.DisplayBalance = amount.FormatBaseUnits(h.RawBalance, h.Decimals)
	return h
}

func (s *Scanner) metadata(ctx context.Context, tokenID string) (domain.TokenInfo, error) {
	mctx, cancel := context.WithTimeout(ctx, s.cfg.MetadataTimeout)
	defer cancel()

	info, err := s.wallet.GetTokenInfo(mctx, tokenID)
	if err != nil {
		return domain.TokenInfo{}, fmt.Errorf("%w: %v", ErrMetadata, err)
	}
	d := info.Domain()
	if d.Decimals < 0 || d.Decimals > amount.MaxTokenDecimals {
		return domain.TokenInfo{}, fmt.Errorf("%w: decimals %d out of range", ErrMetadata, d.Decimals)
	}
	return d, nil
}

// favorite adds every directory-matched holding to the owner's favorites.
// Entries are never removed here.
func (s *Scanner) favorite(ctx context.Context, holdings []domain.TokenHolding) int {
	if s.favorites == nil || s.cfg.OwnerAddress == "" {
		return 0
	}
	added := 0
	for _, h := range holdings {
		if h.Entry == nil {
			continue
		}
		ok, err := s.favorites.Add(ctx, s.cfg.OwnerAddress, h.Entry.ID)
		if err != nil {
			s.logger.Warn("favorite failed", zap.String("entry_id", h.Entry.ID), zap.Error(err))
			continue
		}
		if ok {
			added++
		}
	}
	observability.RecordFavoritesAdded(added)
	return added
}

// snapshot appends a portfolio snapshot, best-effort.
func (s *Scanner) snapshot(ctx context.Context, gen uint64, holdings []domain.TokenHolding, at time.Time) {
	if s.snapshots == nil || s.cfg.OwnerAddress == "" || len(holdings) == 0 {
		return
	}
	snaps := make([]*domain.HoldingSnapshot, len(holdings))
	for i, h := range holdings {
		snaps[i] = &domain.HoldingSnapshot{
			OwnerAddress: s.cfg.OwnerAddress,
			TokenID:      h.TokenID,
			Ticker:       h.Ticker,
			RawBalance:   h.RawBalance.String(),
			Decimals:     h.Decimals,
			ScannedAt:    at.UnixMilli(),
			Generation:   gen,
		}
	}
	if err := s.snapshots.InsertBulk(ctx, snaps); err != nil {
		s.logger.Warn("snapshot append failed", zap.Error(err))
	}
}

// Watch scans whenever the tokens or balance trigger advances and mode allows it,
// plus once at start. It returns when ctx is done.
func (s *Scanner) Watch(ctx context.Context, triggers *invalidation.Triggers, mode func() Mode) {
	tokens, cancelTokens := triggers.Tokens.Subscribe()
	defer cancelTokens()
	bal, cancelBal := triggers.Balance.Subscribe()
	defer cancelBal()

	scan := func() {
		if !s.ShouldRun(mode()) {
			return
		}
		_, _ = s.Run(ctx)
	}

	scan()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tokens:
			drain(bal)
			scan()
		case <-bal:
			drain(tokens)
			scan()
		}
	}
}

// drain drops a pending notification. A Tx bumps both triggers; one scan covers both.
func drain(ch <-chan uint64) {
	select {
	case <-ch:
	default:
	}
}
