// Package balance caches the wallet's native balance and refetches it when the
// balance trigger advances.
package balance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"etoken-wallet/internal/domain"
	"etoken-wallet/internal/invalidation"
	"etoken-wallet/internal/wallet"
)

// Snapshot is a fetched balance tagged with the trigger version it reflects.
type Snapshot struct {
	OwnerAddress string
	domain.Balance
	Version   uint64
	FetchedAt time.Time
}

// Cache is the only writer of the cached balance.
type Cache struct {
	wallet  wallet.Wallet
	trigger *invalidation.Trigger
	owner   string
	logger  *zap.Logger

	mu   sync.RWMutex
	snap Snapshot
	has  bool
}

// NewCache creates an empty cache.
func NewCache(w wallet.Wallet, trigger *invalidation.Trigger, owner string, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		wallet:  w,
		trigger: trigger,
		owner:   owner,
		logger:  logger.Named("balance"),
	}
}

// Get returns the cached snapshot and whether one exists.
func (c *Cache) Get() (Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap, c.has
}

// Stale reports whether the trigger has advanced past the cached snapshot.
func (c *Cache) Stale() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.has || c.snap.Version < c.trigger.Version()
}

// Refresh fetches the balance. A result is kept only if no newer fetch has already been stored.
func (c *Cache) Refresh(ctx context.Context) (Snapshot, error) {
	version := c.trigger.Version()

	bal, err := c.wallet.GetBalance(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("get balance: %w", err)
	}

	snap := Snapshot{
		OwnerAddress: c.owner,
		Balance:      bal.Domain(),
		Version:      version,
		FetchedAt:    time.Now(),
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.has && c.snap.Version > version {
		return c.snap, nil
	}
	c.snap = snap
	c.has = true
	return snap, nil
}

// Watch refreshes once, then again after every bump of the trigger, until ctx is done.
func (c *Cache) Watch(ctx context.Context) {
	ch, cancel := c.trigger.Subscribe()
	defer cancel()

	c.refreshLogged(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ch:
			c.refreshLogged(ctx)
		}
	}
}

func (c *Cache) refreshLogged(ctx context.Context) {
	snap, err := c.Refresh(ctx)
	if err != nil {
		if ctx.Err() == nil {
			c.logger.Warn("balance refresh failed", zap.Error(err))
		}
		return
	}
	c.logger.Debug("balance refreshed",
		zap.Int64("sats", snap.Sats),
		zap.Int64("total_sats", snap.TotalSats),
		zap.Uint64("version", snap.Version),
	)
}
