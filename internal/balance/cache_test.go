package balance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"etoken-wallet/internal/invalidation"
	"etoken-wallet/internal/wallet"
	"etoken-wallet/internal/wallet/stub"
)

func TestCache_RefreshAndStale(t *testing.T) {
	w := stub.NewWallet("")
	w.Balance = wallet.Balance{Balance: 1000, TotalBalance: 1546, UTXOs: []wallet.UTXO{{TxID: "a"}, {TxID: "b"}}}
	trigger := invalidation.NewTrigger(invalidation.BalanceTrigger)
	c := NewCache(w, trigger, "ecash:owner", zap.NewNop())

	assert.True(t, c.Stale())
	_, ok := c.Get()
	assert.False(t, ok)

	snap, err := c.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1000), snap.Sats)
	assert.Equal(t, int64(1546), snap.TotalSats)
	assert.Equal(t, 2, snap.UTXOCount)
	assert.Equal(t, "ecash:owner", snap.OwnerAddress)
	assert.False(t, c.Stale())

	trigger.Bump()
	assert.True(t, c.Stale())

	_, err = c.Refresh(context.Background())
	require.NoError(t, err)
	assert.False(t, c.Stale())
}

func TestCache_RefreshErrorKeepsLastSnapshot(t *testing.T) {
	w := stub.NewWallet("")
	w.Balance = wallet.Balance{Balance: 42}
	trigger := invalidation.NewTrigger(invalidation.BalanceTrigger)
	c := NewCache(w, trigger, "", nil)

	_, err := c.Refresh(context.Background())
	require.NoError(t, err)

	w.BalanceErr = errors.New("offline")
	_, err = c.Refresh(context.Background())
	assert.Error(t, err)

	snap, ok := c.Get()
	require.True(t, ok)
	assert.Equal(t, int64(42), snap.Sats)
}

func TestCache_WatchRefetchesOnBump(t *testing.T) {
	w := stub.NewWallet("")
	trigger := invalidation.NewTrigger(invalidation.BalanceTrigger)
	c := NewCache(w, trigger, "", zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Watch(ctx)

	require.Eventually(t, func() bool { return w.BalanceCalls() == 1 }, time.Second, 5*time.Millisecond)

	trigger.Bump()
	require.Eventually(t, func() bool { return w.BalanceCalls() == 2 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return !c.Stale() }, time.Second, 5*time.Millisecond)
}
