// Package coordinator runs the side effects of a successful wallet command:
// notify the user, invalidate cached balances and holdings, and record history.
package coordinator

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"etoken-wallet/internal/domain"
	"etoken-wallet/internal/invalidation"
	"etoken-wallet/internal/observability"
	"etoken-wallet/internal/storage"
)

// ErrMissingTxID is returned when OnSuccess is called without a transaction id.
var ErrMissingTxID = errors.New("transaction id is required")

// Params describes one successful action.
type Params struct {
	Action       domain.ActionType
	OwnerAddress string
	TokenID      string
	Ticker       string
	Amount       string
	TxID         string
	Details      string
}

// Coordinator is called once per successful command.
type Coordinator struct {
	notifier Notifier
	triggers *invalidation.Triggers
	history  storage.HistoryStore
	logger   *zap.Logger
	now      func() time.Time
}

// New creates a coordinator. history may be nil, in which case nothing is recorded.
func New(notifier Notifier, triggers *invalidation.Triggers, history storage.HistoryStore, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		notifier: notifier,
		triggers: triggers,
		history:  history,
		logger:   logger.Named("coordinator"),
		now:      time.Now,
	}
}

// OnSuccess notifies, bumps the balance and tokens triggers, then appends history.
// Each step runs regardless of the others failing. Notification and history errors
// are logged and never returned.
func (c *Coordinator) OnSuccess(ctx context.Context, p Params) error {
	if p.TxID == "" {
		return ErrMissingTxID
	}
	log := c.logger.With(zap.String("action", p.Action.String()), zap.String("txid", p.TxID))

	if c.notifier != nil {
		n := Format(p)
		if err := c.notifier.Notify(ctx, n); err != nil {
			log.Warn("notify failed", zap.Error(err))
		} else {
			observability.RecordNotification(p.Action.String())
		}
	}

	balanceVersion := c.triggers.Balance.Bump()
	tokensVersion := c.triggers.Tokens.Bump()
	log.Debug("caches invalidated", zap.Uint64("balance", balanceVersion), zap.Uint64("tokens", tokensVersion))

	if c.history == nil {
		return nil
	}
	entry := &domain.HistoryEntry{
		ID:            uuid.NewString(),
		OwnerAddress:  p.OwnerAddress,
		TokenID:       p.TokenID,
		Ticker:        p.Ticker,
		ActionType:    p.Action,
		Amount:        p.Amount,
		TransactionID: p.TxID,
		Details:       p.Details,
		CreatedAt:     c.now().UnixMilli(),
	}
	if err := c.history.Append(ctx, entry); err != nil {
		observability.RecordHistoryAppendError()
		log.Warn("history append failed", zap.Error(err))
	}
	return nil
}
