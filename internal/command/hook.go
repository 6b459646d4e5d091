// Package command validates and dispatches value-moving wallet operations.
//
// A Hook owns one CommandState. It never notifies, invalidates caches or writes
// history; callers hand a successful result to the coordinator.
package command

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"etoken-wallet/internal/domain"
	"etoken-wallet/internal/observability"
	"etoken-wallet/internal/wallet"
)

// ValidateFunc checks input and returns its normalized form.
type ValidateFunc[In any] func(in In) (In, error)

// DispatchFunc performs the single wallet call for normalized input.
type DispatchFunc[In any] func(ctx context.Context, w wallet.Wallet, in In) (wallet.Tx, error)

// Hook runs one kind of wallet command and tracks its state.
type Hook[In any] struct {
	action   domain.ActionType
	wallet   wallet.Wallet
	validate ValidateFunc[In]
	dispatch DispatchFunc[In]
	logger   *zap.Logger

	mu     sync.Mutex
	state  State
	subs   map[int]chan State
	nextID int
}

// Option configures a Hook.
type Option func(*options)

type options struct {
	logger *zap.Logger
}

// WithLogger sets the hook logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// NewHook creates a hook in the Idle state.
func NewHook[In any](action domain.ActionType, w wallet.Wallet, validate ValidateFunc[In], dispatch DispatchFunc[In], opts ...Option) *Hook[In] {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Hook[In]{
		action:   action,
		wallet:   w,
		validate: validate,
		dispatch: dispatch,
		logger:   o.logger.With(zap.String("component", "command"), zap.String("action", action.String())),
		state:    Idle{},
		subs:     make(map[int]chan State),
	}
}

// Action returns the action this hook performs.
func (h *Hook[In]) Action() domain.ActionType {
	return h.action
}

// State returns the current state.
func (h *Hook[In]) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Reset returns the hook to Idle. It has no effect while Pending.
func (h *Hook[In]) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if IsPending(h.state) {
		return
	}
	h.setLocked(Idle{})
}

// Subscribe returns a channel of state transitions and a cancel function.
// Slow readers miss intermediate states; State is always authoritative.
func (h *Hook[In]) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 4)

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
		})
	}
}

// Execute validates in and, if valid, calls the wallet exactly once.
// It returns ErrInFlight without touching the wallet if a previous call is still Pending.
// Once the wallet is called the call runs to completion even if ctx is cancelled.
func (h *Hook[In]) Execute(ctx context.Context, in In) (string, error) {
	h.mu.Lock()
	if IsPending(h.state) {
		h.mu.Unlock()
		return "", ErrInFlight
	}
	h.setLocked(Pending{})
	h.mu.Unlock()

	start := time.Now()

	norm, err := h.validate(in)
	if err != nil {
		cmdErr := &Error{Kind: ValidationError, Message: err.Error(), Cause: err}
		h.fail(cmdErr, start)
		return "", cmdErr
	}

	tx, err := h.dispatch(context.WithoutCancel(ctx), h.wallet, norm)
	if err != nil {
		msg := err.Error()
		if msg == "" {
			msg = "wallet rejected the transaction"
		}
		cmdErr := &Error{Kind: WalletError, Message: msg, Cause: err}
		h.fail(cmdErr, start)
		return "", cmdErr
	}
	if tx.TxID == "" {
		cmdErr := &Error{Kind: WalletError, Message: ErrEmptyResponse.Error(), Cause: ErrEmptyResponse}
		h.fail(cmdErr, start)
		return "", cmdErr
	}

	h.mu.Lock()
	h.setLocked(Success{TxID: tx.TxID})
	h.mu.Unlock()

	observability.RecordCommand(h.action.String(), StatusSuccess, time.Since(start).Seconds())
	h.logger.Info("command succeeded", zap.String("txid", tx.TxID))
	return tx.TxID, nil
}

func (h *Hook[In]) fail(err *Error, start time.Time) {
	h.mu.Lock()
	h.setLocked(Failure{Kind: err.Kind, Message: err.Message})
	h.mu.Unlock()

	observability.RecordCommand(h.action.String(), string(err.Kind)+"_error", time.Since(start).Seconds())
	if err.Kind == ValidationError {
		h.logger.Debug("command rejected", zap.String("reason", err.Message))
		return
	}
	h.logger.Warn("command failed", zap.Error(err.Cause))
}

func (h *Hook[In]) setLocked(s State) {
	h.state = s
	for _, ch := range h.subs {
		select {
		case ch <- s:
		default:
		}
	}
}
