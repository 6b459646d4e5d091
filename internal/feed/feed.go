// Package feed turns live chain events into invalidation trigger bumps.
//
// A Tx touching the wallet's script bumps the balance and tokens triggers after
// TxDelay; a new block bumps the balance trigger after BlockDelay. The delays
// give the indexer time to reflect the event before caches refetch.
package feed

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"etoken-wallet/internal/chronik"
	"etoken-wallet/internal/invalidation"
	"etoken-wallet/internal/observability"
)

// Defaults.
const (
	DefaultTxDelay       = 2 * time.Second
	DefaultBlockDelay    = 500 * time.Millisecond
	DefaultUnstableAfter = 5
	DefaultRetryDelay    = 1 * time.Second
	DefaultMaxRetryDelay = 30 * time.Second
)

// ErrTransport wraps connection failures. They are soft: the feed keeps retrying.
var ErrTransport = errors.New("feed transport error")

// State is the connection state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	}
	return "unknown"
}

// Status is the feed state exposed to the UI.
type Status struct {
	State    State
	Attempts int
	// Unstable is set once Attempts reaches UnstableAfter ("connection unstable").
	Unstable  bool
	LastError string
}

// Transport is the chain-event subscription.
type Transport interface {
	Connect(ctx context.Context) error
	SubscribeToScript(scriptType, payload string) error
	SubscribeToBlocks() error
	OnMessage(fn func(chronik.Message))
	OnReconnect(fn func())
	OnDisconnect(fn func(error))
	OnRetry(fn func(attempt int, err error))
	Close() error
}

// Config configures a Feed.
type Config struct {
	ScriptType    string
	ScriptPayload string
	TxDelay       time.Duration
	BlockDelay    time.Duration
	UnstableAfter int
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
}

func (c *Config) applyDefaults() {
	if c.TxDelay <= 0 {
		c.TxDelay = DefaultTxDelay
	}
	if c.BlockDelay <= 0 {
		c.BlockDelay = DefaultBlockDelay
	}
	if c.UnstableAfter <= 0 {
		c.UnstableAfter = DefaultUnstableAfter
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	if c.MaxRetryDelay <= 0 {
		c.MaxRetryDelay = DefaultMaxRetryDelay
	}
}

// Feed owns one transport and the connection state machine.
type Feed struct {
	transport Transport
	triggers  *invalidation.Triggers
	cfg       Config
	logger    *zap.Logger

	mu       sync.Mutex
	state    State
	attempts int
	lastErr  string
	timers   map[*time.Timer]struct{}
	stopped  bool
}

// New creates a disconnected feed.
func New(transport Transport, triggers *invalidation.Triggers, cfg Config, logger *zap.Logger) *Feed {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	f := &Feed{
		transport: transport,
		triggers:  triggers,
		cfg:       cfg,
		logger:    logger.Named("feed"),
		timers:    make(map[*time.Timer]struct{}),
	}
	transport.OnMessage(f.handle)
	transport.OnDisconnect(f.onDisconnect)
	transport.OnRetry(f.onRetry)
	transport.OnReconnect(f.onReconnect)
	return f
}

// Status returns the current connection status.
func (f *Feed) Status() Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Status{
		State:     f.state,
		Attempts:  f.attempts,
		Unstable:  f.attempts >= f.cfg.UnstableAfter,
		LastError: f.lastErr,
	}
}

// Run connects, subscribes and then serves events until ctx is done.
// Initial connection failures are retried with capped exponential backoff.
func (f *Feed) Run(ctx context.Context) error {
	delay := f.cfg.RetryDelay
	for {
		f.setState(StateConnecting)
		err := f.start(ctx)
		if err == nil {
			break
		}
		f.onRetry(f.Status().Attempts+1, err)

		select {
		case <-ctx.Done():
			f.setState(StateDisconnected)
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > f.cfg.MaxRetryDelay {
			delay = f.cfg.MaxRetryDelay
		}
	}

	f.mu.Lock()
	f.attempts = 0
	f.lastErr = ""
	f.mu.Unlock()
	f.setState(StateConnected)
	f.logger.Info("feed connected")

	<-ctx.Done()
	f.Stop()
	return ctx.Err()
}

func (f *Feed) start(ctx context.Context) error {
	if err := f.transport.Connect(ctx); err != nil {
		return errors.Join(ErrTransport, err)
	}
	// Subscriptions are remembered by the transport and replayed on reconnect,
	// so a failed write here is recovered by the next reconnect.
	if f.cfg.ScriptPayload != "" {
		if err := f.transport.SubscribeToScript(f.cfg.ScriptType, f.cfg.ScriptPayload); err != nil {
			f.logger.Warn("script subscribe failed", zap.Error(err))
		}
	}
	if err := f.transport.SubscribeToBlocks(); err != nil {
		f.logger.Warn("block subscribe failed", zap.Error(err))
	}
	return nil
}

// Stop closes the transport and cancels pending bumps.
func (f *Feed) Stop() {
	f.mu.Lock()
	f.stopped = true
	for t := range f.timers {
		t.Stop()
		delete(f.timers, t)
	}
	f.mu.Unlock()

	_ = f.transport.Close()
	f.setState(StateDisconnected)
}

func (f *Feed) setState(s State) {
	f.mu.Lock()
	f.state = s
	f.mu.Unlock()
	observability.UpdateFeedState(int(s))
}

func (f *Feed) onDisconnect(err error) {
	f.mu.Lock()
	f.lastErr = err.Error()
	f.mu.Unlock()
	f.setState(StateConnecting)
}

func (f *Feed) onRetry(attempt int, err error) {
	f.mu.Lock()
	f.attempts = attempt
	f.lastErr = err.Error()
	crossed := attempt == f.cfg.UnstableAfter
	f.mu.Unlock()

	if crossed {
		f.logger.Warn("connection unstable", zap.Int("attempts", attempt), zap.Error(err))
	}
}

func (f *Feed) onReconnect() {
	f.mu.Lock()
	f.attempts = 0
	f.lastErr = ""
	f.mu.Unlock()
	f.setState(StateConnected)
	observability.RecordFeedReconnect()
	f.logger.Info("feed reconnected")

	// Events sent while the socket was down are lost; refetch once.
	f.triggers.Balance.Bump()
	f.triggers.Tokens.Bump()
}

// handle schedules the trigger bumps for one event.
func (f *Feed) handle(m chronik.Message) {
	observability.RecordFeedEvent(m.Type)
	switch m.Type {
	case chronik.TypeTx:
		f.after(f.cfg.TxDelay, func() {
			f.triggers.Balance.Bump()
			f.triggers.Tokens.Bump()
		})
	case chronik.TypeBlock:
		f.after(f.cfg.BlockDelay, func() {
			f.triggers.Balance.Bump()
		})
	case chronik.TypeError:
		f.mu.Lock()
		f.lastErr = m.Msg
		f.mu.Unlock()
		f.logger.Warn("feed error message", zap.String("msg", m.Msg))
	}
}

func (f *Feed) after(d time.Duration, fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopped {
		return
	}
	var t *time.Timer
	t = time.AfterFunc(d, func() {
		f.mu.Lock()
		_, live := f.timers[t]
		delete(f.timers, t)
		f.mu.Unlock()
		if live {
			fn()
		}
	})
	f.timers[t] = struct{}{}
}
