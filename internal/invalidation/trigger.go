// Package invalidation provides monotonically increasing version counters
// that tell cache owners their data is stale.
//
// Writers only bump. Readers compare the version they last observed with the
// current one and refetch when it has advanced ("newer wins").
package invalidation

import (
	"sync"
	"sync/atomic"

	"etoken-wallet/internal/observability"
)

// Trigger names.
const (
	BalanceTrigger = "balance"
	TokensTrigger  = "tokens"
)

// Trigger is a named version counter. The zero version means never bumped.
type Trigger struct {
	name    string
	version atomic.Uint64

	mu     sync.Mutex
	subs   map[int]chan uint64
	nextID int
	hooks  []func(version uint64)
}

// NewTrigger creates a trigger at version 0.
func NewTrigger(name string) *Trigger {
	return &Trigger{
		name: name,
		subs: make(map[int]chan uint64),
	}
}

// Name returns the trigger name.
func (t *Trigger) Name() string {
	return t.name
}

// Version returns the current version.
func (t *Trigger) Version() uint64 {
	return t.version.Load()
}

// Bump advances the version by one, wakes subscribers and runs local hooks.
func (t *Trigger) Bump() uint64 {
	v := t.advance()

	t.mu.Lock()
	hooks := append([]func(uint64){}, t.hooks...)
	t.mu.Unlock()
	for _, h := range hooks {
		h(v)
	}
	return v
}

// BumpRemote advances the version for a bump that originated in another process.
// Local hooks are not run, so a relayed bump is never relayed back.
func (t *Trigger) BumpRemote() uint64 {
	return t.advance()
}

func (t *Trigger) advance() uint64 {
	v := t.version.Add(1)
	observability.RecordBump(t.name, v)

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, ch := range t.subs {
		notify(ch, v)
	}
	return v
}

// notify delivers v without blocking. A slow subscriber only ever sees the latest version.
func notify(ch chan uint64, v uint64) {
	select {
	case ch <- v:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- v:
	default:
	}
}

// Subscribe returns a channel that receives the version after each bump,
// and a function that cancels the subscription.
func (t *Trigger) Subscribe() (<-chan uint64, func()) {
	ch := make(chan uint64, 1)

	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.subs[id] = ch
	t.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.subs, id)
			t.mu.Unlock()
		})
	}
}

// OnBump registers fn to run after every local Bump.
func (t *Trigger) OnBump(fn func(version uint64)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.hooks = append(t.hooks, fn)
}

// Triggers is the process-wide set of invalidation triggers.
type Triggers struct {
	Balance *Trigger
	Tokens  *Trigger
}

// NewTriggers creates the balance and tokens triggers.
func NewTriggers() *Triggers {
	return &Triggers{
		Balance: NewTrigger(BalanceTrigger),
		Tokens:  NewTrigger(TokensTrigger),
	}
}

// ByName returns the trigger with the given name, or nil.
func (ts *Triggers) ByName(name string) *Trigger {
	switch name {
	case BalanceTrigger:
		return ts.Balance
	case TokensTrigger:
		return ts.Tokens
	}
	return nil
}

// All returns every trigger.
func (ts *Triggers) All() []*Trigger {
	return []*Trigger{ts.Balance, ts.Tokens}
}
