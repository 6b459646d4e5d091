// Package stub provides a deterministic in-memory Wallet for tests.
package stub

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"etoken-wallet/internal/domain"
	"etoken-wallet/internal/wallet"
)

// ErrNotFound is returned when token info is not configured.
var ErrNotFound = errors.New("not found")

// Call records one mutating call.
type Call struct {
	Method     string
	TokenID    string
	Address    string
	Amount     string
	Decimals   int
	Recipients []domain.Recipient
}

// Wallet implements wallet.Wallet for testing.
type Wallet struct {
	mu sync.Mutex

	// TxID is returned by mutating calls.
	TxID string
	// Err, if set, is returned by mutating calls.
	Err error
	// Gate, if set, blocks mutating calls until it is closed or receives.
	Gate chan struct{}

	Tokens     []wallet.TokenBalance
	ListErr    error
	Infos      map[string]wallet.TokenInfo
	InfoErr    map[string]error
	Balance    wallet.Balance
	BalanceErr error

	calls     []Call
	listCalls int
	infoCalls int
	balCalls  int
}

// NewWallet creates a stub wallet that answers mutating calls with txid.
func NewWallet(txid string) *Wallet {
	return &Wallet{
		TxID:    txid,
		Infos:   make(map[string]wallet.TokenInfo),
		InfoErr: make(map[string]error),
	}
}

func (w *Wallet) mutate(c Call) (wallet.Tx, error) {
	w.mu.Lock()
	w.calls = append(w.calls, c)
	gate := w.Gate
	w.mu.Unlock()

	if gate != nil {
		<-gate
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.Err != nil {
		return wallet.Tx{}, w.Err
	}
	return wallet.Tx{TxID: w.TxID}, nil
}

// SendToken records the call and returns the configured outcome.
func (w *Wallet) SendToken(_ context.Context, tokenID, address, amount string, decimals int) (wallet.Tx, error) {
	return w.mutate(Call{Method: "sendToken", TokenID: tokenID, Address: address, Amount: amount, Decimals: decimals})
}

// MintToken records the call and returns the configured outcome.
func (w *Wallet) MintToken(_ context.Context, tokenID, amount string, decimals int) (wallet.Tx, error) {
	return w.mutate(Call{Method: "mintToken", TokenID: tokenID, Amount: amount, Decimals: decimals})
}

// BurnToken records the call and returns the configured outcome.
func (w *Wallet) BurnToken(_ context.Context, tokenID, amount string, decimals int) (wallet.Tx, error) {
	return w.mutate(Call{Method: "burnToken", TokenID: tokenID, Amount: amount, Decimals: decimals})
}

// AirdropToken records the call and returns the configured outcome.
func (w *Wallet) AirdropToken(_ context.Context, tokenID string, recipients []domain.Recipient, decimals int) (wallet.Tx, error) {
	rs := append([]domain.Recipient(nil), recipients...)
	return w.mutate(Call{Method: "airdropToken", TokenID: tokenID, Recipients: rs, Decimals: decimals})
}

// ListETokens returns the configured holdings.
func (w *Wallet) ListETokens(_ context.Context) ([]wallet.TokenBalance, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listCalls++
	if w.ListErr != nil {
		return nil, w.ListErr
	}
	out := make([]wallet.TokenBalance, len(w.Tokens))
	for i, t := range w.Tokens {
		out[i] = wallet.TokenBalance{TokenID: t.TokenID, Balance: new(big.Int).Set(t.Balance)}
	}
	return out, nil
}

// GetTokenInfo returns the configured info for tokenID.
func (w *Wallet) GetTokenInfo(_ context.Context, tokenID string) (wallet.TokenInfo, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.infoCalls++
	if err := w.InfoErr[tokenID]; err != nil {
		return wallet.TokenInfo{}, err
	}
	info, ok := w.Infos[tokenID]
	if !ok {
		return wallet.TokenInfo{}, ErrNotFound
	}
	return info, nil
}

// GetBalance returns the configured balance.
func (w *Wallet) GetBalance(_ context.Context) (wallet.Balance, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.balCalls++
	if w.BalanceErr != nil {
		return wallet.Balance{}, w.BalanceErr
	}
	return w.Balance, nil
}

// AddToken adds a holding with raw base-unit balance and its genesis info.
func (w *Wallet) AddToken(tokenID string, raw int64, ticker, name string, decimals int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Tokens = append(w.Tokens, wallet.TokenBalance{TokenID: tokenID, Balance: big.NewInt(raw)})
	w.Infos[tokenID] = wallet.TokenInfo{
		TokenID: tokenID,
		GenesisInfo: wallet.GenesisInfo{
			TokenName:   name,
			TokenTicker: ticker,
			Decimals:    decimals,
		},
	}
}

// SetListErr sets the error returned by ListETokens.
func (w *Wallet) SetListErr(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ListErr = err
}

// SetErr sets the error returned by mutating calls.
func (w *Wallet) SetErr(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Err = err
}

// Calls returns the recorded mutating calls.
func (w *Wallet) Calls() []Call {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]Call(nil), w.calls...)
}

// CallCount returns the number of mutating calls.
func (w *Wallet) CallCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.calls)
}

// ListCalls returns the number of ListETokens calls.
func (w *Wallet) ListCalls() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.listCalls
}

// BalanceCalls returns the number of GetBalance calls.
func (w *Wallet) BalanceCalls() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.balCalls
}

var _ wallet.Wallet = (*Wallet)(nil)
