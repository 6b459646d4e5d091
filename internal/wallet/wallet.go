// Package wallet defines the narrow interface to the external eToken wallet.
// The wallet owns coin selection, signing and broadcast; this package only describes
// the calls made against it.
package wallet

import (
	"context"
	"math/big"

	"etoken-wallet/internal/domain"
)

// Tx is the result of a broadcast.
type Tx struct {
	TxID string `json:"txid"`
}

// TokenBalance is one token held by the wallet, in base units.
type TokenBalance struct {
	TokenID string
	Balance *big.Int
}

// GenesisInfo is the token metadata recorded at genesis.
type GenesisInfo struct {
	TokenName   string `json:"tokenName"`
	TokenTicker string `json:"tokenTicker"`
	Decimals    int    `json:"decimals"`
	URL         string `json:"url,omitempty"`
}

// TokenInfo wraps the genesis info of a token.
type TokenInfo struct {
	TokenID     string      `json:"tokenId"`
	GenesisInfo GenesisInfo `json:"genesisInfo"`
}

// Domain converts the wallet response into domain metadata.
func (i TokenInfo) Domain() domain.TokenInfo {
	return domain.TokenInfo{
		TokenID:  i.TokenID,
		Name:     i.GenesisInfo.TokenName,
		Ticker:   i.GenesisInfo.TokenTicker,
		Decimals: i.GenesisInfo.Decimals,
		URL:      i.GenesisInfo.URL,
	}
}

// UTXO is an unspent output owned by the wallet.
type UTXO struct {
	TxID   string `json:"txid"`
	OutIdx int    `json:"outIdx"`
	Sats   int64  `json:"sats"`
}

// Balance is the native XEC balance of the wallet.
type Balance struct {
	Balance      int64  `json:"balance"`
	TotalBalance int64  `json:"totalBalance"`
	UTXOs        []UTXO `json:"utxos"`
}

// Domain converts the wallet response into a domain balance.
func (b Balance) Domain() domain.Balance {
	return domain.Balance{
		Sats:      b.Balance,
		TotalSats: b.TotalBalance,
		UTXOCount: len(b.UTXOs),
	}
}

// Wallet is the external wallet. Amounts are decimal strings in token units;
// the wallet scales them by decimals.
type Wallet interface {
	// SendToken sends amount of tokenID to address.
	SendToken(ctx context.Context, tokenID, address, amount string, decimals int) (Tx, error)

	// MintToken mints amount of tokenID to the wallet's own address.
	MintToken(ctx context.Context, tokenID, amount string, decimals int) (Tx, error)

	// BurnToken destroys amount of tokenID.
	BurnToken(ctx context.Context, tokenID, amount string, decimals int) (Tx, error)

	// AirdropToken sends tokenID to every recipient in one transaction.
	AirdropToken(ctx context.Context, tokenID string, recipients []domain.Recipient, decimals int) (Tx, error)

	// ListETokens returns every token the wallet holds, including zero balances.
	ListETokens(ctx context.Context) ([]TokenBalance, error)

	// GetTokenInfo returns the genesis info for tokenID.
	GetTokenInfo(ctx context.Context, tokenID string) (TokenInfo, error)

	// GetBalance returns the native balance.
	GetBalance(ctx context.Context) (Balance, error)
}
