package command

import (
	"context"
	"fmt"
	"strings"

	"etoken-wallet/internal/address"
	"etoken-wallet/internal/amount"
	"etoken-wallet/internal/domain"
	"etoken-wallet/internal/wallet"
)

// SendInput is the form input of a token send.
type SendInput struct {
	TokenID  string
	Address  string
	Amount   string
	Decimals int
}

// SupplyInput is the form input of a mint or burn.
type SupplyInput struct {
	TokenID  string
	Amount   string
	Decimals int
}

// AirdropInput is the form input of a multi-recipient airdrop.
type AirdropInput struct {
	TokenID    string
	Recipients []domain.Recipient
	Decimals   int
}

// Type aliases for the four hooks.
type (
	SendHook    = Hook[SendInput]
	MintHook    = Hook[SupplyInput]
	BurnHook    = Hook[SupplyInput]
	AirdropHook = Hook[AirdropInput]
)

// NewSend creates the send hook.
func NewSend(w wallet.Wallet, v address.Validator, opts ...Option) *SendHook {
	return NewHook[SendInput](domain.ActionSend, w, validateSend(v), dispatchSend, opts...)
}

// NewMint creates the mint hook.
func NewMint(w wallet.Wallet, opts ...Option) *MintHook {
	return NewHook[SupplyInput](domain.ActionMint, w, validateSupply, dispatchMint, opts...)
}

// NewBurn creates the burn hook.
func NewBurn(w wallet.Wallet, opts ...Option) *BurnHook {
	return NewHook[SupplyInput](domain.ActionBurn, w, validateSupply, dispatchBurn, opts...)
}

// NewAirdrop creates the airdrop hook.
func NewAirdrop(w wallet.Wallet, v address.Validator, opts ...Option) *AirdropHook {
	return NewHook[AirdropInput](domain.ActionAirdrop, w, validateAirdrop(v), dispatchAirdrop, opts...)
}

func validateToken(tokenID string) (string, error) {
	id := strings.TrimSpace(tokenID)
	if id == "" {
		return "", ErrMissingToken
	}
	return id, nil
}

// validateAmount checks s against decimals and returns its canonical form.
func validateAmount(s string, decimals int) (string, error) {
	if _, err := amount.ParseToken(s, decimals); err != nil {
		return "", err
	}
	return amount.Normalize(s), nil
}

func validateSend(v address.Validator) ValidateFunc[SendInput] {
	return func(in SendInput) (SendInput, error) {
		id, err := validateToken(in.TokenID)
		if err != nil {
			return in, err
		}
		addr, err := v.Normalize(in.Address)
		if err != nil {
			return in, err
		}
		amt, err := validateAmount(in.Amount, in.Decimals)
		if err != nil {
			return in, err
		}
		return SendInput{TokenID: id, Address: addr, Amount: amt, Decimals: in.Decimals}, nil
	}
}

func validateSupply(in SupplyInput) (SupplyInput, error) {
	id, err := validateToken(in.TokenID)
	if err != nil {
		return in, err
	}
	amt, err := validateAmount(in.Amount, in.Decimals)
	if err != nil {
		return in, err
	}
	return SupplyInput{TokenID: id, Amount: amt, Decimals: in.Decimals}, nil
}

func validateAirdrop(v address.Validator) ValidateFunc[AirdropInput] {
	return func(in AirdropInput) (AirdropInput, error) {
		id, err := validateToken(in.TokenID)
		if err != nil {
			return in, err
		}
		if len(in.Recipients) == 0 {
			return in, ErrNoRecipients
		}
		rs := make([]domain.Recipient, len(in.Recipients))
		for i, r := range in.Recipients {
			addr, err := v.Normalize(r.Address)
			if err != nil {
				return in, fmt.Errorf("recipient %d: %w", i+1, err)
			}
			amt, err := validateAmount(r.Amount, in.Decimals)
			if err != nil {
				return in, fmt.Errorf("recipient %d: %w", i+1, err)
			}
			rs[i] = domain.Recipient{Address: addr, Amount: amt}
		}
		return AirdropInput{TokenID: id, Recipients: rs, Decimals: in.Decimals}, nil
	}
}

func dispatchSend(ctx context.Context, w wallet.Wallet, in SendInput) (wallet.Tx, error) {
	return w.SendToken(ctx, in.TokenID, in.Address, in.Amount, in.Decimals)
}

func dispatchMint(ctx context.Context, w wallet.Wallet, in SupplyInput) (wallet.Tx, error) {
	return w.MintToken(ctx, in.TokenID, in.Amount, in.Decimals)
}

func dispatchBurn(ctx context.Context, w wallet.Wallet, in SupplyInput) (wallet.Tx, error) {
	return w.BurnToken(ctx, in.TokenID, in.Amount, in.Decimals)
}

func dispatchAirdrop(ctx context.Context, w wallet.Wallet, in AirdropInput) (wallet.Tx, error) {
	return w.AirdropToken(ctx, in.TokenID, in.Recipients, in.Decimals)
}
