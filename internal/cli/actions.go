package cli

import (
	"context"
	"fmt"
	"io"
	"math/big"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"etoken-wallet/internal/amount"
	"etoken-wallet/internal/command"
	"etoken-wallet/internal/coordinator"
	"etoken-wallet/internal/domain"
)

const (
	actionMint = "mint"
	actionBurn = "burn"
)

// actionResult is printed after a successful wallet action.
type actionResult struct {
	Action  string `json:"action"`
	TxID    string `json:"txid"`
	TokenID string `json:"tokenId"`
	Ticker  string `json:"ticker,omitempty"`
	Amount  string `json:"amount"`
	Details string `json:"details,omitempty"`
}

// writerNotifier prints notifications as one line each.
type writerNotifier struct {
	w io.Writer
}

func (n writerNotifier) Notify(_ context.Context, msg coordinator.Notification) error {
	_, err := fmt.Fprintf(n.w, "%s: %s\n", msg.Title, msg.Message)
	return err
}

// tokenMeta resolves decimals and ticker for tokenID. The chain's decimals are
// authoritative; an explicit value (>= 0) is only used when the lookup fails and
// must agree with the chain otherwise.
func (s *runtimeState) tokenMeta(ctx context.Context, tokenID string, decimals int) (int, string, error) {
	if strings.TrimSpace(tokenID) == "" {
		// let the hook report the missing token
		return max(decimals, 0), "", nil
	}
	info, err := s.walletClient().GetTokenInfo(ctx, tokenID)
	if err != nil {
		if decimals >= 0 {
			s.logger.Debug("token info unavailable", zap.String("token_id", tokenID), zap.Error(err))
			return decimals, "", nil
		}
		return 0, "", fmt.Errorf("token decimals unknown, pass --decimals: %w", err)
	}
	chain := info.GenesisInfo.Decimals
	if decimals >= 0 && decimals != chain {
		return 0, "", usagef("--decimals %d does not match token decimals %d", decimals, chain)
	}
	return chain, info.GenesisInfo.TokenTicker, nil
}

// succeed runs the success side effects and prints the result.
func (s *runtimeState) succeed(ctx context.Context, p coordinator.Params) error {
	if err := s.openStores(ctx); err != nil {
		s.logger.Warn("history unavailable", zap.Error(err))
	}
	s.relayInvalidation(ctx)

	coord := coordinator.New(writerNotifier{w: s.runner.stderr}, s.triggers, s.history, s.logger)
	if err := coord.OnSuccess(ctx, p); err != nil {
		return err
	}
	return s.writeJSON(actionResult{
		Action:  p.Action.String(),
		TxID:    p.TxID,
		TokenID: p.TokenID,
		Ticker:  p.Ticker,
		Amount:  p.Amount,
		Details: p.Details,
	})
}

func (s *runtimeState) newSendCommand() *cobra.Command {
	var (
		tokenID  string
		to       string
		amt      string
		decimals int
	)
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send tokens to an address",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			dec, ticker, err := s.tokenMeta(ctx, tokenID, decimals)
			if err != nil {
				return err
			}
			hook := command.NewSend(s.walletClient(), s.validator(), command.WithLogger(s.logger))
			txid, err := hook.Execute(ctx, command.SendInput{TokenID: tokenID, Address: to, Amount: amt, Decimals: dec})
			if err != nil {
				return err
			}
			return s.succeed(ctx, coordinator.Params{
				Action:       domain.ActionSend,
				OwnerAddress: s.cfg.OwnerAddress,
				TokenID:      strings.TrimSpace(tokenID),
				Ticker:       ticker,
				Amount:       amount.Normalize(amt),
				TxID:         txid,
				Details:      "to " + to,
			})
		},
	}
	cmd.Flags().StringVar(&tokenID, "token", "", "Token ID")
	cmd.Flags().StringVar(&to, "to", "", "Destination address")
	cmd.Flags().StringVar(&amt, "amount", "", "Amount in token units")
	cmd.Flags().IntVar(&decimals, "decimals", -1, "Token decimals (only needed when the token lookup fails)")
	return cmd
}

func (s *runtimeState) newSupplyCommand(verb string) *cobra.Command {
	var (
		tokenID  string
		amt      string
		decimals int
	)
	short := "Mint new tokens"
	action := domain.ActionMint
	if verb == actionBurn {
		short = "Burn tokens"
		action = domain.ActionBurn
	}
	cmd := &cobra.Command{
		Use:   verb,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			dec, ticker, err := s.tokenMeta(ctx, tokenID, decimals)
			if err != nil {
				return err
			}
			var hook *command.Hook[command.SupplyInput]
			if action == domain.ActionBurn {
				hook = command.NewBurn(s.walletClient(), command.WithLogger(s.logger))
			} else {
				hook = command.NewMint(s.walletClient(), command.WithLogger(s.logger))
			}
			txid, err := hook.Execute(ctx, command.SupplyInput{TokenID: tokenID, Amount: amt, Decimals: dec})
			if err != nil {
				return err
			}
			return s.succeed(ctx, coordinator.Params{
				Action:       action,
				OwnerAddress: s.cfg.OwnerAddress,
				TokenID:      strings.TrimSpace(tokenID),
				Ticker:       ticker,
				Amount:       amount.Normalize(amt),
				TxID:         txid,
			})
		},
	}
	cmd.Flags().StringVar(&tokenID, "token", "", "Token ID")
	cmd.Flags().StringVar(&amt, "amount", "", "Amount in token units")
	cmd.Flags().IntVar(&decimals, "decimals", -1, "Token decimals (only needed when the token lookup fails)")
	return cmd
}

func (s *runtimeState) newAirdropCommand() *cobra.Command {
	var (
		tokenID  string
		to       []string
		decimals int
	)
	cmd := &cobra.Command{
		Use:   "airdrop",
		Short: "Send tokens to many addresses in one transaction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			recipients, err := parseRecipients(to)
			if err != nil {
				return err
			}
			dec, ticker, err := s.tokenMeta(ctx, tokenID, decimals)
			if err != nil {
				return err
			}
			hook := command.NewAirdrop(s.walletClient(), s.validator(), command.WithLogger(s.logger))
			txid, err := hook.Execute(ctx, command.AirdropInput{TokenID: tokenID, Recipients: recipients, Decimals: dec})
			if err != nil {
				return err
			}
			return s.succeed(ctx, coordinator.Params{
				Action:       domain.ActionAirdrop,
				OwnerAddress: s.cfg.OwnerAddress,
				TokenID:      strings.TrimSpace(tokenID),
				Ticker:       ticker,
				Amount:       totalAmount(recipients, dec),
				TxID:         txid,
				Details:      fmt.Sprintf("%d recipients", len(recipients)),
			})
		},
	}
	cmd.Flags().StringVar(&tokenID, "token", "", "Token ID")
	cmd.Flags().StringArrayVar(&to, "to", nil, "Recipient as address=amount (repeatable)")
	cmd.Flags().IntVar(&decimals, "decimals", -1, "Token decimals (only needed when the token lookup fails)")
	return cmd
}

// parseRecipients splits address=amount pairs. Values are validated by the hook.
func parseRecipients(pairs []string) ([]domain.Recipient, error) {
	out := make([]domain.Recipient, 0, len(pairs))
	for _, p := range pairs {
		addr, amt, ok := strings.Cut(p, "=")
		if !ok {
			return nil, usagef("recipient %q: want address=amount", p)
		}
		out = append(out, domain.Recipient{Address: strings.TrimSpace(addr), Amount: strings.TrimSpace(amt)})
	}
	return out, nil
}

// totalAmount sums validated recipient amounts for the history record.
func totalAmount(rs []domain.Recipient, decimals int) string {
	total := new(big.Int)
	for _, r := range rs {
		v, err := amount.ParseToken(r.Amount, decimals)
		if err != nil {
			continue
		}
		total.Add(total, v)
	}
	return amount.FormatBaseUnits(total, decimals)
}
