package cli

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"etoken-wallet/internal/balance"
	"etoken-wallet/internal/domain"
	"etoken-wallet/internal/fee"
	"etoken-wallet/internal/price"
	"etoken-wallet/internal/scanner"
	"etoken-wallet/internal/storage"
	chstore "etoken-wallet/internal/storage/clickhouse"
	"etoken-wallet/internal/storage/memory"
	"etoken-wallet/internal/storage/migrations"
)

var estimateActions = map[string]fee.Action{
	"send":    fee.ActionSend,
	"mint":    fee.ActionMint,
	"burn":    fee.ActionBurn,
	"airdrop": fee.ActionAirdrop,
	"message": fee.ActionMessage,
}

type estimateResult struct {
	Action string `json:"action"`
	Sats   int64  `json:"sats"`
	XEC    string `json:"xec"`
}

func (s *runtimeState) newEstimateCommand() *cobra.Command {
	var (
		recipients int
		message    string
	)
	cmd := &cobra.Command{
		Use:   "estimate <send|mint|burn|airdrop|message>",
		Short: "Estimate the network fee of an action",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			action, ok := estimateActions[strings.ToLower(args[0])]
			if !ok {
				return usagef("unknown action %q", args[0])
			}
			sats := fee.EstimateSats(action, fee.Params{RecipientCount: recipients, Message: message})
			return s.writeJSON(estimateResult{
				Action: string(action),
				Sats:   sats,
				XEC:    decimal.New(sats, -2).StringFixed(2),
			})
		},
	}
	cmd.Flags().IntVar(&recipients, "recipients", 0, "Recipient count (airdrop)")
	cmd.Flags().StringVar(&message, "message", "", "Message text (message)")
	return cmd
}

type holdingView struct {
	TokenID  string `json:"tokenId"`
	Ticker   string `json:"ticker"`
	Name     string `json:"name,omitempty"`
	Balance  string `json:"balance"`
	Decimals int    `json:"decimals"`
	Region   string `json:"region,omitempty"`
	ImageURL string `json:"imageUrl,omitempty"`
	Verified bool   `json:"verified"`
	Metadata bool   `json:"metadataOk"`
}

type scanView struct {
	Owner      string        `json:"owner"`
	ScannedAt  time.Time     `json:"scannedAt"`
	Generation uint64        `json:"generation"`
	Holdings   []holdingView `json:"holdings"`
	Favorites  []string      `json:"favorites"`
}

func (s *runtimeState) newScanCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Reconcile wallet holdings against the token directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if err := s.requireOwner(); err != nil {
				return err
			}
			if err := s.openStores(ctx); err != nil {
				return err
			}

			var snapshots storage.SnapshotStore = memory.NewSnapshotStore()
			if s.cfg.ClickHouseDSN != "" {
				conn, err := migrations.RunClickhouseMigrations(ctx, s.cfg.ClickHouseDSN)
				if err != nil {
					return err
				}
				s.closers = append(s.closers, func() { _ = conn.Close() })
				snapshots = chstore.NewSnapshotStore(conn)
			}

			sc := scanner.New(s.walletClient(), s.directory, s.favorites, snapshots, scanner.NewStore(), scanner.Config{
				OwnerAddress:    s.cfg.OwnerAddress,
				MetadataTimeout: s.cfg.MetadataTimeout,
				Concurrency:     s.cfg.ScanConcurrency,
			}, s.logger)
			res, err := sc.Run(ctx)
			if err != nil {
				return err
			}

			favs, err := s.favorites.List(ctx, s.cfg.OwnerAddress)
			if err != nil {
				return err
			}
			view := scanView{
				Owner:      s.cfg.OwnerAddress,
				ScannedAt:  res.LastScanAt,
				Generation: res.Generation,
				Holdings:   make([]holdingView, 0, len(res.Holdings)),
				Favorites:  favs,
			}
			for _, h := range res.Holdings {
				view.Holdings = append(view.Holdings, toHoldingView(h))
			}
			return s.writeJSON(view)
		},
	}
}

func toHoldingView(h domain.TokenHolding) holdingView {
	return holdingView{
		TokenID:  h.TokenID,
		Ticker:   h.Ticker,
		Name:     h.Name,
		Balance:  h.DisplayBalance,
		Decimals: h.Decimals,
		Region:   h.Region,
		ImageURL: h.ImageURL,
		Verified: h.Verified,
		Metadata: h.MetadataOK,
	}
}

type historyView struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	TokenID   string    `json:"tokenId"`
	Ticker    string    `json:"ticker,omitempty"`
	Amount    string    `json:"amount"`
	TxID      string    `json:"txid"`
	Details   string    `json:"details,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func (s *runtimeState) newHistoryCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded actions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if err := s.requireOwner(); err != nil {
				return err
			}
			if err := s.openStores(ctx); err != nil {
				return err
			}
			entries, err := s.history.ListByOwner(ctx, s.cfg.OwnerAddress, limit)
			if err != nil {
				return err
			}
			out := make([]historyView, 0, len(entries))
			for _, e := range entries {
				out = append(out, historyView{
					ID:        e.ID,
					Action:    e.ActionType.String(),
					TokenID:   e.TokenID,
					Ticker:    e.Ticker,
					Amount:    e.Amount,
					TxID:      e.TransactionID,
					Details:   e.Details,
					CreatedAt: time.UnixMilli(e.CreatedAt).UTC(),
				})
			}
			return s.writeJSON(out)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum entries (0 for all)")
	return cmd
}

type balanceView struct {
	Owner      string `json:"owner"`
	Sats       int64  `json:"sats"`
	TotalSats  int64  `json:"totalSats"`
	UTXOs      int    `json:"utxos"`
	XEC        string `json:"xec"`
	Value      string `json:"value,omitempty"`
	Currency   string `json:"currency,omitempty"`
	PriceStale bool   `json:"priceStale,omitempty"`
}

func (s *runtimeState) newBalanceCommand() *cobra.Command {
	var withPrice bool
	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Show the native XEC balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cache := balance.NewCache(s.walletClient(), s.triggers.Balance, s.cfg.OwnerAddress, s.logger)
			snap, err := cache.Refresh(ctx)
			if err != nil {
				return err
			}
			view := balanceView{
				Owner:     snap.OwnerAddress,
				Sats:      snap.Sats,
				TotalSats: snap.TotalSats,
				UTXOs:     snap.UTXOCount,
				XEC:       decimal.New(snap.Sats, -2).StringFixed(2),
			}
			if withPrice {
				def, err := decimal.NewFromString(s.cfg.PriceDefault)
				if err != nil {
					return usagef("price default: %v", err)
				}
				q := price.NewFetcher(price.Config{
					Endpoint: s.cfg.PriceURL,
					Rate:     s.cfg.PriceRate,
					Timeout:  s.cfg.PriceTimeout,
					Default:  def,
				}, s.logger).Get(ctx)
				view.Value = price.FiatValue(snap.Sats, q).StringFixed(2)
				view.Currency = q.Currency
				view.PriceStale = q.Stale
			}
			return s.writeJSON(view)
		},
	}
	cmd.Flags().BoolVar(&withPrice, "price", false, "Include fiat value")
	return cmd
}
