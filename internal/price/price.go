// Package price fetches the XEC fiat price for balance display.
//
// Fetches are throttled and bounded by a timeout. Any failure degrades to the
// last known price, or to the configured default when nothing was fetched yet.
package price

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"etoken-wallet/internal/observability"
)

// Defaults.
const (
	DefaultCoin     = "ecash"
	DefaultCurrency = "usd"
	DefaultTimeout  = 5 * time.Second
	DefaultRate     = 0.2 // one request per 5s
	DefaultBurst    = 1
)

// SatsPerXEC is the number of satoshis in one XEC.
const SatsPerXEC = 100

var (
	// ErrThrottled is returned by Fetch when the rate limiter rejects a request.
	ErrThrottled = errors.New("price request throttled")
	// ErrNoQuote is returned when the response has no price for the coin/currency pair.
	ErrNoQuote = errors.New("no price quote in response")
)

// Config configures a Fetcher.
type Config struct {
	Endpoint string
	Coin     string
	Currency string
	Timeout  time.Duration
	Rate     float64 // requests per second
	Burst    int
	Default  decimal.Decimal
}

// Quote is a price observation.
type Quote struct {
	Price     decimal.Decimal
	Currency  string
	FetchedAt time.Time
	// Stale is set when Price is a fallback rather than a fresh fetch.
	Stale bool
}

// Fetcher retrieves and caches the XEC price.
type Fetcher struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger

	mu   sync.Mutex
	last *Quote
}

// NewFetcher creates a price fetcher.
func NewFetcher(cfg Config, logger *zap.Logger) *Fetcher {
	if cfg.Coin == "" {
		cfg.Coin = DefaultCoin
	}
	if cfg.Currency == "" {
		cfg.Currency = DefaultCurrency
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Rate <= 0 {
		cfg.Rate = DefaultRate
	}
	if cfg.Burst <= 0 {
		cfg.Burst = DefaultBurst
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.Rate), cfg.Burst),
		logger:  logger.Named("price"),
	}
}

// Fetch performs one throttled request.
func (f *Fetcher) Fetch(ctx context.Context) (decimal.Decimal, error) {
	if !f.limiter.Allow() {
		return decimal.Zero, ErrThrottled
	}

	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url(), nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return decimal.Zero, fmt.Errorf("http status %d: %s", resp.StatusCode, string(body))
	}

	// {"ecash":{"usd":0.0000312}}
	var payload map[string]map[string]decimal.Decimal
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return decimal.Zero, fmt.Errorf("decode response: %w", err)
	}
	p, ok := payload[f.cfg.Coin][f.cfg.Currency]
	if !ok {
		return decimal.Zero, ErrNoQuote
	}
	return p, nil
}

// Get returns a fresh quote when possible, otherwise the fallback.
func (f *Fetcher) Get(ctx context.Context) Quote {
	p, err := f.Fetch(ctx)
	if err == nil {
		q := Quote{Price: p, Currency: f.cfg.Currency, FetchedAt: time.Now()}
		f.mu.Lock()
		f.last = &q
		f.mu.Unlock()
		return q
	}

	if !errors.Is(err, ErrThrottled) {
		observability.RecordPriceFetchError()
		f.logger.Warn("price fetch failed", zap.Error(err))
	}
	return f.fallback()
}

// Last returns the last known quote without fetching.
func (f *Fetcher) Last() Quote {
	return f.fallback()
}

func (f *Fetcher) fallback() Quote {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.last != nil {
		q := *f.last
		q.Stale = true
		return q
	}
	return Quote{Price: f.cfg.Default, Currency: f.cfg.Currency, Stale: true}
}

func (f *Fetcher) url() string {
	return fmt.Sprintf("%s?ids=%s&vs_currencies=%s", f.cfg.Endpoint, f.cfg.Coin, f.cfg.Currency)
}

// FiatValue converts a satoshi amount to fiat at the quoted price.
func FiatValue(sats int64, q Quote) decimal.Decimal {
	return decimal.New(sats, 0).Div(decimal.New(SatsPerXEC, 0)).Mul(q.Price)
}
