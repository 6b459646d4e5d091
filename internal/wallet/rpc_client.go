package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync/atomic"
	"time"

	"etoken-wallet/internal/domain"
	"etoken-wallet/internal/observability"
)

// Default configuration values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0
)

// RPCClient implements Wallet over HTTP JSON-RPC 2.0 against a wallet daemon.
type RPCClient struct {
	endpoint    string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
	requestID   atomic.Uint64
}

// ClientOption configures RPCClient.
type ClientOption func(*RPCClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *RPCClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts for read calls.
func WithMaxRetries(n int) ClientOption {
	return func(c *RPCClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *RPCClient) {
		c.retryDelay = d
	}
}

// WithMaxDelay sets maximum retry delay.
func WithMaxDelay(d time.Duration) ClientOption {
	return func(c *RPCClient) {
		c.maxDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *RPCClient) {
		c.client = client
	}
}

// NewRPCClient creates a new wallet RPC client.
func NewRPCClient(endpoint string, opts ...ClientOption) *RPCClient {
	c := &RPCClient{
		endpoint:    endpoint,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is a rejection reported by the wallet daemon.
// Error returns the daemon's message unchanged so it can be shown to the user.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("wallet error %d", e.Code)
	}
	return e.Message
}

// call performs a read call with retries and exponential backoff.
func (c *RPCClient) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	return c.do(ctx, method, params, result, c.maxRetries)
}

// callOnce performs a mutating call. A broadcast is never resent: a lost response
// may still mean the transaction went out.
func (c *RPCClient) callOnce(ctx context.Context, method string, params []interface{}, result interface{}) error {
	return c.do(ctx, method, params, result, 0)
}

func (c *RPCClient) do(ctx context.Context, method string, params []interface{}, result interface{}, maxRetries int) error {
	start := time.Now()
	defer func() {
		observability.RecordRPCLatency(method, time.Since(start).Seconds())
	}()

	reqID := c.requestID.Add(1)
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
			continue
		}

		var rpcResp rpcResponse
		if err := json.Unmarshal(respBody, &rpcResp); err != nil {
			lastErr = fmt.Errorf("unmarshal response: %w", err)
			continue
		}

		// Wallet rejections are final.
		if rpcResp.Error != nil {
			return rpcResp.Error
		}

		if result != nil && rpcResp.Result != nil {
			if err := json.Unmarshal(rpcResp.Result, result); err != nil {
				return fmt.Errorf("unmarshal result: %w", err)
			}
		}
		return nil
	}

	if maxRetries == 0 {
		return lastErr
	}
	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// SendToken sends amount of tokenID to address.
func (c *RPCClient) SendToken(ctx context.Context, tokenID, address, amount string, decimals int) (Tx, error) {
	var tx Tx
	err := c.callOnce(ctx, "sendToken", []interface{}{tokenID, address, amount, decimals}, &tx)
	return tx, err
}

// MintToken mints amount of tokenID.
func (c *RPCClient) MintToken(ctx context.Context, tokenID, amount string, decimals int) (Tx, error) {
	var tx Tx
	err := c.callOnce(ctx, "mintToken", []interface{}{tokenID, amount, decimals}, &tx)
	return tx, err
}

// BurnToken burns amount of tokenID.
func (c *RPCClient) BurnToken(ctx context.Context, tokenID, amount string, decimals int) (Tx, error) {
	var tx Tx
	err := c.callOnce(ctx, "burnToken", []interface{}{tokenID, amount, decimals}, &tx)
	return tx, err
}

type rpcRecipient struct {
	Address string `json:"address"`
	Amount  string `json:"amount"`
}

// AirdropToken sends tokenID to every recipient in one transaction.
func (c *RPCClient) AirdropToken(ctx context.Context, tokenID string, recipients []domain.Recipient, decimals int) (Tx, error) {
	rs := make([]rpcRecipient, len(recipients))
	for i, r := range recipients {
		rs[i] = rpcRecipient{Address: r.Address, Amount: r.Amount}
	}
	var tx Tx
	err := c.callOnce(ctx, "airdropToken", []interface{}{tokenID, rs, decimals}, &tx)
	return tx, err
}

// listETokensResult is the raw RPC response item for listETokens.
// Balances are decimal strings because they can exceed 64 bits.
type listETokensResult struct {
	TokenID string `json:"tokenId"`
	Balance string `json:"balance"`
}

// ListETokens returns every token the wallet holds.
func (c *RPCClient) ListETokens(ctx context.Context) ([]TokenBalance, error) {
	var result []listETokensResult
	if err := c.call(ctx, "listETokens", nil, &result); err != nil {
		return nil, err
	}

	tokens := make([]TokenBalance, 0, len(result))
	for _, r := range result {
		bal, ok := new(big.Int).SetString(r.Balance, 10)
		if !ok {
			return nil, fmt.Errorf("token %s: invalid balance %q", r.TokenID, r.Balance)
		}
		tokens = append(tokens, TokenBalance{TokenID: r.TokenID, Balance: bal})
	}
	return tokens, nil
}

// GetTokenInfo returns the genesis info for tokenID.
func (c *RPCClient) GetTokenInfo(ctx context.Context, tokenID string) (TokenInfo, error) {
	var info TokenInfo
	if err := c.call(ctx, "getTokenInfo", []interface{}{tokenID}, &info); err != nil {
		return TokenInfo{}, err
	}
	if info.TokenID == "" {
		info.TokenID = tokenID
	}
	return info, nil
}

// GetBalance returns the native balance.
func (c *RPCClient) GetBalance(ctx context.Context) (Balance, error) {
	var bal Balance
	if err := c.call(ctx, "getBalance", nil, &bal); err != nil {
		return Balance{}, err
	}
	return bal, nil
}
