package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"etoken-wallet/internal/domain"
)

func rpcServer(t *testing.T, handle func(req rpcRequest) map[string]interface{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}
		resp := handle(req)
		resp["jsonrpc"] = "2.0"
		resp["id"] = req.ID
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestRPCClient_SendToken(t *testing.T) {
	server := rpcServer(t, func(req rpcRequest) map[string]interface{} {
		if req.Method != "sendToken" {
			t.Errorf("expected method sendToken, got %s", req.Method)
		}
		if len(req.Params) != 4 {
			t.Errorf("expected 4 params, got %d", len(req.Params))
		}
		return map[string]interface{}{"result": map[string]string{"txid": "abc123"}}
	})
	defer server.Close()

	client := NewRPCClient(server.URL)
	tx, err := client.SendToken(context.Background(), "tok", "ecash:qq", "10", 0)
	if err != nil {
		t.Fatalf("SendToken: %v", err)
	}
	if tx.TxID != "abc123" {
		t.Errorf("expected txid abc123, got %s", tx.TxID)
	}
}

func TestRPCClient_AirdropToken(t *testing.T) {
	server := rpcServer(t, func(req rpcRequest) map[string]interface{} {
		rs, ok := req.Params[1].([]interface{})
		if !ok || len(rs) != 2 {
			t.Errorf("expected 2 recipients, got %v", req.Params[1])
		}
		return map[string]interface{}{"result": map[string]string{"txid": "drop"}}
	})
	defer server.Close()

	client := NewRPCClient(server.URL)
	tx, err := client.AirdropToken(context.Background(), "tok", []domain.Recipient{
		{Address: "ecash:qa", Amount: "1"},
		{Address: "ecash:qb", Amount: "2"},
	}, 2)
	if err != nil {
		t.Fatalf("AirdropToken: %v", err)
	}
	if tx.TxID != "drop" {
		t.Errorf("expected txid drop, got %s", tx.TxID)
	}
}

func TestRPCClient_ListETokens(t *testing.T) {
	server := rpcServer(t, func(req rpcRequest) map[string]interface{} {
		return map[string]interface{}{"result": []map[string]string{
			{"tokenId": "a", "balance": "123450"},
			{"tokenId": "b", "balance": "340282366920938463463374607431768211456"},
		}}
	})
	defer server.Close()

	client := NewRPCClient(server.URL)
	tokens, err := client.ListETokens(context.Background())
	if err != nil {
		t.Fatalf("ListETokens: %v", err)
	}
	if len(tokens) != 2 {
		t.Fatalf("expected 2 tokens, got %d", len(tokens))
	}
	if tokens[0].Balance.Int64() != 123450 {
		t.Errorf("expected 123450, got %s", tokens[0].Balance)
	}
	if tokens[1].Balance.String() != "340282366920938463463374607431768211456" {
		t.Errorf("big balance mangled: %s", tokens[1].Balance)
	}
}

func TestRPCClient_GetTokenInfo(t *testing.T) {
	server := rpcServer(t, func(req rpcRequest) map[string]interface{} {
		return map[string]interface{}{"result": map[string]interface{}{
			"genesisInfo": map[string]interface{}{
				"tokenName":   "Token A",
				"tokenTicker": "TKA",
				"decimals":    2,
			},
		}}
	})
	defer server.Close()

	client := NewRPCClient(server.URL)
	info, err := client.GetTokenInfo(context.Background(), "a")
	if err != nil {
		t.Fatalf("GetTokenInfo: %v", err)
	}
	d := info.Domain()
	if d.TokenID != "a" || d.Ticker != "TKA" || d.Decimals != 2 || d.Name != "Token A" {
		t.Errorf("unexpected info %+v", d)
	}
}

func TestRPCClient_GetBalance(t *testing.T) {
	server := rpcServer(t, func(req rpcRequest) map[string]interface{} {
		return map[string]interface{}{"result": map[string]interface{}{
			"balance":      1000,
			"totalBalance": 1546,
			"utxos":        []map[string]interface{}{{"txid": "x", "outIdx": 0, "sats": 1000}},
		}}
	})
	defer server.Close()

	client := NewRPCClient(server.URL)
	bal, err := client.GetBalance(context.Background())
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	d := bal.Domain()
	if d.Sats != 1000 || d.TotalSats != 1546 || d.UTXOCount != 1 {
		t.Errorf("unexpected balance %+v", d)
	}
}

func TestRPCClient_ReadRetry(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  map[string]interface{}{"balance": 5},
		})
	}))
	defer server.Close()

	client := NewRPCClient(server.URL,
		WithMaxRetries(3),
		WithRetryDelay(10*time.Millisecond),
	)

	bal, err := client.GetBalance(context.Background())
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if bal.Balance != 5 {
		t.Errorf("expected balance 5, got %d", bal.Balance)
	}
	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestRPCClient_MutationNotRetried(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewRPCClient(server.URL,
		WithMaxRetries(3),
		WithRetryDelay(10*time.Millisecond),
	)

	_, err := client.BurnToken(context.Background(), "tok", "1", 0)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if attempts.Load() != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts.Load())
	}
}

func TestRPCClient_RPCErrorVerbatim(t *testing.T) {
	server := rpcServer(t, func(req rpcRequest) map[string]interface{} {
		return map[string]interface{}{"error": map[string]interface{}{
			"code":    -4,
			"message": "Insufficient token balance",
		}}
	})
	defer server.Close()

	client := NewRPCClient(server.URL)
	_, err := client.MintToken(context.Background(), "tok", "1", 0)
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("expected *RPCError, got %T", err)
	}
	if rpcErr.Code != -4 {
		t.Errorf("expected code -4, got %d", rpcErr.Code)
	}
	if err.Error() != "Insufficient token balance" {
		t.Errorf("expected verbatim message, got %q", err.Error())
	}
}

func TestRPCClient_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewRPCClient(server.URL,
		WithMaxRetries(5),
		WithRetryDelay(time.Second),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.ListETokens(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}
