package chronik

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func fastConfig() *Config {
	return &Config{
		ReconnectDelay:    10 * time.Millisecond,
		MaxReconnectDelay: 50 * time.Millisecond,
		PingInterval:      time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      time.Second,
	}
}

func TestWSClient_SubscribeAndReceive(t *testing.T) {
	requests := make(chan subscribeRequest, 4)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer c.Close()

		for i := 0; i < 2; i++ {
			var req subscribeRequest
			if err := c.ReadJSON(&req); err != nil {
				return
			}
			requests <- req
		}

		c.WriteJSON(Message{Type: TypeTx, MsgType: "TX_ADDED_TO_MEMPOOL", TxID: "abc123"})
		c.WriteJSON(Message{Type: TypeBlock, MsgType: "BLK_CONNECTED", BlockHeight: 800000})

		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	received := make(chan Message, 4)
	client := NewWSClient(wsURL(server), fastConfig(), zap.NewNop())
	client.OnMessage(func(m Message) { received <- m })

	require.NoError(t, client.Connect(context.Background()))
	defer client.Close()

	require.NoError(t, client.SubscribeToScript("p2pkh", "00ff"))
	require.NoError(t, client.SubscribeToBlocks())

	first := <-requests
	assert.Equal(t, "subscribe", first.Action)
	assert.Equal(t, "p2pkh", first.ScriptType)
	assert.Equal(t, "00ff", first.ScriptPayload)
	second := <-requests
	assert.True(t, second.Blocks)

	select {
	case m := <-received:
		assert.Equal(t, TypeTx, m.Type)
		assert.Equal(t, "abc123", m.TxID)
	case <-time.After(2 * time.Second):
		t.Fatal("no tx message")
	}
	select {
	case m := <-received:
		assert.Equal(t, TypeBlock, m.Type)
		assert.Equal(t, int64(800000), m.BlockHeight)
	case <-time.After(2 * time.Second):
		t.Fatal("no block message")
	}
}

func TestWSClient_ReconnectResubscribes(t *testing.T) {
	var conns atomic.Int32
	var mu sync.Mutex
	perConn := map[int32][]subscribeRequest{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		n := conns.Add(1)

		for {
			var req subscribeRequest
			if err := c.ReadJSON(&req); err != nil {
				return
			}
			mu.Lock()
			perConn[n] = append(perConn[n], req)
			count := len(perConn[n])
			mu.Unlock()

			// Drop the first connection once both subscriptions arrived.
			if n == 1 && count == 2 {
				return
			}
		}
	}))
	defer server.Close()

	var disconnects, reconnects atomic.Int32
	client := NewWSClient(wsURL(server), fastConfig(), zap.NewNop())
	client.OnDisconnect(func(error) { disconnects.Add(1) })
	client.OnReconnect(func() { reconnects.Add(1) })

	require.NoError(t, client.Connect(context.Background()))
	defer client.Close()
	require.NoError(t, client.SubscribeToScript("p2pkh", "aa"))
	require.NoError(t, client.SubscribeToBlocks())

	require.Eventually(t, func() bool { return reconnects.Load() == 1 }, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(1), disconnects.Load())

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(perConn[2]) == 2
	}, 3*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "aa", perConn[2][0].ScriptPayload)
	assert.True(t, perConn[2][1].Blocks)
}

func TestWSClient_RetryReportsAttempts(t *testing.T) {
	var accept atomic.Bool
	accept.Store(true)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !accept.Load() {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		accept.Store(false)
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		// Close immediately to force a reconnect.
		c.Close()
	}))
	defer server.Close()

	var attempts atomic.Int32
	client := NewWSClient(wsURL(server), fastConfig(), zap.NewNop())
	client.OnRetry(func(attempt int, _ error) { attempts.Store(int32(attempt)) })

	require.NoError(t, client.Connect(context.Background()))
	defer client.Close()

	require.Eventually(t, func() bool { return attempts.Load() >= 3 }, 3*time.Second, 10*time.Millisecond)
}

func TestWSClient_CloseIsIdempotent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	client := NewWSClient(wsURL(server), fastConfig(), nil)
	require.NoError(t, client.Connect(context.Background()))

	require.NoError(t, client.Close())
	require.NoError(t, client.Close())

	assert.Error(t, client.SubscribeToBlocks())
	assert.Error(t, client.Connect(context.Background()))
}

func TestMessage_Decode(t *testing.T) {
	var m Message
	require.NoError(t, json.Unmarshal([]byte(`{"type":"Error","msg":"bad script"}`), &m))
	assert.Equal(t, TypeError, m.Type)
	assert.Equal(t, "bad script", m.Msg)
}
