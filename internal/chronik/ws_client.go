package chronik

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Config configures WebSocket client behavior.
type Config struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
}

// DefaultConfig returns default WebSocket configuration.
func DefaultConfig() Config {
	return Config{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// WSClient is a reconnecting WebSocket client. Subscriptions are remembered
// and replayed after every reconnect.
type WSClient struct {
	endpoint string
	config   Config
	logger   *zap.Logger

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	subsMu  sync.RWMutex
	scripts []ScriptSub
	blocks  bool

	handlersMu   sync.RWMutex
	onMessage    func(Message)
	onReconnect  func()
	onDisconnect func(error)
	onRetry      func(attempt int, err error)

	// done signals shutdown
	done chan struct{}
	wg   sync.WaitGroup
}

// NewWSClient creates a client. Call Connect to dial.
func NewWSClient(endpoint string, config *Config, logger *zap.Logger) *WSClient {
	cfg := DefaultConfig()
	if config != nil {
		cfg = *config
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WSClient{
		endpoint: endpoint,
		config:   cfg,
		logger:   logger.Named("chronik"),
		done:     make(chan struct{}),
	}
}

// OnMessage sets the handler for every decoded message.
func (c *WSClient) OnMessage(fn func(Message)) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.onMessage = fn
}

// OnReconnect sets the handler called after a reconnect and resubscribe.
func (c *WSClient) OnReconnect(fn func()) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.onReconnect = fn
}

// OnDisconnect sets the handler called when an established connection drops.
func (c *WSClient) OnDisconnect(fn func(error)) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.onDisconnect = fn
}

// OnRetry sets the handler called after each failed reconnect attempt.
func (c *WSClient) OnRetry(fn func(attempt int, err error)) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.onRetry = fn
}

// Connect dials the endpoint and starts the read and ping loops.
func (c *WSClient) Connect(ctx context.Context) error {
	if c.closed.Load() {
		return fmt.Errorf("client closed")
	}
	if err := c.dial(ctx); err != nil {
		return err
	}

	c.wg.Add(2)
	go c.readLoop()
	go c.pingLoop()
	return nil
}

func (c *WSClient) dial(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.closed.Load() {
		conn.Close()
		return fmt.Errorf("client closed")
	}
	c.conn = conn
	return nil
}

// SubscribeToScript watches an output script. The subscription survives reconnects.
func (c *WSClient) SubscribeToScript(scriptType, payload string) error {
	sub := ScriptSub{ScriptType: scriptType, ScriptPayload: payload}

	c.subsMu.Lock()
	known := false
	for _, s := range c.scripts {
		if s == sub {
			known = true
			break
		}
	}
	if !known {
		c.scripts = append(c.scripts, sub)
	}
	c.subsMu.Unlock()

	return c.write(subscribeRequest{Action: "subscribe", ScriptType: scriptType, ScriptPayload: payload})
}

// SubscribeToBlocks watches new blocks. The subscription survives reconnects.
func (c *WSClient) SubscribeToBlocks() error {
	c.subsMu.Lock()
	c.blocks = true
	c.subsMu.Unlock()

	return c.write(subscribeRequest{Action: "subscribe", Blocks: true})
}

func (c *WSClient) write(req subscribeRequest) error {
	if c.closed.Load() {
		return fmt.Errorf("client closed")
	}

	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("not connected")
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	if err := c.conn.WriteJSON(req); err != nil {
		return fmt.Errorf("write subscribe: %w", err)
	}
	return nil
}

// resubscribeAll replays every remembered subscription.
func (c *WSClient) resubscribeAll() error {
	c.subsMu.RLock()
	scripts := append([]ScriptSub(nil), c.scripts...)
	blocks := c.blocks
	c.subsMu.RUnlock()

	for _, s := range scripts {
		if err := c.write(subscribeRequest{Action: "subscribe", ScriptType: s.ScriptType, ScriptPayload: s.ScriptPayload}); err != nil {
			return err
		}
	}
	if blocks {
		if err := c.write(subscribeRequest{Action: "subscribe", Blocks: true}); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the WebSocket connection.
func (c *WSClient) Close() error {
	if c.closed.Swap(true) {
		return nil // Already closed
	}

	close(c.done)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
	}
	c.connMu.Unlock()

	c.wg.Wait()
	return nil
}

// readLoop reads messages and reconnects when the connection drops.
func (c *WSClient) readLoop() {
	defer c.wg.Done()

	for !c.closed.Load() {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))

		_, data, err := conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return
			}
			c.logger.Warn("connection lost", zap.Error(err))
			c.handlersMu.RLock()
			onDisconnect := c.onDisconnect
			c.handlersMu.RUnlock()
			if onDisconnect != nil {
				onDisconnect(err)
			}
			if !c.reconnect() {
				return
			}
			continue
		}

		c.handleMessage(data)
	}
}

// reconnect retries with exponential backoff until connected or closed.
func (c *WSClient) reconnect() bool {
	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
	}
	c.connMu.Unlock()

	delay := c.config.ReconnectDelay
	for attempt := 1; ; attempt++ {
		select {
		case <-c.done:
			return false
		case <-time.After(delay):
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := c.dial(ctx)
		cancel()
		if err == nil {
			if err = c.resubscribeAll(); err != nil {
				c.connMu.Lock()
				c.conn.Close()
				c.connMu.Unlock()
			}
		}
		if err == nil {
			c.logger.Info("reconnected", zap.Int("attempts", attempt))
			c.handlersMu.RLock()
			onReconnect := c.onReconnect
			c.handlersMu.RUnlock()
			if onReconnect != nil {
				onReconnect()
			}
			return true
		}

		c.logger.Debug("reconnect failed", zap.Int("attempt", attempt), zap.Error(err))
		c.handlersMu.RLock()
		onRetry := c.onRetry
		c.handlersMu.RUnlock()
		if onRetry != nil {
			onRetry(attempt, err)
		}

		delay *= 2
		if delay > c.config.MaxReconnectDelay {
			delay = c.config.MaxReconnectDelay
		}
	}
}

// handleMessage decodes one frame and dispatches it.
func (c *WSClient) handleMessage(data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		c.logger.Debug("undecodable frame", zap.Error(err))
		return
	}
	if msg.Type == TypeError {
		c.logger.Warn("indexer error", zap.String("msg", msg.Msg))
	}

	c.handlersMu.RLock()
	fn := c.onMessage
	c.handlersMu.RUnlock()
	if fn != nil {
		fn(msg)
	}
}

// pingLoop sends periodic ping frames to keep connection alive.
func (c *WSClient) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			if c.conn != nil {
				c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
				// A failed ping surfaces as a read error.
				_ = c.conn.WriteMessage(websocket.PingMessage, nil)
			}
			c.connMu.Unlock()
		}
	}
}
