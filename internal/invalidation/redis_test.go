package invalidation

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

func payload(t *testing.T, origin, trigger string) string {
	t.Helper()
	data, err := json.Marshal(bumpMessage{Origin: origin, Trigger: trigger, Version: 9})
	require.NoError(t, err)
	return string(data)
}

func TestBroadcaster_ApplyIgnoresOwnOrigin(t *testing.T) {
	ts := NewTriggers()
	b := NewBroadcaster(nil, "", ts, zap.NewNop())

	b.apply(payload(t, b.Origin(), TokensTrigger))
	assert.Equal(t, uint64(0), ts.Tokens.Version())

	b.apply(payload(t, "other", TokensTrigger))
	assert.Equal(t, uint64(1), ts.Tokens.Version())
	assert.Equal(t, uint64(0), ts.Balance.Version())
}

func TestBroadcaster_ApplyIgnoresGarbage(t *testing.T) {
	ts := NewTriggers()
	b := NewBroadcaster(nil, "", ts, zap.NewNop())

	b.apply("not json")
	b.apply(payload(t, "other", "unknown"))

	assert.Equal(t, uint64(0), ts.Tokens.Version())
	assert.Equal(t, uint64(0), ts.Balance.Version())
}

// silentServer accepts connections and never replies.
func silentServer(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var (
		mu    sync.Mutex
		conns []net.Conn
	)
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, c)
			mu.Unlock()
		}
	}()
	t.Cleanup(func() {
		_ = ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			_ = c.Close()
		}
	})
	return ln.Addr().String()
}

func TestBroadcaster_BumpDoesNotWaitOnRedis(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: silentServer(t), MaxRetries: -1})
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ts := NewTriggers()
	b := NewBroadcaster(client, "", ts, zap.NewNop())
	b.publishTimeout = 100 * time.Millisecond
	b.Attach(ctx)

	start := time.Now()
	ts.Balance.Bump()
	ts.Tokens.Bump()
	assert.Less(t, time.Since(start), 50*time.Millisecond)

	// Both publishes time out; Flush returns once they have.
	fctx, fcancel := context.WithTimeout(ctx, 5*time.Second)
	defer fcancel()
	require.NoError(t, b.Flush(fctx))
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}

func TestBroadcaster_NoBumpsAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ts := NewTriggers()
	b := NewBroadcaster(nil, "", ts, zap.NewNop())
	b.Attach(ctx)
	cancel()

	ts.Balance.Bump()

	fctx, fcancel := context.WithTimeout(context.Background(), time.Second)
	defer fcancel()
	assert.NoError(t, b.Flush(fctx))
}

func setupRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	return client, func() {
		client.Close()
		_ = container.Terminate(ctx)
	}
}

func TestBroadcaster_RelaysBetweenProcesses(t *testing.T) {
	client, cleanup := setupRedis(t)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	local := NewTriggers()
	remote := NewTriggers()
	pub := NewBroadcaster(client, "test:bumps", local, zap.NewNop())
	sub := NewBroadcaster(client, "test:bumps", remote, zap.NewNop())
	pub.Attach(ctx)

	go sub.Run(ctx)

	ch, unsub := remote.Balance.Subscribe()
	defer unsub()

	// Publish until the subscriber is listening.
	deadline := time.After(10 * time.Second)
	for {
		local.Balance.Bump()
		select {
		case <-ch:
			assert.GreaterOrEqual(t, remote.Balance.Version(), uint64(1))
			assert.Equal(t, uint64(0), remote.Tokens.Version())
			return
		case <-time.After(200 * time.Millisecond):
		case <-deadline:
			t.Fatal("bump was not relayed")
		}
	}
}
