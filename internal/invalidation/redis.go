package invalidation

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultChannel is the redis pub/sub channel for trigger bumps.
const DefaultChannel = "etoken:invalidation"

const (
	// DefaultPublishTimeout bounds one relayed publish.
	DefaultPublishTimeout = 2 * time.Second

	relayQueueSize = 64
)

// bumpMessage is the wire format of a relayed bump.
type bumpMessage struct {
	Origin  string `json:"origin"`
	Trigger string `json:"trigger"`
	Version uint64 `json:"version"`
}

// Broadcaster relays trigger bumps between processes over redis pub/sub.
// Versions are per-process; a relayed message only means "bump once".
type Broadcaster struct {
	client   *redis.Client
	channel  string
	origin   string
	triggers *Triggers
	logger   *zap.Logger

	publishTimeout time.Duration
	queue          chan bumpMessage
	pending        sync.WaitGroup
}

// NewBroadcaster creates a broadcaster for triggers. An empty channel uses DefaultChannel.
func NewBroadcaster(client *redis.Client, channel string, triggers *Triggers, logger *zap.Logger) *Broadcaster {
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broadcaster{
		client:   client,
		channel:  channel,
		origin:   uuid.NewString(),
		triggers: triggers,
		logger:   logger.Named("invalidation"),

		publishTimeout: DefaultPublishTimeout,
		queue:          make(chan bumpMessage, relayQueueSize),
	}
}

// Origin returns the id this process stamps on published bumps.
func (b *Broadcaster) Origin() string {
	return b.origin
}

// Publish announces a local bump.
func (b *Broadcaster) Publish(ctx context.Context, trigger string, version uint64) error {
	data, err := json.Marshal(bumpMessage{Origin: b.origin, Trigger: trigger, Version: version})
	if err != nil {
		return fmt.Errorf("marshal bump: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("publish bump: %w", err)
	}
	return nil
}

// Attach relays every local bump of every trigger. Bump only enqueues; one
// goroutine publishes in order until ctx is done. Publish failures are logged.
func (b *Broadcaster) Attach(ctx context.Context) {
	for _, t := range b.triggers.All() {
		name := t.Name()
		t.OnBump(func(v uint64) {
			if ctx.Err() != nil {
				return
			}
			b.pending.Add(1)
			select {
			case b.queue <- bumpMessage{Origin: b.origin, Trigger: name, Version: v}:
			default:
				b.pending.Done()
				b.logger.Warn("relay queue full, bump dropped", zap.String("trigger", name), zap.Uint64("version", v))
			}
		})
	}
	go b.relay(ctx)
}

func (b *Broadcaster) relay(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case <-b.queue:
					b.pending.Done()
				default:
					return
				}
			}
		case m := <-b.queue:
			pctx, cancel := context.WithTimeout(ctx, b.publishTimeout)
			if err := b.Publish(pctx, m.Trigger, m.Version); err != nil {
				b.logger.Warn("relay bump failed", zap.String("trigger", m.Trigger), zap.Error(err))
			}
			cancel()
			b.pending.Done()
		}
	}
}

// Flush waits until every enqueued bump has been published or has failed.
// Call it once bumping has stopped, e.g. before a short-lived process exits.
func (b *Broadcaster) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		b.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run applies bumps published by other processes until ctx is done.
func (b *Broadcaster) Run(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}
	b.logger.Info("listening for remote bumps", zap.String("channel", b.channel))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			b.apply(msg.Payload)
		}
	}
}

func (b *Broadcaster) apply(payload string) {
	var m bumpMessage
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		b.logger.Warn("invalid bump message", zap.Error(err))
		return
	}
	if m.Origin == b.origin {
		return
	}
	t := b.triggers.ByName(m.Trigger)
	if t == nil {
		b.logger.Debug("unknown trigger", zap.String("trigger", m.Trigger))
		return
	}
	v := t.BumpRemote()
	b.logger.Debug("remote bump", zap.String("trigger", m.Trigger), zap.String("origin", m.Origin), zap.Uint64("version", v))
}
