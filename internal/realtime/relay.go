package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/blackmichael/video-feed/internal/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	relayChannel = "video-feed:events"

	// relayBuffer bounds events waiting to be published. Notify drops
	// events beyond it.
	relayBuffer = 256

	relayPublishTimeout = 2 * time.Second
)

// envelope tags a relayed event with the instance that produced it so an
// instance does not deliver its own events twice.
type envelope struct {
	Origin string       `json:"origin"`
	Event  domain.Event `json:"event"`
}

// RedisRelay shares events between server instances over Redis pub/sub.
// Events are delivered to the local hub immediately and queued for Run to
// publish to the other instances, so Notify never waits on Redis.
type RedisRelay struct {
	client *redis.Client
	hub    *Hub
	origin string
	logger *slog.Logger
	outbox chan []byte
}

// NewRedisRelay connects to the Redis server at redisURL.
func NewRedisRelay(ctx context.Context, redisURL string, hub *Hub, logger *slog.Logger) (*RedisRelay, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return newRedisRelay(client, hub, logger), nil
}

func newRedisRelay(client *redis.Client, hub *Hub, logger *slog.Logger) *RedisRelay {
	return &RedisRelay{
		client: client,
		hub:    hub,
		origin: uuid.NewString(),
		logger: logger,
		outbox: make(chan []byte, relayBuffer),
	}
}

// Notify implements domain.Notifier.
func (r *RedisRelay) Notify(_ context.Context, event domain.Event) {
	r.hub.Publish(event)

	payload, err := json.Marshal(envelope{Origin: r.origin, Event: event})
	if err != nil {
		r.logger.Error("failed to encode relayed event", "error", err)
		return
	}
	select {
	case r.outbox <- payload:
	default:
		r.logger.Warn("relay backlog full, event not relayed", "type", event.Type, "post", event.PostID)
	}
}

// Run publishes queued events and forwards events from other instances into
// the local hub until ctx is cancelled.
func (r *RedisRelay) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.publishLoop(ctx)
	}()
	defer wg.Wait()
	defer cancel()

	sub := r.client.Subscribe(ctx, relayChannel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", relayChannel, err)
	}
	r.logger.Info("relaying events over redis", "channel", relayChannel)

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("redis subscription closed")
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				r.logger.Error("failed to parse relayed event", "error", err)
				continue
			}
			if env.Origin == r.origin {
				continue
			}
			r.hub.Publish(env.Event)
		}
	}
}

func (r *RedisRelay) publishLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case payload := <-r.outbox:
			pubCtx, cancel := context.WithTimeout(ctx, relayPublishTimeout)
			err := r.client.Publish(pubCtx, relayChannel, payload).Err()
			cancel()
			if err != nil {
				r.logger.Warn("failed to relay event", "error", err)
			}
		}
	}
}

// Close closes the Redis client.
func (r *RedisRelay) Close() error {
	return r.client.Close()
}
