package event

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/tellerdesk/tellerdesk/internal/config"
)

const (
	publishTimeout = 2 * time.Second
	outboxSize     = 1024
)

type envelope struct {
	Node  string `json:"node"`
	Event Event  `json:"event"`
}

// RedisBridge publishes locally and mirrors every event to a Redis channel so gateway
// nodes behind a load balancer see each other's events. Echoes of its own envelopes are dropped.
// Redis writes go through a bounded outbox drained by Run; a full outbox drops the mirror copy.
type RedisBridge struct {
	local   *Hub
	client  *redis.Client
	channel string
	node    string
	logger  *slog.Logger
	outbox  chan []byte
	dropped atomic.Int64
}

// NewRedisClient connects and pings the configured Redis.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func NewRedisBridge(log *slog.Logger, local *Hub, client *redis.Client, channel string) *RedisBridge {
	if log == nil {
		log = slog.Default()
	}
	if channel == "" {
		channel = config.DefaultRedisChannel
	}
	node := uuid.NewString()
	return &RedisBridge{
		local:   local,
		client:  client,
		channel: channel,
		node:    node,
		outbox:  make(chan []byte, outboxSize),
		logger:  log.With(slog.String("service", "event_bridge"), slog.String("node", node)),
	}
}

func (b *RedisBridge) Node() string { return b.node }

func (b *RedisBridge) Publish(ev Event) {
	b.local.Publish(ev)
	payload, err := json.Marshal(envelope{Node: b.node, Event: ev})
	if err != nil {
		b.logger.Warn("marshal event envelope failed", slog.Any("error", err))
		return
	}
	select {
	case b.outbox <- payload:
	default:
		if n := b.dropped.Add(1); n%100 == 1 {
			b.logger.Warn("event outbox full, remote copy dropped", slog.String("type", string(ev.Type)), slog.Int64("dropped", n))
		}
	}
}

// Dropped counts events that never reached Redis because the outbox was full.
func (b *RedisBridge) Dropped() int64 { return b.dropped.Load() }

func (b *RedisBridge) send(ctx context.Context, payload []byte) {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		b.logger.Warn("redis publish failed", slog.Any("error", err))
	}
}

// drain writes queued envelopes until ctx ends, then flushes what is already queued.
func (b *RedisBridge) drain(ctx context.Context) {
	for {
		select {
		case payload := <-b.outbox:
			b.send(ctx, payload)
		case <-ctx.Done():
			flush, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
			defer cancel()
			for flush.Err() == nil {
				select {
				case payload := <-b.outbox:
					b.send(flush, payload)
				default:
					return
				}
			}
			return
		}
	}
}

func (b *RedisBridge) Subscribe(key string, buffer int) (string, <-chan Event, func()) {
	return b.local.Subscribe(key, buffer)
}

// Run relays remote envelopes into the local hub until ctx is cancelled. ready, when
// non-nil, is closed once the Redis subscription is confirmed.
func (b *RedisBridge) Run(ctx context.Context, ready chan<- struct{}) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer func() { _ = sub.Close() }()
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}
	sendCtx, stopSend := context.WithCancel(ctx)
	sent := make(chan struct{})
	go func() {
		defer close(sent)
		b.drain(sendCtx)
	}()
	defer func() {
		stopSend()
		<-sent
	}()
	if ready != nil {
		close(ready)
	}
	b.logger.Info("event bridge subscribed", slog.String("channel", b.channel))
	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return errors.New("redis subscription closed")
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				b.logger.Warn("decode event envelope failed", slog.Any("error", err))
				continue
			}
			if env.Node == b.node {
				continue
			}
			b.local.Publish(env.Event)
		}
	}
}
