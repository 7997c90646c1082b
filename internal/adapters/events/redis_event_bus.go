package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/Guram12/starmap/internal/domain/entities"
	"github.com/Guram12/starmap/internal/domain/providers"
	redisclient "github.com/Guram12/starmap/internal/infrastructure/clients/redis"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// subscription is the part of *redis.PubSub the bus relies on
type subscription interface {
	Channel(opts ...redis.ChannelOption) <-chan *redis.Message
	Close() error
}

// RedisEventBus implements the EventBus interface using Redis Pub/Sub, so
// map events published by one API replica reach SSE streams held by another
type RedisEventBus struct {
	client    *redisclient.Client
	subscribe func(ctx context.Context, channel string) subscription
	hub       *hub

	// mu orders hub membership changes with the Redis subscriptions, so a
	// channel with local subscribers always has a live subscription
	mu            sync.Mutex
	subscriptions map[string]subscription

	ctx    context.Context
	cancel context.CancelFunc
}

// NewRedisEventBus creates a new Redis-based event bus
func NewRedisEventBus(client *redisclient.Client) providers.EventBus {
	return newRedisEventBus(client, func(ctx context.Context, channel string) subscription {
		return client.Client().Subscribe(ctx, channel)
	})
}

func newRedisEventBus(client *redisclient.Client, subscribe func(ctx context.Context, channel string) subscription) *RedisEventBus {
	ctx, cancel := context.WithCancel(context.Background())
	return &RedisEventBus{
		client:        client,
		subscribe:     subscribe,
		hub:           newHub(),
		subscriptions: make(map[string]subscription),
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Publish publishes an event to all subscribers
func (b *RedisEventBus) Publish(ctx context.Context, channel string, event *entities.MapEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.client.Client().Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	log.Debug().Str("channel", channel).Str("event_id", event.ID).Str("event_type", string(event.EventType)).Msg("Published map event")
	return nil
}

// Subscribe subscribes to events on a channel until ctx is done
func (b *RedisEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.MapEvent, error) {
	if err := b.ctx.Err(); err != nil {
		return nil, errors.New("event bus closed")
	}

	b.mu.Lock()
	eventChan, _ := b.hub.add(channel)
	if _, exists := b.subscriptions[channel]; !exists {
		sub := b.subscribe(b.ctx, channel)
		b.subscriptions[channel] = sub
		go b.receiveMessages(channel, sub)
	}
	b.mu.Unlock()

	log.Debug().Str("channel", channel).Int("subscribers", b.hub.count(channel)).Msg("Subscribed to channel")

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()
		if removed, last := b.hub.remove(channel, eventChan); removed && last {
			if err := b.closeSubscriptionLocked(channel); err != nil {
				log.Warn().Err(err).Msg("Failed to close subscription")
			}
		}
	}()

	return eventChan, nil
}

func (b *RedisEventBus) receiveMessages(channel string, sub subscription) {
	ch := sub.Channel()
	for {
		select {
		case <-b.ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}

			var event entities.MapEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Error().Err(err).Str("channel", channel).Msg("Failed to unmarshal map event")
				continue
			}
			b.hub.broadcast(channel, &event)
		}
	}
}

// closeSubscriptionLocked must be called with mu held
func (b *RedisEventBus) closeSubscriptionLocked(channel string) error {
	sub, ok := b.subscriptions[channel]
	if !ok {
		return nil
	}
	delete(b.subscriptions, channel)

	if err := sub.Close(); err != nil {
		return fmt.Errorf("failed to close subscription %s: %w", channel, err)
	}
	log.Debug().Str("channel", channel).Msg("Closed subscription")
	return nil
}

// Unsubscribe drops every subscriber of a channel
func (b *RedisEventBus) Unsubscribe(ctx context.Context, channel string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.hub.closeChannel(channel)
	return b.closeSubscriptionLocked(channel)
}

// Close closes the event bus and all subscriptions
func (b *RedisEventBus) Close() error {
	b.cancel()

	b.mu.Lock()
	defer b.mu.Unlock()

	var errs []error
	for _, channel := range b.hub.channels() {
		b.hub.closeChannel(channel)
	}
	for channel := range b.subscriptions {
		if err := b.closeSubscriptionLocked(channel); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors closing event bus: %w", errors.Join(errs...))
	}

	log.Info().Msg("Event bus closed")
	return nil
}
