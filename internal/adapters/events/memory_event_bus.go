package events

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/Guram12/starmap/internal/domain/entities"
	"github.com/Guram12/starmap/internal/domain/providers"
)

// MemoryEventBus delivers events within a single process. It is used when
// Redis is unavailable and in tests.
type MemoryEventBus struct {
	hub    *hub
	closed atomic.Bool
}

// NewMemoryEventBus creates an in-process event bus
func NewMemoryEventBus() *MemoryEventBus {
	return &MemoryEventBus{hub: newHub()}
}

var _ providers.EventBus = (*MemoryEventBus)(nil)

// Publish delivers the event to current subscribers of the channel
func (b *MemoryEventBus) Publish(ctx context.Context, channel string, event *entities.MapEvent) error {
	if b.closed.Load() {
		return errors.New("event bus closed")
	}
	b.hub.broadcast(channel, event)
	return nil
}

// Subscribe subscribes to events on a channel until ctx is done
func (b *MemoryEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.MapEvent, error) {
	if b.closed.Load() {
		return nil, errors.New("event bus closed")
	}
	ch, _ := b.hub.add(channel)
	go func() {
		<-ctx.Done()
		b.hub.remove(channel, ch)
	}()
	return ch, nil
}

// Unsubscribe drops every subscriber of a channel
func (b *MemoryEventBus) Unsubscribe(ctx context.Context, channel string) error {
	b.hub.closeChannel(channel)
	return nil
}

// Close drops all subscribers
func (b *MemoryEventBus) Close() error {
	b.closed.Store(true)
	for _, channel := range b.hub.channels() {
		b.hub.closeChannel(channel)
	}
	return nil
}
