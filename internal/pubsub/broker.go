// Package pubsub provides a generic in-process publish/subscribe broker.
package pubsub

import (
	"context"
	"sync"
)

// EventType describes what happened to the payload.
type EventType string

const (
	CreatedEvent EventType = "created"
	UpdatedEvent EventType = "updated"
	DeletedEvent EventType = "deleted"
)

// Event wraps a payload with its type.
type Event[T any] struct {
	Type    EventType
	Payload T
}

const defaultBufferSize = 64

// Broker fans published events out to every subscriber. Publishing never
// blocks: a subscriber whose buffer is full misses the event.
type Broker[T any] struct {
	mu         sync.RWMutex
	subs       map[chan Event[T]]struct{}
	bufferSize int
	done       chan struct{}
	closeOnce  sync.Once
}

// NewBroker returns a broker with the default subscriber buffer.
func NewBroker[T any]() *Broker[T] {
	return NewBrokerWithBuffer[T](defaultBufferSize)
}

// NewBrokerWithBuffer returns a broker whose subscriber channels hold size events.
func NewBrokerWithBuffer[T any](size int) *Broker[T] {
	return &Broker[T]{
		subs:       make(map[chan Event[T]]struct{}),
		bufferSize: size,
		done:       make(chan struct{}),
	}
}

// Subscribe returns a channel of events that is closed when ctx is done or
// the broker shuts down.
func (b *Broker[T]) Subscribe(ctx context.Context) <-chan Event[T] {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event[T], b.bufferSize)
	select {
	case <-b.done:
		close(ch)
		return ch
	default:
	}
	b.subs[ch] = struct{}{}

	go func() {
		select {
		case <-ctx.Done():
		case <-b.done:
			return
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
	}()
	return ch
}

// Publish delivers an event to every current subscriber.
func (b *Broker[T]) Publish(t EventType, payload T) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	select {
	case <-b.done:
		return
	default:
	}

	ev := Event[T]{Type: t, Payload: payload}
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// SubscriberCount returns the number of live subscriptions.
func (b *Broker[T]) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Shutdown closes every subscriber channel. Later publishes are dropped.
func (b *Broker[T]) Shutdown() {
	b.closeOnce.Do(func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		close(b.done)
		for ch := range b.subs {
			delete(b.subs, ch)
			close(ch)
		}
	})
}
