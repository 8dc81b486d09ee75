package pubsub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func recv[T any](t *testing.T, ch <-chan Event[T]) Event[T] {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "channel closed")
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event[T]{}
}

func TestBroker_FanOut(t *testing.T) {
	b := NewBroker[string]()
	t.Cleanup(b.Shutdown)

	ctx := context.Background()
	a := b.Subscribe(ctx)
	c := b.Subscribe(ctx)

	b.Publish(UpdatedEvent, "hello")

	require.Equal(t, Event[string]{Type: UpdatedEvent, Payload: "hello"}, recv(t, a))
	require.Equal(t, "hello", recv(t, c).Payload)
}

func TestBroker_UnsubscribeOnContextDone(t *testing.T) {
	b := NewBroker[int]()
	t.Cleanup(b.Shutdown)

	ctx, cancel := context.WithCancel(context.Background())
	ch := b.Subscribe(ctx)
	require.Equal(t, 1, b.SubscriberCount())

	cancel()
	require.Eventually(t, func() bool { return b.SubscriberCount() == 0 }, time.Second, time.Millisecond)
	_, ok := <-ch
	require.False(t, ok)
}

func TestBroker_PublishNeverBlocks(t *testing.T) {
	b := NewBrokerWithBuffer[int](1)
	t.Cleanup(b.Shutdown)
	ch := b.Subscribe(context.Background())

	done := make(chan struct{})
	go func() {
		for i := range 10 {
			b.Publish(CreatedEvent, i)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
	require.Equal(t, 0, recv(t, ch).Payload)
}

func TestBroker_Shutdown(t *testing.T) {
	b := NewBroker[int]()
	ch := b.Subscribe(context.Background())
	b.Shutdown()
	b.Shutdown()

	_, ok := <-ch
	require.False(t, ok)

	late := b.Subscribe(context.Background())
	_, ok = <-late
	require.False(t, ok)
	b.Publish(UpdatedEvent, 1)
}
