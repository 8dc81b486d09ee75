package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dndj/dndj/internal/pubsub"
)

func TestKind_Lifecycle(t *testing.T) {
	require.Equal(t, pubsub.CreatedEvent, MusicStarted.Lifecycle())
	require.Equal(t, pubsub.DeletedEvent, SoundFinished.Lifecycle())
	require.Equal(t, pubsub.DeletedEvent, MusicStopped.Lifecycle())
	require.Equal(t, pubsub.UpdatedEvent, SoundRepeatDelayChanged.Lifecycle())
}

func TestPublish(t *testing.T) {
	bus := NewBus()
	t.Cleanup(bus.Shutdown)
	ch := bus.Subscribe(context.Background())

	Publish(bus, New(SoundStarted).WithSound(&SoundInfo{SoundName: "Rain"}, 0.5))

	select {
	case ev := <-ch:
		require.Equal(t, pubsub.CreatedEvent, ev.Type)
		require.Equal(t, "Rain", ev.Payload.Sound.SoundName)
		require.Equal(t, 0.5, ev.Payload.MasterVolume)
		require.False(t, ev.Payload.Timestamp.IsZero())
	case <-time.After(time.Second):
		t.Fatal("no event")
	}

	// A nil bus is ignored.
	Publish(nil, New(MusicStopped))
}
