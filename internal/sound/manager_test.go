package sound

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dndj/dndj/internal/audio/audiotest"
	"github.com/dndj/dndj/internal/events"
	"github.com/dndj/dndj/internal/library"
)

const waitTimeout = 2 * time.Second

type harness struct {
	m       *Manager
	backend *audiotest.Backend
	events  <-chan events.Event
}

func newHarness(t *testing.T, sounds ...*library.Sound) *harness {
	t.Helper()
	dir := t.TempDir()
	for _, s := range sounds {
		for _, f := range s.Files {
			require.NoError(t, os.WriteFile(filepath.Join(dir, f.File), []byte("RIFF"), 0o600))
		}
	}
	lib := &library.SoundLibrary{
		Volume:    0.5,
		Directory: dir,
		Groups:    []*library.SoundGroup{{Name: "Ambience", Sounds: sounds}},
	}

	bus := events.NewBus()
	t.Cleanup(bus.Shutdown)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	sub := bus.Subscribe(ctx)
	out := make(chan events.Event, 256)
	go func() {
		for e := range sub {
			out <- e.Payload
		}
	}()

	backend := audiotest.NewBackend()
	m := NewManager(lib, backend, bus)
	t.Cleanup(m.Close)
	return &harness{m: m, backend: backend, events: out}
}

func (h *harness) waitFor(t *testing.T, kind events.Kind) events.Event {
	t.Helper()
	deadline := time.After(waitTimeout)
	for {
		select {
		case e := <-h.events:
			if e.Kind == kind {
				return e
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", kind)
			return events.Event{}
		}
	}
}

func (h *harness) nextPlayer(t *testing.T) *audiotest.Player {
	t.Helper()
	p, ok := h.backend.Next(waitTimeout)
	require.True(t, ok, "no player created")
	return p
}

func sound(name string, volume float64, repeat int, files ...string) *library.Sound {
	sf := make([]library.SoundFile, len(files))
	for i, f := range files {
		sf[i] = library.SoundFile{File: f}
	}
	return library.NewSound(name, "", library.SoundSettings{Volume: volume, RepeatCount: repeat}, sf...)
}

func TestPlaySound_CombinesVolumes(t *testing.T) {
	h := newHarness(t, sound("Door", 0.5, 1, "door.wav"))

	require.NoError(t, h.m.PlaySound(0, 0))
	p := h.nextPlayer(t)
	assert.Equal(t, 0.25, p.Volume())

	t.Run("per-sound volume reaches the live player", func(t *testing.T) {
		require.NoError(t, h.m.SetSoundVolume(0, 0, 1))
		assert.Equal(t, 0.5, p.Volume())
		ev := h.waitFor(t, events.SoundVolumeChanged)
		assert.Equal(t, 1.0, ev.Sound.Volume)
	})

	t.Run("master volume reaches the live player", func(t *testing.T) {
		require.NoError(t, h.m.SetMasterVolume(0.2))
		assert.InDelta(t, 0.2, p.Volume(), 1e-9)
		ev := h.waitFor(t, events.SoundMasterVolumeChanged)
		assert.Equal(t, 0.2, ev.MasterVolume)
		assert.Nil(t, ev.Sound)
	})

	t.Run("out of range is rejected", func(t *testing.T) {
		var cfgErr *library.ConfigError
		assert.ErrorAs(t, h.m.SetMasterVolume(1.5), &cfgErr)
		assert.ErrorAs(t, h.m.SetSoundVolume(0, 0, -0.1), &cfgErr)
		assert.Equal(t, 0.2, h.m.MasterVolume())
	})
}

func TestPlaySound_RepeatCount(t *testing.T) {
	h := newHarness(t, sound("Knock", 1, 3, "knock.wav"))

	require.NoError(t, h.m.PlaySound(0, 0))
	started := h.waitFor(t, events.SoundStarted)
	assert.Equal(t, "Knock", started.Sound.SoundName)
	assert.Equal(t, 3, started.Sound.RepeatCount)

	for range 3 {
		h.nextPlayer(t).Finish()
	}
	finished := h.waitFor(t, events.SoundFinished)
	assert.Equal(t, "Ambience", finished.Sound.GroupName)
	assert.Len(t, h.backend.Players(), 3)
	assert.Eventually(t, func() bool { return len(h.m.CurrentlyPlaying()) == 0 }, waitTimeout, time.Millisecond)
}

func TestPlaySound_RepeatCountChangeAppliesToRunningTask(t *testing.T) {
	h := newHarness(t, sound("Rain", 1, 0, "rain.ogg"))

	require.NoError(t, h.m.PlaySound(0, 0))
	h.nextPlayer(t).Finish()
	second := h.nextPlayer(t)
	require.NoError(t, h.m.SetSoundRepeatCount(0, 0, 2))
	ev := h.waitFor(t, events.SoundRepeatCountChanged)
	assert.Equal(t, 2, ev.Sound.RepeatCount)
	second.Finish()

	h.waitFor(t, events.SoundFinished)
	assert.Len(t, h.backend.Players(), 2)
}

func TestCancelSound(t *testing.T) {
	h := newHarness(t, sound("Rain", 1, 0, "rain.ogg"))

	require.NoError(t, h.m.PlaySound(0, 0))
	p := h.nextPlayer(t)
	require.Len(t, h.m.CurrentlyPlaying(), 1)

	require.NoError(t, h.m.CancelSound(0, 0))
	assert.Empty(t, h.m.CurrentlyPlaying())
	assert.True(t, p.Stopped())
	ev := h.waitFor(t, events.SoundStopped)
	assert.Equal(t, "Rain", ev.Sound.SoundName)

	// Silent slot.
	require.NoError(t, h.m.CancelSound(0, 0))
	assert.ErrorIs(t, h.m.CancelSound(0, 4), library.ErrIndexOutOfRange)
}

func TestCancelSound_DuringDelay(t *testing.T) {
	s := sound("Drip", 1, 0, "drip.wav")
	_, err := s.State().SetRepeatDelay("60000")
	require.NoError(t, err)
	h := newHarness(t, s)

	require.NoError(t, h.m.PlaySound(0, 0))
	h.nextPlayer(t).Finish()
	require.Eventually(t, func() bool {
		h.m.mu.Lock()
		defer h.m.mu.Unlock()
		return len(h.m.players) == 0
	}, waitTimeout, time.Millisecond)

	start := time.Now()
	require.NoError(t, h.m.CancelSound(0, 0))
	assert.Less(t, time.Since(start), time.Second)
	h.waitFor(t, events.SoundStopped)
}

func TestPlaySound_ReplacesRunningTask(t *testing.T) {
	h := newHarness(t, sound("Rain", 1, 0, "rain.ogg"))

	require.NoError(t, h.m.PlaySound(0, 0))
	first := h.nextPlayer(t)
	require.NoError(t, h.m.PlaySound(0, 0))
	assert.True(t, first.Stopped())

	second := h.nextPlayer(t)
	assert.False(t, second.Stopped())
	assert.Len(t, h.m.CurrentlyPlaying(), 1)
}

func TestPlaySound_IndependentSlots(t *testing.T) {
	h := newHarness(t, sound("Rain", 1, 0, "rain.ogg"), sound("Wind", 1, 0, "wind.ogg"))

	require.NoError(t, h.m.PlaySound(0, 1))
	require.NoError(t, h.m.PlaySound(0, 0))
	playing := h.m.CurrentlyPlaying()
	require.Len(t, playing, 2)
	assert.Equal(t, "Rain", playing[0].SoundName)
	assert.Equal(t, "Wind", playing[1].SoundName)

	require.NoError(t, h.m.CancelSound(0, 0))
	playing = h.m.CurrentlyPlaying()
	require.Len(t, playing, 1)
	assert.Equal(t, 1, playing[0].SoundIndex)
}

func TestPlaySound_MissingFile(t *testing.T) {
	h := newHarness(t, sound("Door", 1, 1, "door.wav"))
	_, s, err := h.m.Library().Sound(0, 0)
	require.NoError(t, err)
	s.Files[0].File = "gone.wav"

	require.NoError(t, h.m.PlaySound(0, 0))
	errEv := h.waitFor(t, events.Error)
	assert.Contains(t, errEv.Message, "gone.wav")
	h.waitFor(t, events.SoundStopped)
	assert.Empty(t, h.backend.Players())
}

func TestPlaySound_StartError(t *testing.T) {
	h := newHarness(t, sound("Door", 1, 1, "door.wav"))
	h.backend.StartErr = errors.New("no device")

	require.NoError(t, h.m.PlaySound(0, 0))
	errEv := h.waitFor(t, events.Error)
	assert.Contains(t, errEv.Message, "no device")
	h.waitFor(t, events.SoundStopped)
}

func TestPlaySound_EndAtCutsFile(t *testing.T) {
	s := library.NewSound("Bell", "", library.SoundSettings{Volume: 1, RepeatCount: 1},
		library.SoundFile{File: "bell.wav", EndAt: 10 * time.Millisecond})
	h := newHarness(t, s)

	require.NoError(t, h.m.PlaySound(0, 0))
	p := h.nextPlayer(t)
	h.waitFor(t, events.SoundFinished)
	assert.True(t, p.Stopped())
}

func TestSetSoundRepeatDelay(t *testing.T) {
	h := newHarness(t, sound("Rain", 1, 1, "rain.ogg"))

	require.NoError(t, h.m.SetSoundRepeatDelay(0, 0, "24-42"))
	ev := h.waitFor(t, events.SoundRepeatDelayChanged)
	assert.Equal(t, "24-42", ev.Sound.RepeatDelay)

	for _, bad := range []string{"42-24", "?", ""} {
		var cfgErr *library.ConfigError
		assert.ErrorAs(t, h.m.SetSoundRepeatDelay(0, 0, bad), &cfgErr, bad)
	}
	_, s, err := h.m.Library().Sound(0, 0)
	require.NoError(t, err)
	assert.Equal(t, "24-42", s.State().RepeatDelay().String())
}

func TestPlaySound_IndexOutOfRange(t *testing.T) {
	h := newHarness(t, sound("Rain", 1, 1, "rain.ogg"))

	assert.ErrorIs(t, h.m.PlaySound(1, 0), library.ErrIndexOutOfRange)
	assert.ErrorIs(t, h.m.SetSoundVolume(0, 9, 1), library.ErrIndexOutOfRange)
	assert.ErrorIs(t, h.m.SetSoundRepeatCount(0, 9, 1), library.ErrIndexOutOfRange)
	assert.ErrorIs(t, h.m.SetSoundRepeatDelay(0, 9, "1"), library.ErrIndexOutOfRange)
}
