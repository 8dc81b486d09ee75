package audio_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dndj/dndj/internal/audio"
	"github.com/dndj/dndj/internal/audio/audiotest"
)

func TestClampVolume(t *testing.T) {
	require.Equal(t, 0.0, audio.ClampVolume(-1))
	require.Equal(t, 1.0, audio.ClampVolume(3))
	require.Equal(t, 0.4, audio.ClampVolume(0.4))
}

func TestPlayerStartError_Unwrap(t *testing.T) {
	cause := errors.New("no device")
	err := error(&audio.PlayerStartError{Source: "a.wav", Err: cause})
	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "a.wav")
}

func TestFakeBackend_Lifecycle(t *testing.T) {
	b := audiotest.NewBackend()
	b.Length = time.Minute
	var backend audio.Backend = b

	p := backend.NewPlayer()
	require.NoError(t, p.Play("forest.mp3"))

	select {
	case <-p.Started():
	default:
		t.Fatal("auto start player did not start")
	}
	require.NoError(t, p.Seek(10*time.Second))
	require.Equal(t, 10*time.Second, p.Position())
	require.Error(t, p.Seek(2*time.Minute))

	p.SetVolume(0.5)
	p.Stop()
	p.Stop()
	<-p.Done()

	fake := b.Players()[0]
	require.True(t, fake.Stopped())
	require.Equal(t, "forest.mp3", fake.Source())
	require.Equal(t, []float64{0.5}, fake.VolumeHistory())
}

func TestFakeBackend_StartError(t *testing.T) {
	b := audiotest.NewBackend()
	b.StartErr = errors.New("broken")

	p := b.NewPlayer()
	err := p.Play("x")
	var startErr *audio.PlayerStartError
	require.ErrorAs(t, err, &startErr)
	<-p.Done()
}

func TestBackendFunc(t *testing.T) {
	fake := audiotest.NewBackend()
	var b audio.Backend = audio.BackendFunc(fake.NewPlayer)
	require.NotNil(t, b.NewPlayer())
	require.Len(t, fake.Players(), 1)
}
