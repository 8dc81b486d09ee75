package sfx

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSilentWAV(t *testing.T, d time.Duration) string {
	t.Helper()
	format := beep.Format{SampleRate: 22050, NumChannels: 2, Precision: 2}
	path := filepath.Join(t.TempDir(), "silence.wav")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, wav.Encode(f, beep.Silence(format.SampleRate.N(d)), format))
	require.NoError(t, f.Close())
	return path
}

func TestOpen_WAV(t *testing.T) {
	path := writeSilentWAV(t, time.Second)

	s, format, err := open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.Equal(t, beep.SampleRate(22050), format.SampleRate)
	require.Equal(t, time.Second, format.SampleRate.D(s.Len()))
}

func TestOpen_Unsupported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "track.mp3")
	require.NoError(t, os.WriteFile(path, []byte("ID3"), 0600))

	_, _, err := open(path)
	require.ErrorContains(t, err, "unsupported")
}

func TestOpen_Missing(t *testing.T) {
	_, _, err := open(filepath.Join(t.TempDir(), "nope.wav"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestGain(t *testing.T) {
	level, silent := gain(0)
	require.True(t, silent)
	require.Zero(t, level)

	level, silent = gain(1)
	require.False(t, silent)
	require.Zero(t, level)

	level, silent = gain(0.25)
	require.False(t, silent)
	require.InDelta(t, -2, level, 1e-9)

	level, _ = gain(5)
	require.Zero(t, level)
}

func TestPlayer_VolumeBeforePlay(t *testing.T) {
	p := New(0).NewPlayer()
	require.Equal(t, 1.0, p.Volume())
	p.SetVolume(0.3)
	require.Equal(t, 0.3, p.Volume())
	require.Zero(t, p.Length())
	require.Error(t, p.Seek(time.Second))

	p.Stop()
	<-p.Done()
}

func TestPlayer_LoadAppliesVolumeSetBeforehand(t *testing.T) {
	p := New(22050).NewPlayer().(*Player)
	p.SetVolume(0.25)

	_, err := p.load(writeSilentWAV(t, time.Second))
	require.NoError(t, err)
	t.Cleanup(p.Stop)

	require.InDelta(t, -2, p.vol.Volume, 1e-9)
	require.Equal(t, time.Second, p.Length())
	require.Zero(t, p.Position())

	p.SetVolume(0.5)
	require.InDelta(t, -1, p.vol.Volume, 1e-9)
	p.SetVolume(0)
	require.True(t, p.vol.Silent)
}

func TestPlayer_LoadAfterStopFails(t *testing.T) {
	p := New(22050).NewPlayer().(*Player)
	p.Stop()

	_, err := p.load(writeSilentWAV(t, time.Second))
	require.ErrorIs(t, err, errStopped)
	require.Zero(t, p.Length())
}

func TestPlayer_ConcurrentVolumeDuringLoad(t *testing.T) {
	p := New(22050).NewPlayer().(*Player)
	path := writeSilentWAV(t, time.Second)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := range 100 {
			p.SetVolume(float64(i%10) / 10)
			_ = p.Position()
			_ = p.Length()
		}
	}()
	go func() {
		defer wg.Done()
		_, err := p.load(path)
		assert.NoError(t, err)
	}()
	wg.Wait()
	t.Cleanup(p.Stop)

	p.SetVolume(0.5)
	require.InDelta(t, -1, p.vol.Volume, 1e-9)
}
