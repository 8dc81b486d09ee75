// Package sfx plays local .wav and .ogg sound effects through the system
// speaker using beep. Players share one speaker and are mixed together.
package sfx

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"

	"github.com/dndj/dndj/internal/audio"
	"github.com/dndj/dndj/internal/log"
)

const resampleQuality = 4

// Backend owns the speaker.
type Backend struct {
	sampleRate beep.SampleRate

	initOnce sync.Once
	initErr  error
}

// New returns a backend mixing at sampleRate Hz. The speaker opens lazily
// on first Play.
func New(sampleRate int) *Backend {
	if sampleRate <= 0 {
		sampleRate = 44100
	}
	return &Backend{sampleRate: beep.SampleRate(sampleRate)}
}

func (b *Backend) initSpeaker() error {
	b.initOnce.Do(func() {
		b.initErr = speaker.Init(b.sampleRate, b.sampleRate.N(time.Second/10))
		if b.initErr == nil {
			log.Debug(log.CatAudio, "Speaker initialized", "sample_rate", int(b.sampleRate))
		}
	})
	return b.initErr
}

func (b *Backend) NewPlayer() audio.Player {
	return &Player{
		backend: b,
		volume:  1,
		started: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// open decodes path according to its extension.
func open(path string) (beep.StreamSeekCloser, beep.Format, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path resolved from the sound library
	if err != nil {
		return nil, beep.Format{}, err
	}
	var (
		s      beep.StreamSeekCloser
		format beep.Format
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".wav":
		s, format, err = wav.Decode(f)
	case ".ogg":
		s, format, err = vorbis.Decode(f)
	default:
		err = fmt.Errorf("unsupported sound format %q", ext)
	}
	if err != nil {
		_ = f.Close()
		return nil, beep.Format{}, err
	}
	return s, format, nil
}

// gain converts a linear volume in [0, 1] to effects.Volume settings.
func gain(v float64) (level float64, silent bool) {
	v = audio.ClampVolume(v)
	if v == 0 {
		return 0, true
	}
	return math.Log2(v), false
}

var errStopped = errors.New("sfx: stopped")

// Player plays one sound file once.
type Player struct {
	backend *Backend

	// Guarded by speaker.Lock.
	stream  beep.StreamSeekCloser
	format  beep.Format
	ctrl    *beep.Ctrl
	vol     *effects.Volume
	closed  bool
	stopped bool

	mu     sync.Mutex
	volume float64

	started     chan struct{}
	done        chan struct{}
	startedOnce sync.Once
	doneOnce    sync.Once
}

func (p *Player) Play(source string) error {
	if err := p.backend.initSpeaker(); err != nil {
		p.finish()
		return &audio.PlayerStartError{Source: source, Err: err}
	}
	s, err := p.load(source)
	if err != nil {
		p.finish()
		return &audio.PlayerStartError{Source: source, Err: err}
	}
	speaker.Play(beep.Seq(s, beep.Callback(p.finish)))
	p.startedOnce.Do(func() { close(p.started) })
	return nil
}

// load decodes source and builds the control and volume chain at the
// player's current volume.
func (p *Player) load(source string) (beep.Streamer, error) {
	s, format, err := open(source)
	if err != nil {
		return nil, err
	}
	var streamer beep.Streamer = s
	if format.SampleRate != p.backend.sampleRate {
		streamer = beep.Resample(resampleQuality, format.SampleRate, p.backend.sampleRate, s)
	}

	speaker.Lock()
	defer speaker.Unlock()
	if p.stopped {
		_ = s.Close()
		return nil, errStopped
	}
	level, silent := gain(p.Volume())
	p.stream = s
	p.format = format
	p.ctrl = &beep.Ctrl{Streamer: streamer}
	p.vol = &effects.Volume{Streamer: p.ctrl, Base: 2, Volume: level, Silent: silent}
	return p.vol, nil
}

func (p *Player) finish() {
	p.doneOnce.Do(func() {
		close(p.done)
	})
}

// release closes the decoder. Callers hold the speaker lock.
func (p *Player) release() {
	if p.closed || p.stream == nil {
		return
	}
	p.closed = true
	if err := p.stream.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		log.Debug(log.CatAudio, "Closing sound stream failed", "error", err)
	}
}

func (p *Player) Stop() {
	speaker.Lock()
	p.stopped = true
	if p.ctrl != nil {
		p.ctrl.Streamer = nil
		p.release()
	}
	speaker.Unlock()
	p.finish()
}

func (p *Player) Started() <-chan struct{} { return p.started }
func (p *Player) Done() <-chan struct{}    { return p.done }

func (p *Player) Volume() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

func (p *Player) SetVolume(v float64) {
	v = audio.ClampVolume(v)
	p.mu.Lock()
	p.volume = v
	p.mu.Unlock()

	speaker.Lock()
	defer speaker.Unlock()
	if p.vol == nil {
		return
	}
	level, silent := gain(p.Volume())
	p.vol.Volume = level
	p.vol.Silent = silent
}

func (p *Player) Position() time.Duration {
	speaker.Lock()
	defer speaker.Unlock()
	if p.stream == nil || p.closed {
		return 0
	}
	return p.format.SampleRate.D(p.stream.Position())
}

func (p *Player) Seek(d time.Duration) error {
	speaker.Lock()
	defer speaker.Unlock()
	if p.stream == nil {
		return errors.New("sfx: not playing")
	}
	if p.closed {
		return errStopped
	}
	return p.stream.Seek(p.format.SampleRate.N(d))
}

func (p *Player) Length() time.Duration {
	speaker.Lock()
	defer speaker.Unlock()
	if p.stream == nil || p.closed {
		return 0
	}
	return p.format.SampleRate.D(p.stream.Len())
}
