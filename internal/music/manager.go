// Package music plays one track list at a time: sequencing, looping,
// chaining to a successor, and fading volume in and out.
package music

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dndj/dndj/internal/audio"
	"github.com/dndj/dndj/internal/events"
	"github.com/dndj/dndj/internal/library"
	"github.com/dndj/dndj/internal/log"
	"github.com/dndj/dndj/internal/playback"
	"github.com/dndj/dndj/internal/stream"
	"github.com/dndj/dndj/internal/tracing"
)

// ErrNoResolver is returned for remote tracks when no stream resolver is configured.
var ErrNoResolver = errors.New("no stream resolver configured")

var errEndedBeforeStart = errors.New("ended before playback started")

// Options holds fade timing.
type Options struct {
	Steps        int
	FadeIn       time.Duration
	FadeOut      time.Duration
	VolumeChange time.Duration
}

// DefaultOptions returns 20 step fades of two seconds and one second volume changes.
func DefaultOptions() Options {
	return Options{Steps: 20, FadeIn: 2 * time.Second, FadeOut: 2 * time.Second, VolumeChange: time.Second}
}

type playing struct {
	groupIndex     int
	trackListIndex int
	gen            uint64
	task           *playback.Task
}

// Manager is the music orchestrator. Safe for concurrent use.
type Manager struct {
	lib      *library.MusicLibrary
	backend  audio.Backend
	resolver stream.Resolver
	bus      *events.Bus
	opts     Options

	// playMu serialises starting and cancelling track lists.
	playMu sync.Mutex

	mu      sync.Mutex
	volume  int
	current *playing
	player  audio.Player
	gen     uint64
}

// NewManager creates a music orchestrator. resolver may be nil when the
// library has no remote tracks.
func NewManager(lib *library.MusicLibrary, backend audio.Backend, resolver stream.Resolver, bus *events.Bus, opts Options) *Manager {
	return &Manager{
		lib:      lib,
		backend:  backend,
		resolver: resolver,
		bus:      bus,
		opts:     opts,
		volume:   lib.Volume,
	}
}

// Library returns the music library.
func (m *Manager) Library() *library.MusicLibrary { return m.lib }

// Volume returns the configured music volume, 0..100.
func (m *Manager) Volume() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.volume
}

// CurrentlyPlaying describes the active track list, if any.
func (m *Manager) CurrentlyPlaying() events.MusicInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.infoLocked(m.current)
}

func (m *Manager) infoLocked(p *playing) events.MusicInfo {
	info := events.MusicInfo{Volume: m.volume}
	if p == nil {
		return info
	}
	g, tl, err := m.lib.TrackList(p.groupIndex, p.trackListIndex)
	if err != nil {
		return info
	}
	info.Playing = true
	info.GroupIndex = p.groupIndex
	info.GroupName = g.Name
	info.TrackListIndex = p.trackListIndex
	info.TrackListName = tl.Name
	return info
}

// PlayTrackList stops whatever is playing, waiting for it to clear, and
// starts the given track list. It returns once the new task is scheduled.
func (m *Manager) PlayTrackList(groupIndex, trackListIndex int) error {
	if _, _, err := m.lib.TrackList(groupIndex, trackListIndex); err != nil {
		return err
	}
	m.playMu.Lock()
	defer m.playMu.Unlock()
	m.cancelLocked()
	m.startLocked(groupIndex, trackListIndex)
	return nil
}

// startLocked spawns the track list task. Callers hold playMu.
func (m *Manager) startLocked(groupIndex, trackListIndex int) {
	g, tl, _ := m.lib.TrackList(groupIndex, trackListIndex)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.gen++
	p := &playing{groupIndex: groupIndex, trackListIndex: trackListIndex, gen: m.gen}
	p.task = playback.Go(context.Background(), "music.track_list", func(ctx context.Context) error {
		return m.runTrackList(ctx, p, g, tl)
	})
	m.current = p
	log.Debug(log.CatMusic, "Scheduled track list", "group", groupIndex, "track_list", trackListIndex)
}

// Cancel stops the active track list and blocks until it has cleared.
// It reports whether a running track list was cancelled.
func (m *Manager) Cancel() bool {
	m.playMu.Lock()
	defer m.playMu.Unlock()
	return m.cancelLocked()
}

func (m *Manager) cancelLocked() bool {
	m.mu.Lock()
	// Invalidate any pending chain from a list that already finished.
	m.gen++
	p := m.current
	m.mu.Unlock()
	if p == nil {
		return false
	}
	p.task.Cancel()
	<-p.task.Done()
	return p.task.Cancelled()
}

// Stop cancels playback and guarantees a music.stopped notification, even
// when nothing was playing.
func (m *Manager) Stop() {
	if !m.Cancel() {
		events.Publish(m.bus, events.New(events.MusicStopped).WithMusic(m.CurrentlyPlaying()))
	}
}

func (m *Manager) runTrackList(ctx context.Context, p *playing, g *library.MusicGroup, tl *library.TrackList) (err error) {
	ctx, span := tracing.Tracer().Start(ctx, "music.track_list", trace.WithAttributes(
		attribute.String("music.group", g.Name),
		attribute.String("music.track_list", tl.Name),
	))
	defer span.End()

	m.mu.Lock()
	info := m.infoLocked(p)
	m.mu.Unlock()

	defer m.reset(p)

	log.Info(log.CatMusic, "Loading track list", "name", tl.Name)
	events.Publish(m.bus, events.New(events.MusicStarted).WithMusic(info))

	err = m.loopTracks(ctx, g, tl)
	switch {
	case ctx.Err() != nil:
		log.Info(log.CatMusic, "Cancelled track list", "name", tl.Name)
		events.Publish(m.bus, events.New(events.MusicStopped).WithMusic(info))
		return ctx.Err()
	case err != nil:
		tracing.Fail(span, err)
		log.ErrorErr(log.CatMusic, "Track list aborted", err, "name", tl.Name)
		events.Publish(m.bus, events.NewError(err.Error()))
		events.Publish(m.bus, events.New(events.MusicStopped).WithMusic(info))
		return err
	}

	log.Info(log.CatMusic, "Finished track list", "name", tl.Name)
	events.Publish(m.bus, events.New(events.MusicFinished).WithMusic(info))
	if tl.Next != "" {
		log.SafeGo("music.chain", func() { m.chain(p.gen, tl.Name, tl.Next) })
	}
	return nil
}

// reset stops the player and clears the current slot if it still belongs to p.
func (m *Manager) reset(p *playing) {
	m.mu.Lock()
	var player audio.Player
	if m.current == p {
		player = m.player
		m.current = nil
		m.player = nil
	}
	m.mu.Unlock()
	if player != nil {
		player.Stop()
	}
}

// chain starts the successor of a finished track list unless another
// command has started or stopped music since.
func (m *Manager) chain(gen uint64, from, next string) {
	gi, ti, ok := m.lib.FindTrackList(next)
	if !ok {
		log.Error(log.CatMusic, "Could not find next track list", "from", from, "next", next)
		return
	}

	m.playMu.Lock()
	defer m.playMu.Unlock()
	m.mu.Lock()
	stale := m.gen != gen
	m.mu.Unlock()
	if stale {
		log.Debug(log.CatMusic, "Discarding chain after newer command", "from", from, "next", next)
		return
	}
	log.Info(log.CatMusic, "Chaining track list", "from", from, "next", next)
	m.cancelLocked()
	m.startLocked(gi, ti)
}

func (m *Manager) loopTracks(ctx context.Context, g *library.MusicGroup, tl *library.TrackList) error {
	for {
		for _, t := range tl.Tracks() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := m.playTrack(ctx, g, tl, t); err != nil {
				return err
			}
		}
		if !tl.Loop {
			return nil
		}
	}
}

func (m *Manager) resolve(ctx context.Context, g *library.MusicGroup, tl *library.TrackList, t library.Track) (string, error) {
	if t.IsRemote() {
		if m.resolver == nil {
			return "", &stream.UnresolvableRemoteLinkError{Link: t.File, Err: ErrNoResolver}
		}
		return m.resolver.Resolve(ctx, t.File)
	}
	return m.lib.LocalTrackPath(g, tl, t)
}

// forget drops a remote track's resolved URL so the next attempt resolves
// it again instead of reusing a stream that may have expired.
func (m *Manager) forget(t library.Track) {
	if t.IsRemote() && m.resolver != nil {
		m.resolver.Forget(t.File)
	}
}

func (m *Manager) playTrack(ctx context.Context, g *library.MusicGroup, tl *library.TrackList, t library.Track) error {
	ctx, span := tracing.Tracer().Start(ctx, "music.track", trace.WithAttributes(attribute.String("music.file", t.File)))
	defer span.End()

	source, err := m.resolve(ctx, g, tl, t)
	if err != nil {
		tracing.Fail(span, err)
		return fmt.Errorf("resolving %q: %w", t.File, err)
	}

	p := m.backend.NewPlayer()
	p.SetVolume(0)
	m.mu.Lock()
	m.player = p
	m.mu.Unlock()
	defer func() {
		p.Stop()
		m.mu.Lock()
		if m.player == p {
			m.player = nil
		}
		m.mu.Unlock()
	}()

	if err := p.Play(source); err != nil {
		m.forget(t)
		tracing.Fail(span, err)
		return err
	}

	select {
	case <-p.Started():
	case <-p.Done():
		m.forget(t)
		err := &audio.PlayerStartError{Source: source, Err: errEndedBeforeStart}
		tracing.Fail(span, err)
		return err
	case <-ctx.Done():
		return ctx.Err()
	}

	if t.StartAt > 0 {
		if err := p.Seek(t.StartAt); err != nil {
			log.Warn(log.CatMusic, "Seek failed", "file", t.File, "start_at", t.StartAt, "error", err)
		}
	}

	log.Info(log.CatMusic, "Now playing", "file", t.File)
	events.Publish(m.bus, events.New(events.MusicTrackStarted).WithMusic(m.CurrentlyPlaying()).WithTrack(t.File))

	if err := m.ramp(ctx, p, m.Volume(), m.opts.Steps, m.opts.FadeIn); err != nil {
		m.fadeOut(p)
		return err
	}

	var end <-chan time.Time
	if t.EndAt > 0 {
		timer := time.NewTimer(max(t.EndAt-p.Position(), 0))
		defer timer.Stop()
		end = timer.C
	}

	select {
	case <-p.Done():
		log.Info(log.CatMusic, "Finished playing", "file", t.File)
	case <-end:
		log.Info(log.CatMusic, "Reached end_at", "file", t.File, "end_at", t.EndAt)
	case <-ctx.Done():
		log.Debug(log.CatMusic, "Cancelling track", "file", t.File)
		m.fadeOut(p)
		return ctx.Err()
	}
	return nil
}

// fadeOut mutes p over the fade-out time. It ignores cancellation.
func (m *Manager) fadeOut(p audio.Player) {
	_ = m.ramp(context.Background(), p, 0, m.opts.Steps, m.opts.FadeOut)
}

// ramp moves p linearly to volume (0..100) in steps updates over d.
func (m *Manager) ramp(ctx context.Context, p audio.Player, volume, steps int, d time.Duration) error {
	target := float64(volume) / 100
	if steps <= 0 || d <= 0 {
		p.SetVolume(target)
		return nil
	}
	start := p.Volume()
	step := (start - target) / float64(steps)
	interval := d / time.Duration(steps)
	for i := 1; i <= steps; i++ {
		if i == steps {
			p.SetVolume(target)
		} else {
			p.SetVolume(start - float64(i)*step)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
	return nil
}

// SetVolume changes the active player's volume to volume (0..100), ramping
// over steps updates across d when smooth. The configured volume is only
// updated when setGlobal is true.
func (m *Manager) SetVolume(ctx context.Context, volume int, setGlobal, smooth bool, steps int, d time.Duration) error {
	if volume < 0 || volume > 100 {
		return &library.ConfigError{Field: "volume", Reason: fmt.Sprintf("%d not in [0, 100]", volume)}
	}
	m.mu.Lock()
	p := m.player
	m.mu.Unlock()

	if p != nil {
		if !smooth {
			steps = 0
		}
		if err := m.ramp(ctx, p, volume, steps, d); err != nil {
			return err
		}
	}
	if setGlobal {
		m.mu.Lock()
		m.volume = volume
		m.mu.Unlock()
		log.Debug(log.CatMusic, "Changed music volume", "volume", volume)
	}
	return nil
}

// ChangeVolume is the user-facing volume command: a smooth global change
// followed by a music.volume_changed notification.
func (m *Manager) ChangeVolume(ctx context.Context, volume int) error {
	if err := m.SetVolume(ctx, volume, true, true, m.opts.Steps, m.opts.VolumeChange); err != nil {
		return err
	}
	events.Publish(m.bus, events.New(events.MusicVolumeChanged).WithMusic(m.CurrentlyPlaying()))
	return nil
}

// Close stops playback without publishing anything beyond the usual
// cancellation notification.
func (m *Manager) Close() {
	m.Cancel()
}
