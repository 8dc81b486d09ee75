// Package sound plays sound effects: one repeating task per sound slot, with
// a master volume that scales every sound.
package sound

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dndj/dndj/internal/audio"
	"github.com/dndj/dndj/internal/events"
	"github.com/dndj/dndj/internal/library"
	"github.com/dndj/dndj/internal/log"
	"github.com/dndj/dndj/internal/playback"
	"github.com/dndj/dndj/internal/tracing"
)

// Slot identifies a sound by group and sound index.
type Slot struct {
	Group int
	Index int
}

func (s Slot) String() string { return fmt.Sprintf("%d/%d", s.Group, s.Index) }

// Manager is the sound orchestrator. Safe for concurrent use.
type Manager struct {
	lib     *library.SoundLibrary
	backend audio.Backend
	bus     *events.Bus
	tracker *playback.Tracker[Slot]

	// playMu serialises replacing a slot's task.
	playMu sync.Mutex

	mu      sync.Mutex
	master  float64
	players map[Slot]audio.Player
}

// NewManager creates a sound orchestrator using the library's master volume.
func NewManager(lib *library.SoundLibrary, backend audio.Backend, bus *events.Bus) *Manager {
	return &Manager{
		lib:     lib,
		backend: backend,
		bus:     bus,
		tracker: playback.NewTracker[Slot](),
		master:  lib.Volume,
		players: make(map[Slot]audio.Player),
	}
}

// Library returns the sound library.
func (m *Manager) Library() *library.SoundLibrary { return m.lib }

// MasterVolume returns the master volume in [0, 1].
func (m *Manager) MasterVolume() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.master
}

func (m *Manager) info(slot Slot, g *library.SoundGroup, s *library.Sound) *events.SoundInfo {
	st := s.State().Settings()
	return &events.SoundInfo{
		GroupIndex:  slot.Group,
		GroupName:   g.Name,
		SoundIndex:  slot.Index,
		SoundName:   s.Name,
		Volume:      st.Volume,
		RepeatCount: st.RepeatCount,
		RepeatDelay: st.RepeatDelay.String(),
	}
}

func (m *Manager) publish(kind events.Kind, info *events.SoundInfo) {
	events.Publish(m.bus, events.New(kind).WithSound(info, m.MasterVolume()))
}

// PlaySound (re)starts the sound at the given indices. A task already
// playing the slot is cancelled first and has fully cleared when the new
// one is registered.
func (m *Manager) PlaySound(groupIndex, soundIndex int) error {
	g, s, err := m.lib.Sound(groupIndex, soundIndex)
	if err != nil {
		return err
	}
	slot := Slot{Group: groupIndex, Index: soundIndex}

	m.playMu.Lock()
	defer m.playMu.Unlock()
	m.tracker.Cancel(slot)

	task := playback.Go(context.Background(), "sound.play", func(ctx context.Context) error {
		return m.run(ctx, slot, g, s)
	})
	if err := m.tracker.Register(slot, task); err != nil {
		task.Cancel()
		<-task.Done()
		return err
	}
	return nil
}

// CancelSound stops the sound at the given indices and waits for it to clear.
// Stopping a silent slot is a no-op.
func (m *Manager) CancelSound(groupIndex, soundIndex int) error {
	if _, _, err := m.lib.Sound(groupIndex, soundIndex); err != nil {
		return err
	}
	m.playMu.Lock()
	defer m.playMu.Unlock()
	m.tracker.Cancel(Slot{Group: groupIndex, Index: soundIndex})
	return nil
}

// CurrentlyPlaying lists the sounds with a live task, ordered by slot.
func (m *Manager) CurrentlyPlaying() []events.SoundInfo {
	active := m.tracker.Active()
	slices.SortFunc(active, func(a, b playback.Active[Slot]) int {
		return cmp.Or(cmp.Compare(a.Key.Group, b.Key.Group), cmp.Compare(a.Key.Index, b.Key.Index))
	})
	out := make([]events.SoundInfo, 0, len(active))
	for _, a := range active {
		g, s, err := m.lib.Sound(a.Key.Group, a.Key.Index)
		if err != nil {
			continue
		}
		out = append(out, *m.info(a.Key, g, s))
	}
	return out
}

func (m *Manager) run(ctx context.Context, slot Slot, g *library.SoundGroup, s *library.Sound) error {
	ctx, span := tracing.Tracer().Start(ctx, "sound.play", trace.WithAttributes(
		attribute.String("sound.group", g.Name),
		attribute.String("sound.name", s.Name),
	))
	defer span.End()

	log.Info(log.CatSound, "Playing sound", "name", s.Name)
	m.publish(events.SoundStarted, m.info(slot, g, s))

	err := m.repeat(ctx, slot, g, s)
	switch {
	case ctx.Err() != nil:
		log.Info(log.CatSound, "Stopped sound", "name", s.Name)
		m.publish(events.SoundStopped, m.info(slot, g, s))
		return ctx.Err()
	case err != nil:
		tracing.Fail(span, err)
		log.ErrorErr(log.CatSound, "Sound aborted", err, "name", s.Name)
		events.Publish(m.bus, events.NewError(err.Error()))
		m.publish(events.SoundStopped, m.info(slot, g, s))
		return err
	}
	log.Info(log.CatSound, "Finished sound", "name", s.Name)
	m.publish(events.SoundFinished, m.info(slot, g, s))
	return nil
}

// repeat plays the sound until its repeat count is reached. Count and
// delay are read again before every decision so changes apply to the
// running task.
func (m *Manager) repeat(ctx context.Context, slot Slot, g *library.SoundGroup, s *library.Sound) error {
	for played := 1; ; played++ {
		if err := m.playOnce(ctx, slot, g, s); err != nil {
			return err
		}
		if n := s.State().RepeatCount(); n != 0 && played >= n {
			return nil
		}
		delay := s.State().RepeatDelay().Sample()
		log.Debug(log.CatSound, "Waiting before repeat", "name", s.Name, "delay", delay)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (m *Manager) playOnce(ctx context.Context, slot Slot, g *library.SoundGroup, s *library.Sound) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f := s.RandomFile()
	path, err := m.lib.SoundFilePath(g, s, f)
	if err != nil {
		return fmt.Errorf("sound %q: %w", s.Name, err)
	}

	p := m.backend.NewPlayer()
	m.mu.Lock()
	m.players[slot] = p
	p.SetVolume(m.master * s.State().Volume())
	m.mu.Unlock()
	defer func() {
		p.Stop()
		m.mu.Lock()
		if m.players[slot] == p {
			delete(m.players, slot)
		}
		m.mu.Unlock()
	}()

	if err := p.Play(path); err != nil {
		return err
	}
	log.Debug(log.CatSound, "Playing file", "name", s.Name, "file", f.File)

	var end <-chan time.Time
	if f.EndAt > 0 {
		timer := time.NewTimer(f.EndAt)
		defer timer.Stop()
		end = timer.C
	}
	select {
	case <-p.Done():
	case <-end:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// SetMasterVolume changes the master volume and re-applies it to every live player.
func (m *Manager) SetMasterVolume(v float64) error {
	if v < 0 || v > 1 {
		return &library.ConfigError{Field: "volume", Reason: fmt.Sprintf("%v not in [0, 1]", v)}
	}
	m.mu.Lock()
	m.master = v
	for slot, p := range m.players {
		_, s, err := m.lib.Sound(slot.Group, slot.Index)
		if err != nil {
			continue
		}
		p.SetVolume(v * s.State().Volume())
	}
	m.mu.Unlock()

	log.Debug(log.CatSound, "Changed master volume", "volume", v)
	m.publish(events.SoundMasterVolumeChanged, nil)
	return nil
}

// SetSoundVolume changes one sound's volume, applying it to a live player.
func (m *Manager) SetSoundVolume(groupIndex, soundIndex int, v float64) error {
	g, s, err := m.lib.Sound(groupIndex, soundIndex)
	if err != nil {
		return err
	}
	slot := Slot{Group: groupIndex, Index: soundIndex}

	m.mu.Lock()
	if err := s.State().SetVolume(v); err != nil {
		m.mu.Unlock()
		return err
	}
	if p, ok := m.players[slot]; ok {
		p.SetVolume(m.master * v)
	}
	m.mu.Unlock()

	m.publish(events.SoundVolumeChanged, m.info(slot, g, s))
	return nil
}

// SetSoundRepeatCount changes how often a sound plays; 0 means forever.
// A running task picks it up at its next repeat decision.
func (m *Manager) SetSoundRepeatCount(groupIndex, soundIndex, n int) error {
	g, s, err := m.lib.Sound(groupIndex, soundIndex)
	if err != nil {
		return err
	}
	if err := s.State().SetRepeatCount(n); err != nil {
		return err
	}
	m.publish(events.SoundRepeatCountChanged, m.info(Slot{groupIndex, soundIndex}, g, s))
	return nil
}

// SetSoundRepeatDelay parses and applies a new delay. Invalid input is
// rejected and the previous delay stays in place.
func (m *Manager) SetSoundRepeatDelay(groupIndex, soundIndex int, raw string) error {
	g, s, err := m.lib.Sound(groupIndex, soundIndex)
	if err != nil {
		return err
	}
	if _, err := s.State().SetRepeatDelay(raw); err != nil {
		return err
	}
	m.publish(events.SoundRepeatDelayChanged, m.info(Slot{groupIndex, soundIndex}, g, s))
	return nil
}

// Close stops every sound and waits for them to clear.
func (m *Manager) Close() {
	m.playMu.Lock()
	defer m.playMu.Unlock()
	m.tracker.CancelAll()
}
