// Package audiotest provides a scriptable in-memory audio backend for tests.
package audiotest

import (
	"errors"
	"sync"
	"time"

	"github.com/dndj/dndj/internal/audio"
)

// Player is a fake audio.Player. Tests drive it with Begin and Finish.
type Player struct {
	mu       sync.Mutex
	source   string
	volume   float64
	volumes  []float64
	position time.Duration
	length   time.Duration
	stopped  bool
	seeks    []time.Duration

	startErr  error
	autoStart bool

	started     chan struct{}
	done        chan struct{}
	startedOnce sync.Once
	doneOnce    sync.Once
}

func newPlayer(length time.Duration, autoStart bool, startErr error) *Player {
	return &Player{
		length:    length,
		autoStart: autoStart,
		startErr:  startErr,
		started:   make(chan struct{}),
		done:      make(chan struct{}),
	}
}

func (p *Player) Play(source string) error {
	p.mu.Lock()
	p.source = source
	err := p.startErr
	auto := p.autoStart
	p.mu.Unlock()
	if err != nil {
		p.finish()
		return &audio.PlayerStartError{Source: source, Err: err}
	}
	if auto {
		p.Begin()
	}
	return nil
}

// Begin signals that playback has started.
func (p *Player) Begin() {
	p.startedOnce.Do(func() { close(p.started) })
}

// Finish ends playback as if the source ran out.
func (p *Player) Finish() { p.finish() }

func (p *Player) finish() {
	p.doneOnce.Do(func() { close(p.done) })
}

func (p *Player) Stop() {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()
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
	p.mu.Lock()
	defer p.mu.Unlock()
	p.volume = audio.ClampVolume(v)
	p.volumes = append(p.volumes, p.volume)
}

func (p *Player) Position() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position
}

// SetPosition moves the reported playback position.
func (p *Player) SetPosition(d time.Duration) {
	p.mu.Lock()
	p.position = d
	p.mu.Unlock()
}

func (p *Player) Seek(d time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.length > 0 && d > p.length {
		return errors.New("seek beyond end")
	}
	p.position = d
	p.seeks = append(p.seeks, d)
	return nil
}

func (p *Player) Length() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.length
}

// Source returns what Play was called with.
func (p *Player) Source() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.source
}

// Stopped reports whether Stop was called.
func (p *Player) Stopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}

// VolumeHistory returns every value passed to SetVolume.
func (p *Player) VolumeHistory() []float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]float64, len(p.volumes))
	copy(out, p.volumes)
	return out
}

// Seeks returns every successful seek target.
func (p *Player) Seeks() []time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]time.Duration, len(p.seeks))
	copy(out, p.seeks)
	return out
}

// Backend hands out fake players and records them.
type Backend struct {
	mu      sync.Mutex
	players []*Player
	created chan *Player

	// Length is given to new players.
	Length time.Duration
	// AutoStart makes Play signal Started immediately.
	AutoStart bool
	// StartErr makes Play fail.
	StartErr error
}

// NewBackend returns a backend whose players start as soon as Play is called.
func NewBackend() *Backend {
	return &Backend{AutoStart: true, created: make(chan *Player, 256)}
}

func (b *Backend) NewPlayer() audio.Player {
	b.mu.Lock()
	p := newPlayer(b.Length, b.AutoStart, b.StartErr)
	b.players = append(b.players, p)
	b.mu.Unlock()
	select {
	case b.created <- p:
	default:
	}
	return p
}

// Players returns every player created so far.
func (b *Backend) Players() []*Player {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*Player, len(b.players))
	copy(out, b.players)
	return out
}

// Created yields players in creation order.
func (b *Backend) Created() <-chan *Player { return b.created }

// Next waits up to timeout for the next created player.
func (b *Backend) Next(timeout time.Duration) (*Player, bool) {
	select {
	case p := <-b.created:
		return p, true
	case <-time.After(timeout):
		return nil, false
	}
}
