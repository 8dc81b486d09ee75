// Package audio defines the player abstraction the orchestrators drive.
//
// Backends live in subpackages: mpv for music and remote streams, sfx for
// short sound effects.
package audio

import (
	"fmt"
	"time"
)

// Player plays one source once. Volume is in [0, 1].
type Player interface {
	// Play loads source and starts playback. It returns once the backend
	// accepted the source, not when audio is audible.
	Play(source string) error
	// Stop halts playback. Done is closed afterwards. Safe to call twice.
	Stop()
	// Started is closed when audio is actually playing.
	Started() <-chan struct{}
	// Done is closed when playback has ended for any reason.
	Done() <-chan struct{}

	Volume() float64
	SetVolume(v float64)

	Position() time.Duration
	Seek(d time.Duration) error
	Length() time.Duration
}

// Backend creates players.
type Backend interface {
	NewPlayer() Player
}

// BackendFunc adapts a function to Backend.
type BackendFunc func() Player

func (f BackendFunc) NewPlayer() Player { return f() }

// PlayerStartError reports that a backend could not start playback.
type PlayerStartError struct {
	Source string
	Err    error
}

func (e *PlayerStartError) Error() string {
	return fmt.Sprintf("failed to start playback of %q: %v", e.Source, e.Err)
}

func (e *PlayerStartError) Unwrap() error { return e.Err }

// ClampVolume limits v to [0, 1].
func ClampVolume(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
