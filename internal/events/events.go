// Package events defines the notifications published by the music and sound
// orchestrators.
package events

import (
	"time"

	"github.com/dndj/dndj/internal/pubsub"
)

// Kind identifies a notification.
type Kind string

const (
	// Music
	MusicStarted       Kind = "music.started"
	MusicTrackStarted  Kind = "music.track_started"
	MusicStopped       Kind = "music.stopped"
	MusicFinished      Kind = "music.finished"
	MusicVolumeChanged Kind = "music.volume_changed"

	// Sound
	SoundStarted             Kind = "sound.started"
	SoundStopped             Kind = "sound.stopped"
	SoundFinished            Kind = "sound.finished"
	SoundMasterVolumeChanged Kind = "sound.master_volume_changed"
	SoundVolumeChanged       Kind = "sound.volume_changed"
	SoundRepeatCountChanged  Kind = "sound.repeat_count_changed"
	SoundRepeatDelayChanged  Kind = "sound.repeat_delay_changed"

	// Error reports a failed command or playback request.
	Error Kind = "error"
)

// Lifecycle maps a kind onto the broker's event types.
func (k Kind) Lifecycle() pubsub.EventType {
	switch k {
	case MusicStarted, SoundStarted:
		return pubsub.CreatedEvent
	case MusicStopped, MusicFinished, SoundStopped, SoundFinished:
		return pubsub.DeletedEvent
	default:
		return pubsub.UpdatedEvent
	}
}

// MusicInfo describes the music state. Playing is false, and the indices are
// meaningless, when nothing is playing.
type MusicInfo struct {
	Playing        bool   `json:"playing"`
	GroupIndex     int    `json:"groupIndex"`
	GroupName      string `json:"groupName,omitempty"`
	TrackListIndex int    `json:"trackListIndex"`
	TrackListName  string `json:"trackName,omitempty"`
	Volume         int    `json:"volume"`
}

// SoundInfo describes one sound slot and its current settings.
type SoundInfo struct {
	GroupIndex  int     `json:"groupIndex"`
	GroupName   string  `json:"groupName"`
	SoundIndex  int     `json:"soundIndex"`
	SoundName   string  `json:"soundName"`
	Volume      float64 `json:"volume"`
	RepeatCount int     `json:"repeatCount"`
	RepeatDelay string  `json:"repeatDelay"`
}

// Event is the envelope for every notification.
type Event struct {
	Kind      Kind
	Timestamp time.Time

	// Set for music kinds.
	Music *MusicInfo
	// Track is the file or link of the track that started.
	Track string

	// Set for per-sound kinds.
	Sound *SoundInfo
	// MasterVolume accompanies every sound kind.
	MasterVolume float64

	// Message is set for Error.
	Message string
}

// New creates an event stamped with the current time.
func New(kind Kind) Event {
	return Event{Kind: kind, Timestamp: time.Now()}
}

// WithMusic attaches music state.
func (e Event) WithMusic(info MusicInfo) Event {
	e.Music = &info
	return e
}

// WithTrack attaches the started track.
func (e Event) WithTrack(file string) Event {
	e.Track = file
	return e
}

// WithSound attaches sound state and the master volume.
func (e Event) WithSound(info *SoundInfo, master float64) Event {
	e.Sound = info
	e.MasterVolume = master
	return e
}

// NewError builds an Error event.
func NewError(msg string) Event {
	e := New(Error)
	e.Message = msg
	return e
}

// Bus is the broker the orchestrators publish on.
type Bus = pubsub.Broker[Event]

// NewBus returns an empty bus.
func NewBus() *Bus { return pubsub.NewBroker[Event]() }

// Publish sends e on bus using its kind's lifecycle type. A nil bus drops e.
func Publish(bus *Bus, e Event) {
	if bus == nil {
		return
	}
	bus.Publish(e.Kind.Lifecycle(), e)
}
