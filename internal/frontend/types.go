package frontend

import "github.com/dndj/dndj/internal/events"

// APIError is the body of every failed REST response.
type APIError struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}

// HealthResponse is returned by GET /api/health.
type HealthResponse struct {
	Status  string `json:"status"`
	Clients int    `json:"clients"`
}

// StateResponse is returned by GET /api/state.
type StateResponse struct {
	Music events.MusicInfo `json:"music"`
	Sound SoundState       `json:"sound"`
}

// SoundState lists the playing sounds.
type SoundState struct {
	MasterVolume float64            `json:"masterVolume"`
	Playing      []events.SoundInfo `json:"playing"`
}

// LibraryResponse is returned by GET /api/library.
type LibraryResponse struct {
	Music MusicLibraryView `json:"music"`
	Sound SoundLibraryView `json:"sound"`
}

type MusicLibraryView struct {
	Volume int              `json:"volume"`
	Groups []MusicGroupView `json:"groups"`
}

type MusicGroupView struct {
	Index      int             `json:"index"`
	Name       string          `json:"name"`
	TrackLists []TrackListView `json:"trackLists"`
}

type TrackListView struct {
	Index   int    `json:"index"`
	Name    string `json:"name"`
	Loop    bool   `json:"loop"`
	Shuffle bool   `json:"shuffle"`
	Next    string `json:"next,omitempty"`
	Tracks  int    `json:"tracks"`
}

type SoundLibraryView struct {
	Volume float64          `json:"volume"`
	Groups []SoundGroupView `json:"groups"`
}

type SoundGroupView struct {
	Index  int         `json:"index"`
	Name   string      `json:"name"`
	Sounds []SoundView `json:"sounds"`
}

type SoundView struct {
	Index       int     `json:"index"`
	Name        string  `json:"name"`
	Volume      float64 `json:"volume"`
	RepeatCount int     `json:"repeatCount"`
	RepeatDelay string  `json:"repeatDelay"`
	Files       int     `json:"files"`
}

// Command is one websocket request. Only the fields its action needs are read.
type Command struct {
	Action         string   `json:"action"`
	GroupIndex     int      `json:"groupIndex"`
	TrackListIndex int      `json:"trackListIndex"`
	SoundIndex     int      `json:"soundIndex"`
	Volume         *float64 `json:"volume"`
	RepeatCount    *int     `json:"repeatCount"`
	RepeatDelay    *string  `json:"repeatDelay"`
}

// Websocket command actions.
const (
	ActionPlayMusic            = "playMusic"
	ActionStopMusic            = "stopMusic"
	ActionSetMusicVolume       = "setMusicVolume"
	ActionPlaySound            = "playSound"
	ActionStopSound            = "stopSound"
	ActionSetSoundMasterVolume = "setSoundMasterVolume"
	ActionSetSoundVolume       = "setSoundVolume"
	ActionSetSoundRepeatCount  = "setSoundRepeatCount"
	ActionSetSoundRepeatDelay  = "setSoundRepeatDelay"
)

// Websocket notification actions.
const (
	NotifyNowPlaying    = "nowPlaying"
	NotifyTrackPlaying  = "trackPlaying"
	NotifyMusicStopped  = "musicStopped"
	NotifyMusicFinished = "musicFinished"
	NotifySoundPlaying  = "soundPlaying"
	NotifySoundStopped  = "soundStopped"
	NotifySoundFinished = "soundFinished"
	NotifyError         = "error"
)

type nowPlaying struct {
	Action         string `json:"action"`
	GroupIndex     int    `json:"groupIndex"`
	TrackListIndex int    `json:"trackListIndex"`
	GroupName      string `json:"groupName"`
	TrackName      string `json:"trackName"`
}

type trackPlaying struct {
	nowPlaying
	Track string `json:"track"`
}

type actionOnly struct {
	Action string `json:"action"`
}

type volumeChanged struct {
	Action string  `json:"action"`
	Volume float64 `json:"volume"`
}

type soundNotification struct {
	Action       string  `json:"action"`
	GroupIndex   int     `json:"groupIndex"`
	SoundIndex   int     `json:"soundIndex"`
	GroupName    string  `json:"groupName"`
	SoundName    string  `json:"soundName"`
	Volume       float64 `json:"volume"`
	RepeatCount  int     `json:"repeatCount"`
	RepeatDelay  string  `json:"repeatDelay"`
	MasterVolume float64 `json:"masterVolume"`
}

type errorNotification struct {
	Action  string `json:"action"`
	Message string `json:"message"`
}
