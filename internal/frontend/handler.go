// Package frontend serves the REST endpoints and the websocket that remote
// controls use to drive music and sound playback.
package frontend

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/dndj/dndj/internal/events"
	"github.com/dndj/dndj/internal/library"
	"github.com/dndj/dndj/internal/log"
)

// MusicController is the music side of the command surface.
type MusicController interface {
	PlayTrackList(groupIndex, trackListIndex int) error
	Stop()
	ChangeVolume(ctx context.Context, volume int) error
	CurrentlyPlaying() events.MusicInfo
	Library() *library.MusicLibrary
}

// SoundController is the sound side of the command surface.
type SoundController interface {
	PlaySound(groupIndex, soundIndex int) error
	CancelSound(groupIndex, soundIndex int) error
	SetMasterVolume(v float64) error
	SetSoundVolume(groupIndex, soundIndex int, v float64) error
	SetSoundRepeatCount(groupIndex, soundIndex, n int) error
	SetSoundRepeatDelay(groupIndex, soundIndex int, raw string) error
	CurrentlyPlaying() []events.SoundInfo
	MasterVolume() float64
	Library() *library.SoundLibrary
}

// Options configures the Handler.
type Options struct {
	// OriginPatterns lists extra hosts allowed to open the websocket.
	OriginPatterns []string
}

// Handler provides the HTTP and websocket endpoints.
type Handler struct {
	music MusicController
	sound SoundController
	bus   *events.Bus
	opts  Options

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	clients map[string]struct{}
}

// NewHandler creates a Handler. Close it to drop every websocket client.
func NewHandler(music MusicController, sound SoundController, bus *events.Bus, opts Options) *Handler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Handler{
		music:   music,
		sound:   sound,
		bus:     bus,
		opts:    opts,
		ctx:     ctx,
		cancel:  cancel,
		clients: make(map[string]struct{}),
	}
}

// RegisterAPIRoutes registers the REST and websocket routes on the provided mux.
func (h *Handler) RegisterAPIRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", h.Health)
	mux.HandleFunc("GET /api/state", h.State)
	mux.HandleFunc("GET /api/library", h.Library)
	mux.HandleFunc("GET /ws", h.ServeWS)
}

// Close disconnects every websocket client.
func (h *Handler) Close() {
	h.cancel()
}

// Clients returns the number of connected websocket clients.
func (h *Handler) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Health returns a simple health check response.
// GET /api/health
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Clients: h.Clients()})
}

// State returns what is playing right now.
// GET /api/state
func (h *Handler) State(w http.ResponseWriter, _ *http.Request) {
	playing := h.sound.CurrentlyPlaying()
	if playing == nil {
		playing = []events.SoundInfo{}
	}
	h.writeJSON(w, http.StatusOK, StateResponse{
		Music: h.music.CurrentlyPlaying(),
		Sound: SoundState{MasterVolume: h.sound.MasterVolume(), Playing: playing},
	})
}

// Library returns the music and sound libraries with their indices.
// GET /api/library
func (h *Handler) Library(w http.ResponseWriter, _ *http.Request) {
	resp := LibraryResponse{
		Music: MusicLibraryView{Groups: []MusicGroupView{}},
		Sound: SoundLibraryView{Volume: h.sound.MasterVolume(), Groups: []SoundGroupView{}},
	}
	if m := h.music.Library(); m != nil {
		resp.Music.Volume = h.music.CurrentlyPlaying().Volume
		for gi, g := range m.Groups {
			gv := MusicGroupView{Index: gi, Name: g.Name, TrackLists: []TrackListView{}}
			for ti, tl := range g.TrackLists {
				gv.TrackLists = append(gv.TrackLists, TrackListView{
					Index:   ti,
					Name:    tl.Name,
					Loop:    tl.Loop,
					Shuffle: tl.Shuffle,
					Next:    tl.Next,
					Tracks:  len(tl.ConfiguredTracks()),
				})
			}
			resp.Music.Groups = append(resp.Music.Groups, gv)
		}
	}
	if s := h.sound.Library(); s != nil {
		for gi, g := range s.Groups {
			gv := SoundGroupView{Index: gi, Name: g.Name, Sounds: []SoundView{}}
			for si, snd := range g.Sounds {
				st := snd.State().Settings()
				gv.Sounds = append(gv.Sounds, SoundView{
					Index:       si,
					Name:        snd.Name,
					Volume:      st.Volume,
					RepeatCount: st.RepeatCount,
					RepeatDelay: st.RepeatDelay.String(),
					Files:       len(snd.Files),
				})
			}
			resp.Sound.Groups = append(resp.Sound.Groups, gv)
		}
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// writeJSON writes a JSON response with the given status code.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error(log.CatServer, "Failed to encode JSON response", "error", err)
	}
}

// writeError writes an error response in the standard APIError format.
func (h *Handler) writeError(w http.ResponseWriter, status int, code, message, details string) {
	h.writeJSON(w, status, APIError{
		Error:   message,
		Code:    code,
		Details: details,
	})
}
