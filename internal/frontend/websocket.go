package frontend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"github.com/dndj/dndj/internal/events"
	"github.com/dndj/dndj/internal/log"
)

const writeTimeout = 5 * time.Second

// CommandError reports a websocket command that could not be understood.
type CommandError struct {
	Action string
	Reason string
}

func (e *CommandError) Error() string {
	if e.Action == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Action, e.Reason)
}

// ServeWS upgrades the request and runs one client until either side hangs up.
// GET /ws
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	if h.ctx.Err() != nil {
		h.writeError(w, http.StatusServiceUnavailable, "shutting_down", "Server is shutting down", "")
		return
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.opts.OriginPatterns})
	if err != nil {
		log.Warn(log.CatServer, "Websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	defer func() { _ = conn.CloseNow() }()

	id := uuid.NewString()
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stop := context.AfterFunc(h.ctx, cancel)
	defer stop()

	// Subscribe before reading so a client sees the result of its first command.
	sub := h.bus.Subscribe(ctx)

	h.mu.Lock()
	h.clients[id] = struct{}{}
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		delete(h.clients, id)
		h.mu.Unlock()
		log.Info(log.CatServer, "Client disconnected", "client", id)
	}()
	log.Info(log.CatServer, "Client connected", "client", id, "remote", r.RemoteAddr)

	log.SafeGo("frontend.push", func() {
		defer cancel()
		for ev := range sub {
			n := notification(ev.Payload)
			if n == nil {
				continue
			}
			if err := write(ctx, conn, n); err != nil {
				log.Debug(log.CatServer, "Dropping client after failed write", "client", id, "error", err)
				return
			}
		}
	})

	h.readLoop(ctx, id, conn)
	_ = conn.Close(websocket.StatusNormalClosure, "")
}

func write(ctx context.Context, conn *websocket.Conn, v any) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, v)
}

func (h *Handler) readLoop(ctx context.Context, id string, conn *websocket.Conn) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			default:
				if ctx.Err() == nil {
					log.Debug(log.CatServer, "Websocket read failed", "client", id, "error", err)
				}
			}
			return
		}

		var cmd Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			h.reply(ctx, id, conn, &CommandError{Reason: "invalid JSON: " + err.Error()})
			continue
		}
		log.Debug(log.CatServer, "Received command", "client", id, "action", cmd.Action)
		if err := h.dispatch(ctx, cmd); err != nil && !errors.Is(err, context.Canceled) {
			h.reply(ctx, id, conn, err)
		}
	}
}

// reply sends a failed command's error to the client that issued it.
func (h *Handler) reply(ctx context.Context, id string, conn *websocket.Conn, err error) {
	log.Warn(log.CatServer, "Command failed", "client", id, "error", err)
	if werr := write(ctx, conn, errorNotification{Action: NotifyError, Message: err.Error()}); werr != nil {
		log.Debug(log.CatServer, "Could not send error", "client", id, "error", werr)
	}
}

func missing(action, field string) error {
	return &CommandError{Action: action, Reason: fmt.Sprintf("missing %q", field)}
}

func (h *Handler) dispatch(ctx context.Context, cmd Command) error {
	switch cmd.Action {
	case ActionPlayMusic:
		return h.music.PlayTrackList(cmd.GroupIndex, cmd.TrackListIndex)
	case ActionStopMusic:
		h.music.Stop()
		return nil
	case ActionSetMusicVolume:
		if cmd.Volume == nil {
			return missing(cmd.Action, "volume")
		}
		return h.music.ChangeVolume(ctx, int(math.Round(*cmd.Volume)))
	case ActionPlaySound:
		return h.sound.PlaySound(cmd.GroupIndex, cmd.SoundIndex)
	case ActionStopSound:
		return h.sound.CancelSound(cmd.GroupIndex, cmd.SoundIndex)
	case ActionSetSoundMasterVolume:
		if cmd.Volume == nil {
			return missing(cmd.Action, "volume")
		}
		return h.sound.SetMasterVolume(*cmd.Volume)
	case ActionSetSoundVolume:
		if cmd.Volume == nil {
			return missing(cmd.Action, "volume")
		}
		return h.sound.SetSoundVolume(cmd.GroupIndex, cmd.SoundIndex, *cmd.Volume)
	case ActionSetSoundRepeatCount:
		if cmd.RepeatCount == nil {
			return missing(cmd.Action, "repeatCount")
		}
		return h.sound.SetSoundRepeatCount(cmd.GroupIndex, cmd.SoundIndex, *cmd.RepeatCount)
	case ActionSetSoundRepeatDelay:
		if cmd.RepeatDelay == nil {
			return missing(cmd.Action, "repeatDelay")
		}
		return h.sound.SetSoundRepeatDelay(cmd.GroupIndex, cmd.SoundIndex, *cmd.RepeatDelay)
	case "":
		return &CommandError{Reason: `missing "action"`}
	default:
		return &CommandError{Action: cmd.Action, Reason: "unknown action"}
	}
}

// notification maps a bus event onto its websocket message, or nil for
// events clients do not see.
func notification(ev events.Event) any {
	switch ev.Kind {
	case events.MusicStarted, events.MusicFinished:
		if ev.Music == nil {
			return nil
		}
		action := NotifyNowPlaying
		if ev.Kind == events.MusicFinished {
			action = NotifyMusicFinished
		}
		return musicPayload(action, ev.Music)
	case events.MusicTrackStarted:
		if ev.Music == nil {
			return nil
		}
		return trackPlaying{nowPlaying: musicPayload(NotifyTrackPlaying, ev.Music), Track: ev.Track}
	case events.MusicStopped:
		return actionOnly{Action: NotifyMusicStopped}
	case events.MusicVolumeChanged:
		if ev.Music == nil {
			return nil
		}
		return volumeChanged{Action: ActionSetMusicVolume, Volume: float64(ev.Music.Volume)}
	case events.SoundMasterVolumeChanged:
		return volumeChanged{Action: ActionSetSoundMasterVolume, Volume: ev.MasterVolume}
	case events.SoundStarted:
		return soundPayload(NotifySoundPlaying, ev)
	case events.SoundStopped:
		return soundPayload(NotifySoundStopped, ev)
	case events.SoundFinished:
		return soundPayload(NotifySoundFinished, ev)
	case events.SoundVolumeChanged:
		return soundPayload(ActionSetSoundVolume, ev)
	case events.SoundRepeatCountChanged:
		return soundPayload(ActionSetSoundRepeatCount, ev)
	case events.SoundRepeatDelayChanged:
		return soundPayload(ActionSetSoundRepeatDelay, ev)
	case events.Error:
		return errorNotification{Action: NotifyError, Message: ev.Message}
	}
	return nil
}

func musicPayload(action string, m *events.MusicInfo) nowPlaying {
	return nowPlaying{
		Action:         action,
		GroupIndex:     m.GroupIndex,
		TrackListIndex: m.TrackListIndex,
		GroupName:      m.GroupName,
		TrackName:      m.TrackListName,
	}
}

func soundPayload(action string, ev events.Event) any {
	if ev.Sound == nil {
		return nil
	}
	s := ev.Sound
	return soundNotification{
		Action:       action,
		GroupIndex:   s.GroupIndex,
		SoundIndex:   s.SoundIndex,
		GroupName:    s.GroupName,
		SoundName:    s.SoundName,
		Volume:       s.Volume,
		RepeatCount:  s.RepeatCount,
		RepeatDelay:  s.RepeatDelay,
		MasterVolume: ev.MasterVolume,
	}
}
