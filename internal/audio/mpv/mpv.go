// Package mpv plays music and remote streams through an mpv subprocess
// controlled over its JSON IPC socket.
package mpv

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dndj/dndj/internal/audio"
	"github.com/dndj/dndj/internal/log"
)

const (
	dialTimeout    = 5 * time.Second
	requestTimeout = 2 * time.Second
	quitGrace      = 2 * time.Second
)

var errClosed = errors.New("mpv: connection closed")

// Backend launches one mpv process per player.
type Backend struct {
	// Path is the mpv executable.
	Path string
	// SocketDir holds the IPC sockets; defaults to os.TempDir().
	SocketDir string
}

// New returns a backend running the mpv binary at path.
func New(path string) *Backend {
	if path == "" {
		path = "mpv"
	}
	return &Backend{Path: path}
}

func (b *Backend) NewPlayer() audio.Player {
	dir := b.SocketDir
	if dir == "" {
		dir = os.TempDir()
	}
	return newPlayer(b.Path, dir)
}

type message struct {
	Event     string          `json:"event,omitempty"`
	Name      string          `json:"name,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	RequestID int64           `json:"request_id,omitempty"`
	Error     string          `json:"error,omitempty"`
}

type command struct {
	Command   []any `json:"command"`
	RequestID int64 `json:"request_id"`
}

// Player controls a single mpv process.
type Player struct {
	bin     string
	sockDir string

	mu      sync.Mutex
	volume  float64
	cmd     *exec.Cmd
	conn    net.Conn
	nextID  int64
	pending map[int64]chan message
	socket  string

	writeMu sync.Mutex

	started     chan struct{}
	done        chan struct{}
	startedOnce sync.Once
	doneOnce    sync.Once
}

func newPlayer(bin, sockDir string) *Player {
	return &Player{
		bin:     bin,
		sockDir: sockDir,
		pending: make(map[int64]chan message),
		started: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Play starts mpv on source and connects to its IPC socket.
func (p *Player) Play(source string) error {
	socket := filepath.Join(p.sockDir, "dndj-mpv-"+uuid.NewString()+".sock")
	p.mu.Lock()
	vol := p.volume
	p.mu.Unlock()

	cmd := exec.Command(p.bin, //nolint:gosec // G204: binary path comes from settings
		"--no-video",
		"--no-terminal",
		"--idle=no",
		"--input-ipc-server="+socket,
		fmt.Sprintf("--volume=%d", int(vol*100)),
		"--",
		source,
	)
	if err := cmd.Start(); err != nil {
		p.finish()
		return &audio.PlayerStartError{Source: source, Err: err}
	}
	p.mu.Lock()
	p.cmd = cmd
	p.socket = socket
	p.mu.Unlock()

	go func() {
		err := cmd.Wait()
		log.Debug(log.CatAudio, "mpv exited", "source", source, "error", err)
		p.finish()
	}()

	conn, err := dial(socket, p.done)
	if err != nil {
		p.kill()
		return &audio.PlayerStartError{Source: source, Err: err}
	}
	p.attach(conn)

	if _, err := p.request("observe_property", 1, "playback-time"); err != nil {
		log.Debug(log.CatAudio, "mpv observe failed", "error", err)
	}
	return nil
}

func dial(socket string, done <-chan struct{}) (net.Conn, error) {
	deadline := time.Now().Add(dialTimeout)
	for {
		conn, err := net.Dial("unix", socket)
		if err == nil {
			return conn, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("connecting to mpv ipc: %w", err)
		}
		select {
		case <-done:
			return nil, errors.New("mpv exited before opening its ipc socket")
		case <-time.After(20 * time.Millisecond):
		}
	}
}

// attach starts reading IPC messages from conn.
func (p *Player) attach(conn net.Conn) {
	p.mu.Lock()
	p.conn = conn
	p.mu.Unlock()
	go p.readLoop(conn)
}

func (p *Player) readLoop(conn net.Conn) {
	defer p.failPending()
	sc := bufio.NewScanner(conn)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		var msg message
		if err := json.Unmarshal(sc.Bytes(), &msg); err != nil {
			log.Debug(log.CatAudio, "Ignoring malformed mpv message", "error", err)
			continue
		}
		switch {
		case msg.Event == "playback-restart":
			p.markStarted()
		case msg.Event == "property-change" && msg.Name == "playback-time":
			if len(msg.Data) > 0 && string(msg.Data) != "null" {
				p.markStarted()
			}
		case msg.Event == "end-file" || msg.Event == "shutdown":
			p.finish()
		case msg.Event == "" && msg.RequestID != 0:
			p.mu.Lock()
			ch, ok := p.pending[msg.RequestID]
			delete(p.pending, msg.RequestID)
			p.mu.Unlock()
			if ok {
				ch <- msg
			}
		}
	}
}

func (p *Player) failPending() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, ch := range p.pending {
		close(ch)
		delete(p.pending, id)
	}
	p.conn = nil
}

func (p *Player) request(args ...any) (json.RawMessage, error) {
	p.mu.Lock()
	conn := p.conn
	if conn == nil {
		p.mu.Unlock()
		return nil, errClosed
	}
	p.nextID++
	id := p.nextID
	ch := make(chan message, 1)
	p.pending[id] = ch
	p.mu.Unlock()

	line, err := json.Marshal(command{Command: args, RequestID: id})
	if err != nil {
		return nil, err
	}
	p.writeMu.Lock()
	_, err = conn.Write(append(line, '\n'))
	p.writeMu.Unlock()
	if err != nil {
		p.mu.Lock()
		delete(p.pending, id)
		p.mu.Unlock()
		return nil, err
	}

	select {
	case msg, ok := <-ch:
		if !ok {
			return nil, errClosed
		}
		if msg.Error != "" && msg.Error != "success" {
			return nil, fmt.Errorf("mpv %v: %s", args[0], msg.Error)
		}
		return msg.Data, nil
	case <-time.After(requestTimeout):
		p.mu.Lock()
		delete(p.pending, id)
		p.mu.Unlock()
		return nil, fmt.Errorf("mpv %v: timed out", args[0])
	}
}

func (p *Player) seconds(property string) time.Duration {
	data, err := p.request("get_property", property)
	if err != nil {
		return 0
	}
	var secs float64
	if err := json.Unmarshal(data, &secs); err != nil {
		return 0
	}
	return time.Duration(secs * float64(time.Second))
}

func (p *Player) markStarted() {
	p.startedOnce.Do(func() { close(p.started) })
}

func (p *Player) finish() {
	p.doneOnce.Do(func() {
		close(p.done)
		p.mu.Lock()
		conn, socket := p.conn, p.socket
		p.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		if socket != "" {
			_ = os.Remove(socket)
		}
	})
}

func (p *Player) kill() {
	p.mu.Lock()
	cmd := p.cmd
	p.mu.Unlock()
	if cmd != nil && cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
}

// Stop asks mpv to quit and kills it if it does not within a grace period.
func (p *Player) Stop() {
	select {
	case <-p.done:
		return
	default:
	}
	if _, err := p.request("quit"); err != nil && !errors.Is(err, errClosed) && !errors.Is(err, io.EOF) {
		log.Debug(log.CatAudio, "mpv quit failed", "error", err)
	}
	select {
	case <-p.done:
	case <-time.After(quitGrace):
		p.kill()
		p.finish()
	}
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
	connected := p.conn != nil
	p.mu.Unlock()
	if !connected {
		return
	}
	if _, err := p.request("set_property", "volume", v*100); err != nil {
		log.Debug(log.CatAudio, "mpv set volume failed", "error", err)
	}
}

func (p *Player) Position() time.Duration { return p.seconds("time-pos") }

func (p *Player) Length() time.Duration { return p.seconds("duration") }

func (p *Player) Seek(d time.Duration) error {
	_, err := p.request("seek", d.Seconds(), "absolute")
	return err
}
