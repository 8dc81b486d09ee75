package library

import (
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// SoundFile is one audio file of a sound. A zero EndAt plays the whole file.
type SoundFile struct {
	File  string
	EndAt time.Duration
}

var soundExtensions = []string{".wav", ".ogg"}

func validSoundExtension(file string) bool {
	ext := strings.ToLower(filepath.Ext(file))
	for _, e := range soundExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// SoundSettings are the runtime adjustable parameters of a sound.
type SoundSettings struct {
	Volume float64
	// RepeatCount is the number of plays; 0 repeats until stopped.
	RepeatCount int
	RepeatDelay RepeatDelay
}

// SoundState holds the mutable settings of a Sound. Safe for concurrent use.
type SoundState struct {
	mu       sync.RWMutex
	settings SoundSettings
}

// Settings returns a consistent snapshot.
func (s *SoundState) Settings() SoundSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

func (s *SoundState) Volume() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.Volume
}

// SetVolume sets the per-sound volume in [0, 1].
func (s *SoundState) SetVolume(v float64) error {
	if v < 0 || v > 1 {
		return &ConfigError{Field: "volume", Reason: fmt.Sprintf("%v not in [0, 1]", v)}
	}
	s.mu.Lock()
	s.settings.Volume = v
	s.mu.Unlock()
	return nil
}

func (s *SoundState) RepeatCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.RepeatCount
}

// SetRepeatCount sets how often the sound plays; 0 means forever.
func (s *SoundState) SetRepeatCount(n int) error {
	if n < 0 {
		return &ConfigError{Field: "repeat_count", Reason: fmt.Sprintf("%d is negative", n)}
	}
	s.mu.Lock()
	s.settings.RepeatCount = n
	s.mu.Unlock()
	return nil
}

func (s *SoundState) RepeatDelay() RepeatDelay {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.RepeatDelay
}

// SetRepeatDelay parses and stores a delay. An invalid value leaves the
// current delay untouched.
func (s *SoundState) SetRepeatDelay(raw string) (RepeatDelay, error) {
	d, err := ParseRepeatDelay(raw)
	if err != nil {
		return s.RepeatDelay(), err
	}
	s.mu.Lock()
	s.settings.RepeatDelay = d
	s.mu.Unlock()
	return d, nil
}

// Sound is a named effect made of one or more files, one picked at random per play.
type Sound struct {
	Name      string
	Directory string
	Files     []SoundFile
	state     *SoundState
}

// State returns the runtime settings cell.
func (s *Sound) State() *SoundState { return s.state }

// RandomFile picks one of the files uniformly.
func (s *Sound) RandomFile() SoundFile {
	return s.Files[rand.IntN(len(s.Files))]
}

// SoundGroup groups related sounds.
type SoundGroup struct {
	Name      string
	Directory string
	Sounds    []*Sound
}

// SoundLibrary is every configured sound group.
type SoundLibrary struct {
	// Volume is the initial master volume, 0..1.
	Volume    float64
	Directory string
	Groups    []*SoundGroup
}

// Sound returns the group and sound at the given indices.
func (l *SoundLibrary) Sound(groupIndex, soundIndex int) (*SoundGroup, *Sound, error) {
	if groupIndex < 0 || groupIndex >= len(l.Groups) {
		return nil, nil, indexError("sound", groupIndex, -1)
	}
	g := l.Groups[groupIndex]
	if soundIndex < 0 || soundIndex >= len(g.Sounds) {
		return nil, nil, indexError("sound", groupIndex, soundIndex)
	}
	return g, g.Sounds[soundIndex], nil
}

// SoundDirectory resolves the directory holding the files of s.
func (l *SoundLibrary) SoundDirectory(g *SoundGroup, s *Sound) (string, error) {
	dir, ok := ResolveDirectory(s.Directory, g.Directory, l.Directory)
	if !ok {
		return "", &MissingDirectoryError{Group: g.Name, Item: s.Name}
	}
	return dir, nil
}

// SoundFilePath resolves f to an existing file path.
func (l *SoundLibrary) SoundFilePath(g *SoundGroup, s *Sound, f SoundFile) (string, error) {
	dir, err := l.SoundDirectory(g, s)
	if err != nil {
		return "", err
	}
	return localPath(dir, f.File)
}

// Each calls fn for every file of every sound.
func (l *SoundLibrary) Each(fn func(g *SoundGroup, s *Sound, f SoundFile) error) error {
	for _, g := range l.Groups {
		for _, s := range g.Sounds {
			for _, f := range s.Files {
				if err := fn(g, s, f); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
