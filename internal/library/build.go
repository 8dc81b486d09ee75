// Package library models the music and sound libraries of an ambiance file.
//
// The tree is built once by Build and never changes afterwards, except for
// the per-sound settings held in each Sound's SoundState.
package library

import (
	"cmp"
	"fmt"
	"reflect"
	"slices"
	"time"

	"github.com/go-viper/mapstructure/v2"
)

type rawTrack struct {
	File    string `mapstructure:"file"`
	StartAt string `mapstructure:"start_at"`
	EndAt   string `mapstructure:"end_at"`
}

type rawTrackList struct {
	Name      string     `mapstructure:"name"`
	Directory string     `mapstructure:"directory"`
	Loop      *bool      `mapstructure:"loop"`
	Shuffle   *bool      `mapstructure:"shuffle"`
	Next      string     `mapstructure:"next"`
	Tracks    []rawTrack `mapstructure:"tracks"`
}

type rawMusicGroup struct {
	Name       string         `mapstructure:"name"`
	Directory  string         `mapstructure:"directory"`
	Sort       *bool          `mapstructure:"sort"`
	TrackLists []rawTrackList `mapstructure:"track_lists"`
}

type rawMusic struct {
	Volume    *int            `mapstructure:"volume"`
	Directory string          `mapstructure:"directory"`
	Sort      *bool           `mapstructure:"sort"`
	Groups    []rawMusicGroup `mapstructure:"groups"`
}

type rawSoundFile struct {
	File  string `mapstructure:"file"`
	EndAt string `mapstructure:"end_at"`
}

type rawSound struct {
	Name        string         `mapstructure:"name"`
	Directory   string         `mapstructure:"directory"`
	Volume      *float64       `mapstructure:"volume"`
	RepeatCount *int           `mapstructure:"repeat_count"`
	RepeatDelay *string        `mapstructure:"repeat_delay"`
	Files       []rawSoundFile `mapstructure:"files"`
}

type rawSoundGroup struct {
	Name      string     `mapstructure:"name"`
	Directory string     `mapstructure:"directory"`
	Sort      *bool      `mapstructure:"sort"`
	Sounds    []rawSound `mapstructure:"sounds"`
}

type rawSoundLibrary struct {
	Volume    *float64        `mapstructure:"volume"`
	Directory string          `mapstructure:"directory"`
	Sort      *bool           `mapstructure:"sort"`
	Groups    []rawSoundGroup `mapstructure:"groups"`
}

type rawAmbiance struct {
	Music *rawMusic        `mapstructure:"music"`
	Sound *rawSoundLibrary `mapstructure:"sound"`
}

// Library is a complete ambiance: music and sound effects.
type Library struct {
	Music *MusicLibrary
	Sound *SoundLibrary
}

// Defaults applied when a field is absent.
const (
	DefaultMusicVolume       = 100
	DefaultSoundMasterVolume = 1.0
	DefaultSoundVolume       = 1.0
	DefaultRepeatCount       = 1
)

var (
	rawTrackType     = reflect.TypeOf(rawTrack{})
	rawSoundFileType = reflect.TypeOf(rawSoundFile{})
)

// scalarFileHook lets a track or sound file be written as a bare filename.
func scalarFileHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String {
		return data, nil
	}
	if to == rawTrackType || to == rawSoundFileType {
		return map[string]any{"file": data}, nil
	}
	return data, nil
}

func decode(input, output any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       scalarFileHook,
		WeaklyTypedInput: true,
		Result:           output,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

// Build constructs the library from a loaded ambiance document. A missing
// music or sound section yields an empty library for that half.
func Build(raw map[string]any) (*Library, error) {
	var doc rawAmbiance
	if err := decode(raw, &doc); err != nil {
		return nil, &ConfigError{Field: "ambiance", Reason: err.Error()}
	}
	if doc.Music == nil {
		doc.Music = &rawMusic{}
	}
	if doc.Sound == nil {
		doc.Sound = &rawSoundLibrary{}
	}

	music, err := buildMusic(*doc.Music)
	if err != nil {
		return nil, err
	}
	sound, err := buildSound(*doc.Sound)
	if err != nil {
		return nil, err
	}
	return &Library{Music: music, Sound: sound}, nil
}

// BuildMusic constructs a music library from its raw section.
func BuildMusic(raw map[string]any) (*MusicLibrary, error) {
	var m rawMusic
	if err := decode(raw, &m); err != nil {
		return nil, &ConfigError{Field: "music", Reason: err.Error()}
	}
	return buildMusic(m)
}

// BuildSound constructs a sound library from its raw section.
func BuildSound(raw map[string]any) (*SoundLibrary, error) {
	var s rawSoundLibrary
	if err := decode(raw, &s); err != nil {
		return nil, &ConfigError{Field: "sound", Reason: err.Error()}
	}
	return buildSound(s)
}

func orDefault[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}

func sortByName[T any](items []T, enabled *bool, name func(T) string) {
	if orDefault(enabled, true) {
		slices.SortStableFunc(items, func(a, b T) int { return cmp.Compare(name(a), name(b)) })
	}
}

func buildMusic(raw rawMusic) (*MusicLibrary, error) {
	lib := &MusicLibrary{
		Volume:    orDefault(raw.Volume, DefaultMusicVolume),
		Directory: raw.Directory,
	}
	if lib.Volume < 0 || lib.Volume > 100 {
		return nil, &ConfigError{Field: "music.volume", Reason: fmt.Sprintf("%d not in [0, 100]", lib.Volume)}
	}

	for gi, rg := range raw.Groups {
		field := fmt.Sprintf("music.groups[%d]", gi)
		if rg.Name == "" {
			return nil, &ConfigError{Field: field + ".name", Reason: "required"}
		}
		g := &MusicGroup{Name: rg.Name, Directory: rg.Directory}
		for ti, rtl := range rg.TrackLists {
			tl, err := buildTrackList(fmt.Sprintf("%s.track_lists[%d]", field, ti), rtl)
			if err != nil {
				return nil, err
			}
			g.TrackLists = append(g.TrackLists, tl)
		}
		sortByName(g.TrackLists, rg.Sort, func(tl *TrackList) string { return tl.Name })
		lib.Groups = append(lib.Groups, g)
	}
	sortByName(lib.Groups, raw.Sort, func(g *MusicGroup) string { return g.Name })
	return lib, nil
}

func buildTrackList(field string, raw rawTrackList) (*TrackList, error) {
	if raw.Name == "" {
		return nil, &ConfigError{Field: field + ".name", Reason: "required"}
	}
	if len(raw.Tracks) == 0 {
		return nil, &ConfigError{Field: field + ".tracks", Reason: fmt.Sprintf("track list %q has no tracks", raw.Name)}
	}
	tl := &TrackList{
		Name:      raw.Name,
		Directory: raw.Directory,
		Loop:      orDefault(raw.Loop, true),
		Shuffle:   orDefault(raw.Shuffle, true),
		Next:      raw.Next,
	}
	for i, rt := range raw.Tracks {
		t, err := buildTrack(fmt.Sprintf("%s.tracks[%d]", field, i), rt)
		if err != nil {
			return nil, err
		}
		tl.tracks = append(tl.tracks, t)
	}
	return tl, nil
}

func buildTrack(field string, raw rawTrack) (Track, error) {
	if raw.File == "" {
		return Track{}, &ConfigError{Field: field + ".file", Reason: "required"}
	}
	t := Track{File: raw.File}
	var err error
	if t.StartAt, err = optionalClock(field+".start_at", raw.StartAt); err != nil {
		return Track{}, err
	}
	if t.EndAt, err = optionalClock(field+".end_at", raw.EndAt); err != nil {
		return Track{}, err
	}
	if t.EndAt > 0 && t.EndAt <= t.StartAt {
		return Track{}, &ConfigError{Field: field + ".end_at", Reason: "must be after start_at"}
	}
	return t, nil
}

func optionalClock(field, raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := parseClock(raw)
	if err != nil {
		return 0, &ConfigError{Field: field, Reason: err.Error()}
	}
	return d, nil
}

func buildSound(raw rawSoundLibrary) (*SoundLibrary, error) {
	lib := &SoundLibrary{
		Volume:    orDefault(raw.Volume, DefaultSoundMasterVolume),
		Directory: raw.Directory,
	}
	if lib.Volume < 0 || lib.Volume > 1 {
		return nil, &ConfigError{Field: "sound.volume", Reason: fmt.Sprintf("%v not in [0, 1]", lib.Volume)}
	}

	for gi, rg := range raw.Groups {
		field := fmt.Sprintf("sound.groups[%d]", gi)
		if rg.Name == "" {
			return nil, &ConfigError{Field: field + ".name", Reason: "required"}
		}
		g := &SoundGroup{Name: rg.Name, Directory: rg.Directory}
		for si, rs := range rg.Sounds {
			s, err := buildSoundItem(fmt.Sprintf("%s.sounds[%d]", field, si), rs)
			if err != nil {
				return nil, err
			}
			g.Sounds = append(g.Sounds, s)
		}
		sortByName(g.Sounds, rg.Sort, func(s *Sound) string { return s.Name })
		lib.Groups = append(lib.Groups, g)
	}
	sortByName(lib.Groups, raw.Sort, func(g *SoundGroup) string { return g.Name })
	return lib, nil
}

func buildSoundItem(field string, raw rawSound) (*Sound, error) {
	if raw.Name == "" {
		return nil, &ConfigError{Field: field + ".name", Reason: "required"}
	}
	if len(raw.Files) == 0 {
		return nil, &ConfigError{Field: field + ".files", Reason: fmt.Sprintf("sound %q has no files", raw.Name)}
	}

	state := &SoundState{}
	if err := state.SetVolume(orDefault(raw.Volume, DefaultSoundVolume)); err != nil {
		return nil, &ConfigError{Field: field + ".volume", Reason: err.Error()}
	}
	if err := state.SetRepeatCount(orDefault(raw.RepeatCount, DefaultRepeatCount)); err != nil {
		return nil, &ConfigError{Field: field + ".repeat_count", Reason: err.Error()}
	}
	if raw.RepeatDelay != nil {
		if _, err := state.SetRepeatDelay(*raw.RepeatDelay); err != nil {
			return nil, &ConfigError{Field: field + ".repeat_delay", Reason: err.Error()}
		}
	}

	s := &Sound{Name: raw.Name, Directory: raw.Directory, state: state}
	for i, rf := range raw.Files {
		ff := fmt.Sprintf("%s.files[%d]", field, i)
		if rf.File == "" {
			return nil, &ConfigError{Field: ff + ".file", Reason: "required"}
		}
		if !validSoundExtension(rf.File) {
			return nil, &ConfigError{Field: ff + ".file", Reason: fmt.Sprintf("%q must be a .wav or .ogg file", rf.File)}
		}
		endAt, err := optionalClock(ff+".end_at", rf.EndAt)
		if err != nil {
			return nil, err
		}
		s.Files = append(s.Files, SoundFile{File: rf.File, EndAt: endAt})
	}
	return s, nil
}

// NewSound builds a sound directly, mainly for tests and tooling.
func NewSound(name, directory string, settings SoundSettings, files ...SoundFile) *Sound {
	return &Sound{
		Name:      name,
		Directory: directory,
		Files:     files,
		state:     &SoundState{settings: settings},
	}
}

// NewTrackList builds a track list directly, mainly for tests and tooling.
func NewTrackList(name, directory string, loop, shuffle bool, next string, tracks ...Track) *TrackList {
	return &TrackList{
		Name:      name,
		Directory: directory,
		Loop:      loop,
		Shuffle:   shuffle,
		Next:      next,
		tracks:    tracks,
	}
}
