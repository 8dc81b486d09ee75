package library

import (
	"math/rand/v2"
	"regexp"
	"slices"
	"time"
)

var remoteLinkPattern = regexp.MustCompile(`^(https?://)?(www\.|m\.|music\.)?(youtube\.com/watch\?v=|youtu\.be/)[\w-]{11}`)

// IsRemoteLink reports whether file names a YouTube video rather than a local file.
func IsRemoteLink(file string) bool {
	return remoteLinkPattern.MatchString(file)
}

// Track is one piece of music. A zero StartAt or EndAt means unset.
type Track struct {
	File    string
	StartAt time.Duration
	EndAt   time.Duration
}

// IsRemote reports whether File is a remote link.
func (t Track) IsRemote() bool { return IsRemoteLink(t.File) }

// TrackList is a named sequence of tracks played as one scene.
type TrackList struct {
	Name      string
	Directory string
	Loop      bool
	Shuffle   bool
	// Next names the track list to play once this one finishes.
	Next   string
	tracks []Track
}

// Tracks returns the tracks in play order: a fresh shuffle when Shuffle is
// set, else configuration order. The result is a copy.
func (tl *TrackList) Tracks() []Track {
	out := slices.Clone(tl.tracks)
	if tl.Shuffle {
		rand.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	}
	return out
}

// ConfiguredTracks returns the tracks in configuration order.
func (tl *TrackList) ConfiguredTracks() []Track {
	return slices.Clone(tl.tracks)
}

// MusicGroup groups related track lists.
type MusicGroup struct {
	Name       string
	Directory  string
	TrackLists []*TrackList
}

// MusicLibrary is every configured music group.
type MusicLibrary struct {
	// Volume is the initial music volume, 0..100.
	Volume    int
	Directory string
	Groups    []*MusicGroup
}

// TrackList returns the group and track list at the given indices.
func (m *MusicLibrary) TrackList(groupIndex, trackListIndex int) (*MusicGroup, *TrackList, error) {
	if groupIndex < 0 || groupIndex >= len(m.Groups) {
		return nil, nil, indexError("music", groupIndex, -1)
	}
	g := m.Groups[groupIndex]
	if trackListIndex < 0 || trackListIndex >= len(g.TrackLists) {
		return nil, nil, indexError("music", groupIndex, trackListIndex)
	}
	return g, g.TrackLists[trackListIndex], nil
}

// FindTrackList looks a track list up by name across all groups.
func (m *MusicLibrary) FindTrackList(name string) (groupIndex, trackListIndex int, ok bool) {
	for gi, g := range m.Groups {
		for ti, tl := range g.TrackLists {
			if tl.Name == name {
				return gi, ti, true
			}
		}
	}
	return 0, 0, false
}

// TrackDirectory resolves the directory holding the local files of tl.
func (m *MusicLibrary) TrackDirectory(g *MusicGroup, tl *TrackList) (string, error) {
	dir, ok := ResolveDirectory(tl.Directory, g.Directory, m.Directory)
	if !ok {
		return "", &MissingDirectoryError{Group: g.Name, Item: tl.Name}
	}
	return dir, nil
}

// LocalTrackPath resolves a local track to an existing file path.
func (m *MusicLibrary) LocalTrackPath(g *MusicGroup, tl *TrackList, t Track) (string, error) {
	dir, err := m.TrackDirectory(g, tl)
	if err != nil {
		return "", err
	}
	return localPath(dir, t.File)
}

// Each calls fn for every track of every track list.
func (m *MusicLibrary) Each(fn func(g *MusicGroup, tl *TrackList, t Track) error) error {
	for _, g := range m.Groups {
		for _, tl := range g.TrackLists {
			for _, t := range tl.tracks {
				if err := fn(g, tl, t); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
