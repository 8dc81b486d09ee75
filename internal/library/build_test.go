package library

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func buildFromYAML(t *testing.T, doc string) (*Library, error) {
	t.Helper()
	var raw map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(doc), &raw))
	return Build(raw)
}

func TestBuild_Example(t *testing.T) {
	lib, err := buildFromYAML(t, exampleAmbiance)
	require.NoError(t, err)

	m := lib.Music
	assert.Equal(t, 20, m.Volume)
	require.Len(t, m.Groups, 2)
	assert.Equal(t, "Scene 1 - Travel", m.Groups[0].Name)

	// Track lists are sorted by name.
	g, tl, err := m.TrackList(0, 1)
	require.NoError(t, err)
	assert.Equal(t, "Scene 1 - Travel", g.Name)
	assert.Equal(t, "Forest Music", tl.Name)
	assert.True(t, tl.Loop)
	assert.True(t, tl.Shuffle)
	assert.Equal(t, []Track{{File: "forest-music-1.mp3"}, {File: "forest-music-2.mp3"}}, tl.ConfiguredTracks())

	_, battle, err := m.TrackList(0, 0)
	require.NoError(t, err)
	assert.Equal(t, "Battle Music", battle.Name)
	assert.True(t, battle.ConfiguredTracks()[0].IsRemote())

	s := lib.Sound
	assert.Equal(t, 1.0, s.Volume)
	sg, leaves, err := s.Sound(0, 0)
	require.NoError(t, err)
	assert.Equal(t, "Footsteps", sg.Name)
	assert.Equal(t, "Footsteps on Dry Leaves", leaves.Name)
	assert.Equal(t, []SoundFile{{File: "footsteps-dry-leaves.wav", EndAt: 4 * time.Second}}, leaves.Files)
	assert.Equal(t, SoundSettings{Volume: 1, RepeatCount: 1}, leaves.State().Settings())

	_, branches, err := s.Sound(0, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, branches.State().RepeatCount())
	assert.Equal(t, RepeatDelay{Min: 100 * time.Millisecond, Max: 500 * time.Millisecond}, branches.State().RepeatDelay())
}

func TestBuild_DetailedTrack(t *testing.T) {
	lib, err := buildFromYAML(t, `
music:
  volume: 50
  groups:
  - name: G
    track_lists:
    - name: T
      loop: false
      shuffle: false
      next: T
      tracks:
      - file: a.mp3
        start_at: 0:1:30
        end_at: 1:00:00
      - b.mp3
`)
	require.NoError(t, err)

	_, tl, err := lib.Music.TrackList(0, 0)
	require.NoError(t, err)
	assert.False(t, tl.Loop)
	assert.False(t, tl.Shuffle)
	assert.Equal(t, "T", tl.Next)
	assert.Equal(t, []Track{
		{File: "a.mp3", StartAt: 90 * time.Second, EndAt: time.Hour},
		{File: "b.mp3"},
	}, tl.Tracks())
}

func TestBuild_SortDisabled(t *testing.T) {
	lib, err := buildFromYAML(t, `
music:
  sort: false
  groups:
  - name: Zeta
    sort: false
    track_lists:
    - {name: Z, tracks: [z.mp3]}
    - {name: A, tracks: [a.mp3]}
  - name: Alpha
    track_lists:
    - {name: Y, tracks: [y.mp3]}
`)
	require.NoError(t, err)
	assert.Equal(t, "Zeta", lib.Music.Groups[0].Name)
	assert.Equal(t, "Z", lib.Music.Groups[0].TrackLists[0].Name)
	assert.Equal(t, DefaultMusicVolume, lib.Music.Volume)
}

func TestBuild_IntegerRepeatDelay(t *testing.T) {
	lib, err := buildFromYAML(t, `
sound:
  groups:
  - name: G
    sounds:
    - name: S
      volume: 0.5
      repeat_delay: 250
      files: [a.wav]
`)
	require.NoError(t, err)
	_, s, err := lib.Sound.Sound(0, 0)
	require.NoError(t, err)
	assert.Equal(t, FixedDelay(250*time.Millisecond), s.State().RepeatDelay())
	assert.Equal(t, 0.5, s.State().Volume())
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name  string
		doc   string
		field string
	}{
		{
			name:  "bad sound extension",
			doc:   "sound:\n  groups:\n  - name: G\n    sounds:\n    - name: S\n      files: [a.mp3]\n",
			field: "sound.groups[0].sounds[0].files[0].file",
		},
		{
			name:  "bad repeat delay",
			doc:   "sound:\n  groups:\n  - name: G\n    sounds:\n    - name: S\n      repeat_delay: 42-24\n      files: [a.wav]\n",
			field: "sound.groups[0].sounds[0].repeat_delay",
		},
		{
			name:  "negative repeat count",
			doc:   "sound:\n  groups:\n  - name: G\n    sounds:\n    - name: S\n      repeat_count: -1\n      files: [a.wav]\n",
			field: "sound.groups[0].sounds[0].repeat_count",
		},
		{
			name:  "sound volume range",
			doc:   "sound:\n  volume: 2\n",
			field: "sound.volume",
		},
		{
			name:  "music volume range",
			doc:   "music:\n  volume: 101\n",
			field: "music.volume",
		},
		{
			name:  "bad time",
			doc:   "music:\n  groups:\n  - name: G\n    track_lists:\n    - name: T\n      tracks:\n      - {file: a.mp3, start_at: soon}\n",
			field: "music.groups[0].track_lists[0].tracks[0].start_at",
		},
		{
			name:  "empty track list",
			doc:   "music:\n  groups:\n  - name: G\n    track_lists:\n    - name: T\n      tracks: []\n",
			field: "music.groups[0].track_lists[0].tracks",
		},
		{
			name:  "missing group name",
			doc:   "music:\n  groups:\n  - track_lists: []\n",
			field: "music.groups[0].name",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := buildFromYAML(t, tt.doc)
			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestMusicLibrary_FindTrackList(t *testing.T) {
	lib, err := buildFromYAML(t, exampleAmbiance)
	require.NoError(t, err)

	gi, ti, ok := lib.Music.FindTrackList("Tavern Music")
	require.True(t, ok)
	assert.Equal(t, 1, gi)
	assert.Equal(t, 1, ti)

	_, _, ok = lib.Music.FindTrackList("Dungeon Music")
	assert.False(t, ok)
}

func TestLookups_OutOfRange(t *testing.T) {
	lib, err := buildFromYAML(t, exampleAmbiance)
	require.NoError(t, err)

	_, _, err = lib.Music.TrackList(5, 0)
	require.ErrorIs(t, err, ErrIndexOutOfRange)
	_, _, err = lib.Music.TrackList(0, 9)
	require.ErrorIs(t, err, ErrIndexOutOfRange)
	_, _, err = lib.Sound.Sound(0, -1)
	require.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestTrackList_TracksShufflesCopy(t *testing.T) {
	tracks := []Track{{File: "1"}, {File: "2"}, {File: "3"}, {File: "4"}, {File: "5"}}
	tl := NewTrackList("T", "", true, true, "", tracks...)

	got := tl.Tracks()
	assert.ElementsMatch(t, tracks, got)
	got[0].File = "mutated"
	assert.Equal(t, tracks, tl.ConfiguredTracks())
}

func TestIsRemoteLink(t *testing.T) {
	assert.True(t, IsRemoteLink("https://www.youtube.com/watch?v=jIxas0a-KgM"))
	assert.True(t, IsRemoteLink("https://youtu.be/jIxas0a-KgM"))
	assert.True(t, IsRemoteLink("youtube.com/watch?v=_52K0E_gNY0"))
	assert.False(t, IsRemoteLink("forest-music-1.mp3"))
	assert.False(t, IsRemoteLink("https://example.com/watch?v=jIxas0a-KgM"))
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"0:0:4", 4 * time.Second, false},
		{"1:02:03", time.Hour + 2*time.Minute + 3*time.Second, false},
		{"2:30", 2*time.Minute + 30*time.Second, false},
		{"45", 45 * time.Second, false},
		{"0:61:00", 0, true},
		{"a:b:c", 0, true},
		{"1:2:3:4", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseClock(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Equal(t, "1:02:03", FormatClock(time.Hour+2*time.Minute+3*time.Second))
}
