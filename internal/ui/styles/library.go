package styles

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss/tree"

	"github.com/dndj/dndj/internal/library"
)

func newTree(root string) *tree.Tree {
	return tree.Root(root).
		Enumerator(tree.RoundedEnumerator).
		EnumeratorStyle(MutedStyle).
		RootStyle(TitleStyle).
		ItemStyle(ItemStyle)
}

func annotate(label string, notes ...string) string {
	var parts []string
	for _, n := range notes {
		if n != "" {
			parts = append(parts, n)
		}
	}
	if len(parts) == 0 {
		return label
	}
	return label + " " + MutedStyle.Render("("+strings.Join(parts, "; ")+")")
}

// RenderMusic draws the music library as an indexed tree.
func RenderMusic(m *library.MusicLibrary) string {
	root := newTree(fmt.Sprintf("Music (volume %d)", m.Volume))
	for gi, g := range m.Groups {
		group := newTree(fmt.Sprintf("[%d] %s", gi, g.Name))
		for ti, tl := range g.TrackLists {
			notes := []string{FormatFlags(map[string]bool{"loop": tl.Loop, "shuffle": tl.Shuffle}, "loop", "shuffle")}
			if tl.Next != "" {
				notes = append(notes, "next: "+tl.Next)
			}
			list := newTree(annotate(fmt.Sprintf("[%d] %s", ti, tl.Name), notes...))
			for _, t := range tl.ConfiguredTracks() {
				kind := ""
				if t.IsRemote() {
					kind = "remote"
				}
				list.Child(annotate(t.File, kind, FormatSpan(t.StartAt, t.EndAt)))
			}
			group.Child(list)
		}
		root.Child(group)
	}
	return root.String()
}

// RenderSound draws the sound library as an indexed tree.
func RenderSound(s *library.SoundLibrary) string {
	root := newTree("Sound (master " + FormatPercent(s.Volume) + ")")
	for gi, g := range s.Groups {
		group := newTree(fmt.Sprintf("[%d] %s", gi, g.Name))
		for si, snd := range g.Sounds {
			st := snd.State().Settings()
			item := newTree(annotate(fmt.Sprintf("[%d] %s", si, snd.Name),
				FormatPercent(st.Volume),
				FormatRepeat(st.RepeatCount),
				"delay "+st.RepeatDelay.String()+"ms",
			))
			for _, f := range snd.Files {
				item.Child(annotate(f.File, FormatSpan(0, f.EndAt)))
			}
			group.Child(item)
		}
		root.Child(group)
	}
	return root.String()
}

// RenderLibrary draws both halves of an ambiance, skipping empty ones.
func RenderLibrary(lib *library.Library) string {
	var out []string
	if lib.Music != nil && len(lib.Music.Groups) > 0 {
		out = append(out, RenderMusic(lib.Music))
	}
	if lib.Sound != nil && len(lib.Sound.Groups) > 0 {
		out = append(out, RenderSound(lib.Sound))
	}
	if len(out) == 0 {
		return MutedStyle.Render("(empty ambiance)")
	}
	return strings.Join(out, "\n\n")
}
