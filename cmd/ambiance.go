package cmd

import (
	"fmt"

	"github.com/dndj/dndj/internal/library"
	"github.com/dndj/dndj/internal/loader"
	"github.com/dndj/dndj/internal/log"
)

// loadAmbiance reads an ambiance file, following includes, and builds its library.
func loadAmbiance(path string) (*library.Library, error) {
	raw, err := loader.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	lib, err := library.Build(raw)
	if err != nil {
		return nil, fmt.Errorf("building library from %s: %w", path, err)
	}
	log.Debug(log.CatConfig, "Loaded ambiance", "path", path,
		"music_groups", len(lib.Music.Groups), "sound_groups", len(lib.Sound.Groups))
	return lib, nil
}
