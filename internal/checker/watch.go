package checker

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dndj/dndj/internal/log"
)

const debounce = 100 * time.Millisecond

// Watch calls fn whenever a YAML file in the directory of path changes,
// which covers the file itself and includes next to it. Editors often
// replace files instead of writing them, so the directory is watched.
// Watch returns when ctx is done.
func Watch(ctx context.Context, path string, fn func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()

	dir := filepath.Dir(path)
	if err := w.Add(dir); err != nil {
		return err
	}
	log.Info(log.CatCheck, "Watching for changes", "dir", dir)

	last := make(map[string]time.Time)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 || !isYAML(ev.Name) {
				continue
			}
			now := time.Now()
			if t, seen := last[ev.Name]; seen && now.Sub(t) < debounce {
				continue
			}
			last[ev.Name] = now
			log.Debug(log.CatCheck, "Change detected", "file", ev.Name, "op", ev.Op.String())
			fn()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn(log.CatCheck, "Watcher error", "error", err)
		}
	}
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
