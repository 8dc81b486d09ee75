package playback

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dndj/dndj/internal/log"
)

// ErrAlreadyRunning is returned by Register when a live task holds the key.
var ErrAlreadyRunning = errors.New("task already running")

type entry struct {
	task    *Task
	removed chan struct{}
}

// Active is one registered slot.
type Active[K comparable] struct {
	Key  K
	Task *Task
}

// Tracker maps slots to at most one live task each. Entries disappear on
// their own when the task completes. Safe for concurrent use.
type Tracker[K comparable] struct {
	mu      sync.Mutex
	entries map[K]*entry
}

// NewTracker returns an empty tracker.
func NewTracker[K comparable]() *Tracker[K] {
	return &Tracker[K]{entries: make(map[K]*entry)}
}

// Register stores task under key and schedules its removal once the task
// completes. A task that is already done is removed right away.
func (tr *Tracker[K]) Register(key K, task *Task) error {
	tr.mu.Lock()
	if cur, ok := tr.entries[key]; ok && !cur.task.IsDone() {
		tr.mu.Unlock()
		return fmt.Errorf("register %v: %w", key, ErrAlreadyRunning)
	}
	e := &entry{task: task, removed: make(chan struct{})}
	tr.entries[key] = e
	tr.mu.Unlock()

	log.Debug(log.CatTask, "Registered task", "key", fmt.Sprint(key))

	log.SafeGo("tracker.remove", func() {
		defer close(e.removed)
		<-task.Done()
		tr.mu.Lock()
		if tr.entries[key] == e {
			delete(tr.entries, key)
		}
		tr.mu.Unlock()
	})
	return nil
}

// Cancel cancels the task under key and blocks until its entry is gone.
// It is a no-op when the slot is empty.
func (tr *Tracker[K]) Cancel(key K) bool {
	tr.mu.Lock()
	e, ok := tr.entries[key]
	tr.mu.Unlock()
	if !ok {
		return false
	}

	log.Debug(log.CatTask, "Cancelling task", "key", fmt.Sprint(key))
	e.task.Cancel()
	<-e.removed
	return true
}

// Active returns the live entries at one point in time.
func (tr *Tracker[K]) Active() []Active[K] {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	out := make([]Active[K], 0, len(tr.entries))
	for k, e := range tr.entries {
		if e.task.IsDone() {
			continue
		}
		out = append(out, Active[K]{Key: k, Task: e.task})
	}
	return out
}

// Get returns the live task under key.
func (tr *Tracker[K]) Get(key K) (*Task, bool) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	e, ok := tr.entries[key]
	if !ok || e.task.IsDone() {
		return nil, false
	}
	return e.task, true
}

// CancelAll cancels every task and waits for all of them to unregister.
func (tr *Tracker[K]) CancelAll() {
	tr.mu.Lock()
	pending := make([]*entry, 0, len(tr.entries))
	for _, e := range tr.entries {
		pending = append(pending, e)
	}
	tr.mu.Unlock()

	for _, e := range pending {
		e.task.Cancel()
	}
	for _, e := range pending {
		<-e.removed
	}
}
