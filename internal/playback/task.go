// Package playback runs cancellable playback tasks and tracks which slot
// each one occupies.
package playback

import (
	"context"
	"errors"
	"sync"

	"github.com/dndj/dndj/internal/log"
)

// Task is one cancellable goroutine with a completion signal.
type Task struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

// Go starts fn in its own goroutine with a context derived from parent.
// Cancelling the task cancels that context.
func Go(parent context.Context, name string, fn func(ctx context.Context) error) *Task {
	ctx, cancel := context.WithCancel(parent)
	t := &Task{cancel: cancel, done: make(chan struct{})}
	log.SafeGo(name, func() {
		defer close(t.done)
		defer cancel()
		err := fn(ctx)
		t.mu.Lock()
		t.err = err
		t.mu.Unlock()
	})
	return t
}

// Finished returns a task that has already completed with err.
func Finished(err error) *Task {
	t := &Task{cancel: func() {}, done: make(chan struct{}), err: err}
	close(t.done)
	return t
}

// Cancel requests cancellation. It does not wait.
func (t *Task) Cancel() { t.cancel() }

// Done is closed once the task's function has returned.
func (t *Task) Done() <-chan struct{} { return t.done }

// IsDone reports whether the task has completed.
func (t *Task) IsDone() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the task completes and returns its error.
func (t *Task) Wait() error {
	<-t.done
	return t.Err()
}

// Err returns the task's result, nil while it is running.
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Cancelled reports whether the task ended because it was cancelled.
func (t *Task) Cancelled() bool {
	return t.IsDone() && errors.Is(t.Err(), context.Canceled)
}
