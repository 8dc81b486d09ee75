package playback

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type slot struct{ group, index int }

// blocking starts a task that runs until cancelled, then sleeps for linger
// before returning so that cancellation and removal are observably apart.
func blocking(linger time.Duration) *Task {
	return Go(context.Background(), "test", func(ctx context.Context) error {
		<-ctx.Done()
		time.Sleep(linger)
		return ctx.Err()
	})
}

func keys[K comparable](active []Active[K]) []K {
	out := make([]K, 0, len(active))
	for _, a := range active {
		out = append(out, a.Key)
	}
	return out
}

func TestTracker_RegisterTwiceFails(t *testing.T) {
	tr := NewTracker[slot]()
	first := blocking(0)
	t.Cleanup(first.Cancel)

	require.NoError(t, tr.Register(slot{0, 1}, first))
	err := tr.Register(slot{0, 1}, blocking(0))
	require.ErrorIs(t, err, ErrAlreadyRunning)

	// Other slots are independent.
	other := blocking(0)
	t.Cleanup(other.Cancel)
	require.NoError(t, tr.Register(slot{0, 2}, other))
	assert.ElementsMatch(t, []slot{{0, 1}, {0, 2}}, keys(tr.Active()))
}

func TestTracker_FinishedTaskIsRemoved(t *testing.T) {
	tr := NewTracker[slot]()
	require.NoError(t, tr.Register(slot{0, 0}, Finished(nil)))

	// Never listed, even before the watcher runs.
	assert.Empty(t, tr.Active())
	require.Eventually(t, func() bool {
		tr.mu.Lock()
		defer tr.mu.Unlock()
		return len(tr.entries) == 0
	}, time.Second, time.Millisecond)
}

func TestTracker_NaturalCompletionRemoves(t *testing.T) {
	tr := NewTracker[slot]()
	release := make(chan struct{})
	task := Go(context.Background(), "test", func(context.Context) error {
		<-release
		return nil
	})
	require.NoError(t, tr.Register(slot{1, 1}, task))
	assert.Len(t, tr.Active(), 1)

	close(release)
	require.NoError(t, task.Wait())
	require.Eventually(t, func() bool { return len(tr.Active()) == 0 }, time.Second, time.Millisecond)
	assert.False(t, task.Cancelled())
}

func TestTracker_CancelBlocksUntilRemoved(t *testing.T) {
	tr := NewTracker[slot]()
	task := blocking(20 * time.Millisecond)
	require.NoError(t, tr.Register(slot{0, 0}, task))

	require.True(t, tr.Cancel(slot{0, 0}))

	assert.True(t, task.IsDone())
	assert.True(t, task.Cancelled())
	assert.Empty(t, tr.Active())
	_, ok := tr.Get(slot{0, 0})
	assert.False(t, ok)

	// The slot is free for immediate reuse.
	next := blocking(0)
	t.Cleanup(next.Cancel)
	require.NoError(t, tr.Register(slot{0, 0}, next))
}

func TestTracker_CancelEmptyIsNoop(t *testing.T) {
	tr := NewTracker[string]()
	assert.False(t, tr.Cancel("nothing"))
}

func TestTracker_CancelAll(t *testing.T) {
	tr := NewTracker[int]()
	for i := range 5 {
		require.NoError(t, tr.Register(i, blocking(time.Millisecond)))
	}
	tr.CancelAll()
	assert.Empty(t, tr.Active())
}

func TestTask_ErrPropagates(t *testing.T) {
	boom := errors.New("boom")
	task := Go(context.Background(), "test", func(context.Context) error { return boom })
	require.ErrorIs(t, task.Wait(), boom)
	assert.False(t, task.Cancelled())
}

func TestTask_PanicStillCompletes(t *testing.T) {
	task := Go(context.Background(), "test.panic", func(context.Context) error { panic("kaboom") })
	select {
	case <-task.Done():
	case <-time.After(time.Second):
		t.Fatal("task did not complete after panic")
	}
}

// Random register/cancel/finish sequences never leave a completed task
// listed and never list a key twice.
func TestTracker_Properties(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		tr := NewTracker[int]()
		release := map[int]chan struct{}{}
		tasks := map[int]*Task{}
		defer tr.CancelAll()

		ops := rapid.IntRange(1, 30).Draw(rt, "ops")
		for range ops {
			key := rapid.IntRange(0, 3).Draw(rt, "key")
			switch rapid.IntRange(0, 2).Draw(rt, "op") {
			case 0:
				ch := make(chan struct{})
				task := Go(context.Background(), "prop", func(ctx context.Context) error {
					select {
					case <-ch:
						return nil
					case <-ctx.Done():
						return ctx.Err()
					}
				})
				err := tr.Register(key, task)
				if prev, ok := tasks[key]; ok && !prev.IsDone() {
					if !errors.Is(err, ErrAlreadyRunning) {
						rt.Fatalf("expected ErrAlreadyRunning for live key %d, got %v", key, err)
					}
					task.Cancel()
					continue
				}
				if err != nil {
					rt.Fatalf("register %d: %v", key, err)
				}
				tasks[key] = task
				release[key] = ch
			case 1:
				tr.Cancel(key)
				if task, ok := tasks[key]; ok && !task.IsDone() {
					rt.Fatalf("task %d still running after Cancel", key)
				}
				if _, ok := tr.Get(key); ok {
					rt.Fatalf("key %d still registered after Cancel", key)
				}
			case 2:
				if ch, ok := release[key]; ok {
					close(ch)
					delete(release, key)
					<-tasks[key].Done()
				}
			}

			seen := map[int]bool{}
			for _, a := range tr.Active() {
				if seen[a.Key] {
					rt.Fatalf("key %d listed twice", a.Key)
				}
				seen[a.Key] = true
				if a.Task.IsDone() {
					rt.Fatalf("completed task listed for key %d", a.Key)
				}
			}
		}
	})
}
