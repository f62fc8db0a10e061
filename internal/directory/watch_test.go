package directory

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Iron-Ham/keeper/internal/event"
)

func TestWatcher_PublishesLogChanges(t *testing.T) {
	bus := event.NewBus()
	changes := make(chan event.LogChangedEvent, 16)
	bus.Subscribe(event.TypeLogChanged, func(e event.Event) {
		changes <- e.(event.LogChangedEvent)
	})

	d := openTemp(t)
	w, err := NewWatcher(d.Path(), bus, nil)
	require.NoError(t, err)
	w.Start()
	t.Cleanup(func() { _ = w.Stop() })

	abs, err := filepath.Abs(d.Path())
	require.NoError(t, err)
	waitForChange := func(after string) {
		t.Helper()
		select {
		case ev := <-changes:
			require.Equal(t, abs, ev.Path)
			require.NotEmpty(t, ev.Op)
		case <-time.After(5 * time.Second):
			require.FailNow(t, "no log change event after "+after)
		}
	}

	require.NoError(t, d.Upsert(context.Background(), "Smith", "555-1234"))
	waitForChange("upsert")

	// Let the debounce window close so the delete is reported separately.
	time.Sleep(2 * debounceInterval)
	for len(changes) > 0 {
		<-changes
	}
	require.NoError(t, d.Delete(context.Background(), "Smith"))
	waitForChange("delete")
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	bus := event.NewBus()
	changes := make(chan event.Event, 16)
	bus.SubscribeAll(func(e event.Event) { changes <- e })

	dir := t.TempDir()
	w, err := NewWatcher(filepath.Join(dir, "database.txt"), bus, nil)
	require.NoError(t, err)
	w.Start()
	t.Cleanup(func() { _ = w.Stop() })

	other, err := Open(filepath.Join(dir, "other.txt"))
	require.NoError(t, err)
	require.NoError(t, other.Upsert(context.Background(), "Brown", "555-0000"))

	select {
	case ev := <-changes:
		require.FailNow(t, "unexpected event", "%s", ev.EventType())
	case <-time.After(4 * debounceInterval):
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	w, err := NewWatcher(filepath.Join(t.TempDir(), "database.txt"), nil, nil)
	require.NoError(t, err)
	w.Start()
	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())
}

// lockAsync acquires fl on another goroutine and reports the result.
func lockAsync(fl *FileLock) <-chan error {
	acquired := make(chan error, 1)
	go func() { acquired <- fl.Lock() }()
	return acquired
}

// requireBlocked fails if acquired yields within a short window.
func requireBlocked(t *testing.T, acquired <-chan error, msg string) {
	t.Helper()
	select {
	case err := <-acquired:
		require.FailNow(t, msg, "Lock returned early with %v", err)
	case <-time.After(50 * time.Millisecond):
	}
}

// requireAcquired waits for acquired to yield a successful lock.
func requireAcquired(t *testing.T, acquired <-chan error) {
	t.Helper()
	select {
	case err := <-acquired:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		require.FailNow(t, "Lock still blocked after release")
	}
}

func TestFileLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "database.txt.lock")
	a := NewFileLock(path)
	b := NewFileLock(path)

	require.NoError(t, a.Lock())
	require.Error(t, a.Lock(), "re-acquiring a held lock")

	acquired := lockAsync(b)
	requireBlocked(t, acquired, "exclusive lock should block a second holder")

	require.NoError(t, a.Unlock())
	requireAcquired(t, acquired)
	require.NoError(t, b.Unlock())
	require.NoError(t, b.Unlock())
}

func TestFileLock_SharedReaders(t *testing.T) {
	path := filepath.Join(t.TempDir(), "database.txt.lock")
	r1 := NewFileLock(path)
	r2 := NewFileLock(path)
	w := NewFileLock(path)

	require.NoError(t, r1.RLock())
	require.NoError(t, r2.RLock())

	acquired := lockAsync(w)
	requireBlocked(t, acquired, "shared holders should block the exclusive lock")

	require.NoError(t, r1.Unlock())
	requireBlocked(t, acquired, "one shared holder remains")

	require.NoError(t, r2.Unlock())
	requireAcquired(t, acquired)
	require.NoError(t, w.Unlock())
}
