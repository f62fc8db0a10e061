package directory

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Iron-Ham/keeper/internal/event"
	"github.com/Iron-Ham/keeper/internal/logging"
)

// debounceInterval coalesces the burst of events a single rewrite produces.
const debounceInterval = 50 * time.Millisecond

// Watcher publishes a LogChangedEvent whenever the log file changes on
// disk. It watches the parent directory because an atomic rewrite replaces
// the file and would drop a watch on the file itself.
type Watcher struct {
	watcher *fsnotify.Watcher
	path    string
	bus     *event.Bus
	logger  *logging.Logger

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewWatcher creates a Watcher for the log at path. Call Start to begin
// delivering events and Stop to release the underlying watcher.
func NewWatcher(path string, bus *event.Bus, logger *logging.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve log path: %w", err)
	}
	if logger == nil {
		logger = logging.NopLogger()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	return &Watcher{
		watcher: fw,
		path:    abs,
		bus:     bus,
		logger:  logger.WithResource(resourceName),
		stopCh:  make(chan struct{}),
	}, nil
}

// Start begins watching in a background goroutine.
func (w *Watcher) Start() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.watchLoop()
	}()
}

// Stop ends the watch loop and waits for it to exit. It is safe to call
// more than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.stopCh)
		err = w.watcher.Close()
		w.wg.Wait()
	})
	return err
}

func (w *Watcher) watchLoop() {
	debounce := time.NewTimer(debounceInterval)
	debounce.Stop()
	var pending fsnotify.Op

	for {
		select {
		case <-w.stopCh:
			debounce.Stop()
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			pending |= ev.Op
			debounce.Reset(debounceInterval)

		case <-debounce.C:
			if pending == 0 {
				continue
			}
			op := pending.String()
			pending = 0
			w.logger.Debug("log changed on disk", "path", w.path, "op", op)
			w.bus.Publish(event.NewLogChangedEvent(w.path, op))

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", "path", w.path, "error", err)
		}
	}
}
