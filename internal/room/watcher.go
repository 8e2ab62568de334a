package room

import (
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 500 * time.Millisecond

// dirWatcher triggers a re-merge when replicated log files land in the room
// directory. Events are debounced: external sync tools tend to write in
// bursts.
type dirWatcher struct {
	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	wg      sync.WaitGroup

	mu       sync.Mutex
	debounce *time.Timer
	onChange func()
}

func newDirWatcher(logsDir string, onChange func()) (*dirWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(logsDir); err != nil {
		_ = watcher.Close()
		return nil, err
	}

	w := &dirWatcher{
		watcher:  watcher,
		stopCh:   make(chan struct{}),
		onChange: onChange,
	}
	w.wg.Add(1)
	go w.loop()
	return w, nil
}

func (w *dirWatcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)
		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			// Watch errors are non-fatal; the periodic tail pump still
			// picks up growth.
		}
	}
}

func (w *dirWatcher) handle(event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return
	}
	if !strings.HasSuffix(event.Name, ".jsonl") {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.debounce = time.AfterFunc(watchDebounce, func() {
		select {
		case <-w.stopCh:
			return
		default:
		}
		w.onChange()
	})
}

func (w *dirWatcher) close() {
	close(w.stopCh)
	w.mu.Lock()
	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.mu.Unlock()
	_ = w.watcher.Close()
	w.wg.Wait()
}
