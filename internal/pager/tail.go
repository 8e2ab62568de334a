package pager

import (
	"sync"
	"time"

	"github.com/coveychat/covey/internal/merge"
	"github.com/coveychat/covey/internal/types"
)

// DefaultTailInterval is the pump's polling period when no external trigger
// nudges it.
const DefaultTailInterval = 250 * time.Millisecond

// Tailer delivers each new view entry to every registered callback exactly
// once, in seq order. One Tailer exists per room; it is constructed and torn
// down explicitly, never kept in module-level state.
type Tailer struct {
	view     *merge.View
	interval time.Duration

	mu        sync.Mutex
	subs      map[int]func(types.ViewEntry)
	nextID    int
	delivered uint64
	running   bool
	stop      chan struct{}
	trigger   chan struct{}
	done      sync.WaitGroup
}

// NewTailer creates a tailer over the view. A non-positive interval falls
// back to DefaultTailInterval.
func NewTailer(view *merge.View, interval time.Duration) *Tailer {
	if interval <= 0 {
		interval = DefaultTailInterval
	}
	return &Tailer{
		view:     view,
		interval: interval,
		subs:     make(map[int]func(types.ViewEntry)),
	}
}

// Watch registers a live-tail callback and returns its unsubscribe handle.
// The handle is idempotent; when the last subscriber unsubscribes the pump
// stops and no further callbacks run.
func (t *Tailer) Watch(cb func(types.ViewEntry)) func() {
	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.subs[id] = cb
	if !t.running {
		t.running = true
		t.delivered = t.view.Len()
		t.stop = make(chan struct{})
		t.trigger = make(chan struct{}, 1)
		t.done.Add(1)
		go t.pump(t.stop, t.trigger)
	}
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { t.unsubscribe(id) })
	}
}

// Trigger nudges the pump without waiting for the next tick. Safe to call
// from merge completion or a file watcher; a no-op when nothing watches.
func (t *Tailer) Trigger() {
	t.mu.Lock()
	trigger := t.trigger
	running := t.running
	t.mu.Unlock()
	if !running {
		return
	}
	select {
	case trigger <- struct{}{}:
	default:
	}
}

// Close stops the pump and drops all subscribers.
func (t *Tailer) Close() {
	t.mu.Lock()
	t.subs = make(map[int]func(types.ViewEntry))
	t.stopLocked()
	t.mu.Unlock()
	t.done.Wait()
}

func (t *Tailer) unsubscribe(id int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.subs[id]; !ok {
		return
	}
	delete(t.subs, id)
	if len(t.subs) == 0 {
		t.stopLocked()
	}
}

func (t *Tailer) stopLocked() {
	if !t.running {
		return
	}
	t.running = false
	close(t.stop)
}

func (t *Tailer) pump(stop <-chan struct{}, trigger <-chan struct{}) {
	defer t.done.Done()
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		case <-trigger:
		}
		t.deliver(stop)
	}
}

// deliver pushes every not-yet-delivered entry to the current subscribers.
// The subscriber snapshot is taken per entry so an unsubscribe takes effect
// between deliveries.
func (t *Tailer) deliver(stop <-chan struct{}) {
	for {
		t.mu.Lock()
		if !t.running {
			t.mu.Unlock()
			return
		}
		seq := t.delivered
		if seq >= t.view.Len() {
			t.mu.Unlock()
			return
		}
		entry, ok := t.view.Get(seq)
		if !ok {
			t.mu.Unlock()
			return
		}
		t.delivered = seq + 1
		cbs := make([]func(types.ViewEntry), 0, len(t.subs))
		for _, cb := range t.subs {
			cbs = append(cbs, cb)
		}
		t.mu.Unlock()

		for _, cb := range cbs {
			select {
			case <-stop:
				return
			default:
			}
			cb(entry)
		}
	}
}
