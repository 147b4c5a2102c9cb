package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/gonewton/newton/internal/logging"
)

// DefaultDebounce collapses bursts of events, such as an editor writing a
// plan in several steps, into one wake-up.
const DefaultDebounce = 500 * time.Millisecond

// Watcher signals when plans arrive in a queue's todo directory.
type Watcher struct {
	dir      string
	debounce time.Duration
	wake     chan struct{}

	mu    sync.Mutex
	timer *time.Timer
}

// NewWatcher creates a watcher for q's todo directory.
func NewWatcher(q *Queue) *Watcher {
	return &Watcher{
		dir:      q.Dir(StateTodo),
		debounce: DefaultDebounce,
		wake:     make(chan struct{}, 1),
	}
}

// SetDebounce sets the quiet period before a wake-up is delivered.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.debounce = d
}

// Wake delivers at most one pending token; tokens never queue up.
func (w *Watcher) Wake() <-chan struct{} {
	return w.wake
}

// Start watches until ctx is cancelled. It returns nil on cancellation and
// an error only when the watch cannot be set up.
func (w *Watcher) Start(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	logging.Debug(fmt.Sprintf("Watching %s for new plans", w.dir))

	for {
		select {
		case <-ctx.Done():
			w.stopTimer()
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)
		case werr, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logging.Warn(fmt.Sprintf("Plan watcher: %v", werr))
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.notify)
}

func (w *Watcher) notify() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}
