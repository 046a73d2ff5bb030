package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"forge/internal/clock"
	"forge/internal/state"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is how long the watcher waits for writes to settle
const DefaultDebounce = 100 * time.Millisecond

// SeedHandler receives the freshly parsed seed after a change
type SeedHandler func(seed state.State)

// SeedWatcher reloads a seed file when it changes on disk.
// The parent directory is watched so editors that replace the file are seen.
type SeedWatcher struct {
	path     string
	handler  SeedHandler
	logger   *zap.Logger
	debounce time.Duration
	clock    clock.Clock
	pending  clock.Timer

	watcher  *fsnotify.Watcher
	done     chan struct{}
	stopOnce sync.Once
}

// NewSeedWatcher creates a watcher for the seed file at path.
// Call Start to begin watching.
func NewSeedWatcher(path string, handler SeedHandler, logger *zap.Logger) (*SeedWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve seed path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	return &SeedWatcher{
		path:     abs,
		handler:  handler,
		logger:   logger,
		debounce: DefaultDebounce,
		clock:    clock.NewReal(),
		watcher:  watcher,
		done:     make(chan struct{}),
	}, nil
}

// SetDebounce overrides the debounce window. Must be called before Start.
func (w *SeedWatcher) SetDebounce(d time.Duration) {
	w.debounce = d
}

// SetClock replaces the clock driving the debounce. Must be called before Start.
func (w *SeedWatcher) SetClock(c clock.Clock) {
	w.clock = c
}

// Start begins watching. It returns once the watch is registered; events are
// processed on a background goroutine until ctx is canceled or Stop is called.
func (w *SeedWatcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.path, err)
	}

	w.logger.Info("Watching seed file", zap.String("path", w.path))
	go w.run(ctx)
	return nil
}

// Stop stops the watcher. Safe to call more than once.
func (w *SeedWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.watcher.Close()
	})
}

func (w *SeedWatcher) run(ctx context.Context) {
	defer func() {
		if w.pending != nil {
			w.pending.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			w.schedule()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Seed watcher error", zap.Error(err))
		}
	}
}

// schedule (re)starts the debounce window; only called from run
func (w *SeedWatcher) schedule() {
	if w.pending == nil {
		w.pending = w.clock.AfterFunc(w.debounce, w.reload)
		return
	}
	w.pending.Reset(w.debounce)
}

func (w *SeedWatcher) reload() {
	select {
	case <-w.done:
		return
	default:
	}

	seed, err := LoadSeed(w.path)
	if err != nil {
		w.logger.Error("Failed to reload seed", zap.String("path", w.path), zap.Error(err))
		return
	}

	w.logger.Info("Seed file changed, reloading", zap.String("path", w.path), zap.Int("fields", len(seed)))
	w.handler(seed)
}
