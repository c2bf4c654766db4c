package services

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"conntree/internal/logging"
)

const DefaultDebounce = 300 * time.Millisecond

var ErrWatcherStarted = errors.New("watcher already started")

// PuttyWatcher re-imports the PuTTY session directory whenever it changes.
type PuttyWatcher struct {
	source   PuttySource
	dir      string
	debounce time.Duration
	onImport func(ImportResult)
	onError  func(error)
	logger   *slog.Logger

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	timer   *time.Timer
	started bool
}

type WatcherOption func(*PuttyWatcher)

func WithDebounce(duration time.Duration) WatcherOption {
	return func(watcher *PuttyWatcher) {
		watcher.debounce = duration
	}
}

func WithOnImport(fn func(ImportResult)) WatcherOption {
	return func(watcher *PuttyWatcher) {
		watcher.onImport = fn
	}
}

func WithOnError(fn func(error)) WatcherOption {
	return func(watcher *PuttyWatcher) {
		watcher.onError = fn
	}
}

func WithWatcherLogger(logger *slog.Logger) WatcherOption {
	return func(watcher *PuttyWatcher) {
		watcher.logger = logger
	}
}

func NewPuttyWatcher(source PuttySource, dir string, opts ...WatcherOption) *PuttyWatcher {
	watcher := &PuttyWatcher{
		source:   source,
		dir:      cleanPath(dir),
		debounce: DefaultDebounce,
		onImport: func(ImportResult) {},
		onError:  func(error) {},
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(watcher)
	}
	return watcher
}

// Start watches the directory until ctx is done or Stop is called. A missing
// directory is created so sessions saved later are picked up.
func (watcher *PuttyWatcher) Start(ctx context.Context) error {
	watcher.mu.Lock()
	defer watcher.mu.Unlock()
	if watcher.started {
		return ErrWatcherStarted
	}
	if err := os.MkdirAll(watcher.dir, 0o700); err != nil {
		return err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(watcher.dir); err != nil {
		fsw.Close()
		return err
	}
	watchCtx, cancel := context.WithCancel(ctx)
	watcher.watcher = fsw
	watcher.cancel = cancel
	watcher.started = true
	go watcher.loop(watchCtx, fsw)
	watcher.logger.Debug("watching putty sessions", "dir", watcher.dir)
	return nil
}

func (watcher *PuttyWatcher) Stop() {
	watcher.mu.Lock()
	defer watcher.mu.Unlock()
	if !watcher.started {
		return
	}
	watcher.cancel()
	watcher.watcher.Close()
	if watcher.timer != nil {
		watcher.timer.Stop()
	}
	watcher.started = false
}

func (watcher *PuttyWatcher) loop(ctx context.Context, fsw *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				watcher.trigger(ctx)
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			watcher.onError(err)
		}
	}
}

func (watcher *PuttyWatcher) trigger(ctx context.Context) {
	watcher.mu.Lock()
	defer watcher.mu.Unlock()
	if watcher.timer != nil {
		watcher.timer.Stop()
	}
	watcher.timer = time.AfterFunc(watcher.debounce, func() {
		if ctx.Err() != nil {
			return
		}
		result, err := watcher.source.Import(ctx)
		if err != nil {
			watcher.onError(err)
			return
		}
		watcher.logger.Debug("putty sessions reloaded", "count", len(result.Sessions))
		watcher.onImport(result)
	})
}
