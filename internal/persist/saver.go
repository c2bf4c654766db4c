package persist

import (
	"log/slog"
	"sync"

	"conntree/internal/logging"
)

// Saver writes snapshots in the background. SaveAsync snapshots on the
// caller's goroutine; when saves pile up only the latest snapshot is written.
type Saver struct {
	path     string
	snapshot func() Document
	onError  func(error)
	logger   *slog.Logger

	writeMu sync.Mutex
	mu      sync.Mutex
	pending *Document
	writes  int
	lastErr error

	wake    chan struct{}
	stop    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

type SaverOption func(*Saver)

func WithErrorHandler(fn func(error)) SaverOption {
	return func(saver *Saver) {
		saver.onError = fn
	}
}

func WithLogger(logger *slog.Logger) SaverOption {
	return func(saver *Saver) {
		saver.logger = logger
	}
}

func NewSaver(path string, snapshot func() Document, opts ...SaverOption) *Saver {
	saver := &Saver{
		path:     path,
		snapshot: snapshot,
		onError:  func(error) {},
		logger:   logging.NewNop(),
		wake:     make(chan struct{}, 1),
		stop:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(saver)
	}
	go saver.loop()
	return saver
}

func (saver *Saver) Path() string {
	return saver.path
}

func (saver *Saver) SaveAsync() {
	doc := saver.snapshot()
	saver.mu.Lock()
	saver.pending = &doc
	saver.mu.Unlock()
	select {
	case saver.wake <- struct{}{}:
	default:
	}
}

// Flush writes any pending snapshot on the calling goroutine.
func (saver *Saver) Flush() error {
	return saver.writePending()
}

// Close flushes and stops the background writer. It is safe to call twice.
func (saver *Saver) Close() error {
	saver.once.Do(func() {
		close(saver.stop)
		<-saver.stopped
	})
	return saver.Flush()
}

func (saver *Saver) Writes() int {
	saver.mu.Lock()
	defer saver.mu.Unlock()
	return saver.writes
}

func (saver *Saver) LastError() error {
	saver.mu.Lock()
	defer saver.mu.Unlock()
	return saver.lastErr
}

func (saver *Saver) loop() {
	defer close(saver.stopped)
	for {
		select {
		case <-saver.stop:
			return
		case <-saver.wake:
			_ = saver.writePending()
		}
	}
}

// writePending serializes writers so a newer snapshot is never overwritten by
// an older one.
func (saver *Saver) writePending() error {
	saver.writeMu.Lock()
	defer saver.writeMu.Unlock()

	saver.mu.Lock()
	pending := saver.pending
	saver.pending = nil
	saver.mu.Unlock()
	if pending == nil {
		return nil
	}

	err := Save(saver.path, *pending)
	saver.mu.Lock()
	saver.lastErr = err
	if err == nil {
		saver.writes++
	}
	saver.mu.Unlock()
	if err != nil {
		saver.logger.Error("save connections", "path", saver.path, "error", err)
		saver.onError(err)
		return err
	}
	saver.logger.Debug("saved connections", "path", saver.path, "nodes", len(pending.Tree.Nodes))
	return nil
}
