// Package watch scans files as they appear in watched directories.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"

	"github.com/jackzampolin/isbnscan/internal/batch"
)

// Defaults for Config.
const (
	DefaultSettle         = 500 * time.Millisecond
	DefaultSettleAttempts = 120
)

var errNotSettled = errors.New("file is still growing")

// Config configures a Watcher.
type Config struct {
	Dirs []string
	// Settle is the interval between size checks. A file is scanned once
	// two consecutive checks report the same size.
	Settle         time.Duration
	SettleAttempts uint
	Workers        int
}

// Handler receives one scanned file. Calls are serialized.
type Handler func(batch.Item)

// Watcher runs a Finder on every regular file created or written under
// its directories, including directories created while it runs.
type Watcher struct {
	cfg    Config
	logger *slog.Logger

	mu     sync.RWMutex
	finder batch.Finder

	pendingMu sync.Mutex
	pending   map[string]struct{}

	handleMu sync.Mutex
	ready    chan struct{}
}

// New creates a Watcher.
func New(f batch.Finder, cfg Config, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Settle <= 0 {
		cfg.Settle = DefaultSettle
	}
	if cfg.SettleAttempts == 0 {
		cfg.SettleAttempts = DefaultSettleAttempts
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Watcher{
		cfg:     cfg,
		logger:  logger,
		finder:  f,
		pending: make(map[string]struct{}),
		ready:   make(chan struct{}),
	}
}

// SetFinder swaps the Finder used for files queued from now on.
func (w *Watcher) SetFinder(f batch.Finder) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.finder = f
}

func (w *Watcher) currentFinder() batch.Finder {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.finder
}

// Ready is closed once the initial directories are being watched.
func (w *Watcher) Ready() <-chan struct{} {
	return w.ready
}

// Run watches until ctx is done. It returns nil on cancellation.
func (w *Watcher) Run(ctx context.Context, handle Handler) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fw.Close()

	for _, dir := range w.cfg.Dirs {
		if err := w.addTree(fw, dir, nil); err != nil {
			return err
		}
	}
	close(w.ready)

	queue := make(chan string, 64)
	g, gctx := errgroup.WithContext(ctx)
	for range w.cfg.Workers {
		g.Go(func() error {
			w.work(gctx, queue, handle)
			return nil
		})
	}

	enqueue := func(path string) {
		w.pendingMu.Lock()
		if _, ok := w.pending[path]; ok {
			w.pendingMu.Unlock()
			return
		}
		w.pending[path] = struct{}{}
		w.pendingMu.Unlock()

		select {
		case queue <- path:
		case <-gctx.Done():
		}
	}

loop:
	for {
		select {
		case <-gctx.Done():
			break loop
		case err, ok := <-fw.Errors:
			if !ok {
				break loop
			}
			w.logger.Warn("watch error", "error", err)
		case ev, ok := <-fw.Events:
			if !ok {
				break loop
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if hidden(ev.Name) {
				continue
			}
			info, err := os.Stat(ev.Name)
			if err != nil {
				continue
			}
			switch {
			case info.IsDir():
				if err := w.addTree(fw, ev.Name, enqueue); err != nil {
					w.logger.Warn("cannot watch new directory", "path", ev.Name, "error", err)
				}
			case info.Mode().IsRegular():
				enqueue(ev.Name)
			}
		}
	}

	close(queue)
	_ = g.Wait()
	return nil
}

func (w *Watcher) work(ctx context.Context, queue <-chan string, handle Handler) {
	for path := range queue {
		if ctx.Err() != nil {
			continue
		}
		w.process(ctx, path, handle)

		w.pendingMu.Lock()
		delete(w.pending, path)
		w.pendingMu.Unlock()
	}
}

func (w *Watcher) process(ctx context.Context, path string, handle Handler) {
	logger := w.logger.With("path", path)
	if err := w.waitSettled(ctx, path); err != nil {
		logger.Debug("skipping file", "error", err)
		return
	}

	start := time.Now()
	res, err := w.currentFinder().Find(ctx, path)
	if ctx.Err() != nil {
		return
	}
	item := batch.Item{Path: path, Result: res, Err: err, Duration: time.Since(start)}
	if err != nil {
		item.Error = err.Error()
		logger.Warn("scan failed", "error", err)
	}

	w.handleMu.Lock()
	defer w.handleMu.Unlock()
	handle(item)
}

// waitSettled polls path until its size stops changing.
func (w *Watcher) waitSettled(ctx context.Context, path string) error {
	last := int64(-1)
	return retry.Do(
		func() error {
			info, err := os.Stat(path)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			if !info.Mode().IsRegular() {
				return retry.Unrecoverable(fmt.Errorf("%s is not a regular file", path))
			}
			if size := info.Size(); size != last {
				last = size
				return errNotSettled
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(w.cfg.SettleAttempts),
		retry.Delay(w.cfg.Settle),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
}

// addTree watches root and every non-hidden directory below it. When
// enqueue is set, regular files already present are queued.
func (w *Watcher) addTree(fw *fsnotify.Watcher, root string, enqueue func(string)) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path != root && hidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		switch {
		case d.IsDir():
			if err := fw.Add(path); err != nil {
				return fmt.Errorf("failed to watch %s: %w", path, err)
			}
			w.logger.Debug("watching", "dir", path)
		case d.Type().IsRegular() && enqueue != nil:
			enqueue(path)
		}
		return nil
	})
}

func hidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
