// Package watch triggers rediscovery when the module source area changes.
//
// Events are coalesced over a debounce window so an editor save or a
// directory swap fires one rescan. Dot-directories (staging, trash,
// tombstones, VCS metadata) are never watched.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is the quiet period before a rescan fires
const DefaultDebounce = 500 * time.Millisecond

// Config holds the parameters for a Watcher
type Config struct {
	Root     string
	Ignore   []string // doublestar globs relative to Root
	Debounce time.Duration
	// OnChange runs after the debounce window closes with the changed paths
	OnChange func(ctx context.Context, changed []string) error
}

// Watcher monitors the module root and fires a debounced callback
type Watcher struct {
	cfg      Config
	fsw      *fsnotify.Watcher
	root     string
	debounce time.Duration
	started  atomic.Bool
	logger   *zap.Logger
}

// New creates a watcher and registers every non-ignored directory under Root
func New(cfg Config, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("watch: resolve root: %w", err)
	}
	for _, pattern := range cfg.Ignore {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("watch: invalid ignore pattern %q", pattern)
		}
	}

	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create watcher: %w", err)
	}

	w := &Watcher{
		cfg:      cfg,
		fsw:      fsw,
		root:     root,
		debounce: debounce,
		logger:   logger,
	}
	if err := w.addDirectories(); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

// Run blocks until ctx is cancelled. It must be called once.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return fmt.Errorf("watch: Run called more than once")
	}

	var (
		mu      sync.Mutex
		pending = make(map[string]struct{})
		timer   *time.Timer
		running atomic.Bool
	)

	fire := func() {
		if ctx.Err() != nil {
			return
		}
		if !running.CompareAndSwap(false, true) {
			// a rescan is in flight; try again after another window
			mu.Lock()
			if timer != nil {
				timer.Reset(w.debounce)
			}
			mu.Unlock()
			return
		}
		defer running.Store(false)

		mu.Lock()
		if len(pending) == 0 {
			mu.Unlock()
			return
		}
		changed := make([]string, 0, len(pending))
		for rel := range pending {
			changed = append(changed, rel)
		}
		clear(pending)
		mu.Unlock()

		w.logger.Debug("Module area changed", zap.Strings("paths", changed))
		if w.cfg.OnChange != nil {
			if err := w.cfg.OnChange(ctx, changed); err != nil {
				w.logger.Warn("Watch callback failed", zap.Error(err))
			}
		}
	}

	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
		if err := w.fsw.Close(); err != nil {
			w.logger.Warn("Failed to close watcher", zap.Error(err))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return fmt.Errorf("watch: event channel closed")
			}
			rel, err := filepath.Rel(w.root, evt.Name)
			if err != nil || w.Ignored(rel) {
				continue
			}
			if evt.Has(fsnotify.Create) {
				w.maybeAddDir(evt.Name)
			}

			mu.Lock()
			pending[filepath.ToSlash(rel)] = struct{}{}
			if timer == nil {
				timer = time.AfterFunc(w.debounce, fire)
			} else {
				timer.Reset(w.debounce)
			}
			mu.Unlock()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return fmt.Errorf("watch: error channel closed")
			}
			w.logger.Warn("Watcher error", zap.Error(err))
		}
	}
}

// Ignored reports whether a root-relative path is excluded
func (w *Watcher) Ignored(rel string) bool {
	rel = filepath.ToSlash(rel)
	if rel == "." {
		return false
	}
	for _, part := range strings.Split(rel, "/") {
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	for _, pattern := range w.cfg.Ignore {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

func (w *Watcher) addDirectories() error {
	err := filepath.WalkDir(w.root, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			w.logger.Warn("Skipping unreadable path", zap.String("path", path), zap.Error(walkErr))
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(w.root, path)
		if err != nil {
			return nil
		}
		if w.Ignored(rel) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch: add directory %q: %w", path, err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("watch: walk module root: %w", err)
	}
	return nil
}

func (w *Watcher) maybeAddDir(path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}
	// new module directories arrive whole (rename), so walk them
	_ = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(w.root, p)
		if relErr != nil || w.Ignored(rel) {
			return filepath.SkipDir
		}
		if addErr := w.fsw.Add(p); addErr != nil {
			w.logger.Warn("Failed to watch new directory", zap.String("path", p), zap.Error(addErr))
		}
		return nil
	})
}
