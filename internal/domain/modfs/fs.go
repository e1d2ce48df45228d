package modfs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/GriffinCanCode/AdminConsole/backend/internal/shared/paths"
	"github.com/GriffinCanCode/AdminConsole/backend/internal/shared/types"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"
	"go.uber.org/zap"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// DefaultIgnore lists module-relative globs never treated as module content
var DefaultIgnore = []string{".git/**", "**/.DS_Store"}

// Config configures the module source area
type Config struct {
	Root     string
	Ignore   []string // doublestar patterns, module-relative
	MaxBytes int64    // upper bound on one module tree; 0 disables the check
}

// FS is the module source area
type FS struct {
	layout   paths.Layout
	ignore   []string
	maxBytes int64
	locks    sync.Map // module id -> *sync.RWMutex
	logger   *zap.Logger
}

// New opens (and creates if needed) a module source area
func New(cfg Config, logger *zap.Logger) (*FS, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	layout, err := paths.NewLayout(cfg.Root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(layout.Root, dirPerm); err != nil {
		return nil, fmt.Errorf("failed to create module root: %w", err)
	}

	ignore := cfg.Ignore
	if ignore == nil {
		ignore = DefaultIgnore
	}
	for _, pattern := range ignore {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid ignore pattern %q", pattern)
		}
	}

	return &FS{
		layout:   layout,
		ignore:   ignore,
		maxBytes: cfg.MaxBytes,
		logger:   logger,
	}, nil
}

// Root returns the absolute module root
func (f *FS) Root() string {
	return f.layout.Root
}

// Layout returns the directory layout of the area
func (f *FS) Layout() paths.Layout {
	return f.layout
}

// Ignored reports whether a module-relative path matches an ignore glob
func (f *FS) Ignored(rel string) bool {
	for _, pattern := range f.ignore {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

// ModuleIDs lists the live module directories, sorted
func (f *FS) ModuleIDs() ([]string, error) {
	return listDirs(f.layout.Root)
}

// TombstoneIDs lists removed modules that still have a tombstone, sorted
func (f *FS) TombstoneIDs() ([]string, error) {
	ids, err := listDirs(f.layout.TombstonesDir())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return ids, err
}

// Exists reports whether a live module directory exists
func (f *FS) Exists(id string) bool {
	info, err := os.Stat(f.layout.ModuleDir(id))
	return err == nil && info.IsDir()
}

// ReadTree reads every file of a live module. It holds the module's read
// lock so the result never mixes files from before and after a swap.
func (f *FS) ReadTree(ctx context.Context, id string) (map[string][]byte, error) {
	if err := paths.ValidateModuleID(id); err != nil {
		return nil, types.WrapError(types.KindInvalid, id, err, "invalid module id")
	}

	lock := f.lock(id)
	lock.RLock()
	defer lock.RUnlock()

	return f.readDir(ctx, id, f.layout.ModuleDir(id))
}

// ReadTombstone reads every file of a removed module's tombstone
func (f *FS) ReadTombstone(ctx context.Context, id string) (map[string][]byte, error) {
	if err := paths.ValidateModuleID(id); err != nil {
		return nil, types.WrapError(types.KindInvalid, id, err, "invalid module id")
	}
	return f.readDir(ctx, id, f.layout.TombstoneDir(id))
}

func (f *FS) readDir(ctx context.Context, id, dir string) (map[string][]byte, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, types.NewError(types.KindNotFound, id, "module directory %s does not exist", dir)
		}
		return nil, fmt.Errorf("failed to stat module directory: %w", err)
	}
	if !info.IsDir() {
		return nil, types.NewError(types.KindInvalid, id, "%s is not a directory", dir)
	}

	var (
		mu    sync.Mutex
		files = make(map[string][]byte)
		total int64
	)

	conf := fastwalk.Config{Follow: false}
	err = fastwalk.Walk(&conf, dir, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			return err
		}
		if path == dir {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if f.Ignored(rel) {
			if d.IsDir() {
				return fastwalk.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return types.NewError(types.KindInvalid, id, "symlink %s is not allowed in a module tree", rel)
		}
		if !d.Type().IsRegular() {
			return types.NewError(types.KindInvalid, id, "%s is not a regular file", rel)
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", rel, err)
		}

		mu.Lock()
		defer mu.Unlock()
		total += int64(len(content))
		if f.maxBytes > 0 && total > f.maxBytes {
			return types.NewError(types.KindInvalid, id, "module tree exceeds %d bytes", f.maxBytes)
		}
		files[rel] = content
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// lock returns the read/write lock guarding one module directory
func (f *FS) lock(id string) *sync.RWMutex {
	v, _ := f.locks.LoadOrStore(id, &sync.RWMutex{})
	return v.(*sync.RWMutex)
}

func listDirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var ids []string
	for _, entry := range entries {
		if !entry.IsDir() || paths.IsInternal(entry.Name()) {
			continue
		}
		ids = append(ids, entry.Name())
	}
	sort.Strings(ids)
	return ids, nil
}

// TopLevel returns the names of files directly inside the module root
func TopLevel(files map[string][]byte) []string {
	var names []string
	for rel := range files {
		if !strings.Contains(rel, "/") {
			names = append(names, rel)
		}
	}
	sort.Strings(names)
	return names
}
