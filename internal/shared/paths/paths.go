package paths

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// Reserved entries inside the module source area
const (
	TombstoneDir  = ".removed"
	StagingPrefix = ".staging-"
	TrashPrefix   = ".trash-"
)

// Layout resolves locations inside one module source area
type Layout struct {
	Root string
}

// NewLayout creates a layout rooted at an absolute, cleaned path
func NewLayout(root string) (Layout, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return Layout{}, fmt.Errorf("failed to resolve module root: %w", err)
	}
	return Layout{Root: filepath.Clean(abs)}, nil
}

// ModuleDir returns the live directory of a module
func (l Layout) ModuleDir(id string) string {
	return filepath.Join(l.Root, id)
}

// TombstonesDir returns the directory holding removed modules
func (l Layout) TombstonesDir() string {
	return filepath.Join(l.Root, TombstoneDir)
}

// TombstoneDir returns the tombstone directory of a removed module
func (l Layout) TombstoneDir(id string) string {
	return filepath.Join(l.Root, TombstoneDir, id)
}

// StagingDir returns a staging directory for an import in flight
func (l Layout) StagingDir(token string) string {
	return filepath.Join(l.Root, StagingPrefix+token)
}

// TrashDir returns the directory a replaced module is parked in during a swap
func (l Layout) TrashDir(token string) string {
	return filepath.Join(l.Root, TrashPrefix+token)
}

// Contains reports whether p lies inside the module root
func (l Layout) Contains(p string) bool {
	return Within(l.Root, p)
}

// IsInternal reports whether a top-level entry name belongs to the registry, not a module
func IsInternal(name string) bool {
	return strings.HasPrefix(name, ".")
}

// Within reports whether target is root itself or lies below it
func Within(root, target string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// CleanRelative validates a module-relative file path and returns its clean slash form.
// Absolute paths, drive letters, backslashes and any ".." element are rejected.
func CleanRelative(p string) (string, error) {
	if p == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.ContainsRune(p, 0) {
		return "", fmt.Errorf("path %q contains a null byte", p)
	}
	if strings.Contains(p, `\`) {
		return "", fmt.Errorf("path %q contains a backslash", p)
	}
	if path.IsAbs(p) || filepath.IsAbs(p) || filepath.VolumeName(p) != "" {
		return "", fmt.Errorf("path %q is absolute", p)
	}
	for _, elem := range strings.Split(p, "/") {
		if elem == ".." {
			return "", fmt.Errorf("path %q escapes the module directory", p)
		}
	}
	clean := path.Clean(p)
	if clean == "." {
		return "", fmt.Errorf("path %q names the module directory itself", p)
	}
	return clean, nil
}

// ValidateModuleID checks if a module id is safe for path construction
func ValidateModuleID(id string) error {
	if id == "" {
		return fmt.Errorf("module ID cannot be empty")
	}
	if filepath.IsAbs(id) {
		return fmt.Errorf("module ID cannot be an absolute path")
	}
	if filepath.Clean(id) != id || strings.ContainsAny(id, `/\`) || IsInternal(id) {
		return fmt.Errorf("module ID contains invalid path components")
	}
	return nil
}
