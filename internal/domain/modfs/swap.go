package modfs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/GriffinCanCode/AdminConsole/backend/internal/shared/id"
	"github.com/GriffinCanCode/AdminConsole/backend/internal/shared/paths"
	"github.com/GriffinCanCode/AdminConsole/backend/internal/shared/types"
	"go.uber.org/zap"
)

// Write replaces a module's directory with exactly the given files.
// The files are written to a staging directory first and published with a
// rename, so the module directory is always either the old or the new tree.
func (f *FS) Write(ctx context.Context, moduleID string, files map[string][]byte) error {
	if err := paths.ValidateModuleID(moduleID); err != nil {
		return types.WrapError(types.KindInvalid, moduleID, err, "invalid module id")
	}

	token := moduleID + "." + id.New()
	staging := f.layout.StagingDir(token)
	if err := f.stage(ctx, staging, files); err != nil {
		if rmErr := os.RemoveAll(staging); rmErr != nil {
			f.logger.Warn("Failed to clean staging directory", zap.String("path", staging), zap.Error(rmErr))
		}
		return err
	}

	lock := f.lock(moduleID)
	lock.Lock()
	defer lock.Unlock()

	if err := f.swap(moduleID, staging, token); err != nil {
		if rmErr := os.RemoveAll(staging); rmErr != nil {
			f.logger.Warn("Failed to clean staging directory", zap.String("path", staging), zap.Error(rmErr))
		}
		return err
	}

	f.logger.Info("Module directory swapped",
		zap.String("module", moduleID),
		zap.Int("files", len(files)))
	return nil
}

// stage writes files below dir, validating every path first
func (f *FS) stage(ctx context.Context, dir string, files map[string][]byte) error {
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}

	for rel, content := range files {
		if err := ctx.Err(); err != nil {
			return err
		}

		clean, err := paths.CleanRelative(rel)
		if err != nil {
			return types.WrapError(types.KindInvalid, "", err, "refusing to write file")
		}
		target := filepath.Join(dir, filepath.FromSlash(clean))
		if !paths.Within(dir, target) {
			return types.NewError(types.KindInvalid, "", "path %q escapes the module directory", rel)
		}

		if err := os.MkdirAll(filepath.Dir(target), dirPerm); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", clean, err)
		}
		if err := writeFileSync(target, content); err != nil {
			return fmt.Errorf("failed to write %s: %w", clean, err)
		}
	}
	return nil
}

// swap publishes a staging directory as the module directory.
// The caller holds the module's write lock.
func (f *FS) swap(moduleID, staging, token string) error {
	target := f.layout.ModuleDir(moduleID)
	trash := f.layout.TrashDir(token)

	hadTarget := true
	if err := os.Rename(target, trash); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to move current module aside: %w", err)
		}
		hadTarget = false
	}

	if err := os.Rename(staging, target); err != nil {
		if hadTarget {
			if rbErr := os.Rename(trash, target); rbErr != nil {
				f.logger.Error("Failed to restore module after swap failure",
					zap.String("module", moduleID), zap.Error(rbErr))
			}
		}
		return fmt.Errorf("failed to publish staged module: %w", err)
	}

	if hadTarget {
		if err := os.RemoveAll(trash); err != nil {
			f.logger.Warn("Failed to remove replaced module", zap.String("path", trash), zap.Error(err))
		}
	}
	return nil
}

// Tombstone moves a live module directory to .removed/<id>, replacing any
// older tombstone of the same id. When the live directory is already gone
// the fallback files become the tombstone, so the id stays reserved across
// restarts. undo puts the module directory back where it was.
func (f *FS) Tombstone(ctx context.Context, moduleID string, fallback map[string][]byte) (undo func() error, err error) {
	if err := paths.ValidateModuleID(moduleID); err != nil {
		return nil, types.WrapError(types.KindInvalid, moduleID, err, "invalid module id")
	}

	lock := f.lock(moduleID)
	lock.Lock()
	defer lock.Unlock()

	src := f.layout.ModuleDir(moduleID)
	dst := f.layout.TombstoneDir(moduleID)

	_, statErr := os.Stat(src)
	missing := errors.Is(statErr, fs.ErrNotExist)
	if missing && len(fallback) == 0 {
		return nil, types.NewError(types.KindInvalid, moduleID, "module directory is missing and no tombstone content was given")
	}

	if err := os.MkdirAll(f.layout.TombstonesDir(), dirPerm); err != nil {
		return nil, fmt.Errorf("failed to create tombstone directory: %w", err)
	}
	if err := os.RemoveAll(dst); err != nil {
		return nil, fmt.Errorf("failed to clear old tombstone: %w", err)
	}

	if missing {
		staging := f.layout.StagingDir(moduleID + "." + id.New())
		if err := f.stage(ctx, staging, fallback); err != nil {
			if rmErr := os.RemoveAll(staging); rmErr != nil {
				f.logger.Warn("Failed to clean staging directory", zap.String("path", staging), zap.Error(rmErr))
			}
			return nil, err
		}
		if err := os.Rename(staging, dst); err != nil {
			_ = os.RemoveAll(staging)
			return nil, fmt.Errorf("failed to publish tombstone: %w", err)
		}
		f.logger.Warn("Module directory missing; tombstone written from record", zap.String("module", moduleID))
		return func() error {
			return f.PurgeTombstone(moduleID)
		}, nil
	}

	if err := os.Rename(src, dst); err != nil {
		return nil, fmt.Errorf("failed to move module to tombstone: %w", err)
	}

	f.logger.Info("Module tombstoned", zap.String("module", moduleID))
	return func() error {
		lock.Lock()
		defer lock.Unlock()
		if err := os.Rename(dst, src); err != nil {
			return fmt.Errorf("failed to restore module from tombstone: %w", err)
		}
		f.logger.Info("Module tombstone rolled back", zap.String("module", moduleID))
		return nil
	}, nil
}

// HasTombstone reports whether a removed module left a tombstone
func (f *FS) HasTombstone(moduleID string) bool {
	info, err := os.Stat(f.layout.TombstoneDir(moduleID))
	return err == nil && info.IsDir()
}

// PurgeTombstone deletes a removed module's tombstone
func (f *FS) PurgeTombstone(moduleID string) error {
	if err := paths.ValidateModuleID(moduleID); err != nil {
		return types.WrapError(types.KindInvalid, moduleID, err, "invalid module id")
	}
	if err := os.RemoveAll(f.layout.TombstoneDir(moduleID)); err != nil {
		return fmt.Errorf("failed to purge tombstone: %w", err)
	}
	return nil
}

// RecoveryReport lists what Recover cleaned up
type RecoveryReport struct {
	StagingRemoved []string `json:"staging_removed"`
	Restored       []string `json:"restored"`
	TrashRemoved   []string `json:"trash_removed"`
}

// Recover finishes or rolls back swaps interrupted by a crash.
// Staging directories are discarded; a trash directory is renamed back
// when its module directory is missing and deleted otherwise.
func (f *FS) Recover() (RecoveryReport, error) {
	var report RecoveryReport

	entries, err := os.ReadDir(f.layout.Root)
	if err != nil {
		return report, fmt.Errorf("failed to read module root: %w", err)
	}

	for _, entry := range entries {
		name := entry.Name()
		full := filepath.Join(f.layout.Root, name)

		switch {
		case strings.HasPrefix(name, paths.StagingPrefix):
			if err := os.RemoveAll(full); err != nil {
				return report, fmt.Errorf("failed to remove %s: %w", name, err)
			}
			report.StagingRemoved = append(report.StagingRemoved, name)

		case strings.HasPrefix(name, paths.TrashPrefix):
			moduleID := trashTarget(name)
			if moduleID == "" {
				f.logger.Warn("Unrecognised trash directory left in place", zap.String("path", full))
				continue
			}
			if f.Exists(moduleID) {
				if err := os.RemoveAll(full); err != nil {
					return report, fmt.Errorf("failed to remove %s: %w", name, err)
				}
				report.TrashRemoved = append(report.TrashRemoved, name)
				continue
			}
			if err := os.Rename(full, f.layout.ModuleDir(moduleID)); err != nil {
				return report, fmt.Errorf("failed to restore %s: %w", moduleID, err)
			}
			report.Restored = append(report.Restored, moduleID)
		}
	}

	if len(report.StagingRemoved)+len(report.Restored)+len(report.TrashRemoved) > 0 {
		f.logger.Info("Recovered module area",
			zap.Strings("staging_removed", report.StagingRemoved),
			zap.Strings("restored", report.Restored),
			zap.Strings("trash_removed", report.TrashRemoved))
	}
	return report, nil
}

// trashTarget extracts the module id from ".trash-<id>.<ulid>"
func trashTarget(name string) string {
	token := strings.TrimPrefix(name, paths.TrashPrefix)
	i := strings.LastIndexByte(token, '.')
	if i <= 0 {
		return ""
	}
	moduleID := token[:i]
	if paths.ValidateModuleID(moduleID) != nil || !id.IsValid(token[i+1:]) {
		return ""
	}
	return moduleID
}

func writeFileSync(path string, content []byte) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, filePerm)
	if err != nil {
		return err
	}
	if _, err := file.Write(content); err != nil {
		file.Close()
		return err
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
