package discovery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/GriffinCanCode/AdminConsole/backend/internal/domain/descriptor"
	"github.com/GriffinCanCode/AdminConsole/backend/internal/domain/modfs"
	"github.com/GriffinCanCode/AdminConsole/backend/internal/domain/registry"
	"github.com/GriffinCanCode/AdminConsole/backend/internal/shared/types"
	"github.com/GriffinCanCode/AdminConsole/backend/internal/shared/utils"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultWorkers bounds parallel module parsing
const DefaultWorkers = 4

// Scanner walks the module source area and reconciles it into the store
type Scanner struct {
	store   *registry.Store
	area    *modfs.FS
	parser  *descriptor.Parser
	hasher  *utils.Hasher
	workers int
	now     func() time.Time
	logger  *zap.Logger

	scanMu sync.Mutex // one scan at a time
}

// NewScanner creates a scanner
func NewScanner(store *registry.Store, area *modfs.FS, parser *descriptor.Parser, workers int, logger *zap.Logger) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if parser == nil {
		parser = descriptor.NewParser()
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Scanner{
		store:   store,
		area:    area,
		parser:  parser,
		hasher:  utils.DefaultHasher(),
		workers: workers,
		now:     time.Now,
		logger:  logger,
	}
}

// parsed is the outcome of reading one module directory
type parsed struct {
	id   string
	desc types.Descriptor
	hash string
	err  error
}

// Rediscover runs a full scan. It returns an error only when the scan as a
// whole could not finish (cancellation, unreadable root); in that case the
// store is left exactly as it was.
func (s *Scanner) Rediscover(ctx context.Context) (types.ScanSummary, error) {
	s.scanMu.Lock()
	defer s.scanMu.Unlock()

	start := s.now()
	base := s.store.Snapshot()

	ids, err := s.area.ModuleIDs()
	if err != nil {
		return types.ScanSummary{}, fmt.Errorf("failed to list module directories: %w", err)
	}
	tombstones, err := s.area.TombstoneIDs()
	if err != nil {
		return types.ScanSummary{}, fmt.Errorf("failed to list tombstones: %w", err)
	}

	live, err := s.readAll(ctx, ids, s.readLive)
	if err != nil {
		return types.ScanSummary{}, err
	}

	var missingTombs []string
	for _, tid := range tombstones {
		if _, known := base.Get(tid); !known {
			missingTombs = append(missingTombs, tid)
		}
	}
	tombs, err := s.readAll(ctx, missingTombs, s.readTombstone)
	if err != nil {
		return types.ScanSummary{}, err
	}

	// Last cancellation point: after this the diff is committed whole.
	if err := ctx.Err(); err != nil {
		return types.ScanSummary{}, err
	}

	plan := s.diff(base, live, tombs, start)
	result := s.store.CommitBatch(plan.changes)
	summary := plan.summarize(result)

	s.logger.Info("Rediscovery complete",
		zap.Int("modules", len(ids)),
		zap.Strings("discovered", summary.Discovered),
		zap.Strings("changed", summary.Changed),
		zap.Strings("removed", summary.Removed),
		zap.Int("errors", len(summary.Errors)),
		zap.Duration("duration", s.now().Sub(start)))
	return summary, nil
}

// readAll reads modules in parallel; only cancellation fails the batch
func (s *Scanner) readAll(ctx context.Context, ids []string, read func(context.Context, string) parsed) ([]parsed, error) {
	results := make([]parsed, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, moduleID := range ids {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = read(gctx, moduleID)
			if err := gctx.Err(); err != nil {
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Scanner) readLive(ctx context.Context, moduleID string) parsed {
	files, err := s.area.ReadTree(ctx, moduleID)
	if err != nil {
		return parsed{id: moduleID, err: err}
	}
	return s.parse(ctx, moduleID, files)
}

func (s *Scanner) readTombstone(ctx context.Context, moduleID string) parsed {
	files, err := s.area.ReadTombstone(ctx, moduleID)
	if err != nil {
		return parsed{id: moduleID, err: err}
	}
	p := s.parse(ctx, moduleID, files)
	if p.err != nil {
		// the id must stay reserved even if the tombstone is unreadable
		p.desc = types.Descriptor{ID: moduleID, Name: moduleID}
		p.err = nil
	}
	return p
}

func (s *Scanner) parse(ctx context.Context, moduleID string, files map[string][]byte) parsed {
	p := parsed{id: moduleID, hash: s.hasher.ManifestDigest(files)}

	name, err := descriptor.Locate(modfs.TopLevel(files))
	if err != nil {
		p.err = err
		return p
	}
	if name == "" {
		p.err = types.NewError(types.KindParseError, moduleID, "no descriptor file (expected one of %v)", descriptor.FileNames())
		return p
	}

	desc, err := s.parser.Parse(ctx, name, files[name])
	if err != nil {
		p.err = err
		return p
	}
	if desc.ID != moduleID {
		p.err = types.NewError(types.KindParseError, moduleID, "descriptor id %q does not match directory name", desc.ID)
		return p
	}
	p.desc = desc
	return p
}
