package packager

import (
	"context"
	"time"

	"github.com/GriffinCanCode/AdminConsole/backend/internal/domain/descriptor"
	"github.com/GriffinCanCode/AdminConsole/backend/internal/domain/modfs"
	"github.com/GriffinCanCode/AdminConsole/backend/internal/domain/registry"
	"github.com/GriffinCanCode/AdminConsole/backend/internal/domain/security"
	"github.com/GriffinCanCode/AdminConsole/backend/internal/shared/paths"
	"github.com/GriffinCanCode/AdminConsole/backend/internal/shared/types"
	"github.com/GriffinCanCode/AdminConsole/backend/internal/shared/utils"
	"go.uber.org/zap"
)

// DefaultImportTimeout bounds the file write of one import
const DefaultImportTimeout = 30 * time.Second

// Options configures a Packager
type Options struct {
	ImportTimeout time.Duration
	MaxBytes      int64 // largest accepted package; 0 disables the check
}

// ImportOptions controls one import
type ImportOptions struct {
	Mode     types.ImportMode
	Override bool // allow reusing a removed id under different content
}

// Packager exports and imports module packages
type Packager struct {
	store     *registry.Store
	area      *modfs.FS
	parser    *descriptor.Parser
	validator *security.Validator
	hasher    *utils.Hasher
	opts      Options
	now       func() time.Time
	logger    *zap.Logger
}

// New creates a packager
func New(store *registry.Store, area *modfs.FS, parser *descriptor.Parser, validator *security.Validator, opts Options, logger *zap.Logger) *Packager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if parser == nil {
		parser = descriptor.NewParser()
	}
	if opts.ImportTimeout <= 0 {
		opts.ImportTimeout = DefaultImportTimeout
	}
	return &Packager{
		store:     store,
		area:      area,
		parser:    parser,
		validator: validator,
		hasher:    utils.DefaultHasher(),
		opts:      opts,
		now:       time.Now,
		logger:    logger,
	}
}

// Export returns the module's current descriptor and file set as a package
func (p *Packager) Export(ctx context.Context, id string) (types.Package, error) {
	rec, err := p.store.Get(id)
	if err != nil {
		return types.Package{}, err
	}
	if rec.State == types.StateRemoved {
		return types.Package{}, types.NewError(types.KindRemoved, id, "module has been removed")
	}
	if rec.Missing {
		return types.Package{}, types.NewError(types.KindNotFound, id, "module directory is missing")
	}

	files, err := p.area.ReadTree(ctx, id)
	if err != nil {
		return types.Package{}, err
	}

	desc, _, err := p.parser.ParseFiles(ctx, files)
	if err != nil {
		return types.Package{}, err
	}
	if desc.ID != id {
		return types.Package{}, types.NewError(types.KindParseError, id, "descriptor id %q does not match module", desc.ID)
	}

	pkg := types.Package{
		Descriptor: desc,
		Files:      files,
		Digest:     p.hasher.ManifestDigest(files),
	}

	p.logger.Info("Module exported",
		zap.String("module", id),
		zap.Int("files", len(files)),
		zap.String("digest", utils.ShortHash(pkg.Digest)))
	return pkg, nil
}

// Import verifies, validates and installs a package. The returned record is
// in state validated. Every gate runs before the first byte is written.
func (p *Packager) Import(ctx context.Context, pkg types.Package, opts ImportOptions) (types.Record, error) {
	id := pkg.Descriptor.ID
	if !opts.Mode.Valid() {
		return types.Record{}, types.NewError(types.KindInvalid, id, "unknown import mode %q", opts.Mode)
	}
	if err := paths.ValidateModuleID(id); err != nil {
		return types.Record{}, types.InvalidError(id, []types.Violation{{
			Kind: types.ViolationIdentity, Subject: id, Message: err.Error(),
		}})
	}
	if p.opts.MaxBytes > 0 && pkg.Size() > p.opts.MaxBytes {
		return types.Record{}, types.NewError(types.KindInvalid, id, "package exceeds %d bytes", p.opts.MaxBytes)
	}

	// 1. tamper check
	digest := p.hasher.ManifestDigest(pkg.Files)
	if digest != pkg.Digest {
		return types.Record{}, types.NewError(types.KindCorrupt, id, "digest mismatch: declared %s, computed %s",
			utils.ShortHash(pkg.Digest), utils.ShortHash(digest))
	}

	// the descriptor inside the files is authoritative
	desc, _, err := p.parser.ParseFiles(ctx, pkg.Files)
	if err != nil {
		return types.Record{}, err
	}
	if desc.ID != id {
		return types.Record{}, types.InvalidError(id, []types.Violation{{
			Kind:    types.ViolationDescriptor,
			Subject: desc.ID,
			Message: "descriptor file id does not match package descriptor id",
		}})
	}

	// 2. existence and mode
	existing, err := p.store.Get(id)
	exists := err == nil
	if err != nil && types.KindOf(err) != types.KindNotFound {
		return types.Record{}, err
	}
	if exists {
		if opts.Mode == types.ModeRejectIfExists {
			return types.Record{}, types.NewError(types.KindConflict, id, "module already exists")
		}
		if existing.State == types.StateRemoved && existing.ContentHash != digest && !opts.Override {
			return types.Record{}, types.NewError(types.KindConflict, id,
				"module id was removed; importing different content under it requires override")
		}
	}

	// 3. policy
	env := security.Env{Records: p.store.List(registry.Except(id))}
	result := p.validator.Validate(desc, pkg.Files, env)
	for _, path := range pkg.Paths() {
		if p.area.Ignored(path) {
			result.Add(types.ViolationPath, path, "path matches an ignore pattern of the module area")
		}
	}
	if !result.OK {
		return types.Record{}, types.InvalidError(id, result.Violations)
	}

	// 4. atomic write
	writeCtx, cancel := context.WithTimeout(ctx, p.opts.ImportTimeout)
	defer cancel()
	if err := p.area.Write(writeCtx, id, pkg.Files); err != nil {
		return types.Record{}, err
	}
	if p.area.HasTombstone(id) {
		if err := p.area.PurgeTombstone(id); err != nil {
			p.logger.Warn("Failed to purge tombstone of re-imported module", zap.String("module", id), zap.Error(err))
		}
	}

	// 5. record
	rec := types.Record{
		Descriptor:    desc,
		State:         types.StateValidated,
		ContentHash:   digest,
		LastScannedAt: p.now(),
	}
	if exists {
		rec.LastActivatedAt = existing.LastActivatedAt
	}
	saved, err := p.store.Upsert(rec)
	if err != nil {
		return types.Record{}, err
	}

	p.logger.Info("Module imported",
		zap.String("module", id),
		zap.String("mode", string(opts.Mode)),
		zap.Bool("replaced", exists),
		zap.String("digest", utils.ShortHash(digest)))
	return saved, nil
}
