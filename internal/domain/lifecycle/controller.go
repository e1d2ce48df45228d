package lifecycle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/GriffinCanCode/AdminConsole/backend/internal/domain/discovery"
	"github.com/GriffinCanCode/AdminConsole/backend/internal/domain/events"
	"github.com/GriffinCanCode/AdminConsole/backend/internal/domain/modfs"
	"github.com/GriffinCanCode/AdminConsole/backend/internal/domain/packager"
	"github.com/GriffinCanCode/AdminConsole/backend/internal/domain/registry"
	"github.com/GriffinCanCode/AdminConsole/backend/internal/domain/security"
	"github.com/GriffinCanCode/AdminConsole/backend/internal/shared/paths"
	"github.com/GriffinCanCode/AdminConsole/backend/internal/shared/types"
	"github.com/GriffinCanCode/AdminConsole/backend/internal/shared/utils"
	"github.com/bytedance/sonic"
	"go.uber.org/zap"
)

// Result labels reported to Metrics
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Metrics observes controller outcomes. A nil Metrics disables observation.
type Metrics interface {
	ObserveTransition(from, to types.State, result string)
	ObserveImport(result string)
	ObserveExport(result string)
	ObserveScan(duration time.Duration, errors int)
	SetStateCounts(counts map[types.State]int)
}

// Deps are the collaborators of a Controller
type Deps struct {
	Store     *registry.Store
	Area      *modfs.FS
	Scanner   *discovery.Scanner
	Packager  *packager.Packager
	Validator *security.Validator
	Migrator  Migrator
	Bus       *events.Bus
	Metrics   Metrics
	Logger    *zap.Logger
}

// Controller runs every lifecycle operation of the module registry
type Controller struct {
	store     *registry.Store
	area      *modfs.FS
	scanner   *discovery.Scanner
	packager  *packager.Packager
	validator *security.Validator
	migrator  Migrator
	bus       *events.Bus
	metrics   Metrics
	hasher    *utils.Hasher
	now       func() time.Time
	logger    *zap.Logger
}

// NewController creates a controller
func NewController(d Deps) *Controller {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Migrator == nil {
		d.Migrator = nopMigrator{}
	}
	if d.Metrics == nil {
		d.Metrics = nopMetrics{}
	}
	return &Controller{
		store:     d.Store,
		area:      d.Area,
		scanner:   d.Scanner,
		packager:  d.Packager,
		validator: d.Validator,
		migrator:  d.Migrator,
		bus:       d.Bus,
		metrics:   d.Metrics,
		hasher:    utils.DefaultHasher(),
		now:       time.Now,
		logger:    d.Logger,
	}
}

// Store exposes the underlying store for read-only callers
func (c *Controller) Store() *registry.Store {
	return c.store
}

// Status lists every module with its lifecycle state
func (c *Controller) Status() []types.ModuleStatus {
	records := c.store.List()
	out := make([]types.ModuleStatus, 0, len(records))
	for i := range records {
		out = append(out, records[i].ToStatus())
	}
	return out
}

// Get returns the full record of one module
func (c *Controller) Get(id string) (types.Record, error) {
	return c.store.Get(id)
}

// MountTable returns routes and navigation of the active modules
func (c *Controller) MountTable() MountTable {
	return BuildMountTable(c.store.Snapshot())
}

// Start repairs interrupted swaps and builds the store from disk
func (c *Controller) Start(ctx context.Context) (types.ScanSummary, error) {
	if _, err := c.area.Recover(); err != nil {
		return types.ScanSummary{}, fmt.Errorf("failed to recover module area: %w", err)
	}
	return c.Rediscover(ctx)
}

// Rediscover reconciles the module source area into the store
func (c *Controller) Rediscover(ctx context.Context) (types.ScanSummary, error) {
	start := c.now()
	summary, err := c.scanner.Rediscover(ctx)
	if err != nil {
		c.logger.Warn("Rediscovery failed", zap.Error(err))
		return types.ScanSummary{}, err
	}

	c.metrics.ObserveScan(c.now().Sub(start), len(summary.Errors))
	c.metrics.SetStateCounts(c.store.Counts())
	if !summary.Empty() {
		c.bus.Publish(types.Event{Type: types.EventScanned})
	}
	return summary, nil
}

// Validate runs the security validator and moves a discovered module to
// validated
func (c *Controller) Validate(ctx context.Context, id string) (types.Record, error) {
	release, err := c.store.Acquire(id)
	if err != nil {
		return types.Record{}, err
	}
	defer release()

	rec, err := c.store.Get(id)
	if err != nil {
		return types.Record{}, err
	}
	if rec.State != types.StateDiscovered {
		return types.Record{}, types.NewError(types.KindConflict, id, "only discovered modules can be validated (state %s)", rec.State)
	}
	return c.validate(ctx, rec)
}

// validate runs discovered -> validated. Caller holds the lease.
func (c *Controller) validate(ctx context.Context, rec types.Record) (types.Record, error) {
	id := rec.ID()
	files, err := c.readCurrent(ctx, rec)
	if err != nil {
		c.metrics.ObserveTransition(types.StateDiscovered, types.StateValidated, resultOf(err))
		return types.Record{}, err
	}

	env := security.Env{Records: c.store.List(registry.Except(id))}
	result := c.validator.Validate(rec.Descriptor, files, env)
	if !result.OK {
		c.metrics.ObserveTransition(types.StateDiscovered, types.StateValidated, string(types.KindInvalid))
		c.logger.Info("Module failed validation",
			zap.String("module", id),
			zap.Int("violations", len(result.Violations)))
		return types.Record{}, types.InvalidError(id, result.Violations)
	}

	return c.transition(id, types.StateDiscovered, types.StateValidated)
}

// Activate makes a module's schema, routes and navigation live. A
// discovered module is validated first; a disabled module only gets the
// light permission and table re-check.
func (c *Controller) Activate(ctx context.Context, id string) (types.Record, error) {
	release, err := c.store.Acquire(id)
	if err != nil {
		return types.Record{}, err
	}
	defer release()

	rec, err := c.store.Get(id)
	if err != nil {
		return types.Record{}, err
	}

	switch rec.State {
	case types.StateActive:
		return types.Record{}, types.NewError(types.KindConflict, id, "module is already active")
	case types.StateRemoved:
		return types.Record{}, types.NewError(types.KindConflict, id, "module has been removed")
	}
	if rec.Missing {
		return types.Record{}, types.NewError(types.KindNotFound, id, "module directory is missing")
	}

	// tables held by live modules are a schema collision whatever the path in
	if err := c.checkClaims(ctx, rec); err != nil {
		c.metrics.ObserveTransition(rec.State, types.StateActive, resultOf(err))
		return types.Record{}, err
	}

	if rec.State == types.StateDiscovered {
		if rec, err = c.validate(ctx, rec); err != nil {
			return types.Record{}, err
		}
	}

	from := rec.State
	if err := c.checkDependencies(rec); err != nil {
		c.metrics.ObserveTransition(from, types.StateActive, resultOf(err))
		return types.Record{}, err
	}

	env := security.Env{Records: c.store.List(registry.Except(id))}
	if result := c.validator.ValidateLight(rec.Descriptor, env); !result.OK {
		c.metrics.ObserveTransition(from, types.StateActive, string(types.KindInvalid))
		return types.Record{}, types.InvalidError(id, result.Violations)
	}

	if from == types.StateValidated {
		if err := c.applySchema(ctx, rec); err != nil {
			c.metrics.ObserveTransition(from, types.StateActive, resultOf(err))
			return types.Record{}, err
		}
	}

	now := c.now()
	return c.transition(id, from, types.StateActive, func(r *types.Record) {
		r.LastActivatedAt = &now
	})
}

// Disable unmounts an active module and keeps its tables. Disabling a
// disabled module is a no-op.
func (c *Controller) Disable(ctx context.Context, id string) (types.Record, error) {
	release, err := c.store.Acquire(id)
	if err != nil {
		return types.Record{}, err
	}
	defer release()

	rec, err := c.store.Get(id)
	if err != nil {
		return types.Record{}, err
	}
	switch rec.State {
	case types.StateDisabled:
		return rec, nil
	case types.StateActive:
		return c.transition(id, types.StateActive, types.StateDisabled)
	default:
		return types.Record{}, types.NewError(types.KindConflict, id, "only active modules can be disabled (state %s)", rec.State)
	}
}

// Remove unmounts a module, optionally drops its tables, and tombstones its
// directory. Removing a removed module is a no-op.
func (c *Controller) Remove(ctx context.Context, id string, opts types.RemoveOptions) (types.Record, error) {
	release, err := c.store.Acquire(id)
	if err != nil {
		return types.Record{}, err
	}
	defer release()

	rec, err := c.store.Get(id)
	if err != nil {
		return types.Record{}, err
	}
	if rec.State == types.StateRemoved {
		return rec, nil
	}

	if err := c.checkDependents(id); err != nil {
		c.metrics.ObserveTransition(rec.State, types.StateRemoved, resultOf(err))
		return types.Record{}, err
	}
	if opts.DropTables && opts.Confirm != id {
		return types.Record{}, types.NewError(types.KindInvalid, id, "dropping tables requires confirm to equal the module id")
	}

	drop := opts.DropTables && len(rec.Descriptor.Database.Tables) > 0
	var down string
	if drop {
		down = c.downSQL(ctx, rec)
	}

	// the tombstone goes first; dropping tables is the one step that cannot
	// be undone
	fallback, err := tombstoneFiles(rec)
	if err != nil {
		return types.Record{}, err
	}
	undo, err := c.area.Tombstone(ctx, id, fallback)
	if err != nil {
		c.metrics.ObserveTransition(rec.State, types.StateRemoved, resultOf(err))
		return types.Record{}, err
	}

	if drop {
		if err := c.migrator.Drop(ctx, id, rec.Descriptor.Database.Tables, down); err != nil {
			c.metrics.ObserveTransition(rec.State, types.StateRemoved, ResultError)
			if undoErr := undo(); undoErr != nil {
				c.logger.Error("Failed to roll back tombstone", zap.String("module", id), zap.Error(undoErr))
			}
			return types.Record{}, fmt.Errorf("failed to drop tables of %s: %w", id, err)
		}
		c.logger.Warn("Module tables dropped",
			zap.String("module", id),
			zap.Strings("tables", rec.Descriptor.Database.Tables))
	}

	return c.transition(id, rec.State, types.StateRemoved, func(r *types.Record) {
		r.Missing = false
	})
}

// tombstoneFiles is what a tombstone holds when the module directory has
// already vanished: the record's descriptor as module.json
func tombstoneFiles(rec types.Record) (map[string][]byte, error) {
	encoded, err := sonic.ConfigStd.MarshalIndent(rec.Descriptor, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode descriptor of %s: %w", rec.Descriptor.ID, err)
	}
	return map[string][]byte{"module.json": encoded}, nil
}

// Purge forgets a removed module and deletes its tombstone so the id can be
// reused
func (c *Controller) Purge(ctx context.Context, id string) error {
	release, err := c.store.Acquire(id)
	if err != nil {
		return err
	}
	defer release()

	rec, err := c.store.Get(id)
	if err != nil {
		return err
	}
	if rec.State != types.StateRemoved {
		return types.NewError(types.KindConflict, id, "only removed modules can be purged (state %s)", rec.State)
	}
	if err := c.checkDependents(id); err != nil {
		return err
	}

	if err := c.area.PurgeTombstone(id); err != nil {
		return err
	}
	if err := c.store.Delete(id); err != nil {
		return err
	}

	c.metrics.SetStateCounts(c.store.Counts())
	c.bus.Publish(types.Event{Type: types.EventPurged, ModuleID: id, From: types.StateRemoved})
	c.logger.Info("Module purged", zap.String("module", id))
	return nil
}

// Import installs a package and leaves the module validated
func (c *Controller) Import(ctx context.Context, pkg types.Package, opts packager.ImportOptions) (types.Record, error) {
	id := pkg.Descriptor.ID
	if err := paths.ValidateModuleID(id); err != nil {
		c.metrics.ObserveImport(string(types.KindInvalid))
		return types.Record{}, types.InvalidError(id, []types.Violation{{
			Kind: types.ViolationIdentity, Subject: id, Message: err.Error(),
		}})
	}

	release, err := c.store.Acquire(id)
	if err != nil {
		c.metrics.ObserveImport(resultOf(err))
		return types.Record{}, err
	}
	defer release()

	var from types.State
	if prev, err := c.store.Get(id); err == nil {
		from = prev.State
	}

	rec, err := c.packager.Import(ctx, pkg, opts)
	c.metrics.ObserveImport(resultOf(err))
	if err != nil {
		return types.Record{}, err
	}

	c.metrics.SetStateCounts(c.store.Counts())
	c.bus.Publish(types.Event{Type: types.EventImported, ModuleID: id, From: from, State: rec.State})
	return rec, nil
}

// Export returns the module as a package
func (c *Controller) Export(ctx context.Context, id string) (types.Package, error) {
	pkg, err := c.packager.Export(ctx, id)
	c.metrics.ObserveExport(resultOf(err))
	return pkg, err
}

// transition commits one compare-and-swap and reports it
func (c *Controller) transition(id string, from, to types.State, mutators ...func(*types.Record)) (types.Record, error) {
	rec, err := c.store.Transition(id, from, to, mutators...)
	c.metrics.ObserveTransition(from, to, resultOf(err))
	if err != nil {
		return types.Record{}, err
	}

	c.metrics.SetStateCounts(c.store.Counts())
	c.bus.Publish(types.Event{Type: types.EventTransition, ModuleID: id, From: from, State: to})
	c.logger.Info("Module state changed",
		zap.String("module", id),
		zap.String("from", string(from)),
		zap.String("to", string(to)))
	return rec, nil
}

// readCurrent reads the module tree and checks it is still what the record
// describes
func (c *Controller) readCurrent(ctx context.Context, rec types.Record) (map[string][]byte, error) {
	id := rec.ID()
	if rec.Missing {
		return nil, types.NewError(types.KindNotFound, id, "module directory is missing")
	}
	files, err := c.area.ReadTree(ctx, id)
	if err != nil {
		return nil, err
	}
	if digest := c.hasher.ManifestDigest(files); digest != rec.ContentHash {
		return nil, types.NewError(types.KindConflict, id, "module content changed on disk; rediscover first")
	}
	return files, nil
}

// checkClaims fails with schema_conflict when another active module or the
// storage ledger already owns one of the module's tables
func (c *Controller) checkClaims(ctx context.Context, rec types.Record) error {
	tables := rec.Descriptor.Database.Tables
	if len(tables) == 0 {
		return nil
	}
	id := rec.ID()

	claimed := make(map[string]string)
	for _, other := range c.store.List(registry.InState(types.StateActive), registry.Except(id)) {
		for _, table := range other.Descriptor.Database.Tables {
			claimed[table] = other.ID()
		}
	}

	owners, err := c.migrator.Owners(ctx)
	if err != nil {
		return fmt.Errorf("failed to read table owners: %w", err)
	}
	for table, owner := range owners {
		if owner != id {
			claimed[table] = owner
		}
	}

	var collisions []string
	for _, table := range tables {
		if owner, ok := claimed[table]; ok {
			collisions = append(collisions, fmt.Sprintf("%s (owned by %s)", table, owner))
		}
	}
	if len(collisions) > 0 {
		return types.NewError(types.KindSchemaConflict, id, "tables already exist: %s", strings.Join(collisions, ", "))
	}
	return nil
}

// checkDependencies requires every dependency to be active
func (c *Controller) checkDependencies(rec types.Record) error {
	var violations []types.Violation
	for _, dep := range rec.Descriptor.Dependencies {
		other, err := c.store.Get(dep)
		if err != nil || other.State != types.StateActive {
			violations = append(violations, types.Violation{
				Kind:    types.ViolationDependency,
				Subject: dep,
				Message: "dependency is not active",
			})
		}
	}
	if len(violations) > 0 {
		return types.InvalidError(rec.ID(), violations)
	}
	return nil
}

// checkDependents fails when a non-removed module depends on id
func (c *Controller) checkDependents(id string) error {
	dependents := c.store.List(
		registry.DependsOn(id),
		registry.NotInState(types.StateRemoved),
		registry.Except(id),
	)
	if len(dependents) == 0 {
		return nil
	}

	ids := make([]string, len(dependents))
	for i := range dependents {
		ids[i] = dependents[i].ID()
	}
	return types.NewError(types.KindHasDependents, id, "required by %s", strings.Join(ids, ", "))
}

// applySchema creates the module's tables from its schema file
func (c *Controller) applySchema(ctx context.Context, rec types.Record) error {
	id := rec.ID()
	files, err := c.readCurrent(ctx, rec)
	if err != nil {
		return err
	}

	tables := rec.Descriptor.Database.Tables
	if len(tables) == 0 {
		return nil
	}
	up, _ := SplitMigration(string(files[rec.Descriptor.SchemaPath()]))

	if err := c.migrator.Apply(ctx, id, tables, up); err != nil {
		if types.KindOf(err) == types.KindSchemaConflict {
			return err
		}
		return fmt.Errorf("failed to apply schema of %s: %w", id, err)
	}
	return nil
}

// downSQL reads the Down section of the schema; empty when unavailable
func (c *Controller) downSQL(ctx context.Context, rec types.Record) string {
	if rec.Missing {
		return ""
	}
	files, err := c.area.ReadTree(ctx, rec.ID())
	if err != nil {
		c.logger.Warn("Cannot read schema for table drop", zap.String("module", rec.ID()), zap.Error(err))
		return ""
	}
	_, down := SplitMigration(string(files[rec.Descriptor.SchemaPath()]))
	return down
}

func resultOf(err error) string {
	if err == nil {
		return ResultOK
	}
	if kind := types.KindOf(err); kind != "" {
		return string(kind)
	}
	return ResultError
}

type nopMetrics struct{}

func (nopMetrics) ObserveTransition(types.State, types.State, string) {}
func (nopMetrics) ObserveImport(string)                               {}
func (nopMetrics) ObserveExport(string)                               {}
func (nopMetrics) ObserveScan(time.Duration, int)                     {}
func (nopMetrics) SetStateCounts(map[types.State]int)                 {}
