package lifecycle

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/GriffinCanCode/AdminConsole/backend/internal/domain/descriptor"
	"github.com/GriffinCanCode/AdminConsole/backend/internal/domain/discovery"
	"github.com/GriffinCanCode/AdminConsole/backend/internal/domain/events"
	"github.com/GriffinCanCode/AdminConsole/backend/internal/domain/modfs"
	"github.com/GriffinCanCode/AdminConsole/backend/internal/domain/packager"
	"github.com/GriffinCanCode/AdminConsole/backend/internal/domain/registry"
	"github.com/GriffinCanCode/AdminConsole/backend/internal/domain/security"
	"github.com/GriffinCanCode/AdminConsole/backend/internal/shared/types"
	"github.com/GriffinCanCode/AdminConsole/backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	root       string
	store      *registry.Store
	bus        *events.Bus
	migrator   *testutil.MockMigrator
	controller *Controller
}

func newFixture(t *testing.T, migrator *testutil.MockMigrator) *fixture {
	t.Helper()
	return newFixtureAt(t, t.TempDir(), migrator)
}

func newFixtureAt(t *testing.T, root string, migrator *testutil.MockMigrator) *fixture {
	t.Helper()
	area, err := modfs.New(modfs.Config{Root: root}, nil)
	require.NoError(t, err)

	if migrator == nil {
		migrator = testutil.NewMockMigrator(t)
	}
	store := registry.NewStore(nil)
	parser := descriptor.NewParser()
	validator := security.NewValidator("1.0.0")
	bus := events.NewBus(nil)
	t.Cleanup(bus.Close)

	return &fixture{
		root:     root,
		store:    store,
		bus:      bus,
		migrator: migrator,
		controller: NewController(Deps{
			Store:     store,
			Area:      area,
			Scanner:   discovery.NewScanner(store, area, parser, 2, nil),
			Packager:  packager.New(store, area, parser, validator, packager.Options{}, nil),
			Validator: validator,
			Migrator:  migrator,
			Bus:       bus,
		}),
	}
}

func (f *fixture) seed(t *testing.T, descs ...types.Descriptor) {
	t.Helper()
	for _, desc := range descs {
		testutil.WriteModule(t, f.root, desc.ID, testutil.Files(desc))
	}
	_, err := f.controller.Rediscover(context.Background())
	require.NoError(t, err)
}

func (f *fixture) state(t *testing.T, id string) types.State {
	t.Helper()
	rec, err := f.store.Get(id)
	require.NoError(t, err)
	return rec.State
}

func TestLifecycleHappyPath(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.seed(t, testutil.Descriptor("inventory", "inventory_items"))

	rec, err := f.controller.Validate(ctx, "inventory")
	require.NoError(t, err)
	assert.Equal(t, types.StateValidated, rec.State)

	rec, err = f.controller.Activate(ctx, "inventory")
	require.NoError(t, err)
	assert.Equal(t, types.StateActive, rec.State)
	require.NotNil(t, rec.LastActivatedAt)
	f.migrator.AssertCalled(t, "Apply", mock.Anything, "inventory", []string{"inventory_items"},
		"CREATE TABLE inventory_items (id INTEGER PRIMARY KEY, name TEXT NOT NULL);")

	table := f.controller.MountTable()
	require.Len(t, table.Routes, 2)
	assert.Equal(t, "/api/modules/inventory/items", table.Routes[0].Path)
	require.Len(t, table.Navigation, 1)
	assert.Equal(t, "inventory", table.Navigation[0].ModuleID)

	rec, err = f.controller.Disable(ctx, "inventory")
	require.NoError(t, err)
	assert.Equal(t, types.StateDisabled, rec.State)
	assert.Empty(t, f.controller.MountTable().Routes)

	_, err = f.controller.Disable(ctx, "inventory")
	assert.NoError(t, err, "disable is idempotent")

	rec, err = f.controller.Activate(ctx, "inventory")
	require.NoError(t, err)
	assert.Equal(t, types.StateActive, rec.State)
	f.migrator.AssertNumberOfCalls(t, "Apply", 1)
}

func TestActivateDiscoveredValidatesFirst(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.seed(t, testutil.Descriptor("inventory"))

	rec, err := f.controller.Activate(ctx, "inventory")
	require.NoError(t, err)
	assert.Equal(t, types.StateActive, rec.State)
	f.migrator.AssertNotCalled(t, "Apply", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestValidateFailureStaysDiscovered(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	desc := testutil.Descriptor("tasks")
	desc.Permissions = append(desc.Permissions, "other.tasks.view")
	f.seed(t, desc)

	_, err := f.controller.Validate(ctx, "tasks")
	require.ErrorIs(t, err, types.ErrInvalid)
	e, ok := types.AsError(err)
	require.True(t, ok)
	require.NotEmpty(t, e.Violations)
	assert.Equal(t, types.ViolationPermission, e.Violations[0].Kind)
	assert.Equal(t, types.StateDiscovered, f.state(t, "tasks"))

	_, err = f.controller.Activate(ctx, "tasks")
	assert.ErrorIs(t, err, types.ErrInvalid)
	assert.Equal(t, types.StateDiscovered, f.state(t, "tasks"))
}

func TestValidateDetectsDrift(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.seed(t, testutil.Descriptor("inventory"))

	require.NoError(t, os.WriteFile(filepath.Join(f.root, "inventory", "routes", "items.js"), []byte("changed"), 0o644))

	_, err := f.controller.Validate(ctx, "inventory")
	assert.ErrorIs(t, err, types.ErrConflict)
	assert.Equal(t, types.StateDiscovered, f.state(t, "inventory"))
}

func TestConcurrentActivateOneWinner(t *testing.T) {
	migrator := new(testutil.MockMigrator)
	entered := make(chan struct{})
	proceed := make(chan struct{})
	migrator.On("Owners", mock.Anything).Return(map[string]string{}, nil)
	migrator.On("Apply", mock.Anything, "inventory", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			close(entered)
			<-proceed
		}).
		Return(nil).
		Once()

	f := newFixture(t, migrator)
	ctx := context.Background()
	f.seed(t, testutil.Descriptor("inventory", "inventory_items"))
	_, err := f.controller.Validate(ctx, "inventory")
	require.NoError(t, err)

	var wg sync.WaitGroup
	var firstErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = f.controller.Activate(ctx, "inventory")
	}()

	<-entered
	_, secondErr := f.controller.Activate(ctx, "inventory")
	close(proceed)
	wg.Wait()

	require.NoError(t, firstErr)
	assert.ErrorIs(t, secondErr, types.ErrConflict)
	assert.Equal(t, types.StateActive, f.state(t, "inventory"))

	_, err = f.controller.Activate(ctx, "inventory")
	assert.ErrorIs(t, err, types.ErrConflict, "activating an active module is a conflict")
	migrator.AssertExpectations(t)
}

func TestActivateDifferentModulesInParallel(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	ids := []string{"alpha", "bravo", "charlie", "delta"}
	for _, id := range ids {
		testutil.WriteModule(t, f.root, id, testutil.Files(testutil.Descriptor(id, id+"_rows")))
	}
	_, err := f.controller.Rediscover(ctx)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, len(ids))
	for i, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.controller.Activate(ctx, id)
		}()
	}
	wg.Wait()

	for i, id := range ids {
		assert.NoError(t, errs[i], id)
		assert.Equal(t, types.StateActive, f.state(t, id))
	}
}

func TestDuplicateTableSchemaConflict(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.seed(t,
		testutil.Descriptor("inventory", "shared_items"),
		testutil.Descriptor("warehouse", "shared_items"),
	)

	_, err := f.controller.Activate(ctx, "inventory")
	require.NoError(t, err)

	_, err = f.controller.Activate(ctx, "warehouse")
	require.ErrorIs(t, err, types.ErrSchemaConflict)
	assert.Equal(t, types.StateActive, f.state(t, "inventory"))
	assert.NotEqual(t, types.StateActive, f.state(t, "warehouse"))
}

func TestMigratorSchemaConflictLeavesValidated(t *testing.T) {
	migrator := new(testutil.MockMigrator)
	migrator.On("Owners", mock.Anything).Return(map[string]string{}, nil)
	migrator.On("Apply", mock.Anything, "inventory", mock.Anything, mock.Anything).
		Return(types.NewError(types.KindSchemaConflict, "inventory", "table inventory_items already exists"))

	f := newFixture(t, migrator)
	ctx := context.Background()
	f.seed(t, testutil.Descriptor("inventory", "inventory_items"))
	_, err := f.controller.Validate(ctx, "inventory")
	require.NoError(t, err)

	_, err = f.controller.Activate(ctx, "inventory")
	assert.ErrorIs(t, err, types.ErrSchemaConflict)
	assert.Equal(t, types.StateValidated, f.state(t, "inventory"))
}

func TestLedgerOwnerSchemaConflict(t *testing.T) {
	migrator := new(testutil.MockMigrator)
	migrator.On("Owners", mock.Anything).Return(map[string]string{"inventory_items": "legacy"}, nil)

	f := newFixture(t, migrator)
	f.seed(t, testutil.Descriptor("inventory", "inventory_items"))

	_, err := f.controller.Activate(context.Background(), "inventory")
	assert.ErrorIs(t, err, types.ErrSchemaConflict)
	migrator.AssertNotCalled(t, "Apply", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestActivateRequiresActiveDependencies(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	billing := testutil.Descriptor("billing")
	billing.Dependencies = []string{"inventory"}
	f.seed(t, testutil.Descriptor("inventory"), billing)

	_, err := f.controller.Activate(ctx, "billing")
	require.ErrorIs(t, err, types.ErrInvalid)
	assert.Equal(t, types.StateValidated, f.state(t, "billing"))

	_, err = f.controller.Activate(ctx, "inventory")
	require.NoError(t, err)
	_, err = f.controller.Activate(ctx, "billing")
	require.NoError(t, err)
}

func TestRemoveHasDependents(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	b := testutil.Descriptor("b")
	b.Dependencies = []string{"a"}
	f.seed(t, testutil.Descriptor("a"), b)

	_, err := f.controller.Remove(ctx, "a", types.RemoveOptions{})
	require.ErrorIs(t, err, types.ErrHasDependents)
	assert.Equal(t, types.StateDiscovered, f.state(t, "a"))
	assert.DirExists(t, filepath.Join(f.root, "a"))

	_, err = f.controller.Remove(ctx, "b", types.RemoveOptions{})
	require.NoError(t, err)
	rec, err := f.controller.Remove(ctx, "a", types.RemoveOptions{})
	require.NoError(t, err)
	assert.Equal(t, types.StateRemoved, rec.State)
}

func TestRemoveTombstonesAndDropsWithConfirm(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.seed(t, testutil.Descriptor("inventory", "inventory_items"))
	_, err := f.controller.Activate(ctx, "inventory")
	require.NoError(t, err)

	_, err = f.controller.Remove(ctx, "inventory", types.RemoveOptions{DropTables: true, Confirm: "wrong"})
	require.ErrorIs(t, err, types.ErrInvalid)
	assert.Equal(t, types.StateActive, f.state(t, "inventory"))

	rec, err := f.controller.Remove(ctx, "inventory", types.RemoveOptions{DropTables: true, Confirm: "inventory"})
	require.NoError(t, err)
	assert.Equal(t, types.StateRemoved, rec.State)
	f.migrator.AssertCalled(t, "Drop", mock.Anything, "inventory", []string{"inventory_items"},
		"DROP TABLE inventory_items;")

	assert.NoDirExists(t, filepath.Join(f.root, "inventory"))
	assert.DirExists(t, filepath.Join(f.root, ".removed", "inventory"))
	assert.Empty(t, f.controller.MountTable().Routes)

	again, err := f.controller.Remove(ctx, "inventory", types.RemoveOptions{})
	require.NoError(t, err, "remove is idempotent")
	assert.Equal(t, rec.Revision, again.Revision)

	_, err = f.controller.Activate(ctx, "inventory")
	assert.ErrorIs(t, err, types.ErrConflict)
}

func TestRemoveWithoutDropKeepsTables(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.seed(t, testutil.Descriptor("inventory", "inventory_items"))

	_, err := f.controller.Remove(ctx, "inventory", types.RemoveOptions{})
	require.NoError(t, err)
	f.migrator.AssertNotCalled(t, "Drop", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRemovedSurvivesRestart(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.seed(t, testutil.Descriptor("inventory"))
	_, err := f.controller.Remove(ctx, "inventory", types.RemoveOptions{})
	require.NoError(t, err)

	restarted := newFixtureAt(t, f.root, nil)
	_, err = restarted.controller.Start(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.StateRemoved, restarted.state(t, "inventory"))
}

func TestRemoveMissingDirectorySurvivesRestart(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.seed(t, testutil.Descriptor("tasks"))
	_, err := f.controller.Activate(ctx, "tasks")
	require.NoError(t, err)

	require.NoError(t, os.RemoveAll(filepath.Join(f.root, "tasks")))
	_, err = f.controller.Rediscover(ctx)
	require.NoError(t, err)
	rec, err := f.store.Get("tasks")
	require.NoError(t, err)
	require.True(t, rec.Missing)

	rec, err = f.controller.Remove(ctx, "tasks", types.RemoveOptions{})
	require.NoError(t, err)
	assert.Equal(t, types.StateRemoved, rec.State)
	assert.FileExists(t, filepath.Join(f.root, ".removed", "tasks", "module.json"))

	restarted := newFixtureAt(t, f.root, nil)
	_, err = restarted.controller.Start(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.StateRemoved, restarted.state(t, "tasks"))

	other := testutil.Descriptor("tasks")
	other.Version = "2.0.0"
	_, err = restarted.controller.Import(ctx, testutil.Package(other), packager.ImportOptions{Mode: types.ModeRejectIfExists})
	assert.ErrorIs(t, err, types.ErrConflict)
	_, err = restarted.controller.Import(ctx, testutil.Package(other), packager.ImportOptions{Mode: types.ModeReplaceExisting})
	assert.ErrorIs(t, err, types.ErrConflict, "different content under a removed id needs override")
}

func TestRemoveDropFailureRestoresDirectory(t *testing.T) {
	migrator := new(testutil.MockMigrator)
	migrator.On("Owners", mock.Anything).Return(map[string]string{}, nil)
	migrator.On("Apply", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	migrator.On("Drop", mock.Anything, "inventory", mock.Anything, mock.Anything).
		Return(errors.New("database is locked"))

	f := newFixture(t, migrator)
	ctx := context.Background()
	f.seed(t, testutil.Descriptor("inventory", "inventory_items"))
	_, err := f.controller.Activate(ctx, "inventory")
	require.NoError(t, err)

	_, err = f.controller.Remove(ctx, "inventory", types.RemoveOptions{DropTables: true, Confirm: "inventory"})
	require.Error(t, err)
	assert.Equal(t, types.StateActive, f.state(t, "inventory"))
	assert.DirExists(t, filepath.Join(f.root, "inventory"))
	assert.NoDirExists(t, filepath.Join(f.root, ".removed", "inventory"))

	// the schema was read before the directory moved
	migrator.AssertCalled(t, "Drop", mock.Anything, "inventory", []string{"inventory_items"},
		"DROP TABLE inventory_items;")
}

func TestPurge(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.seed(t, testutil.Descriptor("inventory"))

	err := f.controller.Purge(ctx, "inventory")
	require.ErrorIs(t, err, types.ErrConflict, "only removed modules can be purged")

	_, err = f.controller.Remove(ctx, "inventory", types.RemoveOptions{})
	require.NoError(t, err)
	require.NoError(t, f.controller.Purge(ctx, "inventory"))

	_, err = f.store.Get("inventory")
	assert.ErrorIs(t, err, types.ErrNotFound)
	assert.NoDirExists(t, filepath.Join(f.root, ".removed", "inventory"))
}

func TestInventoryExportReimportScenario(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.seed(t, testutil.Descriptor("inventory", "inventory_items"))
	_, err := f.controller.Activate(ctx, "inventory")
	require.NoError(t, err)

	pkg, err := f.controller.Export(ctx, "inventory")
	require.NoError(t, err)
	assert.Equal(t, "inventory", pkg.Descriptor.ID)
	assert.Contains(t, pkg.Files, "module.json")
	assert.Contains(t, pkg.Files, "database/schema.sql")

	_, err = f.controller.Import(ctx, pkg, packager.ImportOptions{Mode: types.ModeRejectIfExists})
	require.ErrorIs(t, err, types.ErrConflict)
	assert.Equal(t, types.StateActive, f.state(t, "inventory"))

	rec, err := f.controller.Import(ctx, pkg, packager.ImportOptions{Mode: types.ModeReplaceExisting})
	require.NoError(t, err)
	assert.Equal(t, types.StateValidated, rec.State)
	assert.Equal(t, pkg.Descriptor, rec.Descriptor)
	assert.NotNil(t, rec.LastActivatedAt)
}

func TestEventsPublishedForTransitions(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	ch, cancel := f.bus.Subscribe(16)
	defer cancel()

	f.seed(t, testutil.Descriptor("inventory"))
	_, err := f.controller.Activate(ctx, "inventory")
	require.NoError(t, err)

	want := []types.Event{
		{Type: types.EventScanned},
		{Type: types.EventTransition, ModuleID: "inventory", From: types.StateDiscovered, State: types.StateValidated},
		{Type: types.EventTransition, ModuleID: "inventory", From: types.StateValidated, State: types.StateActive},
	}
	for _, w := range want {
		select {
		case evt := <-ch:
			assert.Equal(t, w.Type, evt.Type)
			assert.Equal(t, w.ModuleID, evt.ModuleID)
			assert.Equal(t, w.From, evt.From)
			assert.Equal(t, w.State, evt.State)
			assert.NotEmpty(t, evt.ID)
		case <-time.After(time.Second):
			t.Fatalf("missing event %+v", w)
		}
	}
}

func TestStatus(t *testing.T) {
	f := newFixture(t, nil)
	f.seed(t, testutil.Descriptor("inventory"), testutil.Descriptor("billing"))

	status := f.controller.Status()
	require.Len(t, status, 2)
	assert.Equal(t, "billing", status[0].ID)
	assert.Equal(t, types.StateDiscovered, status[0].State)
	assert.Equal(t, "1.0.0", status[0].Version)
}

func TestSplitMigration(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantUp   string
		wantDown string
	}{
		{"both", "-- +migrate Up\nCREATE TABLE a (id INT);\n-- +migrate Down\nDROP TABLE a;\n", "CREATE TABLE a (id INT);", "DROP TABLE a;"},
		{"no markers", "CREATE TABLE a (id INT);\n", "CREATE TABLE a (id INT);", ""},
		{"up only", "-- +migrate Up\nCREATE TABLE a (id INT);", "CREATE TABLE a (id INT);", ""},
		{"down first", "-- +migrate Down\nDROP TABLE a;\n-- +migrate Up\nCREATE TABLE a (id INT);", "CREATE TABLE a (id INT);", "DROP TABLE a;"},
		{"empty", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			up, down := SplitMigration(tt.content)
			assert.Equal(t, tt.wantUp, up)
			assert.Equal(t, tt.wantDown, down)
		})
	}
}
