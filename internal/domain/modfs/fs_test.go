package modfs

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/GriffinCanCode/AdminConsole/backend/internal/shared/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFS(t *testing.T) *FS {
	t.Helper()
	area, err := New(Config{Root: t.TempDir()}, nil)
	require.NoError(t, err)
	return area
}

func writeTree(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func TestReadTree(t *testing.T) {
	area := newFS(t)
	writeTree(t, area.Layout().ModuleDir("inventory"), map[string]string{
		"module.json":         `{"id":"inventory"}`,
		"database/schema.sql": "CREATE TABLE inventory_items (id INTEGER);",
		"routes/items.js":     "export default {}",
		".git/HEAD":           "ref: refs/heads/main",
		"routes/.DS_Store":    "junk",
	})

	files, err := area.ReadTree(context.Background(), "inventory")
	require.NoError(t, err)

	assert.Len(t, files, 3)
	assert.Equal(t, "CREATE TABLE inventory_items (id INTEGER);", string(files["database/schema.sql"]))
	assert.Contains(t, files, "routes/items.js")
	assert.NotContains(t, files, ".git/HEAD")
	assert.NotContains(t, files, "routes/.DS_Store")
	assert.Equal(t, []string{"module.json"}, TopLevel(files))
}

func TestReadTreeErrors(t *testing.T) {
	area := newFS(t)
	ctx := context.Background()

	_, err := area.ReadTree(ctx, "missing")
	assert.ErrorIs(t, err, types.ErrNotFound)

	_, err = area.ReadTree(ctx, "../escape")
	assert.ErrorIs(t, err, types.ErrInvalid)

	dir := area.Layout().ModuleDir("linked")
	writeTree(t, dir, map[string]string{"module.json": "{}"})
	require.NoError(t, os.Symlink("/etc/passwd", filepath.Join(dir, "passwd")))
	_, err = area.ReadTree(ctx, "linked")
	assert.ErrorIs(t, err, types.ErrInvalid)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	writeTree(t, area.Layout().ModuleDir("tasks"), map[string]string{"module.json": "{}"})
	_, err = area.ReadTree(cancelled, "tasks")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReadTreeMaxBytes(t *testing.T) {
	area, err := New(Config{Root: t.TempDir(), MaxBytes: 8}, nil)
	require.NoError(t, err)
	writeTree(t, area.Layout().ModuleDir("big"), map[string]string{"module.json": "0123456789"})

	_, err = area.ReadTree(context.Background(), "big")
	assert.ErrorIs(t, err, types.ErrInvalid)
}

func TestInvalidIgnorePattern(t *testing.T) {
	_, err := New(Config{Root: t.TempDir(), Ignore: []string{"[unclosed"}}, nil)
	assert.Error(t, err)
}

func TestModuleIDs(t *testing.T) {
	area := newFS(t)
	for _, id := range []string{"tasks", "inventory"} {
		writeTree(t, area.Layout().ModuleDir(id), map[string]string{"module.json": "{}"})
	}
	writeTree(t, area.Layout().TombstoneDir("billing"), map[string]string{"module.json": "{}"})
	writeTree(t, area.Root(), map[string]string{"README.md": "not a module"})

	ids, err := area.ModuleIDs()
	require.NoError(t, err)
	assert.Equal(t, []string{"inventory", "tasks"}, ids)

	tombstones, err := area.TombstoneIDs()
	require.NoError(t, err)
	assert.Equal(t, []string{"billing"}, tombstones)
}

func TestWriteReplacesTree(t *testing.T) {
	area := newFS(t)
	ctx := context.Background()
	writeTree(t, area.Layout().ModuleDir("inventory"), map[string]string{
		"module.json": "old",
		"stale.txt":   "gone after swap",
	})

	err := area.Write(ctx, "inventory", map[string][]byte{
		"module.json":         []byte("new"),
		"database/schema.sql": []byte("CREATE TABLE x (id INTEGER);"),
	})
	require.NoError(t, err)

	files, err := area.ReadTree(ctx, "inventory")
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{
		"module.json":         []byte("new"),
		"database/schema.sql": []byte("CREATE TABLE x (id INTEGER);"),
	}, files)

	entries, err := os.ReadDir(area.Root())
	require.NoError(t, err)
	require.Len(t, entries, 1, "no staging or trash directories are left behind")
}

func TestWriteRejectsEscapes(t *testing.T) {
	area := newFS(t)
	ctx := context.Background()
	writeTree(t, area.Layout().ModuleDir("inventory"), map[string]string{"module.json": "old"})

	for _, bad := range []string{"../outside.txt", "/etc/passwd", "a/../../b"} {
		err := area.Write(ctx, "inventory", map[string][]byte{"module.json": []byte("new"), bad: []byte("x")})
		assert.ErrorIs(t, err, types.ErrInvalid, bad)
	}

	files, err := area.ReadTree(ctx, "inventory")
	require.NoError(t, err)
	assert.Equal(t, "old", string(files["module.json"]), "failed writes leave the live tree untouched")

	entries, err := os.ReadDir(area.Root())
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	_, err = os.Stat(filepath.Join(filepath.Dir(area.Root()), "outside.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestWriteConcurrentWithReads(t *testing.T) {
	area := newFS(t)
	ctx := context.Background()
	v1 := map[string][]byte{"module.json": []byte("v1"), "a.txt": []byte("v1")}
	v2 := map[string][]byte{"module.json": []byte("v2"), "a.txt": []byte("v2")}
	require.NoError(t, area.Write(ctx, "inventory", v1))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			files := v1
			if i%2 == 0 {
				files = v2
			}
			assert.NoError(t, area.Write(ctx, "inventory", files))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			files, err := area.ReadTree(ctx, "inventory")
			if assert.NoError(t, err) {
				assert.Equal(t, files["module.json"], files["a.txt"], "reads never mix two trees")
			}
		}
	}()
	wg.Wait()
}

func TestTombstone(t *testing.T) {
	area := newFS(t)
	ctx := context.Background()
	writeTree(t, area.Layout().ModuleDir("inventory"), map[string]string{"module.json": "v1"})

	_, err := area.Tombstone(ctx, "inventory", nil)
	require.NoError(t, err)
	assert.False(t, area.Exists("inventory"))
	assert.True(t, area.HasTombstone("inventory"))

	files, err := area.ReadTombstone(ctx, "inventory")
	require.NoError(t, err)
	assert.Equal(t, "v1", string(files["module.json"]))

	// a second removal of a re-imported module replaces the tombstone
	writeTree(t, area.Layout().ModuleDir("inventory"), map[string]string{"module.json": "v2"})
	_, err = area.Tombstone(ctx, "inventory", nil)
	require.NoError(t, err)
	files, err = area.ReadTombstone(ctx, "inventory")
	require.NoError(t, err)
	assert.Equal(t, "v2", string(files["module.json"]))

	require.NoError(t, area.PurgeTombstone("inventory"))
	assert.False(t, area.HasTombstone("inventory"))
}

func TestTombstoneMissingDirectory(t *testing.T) {
	area := newFS(t)
	ctx := context.Background()

	_, err := area.Tombstone(ctx, "inventory", nil)
	assert.Equal(t, types.KindInvalid, types.KindOf(err), "nothing to keep the id reserved with")
	assert.False(t, area.HasTombstone("inventory"))

	undo, err := area.Tombstone(ctx, "inventory", map[string][]byte{"module.json": []byte(`{"id":"inventory"}`)})
	require.NoError(t, err)
	assert.False(t, area.Exists("inventory"))
	files, err := area.ReadTombstone(ctx, "inventory")
	require.NoError(t, err)
	assert.Equal(t, `{"id":"inventory"}`, string(files["module.json"]))

	require.NoError(t, undo())
	assert.False(t, area.HasTombstone("inventory"))
	assert.False(t, area.Exists("inventory"))
}

func TestTombstoneUndo(t *testing.T) {
	area := newFS(t)
	ctx := context.Background()
	writeTree(t, area.Layout().ModuleDir("inventory"), map[string]string{"module.json": "v1"})

	undo, err := area.Tombstone(ctx, "inventory", nil)
	require.NoError(t, err)
	require.NoError(t, undo())

	assert.True(t, area.Exists("inventory"))
	assert.False(t, area.HasTombstone("inventory"))
	files, err := area.ReadTree(ctx, "inventory")
	require.NoError(t, err)
	assert.Equal(t, "v1", string(files["module.json"]))
}

func TestRecover(t *testing.T) {
	area := newFS(t)
	layout := area.Layout()

	// crash after staging was written
	writeTree(t, layout.StagingDir("inventory.01J0000000000000000000000A"), map[string]string{"module.json": "half"})
	// crash between the two renames: target missing
	writeTree(t, layout.TrashDir("tasks.01J0000000000000000000000B"), map[string]string{"module.json": "tasks"})
	// crash after publish but before trash removal
	writeTree(t, layout.ModuleDir("billing"), map[string]string{"module.json": "new"})
	writeTree(t, layout.TrashDir("billing.01J0000000000000000000000C"), map[string]string{"module.json": "old"})

	report, err := area.Recover()
	require.NoError(t, err)

	assert.Len(t, report.StagingRemoved, 1)
	assert.Equal(t, []string{"tasks"}, report.Restored)
	assert.Len(t, report.TrashRemoved, 1)

	ids, err := area.ModuleIDs()
	require.NoError(t, err)
	assert.Equal(t, []string{"billing", "tasks"}, ids)

	files, err := area.ReadTree(context.Background(), "billing")
	require.NoError(t, err)
	assert.Equal(t, "new", string(files["module.json"]))
}

func TestTrashTarget(t *testing.T) {
	assert.Equal(t, "inventory", trashTarget(".trash-inventory.01J0000000000000000000000A"))
	assert.Equal(t, "", trashTarget(".trash-nodot"))
	assert.Equal(t, "", trashTarget(".trash-.01J"))
	assert.Equal(t, "", trashTarget(".trash-inventory.backup"), "suffix must be a ulid")
}
