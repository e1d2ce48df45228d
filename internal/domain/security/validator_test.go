package security

import (
	"strings"
	"testing"

	"github.com/GriffinCanCode/AdminConsole/backend/internal/shared/types"
	"github.com/GriffinCanCode/AdminConsole/backend/internal/shared/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tasksDescriptor() types.Descriptor {
	return types.Descriptor{
		ID:          "tasks",
		Name:        "Tasks",
		Version:     "1.0.0",
		Permissions: []string{"tasks.items.view", "tasks.items.edit"},
		Database:    types.Database{Tables: []string{"tasks"}},
		APIRoutes: []types.Route{
			{Path: "/items", Methods: []string{"GET"}, Permission: "tasks.items.view"},
			{Path: "/items/:id", Methods: []string{"PUT", "DELETE"}, Permission: "tasks.items.edit"},
		},
		Navigation: []types.NavEntry{
			{Path: "/tasks", Label: "Tasks & Chores", Icon: "check", Permissions: []string{"tasks.items.view"}},
		},
	}
}

func tasksFiles() map[string][]byte {
	return map[string][]byte{
		"module.json":         []byte(`{"id":"tasks"}`),
		"database/schema.sql": []byte("-- +migrate Up\nCREATE TABLE tasks (id INTEGER);\n"),
		"routes/items.js":     []byte("export default function handler() {}"),
	}
}

func TestValidateClean(t *testing.T) {
	v := NewValidator("1.0.0")
	result := v.Validate(tasksDescriptor(), tasksFiles(), Env{})
	assert.True(t, result.OK, "%+v", result.Violations)
	assert.Empty(t, result.Violations)
}

func TestValidateViolations(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(d *types.Descriptor, files map[string][]byte)
		env    Env
		want   types.ViolationKind
	}{
		{
			name:   "foreign permission namespace",
			mutate: func(d *types.Descriptor, _ map[string][]byte) { d.Permissions = append(d.Permissions, "other.tasks.view") },
			want:   types.ViolationPermission,
		},
		{
			name:   "malformed permission",
			mutate: func(d *types.Descriptor, _ map[string][]byte) { d.Permissions = append(d.Permissions, "tasks.view") },
			want:   types.ViolationPermission,
		},
		{
			name: "undeclared navigation permission",
			mutate: func(d *types.Descriptor, _ map[string][]byte) {
				d.Navigation[0].Permissions = []string{"tasks.reports.view"}
			},
			want: types.ViolationPermission,
		},
		{
			name:   "undeclared route permission",
			mutate: func(d *types.Descriptor, _ map[string][]byte) { d.APIRoutes[0].Permission = "tasks.admin.all" },
			want:   types.ViolationPermission,
		},
		{
			name:   "bad id",
			mutate: func(d *types.Descriptor, _ map[string][]byte) { d.ID = "Tasks!" },
			want:   types.ViolationIdentity,
		},
		{
			name:   "reserved id",
			mutate: func(d *types.Descriptor, _ map[string][]byte) { d.ID = "admin"; d.Permissions = nil; d.APIRoutes = nil; d.Navigation = nil },
			want:   types.ViolationIdentity,
		},
		{
			name:   "path traversal",
			mutate: func(_ *types.Descriptor, f map[string][]byte) { f["../../etc/cron.d/x"] = []byte("x") },
			want:   types.ViolationPath,
		},
		{
			name:   "absolute path",
			mutate: func(_ *types.Descriptor, f map[string][]byte) { f["/etc/passwd"] = []byte("x") },
			want:   types.ViolationPath,
		},
		{
			name:   "non canonical path",
			mutate: func(_ *types.Descriptor, f map[string][]byte) { f["routes/./x.js"] = []byte("x") },
			want:   types.ViolationPath,
		},
		{
			name:   "oversized description",
			mutate: func(d *types.Descriptor, _ map[string][]byte) { d.Description = strings.Repeat("x", utils.MaxDescriptionLength+1) },
			want:   types.ViolationDescriptor,
		},
		{
			name:   "name with a NUL byte",
			mutate: func(d *types.Descriptor, _ map[string][]byte) { d.Name = "Tasks\x00" },
			want:   types.ViolationDescriptor,
		},
		{
			name: "file shadowing a directory",
			mutate: func(_ *types.Descriptor, f map[string][]byte) {
				f["docs"] = []byte("notes")
				f["docs/guide/readme.md"] = []byte("# guide")
			},
			want: types.ViolationPath,
		},
		{
			name: "native executable",
			mutate: func(_ *types.Descriptor, f map[string][]byte) {
				f["bin/tool"] = append([]byte("\x7fELF\x02\x01\x01"), make([]byte, 64)...)
			},
			want: types.ViolationContent,
		},
		{
			name:   "missing descriptor file",
			mutate: func(_ *types.Descriptor, f map[string][]byte) { delete(f, "module.json") },
			want:   types.ViolationDescriptor,
		},
		{
			name:   "two descriptor files",
			mutate: func(_ *types.Descriptor, f map[string][]byte) { f["module.yaml"] = []byte("id: tasks") },
			want:   types.ViolationDescriptor,
		},
		{
			name:   "missing schema file",
			mutate: func(_ *types.Descriptor, f map[string][]byte) { delete(f, "database/schema.sql") },
			want:   types.ViolationDescriptor,
		},
		{
			name: "table owned by active module",
			env: Env{Records: []types.Record{{
				Descriptor: types.Descriptor{ID: "todo", Database: types.Database{Tables: []string{"tasks"}}},
				State:      types.StateActive,
			}}},
			want: types.ViolationTable,
		},
		{
			name:   "bad table name",
			mutate: func(d *types.Descriptor, _ map[string][]byte) { d.Database.Tables = []string{"tasks; DROP TABLE users"} },
			want:   types.ViolationTable,
		},
		{
			name:   "duplicate table",
			mutate: func(d *types.Descriptor, _ map[string][]byte) { d.Database.Tables = []string{"tasks", "tasks"} },
			want:   types.ViolationTable,
		},
		{
			name:   "unknown dependency",
			mutate: func(d *types.Descriptor, _ map[string][]byte) { d.Dependencies = []string{"inventory"} },
			want:   types.ViolationDependency,
		},
		{
			name:   "removed dependency",
			mutate: func(d *types.Descriptor, _ map[string][]byte) { d.Dependencies = []string{"inventory"} },
			env: Env{Records: []types.Record{{
				Descriptor: types.Descriptor{ID: "inventory"},
				State:      types.StateRemoved,
			}}},
			want: types.ViolationDependency,
		},
		{
			name:   "self dependency",
			mutate: func(d *types.Descriptor, _ map[string][]byte) { d.Dependencies = []string{"tasks"} },
			want:   types.ViolationDependency,
		},
		{
			name:   "invalid version",
			mutate: func(d *types.Descriptor, _ map[string][]byte) { d.Version = "latest" },
			want:   types.ViolationVersion,
		},
		{
			name:   "incompatible host",
			mutate: func(d *types.Descriptor, _ map[string][]byte) { d.CompatibleVersions = []string{"2.0.0"} },
			want:   types.ViolationVersion,
		},
		{
			name:   "relative route",
			mutate: func(d *types.Descriptor, _ map[string][]byte) { d.APIRoutes[0].Path = "items" },
			want:   types.ViolationRoute,
		},
		{
			name:   "route traversal",
			mutate: func(d *types.Descriptor, _ map[string][]byte) { d.APIRoutes[0].Path = "/../admin" },
			want:   types.ViolationRoute,
		},
		{
			name:   "unknown method",
			mutate: func(d *types.Descriptor, _ map[string][]byte) { d.APIRoutes[0].Methods = []string{"TRACE"} },
			want:   types.ViolationRoute,
		},
		{
			name:   "markup label",
			mutate: func(d *types.Descriptor, _ map[string][]byte) { d.Navigation[0].Label = `<img src=x onerror=alert(1)>` },
			want:   types.ViolationMarkup,
		},
	}

	v := NewValidator("1.0.0")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			desc := tasksDescriptor()
			files := tasksFiles()
			if tt.mutate != nil {
				tt.mutate(&desc, files)
			}

			result := v.Validate(desc, files, tt.env)
			assert.False(t, result.OK)
			assert.True(t, result.Has(tt.want), "want %s, got %+v", tt.want, result.Violations)
		})
	}
}

func TestValidateIgnoresOwnAndInactiveTables(t *testing.T) {
	v := NewValidator("1.0.0")
	env := Env{Records: []types.Record{
		{Descriptor: types.Descriptor{ID: "tasks", Database: types.Database{Tables: []string{"tasks"}}}, State: types.StateActive},
		{Descriptor: types.Descriptor{ID: "todo", Database: types.Database{Tables: []string{"tasks"}}}, State: types.StateDisabled},
		{Descriptor: types.Descriptor{ID: "legacy", Database: types.Database{Tables: []string{"tasks"}}}, State: types.StateDiscovered},
	}}

	result := v.Validate(tasksDescriptor(), tasksFiles(), env)
	assert.True(t, result.OK, "%+v", result.Violations)
}

func TestValidateDeterministic(t *testing.T) {
	v := NewValidator("1.0.0")
	desc := tasksDescriptor()
	desc.Permissions = append(desc.Permissions, "other.tasks.view", "bad")
	desc.Dependencies = []string{"ghost"}
	files := tasksFiles()
	for _, p := range []string{"../a", "../b", "/c", "d/../../e"} {
		files[p] = []byte("x")
	}

	first := v.Validate(desc, files, Env{})
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, v.Validate(desc, files, Env{}))
	}
}

func TestValidateLight(t *testing.T) {
	v := NewValidator("1.0.0")
	desc := tasksDescriptor()
	desc.Dependencies = []string{"ghost"}

	result := v.ValidateLight(desc, Env{})
	assert.True(t, result.OK, "light validation skips dependency and file checks")

	env := Env{Records: []types.Record{{
		Descriptor: types.Descriptor{ID: "todo", Database: types.Database{Tables: []string{"tasks"}}},
		State:      types.StateValidated,
	}}}
	result = v.ValidateLight(desc, env)
	require.False(t, result.OK)
	assert.True(t, result.Has(types.ViolationTable))
}

func TestCompatible(t *testing.T) {
	assert.True(t, Compatible("1.0.0", nil))
	assert.True(t, Compatible("1.0.0", []string{"v1.0"}))
	assert.True(t, Compatible("v2.1.0", []string{"1.0.0", "2.1"}))
	assert.False(t, Compatible("1.0.0", []string{"1.0.1"}))
	assert.False(t, Compatible("garbage", []string{"1.0.0"}))
}

func TestCanonical(t *testing.T) {
	assert.Equal(t, "v1.0.0", Canonical("1.0"))
	assert.Equal(t, "v1.2.3", Canonical("v1.2.3"))
	assert.Equal(t, "", Canonical("one"))
	assert.Equal(t, "", Canonical(""))
}
