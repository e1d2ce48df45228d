// Package testutil provides fixtures and mocks shared by package tests.
package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/GriffinCanCode/AdminConsole/backend/internal/shared/types"
	"github.com/GriffinCanCode/AdminConsole/backend/internal/shared/utils"
	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockMigrator is a mock implementation of the storage collaborator.
type MockMigrator struct {
	mock.Mock
}

// Apply mocks the Apply method.
func (m *MockMigrator) Apply(ctx context.Context, moduleID string, tables []string, upSQL string) error {
	args := m.Called(ctx, moduleID, tables, upSQL)
	return args.Error(0)
}

// Drop mocks the Drop method.
func (m *MockMigrator) Drop(ctx context.Context, moduleID string, tables []string, downSQL string) error {
	args := m.Called(ctx, moduleID, tables, downSQL)
	return args.Error(0)
}

// Owners mocks the Owners method.
func (m *MockMigrator) Owners(ctx context.Context) (map[string]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]string), args.Error(1)
}

// NewMockMigrator creates a migrator mock that accepts every call.
func NewMockMigrator(t *testing.T) *MockMigrator {
	t.Helper()
	m := new(MockMigrator)

	m.On("Apply", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil).
		Maybe()
	m.On("Drop", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil).
		Maybe()
	m.On("Owners", mock.Anything).
		Return(map[string]string{}, nil).
		Maybe()

	return m
}

// Descriptor builds a well-formed descriptor owning the given tables.
func Descriptor(id string, tables ...string) types.Descriptor {
	desc := types.Descriptor{
		ID:          id,
		Name:        strings.ToUpper(id[:1]) + id[1:],
		Version:     "1.0.0",
		Author:      "console team",
		Permissions: []string{id + ".items.view", id + ".items.edit"},
		Roles:       []string{"admin"},
		APIRoutes: []types.Route{
			{Path: "/items", Methods: []string{"GET"}, Permission: id + ".items.view"},
			{Path: "/items/:id", Methods: []string{"PUT"}, Permission: id + ".items.edit"},
		},
		Navigation: []types.NavEntry{
			{Path: "/" + id, Label: strings.ToUpper(id[:1]) + id[1:], Icon: "box", Permissions: []string{id + ".items.view"}},
		},
	}
	if len(tables) > 0 {
		desc.Database = types.Database{Tables: tables, Schema: types.DefaultSchemaPath}
	}
	return desc
}

// Files renders a descriptor as a module file set: module.json, the schema
// file for its tables, and one route source file.
func Files(desc types.Descriptor) map[string][]byte {
	encoded, err := sonic.ConfigStd.MarshalIndent(desc, "", "  ")
	if err != nil {
		panic(fmt.Sprintf("encode descriptor: %v", err))
	}

	files := map[string][]byte{
		"module.json":     encoded,
		"routes/items.js": []byte(fmt.Sprintf("export const module = %q;\n", desc.ID)),
	}
	if len(desc.Database.Tables) > 0 {
		files[desc.SchemaPath()] = []byte(Schema(desc.Database.Tables...))
	}
	return files
}

// Schema renders a migration file creating and dropping the tables.
func Schema(tables ...string) string {
	var b strings.Builder
	b.WriteString("-- +migrate Up\n")
	for _, table := range tables {
		fmt.Fprintf(&b, "CREATE TABLE %s (id INTEGER PRIMARY KEY, name TEXT NOT NULL);\n", table)
	}
	b.WriteString("\n-- +migrate Down\n")
	for _, table := range tables {
		fmt.Fprintf(&b, "DROP TABLE %s;\n", table)
	}
	return b.String()
}

// WriteModule writes a module file set to <root>/<dir>.
func WriteModule(t *testing.T, root, dir string, files map[string][]byte) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, content, 0o644))
	}
}

// Package builds a module package with a correct digest.
func Package(desc types.Descriptor) types.Package {
	files := Files(desc)
	return types.Package{Descriptor: desc, Files: files, Digest: utils.ManifestDigest(files)}
}
