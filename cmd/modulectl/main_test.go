package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/GriffinCanCode/AdminConsole/backend/internal/infrastructure/config"
	"github.com/GriffinCanCode/AdminConsole/backend/internal/infrastructure/server"
	"github.com/GriffinCanCode/AdminConsole/backend/internal/shared/types"
	"github.com/GriffinCanCode/AdminConsole/backend/internal/testutil"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T) (string, *server.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	cfg := config.Default()
	cfg.Modules.Root = filepath.Join(dir, "modules")
	cfg.Storage.Path = filepath.Join(dir, "data", "console.db")
	cfg.RateLimit.Enabled = false
	testutil.WriteModule(t, cfg.Modules.Root, "inventory", testutil.Files(testutil.Descriptor("inventory", "inventory_items")))

	s, err := server.NewServer(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Start(context.Background()))

	ts := httptest.NewServer(s.Router())
	t.Cleanup(ts.Close)
	return ts.URL, s
}

func run(t *testing.T, url string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--server", url, "--retries", "0"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestStatusTable(t *testing.T) {
	url, _ := startServer(t)

	out, err := run(t, url, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "inventory")
	assert.Contains(t, out, string(types.StateDiscovered))
}

func TestLifecycleCommands(t *testing.T) {
	url, s := startServer(t)

	out, err := run(t, url, "activate", "inventory")
	require.NoError(t, err)
	assert.Contains(t, out, "inventory active")

	out, err = run(t, url, "disable", "inventory")
	require.NoError(t, err)
	assert.Contains(t, out, "inventory disabled")

	_, err = run(t, url, "remove", "inventory", "--drop-tables")
	require.Error(t, err, "dropping tables without confirmation")

	out, err = run(t, url, "remove", "inventory", "--drop-tables", "--confirm", "inventory")
	require.NoError(t, err)
	assert.Contains(t, out, "inventory removed")

	out, err = run(t, url, "purge", "inventory")
	require.NoError(t, err)
	assert.Contains(t, out, "purged")

	_, err = s.Controller().Get("inventory")
	assert.Equal(t, types.KindNotFound, types.KindOf(err))
}

func TestExportImportRoundTrip(t *testing.T) {
	url, s := startServer(t)
	dir := t.TempDir()

	for _, tc := range []struct {
		name string
		file string
		args []string
	}{
		{"json", filepath.Join(dir, "inventory.json"), nil},
		{"archive", filepath.Join(dir, "inventory.tar.zst"), []string{"--archive"}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := run(t, url, append([]string{"export", "inventory", "-o", tc.file}, tc.args...)...)
			require.NoError(t, err)
			info, err := os.Stat(tc.file)
			require.NoError(t, err)
			assert.Positive(t, info.Size())

			_, err = run(t, url, "import", tc.file)
			require.Error(t, err, "default mode rejects an existing id")

			out, err := run(t, url, "import", tc.file, "--mode", string(types.ModeReplaceExisting))
			require.NoError(t, err)
			assert.Contains(t, out, "imported inventory")

			rec, err := s.Controller().Get("inventory")
			require.NoError(t, err)
			assert.Equal(t, types.StateValidated, rec.State)
		})
	}
}

func TestImportRejectsUnknownMode(t *testing.T) {
	url, _ := startServer(t)
	file := filepath.Join(t.TempDir(), "pkg.json")
	require.NoError(t, os.WriteFile(file, []byte(`{}`), 0o644))

	_, err := run(t, url, "import", file, "--mode", "merge")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestRediscoverJSON(t *testing.T) {
	url, _ := startServer(t)

	out, err := run(t, url, "--json", "rediscover")
	require.NoError(t, err)
	assert.Contains(t, out, `"discovered"`)
}

func TestUnknownModule(t *testing.T) {
	url, _ := startServer(t)

	_, err := run(t, url, "activate", "ghost")
	require.Error(t, err)
	assert.Equal(t, types.KindNotFound, types.KindOf(err))
}
