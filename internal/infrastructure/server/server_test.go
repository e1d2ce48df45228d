package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/GriffinCanCode/AdminConsole/backend/internal/infrastructure/config"
	"github.com/GriffinCanCode/AdminConsole/backend/internal/shared/types"
	"github.com/GriffinCanCode/AdminConsole/backend/internal/testutil"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Default()
	dir := t.TempDir()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = "0"
	cfg.Modules.Root = filepath.Join(dir, "modules")
	cfg.Storage.Path = filepath.Join(dir, "data", "console.db")
	cfg.Logging.Development = true
	cfg.RateLimit.Enabled = false
	return cfg
}

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	s, err := NewServer(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func serve(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func TestStartupDiscoversModules(t *testing.T) {
	cfg := testConfig(t)
	testutil.WriteModule(t, cfg.Modules.Root, "inventory", testutil.Files(testutil.Descriptor("inventory", "inventory_items")))

	s := newTestServer(t, cfg)
	require.NoError(t, s.Start(context.Background()))

	rec, err := s.Controller().Get("inventory")
	require.NoError(t, err)
	assert.Equal(t, types.StateDiscovered, rec.State)

	w := serve(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Trace-ID"))
}

func TestActivateAppliesSchema(t *testing.T) {
	cfg := testConfig(t)
	testutil.WriteModule(t, cfg.Modules.Root, "inventory", testutil.Files(testutil.Descriptor("inventory", "inventory_items")))

	s := newTestServer(t, cfg)
	require.NoError(t, s.Start(context.Background()))

	w := serve(t, s, http.MethodPost, "/registry/activate/inventory", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	tables, err := s.storage.Tables(context.Background(), "inventory")
	require.NoError(t, err)
	assert.Equal(t, []string{"inventory_items"}, tables)

	// a second module claiming the same table is refused
	pkg := testutil.Package(testutil.Descriptor("warehouse", "inventory_items"))
	w = serve(t, s, http.MethodPost, "/registry/import", types.ImportRequest{Package: pkg})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), string(types.ViolationTable))

	// disabling keeps the tables; removing with confirm drops them
	require.Equal(t, http.StatusOK, serve(t, s, http.MethodPost, "/registry/disable/inventory", nil).Code)
	w = serve(t, s, http.MethodPost, "/registry/remove/inventory", types.RemoveOptions{DropTables: true, Confirm: "inventory"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	tables, err = s.storage.Tables(context.Background(), "inventory")
	require.NoError(t, err)
	assert.Empty(t, tables)

	w = serve(t, s, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "module_transitions_total")
	assert.Contains(t, w.Body.String(), "console_http_requests_total")
}

func TestStorageDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Enabled = false
	testutil.WriteModule(t, cfg.Modules.Root, "inventory", testutil.Files(testutil.Descriptor("inventory", "inventory_items")))

	s := newTestServer(t, cfg)
	require.NoError(t, s.Start(context.Background()))
	assert.Nil(t, s.storage)

	w := serve(t, s, http.MethodPost, "/registry/activate/inventory", nil)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestRunShutsDownOnCancel(t *testing.T) {
	cfg := testConfig(t)
	cfg.Watch.Enabled = true
	cfg.Watch.Debounce = 20 * time.Millisecond

	s := newTestServer(t, cfg)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	// the watcher rediscovers a module dropped into the root
	testutil.WriteModule(t, cfg.Modules.Root, "inventory", testutil.Files(testutil.Descriptor("inventory")))
	require.Eventually(t, func() bool {
		_, err := s.Controller().Get("inventory")
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(shutdownTimeout + time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestRootRelative(t *testing.T) {
	assert.Equal(t, []string{"*/**/*.log"}, rootRelative([]string{"**/*.log"}))
	assert.Empty(t, rootRelative(nil))
}
