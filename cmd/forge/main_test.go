package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"forge/internal/config"
	"forge/internal/state"
	"forge/internal/todo"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func executeCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "forge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestRunValidate_ValidConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "seed.yaml"), []byte(`todos:
  - title: one
  - title: two
`), 0644))
	path := writeConfig(t, dir, "port: 9000\nseed_file: seed.yaml\n")

	output, err := executeCmd(t, "validate", "-c", path)
	require.NoError(t, err)

	for _, phrase := range []string{"Config is valid!", "9000", "Seed items:  2"} {
		assert.Contains(t, output, phrase)
	}
}

func TestRunValidate_InvalidConfig(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "port: 0\n")

	_, err := executeCmd(t, "validate", "-c", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestRunValidate_InvalidSeed(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "seed.yaml"), []byte("filter: sideways\n"), 0644))
	path := writeConfig(t, dir, "seed_file: seed.yaml\n")

	_, err := executeCmd(t, "validate", "-c", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid seed")
}

func TestVersionCmd(t *testing.T) {
	output, err := executeCmd(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(output, "forge dev"))
}

func TestNewLogger(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		logger, err := newLogger(level)
		require.NoError(t, err, level)
		assert.NotNil(t, logger)
	}

	_, err := newLogger("loud")
	assert.Error(t, err)
}

func newTestApp(t *testing.T, cfg *config.Config, storage state.Storage) *app {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	a, err := newApp(cfg, logger, storage)
	require.NoError(t, err)
	t.Cleanup(func() { a.stop() })
	return a
}

func TestNewApp_DispatchThroughAPI(t *testing.T) {
	cfg := config.Default()
	storage := state.NewMemoryStorage()
	a := newTestApp(t, &cfg, storage)

	req := httptest.NewRequest(http.MethodPost, "/api/actions/add", strings.NewReader(`{"args":["buy milk"]}`))
	w := httptest.NewRecorder()
	a.server.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, todo.Stats{Total: 1, Active: 1, Filter: todo.FilterAll}, a.stats.Get())

	raw, ok, err := storage.GetItem(cfg.PersistKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, raw, "buy milk")

	count, err := testutil.GatherAndCount(a.registry, "forge_store_updates_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNewApp_RestoresPersistedState(t *testing.T) {
	cfg := config.Default()
	storage := state.NewMemoryStorage()
	require.NoError(t, storage.SetItem(cfg.PersistKey,
		`{"todos":[{"id":"a","title":"persisted","done":true}],"filter":"completed"}`))

	a := newTestApp(t, &cfg, storage)

	items, err := todo.Items(a.store.GetState())
	require.NoError(t, err)
	assert.Equal(t, []todo.Item{{ID: "a", Title: "persisted", Done: true}}, items)
	assert.Equal(t, todo.FilterCompleted, todo.CurrentFilter(a.store.GetState()))
}

func TestServeCmd_HelpDescribesStorage(t *testing.T) {
	out, err := executeCmd(t, "serve", "--help")
	require.NoError(t, err)

	assert.Contains(t, out, "persist_key")
	assert.Contains(t, out, "does not survive a restart")
	assert.NotContains(t, out, "previously persisted")
}

func TestNewApp_FreshStorageStartsEmpty(t *testing.T) {
	cfg := config.Default()
	first := newTestApp(t, &cfg, state.NewMemoryStorage())
	require.NoError(t, first.actions.Dispatch("add", "lost on restart"))

	second := newTestApp(t, &cfg, state.NewMemoryStorage())
	items, err := todo.Items(second.store.GetState())
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestNewApp_SeedAndReseed(t *testing.T) {
	dir := t.TempDir()
	seedPath := filepath.Join(dir, "seed.yaml")
	require.NoError(t, os.WriteFile(seedPath, []byte("todos:\n  - title: seeded\n"), 0644))

	cfg := config.Default()
	cfg.SeedFile = seedPath
	cfg.WatchSeed = true
	a := newTestApp(t, &cfg, state.NewMemoryStorage())
	require.NotNil(t, a.watcher)

	assert.Equal(t, 1, a.stats.Get().Total)

	a.reseed(state.State{"todos": []any{
		map[string]any{"title": "x"},
		map[string]any{"title": "y", "done": true},
	}})
	assert.Equal(t, todo.Stats{Total: 2, Active: 1, Completed: 1, Filter: todo.FilterAll}, a.stats.Get())

	a.reseed(state.State{"filter": "nonsense"})
	assert.Equal(t, 2, a.stats.Get().Total, "invalid seed is ignored")
}

func TestNewApp_MissingSeed(t *testing.T) {
	cfg := config.Default()
	cfg.SeedFile = filepath.Join(t.TempDir(), "missing.yaml")

	logger, _ := zap.NewDevelopment()
	_, err := newApp(&cfg, logger, state.NewMemoryStorage())
	assert.Error(t, err)
}
