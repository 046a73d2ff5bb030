package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoader_Load(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	dir := t.TempDir()
	path := writeFile(t, dir, "forge.yaml", `port: 9090
log_level: debug
seed_file: seed.yaml
watch_seed: true
persist_key: todos
`)

	loader := NewLoader(path, logger)
	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, filepath.Join(dir, "seed.yaml"), cfg.SeedFile)
	assert.True(t, cfg.WatchSeed)
	assert.Equal(t, "todos", cfg.PersistKey)
	assert.Equal(t, "forge", cfg.MetricsNamespace, "default kept when omitted")
	assert.Equal(t, ":9090", cfg.Address())
	assert.Same(t, cfg, loader.GetConfig())
}

func TestLoader_EmptyFileUsesDefaults(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	path := writeFile(t, t.TempDir(), "forge.yaml", "")

	cfg, err := NewLoader(path, logger).Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), *cfg)
}

func TestLoader_EnvOverrides(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	path := writeFile(t, t.TempDir(), "forge.yaml", "port: 9090\n")

	t.Setenv(EnvPort, "7070")
	t.Setenv(EnvLogLevel, "warn")

	cfg, err := NewLoader(path, logger).Load()
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Port)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoader_Invalid(t *testing.T) {
	testCases := []struct {
		name    string
		content string
		env     string
		wantErr string
	}{
		{name: "port out of range", content: "port: 70000\n", wantErr: "Port"},
		{name: "unknown log level", content: "log_level: verbose\n", wantErr: "LogLevel"},
		{name: "watch without seed", content: "watch_seed: true\n", wantErr: "SeedFile"},
		{name: "empty persist key", content: "persist_key: \"\"\n", wantErr: "PersistKey"},
		{name: "malformed yaml", content: "port: [\n", wantErr: "failed to parse config"},
		{name: "bad env port", content: "port: 8080\n", env: "eighty", wantErr: EnvPort},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			logger, _ := zap.NewDevelopment()
			path := writeFile(t, t.TempDir(), "forge.yaml", tc.content)
			if tc.env != "" {
				t.Setenv(EnvPort, tc.env)
			}

			_, err := NewLoader(path, logger).Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestLoader_MissingFile(t *testing.T) {
	logger, _ := zap.NewDevelopment()

	loader := NewLoader(filepath.Join(t.TempDir(), "missing.yaml"), logger)
	_, err := loader.Load()
	assert.Error(t, err)
	assert.Nil(t, loader.GetConfig())
}

func TestLoadSeed(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "seed.yaml", `filter: active
todos:
  - title: write docs
  - id: fixed
    title: ship it
    done: true
`)

	seed, err := LoadSeed(path)
	require.NoError(t, err)
	assert.Equal(t, "active", seed["filter"])

	todos, ok := seed["todos"].([]any)
	require.True(t, ok)
	require.Len(t, todos, 2)
	assert.Equal(t, map[string]any{"id": "fixed", "title": "ship it", "done": true}, todos[1])

	empty, err := LoadSeed(writeFile(t, dir, "empty.yaml", ""))
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	_, err = LoadSeed(writeFile(t, dir, "bad.yaml", "- just\n- a list\n"))
	assert.Error(t, err)
}
