package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"forge/internal/api"
	"forge/internal/config"
	"forge/internal/state"
	"forge/internal/todo"
	"forge/pkg/metrics"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the todo service",
	Long: `Start the forge HTTP service.

The server will:
  - Load .env and the YAML config file
  - Seed the store from seed_file, or from the built-in empty list
  - Mirror every update to in-process storage under persist_key
    (the storage does not survive a restart)
  - Serve the API, the websocket stream and /metrics on the configured port
  - Re-seed the store whenever seed_file changes (watch_seed: true)

The server runs until interrupted (Ctrl+C) or receives SIGTERM.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = serveCmd.MarkFlagRequired("config")
}

func runServe(cmd *cobra.Command, args []string) error {
	// Load environment variables before the config so overrides apply
	envErr := godotenv.Load()

	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.NewLoader(configFile, zap.NewNop()).Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	if envErr != nil {
		logger.Debug("No .env file found, using environment variables")
	}

	logger.Info("Starting forge",
		zap.String("version", version),
		zap.String("config", configFile),
		zap.Int("port", cfg.Port),
		zap.String("seed_file", cfg.SeedFile))

	a, err := newApp(cfg, logger, state.NewMemoryStorage())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.start(ctx); err != nil {
		return err
	}

	logger.Info("Application running. Press Ctrl+C to exit.")
	<-ctx.Done()

	logger.Info("Shutting down gracefully...")
	return a.stop()
}

// newLogger builds a development logger for debug and a production logger
// at the requested level otherwise
func newLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

// loadSeed reads and normalizes a todo seed file
func loadSeed(path string) (state.State, error) {
	seed, err := config.LoadSeed(path)
	if err != nil {
		return nil, err
	}
	return todo.Normalize(seed)
}

// app wires the store, its collaborators and the HTTP server together
type app struct {
	logger   *zap.Logger
	store    *state.Store
	actions  state.Actions
	stats    *state.Computed[todo.Stats]
	registry *prometheus.Registry
	server   *api.Server
	watcher  *config.SeedWatcher
}

func newApp(cfg *config.Config, logger *zap.Logger, storage state.Storage) (*app, error) {
	initial := todo.InitialState()
	if cfg.SeedFile != "" {
		seed, err := loadSeed(cfg.SeedFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load seed: %w", err)
		}
		initial = seed
	}

	initial, err := todo.Normalize(state.LoadPersistedState(storage, cfg.PersistKey, initial, logger))
	if err != nil {
		return nil, fmt.Errorf("failed to restore state: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(metrics.WithRegistry(registry), metrics.WithNamespace(cfg.MetricsNamespace))

	onError := m.ErrorHandler(state.LogErrorHandler(logger))
	store := state.New(initial,
		state.WithLogger(logger),
		state.WithErrorHandler(onError),
		state.WithMiddleware(
			state.LoggerMiddleware(logger),
			m.Middleware(),
			state.PersistenceMiddleware(storage, cfg.PersistKey, logger),
		))

	actions := todo.NewActions(store)
	stats := todo.NewStats(store, onError)
	stats.Subscribe(func(s todo.Stats) {
		logger.Debug("Todo stats changed",
			zap.Int("total", s.Total),
			zap.Int("active", s.Active),
			zap.Int("completed", s.Completed))
	})

	a := &app{
		logger:   logger,
		store:    store,
		actions:  actions,
		stats:    stats,
		registry: registry,
		server:   api.NewServer(store, actions, logger, cfg.Port, api.WithStats(stats), api.WithGatherer(registry)),
	}

	if cfg.WatchSeed {
		watcher, err := config.NewSeedWatcher(cfg.SeedFile, a.reseed, logger)
		if err != nil {
			return nil, err
		}
		a.watcher = watcher
	}

	return a, nil
}

// reseed replaces the todo fields with a reloaded seed
func (a *app) reseed(seed state.State) {
	normalized, err := todo.Normalize(seed)
	if err != nil {
		a.logger.Error("Ignoring invalid seed", zap.Error(err))
		return
	}
	a.store.SetState(normalized)
}

func (a *app) start(ctx context.Context) error {
	if err := a.server.Start(); err != nil {
		return fmt.Errorf("failed to start API server: %w", err)
	}
	if a.watcher != nil {
		if err := a.watcher.Start(ctx); err != nil {
			return fmt.Errorf("failed to start seed watcher: %w", err)
		}
	}
	return nil
}

func (a *app) stop() error {
	if a.watcher != nil {
		a.watcher.Stop()
	}
	a.stats.Dispose()
	if err := a.server.Stop(); err != nil {
		a.logger.Error("Failed to stop API server", zap.Error(err))
		return err
	}
	a.logger.Info("Shutdown complete")
	return nil
}
