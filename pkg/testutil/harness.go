// Package testutil provides test helpers for code built on forge/pkg/state.
// It only depends on the public packages, so external modules can use it.
package testutil

import (
	"forge/pkg/metrics"
	"forge/pkg/state"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// TestEnv is a store wired the way the forge service wires it, with every
// notification recorded and listener failures captured instead of logged.
//
// Example usage:
//
//	env := testutil.NewTestEnv(state.State{"count": 0})
//	defer env.Cleanup()
//
//	env.Store.SetState(state.State{"count": 1})
//	require.True(t, env.Snapshots.WaitFor(1, time.Second))
type TestEnv struct {
	Store     state.Store
	Snapshots *Recorder[state.State]
	Failures  *Recorder[error]
	// ErrorHandler is the store's failure hook. Pass it to derived values so
	// their listener failures are counted and recorded too.
	ErrorHandler state.ErrorHandler
	Metrics   *metrics.Metrics
	Registry  *prometheus.Registry
	Logger    *zap.Logger

	unsubscribe state.Unsubscribe
}

// NewTestEnv creates a store over initial with metrics middleware and a
// recording listener. Extra options are applied after the defaults, so a
// WithMiddleware here adds to the metrics middleware.
func NewTestEnv(initial state.State, opts ...state.Option) *TestEnv {
	logger, _ := zap.NewDevelopment()
	registry := prometheus.NewRegistry()
	m := metrics.New(metrics.WithRegistry(registry))

	env := &TestEnv{
		Snapshots: NewRecorder[state.State](),
		Failures:  NewRecorder[error](),
		Metrics:   m,
		Registry:  registry,
		Logger:    logger,
	}
	env.ErrorHandler = m.ErrorHandler(env.Failures.Record)

	defaults := []state.Option{
		state.WithLogger(logger),
		state.WithErrorHandler(env.ErrorHandler),
		state.WithMiddleware(m.Middleware()),
	}
	env.Store = state.NewStore(initial, append(defaults, opts...)...)
	env.unsubscribe = env.Store.Subscribe(env.Snapshots.Record)
	return env
}

// Cleanup removes the recording listener.
// Always call this in a defer after creating the TestEnv.
func (e *TestEnv) Cleanup() {
	e.unsubscribe()
	e.Logger.Sync()
}
