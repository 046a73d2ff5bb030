package state

import (
	"forge/internal/state"

	"go.uber.org/zap"
)

// NewStore creates a store holding a copy of initial.
func NewStore(initial State, opts ...Option) Store {
	return state.New(initial, opts...)
}

// NewComputed creates a derived value over deps. Dependencies implementing
// Source are watched; any other value is passed to compute unchanged.
func NewComputed[T any](compute func(values ...any) T, deps ...any) Computed[T] {
	return state.NewComputed(compute, deps...)
}

// NewComputedWithEqual creates a derived value that only notifies when equal
// reports a change.
func NewComputedWithEqual[T any](compute func(values ...any) T, equal func(a, b T) bool, deps ...any) Computed[T] {
	return state.NewComputedWithEqual(compute, equal, deps...)
}

// NewComputedWithOptions creates a derived value configured by opts.
func NewComputedWithOptions[T any](opts ComputedOptions[T], compute func(values ...any) T, deps ...any) Computed[T] {
	return state.NewComputedWithOptions(opts, compute, deps...)
}

// Derive creates a derived value over a single store.
func Derive[T any](store Store, fn func(State) T) Computed[T] {
	return state.NewComputed(func(values ...any) T {
		return fn(values[0].(State))
	}, store)
}

// CreateActions binds reducers to store by name.
func CreateActions(store Store, reducers map[string]Reducer) Actions {
	return state.CreateActions(store, reducers)
}

// WithLogger sets the store logger.
func WithLogger(logger *zap.Logger) Option {
	return state.WithLogger(logger)
}

// WithErrorHandler sets the hook receiving listener failures.
func WithErrorHandler(handler ErrorHandler) Option {
	return state.WithErrorHandler(handler)
}

// WithMiddleware wraps every update commit. The first middleware is outermost.
func WithMiddleware(middleware ...Middleware) Option {
	return state.WithMiddleware(middleware...)
}

// LoggerMiddleware logs the state around every update.
func LoggerMiddleware(logger *zap.Logger) Middleware {
	return state.LoggerMiddleware(logger)
}

// PersistenceMiddleware saves the state to storage under key after every update.
func PersistenceMiddleware(storage Storage, key string, logger *zap.Logger) Middleware {
	return state.PersistenceMiddleware(storage, key, logger)
}

// LoadPersistedState returns the state stored under key, or def.
func LoadPersistedState(storage Storage, key string, def State, logger *zap.Logger) State {
	return state.LoadPersistedState(storage, key, def, logger)
}

// NewMemoryStorage creates an in-process Storage.
func NewMemoryStorage() Storage {
	return state.NewMemoryStorage()
}

// UnwrapStore returns the underlying implementation if available.
func UnwrapStore(s Store) *state.Store {
	if impl, ok := s.(*state.Store); ok {
		return impl
	}
	return nil
}
