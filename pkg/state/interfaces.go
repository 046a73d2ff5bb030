// Package state provides the public interface definitions for the reactive store.
// These interfaces can be imported by external packages.
//
// The actual implementation is in internal/state, which is exposed through the
// constructors in this package.
package state

import (
	"forge/internal/state"
)

// State is a record of named fields. Snapshots are independent copies.
type State = state.State

// Listener is called with a fresh snapshot after every state change.
type Listener = state.Listener

// Unsubscribe removes one registration. It is safe to call more than once.
type Unsubscribe = state.Unsubscribe

// Updater computes a partial update from the current full state.
type Updater = state.Updater

// Reducer computes a partial update from the current state and action arguments.
type Reducer = state.Reducer

// Actions maps action names to bound actions.
type Actions = state.Actions

// Middleware wraps the commit path of a store.
type Middleware = state.Middleware

// Storage is a string key/value backend used by the persistence middleware.
type Storage = state.Storage

// Option configures a store at construction.
type Option = state.Option

// ErrorHandler receives listener failures.
type ErrorHandler = state.ErrorHandler

// ListenerError reports a panic raised by a listener.
type ListenerError = state.ListenerError

// ErrUnknownAction is returned when dispatching an unbound action name.
var ErrUnknownAction = state.ErrUnknownAction

// Source is an upstream value a Computed can read and watch.
type Source = state.Source

// StateReader is the view of a store that middleware receives.
type StateReader = state.StateReader

// Commit applies a partial update inside a middleware chain.
type Commit = state.Commit

// ComputedOptions configures a derived value.
type ComputedOptions[T any] = state.ComputedOptions[T]

// Store defines the interface of a reactive store.
// This interface matches the public methods of internal/state.Store.
type Store interface {
	Source

	// Reads
	GetState() State
	ListenerCount() int

	// Updates
	SetState(partial State)
	UpdateState(fn Updater) error
	Reset()

	// Subscription
	Subscribe(listener Listener) Unsubscribe
}

// Computed defines the interface of a derived value.
type Computed[T any] interface {
	Source

	Get() T
	Subscribe(listener func(T)) Unsubscribe
	Dispose()
}
