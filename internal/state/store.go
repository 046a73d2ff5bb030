package state

import (
	"cmp"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"
)

// Listener is called with a fresh snapshot after every state change
type Listener func(state State)

// Unsubscribe removes a single registration. Calls after the first are no-ops.
type Unsubscribe func()

// Updater computes a partial update from the current full state
type Updater func(current State) (State, error)

// Source is an upstream value a Computed can read and watch for changes
type Source interface {
	// Current returns the value passed to a compute function
	Current() any
	// OnChange registers fn to run after every change of the source
	OnChange(fn func()) Unsubscribe
}

// Option configures a Store
type Option func(*Store)

// WithLogger sets the logger used by the store and its default error handler
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithErrorHandler sets the hook that receives listener failures
func WithErrorHandler(handler ErrorHandler) Option {
	return func(s *Store) {
		s.onError = handler
	}
}

// WithMiddleware wraps every SetState/UpdateState commit.
// The first middleware given is the outermost.
func WithMiddleware(middleware ...Middleware) Option {
	return func(s *Store) {
		s.middleware = append(s.middleware, middleware...)
	}
}

// Store holds a state record and notifies listeners synchronously on change.
//
// Updates are serialized: an updater, the merge and the middleware around it
// run under one lock, so concurrent updates never overwrite each other.
// Commits are delivered to listeners one at a time in commit order. A caller
// whose commit lands while another goroutine is delivering hands it to that
// goroutine, which delivers it before returning. A SetState made from inside a
// listener is delivered after the current pass completes.
type Store struct {
	logger     *zap.Logger
	onError    ErrorHandler
	middleware []Middleware
	commit     Commit

	// serializes updaters, middleware and merges
	updateMu sync.Mutex

	// initial and state are replaced, never mutated in place
	initial   State
	state     State
	listeners map[uint64]Listener
	nextID    uint64
	queue     []State
	draining  bool
	mu        sync.Mutex
}

// New creates a store holding a copy of initial
func New(initial State, opts ...Option) *Store {
	s := &Store{
		logger:    zap.NewNop(),
		initial:   initial.Clone(),
		state:     initial.Clone(),
		listeners: make(map[uint64]Listener),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.onError == nil {
		s.onError = LogErrorHandler(s.logger)
	}

	s.commit = s.apply
	for i := len(s.middleware) - 1; i >= 0; i-- {
		s.commit = s.middleware[i](s)(s.commit)
	}

	return s
}

// GetState returns a copy of the current state
func (s *Store) GetState() State {
	s.mu.Lock()
	current := s.state
	s.mu.Unlock()

	return current.Clone()
}

// SetState shallow-merges partial into the current state and notifies listeners
func (s *Store) SetState(partial State) {
	s.exclusive(func() {
		s.commit(partial)
	})
	s.drain()
}

// UpdateState runs fn against the current state and merges its result.
// No other update is applied between the read and the merge.
// If fn fails the state is left unchanged and the error is returned.
// fn must not call back into the store's update methods.
func (s *Store) UpdateState(fn Updater) error {
	var err error
	s.exclusive(func() {
		var partial State
		partial, err = fn(s.GetState())
		if err != nil {
			err = fmt.Errorf("state update failed: %w", err)
			return
		}
		s.commit(partial)
	})
	if err != nil {
		return err
	}

	s.drain()
	return nil
}

// Reset restores the state captured at construction and notifies listeners.
// Middleware is not applied.
func (s *Store) Reset() {
	s.exclusive(func() {
		s.mu.Lock()
		s.state = s.initial.Clone()
		s.queue = append(s.queue, s.state)
		s.mu.Unlock()
	})

	s.logger.Debug("State reset")
	s.drain()
}

func (s *Store) exclusive(fn func()) {
	s.updateMu.Lock()
	defer s.updateMu.Unlock()
	fn()
}

// Subscribe registers listener and returns the handle that removes it
func (s *Store) Subscribe(listener Listener) Unsubscribe {
	if listener == nil {
		return func() {}
	}

	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.listeners[id] = listener
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// ListenerCount returns the number of active registrations
func (s *Store) ListenerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners)
}

// Current implements Source
func (s *Store) Current() any {
	return s.GetState()
}

// OnChange implements Source
func (s *Store) OnChange(fn func()) Unsubscribe {
	return s.Subscribe(func(State) { fn() })
}

// apply is the innermost commit: merge and queue the result for delivery
func (s *Store) apply(partial State) {
	s.mu.Lock()
	s.state = s.state.Merge(partial)
	s.queue = append(s.queue, s.state)
	s.mu.Unlock()
}

// drain delivers queued commits in order. Only one goroutine drains at a time;
// any other caller returns at once and its commit is delivered by the drainer.
func (s *Store) drain() {
	s.mu.Lock()
	if s.draining {
		s.mu.Unlock()
		return
	}
	s.draining = true

	for len(s.queue) > 0 {
		next := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		subs := s.snapshotListeners()
		s.mu.Unlock()

		s.notify(next, subs)

		s.mu.Lock()
	}

	s.draining = false
	s.mu.Unlock()
}

type registration struct {
	id       uint64
	listener Listener
}

// snapshotListeners copies the listener set in registration order.
// Callers must hold s.mu.
func (s *Store) snapshotListeners() []registration {
	subs := make([]registration, 0, len(s.listeners))
	for id, l := range s.listeners {
		subs = append(subs, registration{id: id, listener: l})
	}
	slices.SortFunc(subs, func(a, b registration) int {
		return cmp.Compare(a.id, b.id)
	})
	return subs
}

func (s *Store) notify(next State, subs []registration) {
	for _, sub := range subs {
		s.deliver(sub, next.Clone())
	}
}

// deliver invokes one listener, converting a panic into a ListenerError
func (s *Store) deliver(sub registration, snapshot State) {
	defer func() {
		if r := recover(); r != nil {
			s.onError(&ListenerError{SubscriptionID: sub.id, Value: r})
		}
	}()
	sub.listener(snapshot)
}
