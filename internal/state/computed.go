package state

import (
	"cmp"
	"slices"
	"sync"

	"go.uber.org/zap"
)

// Computed is a value derived from one or more dependencies.
//
// A dependency implementing Source is read through Current and watched through
// OnChange; any other dependency is passed to the compute function unchanged.
// Every change of any watched source recomputes the value once and notifies
// listeners, even when the result is equal to the previous one, unless an
// equality function was supplied with NewComputedWithEqual.
type Computed[T any] struct {
	compute func(values ...any) T
	equal   func(a, b T) bool
	onError ErrorHandler
	deps    []any

	// serializes recomputation
	computeMu sync.Mutex

	mu        sync.Mutex
	value     T
	listeners map[uint64]func(T)
	nextID    uint64
	unsubs    []Unsubscribe
	disposed  bool
	queue     []computedDelivery[T]
	draining  bool
}

// ComputedOptions configures NewComputedWithOptions
type ComputedOptions[T any] struct {
	// Equal suppresses notification when it reports the new value equal to the previous one
	Equal func(a, b T) bool
	// ErrorHandler receives listener failures. Defaults to logging through zap.L().
	ErrorHandler ErrorHandler
}

// NewComputed computes the initial value and subscribes to every Source in deps
func NewComputed[T any](compute func(values ...any) T, deps ...any) *Computed[T] {
	return NewComputedWithOptions(ComputedOptions[T]{}, compute, deps...)
}

// NewComputedWithEqual is NewComputed with change suppression: when equal reports
// the new value equal to the previous one, listeners are not notified.
func NewComputedWithEqual[T any](compute func(values ...any) T, equal func(a, b T) bool, deps ...any) *Computed[T] {
	return NewComputedWithOptions(ComputedOptions[T]{Equal: equal}, compute, deps...)
}

// NewComputedWithOptions is NewComputed configured by opts
func NewComputedWithOptions[T any](opts ComputedOptions[T], compute func(values ...any) T, deps ...any) *Computed[T] {
	c := &Computed[T]{
		compute:   compute,
		equal:     opts.Equal,
		onError:   opts.ErrorHandler,
		deps:      deps,
		listeners: make(map[uint64]func(T)),
	}
	if c.onError == nil {
		c.onError = LogErrorHandler(zap.L())
	}

	// Compute initial value
	c.value = compute(c.read()...)

	// Subscribe to dependency changes
	for _, dep := range deps {
		if src, ok := dep.(Source); ok {
			c.unsubs = append(c.unsubs, src.OnChange(c.recompute))
		}
	}

	return c
}

// Derive is a Computed over a single store
func Derive[T any](store *Store, fn func(State) T) *Computed[T] {
	return NewComputed(func(values ...any) T {
		return fn(values[0].(State))
	}, store)
}

// read collects the current value of every dependency in order
func (c *Computed[T]) read() []any {
	values := make([]any, len(c.deps))
	for i, dep := range c.deps {
		if src, ok := dep.(Source); ok {
			values[i] = src.Current()
			continue
		}
		values[i] = dep
	}
	return values
}

func (c *Computed[T]) recompute() {
	c.refresh()
	c.drain()
}

// refresh recomputes and queues the new value for delivery.
// Nothing is queued once disposed or when the value is suppressed as equal.
func (c *Computed[T]) refresh() {
	c.computeMu.Lock()
	defer c.computeMu.Unlock()

	c.mu.Lock()
	disposed := c.disposed
	c.mu.Unlock()
	if disposed {
		return
	}

	next := c.compute(c.read()...)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return
	}
	prev := c.value
	c.value = next
	if c.equal != nil && c.equal(prev, next) {
		return
	}
	c.queue = append(c.queue, computedDelivery[T]{value: next})
}

// Get returns the most recently computed value
func (c *Computed[T]) Get() T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Subscribe calls listener immediately with the current value and again after
// every recomputation until the returned handle is called. When another
// goroutine is delivering values, the first call is made by that goroutine
// after the values queued before it.
func (c *Computed[T]) Subscribe(listener func(T)) Unsubscribe {
	if listener == nil {
		return func() {}
	}

	c.mu.Lock()
	id, unsub := c.registerLocked(listener)
	c.queue = append(c.queue, computedDelivery[T]{value: c.value, target: &computedRegistration[T]{id: id, fn: listener}})
	c.mu.Unlock()

	c.drain()
	return unsub
}

// Current implements Source
func (c *Computed[T]) Current() any {
	return c.Get()
}

// OnChange implements Source. Unlike Subscribe it does not deliver eagerly.
func (c *Computed[T]) OnChange(fn func()) Unsubscribe {
	return c.register(func(T) { fn() })
}

// ListenerCount returns the number of active registrations
func (c *Computed[T]) ListenerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.listeners)
}

// Dispose releases every upstream subscription and drops all listeners.
// Get keeps returning the last computed value.
func (c *Computed[T]) Dispose() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.disposed = true
	unsubs := c.unsubs
	c.unsubs = nil
	clear(c.listeners)
	c.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
}

func (c *Computed[T]) register(fn func(T)) Unsubscribe {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, unsub := c.registerLocked(fn)
	return unsub
}

// registerLocked must be called with c.mu held. Once disposed it registers
// nothing and returns id 0.
func (c *Computed[T]) registerLocked(fn func(T)) (uint64, Unsubscribe) {
	if c.disposed {
		return 0, func() {}
	}
	c.nextID++
	id := c.nextID
	c.listeners[id] = fn

	var once sync.Once
	return id, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.listeners, id)
			c.mu.Unlock()
		})
	}
}

// drain delivers queued values in order; see Store.drain
func (c *Computed[T]) drain() {
	c.mu.Lock()
	if c.draining {
		c.mu.Unlock()
		return
	}
	c.draining = true

	for len(c.queue) > 0 {
		next := c.queue[0]
		c.queue[0] = computedDelivery[T]{}
		c.queue = c.queue[1:]

		var subs []computedRegistration[T]
		if next.target != nil {
			subs = []computedRegistration[T]{*next.target}
		} else {
			subs = c.snapshotListeners()
		}
		c.mu.Unlock()

		for _, sub := range subs {
			c.deliver(sub.id, sub.fn, next.value)
		}

		c.mu.Lock()
	}

	c.draining = false
	c.mu.Unlock()
}

type computedDelivery[T any] struct {
	value T
	// target is set for the eager delivery to a new subscriber
	target *computedRegistration[T]
}

type computedRegistration[T any] struct {
	id uint64
	fn func(T)
}

// snapshotListeners must be called with c.mu held
func (c *Computed[T]) snapshotListeners() []computedRegistration[T] {
	subs := make([]computedRegistration[T], 0, len(c.listeners))
	for id, fn := range c.listeners {
		subs = append(subs, computedRegistration[T]{id: id, fn: fn})
	}
	slices.SortFunc(subs, func(a, b computedRegistration[T]) int {
		return cmp.Compare(a.id, b.id)
	})
	return subs
}

func (c *Computed[T]) deliver(id uint64, fn func(T), value T) {
	defer func() {
		if r := recover(); r != nil {
			c.onError(&ListenerError{SubscriptionID: id, Value: r})
		}
	}()
	fn(value)
}
