// Package clock abstracts time so debouncing and timestamps can be driven
// by tests. Use Real in production and Mock in tests.
package clock

import (
	"slices"
	"sync"
	"time"
)

// Clock is the subset of the time package used by forge
type Clock interface {
	Now() time.Time

	// AfterFunc calls f once d has elapsed. Real clocks call f on its own
	// goroutine; Mock calls it from Advance.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a pending AfterFunc call
type Timer interface {
	// Stop reports whether the call was still pending
	Stop() bool
	// Reset reschedules the call d from now and reports whether it was pending
	Reset(d time.Duration) bool
}

// Real implements Clock with the time package
type Real struct{}

// NewReal returns the wall clock
func NewReal() Real {
	return Real{}
}

func (Real) Now() time.Time {
	return time.Now()
}

func (Real) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Mock is a Clock that only moves when told to
type Mock struct {
	mu      sync.Mutex
	current time.Time
	timers  map[*mockTimer]struct{}
}

type mockTimer struct {
	clock    *Mock
	deadline time.Time
	f        func()
}

// NewMock creates a Mock starting at start
func NewMock(start time.Time) *Mock {
	return &Mock{
		current: start,
		timers:  make(map[*mockTimer]struct{}),
	}
}

func (c *Mock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *Mock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &mockTimer{clock: c, deadline: c.current.Add(d), f: f}
	c.timers[t] = struct{}{}
	return t
}

// Pending returns the number of scheduled calls
func (c *Mock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// Advance moves the clock forward by d and runs every call that came due,
// in deadline order, on the calling goroutine
func (c *Mock) Advance(d time.Duration) {
	c.mu.Lock()
	c.current = c.current.Add(d)

	var due []*mockTimer
	for t := range c.timers {
		if !t.deadline.After(c.current) {
			due = append(due, t)
			delete(c.timers, t)
		}
	}
	c.mu.Unlock()

	slices.SortFunc(due, func(a, b *mockTimer) int {
		return a.deadline.Compare(b.deadline)
	})
	for _, t := range due {
		t.f()
	}
}

func (t *mockTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()

	_, pending := t.clock.timers[t]
	delete(t.clock.timers, t)
	return pending
}

func (t *mockTimer) Reset(d time.Duration) bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()

	_, pending := t.clock.timers[t]
	t.deadline = t.clock.current.Add(d)
	t.clock.timers[t] = struct{}{}
	return pending
}
