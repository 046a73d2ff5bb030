package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var start = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestMock_AdvanceRunsDueCallsInOrder(t *testing.T) {
	c := NewMock(start)

	var fired []string
	c.AfterFunc(30*time.Millisecond, func() { fired = append(fired, "late") })
	c.AfterFunc(10*time.Millisecond, func() { fired = append(fired, "early") })
	c.AfterFunc(time.Second, func() { fired = append(fired, "never") })

	c.Advance(50 * time.Millisecond)

	assert.Equal(t, []string{"early", "late"}, fired)
	assert.Equal(t, start.Add(50*time.Millisecond), c.Now())
	assert.Equal(t, 1, c.Pending())
}

func TestMock_StopAndReset(t *testing.T) {
	c := NewMock(start)

	calls := 0
	timer := c.AfterFunc(10*time.Millisecond, func() { calls++ })

	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop())
	c.Advance(time.Second)
	assert.Equal(t, 0, calls)

	assert.False(t, timer.Reset(10*time.Millisecond))
	c.Advance(5 * time.Millisecond)
	assert.True(t, timer.Reset(10*time.Millisecond), "reset pushes the deadline out")
	c.Advance(5 * time.Millisecond)
	assert.Equal(t, 0, calls)

	c.Advance(5 * time.Millisecond)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, c.Pending())
}

func TestReal_AfterFunc(t *testing.T) {
	c := NewReal()
	done := make(chan struct{})
	c.AfterFunc(time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
	assert.False(t, c.Now().IsZero())
}
