package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeOrdering(t *testing.T) {
	c := NewFake()
	var order []int
	c.AfterFunc(30*time.Millisecond, func() { order = append(order, 3) })
	c.AfterFunc(10*time.Millisecond, func() {
		order = append(order, 1)
		c.AfterFunc(10*time.Millisecond, func() { order = append(order, 2) })
	})
	c.Advance(25 * time.Millisecond)
	assert.Equal(t, []int{1, 2}, order)
	c.Advance(5 * time.Millisecond)
	assert.Equal(t, []int{1, 2, 3}, order)
	assert.Zero(t, c.Pending())
}

func TestFakeStop(t *testing.T) {
	c := NewFake()
	fired := false
	tmr := c.AfterFunc(time.Millisecond, func() { fired = true })
	require.True(t, tmr.Stop())
	require.False(t, tmr.Stop())
	c.Advance(time.Second)
	assert.False(t, fired)
}

func TestFakeNow(t *testing.T) {
	c := NewFake()
	start := c.Now()
	var at time.Time
	c.AfterFunc(40*time.Millisecond, func() { at = c.Now() })
	c.Advance(time.Second)
	assert.Equal(t, 40*time.Millisecond, at.Sub(start))
	assert.Equal(t, time.Second, c.Now().Sub(start))
}
