package query

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDebouncerLatestWins(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)
	defer d.Stop()

	var fired atomic.Int32
	var last atomic.Int32
	for i := 1; i <= 5; i++ {
		n := int32(i)
		d.Trigger(func() {
			fired.Add(1)
			last.Store(n)
		})
		time.Sleep(5 * time.Millisecond)
	}

	assert.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(5), last.Load(), "only the most recent callback runs")

	// Quiet period long gone; nothing else may fire.
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load())
}

func TestDebouncerStopCancelsPending(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)

	var fired atomic.Int32
	d.Trigger(func() { fired.Add(1) })
	d.Stop()

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, fired.Load())
}

func TestDebouncerSequentialTriggers(t *testing.T) {
	d := NewDebouncer(10 * time.Millisecond)
	defer d.Stop()

	var fired atomic.Int32
	d.Trigger(func() { fired.Add(1) })
	assert.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)

	// A trigger after the previous callback fired schedules a fresh one.
	d.Trigger(func() { fired.Add(1) })
	assert.Eventually(t, func() bool { return fired.Load() == 2 }, time.Second, 5*time.Millisecond)
}
