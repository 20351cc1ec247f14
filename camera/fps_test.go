package camera

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeClock hands out timestamps advancing by a fixed step per call.
type fakeClock struct {
	t    time.Time
	step time.Duration
}

func (c *fakeClock) now() time.Time {
	c.t = c.t.Add(c.step)
	return c.t
}

func TestFPSCounter(t *testing.T) {

	clock := &fakeClock{t: time.Unix(0, 0), step: 100 * time.Millisecond}

	fps := NewFPSCounter(30)
	fps.now = clock.now

	// no rate until two frames have been recorded
	assert.Equal(t, float32(0), fps.FPS())

	fps.Tick()
	assert.Equal(t, float32(0), fps.FPS())

	// frames arriving every 100ms measure 10 fps
	for i := 0; i < 10; i++ {
		fps.Tick()
	}

	assert.InDelta(t, 10.0, fps.FPS(), 0.01)
}

// TestFPSCounterWindow checks the rate tracks only the newest frames once
// the window is full.
func TestFPSCounterWindow(t *testing.T) {

	clock := &fakeClock{t: time.Unix(0, 0), step: time.Second}

	fps := NewFPSCounter(5)
	fps.now = clock.now

	// a slow start at 1 fps
	for i := 0; i < 10; i++ {
		fps.Tick()
	}

	assert.InDelta(t, 1.0, fps.FPS(), 0.01)

	// speeding up to 10 fps displaces the slow samples
	clock.step = 100 * time.Millisecond

	for i := 0; i < 5; i++ {
		fps.Tick()
	}

	assert.InDelta(t, 10.0, fps.FPS(), 0.01)
}

func TestFPSCounterDefaultWindow(t *testing.T) {

	fps := NewFPSCounter(0)
	assert.Equal(t, defaultFPSWindow, fps.window)
}
