package camera

import (
	"time"
)

// defaultFPSWindow is the number of frame timestamps the counter retains.
const defaultFPSWindow = 30

// FPSCounter measures the achieved frame rate over a sliding window of
// frame timestamps.  Driven from the consumer loop, not the capture loop,
// so it reports processing throughput rather than device capture rate.
type FPSCounter struct {
	window int
	times  []time.Time
	now    func() time.Time
}

// NewFPSCounter returns a frame rate counter averaging over the given
// number of frames, or the default window when size is not positive.
func NewFPSCounter(window int) *FPSCounter {

	if window <= 0 {
		window = defaultFPSWindow
	}

	return &FPSCounter{
		window: window,
		now:    time.Now,
	}
}

// Tick records a processed frame, evicting the oldest timestamp once the
// window is full.
func (f *FPSCounter) Tick() {

	f.times = append(f.times, f.now())

	if len(f.times) > f.window {
		f.times = f.times[1:]
	}
}

// FPS returns the frame rate over the recorded window.  Zero until two
// frames have been recorded.
func (f *FPSCounter) FPS() float32 {

	if len(f.times) < 2 {
		return 0
	}

	elapsed := f.times[len(f.times)-1].Sub(f.times[0]).Seconds()

	if elapsed <= 0 {
		return 0
	}

	return float32(len(f.times)-1) / float32(elapsed)
}
