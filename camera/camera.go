// Package camera implements the frame capture service: a background loop
// reading the capture device into a single latest-frame slot, with
// unbounded reconnect on device failure for field deployment tolerance.
//
// There is no backpressure.  A consumer slower than the capture rate sees
// frames silently dropped, only the newest is retained; a faster consumer
// may read the same frame twice.
package camera

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// Device abstracts the underlying capture handle.
type Device interface {
	// Read grabs the next frame into dst and reports success
	Read(dst *gocv.Mat) bool
	// Close releases the device handle
	Close() error
}

// openFunc opens a capture device, used both at start and on reconnect.
type openFunc func() (Device, error)

// Config defines the capture service parameters.
type Config struct {
	// Source is the capture device number
	Source int
	// Width and Height are the requested capture resolution
	Width  int
	Height int
	// FPS is the requested capture frame rate
	FPS int
	// MaxFailures is the number of consecutive read failures before the
	// device handle is torn down and rebuilt
	MaxFailures int
	// ReconnectDelay is the backoff before reopening the device
	ReconnectDelay time.Duration
}

// DefaultConfig returns the capture service defaults, a 1280x720 30fps
// device with reconnect after 5 consecutive read failures and 500ms
// backoff.
func DefaultConfig() Config {
	return Config{
		Source:         0,
		Width:          1280,
		Height:         720,
		FPS:            30,
		MaxFailures:    5,
		ReconnectDelay: 500 * time.Millisecond,
	}
}

// Camera is the capture service.  Start launches the background capture
// loop, Read hands out defensive copies of the most recent frame.
type Camera struct {
	cfg  Config
	open openFunc
	log  *slog.Logger

	// mu guards the latest frame slot
	mu       sync.Mutex
	frame    gocv.Mat
	hasFrame bool

	device  Device
	running bool
	stop    chan struct{}
	done    chan struct{}
}

// New returns a capture service over the video device in cfg.
func New(cfg Config, log *slog.Logger) *Camera {

	if log == nil {
		log = slog.Default()
	}

	c := &Camera{
		cfg:   cfg,
		log:   log,
		frame: gocv.NewMat(),
	}

	c.open = func() (Device, error) {
		return openVideoCapture(cfg)
	}

	return c
}

// newWithOpener is used by tests to substitute the capture device.
func newWithOpener(cfg Config, log *slog.Logger, open openFunc) *Camera {

	c := New(cfg, log)
	c.open = open

	return c
}

// openVideoCapture opens the gocv video capture device and applies the
// configured resolution and frame rate.
func openVideoCapture(cfg Config) (Device, error) {

	vc, err := gocv.OpenVideoCapture(cfg.Source)

	if err != nil {
		return nil, fmt.Errorf("error opening capture device %d: %w", cfg.Source, err)
	}

	vc.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	vc.Set(gocv.VideoCaptureFPS, float64(cfg.FPS))

	return vc, nil
}

// Start opens the capture device and launches the background capture loop.
func (c *Camera) Start() error {

	if c.running {
		return fmt.Errorf("capture already running")
	}

	device, err := c.open()

	if err != nil {
		return err
	}

	c.device = device
	c.running = true
	c.stop = make(chan struct{})
	c.done = make(chan struct{})

	go c.captureLoop()

	return nil
}

// captureLoop continuously reads frames into the latest-frame slot.  On
// repeated read failures the device handle is rebuilt after a backoff and
// reading resumes, the loop never gives up on its own.
func (c *Camera) captureLoop() {

	defer close(c.done)

	buf := gocv.NewMat()
	defer buf.Close()

	failCount := 0

	for {
		select {
		case <-c.stop:
			return
		default:
		}

		if c.device.Read(&buf) && !buf.Empty() {

			failCount = 0

			c.mu.Lock()
			buf.CopyTo(&c.frame)
			c.hasFrame = true
			c.mu.Unlock()

			continue
		}

		failCount++

		if failCount >= c.cfg.MaxFailures {
			c.reconnect()
			failCount = 0
		} else {
			// brief wait before retrying the same handle
			time.Sleep(100 * time.Millisecond)
		}
	}
}

// reconnect tears down and rebuilds the capture device handle.  Open
// failures are logged and retried on the next reconnect round, the frame
// stream simply stays empty during the outage.
func (c *Camera) reconnect() {

	c.log.Warn("capture read failures, reconnecting device",
		"source", c.cfg.Source)

	if c.device != nil {
		_ = c.device.Close()
		c.device = nil
	}

	time.Sleep(c.cfg.ReconnectDelay)

	device, err := c.open()

	if err != nil {
		c.log.Warn("capture reconnect failed, will retry",
			"source", c.cfg.Source, "error", err)
		c.device = &deadDevice{}
		return
	}

	c.device = device
}

// deadDevice stands in for the capture handle after a failed reconnect so
// the loop keeps cycling into the next reconnect attempt.
type deadDevice struct{}

func (d *deadDevice) Read(dst *gocv.Mat) bool { return false }
func (d *deadDevice) Close() error            { return nil }

// Read returns a defensive copy of the most recent frame.  The second
// return is false when no frame has arrived yet, such as during a device
// outage.  The caller owns the returned Mat and must Close it.
func (c *Camera) Read() (gocv.Mat, bool) {

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.hasFrame {
		return gocv.Mat{}, false
	}

	return c.frame.Clone(), true
}

// Stop signals the capture loop to finish and waits for it with a bounded
// timeout.
func (c *Camera) Stop() {

	if !c.running {
		return
	}

	c.running = false
	close(c.stop)

	select {
	case <-c.done:
	case <-time.After(time.Second):
		c.log.Warn("capture loop did not stop within timeout")
	}
}

// Close stops the capture loop and releases the device handle regardless
// of the loop join outcome.
func (c *Camera) Close() error {

	c.Stop()

	var err error

	if c.device != nil {
		err = c.device.Close()
		c.device = nil
	}

	c.mu.Lock()
	c.frame.Close()
	c.hasFrame = false
	c.mu.Unlock()

	return err
}
