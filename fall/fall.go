// Package fall implements fall detection over pose estimation keypoints.
//
// The detector is a debounced threshold-ratio filter: each frame the body
// axis angle is compared against a threshold and the boolean outcome is
// pushed into a fixed capacity sliding window.  An alarm is raised once the
// window is full and the fraction of over-threshold samples reaches the
// confirm ratio.  There is no separate recovery rule, the alarm clears when
// the ratio drops below the threshold on a later frame.
package fall

import (
	"log/slog"
	"time"

	"github.com/chewxy/math32"

	"github.com/edgevision/go-falldetect/postprocess/result"
)

// minKeyPoints is the minimum number of COCO skeleton keypoints needed to
// compute the body axis, the nose and both hip points must be present and
// the right hip is keypoint index 12.
const minKeyPoints = 13

// Config defines the fall detector parameters.
type Config struct {
	// WindowSize is the number of frames in the sliding confirmation window
	WindowSize int
	// AngleThreshold is the body axis angle in degrees beyond which a frame
	// counts as falling
	AngleThreshold float32
	// ConfirmRatio is the fraction of the window that must be over the angle
	// threshold before the alarm is raised
	ConfirmRatio float32
}

// DefaultConfig returns the fall detector defaults: a 15 frame window, a 60
// degree angle threshold and a 0.8 confirm ratio.
func DefaultConfig() Config {
	return Config{
		WindowSize:     15,
		AngleThreshold: 60,
		ConfirmRatio:   0.8,
	}
}

// Validate warns about out of range parameter values.  Configuration errors
// are not fatal, processing continues with the values given.
func (c Config) Validate(log *slog.Logger) {

	if log == nil {
		log = slog.Default()
	}

	if c.WindowSize <= 0 {
		log.Warn("fall window size is not positive", "windowSize", c.WindowSize)
	}

	if c.ConfirmRatio < 0 || c.ConfirmRatio > 1 {
		log.Warn("fall confirm ratio outside [0,1], using value as given",
			"confirmRatio", c.ConfirmRatio)
	}
}

// Detector converts noisy per frame body angle estimates into a debounced
// fall alarm.  A Detector instance is owned by a single monitored subject
// and must be driven from one goroutine.
type Detector struct {
	cfg Config
	// window is the FIFO of per frame falling samples, capped at WindowSize
	window []bool
	// lastFall is the time the alarm last evaluated true, zero when never
	lastFall time.Time
}

// NewDetector returns a fall detector with the given configuration.
func NewDetector(cfg Config) *Detector {
	return &Detector{
		cfg:    cfg,
		window: make([]bool, 0, cfg.WindowSize),
	}
}

// BodyAngle computes the body axis angle in degrees from COCO skeleton
// keypoints: the absolute angle between vertical and the line from the hip
// midpoint to the nose.  An upright person measures near 0, a person lying
// down near 90.
func BodyAngle(keyPoints []result.KeyPoint) float32 {

	head := keyPoints[0]
	hipX := (keyPoints[11].X + keyPoints[12].X) / 2
	hipY := (keyPoints[11].Y + keyPoints[12].Y) / 2

	dx := head.X - hipX
	dy := head.Y - hipY

	return math32.Abs(math32.Atan2(dx, -dy) * 180 / math32.Pi)
}

// Detect consumes one frame's pose keypoints and reports whether the fall
// alarm is active, along with the computed body angle.  A skeleton too short
// to hold the nose and hip points means the body axis is undefined, the
// frame is treated as no detection and the window is left untouched.
func (d *Detector) Detect(keyPoints []result.KeyPoint) (bool, float32) {

	if len(keyPoints) < minKeyPoints {
		return false, 0
	}

	angle := BodyAngle(keyPoints)

	return d.Observe(angle), angle
}

// Observe consumes one frame's body angle and reports whether the fall
// alarm is active.  The alarm requires a full window in which the fraction
// of over-threshold frames reaches the confirm ratio.
func (d *Detector) Observe(angle float32) bool {

	d.window = append(d.window, angle > d.cfg.AngleThreshold)

	// evict the oldest sample once over capacity
	if len(d.window) > d.cfg.WindowSize {
		d.window = d.window[1:]
	}

	if len(d.window) < d.cfg.WindowSize {
		// insufficient history
		return false
	}

	falling := 0

	for _, f := range d.window {
		if f {
			falling++
		}
	}

	ratio := float32(falling) / float32(len(d.window))

	if ratio >= d.cfg.ConfirmRatio {
		d.lastFall = time.Now()
		return true
	}

	return false
}

// LastFallTime returns the time the alarm last evaluated true.  The second
// return is false when no alarm has been raised since creation or the last
// Reset.
func (d *Detector) LastFallTime() (time.Time, bool) {
	return d.lastFall, !d.lastFall.IsZero()
}

// Reset clears the confirmation window and the last alarm time.  The reset
// is never performed implicitly.
func (d *Detector) Reset() {
	d.window = d.window[:0]
	d.lastFall = time.Time{}
}
