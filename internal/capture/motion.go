package capture

import (
	"image"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

const (
	blurSize      = 21
	diffThreshold = 25
)

// MotionDetector compares each frame with the previous one and reports the
// percentage of pixels that changed.
type MotionDetector struct {
	threshold   float64
	prevGray    gocv.Mat
	initialized bool
	mu          sync.Mutex
}

// NewMotionDetector creates a MotionDetector. threshold is the changed
// pixel percentage above which a frame counts as motion.
func NewMotionDetector(threshold float64) *MotionDetector {
	return &MotionDetector{threshold: threshold, prevGray: gocv.NewMat()}
}

// Detect returns whether frame moved relative to the previous frame and by
// how much. The first frame only sets the baseline.
func (m *MotionDetector) Detect(frame *gocv.Mat) (bool, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if frame == nil || frame.Empty() {
		return false, 0
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}
	gocv.GaussianBlur(gray, &gray, image.Pt(blurSize, blurSize), 0, 0, gocv.BorderDefault)

	if !m.initialized || m.prevGray.Rows() != gray.Rows() || m.prevGray.Cols() != gray.Cols() {
		gray.CopyTo(&m.prevGray)
		m.initialized = true
		return false, 0
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(gray, m.prevGray, &diff)
	gocv.Threshold(diff, &diff, diffThreshold, 255, gocv.ThresholdBinary)

	changed := float64(gocv.CountNonZero(diff)) / float64(diff.Rows()*diff.Cols()) * 100
	gray.CopyTo(&m.prevGray)
	return changed > m.threshold, changed
}

// Reset drops the baseline frame.
func (m *MotionDetector) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initialized = false
}

// Close releases the baseline frame.
func (m *MotionDetector) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prevGray.Close()
	m.prevGray = gocv.NewMat()
	m.initialized = false
}

// Gate decides whether a frame is worth running the face detector on.
//
// While a face was seen within Hold the tracker is active and every frame
// passes. Otherwise only frames with motion pass, so an empty room costs a
// frame difference instead of a landmark model call.
type Gate struct {
	motion *MotionDetector
	hold   time.Duration

	mu       sync.Mutex
	lastFace time.Time
}

// NewGate creates a Gate. A nil motion detector passes every idle frame.
func NewGate(motion *MotionDetector, hold time.Duration) *Gate {
	return &Gate{motion: motion, hold: hold}
}

// Allow reports whether frame should go to the detector.
func (g *Gate) Allow(frame *gocv.Mat, now time.Time) bool {
	if g.Active(now) {
		return true
	}
	if g.motion == nil {
		return true
	}
	moved, _ := g.motion.Detect(frame)
	return moved
}

// FaceSeen marks the tracker active.
func (g *Gate) FaceSeen(now time.Time) {
	g.mu.Lock()
	g.lastFace = now
	g.mu.Unlock()
	if g.motion != nil {
		g.motion.Reset()
	}
}

// Active reports whether a face was seen within the hold period.
func (g *Gate) Active(now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return !g.lastFace.IsZero() && now.Sub(g.lastFace) < g.hold
}
