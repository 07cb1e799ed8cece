// Package sink delivers calibrated screen points to their consumers.
package sink

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/ayusman/drishti/internal/log"
)

// PointSink receives one screen point per processed frame. Accept must not
// block the frame loop.
type PointSink interface {
	Accept(x, y, confidence float64)
}

// Func adapts a function to PointSink.
type Func func(x, y, confidence float64)

// Accept implements PointSink.
func (f Func) Accept(x, y, confidence float64) { f(x, y, confidence) }

// Point is a delivered screen point.
type Point struct {
	X          float64   `json:"x"`
	Y          float64   `json:"y"`
	Confidence float64   `json:"confidence"`
	At         time.Time `json:"at"`
}

// Multi fans each point out to every sink in order.
type Multi []PointSink

// Accept implements PointSink.
func (m Multi) Accept(x, y, confidence float64) {
	for _, s := range m {
		if s != nil {
			s.Accept(x, y, confidence)
		}
	}
}

// Latest remembers the most recent point.
type Latest struct {
	p   atomic.Pointer[Point]
	now func() time.Time
}

// Accept implements PointSink.
func (l *Latest) Accept(x, y, confidence float64) {
	now := time.Now
	if l.now != nil {
		now = l.now
	}
	l.p.Store(&Point{X: x, Y: y, Confidence: confidence, At: now()})
}

// Load returns the last point, or false if none has arrived yet.
func (l *Latest) Load() (Point, bool) {
	p := l.p.Load()
	if p == nil {
		return Point{}, false
	}
	return *p, true
}

// LogSink logs points at debug level, at most once per Every.
type LogSink struct {
	Every time.Duration

	mu   sync.Mutex
	last time.Time
}

// Accept implements PointSink.
func (s *LogSink) Accept(x, y, confidence float64) {
	s.mu.Lock()
	now := time.Now()
	if now.Sub(s.last) < s.Every {
		s.mu.Unlock()
		return
	}
	s.last = now
	s.mu.Unlock()

	log.Debug("gaze point", "x", x, "y", y, "confidence", confidence)
}
