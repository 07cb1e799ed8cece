package gaze

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Projector intersects a gaze ray with a virtual screen plane.
type Projector struct {
	cfg Config
}

// NewProjector creates a Projector from the pipeline configuration. Zero
// geometric parameters fall back to DefaultConfig values.
func NewProjector(cfg Config) *Projector {
	def := DefaultConfig()
	if cfg.FaceWidthMeters <= 0 {
		cfg.FaceWidthMeters = def.FaceWidthMeters
	}
	if cfg.FocalLength <= 0 {
		cfg.FocalLength = def.FocalLength
	}
	return &Projector{cfg: cfg}
}

// Screen returns the projection target.
func (p *Projector) Screen() Screen {
	return p.cfg.Screen
}

// Distance estimates camera-to-face distance from the observed face width
// (normalized image units) by similar triangles.
func (p *Projector) Distance(observedFaceWidth float64) (float64, error) {
	if observedFaceWidth < Epsilon || math.IsNaN(observedFaceWidth) {
		return 0, fmt.Errorf("face width %.6f: %w", observedFaceWidth, ErrDegenerateVector)
	}
	return p.cfg.FaceWidthMeters * p.cfg.FocalLength / observedFaceWidth, nil
}

// Project maps a gaze vector starting at eyeMidpoint (normalized [0,1]
// image coordinates) to a raw screen point. The ray is extended by
// t = distance / gaze.Z, the x/y intersection in [-1,1] is mapped to pixels
// with ((v+1)/2)*dimension, and the result is clamped to the screen.
// Confidence is min(leftConfidence, rightConfidence) * gaze.Z.
//
// A zero gaze vector, a gaze with Z <= 0 or an unusable distance yields the
// screen center with zero confidence.
func (p *Projector) Project(gaze, eyeMidpoint r3.Vec, distance, leftConfidence, rightConfidence float64) (ScreenPoint, error) {
	screen := p.cfg.Screen
	if isZero(gaze) {
		return screen.Center(), fmt.Errorf("project: %w", ErrDegenerateVector)
	}
	if gaze.Z <= 0 {
		return screen.Center(), fmt.Errorf("project: z=%.4f: %w", gaze.Z, ErrLookingAway)
	}
	if distance <= 0 || math.IsNaN(distance) || math.IsInf(distance, 0) {
		return screen.Center(), fmt.Errorf("project: distance %.4f: %w", distance, ErrDegenerateVector)
	}

	t := distance / gaze.Z
	origin := r3.Vec{X: eyeMidpoint.X*2 - 1, Y: eyeMidpoint.Y*2 - 1}
	hit := r3.Add(origin, r3.Scale(t, gaze))

	x := hit.X
	if p.cfg.MirrorX {
		x = -x
	}

	pt := ScreenPoint{
		X:          (x + 1) / 2 * screen.Width,
		Y:          (hit.Y + 1) / 2 * screen.Height,
		Confidence: math.Min(leftConfidence, rightConfidence) * gaze.Z,
	}
	if math.IsNaN(pt.X) || math.IsNaN(pt.Y) {
		return screen.Center(), fmt.Errorf("project: %w", ErrDegenerateVector)
	}
	return screen.Clamp(pt), nil
}
