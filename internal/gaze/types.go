package gaze

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// EyeState is the per-eye estimate for one frame. Rotation is derived from
// the iris geometry and is never taken as input.
type EyeState struct {
	Center     r3.Vec    `json:"center"`
	IrisCenter r3.Vec    `json:"iris_center"`
	Iris       [4]r3.Vec `json:"iris"`
	Rotation   r3.Vec    `json:"rotation"`
	Confidence float64   `json:"confidence"`
}

// ScreenPoint is a gaze position in screen pixels.
type ScreenPoint struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Confidence float64 `json:"confidence"`
}

// Screen is the size of the display the gaze is projected onto, in pixels.
type Screen struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the screen center with zero confidence, the sentinel
// reported when no reliable gaze exists.
func (s Screen) Center() ScreenPoint {
	return ScreenPoint{X: s.Width / 2, Y: s.Height / 2, Confidence: 0}
}

// Clamp bounds p to [0,Width]x[0,Height] and its confidence to [0,1].
func (s Screen) Clamp(p ScreenPoint) ScreenPoint {
	return ScreenPoint{
		X:          clamp(p.X, 0, s.Width),
		Y:          clamp(p.Y, 0, s.Height),
		Confidence: Clamp01(p.Confidence),
	}
}

// Config holds the geometric parameters of the gaze pipeline.
type Config struct {
	// Screen is the target display size in pixels.
	Screen Screen

	// MirrorX inverts the horizontal axis of the projected point. Set it when
	// the camera feed is mirrored relative to the display. It is applied once,
	// after projection, so iris offsets, eye position and head pose flip together.
	MirrorX bool

	// FaceWidthMeters is the assumed real ear-to-ear face width used to
	// estimate camera distance by similar triangles.
	FaceWidthMeters float64

	// FocalLength scales the similar-triangles distance estimate, in
	// normalized image units.
	FocalLength float64

	// ConfidenceScale is k in exp(-variance*k) for iris confidence.
	ConfidenceScale float64
}

// DefaultConfig returns the pipeline defaults for a 1920x1080 display.
func DefaultConfig() Config {
	return Config{
		Screen:          Screen{Width: 1920, Height: 1080},
		MirrorX:         false,
		FaceWidthMeters: 0.15,
		FocalLength:     1.0,
		ConfidenceScale: 10,
	}
}
