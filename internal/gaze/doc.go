// Package gaze turns one frame of face landmarks into a raw on-screen gaze point.
//
// The per-frame pipeline is:
//
//	LandmarkFrame -> HeadPose + EyeState(left, right) -> gaze vector -> ScreenPoint
//
// Every step is closed-form vector algebra and recomputed from scratch for
// each frame. Degenerate geometry never fails a frame: each step returns a
// well-defined sentinel (zero vector, screen center, zero confidence)
// together with a diagnostic error from the set declared in errors.go.
// A ScreenPoint with zero confidence must not be acted on.
package gaze
