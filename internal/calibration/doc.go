// Package calibration maps raw gaze points to calibrated screen points.
//
// A Session collects samples while the user looks at a 3x3 grid of
// targets. The Solver groups the samples by head pose and fits one
// bilinear transform per group. A Transformer applies the transform whose
// head pose is nearest the current one.
package calibration
