package gaze

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// Fuse combines both eyes' rotations into one unit gaze vector.
//
// Each eye is weighted by its share of the total confidence, falling back
// to an even split when both are zero. A known head pose is subtracted to
// remove rotation caused by head movement rather than eye movement; the
// zero head pose means unknown and is left out. The result is the zero
// vector with ErrDegenerateVector when it cannot be normalized, or with
// ErrLookingAway when it points away from the screen (Z <= 0).
func Fuse(left, right EyeState, headPose r3.Vec) (r3.Vec, error) {
	wl, wr := 0.5, 0.5
	if sum := left.Confidence + right.Confidence; sum > 0 {
		wl = left.Confidence / sum
		wr = right.Confidence / sum
	}

	rotation := r3.Add(r3.Scale(wl, left.Rotation), r3.Scale(wr, right.Rotation))
	if !isZero(headPose) {
		rotation = r3.Sub(rotation, headPose)
	}

	g, ok := unit(rotation)
	if !ok {
		return r3.Vec{}, fmt.Errorf("fuse: %w", ErrDegenerateVector)
	}
	if g.Z <= 0 {
		return r3.Vec{}, fmt.Errorf("fuse: z=%.4f: %w", g.Z, ErrLookingAway)
	}
	return g, nil
}
