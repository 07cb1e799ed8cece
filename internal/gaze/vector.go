package gaze

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Epsilon is the magnitude below which vectors and extents are treated as zero.
const Epsilon = 1e-4

// unit normalizes v. It reports false and returns the zero vector when the
// magnitude is below Epsilon or not finite.
func unit(v r3.Vec) (r3.Vec, bool) {
	n := r3.Norm(v)
	if n < Epsilon || math.IsNaN(n) || math.IsInf(n, 0) {
		return r3.Vec{}, false
	}
	return r3.Scale(1/n, v), true
}

func isZero(v r3.Vec) bool {
	return v.X == 0 && v.Y == 0 && v.Z == 0
}

func isFinite(v r3.Vec) bool {
	for _, c := range [3]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

// Clamp01 clamps a confidence value into [0,1]. NaN becomes 0.
func Clamp01(v float64) float64 {
	return clamp(v, 0, 1)
}
