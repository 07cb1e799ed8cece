package gaze

import (
	"fmt"
	"math"

	"github.com/ayusman/drishti/internal/detector"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"
)

// Iris point order within EyeLandmarks.Iris.
const (
	irisLeft = iota
	irisRight
	irisTop
	irisBottom
)

// OpenEyeRatio is the height/width ratio of a fully open eye. Eyes closing
// below it lose confidence linearly in the two-dimensional strategy.
const OpenEyeRatio = 0.25

// EyeLandmarks is one eye's landmark subset resolved from a frame.
type EyeLandmarks struct {
	Inner, Outer r3.Vec
	Top, Bottom  r3.Vec
	IrisCenter   r3.Vec
	Iris         [4]r3.Vec
	HasIris      bool
}

// Center is the midpoint of the eye corners.
func (l EyeLandmarks) Center() r3.Vec {
	return r3.Scale(0.5, r3.Add(l.Inner, l.Outer))
}

// resolveEye pulls one eye's landmarks out of a frame. Corners and lids are
// required; the iris is optional and HasIris reports whether it resolved.
func resolveEye(frame detector.LandmarkFrame, idx detector.EyeIndices) (EyeLandmarks, error) {
	var l EyeLandmarks

	required := []struct {
		dst *r3.Vec
		i   int
	}{
		{&l.Inner, idx.Inner},
		{&l.Outer, idx.Outer},
		{&l.Top, idx.Top},
		{&l.Bottom, idx.Bottom},
	}
	for _, r := range required {
		p, ok := frame.At(r.i)
		if !ok {
			return EyeLandmarks{}, fmt.Errorf("eye landmark %d: %w", r.i, ErrMissingLandmark)
		}
		*r.dst = p.Vec()
	}

	if !idx.HasIris() {
		return l, nil
	}
	c, ok := frame.At(idx.IrisCenter)
	if !ok {
		return l, nil
	}
	var iris [4]r3.Vec
	for i, j := range idx.Iris {
		p, ok := frame.At(j)
		if !ok {
			return l, nil
		}
		iris[i] = p.Vec()
	}
	l.IrisCenter = c.Vec()
	l.Iris = iris
	l.HasIris = true
	return l, nil
}

// irisExtents returns the horizontal and vertical iris diameters.
func irisExtents(l EyeLandmarks) (h, v float64) {
	h = r3.Norm(r3.Sub(l.Iris[irisRight], l.Iris[irisLeft]))
	v = r3.Norm(r3.Sub(l.Iris[irisBottom], l.Iris[irisTop]))
	return h, v
}

// EstimateEye3D derives an eye's rotation and confidence from iris shape.
//
// The iris foreshortens along the axis the eye rotates about, so
// acos(horizontal/vertical) gives the horizontal rotation magnitude, signed
// by the direction the iris moved. Vertical and depth rotation come from
// atan2 of the iris displacement against the iris radius. Confidence is
// exp(-k*variance) of the iris radii, normalized by their mean, so a
// circular iris scores near 1 and a distorted or occluded one near 0.
//
// Degenerate iris geometry yields zero rotation and zero confidence; NaN and
// Inf never escape.
func EstimateEye3D(l EyeLandmarks, k float64) EyeState {
	center := l.Center()
	state := EyeState{
		Center:     center,
		IrisCenter: l.IrisCenter,
		Iris:       l.Iris,
	}
	if !l.HasIris {
		return state
	}

	h, v := irisExtents(l)
	if h < Epsilon || v < Epsilon {
		return state
	}
	aspect := h / v
	if aspect < Epsilon || aspect > 1/Epsilon {
		return state
	}

	radii := make([]float64, len(l.Iris))
	for i, p := range l.Iris {
		radii[i] = r3.Norm(r3.Sub(p, l.IrisCenter))
	}
	r, _ := stat.PopMeanVariance(radii, nil)
	if r < Epsilon {
		return state
	}
	for i := range radii {
		radii[i] /= r
	}
	_, variance := stat.PopMeanVariance(radii, nil)

	d := r3.Sub(l.IrisCenter, center)

	horizontal := math.Acos(clamp(aspect, -1, 1))
	if d.X < 0 {
		horizontal = -horizontal
	}
	rot := r3.Vec{
		X: horizontal,
		Y: math.Atan2(d.Y, r),
		Z: math.Atan2(d.Z, r),
	}
	if !isFinite(rot) {
		return state
	}

	state.Rotation = rot
	state.Confidence = Clamp01(math.Exp(-variance * k))
	return state
}

// EstimateEye2D derives an eye's rotation from the in-image offset of the
// pupil against the eye corners. The pupil is the iris center when one is
// available, otherwise the eye center, which yields zero rotation.
// Confidence follows eye openness.
func EstimateEye2D(l EyeLandmarks) EyeState {
	center := l.Center()
	state := EyeState{
		Center:     center,
		IrisCenter: center,
	}

	width := r3.Norm(r3.Sub(l.Outer, l.Inner))
	if width < Epsilon {
		return state
	}
	height := r3.Norm(r3.Sub(l.Bottom, l.Top))

	pupil := center
	if l.HasIris {
		pupil = l.IrisCenter
		state.IrisCenter = l.IrisCenter
		state.Iris = l.Iris
	}
	d := r3.Sub(pupil, center)

	half := width / 2
	rot := r3.Vec{
		X: math.Atan2(d.X, half),
		Y: math.Atan2(d.Y, half),
	}
	if !isFinite(rot) {
		return state
	}

	state.Rotation = rot
	state.Confidence = Clamp01((height / width) / OpenEyeRatio)
	return state
}
