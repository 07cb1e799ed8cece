package gaze

import (
	"fmt"

	"github.com/ayusman/drishti/internal/detector"
	"gonum.org/v1/gonum/spatial/r3"
)

// triplet is three landmarks spanning the face plane. The normal is the
// cross product of (A - Origin) and (B - Origin).
type triplet struct {
	name      string
	origin    int
	a, b      int
	mandatory bool
}

// HeadPoseEstimator derives a unit face-normal vector from facial geometry.
type HeadPoseEstimator struct {
	landmarks detector.LandmarkMap
	triplets  []triplet
}

// NewHeadPoseEstimator creates a head pose estimator for the given landmark map.
func NewHeadPoseEstimator(m detector.LandmarkMap) *HeadPoseEstimator {
	return &HeadPoseEstimator{
		landmarks: m,
		triplets: []triplet{
			{name: "forehead-eyes", origin: m.Forehead, a: m.LeftEye.Outer, b: m.RightEye.Outer, mandatory: true},
			{name: "chin-eyes", origin: m.Chin, a: m.LeftEye.Outer, b: m.RightEye.Outer, mandatory: true},
			{name: "nose-eyes", origin: m.NoseBottom, a: m.LeftEye.Outer, b: m.RightEye.Outer},
		},
	}
}

// Estimate returns the head pose for one frame. The result is a unit vector
// pointing the same way as the face's forward axis (nose bridge to nose
// tip), or the zero vector when no triplet yields a usable normal. The
// error is diagnostic only.
func (e *HeadPoseEstimator) Estimate(frame detector.LandmarkFrame) (r3.Vec, error) {
	forward, haveForward := e.forward(frame)

	var sum r3.Vec
	valid := 0
	var diag error

	for _, t := range e.triplets {
		n, err := e.normal(frame, t)
		if err != nil {
			if t.mandatory && diag == nil {
				diag = fmt.Errorf("triplet %s: %w", t.name, err)
			}
			continue
		}
		// Orient each normal before averaging so opposite windings do not cancel.
		if haveForward && r3.Dot(n, forward) < 0 {
			n = r3.Scale(-1, n)
		}
		sum = r3.Add(sum, n)
		valid++
	}

	if valid < 1 {
		if diag == nil {
			diag = ErrDegenerateVector
		}
		return r3.Vec{}, fmt.Errorf("head pose: %w", diag)
	}

	pose, ok := unit(r3.Scale(1/float64(valid), sum))
	if !ok {
		return r3.Vec{}, fmt.Errorf("head pose: averaged normal: %w", ErrDegenerateVector)
	}

	if haveForward && r3.Dot(pose, forward) < 0 {
		pose = r3.Scale(-1, pose)
	}

	return pose, diag
}

// forward returns nose tip minus nose bridge.
func (e *HeadPoseEstimator) forward(frame detector.LandmarkFrame) (r3.Vec, bool) {
	tip, ok1 := frame.At(e.landmarks.NoseTip)
	bridge, ok2 := frame.At(e.landmarks.NoseBridge)
	if !ok1 || !ok2 {
		return r3.Vec{}, false
	}
	f := r3.Sub(tip.Vec(), bridge.Vec())
	if r3.Norm(f) < Epsilon {
		return r3.Vec{}, false
	}
	return f, true
}

// normal computes the unit normal of one triplet, rejecting near-collinear
// geometry whose cross product magnitude is below Epsilon.
func (e *HeadPoseEstimator) normal(frame detector.LandmarkFrame, t triplet) (r3.Vec, error) {
	o, ok1 := frame.At(t.origin)
	a, ok2 := frame.At(t.a)
	b, ok3 := frame.At(t.b)
	if !ok1 || !ok2 || !ok3 {
		return r3.Vec{}, ErrMissingLandmark
	}

	cross := r3.Cross(r3.Sub(a.Vec(), o.Vec()), r3.Sub(b.Vec(), o.Vec()))
	n, ok := unit(cross)
	if !ok {
		return r3.Vec{}, ErrDegenerateVector
	}
	return n, nil
}
