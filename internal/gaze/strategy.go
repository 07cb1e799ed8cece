package gaze

import (
	"fmt"

	"github.com/ayusman/drishti/internal/detector"
)

// Strategy names.
const (
	StrategyTwoDimensional   = "2d"
	StrategyThreeDimensional = "3d"
)

// Strategy estimates both eyes' state from one frame.
type Strategy interface {
	// Name identifies the strategy in logs and results.
	Name() string

	// EstimateEyes returns the left and right eye states. A non-nil error
	// means at least one eye fell back to zero confidence.
	EstimateEyes(frame detector.LandmarkFrame) (left, right EyeState, err error)
}

// ThreeDimensional estimates eye rotation from iris foreshortening.
// It requires iris landmarks.
type ThreeDimensional struct {
	Landmarks       detector.LandmarkMap
	ConfidenceScale float64
}

// Name implements Strategy.
func (s ThreeDimensional) Name() string { return StrategyThreeDimensional }

// EstimateEyes implements Strategy.
func (s ThreeDimensional) EstimateEyes(frame detector.LandmarkFrame) (EyeState, EyeState, error) {
	return estimateBoth(frame, s.Landmarks, func(l EyeLandmarks) EyeState {
		return EstimateEye3D(l, s.ConfidenceScale)
	})
}

// TwoDimensional estimates eye rotation from the pupil's in-image offset.
// It works with or without iris landmarks.
type TwoDimensional struct {
	Landmarks detector.LandmarkMap
}

// Name implements Strategy.
func (s TwoDimensional) Name() string { return StrategyTwoDimensional }

// EstimateEyes implements Strategy.
func (s TwoDimensional) EstimateEyes(frame detector.LandmarkFrame) (EyeState, EyeState, error) {
	return estimateBoth(frame, s.Landmarks, func(l EyeLandmarks) EyeState {
		return EstimateEye2D(l)
	})
}

func estimateBoth(frame detector.LandmarkFrame, m detector.LandmarkMap, estimate func(EyeLandmarks) EyeState) (EyeState, EyeState, error) {
	var diag error

	one := func(side string, idx detector.EyeIndices) EyeState {
		l, err := resolveEye(frame, idx)
		if err != nil {
			if diag == nil {
				diag = fmt.Errorf("%s eye: %w", side, err)
			}
			return EyeState{}
		}
		return estimate(l)
	}

	left := one("left", m.LeftEye)
	right := one("right", m.RightEye)
	return left, right, diag
}

// SelectStrategy returns the three-dimensional strategy when the landmark
// map assigns iris indices and this frame carries populated iris points
// with a non-degenerate extent for both eyes; otherwise it returns the
// two-dimensional strategy.
func SelectStrategy(frame detector.LandmarkFrame, m detector.LandmarkMap, cfg Config) Strategy {
	if irisPopulated(frame, m) {
		return ThreeDimensional{Landmarks: m, ConfidenceScale: cfg.ConfidenceScale}
	}
	return TwoDimensional{Landmarks: m}
}

func irisPopulated(frame detector.LandmarkFrame, m detector.LandmarkMap) bool {
	if !m.HasIris() {
		return false
	}
	for _, idx := range []detector.EyeIndices{m.LeftEye, m.RightEye} {
		l, err := resolveEye(frame, idx)
		if err != nil || !l.HasIris {
			return false
		}
		h, v := irisExtents(l)
		if h < Epsilon || v < Epsilon {
			return false
		}
	}
	return true
}
