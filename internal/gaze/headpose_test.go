package gaze

import (
	"errors"
	"math"
	"testing"

	"github.com/ayusman/drishti/internal/detector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

const tolerance = 1e-9

func TestHeadPoseEstimator_Frontal(t *testing.T) {
	m := detector.MediaPipeIrisMap()
	frame := detector.FrontalFaceLandmarks()

	pose, err := NewHeadPoseEstimator(m).Estimate(frame)
	require.NoError(t, err)

	t.Run("is a unit vector", func(t *testing.T) {
		assert.InDelta(t, 1.0, r3.Norm(pose), tolerance)
	})

	t.Run("has no lateral component for a symmetric face", func(t *testing.T) {
		assert.InDelta(t, 0.0, pose.X, tolerance)
	})

	t.Run("points along the face forward axis", func(t *testing.T) {
		forward := r3.Sub(frame.Points[m.NoseTip].Vec(), frame.Points[m.NoseBridge].Vec())
		assert.Greater(t, r3.Dot(pose, forward), 0.0)
		assert.Less(t, pose.Z, 0.0, "camera-facing pose should point toward the camera")
	})
}

func TestHeadPoseEstimator_OrientationIgnoresWinding(t *testing.T) {
	frame := detector.FrontalFaceLandmarks()

	m := detector.MediaPipeIrisMap()
	swapped := m
	swapped.LeftEye, swapped.RightEye = m.RightEye, m.LeftEye

	a, err := NewHeadPoseEstimator(m).Estimate(frame)
	require.NoError(t, err)
	b, err := NewHeadPoseEstimator(swapped).Estimate(frame)
	require.NoError(t, err)

	assert.InDelta(t, a.X, b.X, tolerance)
	assert.InDelta(t, a.Y, b.Y, tolerance)
	assert.InDelta(t, a.Z, b.Z, tolerance)
}

func TestHeadPoseEstimator_TurnedHead(t *testing.T) {
	m := detector.MediaPipeIrisMap()
	frame := detector.FrontalFaceLandmarks()

	// Push the subject's left side away from the camera.
	for _, i := range []int{m.LeftEye.Outer, m.LeftEar} {
		frame.Points[i].Z += 0.05
	}

	pose, err := NewHeadPoseEstimator(m).Estimate(frame)
	require.NoError(t, err)
	assert.NotZero(t, pose.X, "turning the head should tilt the normal sideways")
	assert.InDelta(t, 1.0, r3.Norm(pose), tolerance)
}

func TestHeadPoseEstimator_Degenerate(t *testing.T) {
	m := detector.MediaPipeIrisMap()

	t.Run("collapsed face returns zero sentinel", func(t *testing.T) {
		frame := detector.LandmarkFrame{Points: make([]detector.Point3D, m.Size)}

		pose, err := NewHeadPoseEstimator(m).Estimate(frame)

		assert.Equal(t, r3.Vec{}, pose)
		assert.True(t, errors.Is(err, ErrDegenerateVector), "got %v", err)
	})

	t.Run("missing landmarks return zero sentinel", func(t *testing.T) {
		pose, err := NewHeadPoseEstimator(m).Estimate(detector.LandmarkFrame{})

		assert.Equal(t, r3.Vec{}, pose)
		assert.True(t, errors.Is(err, ErrMissingLandmark), "got %v", err)
	})

	t.Run("non-finite landmark is skipped without poisoning the result", func(t *testing.T) {
		frame := detector.FrontalFaceLandmarks()
		frame.Points[m.Chin] = detector.Point3D{X: math.NaN()}

		pose, err := NewHeadPoseEstimator(m).Estimate(frame)

		assert.True(t, errors.Is(err, ErrMissingLandmark), "got %v", err)
		assert.True(t, isFinite(pose))
		assert.InDelta(t, 1.0, r3.Norm(pose), tolerance)
	})
}
