package gaze

import (
	"math"
	"testing"

	"github.com/ayusman/drishti/internal/detector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

// eyeWithIris builds an eye centered at the origin whose iris has the given
// horizontal and vertical radii and is displaced by d.
func eyeWithIris(hr, vr float64, d r3.Vec) EyeLandmarks {
	c := d
	return EyeLandmarks{
		Inner:      r3.Vec{X: 0.03},
		Outer:      r3.Vec{X: -0.03},
		Top:        r3.Vec{Y: -0.01},
		Bottom:     r3.Vec{Y: 0.01},
		IrisCenter: c,
		Iris: [4]r3.Vec{
			r3.Add(c, r3.Vec{X: -hr}),
			r3.Add(c, r3.Vec{X: hr}),
			r3.Add(c, r3.Vec{Y: -vr}),
			r3.Add(c, r3.Vec{Y: vr}),
		},
		HasIris: true,
	}
}

func TestEstimateEye3D_DegenerateExtentsGiveZeroRotation(t *testing.T) {
	nan := math.NaN()
	inf := math.Inf(1)

	tests := []struct {
		name string
		eye  EyeLandmarks
	}{
		{"collapsed iris", eyeWithIris(0, 0, r3.Vec{})},
		{"horizontal extent below epsilon", eyeWithIris(Epsilon/4, 0.01, r3.Vec{X: 0.002})},
		{"vertical extent below epsilon", eyeWithIris(0.01, Epsilon/4, r3.Vec{Y: 0.002})},
		{"aspect ratio above 1/epsilon", eyeWithIris(2, 0.0001, r3.Vec{})},
		{"NaN iris center", eyeWithIris(0.01, 0.01, r3.Vec{X: nan})},
		{"infinite iris center", eyeWithIris(0.01, 0.01, r3.Vec{Y: inf})},
		{"no iris", EyeLandmarks{Inner: r3.Vec{X: 1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := EstimateEye3D(tt.eye, 10)

			assert.Equal(t, r3.Vec{}, state.Rotation)
			assert.Equal(t, 0.0, state.Confidence)
		})
	}
}

func TestEstimateEye3D_Rotation(t *testing.T) {
	t.Run("circular centered iris has no rotation", func(t *testing.T) {
		state := EstimateEye3D(eyeWithIris(0.012, 0.012, r3.Vec{}), 10)

		assert.InDelta(t, 0.0, state.Rotation.X, tolerance)
		assert.InDelta(t, 0.0, state.Rotation.Y, tolerance)
		assert.InDelta(t, 0.0, state.Rotation.Z, tolerance)
		assert.InDelta(t, 1.0, state.Confidence, tolerance)
	})

	t.Run("foreshortened iris rotates toward its displacement", func(t *testing.T) {
		right := EstimateEye3D(eyeWithIris(0.006, 0.012, r3.Vec{X: 0.004}), 10)
		left := EstimateEye3D(eyeWithIris(0.006, 0.012, r3.Vec{X: -0.004}), 10)

		assert.InDelta(t, math.Acos(0.5), right.Rotation.X, tolerance)
		assert.InDelta(t, -math.Acos(0.5), left.Rotation.X, tolerance)
	})

	t.Run("vertical displacement uses atan2 against iris radius", func(t *testing.T) {
		state := EstimateEye3D(eyeWithIris(0.012, 0.012, r3.Vec{Y: 0.006}), 10)

		assert.InDelta(t, math.Atan2(0.006, 0.012), state.Rotation.Y, tolerance)
	})

	t.Run("aspect above one is clamped", func(t *testing.T) {
		state := EstimateEye3D(eyeWithIris(0.02, 0.01, r3.Vec{}), 10)

		assert.InDelta(t, 0.0, state.Rotation.X, tolerance)
	})
}

func TestEstimateEye3D_ConfidenceInRange(t *testing.T) {
	shapes := [][2]float64{
		{0.012, 0.012}, {0.006, 0.012}, {0.012, 0.003}, {0.02, 0.001}, {0.0002, 0.03},
	}
	scales := []float64{0.1, 1, 10, 1000}

	for _, s := range shapes {
		for _, k := range scales {
			state := EstimateEye3D(eyeWithIris(s[0], s[1], r3.Vec{X: 0.001}), k)
			assert.GreaterOrEqual(t, state.Confidence, 0.0)
			assert.LessOrEqual(t, state.Confidence, 1.0)
		}
	}

	t.Run("distorted iris scores lower than circular", func(t *testing.T) {
		circular := EstimateEye3D(eyeWithIris(0.012, 0.012, r3.Vec{}), 10)
		distorted := EstimateEye3D(eyeWithIris(0.004, 0.012, r3.Vec{}), 10)

		assert.Less(t, distorted.Confidence, circular.Confidence)
	})
}

func TestEstimateEye2D(t *testing.T) {
	t.Run("pupil offset rotates the eye", func(t *testing.T) {
		state := EstimateEye2D(eyeWithIris(0.012, 0.012, r3.Vec{X: 0.006}))

		assert.InDelta(t, math.Atan2(0.006, 0.03), state.Rotation.X, tolerance)
		assert.InDelta(t, 0.0, state.Rotation.Z, tolerance)
	})

	t.Run("without iris the eye looks straight ahead", func(t *testing.T) {
		eye := eyeWithIris(0.012, 0.012, r3.Vec{X: 0.006})
		eye.HasIris = false

		state := EstimateEye2D(eye)

		assert.Equal(t, r3.Vec{}, state.Rotation)
		assert.Greater(t, state.Confidence, 0.0)
	})

	t.Run("closed eye has zero confidence", func(t *testing.T) {
		eye := eyeWithIris(0.012, 0.012, r3.Vec{})
		eye.Top, eye.Bottom = r3.Vec{}, r3.Vec{}

		state := EstimateEye2D(eye)

		assert.Equal(t, 0.0, state.Confidence)
	})

	t.Run("collapsed corners give zero rotation", func(t *testing.T) {
		state := EstimateEye2D(EyeLandmarks{IrisCenter: r3.Vec{X: 1}, HasIris: true})

		assert.Equal(t, r3.Vec{}, state.Rotation)
		assert.Equal(t, 0.0, state.Confidence)
	})
}

func TestSelectStrategy(t *testing.T) {
	cfg := DefaultConfig()

	t.Run("iris mesh selects three-dimensional", func(t *testing.T) {
		s := SelectStrategy(detector.FrontalFaceLandmarks(), detector.MediaPipeIrisMap(), cfg)
		assert.Equal(t, StrategyThreeDimensional, s.Name())
	})

	t.Run("plain mesh map selects two-dimensional", func(t *testing.T) {
		s := SelectStrategy(detector.FrontalFaceLandmarks(), detector.MediaPipeMap(), cfg)
		assert.Equal(t, StrategyTwoDimensional, s.Name())
	})

	t.Run("frame without iris points selects two-dimensional", func(t *testing.T) {
		s := SelectStrategy(detector.FaceWithoutIrisLandmarks(), detector.MediaPipeIrisMap(), cfg)
		assert.Equal(t, StrategyTwoDimensional, s.Name())
	})

	t.Run("unpopulated iris points select two-dimensional", func(t *testing.T) {
		m := detector.MediaPipeIrisMap()
		frame := detector.FrontalFaceLandmarks()
		for _, i := range m.LeftEye.Iris {
			frame.Points[i] = frame.Points[m.LeftEye.IrisCenter]
		}

		s := SelectStrategy(frame, m, cfg)
		assert.Equal(t, StrategyTwoDimensional, s.Name())
	})

	t.Run("strategies report missing eye landmarks", func(t *testing.T) {
		for _, s := range []Strategy{
			ThreeDimensional{Landmarks: detector.MediaPipeIrisMap(), ConfidenceScale: 10},
			TwoDimensional{Landmarks: detector.MediaPipeIrisMap()},
		} {
			left, right, err := s.EstimateEyes(detector.LandmarkFrame{})
			require.ErrorIs(t, err, ErrMissingLandmark, s.Name())
			assert.Equal(t, 0.0, left.Confidence)
			assert.Equal(t, 0.0, right.Confidence)
		}
	})
}
