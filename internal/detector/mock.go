package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu    sync.Mutex
	faces []LandmarkFrame
	err   error
	calls int
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetFaces sets the faces that will be returned by Detect.
func (m *MockDetector) SetFaces(faces []LandmarkFrame) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faces = faces
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Detect returns the pre-configured faces or error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]LandmarkFrame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.faces, nil
}

// Calls counts Detect calls.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// irisRadius is the synthetic iris radius in normalized image units.
const irisRadius = 0.012

// FrontalFaceLandmarks returns a 478-point face looking straight at the camera
// with both irises centered in the eyes. Points without a semantic role sit
// on the face center.
func FrontalFaceLandmarks() LandmarkFrame {
	return FaceWithIrisOffset(0, 0)
}

// FaceWithIrisOffset returns a frontal face whose irises are shifted by
// (dx, dy) in normalized image units, as when the eyes turn without the head.
func FaceWithIrisOffset(dx, dy float64) LandmarkFrame {
	m := MediaPipeIrisMap()
	frame := LandmarkFrame{Points: make([]Point3D, m.Size)}
	for i := range frame.Points {
		frame.Points[i] = Point3D{X: 0.5, Y: 0.5, Z: 0}
	}

	set := func(i int, x, y, z float64) {
		frame.Points[i] = Point3D{X: x, Y: y, Z: z}
	}

	set(m.Forehead, 0.5, 0.25, -0.02)
	set(m.Chin, 0.5, 0.75, -0.02)
	set(m.NoseBridge, 0.5, 0.42, -0.06)
	set(m.NoseTip, 0.5, 0.55, -0.12)
	set(m.NoseBottom, 0.5, 0.60, -0.08)
	set(m.LeftEar, 0.65, 0.48, 0.08)
	set(m.RightEar, 0.35, 0.48, 0.08)

	placeEye := func(eye EyeIndices, cx, outerX, innerX float64) {
		const cy, eyeZ = 0.42, -0.025
		set(eye.Outer, outerX, cy, eyeZ)
		set(eye.Inner, innerX, cy, eyeZ)
		set(eye.Top, cx, cy-0.01, eyeZ)
		set(eye.Bottom, cx, cy+0.01, eyeZ)

		ix, iy := cx+dx, cy+dy
		set(eye.IrisCenter, ix, iy, eyeZ)
		set(eye.Iris[0], ix-irisRadius, iy, eyeZ)
		set(eye.Iris[1], ix+irisRadius, iy, eyeZ)
		set(eye.Iris[2], ix, iy-irisRadius, eyeZ)
		set(eye.Iris[3], ix, iy+irisRadius, eyeZ)
	}

	placeEye(m.LeftEye, 0.57, 0.60, 0.54)
	placeEye(m.RightEye, 0.43, 0.40, 0.46)

	return frame
}

// FaceWithoutIrisLandmarks returns a 468-point frontal face as produced by a
// detector running without iris refinement.
func FaceWithoutIrisLandmarks() LandmarkFrame {
	frame := FrontalFaceLandmarks()
	frame.Points = frame.Points[:FaceMeshPoints]
	return frame
}
