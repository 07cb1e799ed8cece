// Package detector provides face landmark detection interfaces and types for gaze estimation.
package detector

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Face mesh sizes produced by MediaPipe.
const (
	// FaceMeshPoints is the size of a face mesh without iris refinement.
	FaceMeshPoints = 468
	// FaceMeshIrisPoints is the size of a face mesh with refined iris landmarks.
	FaceMeshIrisPoints = 478
)

// Point3D represents a 3D point in normalized image space with relative depth.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Vec converts the point to a gonum vector.
func (p Point3D) Vec() r3.Vec {
	return r3.Vec{X: p.X, Y: p.Y, Z: p.Z}
}

// IsFinite reports whether every coordinate is a finite number.
func (p Point3D) IsFinite() bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) &&
		!math.IsNaN(p.Y) && !math.IsInf(p.Y, 0) &&
		!math.IsNaN(p.Z) && !math.IsInf(p.Z, 0)
}

// LandmarkFrame is one frame of face landmarks in detector order.
// The meaning of each index is defined by a LandmarkMap.
type LandmarkFrame struct {
	Points    []Point3D `json:"points"`
	Timestamp int64     `json:"timestamp"`
}

// At returns the point at index i. It reports false when the index is
// unassigned (negative), out of range, or holds a non-finite value.
func (f LandmarkFrame) At(i int) (Point3D, bool) {
	if i < 0 || i >= len(f.Points) {
		return Point3D{}, false
	}
	p := f.Points[i]
	if !p.IsFinite() {
		return Point3D{}, false
	}
	return p, true
}

// EyeIndices names the landmarks of one eye. Iris points are ordered
// left, right, top, bottom in image space. Unassigned indices are -1.
type EyeIndices struct {
	Inner      int    `json:"inner"`
	Outer      int    `json:"outer"`
	Top        int    `json:"top"`
	Bottom     int    `json:"bottom"`
	IrisCenter int    `json:"iris_center"`
	Iris       [4]int `json:"iris"`
}

// HasIris reports whether the iris center and all four iris points are assigned.
func (e EyeIndices) HasIris() bool {
	if e.IrisCenter < 0 {
		return false
	}
	for _, i := range e.Iris {
		if i < 0 {
			return false
		}
	}
	return true
}

// LandmarkMap maps semantic face features to detector indices. A map is
// tied to one detector model version; frames from a different model must
// use a different map.
type LandmarkMap struct {
	Name       string     `json:"name"`
	Size       int        `json:"size"`
	LeftEye    EyeIndices `json:"left_eye"`
	RightEye   EyeIndices `json:"right_eye"`
	NoseTip    int        `json:"nose_tip"`
	NoseBridge int        `json:"nose_bridge"`
	NoseBottom int        `json:"nose_bottom"`
	Forehead   int        `json:"forehead"`
	Chin       int        `json:"chin"`
	LeftEar    int        `json:"left_ear"`
	RightEar   int        `json:"right_ear"`
}

// HasIris reports whether both eyes carry iris indices.
func (m LandmarkMap) HasIris() bool {
	return m.LeftEye.HasIris() && m.RightEye.HasIris()
}

// Validate checks that every assigned index fits inside the frame size.
func (m LandmarkMap) Validate() error {
	if m.Size <= 0 {
		return fmt.Errorf("landmark map %q: size must be positive", m.Name)
	}

	check := func(name string, idx int, required bool) error {
		if idx < 0 {
			if required {
				return fmt.Errorf("landmark map %q: %s is required", m.Name, name)
			}
			return nil
		}
		if idx >= m.Size {
			return fmt.Errorf("landmark map %q: %s index %d out of range [0,%d)", m.Name, name, idx, m.Size)
		}
		return nil
	}

	required := map[string]int{
		"nose_tip":         m.NoseTip,
		"nose_bridge":      m.NoseBridge,
		"forehead":         m.Forehead,
		"chin":             m.Chin,
		"left_ear":         m.LeftEar,
		"right_ear":        m.RightEar,
		"left_eye.inner":   m.LeftEye.Inner,
		"left_eye.outer":   m.LeftEye.Outer,
		"right_eye.inner":  m.RightEye.Inner,
		"right_eye.outer":  m.RightEye.Outer,
		"left_eye.top":     m.LeftEye.Top,
		"left_eye.bottom":  m.LeftEye.Bottom,
		"right_eye.top":    m.RightEye.Top,
		"right_eye.bottom": m.RightEye.Bottom,
	}
	for name, idx := range required {
		if err := check(name, idx, true); err != nil {
			return err
		}
	}

	optional := map[string]int{
		"nose_bottom":           m.NoseBottom,
		"left_eye.iris_center":  m.LeftEye.IrisCenter,
		"right_eye.iris_center": m.RightEye.IrisCenter,
	}
	for i := 0; i < 4; i++ {
		optional[fmt.Sprintf("left_eye.iris[%d]", i)] = m.LeftEye.Iris[i]
		optional[fmt.Sprintf("right_eye.iris[%d]", i)] = m.RightEye.Iris[i]
	}
	for name, idx := range optional {
		if err := check(name, idx, false); err != nil {
			return err
		}
	}

	return nil
}

// MediaPipeIrisMap returns the index mapping for the 478-point MediaPipe
// face mesh with refined iris landmarks. Left and right are the subject's.
func MediaPipeIrisMap() LandmarkMap {
	return LandmarkMap{
		Name: "mediapipe-478",
		Size: FaceMeshIrisPoints,
		LeftEye: EyeIndices{
			Inner:      362,
			Outer:      263,
			Top:        386,
			Bottom:     374,
			IrisCenter: 473,
			Iris:       [4]int{476, 474, 475, 477},
		},
		RightEye: EyeIndices{
			Inner:      133,
			Outer:      33,
			Top:        159,
			Bottom:     145,
			IrisCenter: 468,
			Iris:       [4]int{471, 469, 470, 472},
		},
		NoseTip:    1,
		NoseBridge: 168,
		NoseBottom: 2,
		Forehead:   10,
		Chin:       152,
		LeftEar:    454,
		RightEar:   234,
	}
}

// MediaPipeMap returns the index mapping for the 468-point MediaPipe face
// mesh, which has no iris landmarks.
func MediaPipeMap() LandmarkMap {
	m := MediaPipeIrisMap()
	m.Name = "mediapipe-468"
	m.Size = FaceMeshPoints
	for _, eye := range []*EyeIndices{&m.LeftEye, &m.RightEye} {
		eye.IrisCenter = -1
		eye.Iris = [4]int{-1, -1, -1, -1}
	}
	return m
}

// MapByName returns a built-in landmark map by name.
func MapByName(name string) (LandmarkMap, error) {
	switch name {
	case "mediapipe-478", "":
		return MediaPipeIrisMap(), nil
	case "mediapipe-468":
		return MediaPipeMap(), nil
	default:
		return LandmarkMap{}, fmt.Errorf("unknown landmark map %q", name)
	}
}
