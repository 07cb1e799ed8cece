package detector

import "gocv.io/x/gocv"

// Detector defines the interface for face landmark detection implementations.
type Detector interface {
	// Detect analyzes a video frame and returns one LandmarkFrame per detected face.
	// Returns an empty slice if no faces are detected.
	Detect(frame *gocv.Mat) ([]LandmarkFrame, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for face landmark detection.
type Config struct {
	// MaxFaces is the maximum number of faces to detect. Gaze estimation
	// only uses the first one.
	MaxFaces int

	// RefineIris requests the 478-point mesh with iris landmarks.
	RefineIris bool

	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64

	// MinTrackingConf is the minimum tracking confidence threshold (0.0-1.0).
	MinTrackingConf float64
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		MaxFaces:        1,
		RefineIris:      true,
		MinConfidence:   0.5,
		MinTrackingConf: 0.5,
	}
}
