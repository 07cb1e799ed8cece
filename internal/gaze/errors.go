package gaze

import "errors"

// Diagnostic errors returned alongside sentinel values. None of them stop
// frame processing.
var (
	// ErrDegenerateVector is returned when a normalization step sees a
	// near-zero magnitude.
	ErrDegenerateVector = errors.New("degenerate vector")

	// ErrMissingLandmark is returned when a required landmark index is
	// unassigned, out of range or non-finite.
	ErrMissingLandmark = errors.New("missing or invalid landmark")

	// ErrLookingAway is returned when the fused gaze points away from the
	// screen plane.
	ErrLookingAway = errors.New("looking away")
)
