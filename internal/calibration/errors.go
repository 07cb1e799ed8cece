package calibration

import "errors"

var (
	// ErrSingularSystem is reported when the normal equations of a cluster
	// cannot be inverted and the diagonal pseudo-inverse was used instead.
	ErrSingularSystem = errors.New("singular calibration system")

	// ErrInsufficientSamples is reported for a cluster dropped because it
	// has too few samples to fit.
	ErrInsufficientSamples = errors.New("insufficient calibration samples")

	// ErrUnknownPose is reported for samples whose head pose is the zero
	// vector. They carry no pose to cluster on and are left out of the fit.
	ErrUnknownPose = errors.New("unknown head pose")

	// ErrInvalidSample is reported for a cluster that was not fitted because
	// one of its samples has a non-finite coordinate.
	ErrInvalidSample = errors.New("non-finite calibration sample")

	// ErrNotCollecting is returned when a sample arrives outside a session.
	ErrNotCollecting = errors.New("calibration not collecting")

	// ErrPointTimeout is returned when a session is aborted because a target
	// received no sample in time.
	ErrPointTimeout = errors.New("calibration point timed out")
)
