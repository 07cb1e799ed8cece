package gaze

import (
	"fmt"
	"math"

	"github.com/ayusman/drishti/internal/detector"
	"gonum.org/v1/gonum/spatial/r3"
)

// Result is everything the pipeline derived from one frame.
type Result struct {
	HeadPose r3.Vec      `json:"head_pose"`
	Left     EyeState    `json:"left"`
	Right    EyeState    `json:"right"`
	Gaze     r3.Vec      `json:"gaze"`
	Raw      ScreenPoint `json:"raw"`
	Strategy string      `json:"strategy"`

	// Diagnostics lists the recoverable failures hit while processing the
	// frame, in pipeline order.
	Diagnostics []error `json:"-"`
}

// Estimator runs the per-frame gaze pipeline. It owns no state that
// carries between frames.
type Estimator struct {
	cfg       Config
	landmarks detector.LandmarkMap
	headPose  *HeadPoseEstimator
	projector *Projector
	strategy  Strategy
}

// NewEstimator creates an Estimator for frames described by m.
func NewEstimator(cfg Config, m detector.LandmarkMap) *Estimator {
	if cfg.ConfidenceScale <= 0 {
		cfg.ConfidenceScale = DefaultConfig().ConfidenceScale
	}
	return &Estimator{
		cfg:       cfg,
		landmarks: m,
		headPose:  NewHeadPoseEstimator(m),
		projector: NewProjector(cfg),
	}
}

// SetStrategy forces a strategy instead of selecting one per frame. Passing
// nil restores per-frame selection.
func (e *Estimator) SetStrategy(s Strategy) {
	e.strategy = s
}

// Screen returns the projection target.
func (e *Estimator) Screen() Screen {
	return e.cfg.Screen
}

// Estimate processes one frame. It always returns a usable Result; a raw
// point with zero confidence means the frame must not be trusted.
func (e *Estimator) Estimate(frame detector.LandmarkFrame) Result {
	var res Result
	note := func(err error) {
		if err != nil {
			res.Diagnostics = append(res.Diagnostics, err)
		}
	}

	pose, err := e.headPose.Estimate(frame)
	note(err)
	res.HeadPose = pose

	strategy := e.strategy
	if strategy == nil {
		strategy = SelectStrategy(frame, e.landmarks, e.cfg)
	}
	res.Strategy = strategy.Name()

	left, right, err := strategy.EstimateEyes(frame)
	note(err)
	res.Left, res.Right = left, right

	res.Raw = e.cfg.Screen.Center()

	g, err := Fuse(left, right, pose)
	if err != nil {
		note(err)
		return res
	}
	res.Gaze = g

	width, err := e.faceWidth(frame)
	if err != nil {
		note(err)
		return res
	}
	distance, err := e.projector.Distance(width)
	if err != nil {
		note(err)
		return res
	}

	mid := r3.Scale(0.5, r3.Add(left.Center, right.Center))
	raw, err := e.projector.Project(g, mid, distance, left.Confidence, right.Confidence)
	note(err)
	res.Raw = raw
	return res
}

// faceWidth is the in-image ear-to-ear distance.
func (e *Estimator) faceWidth(frame detector.LandmarkFrame) (float64, error) {
	l, ok1 := frame.At(e.landmarks.LeftEar)
	r, ok2 := frame.At(e.landmarks.RightEar)
	if !ok1 || !ok2 {
		return 0, fmt.Errorf("face width: %w", ErrMissingLandmark)
	}
	return math.Hypot(l.X-r.X, l.Y-r.Y), nil
}
