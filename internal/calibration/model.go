package calibration

import (
	"time"

	"github.com/ayusman/drishti/internal/gaze"
	"gonum.org/v1/gonum/spatial/r3"
)

// Sample is one recorded raw point paired with the target the user was
// looking at. Samples are not modified after recording.
type Sample struct {
	Raw         gaze.ScreenPoint `json:"raw"`
	HeadPose    r3.Vec           `json:"head_pose"`
	Target      Target           `json:"target"` // pixels
	TargetIndex int              `json:"target_index"`
	RecordedAt  time.Time        `json:"recorded_at"`
}

// Cluster is the transform fitted for one discretized head pose.
//
// The calibrated point is CoeffX·[1,x,y,xy] and CoeffY·[1,x,y,xy].
type Cluster struct {
	Key        string     `json:"key"`
	HeadPose   r3.Vec     `json:"head_pose"`
	Samples    int        `json:"samples"`
	CoeffX     [4]float64 `json:"coeff_x"`
	CoeffY     [4]float64 `json:"coeff_y"`
	Confidence float64    `json:"confidence"`
}

// Model is a complete calibration. A Model is never mutated once built;
// a new calibration produces a new Model.
type Model struct {
	Clusters  []Cluster `json:"clusters"`
	CreatedAt time.Time `json:"created_at"`
}

// Empty reports whether the model carries no clusters.
func (m *Model) Empty() bool {
	return m == nil || len(m.Clusters) == 0
}
