package calibration

import (
	"sync/atomic"

	"github.com/ayusman/drishti/internal/gaze"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"
)

// Transformer maps raw points through the active calibration model. The
// model is swapped whole, so readers never observe a partially built one.
type Transformer struct {
	screen gaze.Screen
	model  atomic.Pointer[Model]
}

// NewTransformer creates a Transformer with no calibration.
func NewTransformer(screen gaze.Screen) *Transformer {
	return &Transformer{screen: screen}
}

// Swap installs m as the active model and returns the previous one.
func (t *Transformer) Swap(m *Model) *Model {
	return t.model.Swap(m)
}

// Model returns the active model, or nil.
func (t *Transformer) Model() *Model {
	return t.model.Load()
}

// Transform applies the cluster nearest to pose. Without a model the raw
// point is returned unchanged.
func (t *Transformer) Transform(raw gaze.ScreenPoint, pose r3.Vec) gaze.ScreenPoint {
	m := t.model.Load()
	if m.Empty() {
		return raw
	}

	c := m.Nearest(pose)
	b := basis(raw.X, raw.Y)
	return t.screen.Clamp(gaze.ScreenPoint{
		X:          floats.Dot(c.CoeffX[:], b),
		Y:          floats.Dot(c.CoeffY[:], b),
		Confidence: raw.Confidence * c.Confidence,
	})
}

// Nearest returns the cluster whose head pose is closest to pose. The zero
// pose means the head pose is unknown; the first, largest cluster is used.
// m must not be empty.
func (m *Model) Nearest(pose r3.Vec) *Cluster {
	best := &m.Clusters[0]
	if pose == (r3.Vec{}) {
		return best
	}

	q := []float64{pose.X, pose.Y, pose.Z}
	bestDist := floats.Distance(q, poseSlice(best.HeadPose), 2)
	for i := 1; i < len(m.Clusters); i++ {
		c := &m.Clusters[i]
		if d := floats.Distance(q, poseSlice(c.HeadPose), 2); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

func poseSlice(v r3.Vec) []float64 {
	return []float64{v.X, v.Y, v.Z}
}
