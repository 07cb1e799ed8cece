package calibration

import (
	"math"
	"testing"

	"github.com/ayusman/drishti/internal/gaze"
	"github.com/google/go-cmp/cmp"
	"gonum.org/v1/gonum/spatial/r3"
)

var screen = gaze.Screen{Width: 1920, Height: 1080}

// offsetCluster shifts x by dx and keeps y.
func offsetCluster(key string, pose r3.Vec, dx, confidence float64) Cluster {
	return Cluster{
		Key:        key,
		HeadPose:   pose,
		Samples:    9,
		CoeffX:     [4]float64{dx, 1, 0, 0},
		CoeffY:     [4]float64{0, 0, 1, 0},
		Confidence: confidence,
	}
}

func TestTransformer_IdentityWithoutModel(t *testing.T) {
	tr := NewTransformer(screen)
	raws := []gaze.ScreenPoint{
		{X: 123.456, Y: 789.012, Confidence: 0.37},
		{X: 0, Y: 1080, Confidence: 1},
		screen.Center(),
	}

	for _, raw := range raws {
		if got := tr.Transform(raw, frontal); got != raw {
			t.Errorf("Transform(%v) = %v, want unchanged", raw, got)
		}
	}

	tr.Swap(&Model{})
	if got := tr.Transform(raws[0], frontal); got != raws[0] {
		t.Errorf("empty model: Transform() = %v, want unchanged", got)
	}
}

func TestTransformer_SelectsNearestCluster(t *testing.T) {
	a := offsetCluster("a", r3.Vec{X: 0, Y: 0, Z: 1}, 10, 1)
	b := offsetCluster("b", r3.Vec{X: 0.1, Y: 0, Z: 0.99}, 20, 1)
	m := &Model{Clusters: []Cluster{a, b}}

	tests := []struct {
		name string
		pose r3.Vec
		want string
	}{
		{"exact A", a.HeadPose, "a"},
		{"exact B", b.HeadPose, "b"},
		{"nearer B", r3.Vec{X: 0.06, Y: 0, Z: 0.995}, "b"},
		// (0.05,0,0.998) looks like it sits toward B but is marginally nearer A.
		{"near the midpoint", r3.Vec{X: 0.05, Y: 0, Z: 0.998}, "a"},
		{"far side of B", r3.Vec{X: 0.4, Y: 0, Z: 0.9}, "b"},
		{"unknown pose uses the first cluster", r3.Vec{}, "a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.Nearest(tt.pose).Key; got != tt.want {
				t.Errorf("Nearest(%v) = %q, want %q", tt.pose, got, tt.want)
			}
		})
	}

	tr := NewTransformer(screen)
	tr.Swap(m)
	got := tr.Transform(gaze.ScreenPoint{X: 100, Y: 100, Confidence: 1}, r3.Vec{X: 0.06, Z: 0.995})
	if got.X != 120 {
		t.Errorf("Transform().X = %v, want 120 from cluster b", got.X)
	}
}

func TestTransformer_ScalesConfidenceAndClamps(t *testing.T) {
	tr := NewTransformer(screen)
	tr.Swap(&Model{Clusters: []Cluster{offsetCluster("a", frontal, -500, 0.5)}})

	got := tr.Transform(gaze.ScreenPoint{X: 450, Y: 2000, Confidence: 0.8}, frontal)

	want := gaze.ScreenPoint{X: 0, Y: 1080, Confidence: 0.4}
	if diff := cmp.Diff(want, got, cmp.Comparer(func(x, y float64) bool {
		return math.Abs(x-y) < 1e-12
	})); diff != "" {
		t.Errorf("Transform() mismatch (-want +got):\n%s", diff)
	}
}

func TestTransformer_SwapReturnsPrevious(t *testing.T) {
	tr := NewTransformer(screen)
	first := &Model{Clusters: []Cluster{offsetCluster("a", frontal, 0, 1)}}
	second := &Model{}

	if prev := tr.Swap(first); prev != nil {
		t.Errorf("first Swap() = %v, want nil", prev)
	}
	if prev := tr.Swap(second); prev != first {
		t.Errorf("second Swap() returned %p, want %p", prev, first)
	}
	if tr.Model() != second {
		t.Error("Model() did not return the installed model")
	}
}
