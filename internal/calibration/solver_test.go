package calibration

import (
	"errors"
	"math"
	"testing"

	"github.com/ayusman/drishti/internal/gaze"
	"gonum.org/v1/gonum/spatial/r3"
)

var frontal = r3.Vec{Z: 1}

// linearSamples returns 9 noise-free samples on a 3x3 grid where the target
// is 2*raw + 3 on both axes.
func linearSamples(pose r3.Vec) []Sample {
	var samples []Sample
	for _, y := range []float64{1, 2, 3} {
		for _, x := range []float64{1, 2, 3} {
			samples = append(samples, Sample{
				Raw:      gaze.ScreenPoint{X: x, Y: y, Confidence: 0.8},
				HeadPose: pose,
				Target:   Target{X: 2*x + 3, Y: 2*y + 3},
			})
		}
	}
	return samples
}

func TestSolver_RecoversLinearTransform(t *testing.T) {
	model, diags := NewSolver().Solve(linearSamples(frontal))
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	if len(model.Clusters) != 1 {
		t.Fatalf("expected 1 cluster, got %d", len(model.Clusters))
	}

	c := model.Clusters[0]
	wantX := [4]float64{3, 2, 0, 0}
	wantY := [4]float64{3, 0, 2, 0}
	for i := range wantX {
		if math.Abs(c.CoeffX[i]-wantX[i]) > 1e-6 {
			t.Errorf("CoeffX[%d] = %v, want %v", i, c.CoeffX[i], wantX[i])
		}
		if math.Abs(c.CoeffY[i]-wantY[i]) > 1e-6 {
			t.Errorf("CoeffY[%d] = %v, want %v", i, c.CoeffY[i], wantY[i])
		}
	}
	if c.Samples != 9 {
		t.Errorf("Samples = %d, want 9", c.Samples)
	}
	if math.Abs(c.Confidence-0.8) > 1e-12 {
		t.Errorf("Confidence = %v, want 0.8", c.Confidence)
	}
	if c.HeadPose != frontal {
		t.Errorf("HeadPose = %v, want %v", c.HeadPose, frontal)
	}
}

func TestSolver_IdenticalSamplesStayFinite(t *testing.T) {
	samples := make([]Sample, 9)
	for i := range samples {
		samples[i] = Sample{
			Raw:      gaze.ScreenPoint{X: 100, Y: 200, Confidence: 1},
			HeadPose: frontal,
			Target:   Target{X: 960, Y: 540},
		}
	}

	model, diags := NewSolver().Solve(samples)

	if len(model.Clusters) != 1 {
		t.Fatalf("singular cluster should be kept, got %d clusters", len(model.Clusters))
	}
	if len(diags) != 1 || !errors.Is(diags[0], ErrSingularSystem) {
		t.Fatalf("diagnostics = %v, want one ErrSingularSystem", diags)
	}
	c := model.Clusters[0]
	for i := 0; i < 4; i++ {
		for _, v := range []float64{c.CoeffX[i], c.CoeffY[i]} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				t.Fatalf("non-finite coefficient: %v %v", c.CoeffX, c.CoeffY)
			}
		}
	}
}

func TestSolver_DropsSmallClusters(t *testing.T) {
	turned := r3.Vec{X: 0.5, Z: 0.87}
	samples := linearSamples(frontal)
	samples = append(samples, linearSamples(turned)[:3]...)

	model, diags := NewSolver().Solve(samples)

	if len(model.Clusters) != 1 {
		t.Fatalf("expected 1 cluster, got %d", len(model.Clusters))
	}
	if model.Clusters[0].Key != "0.0,0.0,1.0" {
		t.Errorf("kept cluster %q", model.Clusters[0].Key)
	}
	if len(diags) != 1 {
		t.Fatalf("expected 1 diagnostic, got %v", diags)
	}
	if !errors.Is(diags[0], ErrInsufficientSamples) {
		t.Errorf("diagnostic = %v, want ErrInsufficientSamples", diags[0])
	}
	if diags[0].Cluster != "0.5,0.0,0.9" || diags[0].Samples != 3 {
		t.Errorf("diagnostic = %+v", diags[0])
	}
}

func TestSolver_ExcludesUnknownPose(t *testing.T) {
	t.Run("only unknown poses give an empty model", func(t *testing.T) {
		model, diags := NewSolver().Solve(linearSamples(r3.Vec{}))

		if !model.Empty() {
			t.Errorf("expected no clusters, got %+v", model.Clusters)
		}
		if len(diags) != 1 || !errors.Is(diags[0], ErrUnknownPose) {
			t.Fatalf("diagnostics = %v, want one ErrUnknownPose", diags)
		}
		if diags[0].Samples != 9 {
			t.Errorf("diagnostic samples = %d, want 9", diags[0].Samples)
		}
	})

	t.Run("unknown poses do not dilute a real cluster", func(t *testing.T) {
		samples := linearSamples(frontal)[:4]
		samples = append(samples, linearSamples(r3.Vec{})[4:]...)

		model, diags := NewSolver().Solve(samples)

		if len(model.Clusters) != 1 {
			t.Fatalf("expected 1 cluster, got %d", len(model.Clusters))
		}
		c := model.Clusters[0]
		if c.Key != "0.0,0.0,1.0" || c.Samples != 4 {
			t.Errorf("cluster = %q with %d samples", c.Key, c.Samples)
		}
		if len(diags) != 1 || !errors.Is(diags[0], ErrUnknownPose) || diags[0].Samples != 5 {
			t.Errorf("diagnostics = %v", diags)
		}
	})
}

func TestSolver_SkipsClustersThatCannotBeFitted(t *testing.T) {
	turned := r3.Vec{X: 0.5, Z: 0.87}
	bad := linearSamples(turned)
	bad[2].Raw.X = math.NaN()
	samples := append(linearSamples(frontal), bad...)

	model, diags := NewSolver().Solve(samples)

	if len(model.Clusters) != 1 || model.Clusters[0].Key != "0.0,0.0,1.0" {
		t.Fatalf("clusters = %+v, want only the frontal one", model.Clusters)
	}
	for _, c := range model.Clusters {
		if c.Samples == 0 || c.Key == "" {
			t.Errorf("empty cluster in model: %+v", c)
		}
	}
	if len(diags) != 1 || !errors.Is(diags[0], ErrInvalidSample) {
		t.Fatalf("diagnostics = %v, want one ErrInvalidSample", diags)
	}
	if diags[0].Cluster != "0.5,0.0,0.9" || diags[0].Samples != 9 {
		t.Errorf("diagnostic = %+v", diags[0])
	}
}

func TestSolver_OrdersClustersBySize(t *testing.T) {
	turned := r3.Vec{X: 0.3, Z: 0.95}
	samples := linearSamples(turned)[:5]
	samples = append(samples, linearSamples(frontal)...)

	model, _ := NewSolver().Solve(samples)

	if len(model.Clusters) != 2 {
		t.Fatalf("expected 2 clusters, got %d", len(model.Clusters))
	}
	if model.Clusters[0].Samples != 9 || model.Clusters[1].Samples != 5 {
		t.Errorf("cluster sizes = %d, %d", model.Clusters[0].Samples, model.Clusters[1].Samples)
	}
}

func TestSolver_NoSamples(t *testing.T) {
	model, diags := NewSolver().Solve(nil)
	if !model.Empty() || len(diags) != 0 {
		t.Errorf("Solve(nil) = %+v, %v", model, diags)
	}
}

func TestClusterKey(t *testing.T) {
	tests := []struct {
		pose r3.Vec
		want string
	}{
		{r3.Vec{Z: 1}, "0.0,0.0,1.0"},
		{r3.Vec{X: 0.14, Y: -0.26, Z: 0.951}, "0.1,-0.3,1.0"},
		{r3.Vec{X: -0.04, Y: 0.04}, "0.0,0.0,0.0"},
		{r3.Vec{X: 0.05, Y: -0.05, Z: -0.99}, "0.1,-0.1,-1.0"},
	}

	for _, tt := range tests {
		if got := ClusterKey(tt.pose); got != tt.want {
			t.Errorf("ClusterKey(%v) = %q, want %q", tt.pose, got, tt.want)
		}
	}
}
