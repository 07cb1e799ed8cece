package calibration

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ayusman/drishti/internal/gaze"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"
)

// Default solver parameters.
const (
	DefaultMinSamples = 4
	DefaultEpsilon    = 1e-4
)

// Diagnostic describes a recoverable problem with one cluster.
type Diagnostic struct {
	Cluster string `json:"cluster"`
	Samples int    `json:"samples"`
	Err     error  `json:"-"`
}

func (d Diagnostic) Error() string {
	return fmt.Sprintf("cluster %q (%d samples): %v", d.Cluster, d.Samples, d.Err)
}

func (d Diagnostic) Unwrap() error { return d.Err }

// Solver fits a Model from calibration samples.
type Solver struct {
	// MinSamples is the smallest cluster that is fitted. Smaller clusters
	// are dropped.
	MinSamples int

	// Epsilon is the pivot magnitude below which a system is singular.
	Epsilon float64
}

// NewSolver returns a Solver with the default parameters.
func NewSolver() *Solver {
	return &Solver{MinSamples: DefaultMinSamples, Epsilon: DefaultEpsilon}
}

// Solve groups samples by discretized head pose and fits a bilinear
// transform per group by least squares. It never fails: dropped and
// singular clusters are reported as diagnostics. Samples with a zero head
// pose are left out and reported once under ErrUnknownPose. Clusters are
// ordered by sample count, largest first.
func (s *Solver) Solve(samples []Sample) (*Model, []Diagnostic) {
	minSamples := s.MinSamples
	if minSamples < 1 {
		minSamples = DefaultMinSamples
	}
	eps := s.Epsilon
	if eps <= 0 {
		eps = DefaultEpsilon
	}

	var diags []Diagnostic
	unknown := 0
	groups := make(map[string][]Sample)
	var keys []string
	for _, sm := range samples {
		if sm.HeadPose == (r3.Vec{}) {
			unknown++
			continue
		}
		k := ClusterKey(sm.HeadPose)
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], sm)
	}
	sort.Strings(keys)
	if unknown > 0 {
		diags = append(diags, Diagnostic{Cluster: ClusterKey(r3.Vec{}), Samples: unknown, Err: ErrUnknownPose})
	}

	model := &Model{CreatedAt: time.Now()}
	for _, k := range keys {
		group := groups[k]
		if len(group) < minSamples {
			diags = append(diags, Diagnostic{
				Cluster: k,
				Samples: len(group),
				Err:     fmt.Errorf("need %d: %w", minSamples, ErrInsufficientSamples),
			})
			continue
		}

		c, err := fitCluster(k, group, eps)
		if err != nil {
			diags = append(diags, Diagnostic{Cluster: k, Samples: len(group), Err: err})
		}
		if c.Samples == 0 {
			// not fitted
			continue
		}
		model.Clusters = append(model.Clusters, c)
	}

	sort.SliceStable(model.Clusters, func(i, j int) bool {
		return model.Clusters[i].Samples > model.Clusters[j].Samples
	})
	return model, diags
}

// ClusterKey discretizes a head pose by rounding each axis to one decimal.
func ClusterKey(pose r3.Vec) string {
	parts := make([]string, 0, 3)
	for _, v := range [3]float64{pose.X, pose.Y, pose.Z} {
		r := math.Round(v*10) / 10
		if r == 0 {
			r = 0 // drop the sign of -0
		}
		parts = append(parts, strconv.FormatFloat(r, 'f', 1, 64))
	}
	return strings.Join(parts, ",")
}

// basis is the design row for a raw point.
func basis(x, y float64) []float64 {
	return []float64{1, x, y, x * y}
}

func fitCluster(key string, group []Sample, eps float64) (Cluster, error) {
	n := len(group)
	a := mat.NewDense(n, 4, nil)
	bx := mat.NewVecDense(n, nil)
	by := mat.NewVecDense(n, nil)

	px := make([]float64, n)
	py := make([]float64, n)
	pz := make([]float64, n)
	conf := make([]float64, n)

	for i, sm := range group {
		if !finiteSample(sm) {
			return Cluster{}, fmt.Errorf("sample %d: %w", i, ErrInvalidSample)
		}
		a.SetRow(i, basis(sm.Raw.X, sm.Raw.Y))
		bx.SetVec(i, sm.Target.X)
		by.SetVec(i, sm.Target.Y)
		px[i], py[i], pz[i] = sm.HeadPose.X, sm.HeadPose.Y, sm.HeadPose.Z
		conf[i] = sm.Raw.Confidence
	}

	var ata mat.Dense
	ata.Mul(a.T(), a)
	inv, err := invert(&ata, eps)
	if inv == nil {
		return Cluster{}, err
	}

	c := Cluster{
		Key:        key,
		HeadPose:   r3.Vec{X: stat.Mean(px, nil), Y: stat.Mean(py, nil), Z: stat.Mean(pz, nil)},
		Samples:    n,
		CoeffX:     solveNormal(inv, a, bx),
		CoeffY:     solveNormal(inv, a, by),
		Confidence: gaze.Clamp01(stat.Mean(conf, nil)),
	}
	return c, err
}

func finiteSample(sm Sample) bool {
	for _, v := range [...]float64{
		sm.Raw.X, sm.Raw.Y, sm.Raw.Confidence,
		sm.Target.X, sm.Target.Y,
		sm.HeadPose.X, sm.HeadPose.Y, sm.HeadPose.Z,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// solveNormal computes inv·Aᵗb.
func solveNormal(inv *mat.Dense, a *mat.Dense, b *mat.VecDense) [4]float64 {
	var atb, coef mat.VecDense
	atb.MulVec(a.T(), b)
	coef.MulVec(inv, &atb)

	var out [4]float64
	for i := range out {
		v := coef.AtVec(i)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = 0
		}
		out[i] = v
	}
	return out
}
