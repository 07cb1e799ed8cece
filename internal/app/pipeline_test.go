package app

import (
	"sync"
	"testing"
	"time"

	"github.com/ayusman/drishti/internal/calibration"
	"github.com/ayusman/drishti/internal/detector"
	"github.com/ayusman/drishti/internal/gaze"
	"github.com/ayusman/drishti/internal/sink"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	points []gaze.ScreenPoint
}

func (r *recorder) Accept(x, y, c float64) {
	r.mu.Lock()
	r.points = append(r.points, gaze.ScreenPoint{X: x, Y: y, Confidence: c})
	r.mu.Unlock()
}

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.points)
}

var _ sink.PointSink = (*recorder)(nil)

func newTestPipeline(opts calibration.Options) (*Pipeline, *calibration.Session, *calibration.Transformer, *recorder) {
	cfg := gaze.DefaultConfig()
	m := detector.MediaPipeIrisMap()
	est := gaze.NewEstimator(cfg, m)
	est.SetStrategy(gaze.TwoDimensional{Landmarks: m})

	session := calibration.NewSession(cfg.Screen, calibration.NewSolver(), opts)
	tr := calibration.NewTransformer(cfg.Screen)
	rec := &recorder{}
	return NewPipeline(est, session, tr, rec), session, tr, rec
}

// targetFace looks toward grid target i by shifting the irises.
func targetFace(i int) detector.LandmarkFrame {
	offsets := []float64{-0.004, 0, 0.004}
	return detector.FaceWithIrisOffset(offsets[i%3], offsets[i/3])
}

func TestPipeline_ForwardsPointsWhenIdle(t *testing.T) {
	p, _, _, rec := newTestPipeline(calibration.DefaultOptions())

	out := p.ProcessFrame(detector.FrontalFaceLandmarks(), time.Now())

	assert.False(t, out.Calibrating)
	require.Equal(t, 1, rec.len())
	assert.InDelta(t, 960.0, rec.points[0].X, 1e-6)
	assert.Equal(t, out.Point, rec.points[0])
}

func TestPipeline_Calibration(t *testing.T) {
	p, session, tr, rec := newTestPipeline(calibration.Options{SamplesPerPoint: 1})

	var completed *calibration.Result
	p.OnComplete = func(res *calibration.Result) { completed = res }

	t0 := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	session.Start(t0)

	for i := 0; i < calibration.GridSize; i++ {
		out := p.ProcessFrame(targetFace(i), t0.Add(time.Duration(i+1)*100*time.Millisecond))
		assert.True(t, out.Calibrating, "frame %d", i)
	}

	assert.Zero(t, rec.len(), "no points leave the pipeline while calibrating")
	require.NotNil(t, completed)
	assert.Len(t, completed.Samples, calibration.GridSize)
	assert.True(t, session.IsComplete())

	model := tr.Model()
	require.Len(t, model.Clusters, 1)
	assert.Equal(t, calibration.GridSize, model.Clusters[0].Samples)

	t.Run("points flow to the sink again", func(t *testing.T) {
		out := p.ProcessFrame(targetFace(4), t0.Add(time.Minute))

		assert.False(t, out.Calibrating)
		require.Equal(t, 1, rec.len())
		assert.Equal(t, out.Point, rec.points[0])
		assert.GreaterOrEqual(t, out.Point.X, 0.0)
		assert.LessOrEqual(t, out.Point.X, 1920.0)
	})
}

func TestPipeline_TickTimesOut(t *testing.T) {
	p, session, _, _ := newTestPipeline(calibration.Options{SamplesPerPoint: 1, PointTimeout: time.Second})

	var timedOut error
	p.OnTimeout = func(err error, _ time.Time) { timedOut = err }

	t0 := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	session.Start(t0)

	p.Tick(t0.Add(500 * time.Millisecond))
	assert.NoError(t, timedOut)
	assert.Equal(t, calibration.Collecting, session.State())

	p.Tick(t0.Add(2 * time.Second))
	assert.ErrorIs(t, timedOut, calibration.ErrPointTimeout)
	assert.Equal(t, calibration.Idle, session.State())
}
