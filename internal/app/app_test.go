package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ayusman/drishti/internal/calibration"
	"github.com/ayusman/drishti/internal/capture"
	"github.com/ayusman/drishti/internal/config"
	"github.com/ayusman/drishti/internal/detector"
	"github.com/ayusman/drishti/internal/plugin"
	"github.com/ayusman/drishti/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	app      *App
	store    *store.Store
	camera   *capture.MockCamera
	detector *detector.MockDetector
	now      time.Time
}

func ptr[T any](v T) *T { return &v }

func newFixture(t *testing.T, st *store.Store) *fixture {
	t.Helper()
	return newFixtureWith(t, st, func(*config.Config) {})
}

func newFixtureWith(t *testing.T, st *store.Store, configure func(*config.Config)) *fixture {
	t.Helper()

	if st == nil {
		var err error
		st, err = store.New(":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { st.Close() })
	}

	frames := capture.BlankFrames(1, 64, 48)
	t.Cleanup(func() {
		for _, f := range frames {
			f.Close()
		}
	})
	cam := capture.NewMockCamera(frames, true)
	det := detector.NewMockDetector()

	settings := &config.Config{
		PluginDir:    ptr(t.TempDir()),
		SettleFrames: ptr(0),
		PointTimeout: ptr("5s"),
	}
	configure(settings)

	a, err := New(Config{
		Settings: settings,
		Store:    st,
		Camera:   cam,
		Detector: det,
	})
	require.NoError(t, err)

	f := &fixture{app: a, store: st, camera: cam, detector: det, now: time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)}
	a.now = func() time.Time { return f.now }
	require.NoError(t, cam.Open())
	return f
}

func (f *fixture) advance(d time.Duration) time.Time {
	f.now = f.now.Add(d)
	return f.now
}

func TestNew_InvalidLandmarkPreset(t *testing.T) {
	_, err := New(Config{
		Settings: &config.Config{LandmarkPreset: ptr("nope")},
		Camera:   capture.NewMockCamera(nil, false),
		Detector: detector.NewMockDetector(),
	})
	assert.Error(t, err)
}

func TestApp_ControlSurface(t *testing.T) {
	f := newFixture(t, nil)
	a := f.app

	_, _, ok := a.CurrentTargetPosition()
	assert.False(t, ok)
	assert.False(t, a.IsCalibrationComplete())

	a.StartCalibration()
	x, y, ok := a.CurrentTargetPosition()
	require.True(t, ok)
	assert.Equal(t, 0.1, x)
	assert.Equal(t, 0.1, y)
	assert.Equal(t, "collecting", a.CalibrationStatus().State)

	f.advance(time.Second)
	a.AbortCalibration()
	assert.Equal(t, "idle", a.CalibrationStatus().State)

	runs, err := f.store.Runs().List(0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, store.RunAborted, runs[0].Status)
	assert.Equal(t, time.Second, runs[0].FinishedAt.Sub(runs[0].StartedAt))

	// Aborting when idle records nothing.
	a.AbortCalibration()
	runs, _ = f.store.Runs().List(0)
	assert.Len(t, runs, 1)
}

func TestApp_CalibrationFromCamera(t *testing.T) {
	f := newFixture(t, nil)
	a := f.app
	f.detector.SetFaces([]detector.LandmarkFrame{detector.FrontalFaceLandmarks()})

	a.StartCalibration()
	for i := 0; i < calibration.GridSize; i++ {
		a.step(f.advance(100 * time.Millisecond))
	}

	require.True(t, a.IsCalibrationComplete())
	assert.Equal(t, calibration.GridSize, f.detector.Calls())

	run, err := f.store.Runs().Latest(store.RunComplete)
	require.NoError(t, err)
	assert.Equal(t, calibration.GridSize, run.Samples)
	require.Len(t, a.Model().Clusters, 1)

	t.Run("model is not restored by default", func(t *testing.T) {
		g := newFixture(t, f.store)
		assert.True(t, g.app.Model().Empty())
	})

	t.Run("restore_calibration installs the model at startup", func(t *testing.T) {
		g := newFixtureWith(t, f.store, func(c *config.Config) {
			c.RestoreCalibration = ptr(true)
		})
		require.Len(t, g.app.Model().Clusters, 1)
		assert.Equal(t, a.Model().Clusters[0].Key, g.app.Model().Clusters[0].Key)
	})

	t.Run("model reloads on request", func(t *testing.T) {
		g := newFixture(t, f.store)
		assert.True(t, g.app.Model().Empty())

		require.NoError(t, g.app.LoadModel())
		require.Len(t, g.app.Model().Clusters, 1)
		assert.Equal(t, a.Model().Clusters[0].Key, g.app.Model().Clusters[0].Key)
	})
}

func TestApp_TimeoutIsRecorded(t *testing.T) {
	f := newFixture(t, nil)
	a := f.app

	a.StartCalibration()
	a.step(f.advance(6 * time.Second)) // no face

	assert.Equal(t, "idle", a.CalibrationStatus().State)
	run, err := f.store.Runs().Latest(store.RunTimeout)
	require.NoError(t, err)
	require.Len(t, run.Diagnostics, 1)
	assert.Contains(t, run.Diagnostics[0], "timed out")
}

func TestApp_IdleFramesSkipDetection(t *testing.T) {
	f := newFixture(t, nil)
	a := f.app
	f.detector.SetFaces([]detector.LandmarkFrame{detector.FrontalFaceLandmarks()})

	// Blank frames never move, so an idle tracker never asks for a face.
	for i := 0; i < 3; i++ {
		a.step(f.advance(200 * time.Millisecond))
	}
	assert.Zero(t, f.detector.Calls())
	_, ok := a.LastPoint()
	assert.False(t, ok)

	// Once a face is known every frame is processed.
	a.gate.FaceSeen(f.now)
	a.step(f.advance(100 * time.Millisecond))
	assert.Equal(t, 1, f.detector.Calls())

	p, ok := a.LastPoint()
	require.True(t, ok)
	assert.InDelta(t, 960.0, p.X, 1e-6)
}

func TestApp_EnabledPersists(t *testing.T) {
	f := newFixture(t, nil)
	assert.False(t, f.app.Enabled())

	require.NoError(t, f.app.SetEnabled(true))

	g := newFixture(t, f.store)
	assert.True(t, g.app.Enabled())
}

func TestApp_DiscoverPlugins(t *testing.T) {
	f := newFixture(t, nil)
	a := f.app

	require.NoError(t, a.DiscoverPlugins())
	assert.Nil(t, a.cursor, "no plugin installed")

	dir := filepath.Join(a.pluginMgr.PluginDir(), "cursor")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	manifest := `{"name":"cursor","version":"1.0.0","executable":"cursor","actions":["` + plugin.ActionMove + `"]}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "plugin.json"), []byte(manifest), 0o644))

	require.NoError(t, a.DiscoverPlugins())
	assert.NotNil(t, a.cursor)
}

func TestApp_StartStop(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping frame loop test")
	}

	f := newFixture(t, nil)
	a := f.app
	a.now = time.Now
	f.camera.Close()

	var frames capture.JPEGBuffer
	a.frames = &frames

	require.NoError(t, a.Start())
	require.NoError(t, a.Start(), "second Start is a no-op")

	require.Eventually(t, func() bool { return f.camera.Reads() > 0 }, 3*time.Second, 20*time.Millisecond)
	a.Stop()

	assert.False(t, f.camera.IsOpen())
	_, seq := frames.Latest()
	assert.NotZero(t, seq)
}

