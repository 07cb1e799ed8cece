// Package app runs the gaze tracker: camera, face detector, estimator,
// calibration and the point sinks.
package app

import (
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ayusman/drishti/internal/calibration"
	"github.com/ayusman/drishti/internal/capture"
	"github.com/ayusman/drishti/internal/config"
	"github.com/ayusman/drishti/internal/detector"
	"github.com/ayusman/drishti/internal/gaze"
	"github.com/ayusman/drishti/internal/log"
	"github.com/ayusman/drishti/internal/plugin"
	"github.com/ayusman/drishti/internal/sink"
	"github.com/ayusman/drishti/internal/store"
)

// IdleAfter is how long after the last seen face the tracker drops back
// to the idle frame rate.
const IdleAfter = 2 * time.Second

const settingEnabled = "tracking.enabled"

// Config holds the application dependencies. Nil Camera and Detector are
// created from Settings.
type Config struct {
	Settings *config.Config
	Store    *store.Store
	Camera   capture.Camera
	Detector detector.Detector
	// Frames receives every camera frame for the preview stream.
	Frames *capture.JPEGBuffer
	// Sinks receive every calibrated point, whether or not cursor output
	// is enabled.
	Sinks []sink.PointSink
}

// App orchestrates the tracker.
type App struct {
	settings    *config.Config
	store       *store.Store
	screen      gaze.Screen
	camera      capture.Camera
	detector    detector.Detector
	motion      *capture.MotionDetector
	gate        *capture.Gate
	frames      *capture.JPEGBuffer
	session     *calibration.Session
	transformer *calibration.Transformer
	pipeline    *Pipeline
	pluginMgr   *plugin.Manager
	pluginExec  *plugin.Executor
	latest      sink.Latest
	enabled     atomic.Bool
	now         func() time.Time

	mu         sync.Mutex
	cursor     *sink.PluginSink
	calStarted time.Time
	stopCh     chan struct{}
	doneCh     chan struct{}
}

// New creates an App. It fails only on an invalid landmark configuration.
// The latest recorded calibration is installed only when the settings opt
// in with restore_calibration.
func New(cfg Config) (*App, error) {
	settings := cfg.Settings
	if settings == nil {
		settings = &config.Config{}
	}
	landmarks, err := settings.GetLandmarkMap()
	if err != nil {
		return nil, err
	}
	gcfg := settings.GetGaze()

	a := &App{
		settings:    settings,
		store:       cfg.Store,
		screen:      gcfg.Screen,
		camera:      cfg.Camera,
		detector:    cfg.Detector,
		frames:      cfg.Frames,
		transformer: calibration.NewTransformer(gcfg.Screen),
		pluginMgr:   plugin.NewManager(settings.GetPluginDir()),
		pluginExec:  plugin.NewExecutor(0),
		now:         time.Now,
	}

	if a.camera == nil {
		w, h := settings.GetCameraSize()
		a.camera = capture.NewCamera(capture.Options{
			Device: settings.GetCameraID(),
			Width:  w,
			Height: h,
			FPS:    settings.GetIdleFPS(),
		})
	}
	if a.detector == nil {
		dcfg := detector.DefaultConfig()
		dcfg.RefineIris = landmarks.HasIris()
		if mp, err := detector.NewMediaPipeDetector(dcfg); err == nil {
			a.detector = mp
			log.Info("using MediaPipe face mesh", "iris", dcfg.RefineIris)
		} else {
			log.Warn("MediaPipe not available, using mock detector", "err", err)
			a.detector = detector.NewMockDetector()
		}
	}
	a.motion = capture.NewMotionDetector(settings.GetMotionThreshold())
	a.gate = capture.NewGate(a.motion, IdleAfter)

	solver := &calibration.Solver{
		MinSamples: settings.GetMinClusterSamples(),
		Epsilon:    calibration.DefaultEpsilon,
	}
	a.session = calibration.NewSession(gcfg.Screen, solver, settings.GetCalibration())

	out := sink.Multi{&a.latest, &sink.LogSink{Every: time.Second}}
	out = append(out, cfg.Sinks...)
	out = append(out, sink.Func(a.forwardCursor))

	a.pipeline = NewPipeline(gaze.NewEstimator(gcfg, landmarks), a.session, a.transformer, out)
	a.pipeline.OnComplete = a.recordRun
	a.pipeline.OnTimeout = a.recordTimeout

	a.loadEnabled()
	if settings.GetRestoreCalibration() {
		if err := a.LoadModel(); err != nil {
			log.Warn("failed to restore calibration", "err", err)
		}
	}
	return a, nil
}

func (a *App) loadEnabled() {
	if a.store == nil {
		return
	}
	v, err := a.store.Settings().GetOr(settingEnabled, "false")
	if err != nil {
		log.Warn("failed to read tracking setting", "err", err)
		return
	}
	enabled, _ := strconv.ParseBool(v)
	a.enabled.Store(enabled)
}

// Enabled reports whether points are forwarded to the cursor plugin.
func (a *App) Enabled() bool {
	return a.enabled.Load()
}

// SetEnabled toggles cursor output and persists the choice.
func (a *App) SetEnabled(enabled bool) error {
	a.enabled.Store(enabled)
	log.Info("cursor output toggled", "enabled", enabled)
	if a.store == nil {
		return nil
	}
	return a.store.Settings().Set(settingEnabled, strconv.FormatBool(enabled))
}

// DiscoverPlugins scans the plugin directory and attaches the configured
// cursor plugin if it is present.
func (a *App) DiscoverPlugins() error {
	if err := a.pluginMgr.Discover(); err != nil {
		return err
	}

	name := a.settings.GetCursorPlugin()
	if name == "" {
		return nil
	}
	p, err := a.pluginMgr.Get(name)
	if errors.Is(err, plugin.ErrPluginNotFound) {
		log.Info("cursor plugin not installed", "name", name, "dir", a.pluginMgr.PluginDir())
		return nil
	}
	if err != nil {
		return err
	}
	if !p.Manifest.Supports(plugin.ActionMove) {
		log.Warn("cursor plugin does not support move", "name", name)
		return nil
	}

	a.mu.Lock()
	a.cursor = sink.NewPluginSink(a.pluginExec, p, a.settings.GetMinConfidence(), a.settings.GetCursorRateHz())
	a.mu.Unlock()
	log.Info("cursor plugin attached", "name", name, "version", p.Manifest.Version)
	return nil
}

func (a *App) forwardCursor(x, y, confidence float64) {
	if !a.enabled.Load() {
		return
	}
	a.mu.Lock()
	c := a.cursor
	a.mu.Unlock()
	if c != nil {
		c.Accept(x, y, confidence)
	}
}

// LoadModel installs the model of the latest completed calibration run.
func (a *App) LoadModel() error {
	if a.store == nil {
		return nil
	}
	run, err := a.store.Runs().Latest(store.RunComplete)
	if errors.Is(err, store.ErrNotFound) {
		log.Info("no calibration recorded, using raw gaze")
		return nil
	}
	if err != nil {
		return err
	}
	model, err := a.store.Runs().Model(run.ID)
	if err != nil {
		return err
	}
	a.transformer.Swap(model)
	log.Info("calibration loaded", "run", run.ID, "clusters", len(model.Clusters), "finished", run.FinishedAt)
	return nil
}

// Start opens the camera and begins the frame loop.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopCh != nil {
		return nil
	}
	if err := a.camera.Open(); err != nil {
		return err
	}
	a.camera.SetFPS(a.settings.GetIdleFPS())

	a.stopCh = make(chan struct{})
	a.doneCh = make(chan struct{})
	go a.runPipeline(a.stopCh, a.doneCh)

	log.Info("tracker started", "screen", a.screen)
	return nil
}

// Stop ends the frame loop and releases the camera and detector.
func (a *App) Stop() {
	a.mu.Lock()
	stop, done, cursor := a.stopCh, a.doneCh, a.cursor
	a.stopCh, a.doneCh = nil, nil
	a.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
	if cursor != nil {
		cursor.Wait()
	}
	if err := a.camera.Close(); err != nil {
		log.Warn("failed to close camera", "err", err)
	}
	a.motion.Close()
	if err := a.detector.Close(); err != nil {
		log.Warn("failed to close detector", "err", err)
	}
	log.Info("tracker stopped")
}

// StartCalibration begins a new calibration session, replacing any
// session in progress.
func (a *App) StartCalibration() {
	now := a.now()
	a.mu.Lock()
	a.calStarted = now
	a.mu.Unlock()

	a.session.Start(now)
	log.Info("calibration started", "targets", calibration.GridSize)
}

// AbortCalibration stops a collecting session and records it as aborted.
func (a *App) AbortCalibration() {
	if a.session.State() != calibration.Collecting {
		return
	}
	a.session.Abort()
	log.Info("calibration aborted")
	a.recordAbort(store.RunAborted, "aborted by user", a.now())
}

// CurrentTargetPosition is the normalized target the user should look at.
// ok is false when no session is collecting.
func (a *App) CurrentTargetPosition() (x, y float64, ok bool) {
	return a.session.CurrentTarget()
}

// IsCalibrationComplete reports whether the last session finished.
func (a *App) IsCalibrationComplete() bool {
	return a.session.IsComplete()
}

// CalibrationStatus returns the session progress.
func (a *App) CalibrationStatus() calibration.Status {
	return a.session.Status()
}

// LastPoint returns the most recent calibrated point.
func (a *App) LastPoint() (sink.Point, bool) {
	return a.latest.Load()
}

// Model returns the active calibration model.
func (a *App) Model() *calibration.Model {
	return a.transformer.Model()
}

// Screen returns the projection target.
func (a *App) Screen() gaze.Screen {
	return a.screen
}

func (a *App) recordRun(res *calibration.Result) {
	if a.store == nil {
		return
	}
	run, err := a.store.Runs().Record(a.screen, res)
	if err != nil {
		log.Error("failed to record calibration run", "err", err)
		return
	}
	log.Info("calibration run recorded", "run", run.ID)
}

func (a *App) recordTimeout(err error, now time.Time) {
	a.recordAbort(store.RunTimeout, err.Error(), now)
}

func (a *App) recordAbort(status store.RunStatus, reason string, now time.Time) {
	if a.store == nil {
		return
	}
	a.mu.Lock()
	started := a.calStarted
	a.mu.Unlock()

	if _, err := a.store.Runs().RecordAbort(a.screen, status, reason, started, now); err != nil {
		log.Error("failed to record calibration run", "status", status, "err", err)
	}
}
