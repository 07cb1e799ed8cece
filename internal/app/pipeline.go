package app

import (
	"errors"
	"time"

	"github.com/ayusman/drishti/internal/calibration"
	"github.com/ayusman/drishti/internal/detector"
	"github.com/ayusman/drishti/internal/gaze"
	"github.com/ayusman/drishti/internal/log"
	"github.com/ayusman/drishti/internal/sink"
)

// Output is what the pipeline made of one frame.
type Output struct {
	Gaze gaze.Result
	// Point is the calibrated point delivered to the sink. It is the raw
	// point while a calibration session is collecting.
	Point gaze.ScreenPoint
	// Calibrating is true when the frame went to the calibration session
	// instead of the sink.
	Calibrating bool
}

// Pipeline turns landmark frames into screen points.
type Pipeline struct {
	estimator   *gaze.Estimator
	session     *calibration.Session
	transformer *calibration.Transformer
	sink        sink.PointSink

	// OnComplete runs after a finished session's model is installed.
	OnComplete func(res *calibration.Result)
	// OnTimeout runs when the session gave up on a target.
	OnTimeout func(err error, now time.Time)
}

// NewPipeline wires an estimator, a calibration session and a transformer
// to out.
func NewPipeline(e *gaze.Estimator, s *calibration.Session, t *calibration.Transformer, out sink.PointSink) *Pipeline {
	return &Pipeline{estimator: e, session: s, transformer: t, sink: out}
}

// ProcessFrame runs one face through the estimator. While the session is
// collecting the raw point becomes a calibration sample; otherwise the
// calibrated point goes to the sink.
func (p *Pipeline) ProcessFrame(frame detector.LandmarkFrame, now time.Time) Output {
	res := p.estimator.Estimate(frame)
	for _, d := range res.Diagnostics {
		log.Debug("frame diagnostic", "strategy", res.Strategy, "err", d)
	}

	if p.session.State() == calibration.Collecting {
		result, err := p.session.Record(res.Raw, res.HeadPose, now)
		p.handle(result, err, now)
		return Output{Gaze: res, Point: res.Raw, Calibrating: true}
	}

	pt := p.transformer.Transform(res.Raw, res.HeadPose)
	if p.sink != nil {
		p.sink.Accept(pt.X, pt.Y, pt.Confidence)
	}
	return Output{Gaze: res, Point: pt}
}

// Tick advances the session clock on frames without a usable face.
func (p *Pipeline) Tick(now time.Time) {
	p.handle(nil, p.session.Tick(now), now)
}

func (p *Pipeline) handle(result *calibration.Result, err error, now time.Time) {
	switch {
	case errors.Is(err, calibration.ErrPointTimeout):
		log.Warn("calibration timed out", "err", err)
		if p.OnTimeout != nil {
			p.OnTimeout(err, now)
		}
		return
	case errors.Is(err, calibration.ErrNotCollecting):
		// aborted between the state check and Record
		return
	case err != nil:
		log.Warn("calibration sample rejected", "err", err)
		return
	}
	if result == nil {
		return
	}

	p.transformer.Swap(result.Model)
	log.Info("calibration complete",
		"samples", len(result.Samples),
		"clusters", len(result.Model.Clusters),
		"elapsed", result.FinishedAt.Sub(result.StartedAt).Round(time.Millisecond),
	)
	for _, d := range result.Diagnostics {
		log.Warn("calibration cluster", "cluster", d.Cluster, "samples", d.Samples, "err", d.Err)
	}
	if p.OnComplete != nil {
		p.OnComplete(result)
	}
}

// runPipeline reads frames until stop is closed.
//
// The loop starts at the idle frame rate and lets motion decide when to
// look for a face. Once a face is seen, or while calibrating, it runs at
// the active rate and sends every frame to the detector.
func (a *App) runPipeline(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	idle, active := a.settings.GetIdleFPS(), a.settings.GetActiveFPS()
	fast := false
	ticker := time.NewTicker(frameInterval(idle))
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		now := a.now()
		a.step(now)

		want := a.gate.Active(now) || a.session.State() == calibration.Collecting
		if want == fast {
			continue
		}
		fast = want
		fps := idle
		if fast {
			fps = active
		}
		a.camera.SetFPS(fps)
		ticker.Reset(frameInterval(fps))
		log.Debug("frame rate changed", "fps", fps)
	}
}

// step reads and processes one camera frame.
func (a *App) step(now time.Time) {
	frame, err := a.camera.ReadFrame()
	if err != nil {
		log.Debug("failed to read frame", "err", err)
		a.pipeline.Tick(now)
		return
	}
	defer frame.Close()

	if a.frames != nil {
		if err := a.frames.Store(frame); err != nil {
			log.Debug("failed to encode preview frame", "err", err)
		}
	}

	if a.session.State() != calibration.Collecting && !a.gate.Allow(frame, now) {
		a.pipeline.Tick(now)
		return
	}

	faces, err := a.detector.Detect(frame)
	if err != nil {
		log.Warn("face detection failed", "err", err)
		a.pipeline.Tick(now)
		return
	}
	if len(faces) == 0 {
		a.pipeline.Tick(now)
		return
	}

	a.gate.FaceSeen(now)
	a.pipeline.ProcessFrame(faces[0], now)
}

func frameInterval(fps int) time.Duration {
	if fps <= 0 {
		fps = 1
	}
	return time.Second / time.Duration(fps)
}
