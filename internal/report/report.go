// Package report measures how well a calibration run fits its own samples
// and plots the result.
package report

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"github.com/ayusman/drishti/internal/calibration"
	"github.com/ayusman/drishti/internal/gaze"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Residual is one calibration sample replayed through the model.
type Residual struct {
	TargetIndex     int
	Target          calibration.Target
	Raw             gaze.ScreenPoint
	Calibrated      gaze.ScreenPoint
	RawError        float64
	CalibratedError float64
}

// Summary aggregates errors in pixels.
type Summary struct {
	Samples        int     `json:"samples"`
	MeanRaw        float64 `json:"mean_raw"`
	MeanCalibrated float64 `json:"mean_calibrated"`
	RMSCalibrated  float64 `json:"rms_calibrated"`
	MaxCalibrated  float64 `json:"max_calibrated"`
}

// Analysis is the replay of a run.
type Analysis struct {
	Screen    gaze.Screen
	Residuals []Residual
	Summary   Summary
}

// Analyze replays samples through model. An empty model yields the raw
// points unchanged.
func Analyze(screen gaze.Screen, samples []calibration.Sample, model *calibration.Model) Analysis {
	tr := calibration.NewTransformer(screen)
	tr.Swap(model)

	a := Analysis{Screen: screen, Residuals: make([]Residual, 0, len(samples))}
	raw := make([]float64, 0, len(samples))
	cal := make([]float64, 0, len(samples))
	sq := make([]float64, 0, len(samples))

	for _, sm := range samples {
		c := tr.Transform(sm.Raw, sm.HeadPose)
		target := []float64{sm.Target.X, sm.Target.Y}
		r := Residual{
			TargetIndex:     sm.TargetIndex,
			Target:          sm.Target,
			Raw:             sm.Raw,
			Calibrated:      c,
			RawError:        floats.Distance([]float64{sm.Raw.X, sm.Raw.Y}, target, 2),
			CalibratedError: floats.Distance([]float64{c.X, c.Y}, target, 2),
		}
		a.Residuals = append(a.Residuals, r)
		raw = append(raw, r.RawError)
		cal = append(cal, r.CalibratedError)
		sq = append(sq, r.CalibratedError*r.CalibratedError)
	}

	a.Summary.Samples = len(samples)
	if len(samples) > 0 {
		a.Summary.MeanRaw = stat.Mean(raw, nil)
		a.Summary.MeanCalibrated = stat.Mean(cal, nil)
		a.Summary.RMSCalibrated = math.Sqrt(stat.Mean(sq, nil))
		a.Summary.MaxCalibrated = floats.Max(cal)
	}
	return a
}

var (
	targetColor     = color.RGBA{R: 40, G: 40, B: 40, A: 255}
	rawColor        = color.RGBA{R: 220, G: 60, B: 50, A: 255}
	calibratedColor = color.RGBA{R: 40, G: 110, B: 220, A: 255}
)

// Write saves the screen map and the per-sample error plot as PNGs in dir
// and returns their paths.
func Write(a Analysis, dir, prefix string) ([]string, error) {
	if len(a.Residuals) == 0 {
		return nil, errors.New("report: no samples")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	screenPlot, err := screenMap(a)
	if err != nil {
		return nil, fmt.Errorf("screen map: %w", err)
	}
	errorPlot, err := errorSeries(a)
	if err != nil {
		return nil, fmt.Errorf("error series: %w", err)
	}

	screenFile := filepath.Join(dir, prefix+"_screen.png")
	if err := screenPlot.Save(10*vg.Inch, 10*vg.Inch*vg.Length(a.Screen.Height/a.Screen.Width), screenFile); err != nil {
		return nil, fmt.Errorf("save screen map: %w", err)
	}
	errorFile := filepath.Join(dir, prefix+"_error.png")
	if err := errorPlot.Save(10*vg.Inch, 4*vg.Inch, errorFile); err != nil {
		return nil, fmt.Errorf("save error plot: %w", err)
	}
	return []string{screenFile, errorFile}, nil
}

// screenMap draws targets, raw and calibrated points in screen space with
// y pointing down as on the display.
func screenMap(a Analysis) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Calibration targets, raw and calibrated gaze"
	p.X.Label.Text = "x (px)"
	p.Y.Label.Text = "y (px, from top)"
	p.X.Min, p.X.Max = 0, a.Screen.Width
	p.Y.Min, p.Y.Max = -a.Screen.Height, 0
	p.Add(plotter.NewGrid())

	targets := make(plotter.XYs, 0, len(a.Residuals))
	raw := make(plotter.XYs, 0, len(a.Residuals))
	cal := make(plotter.XYs, 0, len(a.Residuals))
	for _, r := range a.Residuals {
		targets = append(targets, plotter.XY{X: r.Target.X, Y: -r.Target.Y})
		raw = append(raw, plotter.XY{X: r.Raw.X, Y: -r.Raw.Y})
		cal = append(cal, plotter.XY{X: r.Calibrated.X, Y: -r.Calibrated.Y})
	}

	for _, s := range []struct {
		name  string
		pts   plotter.XYs
		color color.Color
		r     vg.Length
	}{
		{"target", targets, targetColor, vg.Points(6)},
		{"raw", raw, rawColor, vg.Points(3)},
		{"calibrated", cal, calibratedColor, vg.Points(3)},
	} {
		sc, err := plotter.NewScatter(s.pts)
		if err != nil {
			return nil, err
		}
		sc.GlyphStyle.Color = s.color
		sc.GlyphStyle.Radius = s.r
		p.Add(sc)
		p.Legend.Add(s.name, sc)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p, nil
}

// errorSeries plots each sample's distance to its target.
func errorSeries(a Analysis) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Error per sample (mean %.1f px raw, %.1f px calibrated)",
		a.Summary.MeanRaw, a.Summary.MeanCalibrated)
	p.X.Label.Text = "Sample"
	p.Y.Label.Text = "Distance to target (px)"

	raw := make(plotter.XYs, len(a.Residuals))
	cal := make(plotter.XYs, len(a.Residuals))
	for i, r := range a.Residuals {
		raw[i] = plotter.XY{X: float64(i), Y: r.RawError}
		cal[i] = plotter.XY{X: float64(i), Y: r.CalibratedError}
	}

	for _, s := range []struct {
		name  string
		pts   plotter.XYs
		color color.Color
	}{
		{"raw", raw, rawColor},
		{"calibrated", cal, calibratedColor},
	} {
		line, err := plotter.NewLine(s.pts)
		if err != nil {
			return nil, err
		}
		line.Color = s.color
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(s.name, line)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p, nil
}
