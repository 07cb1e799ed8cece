package capture

import (
	"image"
	"image/color"
	"testing"
	"time"

	"gocv.io/x/gocv"
)

func TestMotionDetector(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	md := NewMotionDetector(1.0)
	defer md.Close()

	black := gocv.NewMatWithSize(240, 320, gocv.MatTypeCV8UC3)
	defer black.Close()
	lit := black.Clone()
	defer lit.Close()
	gocv.Rectangle(&lit, image.Rect(40, 40, 280, 200), color.RGBA{255, 255, 255, 0}, -1)

	if moved, pct := md.Detect(&black); moved || pct != 0 {
		t.Errorf("first frame = (%v, %f), want baseline only", moved, pct)
	}
	if moved, pct := md.Detect(&black); moved {
		t.Errorf("identical frame detected motion, change = %f", pct)
	}
	moved, pct := md.Detect(&lit)
	if !moved {
		t.Errorf("large change not detected, change = %f", pct)
	}
	if pct <= 1 || pct > 100 {
		t.Errorf("change = %f, want within (1, 100]", pct)
	}

	md.Reset()
	if moved, _ := md.Detect(&black); moved {
		t.Error("frame after Reset should only set the baseline")
	}
}

func TestMotionDetector_NilAndEmpty(t *testing.T) {
	md := NewMotionDetector(1.0)
	defer md.Close()

	empty := gocv.NewMat()
	defer empty.Close()

	if moved, pct := md.Detect(nil); moved || pct != 0 {
		t.Error("nil frame should not detect motion")
	}
	if moved, pct := md.Detect(&empty); moved || pct != 0 {
		t.Error("empty frame should not detect motion")
	}
}

func TestGate(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	md := NewMotionDetector(1.0)
	defer md.Close()
	g := NewGate(md, 2*time.Second)

	frame := gocv.NewMatWithSize(120, 160, gocv.MatTypeCV8UC3)
	defer frame.Close()
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if g.Active(t0) {
		t.Error("gate should start idle")
	}
	if g.Allow(&frame, t0) {
		t.Error("still idle frame should not pass")
	}

	g.FaceSeen(t0)
	if !g.Allow(&frame, t0.Add(time.Second)) {
		t.Error("active gate should pass every frame")
	}
	if g.Active(t0.Add(2 * time.Second)) {
		t.Error("gate should go idle after the hold period")
	}
}

func TestGate_WithoutMotionDetector(t *testing.T) {
	g := NewGate(nil, time.Second)
	if !g.Allow(nil, time.Now()) {
		t.Error("gate without a motion detector should pass every frame")
	}
}
