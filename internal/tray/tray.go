// Package tray puts the tracker in the system menu bar.
package tray

import (
	"fmt"
	"sync"
	"time"

	"github.com/ayusman/drishti/internal/calibration"
	"github.com/ayusman/drishti/internal/log"
	"github.com/ayusman/drishti/internal/sink"
	"github.com/getlantern/systray"
)

// Controller is the part of the tracker the menu drives.
type Controller interface {
	Enabled() bool
	SetEnabled(enabled bool) error
	StartCalibration()
	AbortCalibration()
	CalibrationStatus() calibration.Status
	LastPoint() (sink.Point, bool)
}

const refreshEvery = time.Second

// Tray is the menu bar UI.
type Tray struct {
	ctl        Controller
	onSettings func()
	onQuit     func()
	mu         sync.RWMutex
	stop       chan struct{}
	quitOnce   sync.Once

	menuToggle    *systray.MenuItem
	menuCalibrate *systray.MenuItem
	menuAbort     *systray.MenuItem
	menuStatus    *systray.MenuItem
	menuLast      *systray.MenuItem
}

// New creates a Tray for ctl.
func New(ctl Controller) *Tray {
	return &Tray{ctl: ctl, stop: make(chan struct{})}
}

// OnSettings sets the callback for the settings item.
func (t *Tray) OnSettings(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onSettings = fn
}

// OnQuit sets the callback run before the tray exits.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run shows the tray and blocks until Quit.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetTitle("Drishti")
	systray.SetTooltip("Drishti gaze tracking")

	t.menuToggle = systray.AddMenuItem(toggleLabel(t.ctl.Enabled()), "Move the cursor with your gaze")
	systray.AddSeparator()

	t.menuCalibrate = systray.AddMenuItem("Calibrate", "Look at each target in turn")
	t.menuAbort = systray.AddMenuItem("Abort calibration", "Stop the running calibration")
	t.menuStatus = systray.AddMenuItem(statusLabel(t.ctl.CalibrationStatus()), "")
	t.menuStatus.Disable()
	systray.AddSeparator()

	t.menuLast = systray.AddMenuItem(pointLabel(t.ctl.LastPoint()), "Last gaze point")
	t.menuLast.Disable()
	systray.AddSeparator()

	menuSettings := systray.AddMenuItem("Open Dashboard...", "Open the dashboard in a browser")
	menuQuit := systray.AddMenuItem("Quit", "Quit Drishti")

	t.refresh()
	go t.refreshLoop()
	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-t.menuCalibrate.ClickedCh:
				t.ctl.StartCalibration()
				t.refresh()
			case <-t.menuAbort.ClickedCh:
				t.ctl.AbortCalibration()
				t.refresh()
			case <-menuSettings.ClickedCh:
				t.handleSettings()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

func (t *Tray) refreshLoop() {
	ticker := time.NewTicker(refreshEvery)
	defer ticker.Stop()
	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			t.refresh()
		}
	}
}

// refresh updates the status lines from the controller.
func (t *Tray) refresh() {
	st := t.ctl.CalibrationStatus()
	t.menuStatus.SetTitle(statusLabel(st))
	if st.State == calibration.Collecting.String() {
		t.menuCalibrate.Disable()
		t.menuAbort.Enable()
	} else {
		t.menuCalibrate.Enable()
		t.menuAbort.Disable()
	}
	t.menuLast.SetTitle(pointLabel(t.ctl.LastPoint()))
}

func (t *Tray) handleToggle() {
	enabled := !t.ctl.Enabled()
	if err := t.ctl.SetEnabled(enabled); err != nil {
		log.Warn("failed to save tracking toggle", "err", err)
	}
	t.menuToggle.SetTitle(toggleLabel(t.ctl.Enabled()))
}

func (t *Tray) handleSettings() {
	t.mu.RLock()
	callback := t.onSettings
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
	t.Quit()
}

// Quit closes the tray, making Run return.
func (t *Tray) Quit() {
	t.quitOnce.Do(func() {
		close(t.stop)
		systray.Quit()
	})
}

func toggleLabel(enabled bool) string {
	if enabled {
		return "● Cursor control on"
	}
	return "○ Cursor control off"
}

func statusLabel(st calibration.Status) string {
	switch st.State {
	case calibration.Collecting.String():
		return fmt.Sprintf("Calibrating: target %d of %d", st.Index+1, st.Total)
	case calibration.Complete.String():
		return "Calibrated"
	default:
		return "Not calibrating"
	}
}

func pointLabel(p sink.Point, ok bool) string {
	if !ok {
		return "Last: none"
	}
	return fmt.Sprintf("Last: %.0f, %.0f (%.0f%%)", p.X, p.Y, p.Confidence*100)
}
