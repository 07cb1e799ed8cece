package calibration

import (
	"fmt"
	"sync"
	"time"

	"github.com/ayusman/drishti/internal/gaze"
	"gonum.org/v1/gonum/spatial/r3"
)

// State is the phase of a calibration session.
type State int

const (
	Idle State = iota
	Collecting
	Complete
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Collecting:
		return "collecting"
	case Complete:
		return "complete"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Options tune how a session collects samples.
type Options struct {
	// SamplesPerPoint is how many samples are recorded per target before
	// advancing. Values below 1 mean 1.
	SamplesPerPoint int

	// SettleFrames is how many frames are skipped after each target change
	// while the user's eyes move to it.
	SettleFrames int

	// PointTimeout aborts the session when a target receives no sample for
	// this long. Zero disables it.
	PointTimeout time.Duration
}

// DefaultOptions returns one sample per point, no settling and no timeout.
func DefaultOptions() Options {
	return Options{SamplesPerPoint: 1}
}

// Result is the outcome of a completed session.
type Result struct {
	Model       *Model
	Samples     []Sample
	Diagnostics []Diagnostic
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Status is a snapshot of a session for display.
type Status struct {
	State   string  `json:"state"`
	Index   int     `json:"index"`
	Total   int     `json:"total"`
	Samples int     `json:"samples"`
	Target  *Target `json:"target,omitempty"`
}

// Session walks the user through the target grid and records one or more
// raw samples per target. Completing the grid runs the solver.
type Session struct {
	mu sync.Mutex

	opts   Options
	screen gaze.Screen
	solver *Solver
	grid   [GridSize]Target

	state     State
	index     int
	settle    int
	collected int
	samples   []Sample
	startedAt time.Time
	lastAt    time.Time
	result    *Result
}

// NewSession creates an idle session that projects targets onto screen.
func NewSession(screen gaze.Screen, solver *Solver, opts Options) *Session {
	if opts.SamplesPerPoint < 1 {
		opts.SamplesPerPoint = 1
	}
	if opts.SettleFrames < 0 {
		opts.SettleFrames = 0
	}
	if solver == nil {
		solver = NewSolver()
	}
	return &Session{
		opts:   opts,
		screen: screen,
		solver: solver,
		grid:   Grid(),
	}
}

// Start begins collecting from the first target, discarding any samples
// and result from an earlier session.
func (s *Session) Start(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = Collecting
	s.index = 0
	s.collected = 0
	s.settle = s.opts.SettleFrames
	s.samples = nil
	s.result = nil
	s.startedAt = now
	s.lastAt = now
}

// Abort returns to Idle, discarding partial samples.
func (s *Session) Abort() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.abortLocked()
}

func (s *Session) abortLocked() {
	s.state = Idle
	s.index = 0
	s.collected = 0
	s.samples = nil
}

// State returns the current phase.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsComplete reports whether the last session finished the grid.
func (s *Session) IsComplete() bool {
	return s.State() == Complete
}

// CurrentTarget returns the normalized position of the target the user
// should look at. ok is false outside Collecting.
func (s *Session) CurrentTarget() (x, y float64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Collecting {
		return 0, 0, false
	}
	t := s.grid[s.index]
	return t.X, t.Y, true
}

// Status returns a snapshot for display.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		State:   s.state.String(),
		Index:   s.index,
		Total:   GridSize,
		Samples: len(s.samples),
	}
	if s.state == Collecting {
		t := s.grid[s.index]
		st.Target = &t
	}
	if s.state == Complete && s.result != nil {
		st.Index = GridSize
		st.Samples = len(s.result.Samples)
	}
	return st
}

// Result returns the outcome of the last completed session, or nil.
func (s *Session) Result() *Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Record adds a sample for the current target. It returns the session
// result when this sample completed the grid.
//
// Zero-confidence points and samples with an unknown (zero) head pose are
// not recorded and do not advance the target. ErrPointTimeout is returned,
// and the session is back to Idle, when the current target went without a
// sample for longer than the configured timeout.
func (s *Session) Record(raw gaze.ScreenPoint, pose r3.Vec, now time.Time) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Collecting {
		return nil, ErrNotCollecting
	}
	if err := s.checkTimeoutLocked(now); err != nil {
		return nil, err
	}
	if s.settle > 0 {
		s.settle--
		return nil, nil
	}
	if raw.Confidence <= 0 || pose == (r3.Vec{}) {
		return nil, nil
	}

	t := s.grid[s.index]
	s.samples = append(s.samples, Sample{
		Raw:         raw,
		HeadPose:    pose,
		Target:      Target{X: t.X * s.screen.Width, Y: t.Y * s.screen.Height},
		TargetIndex: s.index,
		RecordedAt:  now,
	})
	s.lastAt = now

	s.collected++
	if s.collected < s.opts.SamplesPerPoint {
		return nil, nil
	}

	s.collected = 0
	s.index++
	s.settle = s.opts.SettleFrames
	if s.index < GridSize {
		return nil, nil
	}

	model, diags := s.solver.Solve(s.samples)
	s.result = &Result{
		Model:       model,
		Samples:     s.samples,
		Diagnostics: diags,
		StartedAt:   s.startedAt,
		FinishedAt:  now,
	}
	s.state = Complete
	s.index = GridSize - 1
	s.samples = nil
	return s.result, nil
}

// Tick enforces the point timeout without a frame. It returns
// ErrPointTimeout when it aborted the session.
func (s *Session) Tick(now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Collecting {
		return nil
	}
	return s.checkTimeoutLocked(now)
}

func (s *Session) checkTimeoutLocked(now time.Time) error {
	if s.opts.PointTimeout <= 0 {
		return nil
	}
	if waited := now.Sub(s.lastAt); waited > s.opts.PointTimeout {
		idx := s.index
		s.abortLocked()
		return fmt.Errorf("target %d after %s: %w", idx, waited, ErrPointTimeout)
	}
	return nil
}
