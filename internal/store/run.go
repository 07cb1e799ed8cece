package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ayusman/drishti/internal/calibration"
	"github.com/ayusman/drishti/internal/gaze"
	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r3"
)

// RunStatus is how a calibration run ended.
type RunStatus string

const (
	RunComplete RunStatus = "complete"
	RunAborted  RunStatus = "aborted"
	RunTimeout  RunStatus = "timeout"
)

// Run is a recorded calibration session.
type Run struct {
	ID          string      `json:"id"`
	Screen      gaze.Screen `json:"screen"`
	Status      RunStatus   `json:"status"`
	Diagnostics []string    `json:"diagnostics"`
	Samples     int         `json:"samples"`
	Clusters    int         `json:"clusters"`
	StartedAt   time.Time   `json:"started_at"`
	FinishedAt  time.Time   `json:"finished_at"`
	CreatedAt   time.Time   `json:"created_at"`
}

// RunRepository stores calibration runs with their samples and clusters.
type RunRepository struct {
	db *sql.DB
}

// Runs returns the calibration run repository for this store.
func (s *Store) Runs() *RunRepository {
	return &RunRepository{db: s.db}
}

// Record saves a completed session and returns the new run.
func (r *RunRepository) Record(screen gaze.Screen, res *calibration.Result) (*Run, error) {
	if res == nil {
		return nil, errors.New("record run: nil result")
	}

	diags := make([]string, 0, len(res.Diagnostics))
	for _, d := range res.Diagnostics {
		diags = append(diags, d.Error())
	}
	run := &Run{
		ID:          uuid.NewString(),
		Screen:      screen,
		Status:      RunComplete,
		Diagnostics: diags,
		Samples:     len(res.Samples),
		StartedAt:   res.StartedAt,
		FinishedAt:  res.FinishedAt,
		CreatedAt:   time.Now(),
	}
	if res.Model != nil {
		run.Clusters = len(res.Model.Clusters)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := insertRun(tx, run); err != nil {
		return nil, err
	}

	sampleStmt, err := tx.Prepare(
		`INSERT INTO calibration_samples
		 (run_id, target_index, target_x, target_y, raw_x, raw_y, confidence, pose_x, pose_y, pose_z, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return nil, err
	}
	defer sampleStmt.Close()

	for _, sm := range res.Samples {
		if _, err := sampleStmt.Exec(
			run.ID, sm.TargetIndex, sm.Target.X, sm.Target.Y,
			sm.Raw.X, sm.Raw.Y, sm.Raw.Confidence,
			sm.HeadPose.X, sm.HeadPose.Y, sm.HeadPose.Z, sm.RecordedAt,
		); err != nil {
			return nil, fmt.Errorf("insert sample %d: %w", sm.TargetIndex, err)
		}
	}

	if res.Model != nil {
		for _, c := range res.Model.Clusters {
			if _, err := tx.Exec(
				`INSERT INTO calibration_clusters
				 (run_id, cluster_key, pose_x, pose_y, pose_z, samples,
				  cx0, cx1, cx2, cx3, cy0, cy1, cy2, cy3, confidence)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				run.ID, c.Key, c.HeadPose.X, c.HeadPose.Y, c.HeadPose.Z, c.Samples,
				c.CoeffX[0], c.CoeffX[1], c.CoeffX[2], c.CoeffX[3],
				c.CoeffY[0], c.CoeffY[1], c.CoeffY[2], c.CoeffY[3],
				c.Confidence,
			); err != nil {
				return nil, fmt.Errorf("insert cluster %q: %w", c.Key, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return run, nil
}

// RecordAbort saves a session that ended without completing.
func (r *RunRepository) RecordAbort(screen gaze.Screen, status RunStatus, reason string, startedAt, finishedAt time.Time) (*Run, error) {
	run := &Run{
		ID:          uuid.NewString(),
		Screen:      screen,
		Status:      status,
		Diagnostics: []string{},
		StartedAt:   startedAt,
		FinishedAt:  finishedAt,
		CreatedAt:   time.Now(),
	}
	if reason != "" {
		run.Diagnostics = append(run.Diagnostics, reason)
	}
	if err := insertRun(r.db, run); err != nil {
		return nil, err
	}
	return run, nil
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func insertRun(db execer, run *Run) error {
	diags, err := json.Marshal(run.Diagnostics)
	if err != nil {
		return err
	}
	_, err = db.Exec(
		`INSERT INTO calibration_runs (id, screen_width, screen_height, status, diagnostics, started_at, finished_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Screen.Width, run.Screen.Height, string(run.Status), string(diags),
		run.StartedAt, run.FinishedAt, run.CreatedAt,
	)
	return err
}

const runColumns = `r.id, r.screen_width, r.screen_height, r.status, r.diagnostics,
	r.started_at, r.finished_at, r.created_at,
	(SELECT COUNT(*) FROM calibration_samples s WHERE s.run_id = r.id),
	(SELECT COUNT(*) FROM calibration_clusters c WHERE c.run_id = r.id)`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	run := &Run{}
	var status, diags string
	err := row.Scan(
		&run.ID, &run.Screen.Width, &run.Screen.Height, &status, &diags,
		&run.StartedAt, &run.FinishedAt, &run.CreatedAt,
		&run.Samples, &run.Clusters,
	)
	if err != nil {
		return nil, err
	}
	run.Status = RunStatus(status)
	if err := json.Unmarshal([]byte(diags), &run.Diagnostics); err != nil {
		return nil, fmt.Errorf("run %s diagnostics: %w", run.ID, err)
	}
	return run, nil
}

// GetByID retrieves a run by its ID.
func (r *RunRepository) GetByID(id string) (*Run, error) {
	run, err := scanRun(r.db.QueryRow(
		`SELECT `+runColumns+` FROM calibration_runs r WHERE r.id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return run, err
}

// Latest returns the most recent run with the given status.
func (r *RunRepository) Latest(status RunStatus) (*Run, error) {
	run, err := scanRun(r.db.QueryRow(
		`SELECT `+runColumns+` FROM calibration_runs r
		 WHERE r.status = ? ORDER BY r.finished_at DESC, r.created_at DESC LIMIT 1`,
		string(status),
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return run, err
}

// List returns up to limit runs, newest first. A limit of zero or less
// returns every run.
func (r *RunRepository) List(limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.Query(
		`SELECT `+runColumns+` FROM calibration_runs r
		 ORDER BY r.finished_at DESC, r.created_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Samples returns a run's samples in recording order.
func (r *RunRepository) Samples(runID string) ([]calibration.Sample, error) {
	rows, err := r.db.Query(
		`SELECT target_index, target_x, target_y, raw_x, raw_y, confidence, pose_x, pose_y, pose_z, recorded_at
		 FROM calibration_samples WHERE run_id = ? ORDER BY id`,
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []calibration.Sample
	for rows.Next() {
		var sm calibration.Sample
		if err := rows.Scan(
			&sm.TargetIndex, &sm.Target.X, &sm.Target.Y,
			&sm.Raw.X, &sm.Raw.Y, &sm.Raw.Confidence,
			&sm.HeadPose.X, &sm.HeadPose.Y, &sm.HeadPose.Z, &sm.RecordedAt,
		); err != nil {
			return nil, err
		}
		samples = append(samples, sm)
	}
	return samples, rows.Err()
}

// Model rebuilds the calibration model a run produced.
func (r *RunRepository) Model(runID string) (*calibration.Model, error) {
	run, err := r.GetByID(runID)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(
		`SELECT cluster_key, pose_x, pose_y, pose_z, samples,
		        cx0, cx1, cx2, cx3, cy0, cy1, cy2, cy3, confidence
		 FROM calibration_clusters WHERE run_id = ? ORDER BY samples DESC, id`,
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	m := &calibration.Model{CreatedAt: run.FinishedAt}
	for rows.Next() {
		var c calibration.Cluster
		var pose r3.Vec
		if err := rows.Scan(
			&c.Key, &pose.X, &pose.Y, &pose.Z, &c.Samples,
			&c.CoeffX[0], &c.CoeffX[1], &c.CoeffX[2], &c.CoeffX[3],
			&c.CoeffY[0], &c.CoeffY[1], &c.CoeffY[2], &c.CoeffY[3],
			&c.Confidence,
		); err != nil {
			return nil, err
		}
		c.HeadPose = pose
		m.Clusters = append(m.Clusters, c)
	}
	return m, rows.Err()
}

// Delete removes a run with its samples and clusters.
func (r *RunRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM calibration_runs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
