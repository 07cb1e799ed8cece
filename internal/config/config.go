// Package config loads drishti's JSON configuration file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ayusman/drishti/internal/calibration"
	"github.com/ayusman/drishti/internal/detector"
	"github.com/ayusman/drishti/internal/gaze"
)

// maxFileSize bounds the config file that Load will read.
const maxFileSize = 1 << 20

// Config is the on-disk configuration. Every field is optional; the Get*
// methods supply defaults for fields left out of the file.
type Config struct {
	// Display and projection
	ScreenWidth     *float64 `json:"screen_width,omitempty"`
	ScreenHeight    *float64 `json:"screen_height,omitempty"`
	MirrorX         *bool    `json:"mirror_x,omitempty"`
	FaceWidthMeters *float64 `json:"face_width_meters,omitempty"`
	FocalLength     *float64 `json:"focal_length,omitempty"`
	ConfidenceScale *float64 `json:"confidence_scale,omitempty"`

	// Landmarks selects a named preset; Landmarks overrides it entirely.
	LandmarkPreset *string               `json:"landmark_preset,omitempty"`
	Landmarks      *detector.LandmarkMap `json:"landmarks,omitempty"`

	// Calibration
	SamplesPerPoint   *int    `json:"samples_per_point,omitempty"`
	SettleFrames      *int    `json:"settle_frames,omitempty"`
	PointTimeout      *string `json:"point_timeout,omitempty"` // duration string like "10s"
	MinClusterSamples *int    `json:"min_cluster_samples,omitempty"`
	// RestoreCalibration installs the latest recorded model at startup.
	RestoreCalibration *bool `json:"restore_calibration,omitempty"`

	// Capture
	CameraID        *int     `json:"camera_id,omitempty"`
	CameraWidth     *int     `json:"camera_width,omitempty"`
	CameraHeight    *int     `json:"camera_height,omitempty"`
	IdleFPS         *int     `json:"idle_fps,omitempty"`
	ActiveFPS       *int     `json:"active_fps,omitempty"`
	MotionThreshold *float64 `json:"motion_threshold,omitempty"`

	// Outputs
	ListenAddr    *string  `json:"listen_addr,omitempty"`
	DataDir       *string  `json:"data_dir,omitempty"`
	PluginDir     *string  `json:"plugin_dir,omitempty"`
	CursorPlugin  *string  `json:"cursor_plugin,omitempty"`
	CursorRateHz  *float64 `json:"cursor_rate_hz,omitempty"`
	MinConfidence *float64 `json:"min_confidence,omitempty"`
	LogLevel      *string  `json:"log_level,omitempty"`
}

// DefaultPath returns ~/.drishti/config.json.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".drishti", "config.json"), nil
}

// Load reads a Config from a JSON file. The path must have a .json
// extension and the file must be under 1 MiB. Fields missing from the
// file keep their defaults.
func Load(path string) (*Config, error) {
	clean := filepath.Clean(path)
	if ext := filepath.Ext(clean); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	info, err := os.Stat(clean)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	data, err := os.ReadFile(clean)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault loads path when it exists and returns an empty Config
// otherwise.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &Config{}, nil
	}
	return Load(path)
}

// Validate checks the values that are set.
func (c *Config) Validate() error {
	positive := []struct {
		name string
		v    *float64
	}{
		{"screen_width", c.ScreenWidth},
		{"screen_height", c.ScreenHeight},
		{"face_width_meters", c.FaceWidthMeters},
		{"focal_length", c.FocalLength},
		{"confidence_scale", c.ConfidenceScale},
		{"cursor_rate_hz", c.CursorRateHz},
	}
	for _, p := range positive {
		if p.v != nil && !(*p.v > 0) {
			return fmt.Errorf("%s must be positive, got %f", p.name, *p.v)
		}
	}

	if c.MinConfidence != nil && (*c.MinConfidence < 0 || *c.MinConfidence > 1) {
		return fmt.Errorf("min_confidence must be between 0 and 1, got %f", *c.MinConfidence)
	}
	if c.MotionThreshold != nil && (*c.MotionThreshold < 0 || *c.MotionThreshold > 100) {
		return fmt.Errorf("motion_threshold must be a percentage, got %f", *c.MotionThreshold)
	}
	if c.SamplesPerPoint != nil && *c.SamplesPerPoint < 1 {
		return fmt.Errorf("samples_per_point must be at least 1, got %d", *c.SamplesPerPoint)
	}
	if c.SettleFrames != nil && *c.SettleFrames < 0 {
		return fmt.Errorf("settle_frames must be non-negative, got %d", *c.SettleFrames)
	}
	if c.MinClusterSamples != nil && *c.MinClusterSamples < 4 {
		return fmt.Errorf("min_cluster_samples must be at least 4, got %d", *c.MinClusterSamples)
	}
	for name, fps := range map[string]*int{"idle_fps": c.IdleFPS, "active_fps": c.ActiveFPS} {
		if fps != nil && *fps <= 0 {
			return fmt.Errorf("%s must be positive, got %d", name, *fps)
		}
	}
	if c.PointTimeout != nil && *c.PointTimeout != "" {
		d, err := time.ParseDuration(*c.PointTimeout)
		if err != nil {
			return fmt.Errorf("invalid point_timeout '%s': %w", *c.PointTimeout, err)
		}
		if d < 0 {
			return fmt.Errorf("point_timeout must be non-negative, got %s", d)
		}
	}
	if _, err := c.GetLandmarkMap(); err != nil {
		return err
	}
	return nil
}

// GetScreen returns the display size.
func (c *Config) GetScreen() gaze.Screen {
	s := gaze.DefaultConfig().Screen
	if c.ScreenWidth != nil {
		s.Width = *c.ScreenWidth
	}
	if c.ScreenHeight != nil {
		s.Height = *c.ScreenHeight
	}
	return s
}

// GetGaze assembles the gaze pipeline configuration.
func (c *Config) GetGaze() gaze.Config {
	g := gaze.DefaultConfig()
	g.Screen = c.GetScreen()
	if c.MirrorX != nil {
		g.MirrorX = *c.MirrorX
	}
	if c.FaceWidthMeters != nil {
		g.FaceWidthMeters = *c.FaceWidthMeters
	}
	if c.FocalLength != nil {
		g.FocalLength = *c.FocalLength
	}
	if c.ConfidenceScale != nil {
		g.ConfidenceScale = *c.ConfidenceScale
	}
	return g
}

// GetLandmarkMap returns the explicit landmark map when one is configured,
// otherwise the named preset (default "mediapipe-478").
func (c *Config) GetLandmarkMap() (detector.LandmarkMap, error) {
	if c.Landmarks != nil {
		if err := c.Landmarks.Validate(); err != nil {
			return detector.LandmarkMap{}, fmt.Errorf("invalid landmarks: %w", err)
		}
		return *c.Landmarks, nil
	}
	name := ""
	if c.LandmarkPreset != nil {
		name = *c.LandmarkPreset
	}
	m, err := detector.MapByName(name)
	if err != nil {
		return detector.LandmarkMap{}, fmt.Errorf("landmark_preset: %w", err)
	}
	return m, nil
}

// GetPointTimeout returns the calibration point timeout; zero disables it.
func (c *Config) GetPointTimeout() time.Duration {
	if c.PointTimeout == nil || *c.PointTimeout == "" {
		return 0
	}
	d, err := time.ParseDuration(*c.PointTimeout)
	if err != nil {
		return 0
	}
	return d
}

// GetCalibration returns the session options.
func (c *Config) GetCalibration() calibration.Options {
	o := calibration.DefaultOptions()
	if c.SamplesPerPoint != nil {
		o.SamplesPerPoint = *c.SamplesPerPoint
	}
	if c.SettleFrames != nil {
		o.SettleFrames = *c.SettleFrames
	}
	o.PointTimeout = c.GetPointTimeout()
	return o
}

// GetMinClusterSamples returns the smallest cluster the solver fits.
func (c *Config) GetMinClusterSamples() int {
	if c.MinClusterSamples == nil {
		return calibration.DefaultMinSamples
	}
	return *c.MinClusterSamples
}

func (c *Config) GetCameraID() int {
	if c.CameraID == nil {
		return 0
	}
	return *c.CameraID
}

// GetCameraSize returns the requested capture resolution.
func (c *Config) GetCameraSize() (width, height int) {
	width, height = 640, 480
	if c.CameraWidth != nil {
		width = *c.CameraWidth
	}
	if c.CameraHeight != nil {
		height = *c.CameraHeight
	}
	return width, height
}

// GetIdleFPS is the capture rate while no face is tracked.
func (c *Config) GetIdleFPS() int {
	if c.IdleFPS == nil {
		return 5
	}
	return *c.IdleFPS
}

// GetActiveFPS is the capture rate while a face is tracked.
func (c *Config) GetActiveFPS() int {
	if c.ActiveFPS == nil {
		return 30
	}
	return *c.ActiveFPS
}

// GetMotionThreshold is the percentage of changed pixels that wakes the
// tracker from idle.
func (c *Config) GetMotionThreshold() float64 {
	if c.MotionThreshold == nil {
		return 1.0
	}
	return *c.MotionThreshold
}

func (c *Config) GetListenAddr() string {
	if c.ListenAddr == nil || *c.ListenAddr == "" {
		return "127.0.0.1:8080"
	}
	return *c.ListenAddr
}

// GetDataDir returns the directory holding the database, ~/.drishti by
// default.
func (c *Config) GetDataDir() string {
	if c.DataDir != nil && *c.DataDir != "" {
		return *c.DataDir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".drishti"
	}
	return filepath.Join(home, ".drishti")
}

// GetDatabasePath returns the SQLite file inside the data directory.
func (c *Config) GetDatabasePath() string {
	return filepath.Join(c.GetDataDir(), "drishti.db")
}

func (c *Config) GetPluginDir() string {
	if c.PluginDir != nil && *c.PluginDir != "" {
		return *c.PluginDir
	}
	return filepath.Join(c.GetDataDir(), "plugins")
}

// GetRestoreCalibration reports whether startup reloads the latest
// completed calibration run. Off unless the file turns it on.
func (c *Config) GetRestoreCalibration() bool {
	return c.RestoreCalibration != nil && *c.RestoreCalibration
}

// GetCursorPlugin names the plugin that receives calibrated points. Empty
// disables cursor control.
func (c *Config) GetCursorPlugin() string {
	if c.CursorPlugin == nil {
		return "cursor"
	}
	return *c.CursorPlugin
}

func (c *Config) GetCursorRateHz() float64 {
	if c.CursorRateHz == nil {
		return 10
	}
	return *c.CursorRateHz
}

// GetMinConfidence is the confidence below which points are not forwarded
// to the cursor.
func (c *Config) GetMinConfidence() float64 {
	if c.MinConfidence == nil {
		return 0.3
	}
	return *c.MinConfidence
}

func (c *Config) GetLogLevel() string {
	if c.LogLevel == nil || *c.LogLevel == "" {
		return "info"
	}
	return *c.LogLevel
}
