// Package server exposes the tracker over HTTP: calibration control,
// recorded runs, a live gaze websocket and an MJPEG camera preview.
package server

import (
	"net/http"
	"time"

	"github.com/ayusman/drishti/internal/calibration"
	"github.com/ayusman/drishti/internal/capture"
	"github.com/ayusman/drishti/internal/store"
)

// Controller is the part of the tracker the API drives.
type Controller interface {
	StartCalibration()
	AbortCalibration()
	CalibrationStatus() calibration.Status
	Enabled() bool
	SetEnabled(enabled bool) error
}

// Config holds the server dependencies. Routes whose dependency is nil
// are not registered.
type Config struct {
	StaticDir  string
	Store      *store.Store
	Controller Controller
	Frames     *capture.JPEGBuffer
	Hub        *Hub
	StreamFPS  int
}

// Server is the drishti HTTP API.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
}

// New creates a Server for config.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if c := s.config.Controller; c != nil {
		s.mux.Handle("/api/calibration", &calibrationHandler{ctl: c})
		s.mux.Handle("/api/tracking", &trackingHandler{ctl: c})
	}
	if s.config.Store != nil {
		runs := &runsHandler{runs: s.config.Store.Runs()}
		s.mux.Handle("/api/calibration/runs", runs)
		s.mux.Handle("/api/calibration/runs/", runs)
	}
	if s.config.Hub != nil {
		s.mux.Handle("/api/gaze", s.config.Hub)
	}
	if s.config.Frames != nil {
		s.mux.Handle("/api/stream", NewStreamHandler(s.config.Frames, s.config.StreamFPS))
	}
	if s.config.StaticDir != "" {
		s.mux.Handle("/", http.FileServer(http.Dir(s.config.StaticDir)))
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.start).Round(time.Second).String(),
	})
}

// ListenAndServe serves the API on addr until srv is shut down.
func (s *Server) ListenAndServe(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}
