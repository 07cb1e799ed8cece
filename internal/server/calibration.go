package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ayusman/drishti/internal/log"
	"github.com/ayusman/drishti/internal/store"
)

// calibrationHandler serves /api/calibration.
//
//	GET    status and current target
//	POST   start a new session
//	DELETE abort the running session
type calibrationHandler struct {
	ctl Controller
}

func (h *calibrationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodPost:
		h.ctl.StartCalibration()
		writeJSON(w, http.StatusAccepted, h.ctl.CalibrationStatus())
		return
	case http.MethodDelete:
		h.ctl.AbortCalibration()
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, h.ctl.CalibrationStatus())
}

type trackingState struct {
	Enabled bool `json:"enabled"`
}

// trackingHandler serves /api/tracking, the cursor output toggle.
type trackingHandler struct {
	ctl Controller
}

func (h *trackingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodPut:
		var req trackingState
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := h.ctl.SetEnabled(req.Enabled); err != nil {
			log.Error("failed to toggle tracking", "err", err)
			writeError(w, http.StatusInternalServerError, "failed to save setting")
			return
		}
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, trackingState{Enabled: h.ctl.Enabled()})
}

const (
	defaultRunLimit = 20
	maxRunLimit     = 500
)

type listRunsResponse struct {
	Runs  []*store.Run `json:"runs"`
	Count int          `json:"count"`
}

// runsHandler serves /api/calibration/runs and /api/calibration/runs/{id}.
type runsHandler struct {
	runs *store.RunRepository
}

func (h *runsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/calibration/runs"), "/")

	switch {
	case id == "" && r.Method == http.MethodGet:
		h.list(w, r)
	case id != "" && r.Method == http.MethodGet:
		h.get(w, id)
	case id != "" && r.Method == http.MethodDelete:
		h.delete(w, id)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *runsHandler) list(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxRunLimit)
	}

	runs, err := h.runs.List(limit)
	if err != nil {
		log.Error("failed to list calibration runs", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []*store.Run{}
	}
	writeJSON(w, http.StatusOK, listRunsResponse{Runs: runs, Count: len(runs)})
}

func (h *runsHandler) get(w http.ResponseWriter, id string) {
	run, err := h.runs.GetByID(id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		log.Error("failed to get calibration run", "id", id, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to get run")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (h *runsHandler) delete(w http.ResponseWriter, id string) {
	err := h.runs.Delete(id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		log.Error("failed to delete calibration run", "id", id, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to delete run")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
