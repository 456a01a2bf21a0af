package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/starford/pathgraph/internal/apperr"
	"github.com/starford/pathgraph/internal/buildservice"
)

// Builds is the build service as seen by the API.
type Builds interface {
	Latest() (buildservice.Status, error)
	History(limit int) ([]buildservice.Status, error)
	Trigger(trigger string) error
}

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 200
)

// TriggerResponse acknowledges a build request.
type TriggerResponse struct {
	Status string `json:"status"`
}

// Handler holds API route handlers.
type Handler struct {
	builds Builds
}

// NewHandler creates a new Handler.
func NewHandler(builds Builds) *Handler {
	return &Handler{builds: builds}
}

// LatestBuild handles GET /api/builds/latest.
func (h *Handler) LatestBuild(w http.ResponseWriter, _ *http.Request) {
	st, err := h.builds.Latest()
	if errors.Is(err, apperr.ErrNoBuild) {
		writeJSON(w, http.StatusNotFound, errorBody("no build has run yet"))
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// ListBuilds handles GET /api/builds?limit=N, newest first.
func (h *Handler) ListBuilds(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxHistoryLimit {
			writeJSON(w, http.StatusBadRequest, errorBody("limit must be between 1 and 200"))
			return
		}
		limit = n
	}
	hist, err := h.builds.History(limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, hist)
}

// TriggerBuild handles POST /api/builds. The build runs in the background;
// progress is streamed on /api/events.
func (h *Handler) TriggerBuild(w http.ResponseWriter, _ *http.Request) {
	err := h.builds.Trigger("api")
	if errors.Is(err, apperr.ErrBuildInProgress) {
		writeJSON(w, http.StatusConflict, errorBody("a build is already running"))
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusAccepted, TriggerResponse{Status: "accepted"})
}
