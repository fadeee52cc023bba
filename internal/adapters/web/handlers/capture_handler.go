package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/lcalzada-xor/tagap/internal/core/domain"
	"github.com/lcalzada-xor/tagap/internal/core/ports"
)

const (
	defaultCaptureLimit = 50
	maxCaptureLimit     = 1000
)

// CaptureHandler serves stored capture records.
type CaptureHandler struct {
	Storage ports.Storage
}

// NewCaptureHandler creates a new CaptureHandler. storage may be nil when
// persistence is disabled.
func NewCaptureHandler(storage ports.Storage) *CaptureHandler {
	return &CaptureHandler{Storage: storage}
}

// HandleList returns captures newest first, filtered by the device, since
// (RFC 3339) and limit query parameters.
func (h *CaptureHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	if h.Storage == nil {
		writeError(w, http.StatusServiceUnavailable, "persistence disabled")
		return
	}

	filter, err := ParseCaptureFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	captures, err := h.Storage.ListCaptures(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list captures")
		return
	}
	if captures == nil {
		captures = []domain.Capture{}
	}
	writeJSON(w, http.StatusOK, captures)
}

// HandleGet returns one capture by id.
func (h *CaptureHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	if h.Storage == nil {
		writeError(w, http.StatusServiceUnavailable, "persistence disabled")
		return
	}

	id := mux.Vars(r)["id"]
	capture, err := h.Storage.GetCapture(r.Context(), id)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "capture not found")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "failed to load capture")
		return
	}
	writeJSON(w, http.StatusOK, capture)
}

// ParseCaptureFilter reads the capture query parameters.
func ParseCaptureFilter(r *http.Request) (domain.CaptureFilter, error) {
	q := r.URL.Query()
	filter := domain.CaptureFilter{Limit: defaultCaptureLimit}

	if v := q.Get("device"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil || id <= 0 {
			return filter, errors.New("invalid device")
		}
		filter.Device = domain.DeviceID(id)
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return filter, errors.New("invalid limit")
		}
		filter.Limit = min(n, maxCaptureLimit)
	}
	if v := q.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, errors.New("invalid since, want RFC 3339")
		}
		filter.Since = since
	}
	return filter, nil
}
