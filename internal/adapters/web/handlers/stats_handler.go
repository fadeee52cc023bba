package handlers

import (
	"net/http"

	"github.com/lcalzada-xor/tagap/internal/core/domain"
	"github.com/lcalzada-xor/tagap/internal/core/ports"
)

// PipelineStatsProvider exposes the frame pipeline counters.
type PipelineStatsProvider interface {
	Stats() domain.PipelineStats
}

// StationCounter reports the connected-station count.
type StationCounter interface {
	Count() int
}

// StatsHandler serves runtime and stored statistics.
type StatsHandler struct {
	Pipeline PipelineStatsProvider
	Stations StationCounter
	Storage  ports.Storage
}

// NewStatsHandler creates a new StatsHandler. storage may be nil.
func NewStatsHandler(pipeline PipelineStatsProvider, stations StationCounter, storage ports.Storage) *StatsHandler {
	return &StatsHandler{Pipeline: pipeline, Stations: stations, Storage: storage}
}

type statsResponse struct {
	Pipeline domain.PipelineStats        `json:"pipeline"`
	Stations int                         `json:"stations"`
	Devices  []domain.DeviceCaptureStats `json:"devices,omitempty"`
}

func (h *StatsHandler) HandleGetStats(w http.ResponseWriter, r *http.Request) {
	resp := statsResponse{
		Pipeline: h.Pipeline.Stats(),
		Stations: h.Stations.Count(),
	}
	if h.Storage != nil {
		stats, err := h.Storage.CaptureStats(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to compute capture stats")
			return
		}
		resp.Devices = stats
	}
	writeJSON(w, http.StatusOK, resp)
}
