package handlers

import (
	"net/http"

	"github.com/lcalzada-xor/tagap/internal/core/domain"
	"github.com/lcalzada-xor/tagap/internal/core/ports"
)

const stationHistoryLimit = 100

// StationLister is the read side of the connected-station table.
type StationLister interface {
	List() []domain.Station
}

// StationHandler serves the station table and its event history.
type StationHandler struct {
	Stations StationLister
	Storage  ports.Storage
}

// NewStationHandler creates a new StationHandler. storage may be nil.
func NewStationHandler(stations StationLister, storage ports.Storage) *StationHandler {
	return &StationHandler{Stations: stations, Storage: storage}
}

type stationsResponse struct {
	Connected []domain.Station      `json:"connected"`
	Events    []domain.StationEvent `json:"events,omitempty"`
}

// HandleList returns connected stations and, with persistence, recent events.
func (h *StationHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	resp := stationsResponse{Connected: h.Stations.List()}
	if resp.Connected == nil {
		resp.Connected = []domain.Station{}
	}

	if h.Storage != nil {
		events, err := h.Storage.ListStationEvents(r.Context(), stationHistoryLimit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to list station events")
			return
		}
		resp.Events = events
	}
	writeJSON(w, http.StatusOK, resp)
}
