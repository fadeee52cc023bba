package handlers

import (
	"net/http"
	"strconv"
)

// PersistenceToggle switches capture persistence on and off at runtime.
type PersistenceToggle interface {
	IsEnabled() bool
	SetEnabled(enabled bool)
}

// ConfigHandler exposes runtime switches.
type ConfigHandler struct {
	Persistence PersistenceToggle
}

// NewConfigHandler creates a new ConfigHandler. persistence may be nil when
// no database is configured.
func NewConfigHandler(persistence PersistenceToggle) *ConfigHandler {
	return &ConfigHandler{Persistence: persistence}
}

type configResponse struct {
	PersistenceAvailable bool `json:"persistence_available"`
	PersistenceEnabled   bool `json:"persistence_enabled"`
}

// HandleGetConfig returns the current switches.
func (h *ConfigHandler) HandleGetConfig(w http.ResponseWriter, r *http.Request) {
	resp := configResponse{}
	if h.Persistence != nil {
		resp.PersistenceAvailable = true
		resp.PersistenceEnabled = h.Persistence.IsEnabled()
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleTogglePersistence sets persistence from the "enabled" query parameter.
func (h *ConfigHandler) HandleTogglePersistence(w http.ResponseWriter, r *http.Request) {
	if h.Persistence == nil {
		writeError(w, http.StatusServiceUnavailable, "persistence is not configured")
		return
	}

	enabled, err := strconv.ParseBool(r.URL.Query().Get("enabled"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "enabled must be true or false")
		return
	}
	h.Persistence.SetEnabled(enabled)

	writeJSON(w, http.StatusOK, map[string]any{"status": "persistence_updated", "enabled": enabled})
}
