package handlers

import (
	"net/http"

	"github.com/lcalzada-xor/tagap/internal/core/domain"
	"github.com/lcalzada-xor/tagap/internal/core/ports"
)

// DeviceHandler lists the known-device registry.
type DeviceHandler struct {
	Directory ports.DeviceDirectory
}

// NewDeviceHandler creates a new DeviceHandler
func NewDeviceHandler(directory ports.DeviceDirectory) *DeviceHandler {
	return &DeviceHandler{Directory: directory}
}

type deviceView struct {
	ID      domain.DeviceID        `json:"id"`
	Address domain.HardwareAddress `json:"mac"`
	Label   string                 `json:"label"`
	OUI     string                 `json:"oui"`
}

// HandleList returns every registered device.
func (h *DeviceHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	devices := h.Directory.Devices()
	out := make([]deviceView, 0, len(devices))
	for _, d := range devices {
		out = append(out, deviceView{
			ID:      d.ID,
			Address: d.Address,
			Label:   d.DisplayName(),
			OUI:     d.Address.OUI(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}
