package domain

import "strconv"

// DeviceID is the small positive identifier assigned to a known peer device.
type DeviceID int

// UnknownDevice is returned for addresses that are not registered.
const UnknownDevice DeviceID = 0

// IsKnown reports whether the id refers to a registered device.
func (id DeviceID) IsKnown() bool {
	return id != UnknownDevice
}

func (id DeviceID) String() string {
	return strconv.Itoa(int(id))
}

// KnownDevice pairs a registered hardware address with its device id.
type KnownDevice struct {
	Address HardwareAddress `json:"mac"`
	ID      DeviceID        `json:"id"`
	Label   string          `json:"label,omitempty"`
}

// DisplayName returns the label, or "Device N" when none is set.
func (d KnownDevice) DisplayName() string {
	if d.Label != "" {
		return d.Label
	}
	return "Device " + d.ID.String()
}
