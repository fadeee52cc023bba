package domain

import "time"

// StationEventType distinguishes association from disassociation.
type StationEventType string

const (
	StationJoined StationEventType = "join"
	StationLeft   StationEventType = "leave"
)

// StationEvent is a connection-state notification from the access point.
type StationEvent struct {
	Type      StationEventType `json:"type"`
	Address   HardwareAddress  `json:"mac"`
	AID       int              `json:"aid"`
	Interface string           `json:"interface,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// Station is an entry of the connected-station table.
type Station struct {
	Address     HardwareAddress `json:"mac"`
	AID         int             `json:"aid"`
	ConnectedAt time.Time       `json:"connected_at"`
	Vendor      string          `json:"vendor,omitempty"`
}
