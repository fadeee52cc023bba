package domain

import "time"

// SampleSummary holds descriptive statistics of one decoded sample sequence.
type SampleSummary struct {
	Count  int     `json:"count"`
	Min    int     `json:"min"`
	Max    int     `json:"max"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
}

// Capture is the record emitted for every tagged frame.
type Capture struct {
	ID                string        `json:"id"`
	Device            DeviceID      `json:"device"`
	Label             string        `json:"label"`
	RSSI              int           `json:"rssi"`
	NoiseFloor        int           `json:"noise_floor"`
	Channel           int           `json:"channel,omitempty"`
	Source            string        `json:"source"`
	Destination       string        `json:"destination"`
	SourceVendor      string        `json:"source_vendor,omitempty"`
	DestinationVendor string        `json:"destination_vendor,omitempty"`
	Samples           []int         `json:"samples"`
	Summary           SampleSummary `json:"summary"`
	Timestamp         time.Time     `json:"timestamp"`

	// Frame is the raw over-the-air frame, kept for pcap recording.
	Frame []byte `json:"-"`
}

// CaptureFilter narrows capture queries.
type CaptureFilter struct {
	Device DeviceID
	Since  time.Time
	Limit  int
}

// DeviceCaptureStats aggregates captures per device.
type DeviceCaptureStats struct {
	Device   DeviceID  `json:"device"`
	Count    int64     `json:"count"`
	AvgRSSI  float64   `json:"avg_rssi"`
	LastSeen time.Time `json:"last_seen"`
}

// CaptureSummary is the input of the PDF export.
type CaptureSummary struct {
	GeneratedAt time.Time            `json:"generated_at"`
	Devices     []KnownDevice        `json:"devices"`
	Stats       []DeviceCaptureStats `json:"stats"`
	Recent      []Capture            `json:"recent"`
}

// PipelineStats is a snapshot of the frame pipeline counters.
type PipelineStats struct {
	Received  uint64 `json:"received"`
	Ignored   uint64 `json:"ignored"`
	Unknown   uint64 `json:"unknown"`
	Untagged  uint64 `json:"untagged"`
	Malformed uint64 `json:"malformed"`
	Tagged    uint64 `json:"tagged"`
}
