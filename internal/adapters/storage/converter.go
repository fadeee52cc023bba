package storage

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/lcalzada-xor/tagap/internal/core/domain"
)

// toCaptureModel converts a capture to its database row. Samples are
// stored as a CBOR array.
func toCaptureModel(c domain.Capture) (CaptureModel, error) {
	samples, err := cbor.Marshal(c.Samples)
	if err != nil {
		return CaptureModel{}, fmt.Errorf("encode samples of capture %s: %w", c.ID, err)
	}

	return CaptureModel{
		ID:                c.ID,
		Device:            int(c.Device),
		Label:             c.Label,
		RSSI:              c.RSSI,
		NoiseFloor:        c.NoiseFloor,
		Channel:           c.Channel,
		Source:            c.Source,
		Destination:       c.Destination,
		SourceVendor:      c.SourceVendor,
		DestinationVendor: c.DestinationVendor,
		Samples:           samples,
		SampleCount:       c.Summary.Count,
		SampleMin:         c.Summary.Min,
		SampleMax:         c.Summary.Max,
		SampleMean:        c.Summary.Mean,
		SampleStdDev:      c.Summary.StdDev,
		Frame:             c.Frame,
		Timestamp:         c.Timestamp.UTC(),
	}, nil
}

// toCaptureDomain converts a database row back to a capture.
func toCaptureDomain(m CaptureModel) (*domain.Capture, error) {
	samples := []int{}
	if len(m.Samples) > 0 {
		if err := cbor.Unmarshal(m.Samples, &samples); err != nil {
			return nil, fmt.Errorf("decode samples of capture %s: %w", m.ID, err)
		}
		if samples == nil {
			samples = []int{}
		}
	}

	return &domain.Capture{
		ID:                m.ID,
		Device:            domain.DeviceID(m.Device),
		Label:             m.Label,
		RSSI:              m.RSSI,
		NoiseFloor:        m.NoiseFloor,
		Channel:           m.Channel,
		Source:            m.Source,
		Destination:       m.Destination,
		SourceVendor:      m.SourceVendor,
		DestinationVendor: m.DestinationVendor,
		Samples:           samples,
		Summary: domain.SampleSummary{
			Count:  m.SampleCount,
			Min:    m.SampleMin,
			Max:    m.SampleMax,
			Mean:   m.SampleMean,
			StdDev: m.SampleStdDev,
		},
		Timestamp: m.Timestamp,
		Frame:     m.Frame,
	}, nil
}

func toStationEventModel(ev domain.StationEvent) StationEventModel {
	return StationEventModel{
		Type:      string(ev.Type),
		MAC:       ev.Address.String(),
		AID:       ev.AID,
		Interface: ev.Interface,
		Timestamp: ev.Timestamp.UTC(),
	}
}

// toStationEventDomain ignores unparsable addresses, leaving the zero address.
func toStationEventDomain(m StationEventModel) domain.StationEvent {
	addr, _ := domain.ParseHardwareAddress(m.MAC)
	return domain.StationEvent{
		Type:      domain.StationEventType(m.Type),
		Address:   addr,
		AID:       m.AID,
		Interface: m.Interface,
		Timestamp: m.Timestamp,
	}
}
