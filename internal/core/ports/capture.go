package ports

import (
	"context"

	"github.com/lcalzada-xor/tagap/internal/core/domain"
)

// FrameSink receives every frame captured by the radio. It is the only
// capability a frame source holds; implementations must not block.
type FrameSink interface {
	HandleFrame(frame domain.CapturedFrame, kind domain.FrameKind)
}

// FrameSource delivers captured frames to a sink until ctx is cancelled or
// the source is exhausted.
type FrameSource interface {
	Run(ctx context.Context, sink FrameSink) error
	Close() error
}

// DeviceResolver maps a hardware address to a known device id (0 if unknown).
type DeviceResolver interface {
	Resolve(addr domain.HardwareAddress) domain.DeviceID
}

// DeviceDirectory is the read side of the known-device registry.
type DeviceDirectory interface {
	DeviceResolver
	Label(id domain.DeviceID) string
	Devices() []domain.KnownDevice
}

// CaptureSink consumes capture records. Publish is best-effort and must
// return without waiting on I/O.
type CaptureSink interface {
	Publish(capture domain.Capture)
}

// StationEventSink consumes station join/leave notifications.
type StationEventSink interface {
	HandleStationEvent(ev domain.StationEvent)
}

// VendorLookup resolves the manufacturer of an address. An empty string
// means unknown.
type VendorLookup interface {
	Vendor(ctx context.Context, addr domain.HardwareAddress) string
}
