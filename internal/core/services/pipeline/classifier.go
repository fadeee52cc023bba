package pipeline

import (
	"github.com/lcalzada-xor/tagap/internal/core/domain"
	"github.com/lcalzada-xor/tagap/internal/core/ports"
)

// Classify resolves the frame source against the registry and decides
// whether the frame carries a tagged payload. A frame is tagged only when
// its source is known and the marker byte at offset 24 exists and equals
// domain.TagMarker. It never reads past frame.Len().
func Classify(resolver ports.DeviceResolver, frame domain.CapturedFrame, kind domain.FrameKind) domain.ClassifiedFrame {
	c := domain.ClassifiedFrame{
		Frame: frame,
		Kind:  kind,
	}

	c.Destination, _ = frame.Destination()

	src, ok := frame.Source()
	if !ok {
		return c
	}
	c.Source = src
	c.Device = resolver.Resolve(src)

	marker, ok := frame.Marker()
	c.Tagged = ok && c.Device.IsKnown() && marker == domain.TagMarker
	return c
}
