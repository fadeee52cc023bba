// Package collector forwards capture records to a remote collector over a
// gRPC client stream and implements the receiving side.
package collector

import (
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/lcalzada-xor/tagap/internal/core/domain"
	"github.com/lcalzada-xor/tagap/internal/core/services/reporting"
)

// ErrMalformedCapture is returned when a forwarded message lacks required fields.
var ErrMalformedCapture = errors.New("malformed capture message")

// CaptureToStruct encodes a capture as a protobuf Struct.
func CaptureToStruct(c domain.Capture) (*structpb.Struct, error) {
	samples := make([]any, len(c.Samples))
	for i, s := range c.Samples {
		samples[i] = s
	}

	fields := map[string]any{
		"id":          c.ID,
		"device":      int(c.Device),
		"label":       c.Label,
		"rssi":        c.RSSI,
		"noise_floor": c.NoiseFloor,
		"channel":     c.Channel,
		"source":      c.Source,
		"destination": c.Destination,
		"samples":     samples,
		"timestamp":   c.Timestamp.UTC().Format(time.RFC3339Nano),
	}
	if c.SourceVendor != "" {
		fields["source_vendor"] = c.SourceVendor
	}
	if c.DestinationVendor != "" {
		fields["destination_vendor"] = c.DestinationVendor
	}
	if len(c.Frame) > 0 {
		fields["frame"] = base64.StdEncoding.EncodeToString(c.Frame)
	}

	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("encode capture %s: %w", c.ID, err)
	}
	return s, nil
}

// CaptureFromStruct decodes a Struct produced by CaptureToStruct.
func CaptureFromStruct(s *structpb.Struct) (domain.Capture, error) {
	f := s.GetFields()

	id := f["id"].GetStringValue()
	device := int(f["device"].GetNumberValue())
	if id == "" || device <= 0 {
		return domain.Capture{}, fmt.Errorf("%w: id=%q device=%d", ErrMalformedCapture, id, device)
	}

	c := domain.Capture{
		ID:                id,
		Device:            domain.DeviceID(device),
		Label:             f["label"].GetStringValue(),
		RSSI:              int(f["rssi"].GetNumberValue()),
		NoiseFloor:        int(f["noise_floor"].GetNumberValue()),
		Channel:           int(f["channel"].GetNumberValue()),
		Source:            f["source"].GetStringValue(),
		Destination:       f["destination"].GetStringValue(),
		SourceVendor:      f["source_vendor"].GetStringValue(),
		DestinationVendor: f["destination_vendor"].GetStringValue(),
		Samples:           []int{},
	}

	for _, v := range f["samples"].GetListValue().GetValues() {
		c.Samples = append(c.Samples, int(v.GetNumberValue()))
	}
	c.Summary = reporting.Summarize(c.Samples)

	if ts := f["timestamp"].GetStringValue(); ts != "" {
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return domain.Capture{}, fmt.Errorf("%w: timestamp: %v", ErrMalformedCapture, err)
		}
		c.Timestamp = t
	}

	if raw := f["frame"].GetStringValue(); raw != "" {
		frame, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return domain.Capture{}, fmt.Errorf("%w: frame: %v", ErrMalformedCapture, err)
		}
		c.Frame = frame
	}

	return c, nil
}
