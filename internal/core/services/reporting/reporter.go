package reporting

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"github.com/lcalzada-xor/tagap/internal/core/domain"
	"github.com/lcalzada-xor/tagap/internal/core/ports"
	"github.com/lcalzada-xor/tagap/internal/telemetry"
)

// Reporter turns tagged frames into capture records and publishes them to
// every registered sink. Reporting is fire-and-forget: a failing sink never
// affects the others or the caller.
type Reporter struct {
	directory ports.DeviceDirectory
	vendors   ports.VendorLookup
	logger    *slog.Logger

	mu    sync.RWMutex
	sinks []namedSink

	now   func() time.Time
	newID func() string
}

type namedSink struct {
	name string
	sink ports.CaptureSink
}

// NewReporter creates a Reporter. vendors may be nil.
func NewReporter(directory ports.DeviceDirectory, vendors ports.VendorLookup, logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{
		directory: directory,
		vendors:   vendors,
		logger:    logger,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// AddSink registers a capture sink under a name used in logs and metrics.
func (r *Reporter) AddSink(name string, sink ports.CaptureSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks = append(r.sinks, namedSink{name: name, sink: sink})
}

// Report builds the capture record for c and publishes it.
func (r *Reporter) Report(c domain.ClassifiedFrame, samples []int) {
	capture := r.Build(c, samples)

	r.logger.Info("tagged frame",
		"device", int(capture.Device),
		"label", capture.Label,
		"rssi", capture.RSSI,
		"noise_floor", capture.NoiseFloor,
		"src", capture.Source,
		"dst", capture.Destination,
		"samples", capture.Samples,
	)

	r.mu.RLock()
	sinks := r.sinks
	r.mu.RUnlock()

	for _, s := range sinks {
		r.publish(s, capture)
	}
}

// Build assembles the capture record without publishing it.
func (r *Reporter) Build(c domain.ClassifiedFrame, samples []int) domain.Capture {
	frame := c.Frame

	src, _ := frame.Slice(domain.SourceOffset, domain.HardwareAddressLen)
	dst, _ := frame.Slice(domain.DestinationOffset, domain.HardwareAddressLen)

	ts := frame.Timestamp
	if ts.IsZero() {
		ts = r.now()
	}

	label := ""
	if r.directory != nil {
		label = r.directory.Label(c.Device)
	}
	if label == "" {
		label = "Device " + c.Device.String()
	}

	if samples == nil {
		samples = []int{}
	}

	capture := domain.Capture{
		ID:          r.newID(),
		Device:      c.Device,
		Label:       label,
		RSSI:        frame.RSSI,
		NoiseFloor:  frame.NoiseFloor,
		Channel:     frame.Channel,
		Source:      domain.FormatHardwareAddress(src),
		Destination: domain.FormatHardwareAddress(dst),
		Samples:     samples,
		Summary:     Summarize(samples),
		Timestamp:   ts,
		Frame:       append([]byte(nil), frame.Payload[:frame.Len()]...),
	}

	if r.vendors != nil {
		ctx := context.Background()
		capture.SourceVendor = r.vendors.Vendor(ctx, c.Source)
		capture.DestinationVendor = r.vendors.Vendor(ctx, c.Destination)
	}

	return capture
}

func (r *Reporter) publish(s namedSink, capture domain.Capture) {
	defer func() {
		if rec := recover(); rec != nil {
			telemetry.CapturesDropped.WithLabelValues(s.name).Inc()
			r.logger.Error("capture sink panicked", "sink", s.name, "panic", fmt.Sprint(rec))
		}
	}()
	s.sink.Publish(capture)
}

// Summarize computes descriptive statistics of a sample sequence. StdDev is
// zero for fewer than two samples.
func Summarize(samples []int) domain.SampleSummary {
	sum := domain.SampleSummary{Count: len(samples)}
	if len(samples) == 0 {
		return sum
	}

	xs := make([]float64, len(samples))
	sum.Min, sum.Max = samples[0], samples[0]
	for i, s := range samples {
		xs[i] = float64(s)
		sum.Min = min(sum.Min, s)
		sum.Max = max(sum.Max, s)
	}

	if len(xs) < 2 {
		sum.Mean = xs[0]
		return sum
	}

	mean, std := stat.MeanStdDev(xs, nil)
	sum.Mean = mean
	if !math.IsNaN(std) {
		sum.StdDev = std
	}
	return sum
}
