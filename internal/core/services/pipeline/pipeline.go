package pipeline

import (
	"context"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"

	"github.com/lcalzada-xor/tagap/internal/core/domain"
	"github.com/lcalzada-xor/tagap/internal/core/ports"
	"github.com/lcalzada-xor/tagap/internal/telemetry"
)

// Reporter receives every tagged frame together with its decoded samples.
type Reporter interface {
	Report(c domain.ClassifiedFrame, samples []int)
}

// Pipeline is the ports.FrameSink invoked once per captured frame. It keeps
// no per-frame state between calls and is safe for concurrent use.
type Pipeline struct {
	resolver ports.DeviceResolver
	reporter Reporter
	logger   *slog.Logger

	received  atomic.Uint64
	ignored   atomic.Uint64
	unknown   atomic.Uint64
	untagged  atomic.Uint64
	malformed atomic.Uint64
	tagged    atomic.Uint64
}

// New creates a Pipeline. A nil logger falls back to slog.Default().
func New(resolver ports.DeviceResolver, reporter Reporter, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		resolver: resolver,
		reporter: reporter,
		logger:   logger,
	}
}

var _ ports.FrameSink = (*Pipeline)(nil)

// HandleFrame classifies the frame and, when tagged, decodes and reports it.
// Frames that are not data frames are counted and dropped.
func (p *Pipeline) HandleFrame(frame domain.CapturedFrame, kind domain.FrameKind) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Recovered from panic in frame pipeline", "panic", r)
		}
	}()

	p.received.Add(1)
	telemetry.FramesReceived.WithLabelValues(kind.String()).Inc()

	if kind != domain.FrameKindData {
		p.ignored.Add(1)
		return
	}

	c := Classify(p.resolver, frame, kind)
	if !c.Tagged {
		p.countUntagged(c)
		return
	}

	p.tagged.Add(1)
	telemetry.FramesTagged.WithLabelValues(c.Device.String()).Inc()

	if p.logger.Enabled(context.Background(), slog.LevelDebug) {
		p.logger.Debug("tagged frame dump", "device", int(c.Device), "len", frame.Len(), "hex", hex.EncodeToString(frame.Payload[:frame.Len()]))
	}

	if p.reporter == nil {
		return
	}
	// No-op unless a tracer provider was installed with -trace.
	_, span := telemetry.Tracer().Start(context.Background(), "pipeline.report")
	defer span.End()
	samples := Decode(c)
	span.SetAttributes(
		attribute.Int("tagap.device", int(c.Device)),
		attribute.Int("tagap.samples", len(samples)),
	)
	p.reporter.Report(c, samples)
}

func (p *Pipeline) countUntagged(c domain.ClassifiedFrame) {
	switch {
	case c.Frame.Len() <= domain.MarkerOffset:
		p.malformed.Add(1)
		telemetry.FramesMalformed.Inc()
	case !c.Device.IsKnown():
		p.unknown.Add(1)
		telemetry.FramesUnknown.Inc()
	default:
		p.untagged.Add(1)
	}
}

// Stats returns a snapshot of the counters.
func (p *Pipeline) Stats() domain.PipelineStats {
	return domain.PipelineStats{
		Received:  p.received.Load(),
		Ignored:   p.ignored.Load(),
		Unknown:   p.unknown.Load(),
		Untagged:  p.untagged.Load(),
		Malformed: p.malformed.Load(),
		Tagged:    p.tagged.Load(),
	}
}
