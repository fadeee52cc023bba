package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// FramesReceived counts frames delivered to the pipeline, by frame kind
	FramesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tagap",
			Name:      "frames_received_total",
			Help:      "Total number of frames delivered to the pipeline",
		},
		[]string{"kind"},
	)

	// FramesTagged counts tagged frames, by device id
	FramesTagged = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tagap",
			Name:      "frames_tagged_total",
			Help:      "Total number of tagged frames from known devices",
		},
		[]string{"device"},
	)

	// FramesUnknown counts data frames whose source is not registered
	FramesUnknown = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tagap",
			Name:      "frames_unknown_total",
			Help:      "Total number of data frames from unregistered sources",
		},
	)

	// FramesMalformed counts frames too short to hold the fields the classifier reads
	FramesMalformed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tagap",
			Name:      "frames_malformed_total",
			Help:      "Total number of frames shorter than the tag layout",
		},
	)

	// CapturesDropped counts capture records a sink could not accept
	CapturesDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tagap",
			Name:      "captures_dropped_total",
			Help:      "Total number of capture records dropped by a sink",
		},
		[]string{"sink"},
	)

	// StationEvents counts station join/leave notifications
	StationEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tagap",
			Name:      "station_events_total",
			Help:      "Total number of station association events",
		},
		[]string{"event"},
	)

	// Ensure metrics are only registered once
	once sync.Once
)

// InitMetrics registers all metrics with the global Prometheus registry.
// It is idempotent.
func InitMetrics() {
	once.Do(func() {
		// Errors are ignored so a second registry user cannot panic us
		prometheus.DefaultRegisterer.Register(FramesReceived)
		prometheus.DefaultRegisterer.Register(FramesTagged)
		prometheus.DefaultRegisterer.Register(FramesUnknown)
		prometheus.DefaultRegisterer.Register(FramesMalformed)
		prometheus.DefaultRegisterer.Register(CapturesDropped)
		prometheus.DefaultRegisterer.Register(StationEvents)
	})
}
