// Package stations tracks stations associating with the access point.
package stations

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/lcalzada-xor/tagap/internal/core/domain"
	"github.com/lcalzada-xor/tagap/internal/core/ports"
	"github.com/lcalzada-xor/tagap/internal/syncutil"
	"github.com/lcalzada-xor/tagap/internal/telemetry"
)

// Service logs join/leave events and keeps the connected-station table.
// It is the ports.StationEventSink fed by the radio manager.
type Service struct {
	logger  *slog.Logger
	vendors ports.VendorLookup

	mu       syncutil.RWMutex
	stations map[domain.HardwareAddress]domain.Station
	sinks    []ports.StationEventSink

	now func() time.Time
}

// NewService creates the station service. Records are written through a
// child of logger tagged stream=stations. vendors may be nil.
func NewService(logger *slog.Logger, vendors ports.VendorLookup) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		logger:   logger.With("stream", "stations"),
		vendors:  vendors,
		stations: make(map[domain.HardwareAddress]domain.Station),
		now:      time.Now,
	}
}

var _ ports.StationEventSink = (*Service)(nil)

// AddSink registers a downstream consumer of station events.
func (s *Service) AddSink(sink ports.StationEventSink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sinks = append(s.sinks, sink)
}

// HandleStationEvent records a join or leave and forwards it to the sinks.
func (s *Service) HandleStationEvent(ev domain.StationEvent) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = s.now()
	}

	switch ev.Type {
	case domain.StationJoined:
		s.logger.Info("station join", "mac", ev.Address.String(), "aid", ev.AID, "interface", ev.Interface)
		st := domain.Station{Address: ev.Address, AID: ev.AID, ConnectedAt: ev.Timestamp}
		if s.vendors != nil {
			st.Vendor = s.vendors.Vendor(context.Background(), ev.Address)
		}
		s.mu.Lock()
		s.stations[ev.Address] = st
		s.mu.Unlock()
	case domain.StationLeft:
		s.mu.Lock()
		if prev, ok := s.stations[ev.Address]; ok && ev.AID == 0 {
			ev.AID = prev.AID
		}
		delete(s.stations, ev.Address)
		s.mu.Unlock()
		s.logger.Info("station leave", "mac", ev.Address.String(), "aid", ev.AID, "interface", ev.Interface)
	default:
		s.logger.Warn("Unknown station event", "type", string(ev.Type), "mac", ev.Address.String())
		return
	}

	telemetry.StationEvents.WithLabelValues(string(ev.Type)).Inc()

	s.mu.RLock()
	sinks := s.sinks
	s.mu.RUnlock()
	for _, sink := range sinks {
		s.forward(sink, ev)
	}
}

func (s *Service) forward(sink ports.StationEventSink, ev domain.StationEvent) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("station sink panicked", "sink", fmt.Sprintf("%T", sink), "panic", fmt.Sprint(r))
		}
	}()
	sink.HandleStationEvent(ev)
}

// List returns the connected stations ordered by AID.
func (s *Service) List() []domain.Station {
	s.mu.RLock()
	out := make([]domain.Station, 0, len(s.stations))
	for _, st := range s.stations {
		out = append(out, st)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].AID != out[j].AID {
			return out[i].AID < out[j].AID
		}
		return out[i].Address.String() < out[j].Address.String()
	})
	return out
}

// Count returns the number of connected stations.
func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.stations)
}
