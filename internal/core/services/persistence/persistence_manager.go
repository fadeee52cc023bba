package persistence

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lcalzada-xor/tagap/internal/core/domain"
	"github.com/lcalzada-xor/tagap/internal/core/ports"
	"github.com/lcalzada-xor/tagap/internal/telemetry"
)

const sinkName = "store"

// PersistenceManager handles background batch writing of captures and
// station events to storage. It never blocks the capture path: when the
// queue is full the record is dropped and counted.
type PersistenceManager struct {
	storage     ports.Storage
	captureChan chan domain.Capture
	stationChan chan domain.StationEvent
	batchSize   int
	interval    time.Duration
	enabled     bool
	mu          sync.RWMutex
	logger      *slog.Logger
	done        chan struct{}
}

// NewPersistenceManager creates a new manager.
func NewPersistenceManager(storage ports.Storage, bufferSize int, logger *slog.Logger) *PersistenceManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &PersistenceManager{
		storage:     storage,
		captureChan: make(chan domain.Capture, bufferSize),
		stationChan: make(chan domain.StationEvent, bufferSize),
		batchSize:   100,
		interval:    5 * time.Second,
		enabled:     true,
		logger:      logger,
		done:        make(chan struct{}),
	}
}

var (
	_ ports.CaptureSink      = (*PersistenceManager)(nil)
	_ ports.StationEventSink = (*PersistenceManager)(nil)
)

// Publish queues a capture for persistence if enabled.
func (p *PersistenceManager) Publish(capture domain.Capture) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.enabled {
		return
	}
	select {
	case p.captureChan <- capture:
	default:
		telemetry.CapturesDropped.WithLabelValues(sinkName).Inc()
	}
}

// HandleStationEvent queues a station event for persistence if enabled.
func (p *PersistenceManager) HandleStationEvent(ev domain.StationEvent) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.enabled {
		return
	}
	select {
	case p.stationChan <- ev:
	default:
		p.logger.Warn("Station event queue full, dropping event", "mac", ev.Address.String())
	}
}

// IsEnabled returns the current persistence status.
func (p *PersistenceManager) IsEnabled() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.enabled
}

// SetEnabled toggles the persistence logic.
func (p *PersistenceManager) SetEnabled(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.enabled = enabled
}

// Start begins the persistence loop. Pending captures are flushed when ctx
// is cancelled; Done is closed afterwards.
func (p *PersistenceManager) Start(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	buffer := make([]domain.Capture, 0, p.batchSize)

	go func() {
		defer close(p.done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				p.drain(&buffer)
				p.flushCaptures(buffer)
				return
			case c := <-p.captureChan:
				buffer = append(buffer, c)
				if len(buffer) >= p.batchSize {
					p.flushCaptures(buffer)
					buffer = buffer[:0]
				}
			case ev := <-p.stationChan:
				p.saveStationEvent(ev)
			case <-ticker.C:
				if len(buffer) > 0 {
					p.flushCaptures(buffer)
					buffer = buffer[:0]
				}
			}
		}
	}()
}

// Done is closed once the loop has exited and the final flush completed.
func (p *PersistenceManager) Done() <-chan struct{} {
	return p.done
}

func (p *PersistenceManager) drain(buffer *[]domain.Capture) {
	for {
		select {
		case c := <-p.captureChan:
			*buffer = append(*buffer, c)
		case ev := <-p.stationChan:
			p.saveStationEvent(ev)
		default:
			return
		}
	}
}

func (p *PersistenceManager) flushCaptures(buffer []domain.Capture) {
	if len(buffer) == 0 || p.storage == nil {
		return
	}
	batch := make([]domain.Capture, len(buffer))
	copy(batch, buffer)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.storage.SaveCapturesBatch(ctx, batch); err != nil {
		telemetry.CapturesDropped.WithLabelValues(sinkName).Add(float64(len(batch)))
		p.logger.Error("Failed to batch save captures", "count", len(batch), "error", err)
	}
}

func (p *PersistenceManager) saveStationEvent(ev domain.StationEvent) {
	if p.storage == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.storage.SaveStationEvent(ctx, ev); err != nil {
		p.logger.Error("Failed to save station event", "mac", ev.Address.String(), "error", err)
	}
}
