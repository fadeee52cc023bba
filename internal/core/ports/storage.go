package ports

import (
	"context"

	"github.com/lcalzada-xor/tagap/internal/core/domain"
)

// Storage defines the behavior for capture and station-event persistence.
type Storage interface {
	// SaveCapturesBatch stores captures in a single transaction.
	SaveCapturesBatch(ctx context.Context, captures []domain.Capture) error
	GetCapture(ctx context.Context, id string) (*domain.Capture, error)
	ListCaptures(ctx context.Context, filter domain.CaptureFilter) ([]domain.Capture, error)
	CaptureStats(ctx context.Context) ([]domain.DeviceCaptureStats, error)

	SaveStationEvent(ctx context.Context, ev domain.StationEvent) error
	ListStationEvents(ctx context.Context, limit int) ([]domain.StationEvent, error)

	// Close closes the storage connection.
	Close() error
}
