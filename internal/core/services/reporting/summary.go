package reporting

import (
	"context"
	"fmt"
	"time"

	"github.com/lcalzada-xor/tagap/internal/core/domain"
	"github.com/lcalzada-xor/tagap/internal/core/ports"
)

// DefaultRecentCaptures is how many captures a summary lists when no limit is given.
const DefaultRecentCaptures = 50

// SummaryGenerator assembles the data behind the capture report export.
type SummaryGenerator struct {
	storage   ports.Storage
	directory ports.DeviceDirectory
	now       func() time.Time
}

// NewSummaryGenerator creates a new summary generator.
func NewSummaryGenerator(storage ports.Storage, directory ports.DeviceDirectory) *SummaryGenerator {
	return &SummaryGenerator{
		storage:   storage,
		directory: directory,
		now:       time.Now,
	}
}

// Generate collects per-device statistics and the most recent captures.
func (g *SummaryGenerator) Generate(ctx context.Context, filter domain.CaptureFilter) (*domain.CaptureSummary, error) {
	stats, err := g.storage.CaptureStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch capture stats: %w", err)
	}

	if filter.Limit <= 0 {
		filter.Limit = DefaultRecentCaptures
	}
	recent, err := g.storage.ListCaptures(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch captures: %w", err)
	}

	summary := &domain.CaptureSummary{
		GeneratedAt: g.now(),
		Stats:       stats,
		Recent:      recent,
	}
	if g.directory != nil {
		summary.Devices = g.directory.Devices()
	}
	return summary, nil
}
