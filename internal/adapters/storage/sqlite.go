package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lcalzada-xor/tagap/internal/core/domain"
	"github.com/lcalzada-xor/tagap/internal/core/ports"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"
)

// ErrNotFound is returned when a capture id does not exist.
var ErrNotFound = domain.ErrNotFound

// SQLiteAdapter implements ports.Storage using GORM and SQLite.
type SQLiteAdapter struct {
	db *gorm.DB
}

// CaptureModel is the GORM model for capture records.
type CaptureModel struct {
	ID                string `gorm:"primaryKey"`
	Device            int    `gorm:"index"`
	Label             string
	RSSI              int
	NoiseFloor        int
	Channel           int
	Source            string
	Destination       string
	SourceVendor      string
	DestinationVendor string
	Samples           []byte // CBOR encoded []int
	SampleCount       int
	SampleMin         int
	SampleMax         int
	SampleMean        float64
	SampleStdDev      float64
	Frame             []byte
	Timestamp         time.Time `gorm:"index"`
}

// StationEventModel stores station join/leave history.
type StationEventModel struct {
	ID        uint   `gorm:"primaryKey"`
	Type      string `gorm:"index"`
	MAC       string `gorm:"index"`
	AID       int
	Interface string
	Timestamp time.Time `gorm:"index"`
}

// NewSQLiteAdapter initializes the database and migrates schema. The parent
// directory of path is created when missing.
func NewSQLiteAdapter(path string) (*SQLiteAdapter, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	return newAdapter(db)
}

const captureIndex = "idx_captures_device_ts"

func newAdapter(db *gorm.DB) (*SQLiteAdapter, error) {
	if err := db.Use(tracing.NewPlugin()); err != nil {
		return nil, fmt.Errorf("register tracing plugin: %w", err)
	}

	if err := db.AutoMigrate(&CaptureModel{}, &StationEventModel{}); err != nil {
		return nil, err
	}

	if err := db.Exec("CREATE INDEX IF NOT EXISTS " + captureIndex + " ON capture_models(device, timestamp)").Error; err != nil {
		return nil, fmt.Errorf("create capture index: %w", err)
	}

	return &SQLiteAdapter{db: db}, nil
}

// SaveCapturesBatch saves multiple captures in a single transaction.
func (a *SQLiteAdapter) SaveCapturesBatch(ctx context.Context, captures []domain.Capture) error {
	if len(captures) == 0 {
		return nil
	}

	models := make([]CaptureModel, len(captures))
	for i, c := range captures {
		m, err := toCaptureModel(c)
		if err != nil {
			return err
		}
		models[i] = m
	}

	return a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			UpdateAll: true,
		}).CreateInBatches(models, 100).Error
	})
}

// GetCapture retrieves a capture by id.
func (a *SQLiteAdapter) GetCapture(ctx context.Context, id string) (*domain.Capture, error) {
	var model CaptureModel
	if err := a.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("capture %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return toCaptureDomain(model)
}

// ListCaptures returns captures matching the filter, newest first.
func (a *SQLiteAdapter) ListCaptures(ctx context.Context, filter domain.CaptureFilter) ([]domain.Capture, error) {
	query := a.db.WithContext(ctx).Order("timestamp DESC")

	if filter.Device.IsKnown() {
		query = query.Where("device = ?", int(filter.Device))
	}
	if !filter.Since.IsZero() {
		query = query.Where("timestamp >= ?", filter.Since.UTC())
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var models []CaptureModel
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}

	captures := make([]domain.Capture, 0, len(models))
	for _, m := range models {
		c, err := toCaptureDomain(m)
		if err != nil {
			return nil, err
		}
		captures = append(captures, *c)
	}
	return captures, nil
}

type deviceAggregate struct {
	Device  int
	Count   int64
	AvgRSSI float64
}

// CaptureStats aggregates captures per device, ordered by device id.
func (a *SQLiteAdapter) CaptureStats(ctx context.Context) ([]domain.DeviceCaptureStats, error) {
	db := a.db.WithContext(ctx)

	var rows []deviceAggregate
	err := db.Model(&CaptureModel{}).
		Select("device, COUNT(*) AS count, AVG(rssi) AS avg_rssi").
		Group("device").
		Order("device").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	stats := make([]domain.DeviceCaptureStats, 0, len(rows))
	for _, r := range rows {
		var latest CaptureModel
		if err := db.Select("timestamp").Where("device = ?", r.Device).Order("timestamp DESC").First(&latest).Error; err != nil {
			return nil, err
		}
		stats = append(stats, domain.DeviceCaptureStats{
			Device:   domain.DeviceID(r.Device),
			Count:    r.Count,
			AvgRSSI:  r.AvgRSSI,
			LastSeen: latest.Timestamp,
		})
	}
	return stats, nil
}

// SaveStationEvent appends a station event to the history.
func (a *SQLiteAdapter) SaveStationEvent(ctx context.Context, ev domain.StationEvent) error {
	model := toStationEventModel(ev)
	return a.db.WithContext(ctx).Create(&model).Error
}

// ListStationEvents returns the most recent station events, newest first.
func (a *SQLiteAdapter) ListStationEvents(ctx context.Context, limit int) ([]domain.StationEvent, error) {
	query := a.db.WithContext(ctx).Order("timestamp DESC").Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var models []StationEventModel
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}

	events := make([]domain.StationEvent, len(models))
	for i, m := range models {
		events[i] = toStationEventDomain(m)
	}
	return events, nil
}

func (a *SQLiteAdapter) Close() error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

var _ ports.Storage = (*SQLiteAdapter)(nil)
