// Package radio brings the access point and the monitor capture up in order
// and tears them down again.
package radio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lcalzada-xor/tagap/internal/core/ports"
)

// Status is the lifecycle state of a Manager.
type Status string

const (
	StatusIdle     Status = "idle"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusFailed   Status = "failed"
	StatusStopped  Status = "stopped"
)

// ErrNotStarted is returned by Run before a successful Start.
var ErrNotStarted = errors.New("radio not started")

// Driver is the subset of interface control the manager needs.
type Driver interface {
	SetRegulatoryDomain(ctx context.Context, country string) error
	KillConflictingProcesses(ctx context.Context) error
	AddMonitorInterface(ctx context.Context, parent, monitor string) error
	SetInterfaceChannel(ctx context.Context, iface string, channel int) error
	DeleteInterface(ctx context.Context, iface string) error
	RestoreNetworkServices(ctx context.Context) error
}

// AccessPoint is a running soft AP.
type AccessPoint interface {
	Start(ctx context.Context, timeout time.Duration) error
	Stop() error
}

// SourceOpener opens the frame source once the radio is configured.
type SourceOpener func() (ports.FrameSource, error)

// Config describes the radio setup.
type Config struct {
	Interface        string
	MonitorInterface string
	SSID             string
	Secured          bool
	Channel          int
	Country          string
	MaxStations      int
	StartTimeout     time.Duration
}

// Manager owns the radio lifecycle: regulatory domain, access point, monitor
// interface, frame source. A nil Driver or AccessPoint skips that stage, which
// is how replay and mock runs share the same path.
type Manager struct {
	cfg    Config
	driver Driver
	ap     AccessPoint
	open   SourceOpener
	logger *slog.Logger

	mu        sync.Mutex
	status    Status
	source    ports.FrameSource
	killed    bool
	apStarted bool
	monitorUp bool
}

// NewManager creates a Manager.
func NewManager(cfg Config, driver Driver, ap AccessPoint, open SourceOpener, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.StartTimeout <= 0 {
		cfg.StartTimeout = 15 * time.Second
	}
	return &Manager{
		cfg:    cfg,
		driver: driver,
		ap:     ap,
		open:   open,
		logger: logger,
		status: StatusIdle,
	}
}

// Start configures the radio. On failure everything already set up is
// rolled back and the error is returned.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.status = StatusStarting
	if err := m.start(ctx); err != nil {
		m.status = StatusFailed
		if rerr := m.teardown(); rerr != nil {
			m.logger.Warn("radio rollback incomplete", "error", rerr)
		}
		return err
	}
	m.status = StatusRunning
	return nil
}

func (m *Manager) start(ctx context.Context) error {
	if m.driver != nil {
		if err := m.driver.SetRegulatoryDomain(ctx, m.cfg.Country); err != nil {
			return fmt.Errorf("regulatory domain: %w", err)
		}
		if err := m.driver.KillConflictingProcesses(ctx); err != nil {
			m.logger.Warn("could not stop conflicting processes", "error", err)
		}
		m.killed = true
	}

	if m.ap != nil {
		if err := m.ap.Start(ctx, m.cfg.StartTimeout); err != nil {
			return fmt.Errorf("access point: %w", err)
		}
		m.apStarted = true
		m.logger.Info("AP ready",
			"ssid", m.cfg.SSID,
			"channel", m.cfg.Channel,
			"country", m.cfg.Country,
			"max_stations", m.cfg.MaxStations,
			"secured", m.cfg.Secured,
		)
	}

	if m.driver != nil && m.cfg.MonitorInterface != "" {
		if err := m.driver.AddMonitorInterface(ctx, m.cfg.Interface, m.cfg.MonitorInterface); err != nil {
			return fmt.Errorf("monitor interface: %w", err)
		}
		m.monitorUp = true
		if err := m.driver.SetInterfaceChannel(ctx, m.cfg.MonitorInterface, m.cfg.Channel); err != nil {
			// The AP already pins the phy to its channel.
			m.logger.Warn("could not set monitor channel", "interface", m.cfg.MonitorInterface, "error", err)
		}
	}

	src, err := m.open()
	if err != nil {
		return fmt.Errorf("open frame source: %w", err)
	}
	m.source = src
	return nil
}

// Run delivers frames to sink until ctx is cancelled or the source ends.
func (m *Manager) Run(ctx context.Context, sink ports.FrameSink) error {
	m.mu.Lock()
	src := m.source
	m.mu.Unlock()
	if src == nil {
		return ErrNotStarted
	}
	return src.Run(ctx, sink)
}

// Status reports the lifecycle state.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Close stops the source and restores the interfaces.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	err := m.teardown()
	if m.status != StatusFailed {
		m.status = StatusStopped
	}
	return err
}

// teardown undoes start in reverse order. Callers hold m.mu.
func (m *Manager) teardown() error {
	// Interface commands must still run after the parent context is cancelled.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var errs []error
	if m.source != nil {
		if err := m.source.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close source: %w", err))
		}
		m.source = nil
	}
	if m.monitorUp {
		if err := m.driver.DeleteInterface(ctx, m.cfg.MonitorInterface); err != nil {
			errs = append(errs, fmt.Errorf("delete monitor interface: %w", err))
		}
		m.monitorUp = false
	}
	if m.apStarted {
		if err := m.ap.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop access point: %w", err))
		}
		m.apStarted = false
	}
	if m.killed {
		if err := m.driver.RestoreNetworkServices(ctx); err != nil {
			errs = append(errs, fmt.Errorf("restore network services: %w", err))
		}
		m.killed = false
	}
	return errors.Join(errs...)
}
