package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"google.golang.org/grpc"

	"github.com/lcalzada-xor/tagap/internal/adapters/capture"
	"github.com/lcalzada-xor/tagap/internal/adapters/collector"
	"github.com/lcalzada-xor/tagap/internal/adapters/console"
	"github.com/lcalzada-xor/tagap/internal/adapters/driver"
	"github.com/lcalzada-xor/tagap/internal/adapters/hostapd"
	"github.com/lcalzada-xor/tagap/internal/adapters/oui"
	"github.com/lcalzada-xor/tagap/internal/adapters/radio"
	"github.com/lcalzada-xor/tagap/internal/adapters/storage"
	webserver "github.com/lcalzada-xor/tagap/internal/adapters/web/server"
	"github.com/lcalzada-xor/tagap/internal/config"
	"github.com/lcalzada-xor/tagap/internal/core/ports"
	"github.com/lcalzada-xor/tagap/internal/core/services/persistence"
	"github.com/lcalzada-xor/tagap/internal/core/services/pipeline"
	"github.com/lcalzada-xor/tagap/internal/core/services/registry"
	"github.com/lcalzada-xor/tagap/internal/core/services/reporting"
	"github.com/lcalzada-xor/tagap/internal/core/services/stations"
	"github.com/lcalzada-xor/tagap/internal/telemetry"
)

const (
	ouiCacheSize      = 10000
	persistBuffer     = 10000
	recorderBuffer    = 1024
	consoleBuffer     = 256
	forwardBuffer     = 256
	sinkDrainTimeout  = 5 * time.Second
	sourceStopTimeout = 2 * time.Second
)

// sinkLoop is a capture consumer with its own goroutine.
type sinkLoop interface {
	Start(ctx context.Context)
	Done() <-chan struct{}
}

type namedLoop struct {
	name string
	loop sinkLoop
}

// Application holds the core components of the application.
// It acts as the Facade for the entire system, orchestrating services and infrastructure.
type Application struct {
	Config             *config.Config
	Registry           *registry.KnownDevices
	Reporter           *reporting.Reporter
	Pipeline           *pipeline.Pipeline
	Stations           *stations.Service
	Radio              *radio.Manager
	WebServer          *webserver.Server
	PersistenceManager *persistence.PersistenceManager

	logger    *slog.Logger
	storage   ports.Storage
	vendors   *oui.Lookup
	driver    *driver.Driver
	ap        *hostapd.Process
	forwarder *collector.Forwarder
	conn      *grpc.ClientConn
	loops     []namedLoop
	closers   []io.Closer
}

// New creates a new Application instance and bootstraps its components.
func New(cfg *config.Config, logger *slog.Logger) (*Application, error) {
	if logger == nil {
		logger = slog.Default()
	}
	app := &Application{
		Config: cfg,
		logger: logger,
	}

	if err := app.bootstrap(); err != nil {
		app.closeResources()
		return nil, fmt.Errorf("application bootstrap failed: %w", err)
	}

	return app, nil
}

// bootstrap orchestrates the initialization sequence.
func (app *Application) bootstrap() error {
	// 1. Foundation
	telemetry.InitMetrics()

	if err := app.initRegistry(); err != nil {
		return err
	}
	app.initVendors()

	if err := app.initStorage(); err != nil {
		return err
	}

	// 2. Domain services
	app.Reporter = reporting.NewReporter(app.Registry, app.vendors, app.logger)
	app.Pipeline = pipeline.New(app.Registry, app.Reporter, app.logger)
	app.Stations = stations.NewService(app.logger, app.vendors)

	// 3. Outputs
	if err := app.initOutputs(); err != nil {
		return err
	}

	// 4. Radio
	app.initRadio()

	// 5. Servers
	if app.Config.Addr != "" {
		deps := webserver.Deps{
			Directory: app.Registry,
			Pipeline:  app.Pipeline,
			Stations:  app.Stations,
			Storage:   app.storage,
			Logger:    app.logger,
		}
		// A nil *PersistenceManager must stay a nil interface.
		if app.PersistenceManager != nil {
			deps.Persistence = app.PersistenceManager
		}
		app.WebServer = webserver.NewServer(app.Config.Addr, deps)
		app.Reporter.AddSink("websocket", app.WebServer.WSManager)
		app.Stations.AddSink(app.WebServer.WSManager)
	}

	return nil
}

func (app *Application) initRegistry() error {
	if app.Config.DevicesPath == "" {
		app.Registry = registry.NewDefault()
		return nil
	}

	entries, err := config.LoadDevices(app.Config.DevicesPath)
	if err != nil {
		return err
	}
	reg, err := registry.New(entries)
	if err != nil {
		return fmt.Errorf("known devices: %w", err)
	}
	app.Registry = reg
	return nil
}

func (app *Application) initVendors() {
	static := oui.NewStaticVendorRepository(oui.CommonOUIs)
	if app.Config.OUIDBPath == "" {
		app.vendors = oui.NewLookup(static)
		return
	}

	db, err := oui.NewDatabase(app.Config.OUIDBPath, ouiCacheSize, static)
	if err != nil {
		app.logger.Warn("OUI database unavailable, using built-in vendors", "path", app.Config.OUIDBPath, "error", err)
		app.vendors = oui.NewLookup(static)
		return
	}
	app.vendors = oui.NewLookup(db)
}

func (app *Application) initStorage() error {
	if app.Config.DBPath == "" {
		app.logger.Info("Persistence disabled")
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(app.Config.DBPath), 0o755); err != nil {
		return fmt.Errorf("failed to create DB directory: %w", err)
	}

	store, err := storage.NewSQLiteAdapter(app.Config.DBPath)
	if err != nil {
		return fmt.Errorf("failed to init storage: %w", err)
	}
	app.storage = store
	app.PersistenceManager = persistence.NewPersistenceManager(store, persistBuffer, app.logger)
	return nil
}

func (app *Application) initOutputs() error {
	cfg := app.Config

	if cfg.ReportFormat != config.FormatNone {
		w := console.NewWriter("stdout", os.Stdout, consoleBuffer, app.logger)
		if cfg.ReportFormat == config.FormatJSON {
			w.UseJSON()
		}
		app.addCaptureLoop("stdout", w)
		app.Stations.AddSink(w)
	}

	if cfg.SerialPort != "" {
		port, err := console.OpenSerial(cfg.SerialPort, cfg.SerialBaud)
		if err != nil {
			return err
		}
		app.closers = append(app.closers, port)
		w := console.NewWriter("serial", port, consoleBuffer, app.logger)
		if cfg.ReportFormat == config.FormatJSON {
			w.UseJSON()
		}
		app.addCaptureLoop("serial", w)
		app.Stations.AddSink(w)
	}

	if cfg.PcapPath != "" {
		rec, err := capture.CreateRecorder(cfg.PcapPath, recorderBuffer, app.logger)
		if err != nil {
			return err
		}
		app.addCaptureLoop("pcap", rec)
	}

	if cfg.ForwardAddr != "" {
		conn, err := collector.Dial(cfg.ForwardAddr)
		if err != nil {
			return err
		}
		app.conn = conn
		app.forwarder = collector.NewForwarder(conn, forwardBuffer, app.logger)
		app.addCaptureLoop("forward", app.forwarder)
	}

	if app.PersistenceManager != nil {
		app.addCaptureLoop("persistence", app.PersistenceManager)
		app.Stations.AddSink(app.PersistenceManager)
	}

	return nil
}

func (app *Application) addCaptureLoop(name string, sink interface {
	ports.CaptureSink
	sinkLoop
}) {
	app.Reporter.AddSink(name, sink)
	app.loops = append(app.loops, namedLoop{name: name, loop: sink})
}

func (app *Application) initRadio() {
	cfg := app.Config
	rc := radio.Config{
		Interface:        cfg.Interface,
		MonitorInterface: cfg.MonitorInterface,
		SSID:             cfg.SSID,
		Secured:          cfg.Passphrase != "",
		Channel:          cfg.Channel,
		Country:          cfg.Country,
		MaxStations:      cfg.MaxStations,
		StartTimeout:     cfg.StartTimeout,
	}

	switch {
	case cfg.MockMode:
		app.logger.Info("Mock Mode Active: generating synthetic traffic")
		open := func() (ports.FrameSource, error) {
			return capture.NewMockSource(app.Registry.Devices(), capture.MockConfig{
				Interval: cfg.MockInterval,
				Count:    cfg.MockCount,
				Channel:  cfg.Channel,
				Seed:     uint64(time.Now().UnixNano()),
			}, app.logger), nil
		}
		app.Radio = radio.NewManager(rc, nil, nil, open, app.logger)

	case cfg.ReplayPath != "":
		open := func() (ports.FrameSource, error) {
			return capture.OpenReplay(cfg.ReplayPath, cfg.Channel, app.logger)
		}
		app.Radio = radio.NewManager(rc, nil, nil, open, app.logger)

	default:
		app.driver = driver.New(driver.ExecRunner{}, app.logger)
		app.ap = hostapd.NewProcess(cfg.HostapdPath, hostapd.Config{
			Interface:    cfg.Interface,
			SSID:         cfg.SSID,
			Passphrase:   cfg.Passphrase,
			Channel:      cfg.Channel,
			ChannelCount: cfg.ChannelCount,
			Country:      cfg.Country,
			MaxStations:  cfg.MaxStations,
			Protocols:    cfg.Protocols,
		}, app.Stations, app.logger)

		iface := cfg.MonitorInterface
		if iface == "" {
			iface = cfg.Interface
		}
		open := func() (ports.FrameSource, error) {
			return capture.OpenLive(iface, cfg.BPFFilter, cfg.Channel, app.logger)
		}
		app.Radio = radio.NewManager(rc, app.driver, app.ap, open, app.logger)
	}
}

// Run starts the application components and manages their execution lifecycle.
// It returns when ctx is cancelled, a component fails, or a finite frame
// source (replay, bounded mock run) is exhausted.
func (app *Application) Run(ctx context.Context) error {
	app.logger.Info("Starting tagap components...")

	// Sinks outlive the radio so that in-flight captures are flushed.
	sinkCtx, stopSinks := context.WithCancel(context.Background())
	for _, l := range app.loops {
		l.loop.Start(sinkCtx)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errChan := make(chan error, 3)
	finished := make(chan struct{})

	if app.WebServer != nil {
		go func() {
			if err := app.WebServer.Run(runCtx); err != nil {
				errChan <- fmt.Errorf("web server error: %w", err)
			}
		}()
	}

	app.checkChannel(runCtx)

	if err := app.Radio.Start(runCtx); err != nil {
		cancel()
		return errors.Join(fmt.Errorf("radio start: %w", err), app.cleanup(stopSinks))
	}

	if app.ap != nil {
		go func() {
			select {
			case err := <-app.ap.Exited():
				if runCtx.Err() != nil {
					return
				}
				if err == nil {
					err = io.EOF
				}
				errChan <- fmt.Errorf("hostapd exited: %w", err)
			case <-runCtx.Done():
			}
		}()
	}

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		err := app.Radio.Run(runCtx, app.Pipeline)
		if runCtx.Err() != nil {
			return
		}
		if err != nil {
			errChan <- fmt.Errorf("capture error: %w", err)
			return
		}
		close(finished)
	}()

	app.logger.Info("tagap ready. Press Ctrl+C to terminate.")

	var runErr error
	select {
	case <-ctx.Done():
		app.logger.Info("Termination signal received")
	case <-finished:
		app.logger.Info("Frame source exhausted")
	case runErr = <-errChan:
		app.logger.Error("Component failed", "error", runErr)
	}

	cancel()
	select {
	case <-runDone:
	case <-time.After(sourceStopTimeout):
		app.logger.Warn("frame source still running, closing it")
	}
	return errors.Join(runErr, app.cleanup(stopSinks))
}

// checkChannel warns when the phy does not list the configured channel.
func (app *Application) checkChannel(ctx context.Context) {
	if app.driver == nil {
		return
	}
	channels, err := app.driver.SupportedChannels(ctx, app.Config.Interface)
	if err != nil {
		app.logger.Debug("could not query supported channels", "interface", app.Config.Interface, "error", err)
		return
	}
	if !slices.Contains(channels, app.Config.Channel) {
		app.logger.Warn("channel not listed by the radio", "channel", app.Config.Channel, "supported", channels)
	}
}

func (app *Application) cleanup(stopSinks context.CancelFunc) error {
	app.logger.Info("Cleaning up resources...")

	var errs []error
	if err := app.Radio.Close(); err != nil {
		errs = append(errs, fmt.Errorf("radio teardown: %w", err))
	}

	stopSinks()
	deadline := time.After(sinkDrainTimeout)
	for _, l := range app.loops {
		select {
		case <-l.loop.Done():
		case <-deadline:
			app.logger.Warn("sink did not drain in time", "sink", l.name)
		}
	}

	if app.forwarder != nil {
		s := app.forwarder.Summary()
		app.logger.Info("forwarder summary", "accepted", s.Accepted, "rejected", s.Rejected)
	}

	st := app.Pipeline.Stats()
	app.logger.Info("pipeline stats",
		"received", st.Received,
		"tagged", st.Tagged,
		"unknown", st.Unknown,
		"untagged", st.Untagged,
		"malformed", st.Malformed,
		"ignored", st.Ignored,
	)

	errs = append(errs, app.closeResources())
	return errors.Join(errs...)
}

func (app *Application) closeResources() error {
	var errs []error
	if app.storage != nil {
		errs = append(errs, app.storage.Close())
	}
	if app.vendors != nil {
		errs = append(errs, app.vendors.Close())
	}
	if app.conn != nil {
		errs = append(errs, app.conn.Close())
	}
	for _, c := range app.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
