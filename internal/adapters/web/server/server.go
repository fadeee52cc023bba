// Package server wires the API handlers into an HTTP server.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/lcalzada-xor/tagap/internal/adapters/reporting"
	"github.com/lcalzada-xor/tagap/internal/adapters/web"
	"github.com/lcalzada-xor/tagap/internal/adapters/web/handlers"
	"github.com/lcalzada-xor/tagap/internal/adapters/web/middleware"
	"github.com/lcalzada-xor/tagap/internal/core/ports"
	reportingService "github.com/lcalzada-xor/tagap/internal/core/services/reporting"
)

// Deps are the services the API reads from. Storage and Persistence may be nil.
type Deps struct {
	Directory ports.DeviceDirectory
	Pipeline  handlers.PipelineStatsProvider
	Stations  interface {
		handlers.StationLister
		handlers.StationCounter
	}
	Storage     ports.Storage
	Persistence handlers.PersistenceToggle
	Logger      *slog.Logger
}

// Server handles HTTP and WebSocket connections.
type Server struct {
	Addr      string
	WSManager *web.WSManager

	DeviceHandler  *handlers.DeviceHandler
	CaptureHandler *handlers.CaptureHandler
	StationHandler *handlers.StationHandler
	StatsHandler   *handlers.StatsHandler
	ReportHandler  *handlers.ReportHandler
	ConfigHandler  *handlers.ConfigHandler

	reportLimiter *middleware.RateLimiter
	logger        *slog.Logger
	srv           *http.Server
}

// NewServer creates a new web server.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// A nil *SummaryGenerator must stay a nil interface.
	var generator handlers.SummarySource
	if deps.Storage != nil {
		generator = reportingService.NewSummaryGenerator(deps.Storage, deps.Directory)
	}

	return &Server{
		Addr:           addr,
		WSManager:      web.NewWSManager(logger),
		DeviceHandler:  handlers.NewDeviceHandler(deps.Directory),
		CaptureHandler: handlers.NewCaptureHandler(deps.Storage),
		StationHandler: handlers.NewStationHandler(deps.Stations, deps.Storage),
		StatsHandler:   handlers.NewStatsHandler(deps.Pipeline, deps.Stations, deps.Storage),
		ReportHandler:  handlers.NewReportHandler(generator, reporting.NewPDFExporter()),
		ConfigHandler:  handlers.NewConfigHandler(deps.Persistence),

		// PDF rendering is the only expensive endpoint.
		reportLimiter: middleware.NewRateLimiter(10, time.Minute),
		logger:        logger,
	}
}

// Handler returns the instrumented route tree.
func (s *Server) Handler() http.Handler {
	// "tagap-server" is the name of the operation (span)
	return otelhttp.NewHandler(SetupRoutes(s), "tagap-server")
}

// Run starts the server and the broadcaster.
func (s *Server) Run(ctx context.Context) error {
	s.WSManager.Start(ctx)

	s.srv = &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info("web server shutting down")
		s.reportLimiter.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("web server shutdown error", "error", err)
		}
	}()

	s.logger.Info("web server listening", "addr", s.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
