// Command tagap-collector receives capture records forwarded by tagap nodes
// over gRPC and stores them.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/lcalzada-xor/tagap/internal/adapters/collector"
	"github.com/lcalzada-xor/tagap/internal/adapters/storage"
	"github.com/lcalzada-xor/tagap/internal/core/ports"
	"github.com/lcalzada-xor/tagap/internal/core/services/persistence"
	"github.com/lcalzada-xor/tagap/internal/telemetry"
)

func main() {
	listen := flag.String("listen", ":9090", "gRPC listen address")
	dbPath := flag.String("db", "data/collector.db", "Path to SQLite database (empty to log only)")
	debug := flag.Bool("debug", false, "Enable verbose debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	telemetry.InitMetrics()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var sinks []ports.CaptureSink
	var pm *persistence.PersistenceManager
	var store *storage.SQLiteAdapter
	if *dbPath != "" {
		if err := os.MkdirAll(filepath.Dir(*dbPath), 0o755); err != nil {
			logger.Error("Failed to create DB directory", "error", err)
			os.Exit(1)
		}
		var err error
		store, err = storage.NewSQLiteAdapter(*dbPath)
		if err != nil {
			logger.Error("Failed to open storage", "error", err)
			os.Exit(1)
		}
		defer store.Close()

		pm = persistence.NewPersistenceManager(store, 10000, logger)
		sinkCtx, stopSinks := context.WithCancel(context.Background())
		pm.Start(sinkCtx)
		defer func() {
			stopSinks()
			<-pm.Done()
		}()
		sinks = append(sinks, pm)
	}

	lis, err := net.Listen("tcp", *listen)
	if err != nil {
		logger.Error("Failed to listen", "addr", *listen, "error", err)
		os.Exit(1)
	}

	srv := collector.NewServer(collector.NewCollector(logger, sinks...))
	go func() {
		<-ctx.Done()
		logger.Info("collector shutting down")
		srv.GracefulStop()
	}()

	logger.Info("collector listening", "addr", lis.Addr().String(), "db", *dbPath)
	if err := srv.Serve(lis); err != nil {
		logger.Error("gRPC server error", "error", err)
	}
}
