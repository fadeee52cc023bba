// Command tagap-oui-import loads an OUI CSV export, from a file or the IEEE
// registry, into the vendor database used to annotate captures and stations.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/lcalzada-xor/tagap/internal/adapters/oui"
)

// IEEE OUI registry URL
const ieeeOUIURL = "https://standards-oui.ieee.org/oui/oui.csv"

func main() {
	csvPath := flag.String("csv", "", "Path to CSV file (empty to download)")
	url := flag.String("url", ieeeOUIURL, "Registry CSV to download when -csv is empty")
	dbPath := flag.String("db", "data/oui/ieee_oui.db", "Path to OUI database")
	maxAge := flag.Duration("max-age", 30*24*time.Hour, "Skip the download when the database is newer than this")
	force := flag.Bool("force", false, "Force update even if recent")
	verbose := flag.Bool("verbose", false, "Verbose output")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	db, err := oui.NewDatabase(*dbPath, 1000, nil)
	if err != nil {
		logger.Error("Failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if *csvPath == "" && !*force && recent(ctx, db, *maxAge, logger) {
		logger.Info("Database is recent, use -force to update anyway", "max_age", maxAge.String())
		return
	}

	src, name, err := openSource(ctx, *csvPath, *url)
	if err != nil {
		logger.Error("Failed to open OUI source", "error", err)
		os.Exit(1)
	}
	defer src.Close()

	logger.Info("Importing OUI data", "source", name, "db", *dbPath)

	n, err := oui.ImportCSV(ctx, src, db, time.Now(), logger)
	if err != nil {
		logger.Error("Import failed", "imported", n, "error", err)
		os.Exit(1)
	}

	stats, err := db.GetStats(ctx)
	if err != nil {
		logger.Error("Failed to get stats", "error", err)
		os.Exit(1)
	}
	logger.Info("Import complete", "imported", n, "total_entries", stats.TotalEntries, "last_updated", stats.LastUpdated)
}

func recent(ctx context.Context, db *oui.Database, maxAge time.Duration, logger *slog.Logger) bool {
	stats, err := db.GetStats(ctx)
	if err != nil || stats.TotalEntries == 0 {
		return false
	}
	updated, err := time.Parse(time.DateOnly, stats.LastUpdated)
	if err != nil {
		logger.Debug("Unparsable last update", "value", stats.LastUpdated)
		return false
	}
	logger.Info("Current database", "entries", stats.TotalEntries, "last_updated", stats.LastUpdated)
	return time.Since(updated) < maxAge
}

func openSource(ctx context.Context, path, url string) (io.ReadCloser, string, error) {
	if path != "" {
		f, err := os.Open(path)
		return f, path, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, url, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, url, fmt.Errorf("HTTP GET failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, url, fmt.Errorf("HTTP status %d", resp.StatusCode)
	}
	return resp.Body, url, nil
}
