package oui

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/lcalzada-xor/tagap/internal/core/domain"
	_ "github.com/mattn/go-sqlite3"
)

// Database provides vendor lookup from an IEEE OUI registry stored in SQLite.
type Database struct {
	db       *sql.DB
	cache    *Cache
	mu       sync.RWMutex
	fallback VendorRepository
	closed   bool

	lookupStmt *sql.Stmt
}

// Entry is a single OUI registry entry.
type Entry struct {
	Prefix      string
	Vendor      string
	VendorShort string
	Address     string
	Country     string
	LastUpdated time.Time
}

// NewDatabase opens (or creates) the registry at dbPath. fallback is
// consulted for prefixes the registry does not hold and may be nil.
func NewDatabase(dbPath string, cacheSize int, fallback VendorRepository) (*Database, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, &DatabaseError{Op: "open", Err: err}
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &DatabaseError{Op: "ping", Err: err}
	}

	o := &Database{
		db:       db,
		cache:    NewCache(cacheSize),
		fallback: fallback,
	}

	if err := o.initializeSchema(); err != nil {
		db.Close()
		return nil, &DatabaseError{Op: "initialize_schema", Err: err}
	}

	stmt, err := db.Prepare("SELECT COALESCE(NULLIF(vendor_short, ''), vendor) FROM oui_registry WHERE prefix = ?")
	if err != nil {
		db.Close()
		return nil, &DatabaseError{Op: "prepare_statement", Err: err}
	}
	o.lookupStmt = stmt

	return o, nil
}

func (o *Database) initializeSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS oui_registry (
		prefix TEXT PRIMARY KEY,
		vendor TEXT NOT NULL,
		vendor_short TEXT,
		address TEXT,
		country TEXT,
		last_updated INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_vendor ON oui_registry(vendor);
	`

	if _, err := o.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// LookupVendor implements VendorRepository.
func (o *Database) LookupVendor(ctx context.Context, addr domain.HardwareAddress) (string, error) {
	o.mu.RLock()
	closed := o.closed
	o.mu.RUnlock()
	if closed {
		return "", ErrRepositoryClosed
	}

	prefix := addr.OUI()

	if vendor, ok := o.cache.Get(prefix); ok {
		if vendor == "" {
			return "", ErrVendorNotFound
		}
		return vendor, nil
	}

	var vendor string
	err := o.lookupStmt.QueryRowContext(ctx, prefix).Scan(&vendor)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if o.fallback != nil {
			if v, ferr := o.fallback.LookupVendor(ctx, addr); ferr == nil && v != "" {
				o.cache.Set(prefix, v)
				return v, nil
			}
		}
		// Negative results are cached too.
		o.cache.Set(prefix, "")
		return "", ErrVendorNotFound
	case err != nil:
		if o.fallback != nil {
			if v, ferr := o.fallback.LookupVendor(ctx, addr); ferr == nil {
				return v, nil
			}
		}
		return "", &DatabaseError{Op: "lookup", Err: err}
	}

	o.cache.Set(prefix, vendor)
	return vendor, nil
}

const upsertOUI = `
	INSERT OR REPLACE INTO oui_registry (prefix, vendor, vendor_short, address, country, last_updated)
	VALUES (?, ?, ?, ?, ?, ?)
`

// InsertOUI implements VendorWriter.
func (o *Database) InsertOUI(ctx context.Context, entry Entry) error {
	return o.BulkInsertOUIs(ctx, []Entry{entry})
}

// BulkInsertOUIs implements VendorWriter. Prefixes are normalized to
// "XX:XX:XX"; the whole batch is rejected if any prefix is invalid.
func (o *Database) BulkInsertOUIs(ctx context.Context, entries []Entry) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return ErrRepositoryClosed
	}

	tx, err := o.db.BeginTx(ctx, nil)
	if err != nil {
		return &DatabaseError{Op: "begin_transaction", Err: err}
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertOUI)
	if err != nil {
		return &DatabaseError{Op: "prepare_bulk_insert", Err: err}
	}
	defer stmt.Close()

	for _, entry := range entries {
		prefix, err := NormalizePrefix(entry.Prefix)
		if err != nil {
			return err
		}
		_, err = stmt.ExecContext(ctx,
			prefix,
			entry.Vendor,
			entry.VendorShort,
			entry.Address,
			entry.Country,
			entry.LastUpdated.Unix(),
		)
		if err != nil {
			return &DatabaseError{Op: "bulk_insert_entry", Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &DatabaseError{Op: "commit_transaction", Err: err}
	}

	o.cache.Clear()
	return nil
}

// GetStats returns registry size and cache counters.
func (o *Database) GetStats(ctx context.Context) (RepositoryStats, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if o.closed {
		return RepositoryStats{}, ErrRepositoryClosed
	}

	var count int
	var lastUpdateUnix int64

	err := o.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(MAX(last_updated), 0) FROM oui_registry",
	).Scan(&count, &lastUpdateUnix)
	if err != nil {
		return RepositoryStats{}, &DatabaseError{Op: "get_stats", Err: err}
	}

	cacheStats := o.cache.Stats()
	return RepositoryStats{
		TotalEntries: count,
		CacheHits:    cacheStats.Hits,
		CacheMisses:  cacheStats.Misses,
		LastUpdated:  time.Unix(lastUpdateUnix, 0).UTC().Format("2006-01-02"),
	}, nil
}

// Close implements VendorRepository.
func (o *Database) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return nil
	}
	o.closed = true

	if o.lookupStmt != nil {
		o.lookupStmt.Close()
	}
	o.cache.Clear()
	return o.db.Close()
}

// NormalizePrefix converts "xx-xx-xx", "xxxxxx" or a full address to "XX:XX:XX".
func NormalizePrefix(prefix string) (string, error) {
	hex := strings.NewReplacer(":", "", "-", "", ".", "").Replace(strings.TrimSpace(prefix))
	if len(hex) < 6 {
		return "", fmt.Errorf("%q: %w", prefix, ErrInvalidPrefix)
	}
	hex = strings.ToUpper(hex[:6])
	for _, r := range hex {
		if !strings.ContainsRune("0123456789ABCDEF", r) {
			return "", fmt.Errorf("%q: %w", prefix, ErrInvalidPrefix)
		}
	}
	return hex[0:2] + ":" + hex[2:4] + ":" + hex[4:6], nil
}
