package oui

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

const importBatchSize = 1000

// ImportCSV loads an OUI CSV (header first) into w. Both the
// "Mac Prefix,Vendor Name,..." layout and the IEEE registry layout
// "Registry,Assignment,Organization Name,..." are accepted. Malformed lines
// are skipped. It returns the number of entries written.
func ImportCSV(ctx context.Context, r io.Reader, w VendorWriter, now time.Time, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return 0, fmt.Errorf("read header: %w", err)
	}
	prefixCol, vendorCol := 0, 1
	if strings.EqualFold(strings.TrimSpace(header[0]), "Registry") {
		prefixCol, vendorCol = 1, 2
	}

	var (
		entries = make([]Entry, 0, importBatchSize)
		total   int
		line    = 1
	)

	flush := func() error {
		if len(entries) == 0 {
			return nil
		}
		if err := w.BulkInsertOUIs(ctx, entries); err != nil {
			return fmt.Errorf("bulk insert: %w", err)
		}
		total += len(entries)
		logger.Debug("Inserted OUI batch", "total", total)
		entries = entries[:0]
		return nil
	}

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			logger.Warn("Skipping unparsable OUI line", "line", line, "error", err)
			continue
		}
		if len(record) <= vendorCol {
			continue
		}

		prefix, err := NormalizePrefix(record[prefixCol])
		vendor := strings.TrimSpace(record[vendorCol])
		if err != nil || vendor == "" {
			continue
		}

		entries = append(entries, Entry{
			Prefix:      prefix,
			Vendor:      vendor,
			VendorShort: ShortVendor(vendor),
			LastUpdated: now,
		})

		if len(entries) >= importBatchSize {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}

	if err := flush(); err != nil {
		return total, err
	}
	return total, nil
}

var vendorSuffixes = []string{
	" Co., Ltd.",
	" Inc.", " Inc",
	" Corporation", " Corp.", " Corp",
	" Ltd.", " Ltd", " Limited",
	" Co.", " LLC", " GmbH", " S.A.", " AG",
}

// ShortVendor strips corporate suffixes and anything after a comma.
func ShortVendor(vendor string) string {
	vendor = strings.TrimSpace(vendor)
	for _, s := range vendorSuffixes {
		vendor = strings.TrimSuffix(vendor, s)
	}
	if idx := strings.Index(vendor, ","); idx > 0 {
		vendor = vendor[:idx]
	}
	return strings.TrimSpace(vendor)
}
