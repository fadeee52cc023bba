package oui

import (
	"context"
	"errors"

	"github.com/lcalzada-xor/tagap/internal/core/domain"
	"github.com/lcalzada-xor/tagap/internal/core/ports"
)

// VendorRepository looks up the vendor of a hardware address.
type VendorRepository interface {
	LookupVendor(ctx context.Context, addr domain.HardwareAddress) (string, error)
	Close() error
}

// VendorWriter defines the interface for writing vendor data
type VendorWriter interface {
	InsertOUI(ctx context.Context, entry Entry) error
	BulkInsertOUIs(ctx context.Context, entries []Entry) error
}

// RepositoryStats contains statistics about a vendor repository
type RepositoryStats struct {
	TotalEntries int
	CacheHits    int64
	CacheMisses  int64
	LastUpdated  string
}

// CompositeVendorRepository tries multiple repositories in order.
type CompositeVendorRepository struct {
	repositories []VendorRepository
}

// NewCompositeVendorRepository creates a composite that returns the first
// successful lookup.
func NewCompositeVendorRepository(repos ...VendorRepository) *CompositeVendorRepository {
	return &CompositeVendorRepository{repositories: repos}
}

// LookupVendor tries each repository in order until one returns a result
func (c *CompositeVendorRepository) LookupVendor(ctx context.Context, addr domain.HardwareAddress) (string, error) {
	var lastErr error
	for _, repo := range c.repositories {
		vendor, err := repo.LookupVendor(ctx, addr)
		if err == nil && vendor != "" {
			return vendor, nil
		}
		if err != nil && !errors.Is(err, ErrVendorNotFound) {
			lastErr = err
		}
	}

	if lastErr != nil {
		return "", lastErr
	}
	return "", ErrVendorNotFound
}

// Close closes all repositories
func (c *CompositeVendorRepository) Close() error {
	var firstErr error
	for _, repo := range c.repositories {
		if err := repo.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// StaticVendorRepository provides vendor lookups from an in-memory map
// keyed by "XX:XX:XX" prefix.
type StaticVendorRepository struct {
	vendors map[string]string
}

// NewStaticVendorRepository creates a new static repository
func NewStaticVendorRepository(vendors map[string]string) *StaticVendorRepository {
	return &StaticVendorRepository{vendors: vendors}
}

// LookupVendor looks up a vendor in the static map
func (s *StaticVendorRepository) LookupVendor(_ context.Context, addr domain.HardwareAddress) (string, error) {
	if vendor, ok := s.vendors[addr.OUI()]; ok {
		return vendor, nil
	}
	return "", ErrVendorNotFound
}

// Close is a no-op for static repository
func (s *StaticVendorRepository) Close() error {
	return nil
}

// CommonOUIs covers the radios this access point usually talks to.
var CommonOUIs = map[string]string{
	"60:55:F9": "Espressif",
	"24:0A:C4": "Espressif",
	"30:AE:A4": "Espressif",
	"A4:CF:12": "Espressif",
	"7C:DF:A1": "Espressif",
	"DC:A6:32": "Raspberry Pi",
	"B8:27:EB": "Raspberry Pi",
	"00:0F:00": "Legra Systems",
	"00:C0:CA": "Alfa",
}

// Lookup adapts a VendorRepository to ports.VendorLookup. Locally
// administered addresses have no registered vendor and resolve to "".
type Lookup struct {
	repo VendorRepository
}

// NewLookup wraps repo.
func NewLookup(repo VendorRepository) *Lookup {
	return &Lookup{repo: repo}
}

var _ ports.VendorLookup = (*Lookup)(nil)

// Vendor returns the vendor name or "" when unknown.
func (l *Lookup) Vendor(ctx context.Context, addr domain.HardwareAddress) string {
	if l == nil || l.repo == nil || addr.IsZero() || addr.IsMulticast() || addr.IsLocallyAdministered() {
		return ""
	}
	vendor, err := l.repo.LookupVendor(ctx, addr)
	if err != nil {
		return ""
	}
	return vendor
}

// Close releases the underlying repository.
func (l *Lookup) Close() error {
	if l == nil || l.repo == nil {
		return nil
	}
	return l.repo.Close()
}
