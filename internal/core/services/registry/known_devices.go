package registry

import (
	"fmt"
	"sort"

	"github.com/lcalzada-xor/tagap/internal/core/domain"
)

// DefaultDevices is the reference peer set used when no devices file is configured.
var DefaultDevices = []domain.KnownDevice{
	{Address: domain.HardwareAddress{0x60, 0x55, 0xf9, 0xf7, 0x16, 0xa8}, ID: 1},
	{Address: domain.HardwareAddress{0x60, 0x55, 0xf9, 0xf7, 0x21, 0x90}, ID: 2},
	{Address: domain.HardwareAddress{0x60, 0x55, 0xf9, 0xf7, 0x2b, 0xbc}, ID: 3},
	{Address: domain.HardwareAddress{0x60, 0x55, 0xf9, 0xf7, 0x16, 0xbc}, ID: 4},
}

// KnownDevices is the immutable set of peers whose frames may carry a tag.
// It is built once and only read afterwards, so it needs no locking.
type KnownDevices struct {
	byAddress map[domain.HardwareAddress]domain.DeviceID
	byID      map[domain.DeviceID]domain.KnownDevice
	devices   []domain.KnownDevice
}

// New validates entries and builds the registry. Addresses and ids must be
// unique and ids must be positive.
func New(entries []domain.KnownDevice) (*KnownDevices, error) {
	r := &KnownDevices{
		byAddress: make(map[domain.HardwareAddress]domain.DeviceID, len(entries)),
		byID:      make(map[domain.DeviceID]domain.KnownDevice, len(entries)),
		devices:   make([]domain.KnownDevice, 0, len(entries)),
	}

	for _, e := range entries {
		if e.ID <= domain.UnknownDevice {
			return nil, &domain.ValidationError{Field: "id", Value: e.ID.String(), Err: domain.ErrInvalidDevice}
		}
		if prev, dup := r.byAddress[e.Address]; dup {
			return nil, fmt.Errorf("address %s already registered as device %d: %w", e.Address, prev, domain.ErrDuplicateEntry)
		}
		if _, dup := r.byID[e.ID]; dup {
			return nil, fmt.Errorf("device id %d registered twice: %w", e.ID, domain.ErrDuplicateEntry)
		}
		r.byAddress[e.Address] = e.ID
		r.byID[e.ID] = e
		r.devices = append(r.devices, e)
	}

	sort.Slice(r.devices, func(i, j int) bool { return r.devices[i].ID < r.devices[j].ID })
	return r, nil
}

// NewDefault builds the registry from DefaultDevices.
func NewDefault() *KnownDevices {
	r, err := New(DefaultDevices)
	if err != nil {
		panic(fmt.Sprintf("default device table is invalid: %v", err))
	}
	return r
}

// Resolve returns the id registered for addr, or domain.UnknownDevice.
func (r *KnownDevices) Resolve(addr domain.HardwareAddress) domain.DeviceID {
	return r.byAddress[addr]
}

// Label returns the display name of a registered device, "" if unknown.
func (r *KnownDevices) Label(id domain.DeviceID) string {
	d, ok := r.byID[id]
	if !ok {
		return ""
	}
	return d.DisplayName()
}

// Devices returns a copy of the entries ordered by id.
func (r *KnownDevices) Devices() []domain.KnownDevice {
	out := make([]domain.KnownDevice, len(r.devices))
	copy(out, r.devices)
	return out
}

// Len returns the number of registered devices.
func (r *KnownDevices) Len() int {
	return len(r.devices)
}
