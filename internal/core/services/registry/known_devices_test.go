package registry

import (
	"sync"
	"testing"

	"github.com/lcalzada-xor/tagap/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_DefaultDevices(t *testing.T) {
	reg := NewDefault()
	require.Equal(t, 4, reg.Len())

	tests := []struct {
		mac  string
		want domain.DeviceID
	}{
		{"60:55:F9:F7:16:A8", 1},
		{"60:55:F9:F7:21:90", 2},
		{"60:55:F9:F7:2B:BC", 3},
		{"60:55:F9:F7:16:BC", 4},
	}

	seen := map[domain.DeviceID]bool{}
	for _, tt := range tests {
		t.Run(tt.mac, func(t *testing.T) {
			addr := domain.MustParseHardwareAddress(tt.mac)
			got := reg.Resolve(addr)
			assert.Equal(t, tt.want, got)
			// Pure: repeated calls are stable
			assert.Equal(t, got, reg.Resolve(addr))
			seen[got] = true
		})
	}
	assert.Len(t, seen, 4, "ids must be distinct")
}

func TestResolve_Unknown(t *testing.T) {
	reg := NewDefault()

	unknown := []domain.HardwareAddress{
		domain.ZeroAddress,
		domain.BroadcastAddress,
		domain.MustParseHardwareAddress("60:55:F9:F7:16:A9"),
		domain.MustParseHardwareAddress("A8:16:F7:F9:55:60"),
	}
	for _, addr := range unknown {
		assert.Equal(t, domain.UnknownDevice, reg.Resolve(addr), addr.String())
	}
}

func TestNew_Validation(t *testing.T) {
	a := domain.MustParseHardwareAddress("02:00:00:00:00:01")
	b := domain.MustParseHardwareAddress("02:00:00:00:00:02")

	_, err := New([]domain.KnownDevice{{Address: a, ID: 0}})
	assert.ErrorIs(t, err, domain.ErrInvalidDevice)

	_, err = New([]domain.KnownDevice{{Address: a, ID: 1}, {Address: a, ID: 2}})
	assert.ErrorIs(t, err, domain.ErrDuplicateEntry)

	_, err = New([]domain.KnownDevice{{Address: a, ID: 1}, {Address: b, ID: 1}})
	assert.ErrorIs(t, err, domain.ErrDuplicateEntry)

	reg, err := New(nil)
	require.NoError(t, err)
	assert.Equal(t, domain.UnknownDevice, reg.Resolve(a))
}

func TestSyntheticRegistry(t *testing.T) {
	a := domain.MustParseHardwareAddress("02:00:00:00:00:0a")
	reg, err := New([]domain.KnownDevice{
		{Address: domain.MustParseHardwareAddress("02:00:00:00:00:0b"), ID: 7},
		{Address: a, ID: 3, Label: "bench"},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.DeviceID(3), reg.Resolve(a))
	assert.Equal(t, "bench", reg.Label(3))
	assert.Equal(t, "Device 7", reg.Label(7))
	assert.Equal(t, "", reg.Label(99))

	devs := reg.Devices()
	require.Len(t, devs, 2)
	assert.Equal(t, domain.DeviceID(3), devs[0].ID)
	assert.Equal(t, domain.DeviceID(7), devs[1].ID)

	devs[0].ID = 42
	assert.Equal(t, domain.DeviceID(3), reg.Devices()[0].ID, "Devices must return a copy")
}

func TestResolve_ConcurrentReads(t *testing.T) {
	reg := NewDefault()
	addr := DefaultDevices[2].Address

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				if reg.Resolve(addr) != 3 {
					t.Error("unexpected id")
					return
				}
			}
		}()
	}
	wg.Wait()
}
