package capture

import (
	"context"
	"encoding/binary"
	"hash/crc32"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/lcalzada-xor/tagap/internal/core/domain"
	"github.com/lcalzada-xor/tagap/internal/core/ports"
)

// MockConfig tunes the synthetic traffic generator.
type MockConfig struct {
	Interval time.Duration // delay between frames
	Count    int           // frames to emit before returning; 0 runs until cancelled
	Samples  int           // samples per tagged frame
	Channel  int
	BSSID    domain.HardwareAddress
	Seed     uint64
}

// MockSource generates radiotap frames without a radio. Every fourth frame is
// noise: either from an unregistered station or untagged. The rest are tagged
// frames from the registered devices in turn.
type MockSource struct {
	devices []domain.KnownDevice
	cfg     MockConfig
	rng     *rand.Rand
	logger  *slog.Logger
}

var strangerAddress = domain.HardwareAddress{0x02, 0x00, 0x5E, 0x10, 0x20, 0x30}

// NewMockSource creates a generator for devices.
func NewMockSource(devices []domain.KnownDevice, cfg MockConfig, logger *slog.Logger) *MockSource {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.Samples <= 0 {
		cfg.Samples = 16
	}
	if cfg.Channel <= 0 {
		cfg.Channel = 1
	}
	if cfg.BSSID.IsZero() {
		cfg.BSSID = domain.HardwareAddress{0x02, 0xAA, 0xBB, 0xCC, 0xDD, 0xEE}
	}
	return &MockSource{
		devices: devices,
		cfg:     cfg,
		rng:     rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9E3779B97F4A7C15)),
		logger:  logger,
	}
}

var _ ports.FrameSource = (*MockSource)(nil)

// Run emits frames until ctx is cancelled or Count frames were produced.
func (m *MockSource) Run(ctx context.Context, sink ports.FrameSink) error {
	m.logger.Info("Mock capture started", "devices", len(m.devices), "interval", m.cfg.Interval.String())

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for n := 0; m.cfg.Count == 0 || n < m.cfg.Count; n++ {
		packet := m.next(n)
		frame, kind, err := ParseRadiotap(packet, time.Now(), m.cfg.Channel)
		if err != nil {
			return err
		}
		sink.HandleFrame(frame, kind)

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
	return nil
}

// Close is a no-op.
func (m *MockSource) Close() error { return nil }

func (m *MockSource) next(n int) []byte {
	rssi := -30 - m.rng.IntN(50)
	noise := -95 + m.rng.IntN(5)

	if len(m.devices) == 0 || n%4 == 3 {
		src := strangerAddress
		marker := byte(domain.TagMarker)
		if len(m.devices) > 0 && m.rng.IntN(2) == 0 {
			src = m.devices[m.rng.IntN(len(m.devices))].Address
			marker = 0x00
		}
		return EncodeRadiotap(m.dataFrame(src, marker), rssi, noise, m.cfg.Channel)
	}

	dev := m.devices[(n-n/4)%len(m.devices)]
	return EncodeRadiotap(m.dataFrame(dev.Address, domain.TagMarker), rssi, noise, m.cfg.Channel)
}

// dataFrame builds a ToDS data frame carrying marker, a reference byte and
// a sample ramp with jitter.
func (m *MockSource) dataFrame(src domain.HardwareAddress, marker byte) []byte {
	frame := make([]byte, domain.SampleOffset, domain.SampleOffset+m.cfg.Samples+domain.TrailerSize)
	frame[0] = 0x08 // data
	frame[1] = 0x01 // ToDS
	copy(frame[4:10], m.cfg.BSSID[:])
	copy(frame[10:16], src[:])
	copy(frame[16:22], m.cfg.BSSID[:])
	frame[domain.MarkerOffset] = marker

	ref := byte(64 + m.rng.IntN(128))
	frame[domain.ReferenceOffset] = ref
	for i := 0; i < m.cfg.Samples; i++ {
		frame = append(frame, ref+byte(i%8)-byte(m.rng.IntN(3)))
	}
	return binary.LittleEndian.AppendUint32(frame, crc32.ChecksumIEEE(frame))
}
