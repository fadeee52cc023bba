package console

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"

	"github.com/lcalzada-xor/tagap/internal/core/domain"
	"github.com/lcalzada-xor/tagap/internal/telemetry"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func TestWriter_WritesRecordsInOrder(t *testing.T) {
	out := &syncBuffer{}
	w := NewWriter("stdout", out, 8, nil)

	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)

	w.Publish(domain.Capture{
		Device:      2,
		RSSI:        -50,
		NoiseFloor:  -95,
		Source:      "60:55:F9:F7:21:90",
		Destination: "FF:FF:FF:FF:FF:FF",
		Samples:     []int{1, 2},
	})
	w.HandleStationEvent(domain.StationEvent{
		Type:    domain.StationJoined,
		Address: domain.MustParseHardwareAddress("60:55:F9:F7:21:90"),
		AID:     1,
	})

	cancel()
	select {
	case <-w.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("writer did not stop")
	}

	want := "** Device 2 **\n" +
		"Received packet with RSSI -50 dB\n" +
		"Received packet with NOISE FLOOR -95 dBm\n" +
		"Source MAC address: 60:55:F9:F7:21:90\n" +
		"Destination MAC address: FF:FF:FF:FF:FF:FF\n" +
		"Payload (Decimal):\n" +
		"1 2\n" +
		"station 60:55:F9:F7:21:90 join, AID=1\n"
	assert.Equal(t, want, out.String())
}

func TestWriter_DropsWhenFull(t *testing.T) {
	w := NewWriter("console-test-full", &syncBuffer{}, 1, nil)
	before := testutil.ToFloat64(telemetry.CapturesDropped.WithLabelValues("console-test-full"))

	w.Publish(domain.Capture{Device: 1})
	w.Publish(domain.Capture{Device: 1})

	after := testutil.ToFloat64(telemetry.CapturesDropped.WithLabelValues("console-test-full"))
	assert.Equal(t, before+1, after)
}

func TestFormatStationEvent(t *testing.T) {
	ev := domain.StationEvent{
		Type:      domain.StationLeft,
		Address:   domain.MustParseHardwareAddress("60:55:f9:f7:16:a8"),
		AID:       3,
		Interface: "wlan0",
	}
	assert.Equal(t, "station 60:55:F9:F7:16:A8 leave, AID=3 (wlan0)\n", FormatStationEvent(ev))
}

func TestSerialMode(t *testing.T) {
	mode := SerialMode(0)
	require.NotNil(t, mode)
	assert.Equal(t, 115200, mode.BaudRate)
	assert.Equal(t, 8, mode.DataBits)
	assert.Equal(t, serial.NoParity, mode.Parity)
	assert.Equal(t, serial.OneStopBit, mode.StopBits)

	assert.Equal(t, 9600, SerialMode(9600).BaudRate)
}

func TestOpenSerial_MissingPort(t *testing.T) {
	_, err := OpenSerial("/dev/tagap-does-not-exist", 115200)
	assert.Error(t, err)
}

func TestWriter_JSONLines(t *testing.T) {
	out := &syncBuffer{}
	w := NewWriter("stdout-json", out, 4, nil)
	w.UseJSON()

	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)
	w.Publish(domain.Capture{ID: "j1", Device: 4, Samples: []int{}})
	cancel()
	<-w.Done()

	line := out.String()
	assert.True(t, strings.HasSuffix(line, "}\n"))
	assert.Contains(t, line, `"id":"j1"`)
	assert.Contains(t, line, `"device":4`)
	assert.Contains(t, line, `"samples":[]`)
}
