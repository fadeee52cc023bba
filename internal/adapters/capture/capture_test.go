package capture

import (
	"bytes"
	"context"
	"encoding/binary"
	"hash/crc32"
	"sync"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/tagap/internal/core/domain"
	"github.com/lcalzada-xor/tagap/internal/core/services/pipeline"
	"github.com/lcalzada-xor/tagap/internal/core/services/registry"
	"github.com/lcalzada-xor/tagap/internal/testutil"
)

type frameRecorder struct {
	mu     sync.Mutex
	frames []domain.CapturedFrame
	kinds  []domain.FrameKind
}

func (r *frameRecorder) HandleFrame(f domain.CapturedFrame, k domain.FrameKind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, f)
	r.kinds = append(r.kinds, k)
}

// buildRadiotap returns a minimal header: flags, dBm signal, dBm noise.
func buildRadiotap(flags byte, signal, noise int8) []byte {
	return []byte{
		0x00, 0x00, // version, pad
		0x0b, 0x00, // length 11
		0x62, 0x00, 0x00, 0x00, // present: flags | dbm signal | dbm noise
		flags,
		byte(signal),
		byte(noise),
	}
}

var station = domain.MustParseHardwareAddress("AA:BB:CC:DD:EE:01")

func TestParseRadiotap_WithFCS(t *testing.T) {
	raw := testutil.NewDataFrame(testutil.Device1, station).Tagged(0xAB, 100, 102, 98, 100, 105).Bytes()
	data := append(buildRadiotap(byte(layers.RadioTapFlagsFCS), -41, -96), raw...)
	ts := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	frame, kind, err := ParseRadiotap(data, ts, 6)
	require.NoError(t, err)
	assert.Equal(t, domain.FrameKindData, kind)
	assert.Equal(t, raw, frame.Payload)
	assert.Equal(t, len(raw), frame.Length)
	assert.Equal(t, -41, frame.RSSI)
	assert.Equal(t, -96, frame.NoiseFloor)
	assert.Equal(t, 6, frame.Channel)
	assert.Equal(t, ts, frame.Timestamp)
}

func TestParseRadiotap_AppendsStrippedFCS(t *testing.T) {
	raw := testutil.NewDataFrame(testutil.Device1, station).Tagged(0xAB, 100, 102, 98, 100, 105).Bytes()
	stripped := raw[:len(raw)-4]
	data := append(buildRadiotap(0, -50, -90), stripped...)

	frame, _, err := ParseRadiotap(data, time.Time{}, 1)
	require.NoError(t, err)
	require.Len(t, frame.Payload, len(raw))
	assert.Equal(t, raw, frame.Payload)

	c := pipeline.Classify(registry.NewDefault(), frame, domain.FrameKindData)
	assert.Equal(t, []int{2, -2, 0, 5}, pipeline.Decode(c))
}

func TestParseRadiotap_BadFCS(t *testing.T) {
	raw := testutil.NewDataFrame(testutil.Device1, station).Bytes()
	data := append(buildRadiotap(byte(layers.RadioTapFlagsFCS|layers.RadioTapFlagsBadFCS), -50, -90), raw...)

	_, _, err := ParseRadiotap(data, time.Time{}, 1)
	assert.ErrorIs(t, err, ErrBadFCS)
}

func TestParseRadiotap_Truncated(t *testing.T) {
	_, _, err := ParseRadiotap([]byte{0x00, 0x00}, time.Time{}, 1)
	assert.ErrorIs(t, err, ErrTruncated)

	_, _, err = ParseRadiotap([]byte{0x00, 0x00, 0x40, 0x00, 0x00, 0x00, 0x00, 0x00}, time.Time{}, 1)
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestEncodeRadiotap_RoundTrip(t *testing.T) {
	raw := testutil.NewDataFrame(testutil.Device1, station).Tagged(0xAB, 10, 11).Bytes()

	for _, ch := range []int{1, 6, 13, 14, 36} {
		frame, kind, err := ParseRadiotap(EncodeRadiotap(raw, -67, -92, ch), time.Time{}, 0)
		require.NoError(t, err, "channel %d", ch)
		assert.Equal(t, domain.FrameKindData, kind)
		assert.Equal(t, raw, frame.Payload)
		assert.Equal(t, -67, frame.RSSI)
		assert.Equal(t, -92, frame.NoiseFloor)
		assert.Equal(t, ch, frame.Channel)
	}
}

func TestFrameKindOf(t *testing.T) {
	assert.Equal(t, domain.FrameKindMgmt, FrameKindOf([]byte{0x80})) // beacon
	assert.Equal(t, domain.FrameKindCtrl, FrameKindOf([]byte{0xD4})) // ack
	assert.Equal(t, domain.FrameKindData, FrameKindOf([]byte{0x88})) // qos data
	assert.Equal(t, domain.FrameKindMisc, FrameKindOf([]byte{0x0C}))
	assert.Equal(t, domain.FrameKindMisc, FrameKindOf(nil))
}

func TestFrequencyChannelMapping(t *testing.T) {
	assert.Equal(t, 1, FrequencyToChannel(2412))
	assert.Equal(t, 13, FrequencyToChannel(2472))
	assert.Equal(t, 14, FrequencyToChannel(2484))
	assert.Equal(t, 36, FrequencyToChannel(5180))
	assert.Equal(t, 0, FrequencyToChannel(900))
	assert.Equal(t, 2437, ChannelToFrequency(6))
	assert.Equal(t, 0, ChannelToFrequency(0))
}

func writePcap(t *testing.T, packets ...[]byte) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	w := pcapgo.NewWriter(&buf)
	require.NoError(t, w.WriteFileHeader(snapLen, layers.LinkTypeIEEE80211Radio))
	for i, p := range packets {
		ci := gopacket.CaptureInfo{Timestamp: time.Unix(int64(1700000000+i), 0), CaptureLength: len(p), Length: len(p)}
		require.NoError(t, w.WritePacket(ci, p))
	}
	return &buf
}

func TestRun_ReplaysUntilEOF(t *testing.T) {
	tagged := testutil.NewDataFrame(testutil.Device1, station).Tagged(0xAB, 1, 2, 3).Bytes()
	beacon := testutil.NewDataFrame(station, domain.BroadcastAddress).WithFrameControl(0x80).Bytes()

	buf := writePcap(t,
		EncodeRadiotap(tagged, -40, -95, 1),
		[]byte{0x00, 0x00, 0xff, 0x00, 0x02, 0x00, 0x00, 0x00}, // header longer than packet
		EncodeRadiotap(beacon, -70, -95, 1),
	)
	reader, err := pcapgo.NewReader(buf)
	require.NoError(t, err)

	sink := &frameRecorder{}
	err = run(context.Background(), reader, reader.LinkType(), 1, sink, testLogger())
	require.NoError(t, err)

	require.Len(t, sink.frames, 2)
	assert.Equal(t, []domain.FrameKind{domain.FrameKindData, domain.FrameKindMgmt}, sink.kinds)
	assert.True(t, time.Unix(1700000000, 0).Equal(sink.frames[0].Timestamp))
}

func TestRecorder_WritesReadablePcap(t *testing.T) {
	var buf bytes.Buffer
	rec, err := NewRecorder(&buf, 8, testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	rec.Start(ctx)

	raw := testutil.NewDataFrame(testutil.Device1, station).Tagged(0xAB, 100, 102, 98).Bytes()
	ts := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	rec.Publish(domain.Capture{ID: "a", RSSI: -41, NoiseFloor: -96, Channel: 1, Timestamp: ts, Frame: raw})
	rec.Publish(domain.Capture{ID: "no-frame"})
	rec.Publish(domain.Capture{ID: "b", RSSI: -55, NoiseFloor: -90, Channel: 11, Timestamp: ts.Add(time.Second), Frame: raw})
	cancel()

	select {
	case <-rec.Done():
	case <-time.After(time.Second):
		t.Fatal("recorder did not stop")
	}

	reader, err := pcapgo.NewReader(&buf)
	require.NoError(t, err)
	assert.Equal(t, layers.LinkTypeIEEE80211Radio, reader.LinkType())

	sink := &frameRecorder{}
	require.NoError(t, run(context.Background(), reader, reader.LinkType(), 0, sink, testLogger()))
	require.Len(t, sink.frames, 2)
	assert.Equal(t, raw, sink.frames[0].Payload)
	assert.Equal(t, -41, sink.frames[0].RSSI)
	assert.Equal(t, 11, sink.frames[1].Channel)
	assert.True(t, ts.Equal(sink.frames[0].Timestamp))
}

func TestMockSource_FeedsPipeline(t *testing.T) {
	reg := registry.NewDefault()
	sink := &frameRecorder{}
	src := NewMockSource(reg.Devices(), MockConfig{Interval: time.Millisecond, Count: 8, Samples: 10, Seed: 7}, testLogger())

	require.NoError(t, src.Run(context.Background(), sink))
	require.Len(t, sink.frames, 8)

	tagged := 0
	for i, f := range sink.frames {
		assert.Equal(t, domain.FrameKindData, sink.kinds[i])
		c := pipeline.Classify(reg, f, sink.kinds[i])
		if c.Tagged {
			tagged++
			assert.Len(t, pipeline.Decode(c), 10)
		}
		// FCS is valid on every generated frame.
		body := f.Payload[:f.Len()-4]
		assert.Equal(t, crc32.ChecksumIEEE(body), binary.LittleEndian.Uint32(f.Payload[f.Len()-4:]))
	}
	assert.Equal(t, 6, tagged)
}

func TestMockSource_StopsOnCancel(t *testing.T) {
	src := NewMockSource(registry.DefaultDevices, MockConfig{Interval: time.Hour}, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	sink := &frameRecorder{}

	done := make(chan error, 1)
	go func() { done <- src.Run(ctx, sink) }()

	assert.Eventually(t, func() bool {
		sink.mu.Lock()
		defer sink.mu.Unlock()
		return len(sink.frames) == 1
	}, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("mock source did not stop")
	}
}
