package collector

import (
	"context"
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/lcalzada-xor/tagap/internal/core/domain"
	"github.com/lcalzada-xor/tagap/internal/core/services/reporting"
)

type captureRecorder struct {
	mu       sync.Mutex
	captures []domain.Capture
}

func (r *captureRecorder) Publish(c domain.Capture) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.captures = append(r.captures, c)
}

func (r *captureRecorder) list() []domain.Capture {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Capture(nil), r.captures...)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func sampleCapture(id string) domain.Capture {
	samples := []int{2, -2, 0, 127, -128}
	return domain.Capture{
		ID:                id,
		Device:            2,
		Label:             "Device 2",
		RSSI:              -47,
		NoiseFloor:        -96,
		Channel:           1,
		Source:            "60:55:F9:F7:21:90",
		Destination:       "FF:FF:FF:FF:FF:FF",
		SourceVendor:      "Espressif",
		Samples:           samples,
		Summary:           reporting.Summarize(samples),
		Timestamp:         time.Date(2026, 5, 6, 7, 8, 9, 123456789, time.UTC),
		Frame:             []byte{0x08, 0x00, 0xAB, 0xCD},
		DestinationVendor: "",
	}
}

// startCollector serves a Collector over an in-memory listener.
func startCollector(t *testing.T, sink *captureRecorder) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := NewServer(NewCollector(quietLogger(), sink))
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn, err := Dial("passthrough:///bufnet", grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestCodec_RoundTrip(t *testing.T) {
	want := sampleCapture("c-1")

	s, err := CaptureToStruct(want)
	require.NoError(t, err)
	got, err := CaptureFromStruct(s)
	require.NoError(t, err)

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("capture mismatch (-want +got):\n%s", diff)
	}
}

func TestCodec_EmptySamples(t *testing.T) {
	c := sampleCapture("c-2")
	c.Samples = []int{}
	c.Frame = nil

	s, err := CaptureToStruct(c)
	require.NoError(t, err)
	got, err := CaptureFromStruct(s)
	require.NoError(t, err)
	assert.NotNil(t, got.Samples)
	assert.Empty(t, got.Samples)
	assert.Nil(t, got.Frame)
}

func TestCodec_RejectsMalformed(t *testing.T) {
	cases := map[string]map[string]any{
		"missing id":     {"device": 1},
		"zero device":    {"id": "x", "device": 0},
		"bad timestamp":  {"id": "x", "device": 1, "timestamp": "noon"},
		"bad frame data": {"id": "x", "device": 1, "frame": "***"},
	}
	for name, fields := range cases {
		t.Run(name, func(t *testing.T) {
			s, err := structpb.NewStruct(fields)
			require.NoError(t, err)
			_, err = CaptureFromStruct(s)
			assert.ErrorIs(t, err, ErrMalformedCapture)
		})
	}
}

func TestForwarder_StreamsToCollector(t *testing.T) {
	sink := &captureRecorder{}
	conn := startCollector(t, sink)

	fwd := NewForwarder(conn, 16, quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	fwd.Start(ctx)

	for _, id := range []string{"a", "b", "c"} {
		fwd.Publish(sampleCapture(id))
	}
	require.Eventually(t, func() bool { return len(sink.list()) == 3 }, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-fwd.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("forwarder did not stop")
	}

	assert.Equal(t, ReportSummary{Accepted: 3}, fwd.Summary())

	got := sink.list()
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "c", got[2].ID)
	assert.Equal(t, []int{2, -2, 0, 127, -128}, got[1].Samples)
}

func TestCollector_CountsRejected(t *testing.T) {
	sink := &captureRecorder{}
	conn := startCollector(t, sink)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	stream, err := conn.NewStream(ctx, &ServiceDesc.Streams[0], reportMethod)
	require.NoError(t, err)

	bad, err := structpb.NewStruct(map[string]any{"label": "no id"})
	require.NoError(t, err)
	good, err := CaptureToStruct(sampleCapture("ok"))
	require.NoError(t, err)

	require.NoError(t, stream.SendMsg(bad))
	require.NoError(t, stream.SendMsg(good))
	require.NoError(t, stream.CloseSend())

	reply := new(structpb.Struct)
	require.NoError(t, stream.RecvMsg(reply))
	summary, err := summaryFromStruct(reply)
	require.NoError(t, err)
	assert.Equal(t, ReportSummary{Accepted: 1, Rejected: 1}, summary)
	require.Len(t, sink.list(), 1)
}

func TestForwarder_DropsWhileCollectorDown(t *testing.T) {
	lis := bufconn.Listen(1 << 16)
	lis.Close()
	conn, err := Dial("passthrough:///bufnet", grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	require.NoError(t, err)
	defer conn.Close()

	fwd := NewForwarder(conn, 4, quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	fwd.Start(ctx)
	fwd.Publish(sampleCapture("lost"))
	cancel()

	select {
	case <-fwd.Done():
	case <-time.After(15 * time.Second):
		t.Fatal("forwarder blocked on an unreachable collector")
	}
	assert.Equal(t, ReportSummary{}, fwd.Summary())
}

func TestForwarder_SummaryReadableWhileClosing(t *testing.T) {
	sink := &captureRecorder{}
	conn := startCollector(t, sink)

	fwd := NewForwarder(conn, 16, quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	fwd.Start(ctx)
	fwd.Publish(sampleCapture("a"))
	fwd.Publish(sampleCapture("b"))
	require.Eventually(t, func() bool { return len(sink.list()) == 2 }, 5*time.Second, 10*time.Millisecond)

	// Readers race the stream close under -race.
	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					_ = fwd.Summary()
				}
			}
		}()
	}

	cancel()
	select {
	case <-fwd.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("forwarder did not stop")
	}
	close(stop)
	wg.Wait()

	assert.Equal(t, ReportSummary{Accepted: 2}, fwd.Summary())
}
