package collector

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/lcalzada-xor/tagap/internal/core/domain"
	"github.com/lcalzada-xor/tagap/internal/syncutil"
	"github.com/lcalzada-xor/tagap/internal/telemetry"
)

const (
	sinkName       = "forward"
	retryBackoff   = 2 * time.Second
	closeSendLimit = 5 * time.Second
)

// Dial opens an insecure client connection to a collector.
func Dial(addr string, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect collector %s: %w", addr, err)
	}
	return conn, nil
}

// Forwarder is a CaptureSink that streams captures to a collector. A broken
// stream is reopened on the next capture after a short backoff; captures
// arriving while the collector is unreachable are dropped.
type Forwarder struct {
	conn   *grpc.ClientConn
	queue  chan domain.Capture
	logger *slog.Logger
	done   chan struct{}

	sent      int
	retryTime time.Time

	mu      syncutil.Mutex
	summary ReportSummary
}

// NewForwarder creates a Forwarder over conn. The Forwarder does not own conn.
func NewForwarder(conn *grpc.ClientConn, bufferSize int, logger *slog.Logger) *Forwarder {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Forwarder{
		conn:   conn,
		queue:  make(chan domain.Capture, bufferSize),
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Publish queues a capture without blocking.
func (f *Forwarder) Publish(c domain.Capture) {
	select {
	case f.queue <- c:
	default:
		telemetry.CapturesDropped.WithLabelValues(sinkName).Inc()
	}
}

// Start streams queued captures until ctx is cancelled. Remaining captures
// are flushed and the stream is closed before Done is signalled.
func (f *Forwarder) Start(ctx context.Context) {
	go func() {
		defer close(f.done)

		// The stream outlives ctx so the final flush can complete.
		streamCtx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var stream grpc.ClientStream
		for {
			select {
			case c := <-f.queue:
				stream = f.send(streamCtx, stream, c)
			case <-ctx.Done():
				for {
					select {
					case c := <-f.queue:
						stream = f.send(streamCtx, stream, c)
					default:
						f.closeStream(stream)
						return
					}
				}
			}
		}
	}()
}

// Done is closed after the stream has been flushed and closed.
func (f *Forwarder) Done() <-chan struct{} {
	return f.done
}

// Summary returns the collector's reply to the last closed stream. It may be
// called while the forwarder is still running.
func (f *Forwarder) Summary() ReportSummary {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.summary
}

func (f *Forwarder) send(ctx context.Context, stream grpc.ClientStream, c domain.Capture) grpc.ClientStream {
	msg, err := CaptureToStruct(c)
	if err != nil {
		f.logger.Warn("cannot encode capture", "id", c.ID, "error", err)
		return stream
	}

	if stream == nil {
		if time.Now().Before(f.retryTime) {
			telemetry.CapturesDropped.WithLabelValues(sinkName).Inc()
			return nil
		}
		stream, err = f.conn.NewStream(ctx, &ServiceDesc.Streams[0], reportMethod)
		if err != nil {
			f.fail("open collector stream", err)
			return nil
		}
		f.logger.Info("collector stream opened", "target", f.conn.Target())
	}

	if err := stream.SendMsg(msg); err != nil {
		f.fail("forward capture", err)
		return nil
	}
	f.sent++
	return stream
}

func (f *Forwarder) fail(op string, err error) {
	telemetry.CapturesDropped.WithLabelValues(sinkName).Inc()
	f.retryTime = time.Now().Add(retryBackoff)
	f.logger.Warn("collector unavailable", "op", op, "error", err)
}

func (f *Forwarder) closeStream(stream grpc.ClientStream) {
	if stream == nil {
		return
	}
	if err := stream.CloseSend(); err != nil {
		f.logger.Warn("close collector stream", "error", err)
		return
	}

	reply := new(structpb.Struct)
	result := make(chan error, 1)
	go func() { result <- stream.RecvMsg(reply) }()

	select {
	case err := <-result:
		if err != nil {
			f.logger.Warn("collector reply", "error", err)
			return
		}
		summary, err := summaryFromStruct(reply)
		if err != nil {
			f.logger.Warn("collector reply", "error", err)
			return
		}
		f.mu.Lock()
		f.summary = summary
		f.mu.Unlock()
		f.logger.Info("collector stream closed", "sent", f.sent, "accepted", summary.Accepted, "rejected", summary.Rejected)
	case <-time.After(closeSendLimit):
		f.logger.Warn("collector did not acknowledge stream close")
	}
}
