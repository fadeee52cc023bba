package collector

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/lcalzada-xor/tagap/internal/core/ports"
)

const (
	// ServiceName is the fully qualified gRPC service name.
	ServiceName = "tagap.v1.CaptureCollector"

	reportStream = "Report"
	reportMethod = "/" + ServiceName + "/" + reportStream
)

// collectorServer is the interface the service descriptor dispatches to.
type collectorServer interface {
	Report(stream grpc.ServerStream) error
}

// ServiceDesc describes the client-streaming Report RPC. Messages are
// google.protobuf.Struct values encoded with CaptureToStruct.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*collectorServer)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    reportStream,
			Handler:       reportHandler,
			ClientStreams: true,
		},
	},
	Metadata: "tagap/v1/collector",
}

func reportHandler(srv any, stream grpc.ServerStream) error {
	return srv.(collectorServer).Report(stream)
}

// Collector receives forwarded captures and hands them to its sinks.
type Collector struct {
	sinks  []ports.CaptureSink
	logger *slog.Logger
}

// NewCollector creates a Collector publishing to sinks.
func NewCollector(logger *slog.Logger, sinks ...ports.CaptureSink) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{sinks: sinks, logger: logger}
}

// Register adds the collector service to s.
func (c *Collector) Register(s *grpc.Server) {
	s.RegisterService(&ServiceDesc, c)
}

// NewServer returns a gRPC server with the collector registered.
func NewServer(c *Collector, opts ...grpc.ServerOption) *grpc.Server {
	s := grpc.NewServer(opts...)
	c.Register(s)
	return s
}

// Report consumes one forwarder stream. The reply counts accepted and
// rejected messages.
func (c *Collector) Report(stream grpc.ServerStream) error {
	var accepted, rejected int
	for {
		msg := new(structpb.Struct)
		err := stream.RecvMsg(msg)
		if errors.Is(err, io.EOF) {
			reply, err := structpb.NewStruct(map[string]any{
				"accepted": accepted,
				"rejected": rejected,
			})
			if err != nil {
				return status.Errorf(codes.Internal, "build reply: %v", err)
			}
			return stream.SendMsg(reply)
		}
		if err != nil {
			return err
		}

		capture, err := CaptureFromStruct(msg)
		if err != nil {
			rejected++
			c.logger.Warn("rejected forwarded capture", "error", err)
			continue
		}
		accepted++

		c.logger.Info("forwarded capture",
			"id", capture.ID,
			"device", int(capture.Device),
			"rssi", capture.RSSI,
			"samples", capture.Samples,
		)
		for _, sink := range c.sinks {
			sink.Publish(capture)
		}
	}
}

// ReportSummary is the collector's reply to a closed stream.
type ReportSummary struct {
	Accepted int
	Rejected int
}

func summaryFromStruct(s *structpb.Struct) (ReportSummary, error) {
	f := s.GetFields()
	if f == nil {
		return ReportSummary{}, fmt.Errorf("empty report summary")
	}
	return ReportSummary{
		Accepted: int(f["accepted"].GetNumberValue()),
		Rejected: int(f["rejected"].GetNumberValue()),
	}, nil
}
