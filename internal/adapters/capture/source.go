package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"

	"github.com/lcalzada-xor/tagap/internal/core/ports"
	"github.com/lcalzada-xor/tagap/internal/telemetry"
)

const (
	snapLen     = 65536
	readTimeout = 500 * time.Millisecond
)

// LiveSource captures from a monitor-mode interface.
type LiveSource struct {
	handle  *pcap.Handle
	iface   string
	channel int
	logger  *slog.Logger
}

// OpenLive opens iface in promiscuous mode. filter is an optional BPF
// expression. channel annotates frames whose radiotap header has no channel.
func OpenLive(iface, filter string, channel int, logger *slog.Logger) (*LiveSource, error) {
	if logger == nil {
		logger = slog.Default()
	}

	handle, err := pcap.OpenLive(iface, snapLen, true, readTimeout)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", iface, err)
	}
	if lt := handle.LinkType(); lt != layers.LinkTypeIEEE80211Radio {
		handle.Close()
		return nil, fmt.Errorf("%s reports link type %s: %w", iface, lt, ErrUnsupportedLinkType)
	}
	if filter != "" {
		if err := handle.SetBPFFilter(filter); err != nil {
			handle.Close()
			return nil, fmt.Errorf("failed to set BPF filter '%s': %w", filter, err)
		}
		logger.Info("BPF filter set", "interface", iface, "filter", filter)
	}

	return &LiveSource{handle: handle, iface: iface, channel: channel, logger: logger}, nil
}

var _ ports.FrameSource = (*LiveSource)(nil)

// Run delivers frames to sink until ctx is cancelled.
func (s *LiveSource) Run(ctx context.Context, sink ports.FrameSink) error {
	s.logger.Info("Capture started", "interface", s.iface, "channel", s.channel)
	err := run(ctx, s.handle, s.handle.LinkType(), s.channel, sink, s.logger)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close releases the pcap handle.
func (s *LiveSource) Close() error {
	s.handle.Close()
	return nil
}

// ReplaySource feeds frames from a pcap file recorded with radiotap headers.
type ReplaySource struct {
	handle  *pcap.Handle
	path    string
	channel int
	logger  *slog.Logger
}

// OpenReplay opens a pcap file for replay.
func OpenReplay(path string, channel int, logger *slog.Logger) (*ReplaySource, error) {
	if logger == nil {
		logger = slog.Default()
	}
	handle, err := pcap.OpenOffline(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PCAP file %s: %w", path, err)
	}
	if lt := handle.LinkType(); lt != layers.LinkTypeIEEE80211Radio {
		handle.Close()
		return nil, fmt.Errorf("%s has link type %s: %w", path, lt, ErrUnsupportedLinkType)
	}
	return &ReplaySource{handle: handle, path: path, channel: channel, logger: logger}, nil
}

var _ ports.FrameSource = (*ReplaySource)(nil)

// Run replays the file once and returns nil at end of file.
func (s *ReplaySource) Run(ctx context.Context, sink ports.FrameSink) error {
	s.logger.Info("Replaying capture", "path", s.path)
	return run(ctx, s.handle, s.handle.LinkType(), s.channel, sink, s.logger)
}

// Close releases the pcap handle.
func (s *ReplaySource) Close() error {
	s.handle.Close()
	return nil
}

// run drains src into sink. It returns nil when src is exhausted and
// ctx.Err() when cancelled.
func run(ctx context.Context, src gopacket.PacketDataSource, lt layers.LinkType, channel int, sink ports.FrameSink, logger *slog.Logger) error {
	packetSource := gopacket.NewPacketSource(src, lt)
	packetSource.Lazy = true
	packets := packetSource.Packets()

	count := 0
	start := time.Now()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Capture stopping", "packets", count)
			return ctx.Err()
		case packet, ok := <-packets:
			if !ok || packet == nil {
				logger.Info("Capture source exhausted", "packets", count, "elapsed", time.Since(start).String())
				return nil
			}
			count++

			frame, kind, err := ParseRadiotap(packet.Data(), packet.Metadata().Timestamp, channel)
			if err != nil {
				telemetry.FramesMalformed.Inc()
				logger.Debug("Dropping undecodable packet", "packet", count, "error", err)
				continue
			}
			sink.HandleFrame(frame, kind)
		}
	}
}
