package capture

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/lcalzada-xor/tagap/internal/core/domain"
	"github.com/lcalzada-xor/tagap/internal/core/ports"
	"github.com/lcalzada-xor/tagap/internal/telemetry"
)

const recorderSink = "pcap"

// Recorder appends tagged frames to a radiotap pcap stream. Publish only
// queues; a background loop started by Start does the writing.
type Recorder struct {
	w      *pcapgo.Writer
	closer io.Closer
	queue  chan domain.Capture
	logger *slog.Logger
	done   chan struct{}
}

// NewRecorder writes the pcap file header to w.
func NewRecorder(w io.Writer, bufferSize int, logger *slog.Logger) (*Recorder, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pw := pcapgo.NewWriter(w)
	if err := pw.WriteFileHeader(snapLen, layers.LinkTypeIEEE80211Radio); err != nil {
		return nil, fmt.Errorf("write pcap header: %w", err)
	}
	r := &Recorder{
		w:      pw,
		queue:  make(chan domain.Capture, bufferSize),
		logger: logger,
		done:   make(chan struct{}),
	}
	if c, ok := w.(io.Closer); ok {
		r.closer = c
	}
	return r, nil
}

// CreateRecorder creates (or truncates) the pcap file at path.
func CreateRecorder(path string, bufferSize int, logger *slog.Logger) (*Recorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create pcap directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create pcap file %s: %w", path, err)
	}
	r, err := NewRecorder(f, bufferSize, logger)
	if err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

var _ ports.CaptureSink = (*Recorder)(nil)

// Publish queues the capture, dropping it when the queue is full.
func (r *Recorder) Publish(c domain.Capture) {
	if len(c.Frame) == 0 {
		return
	}
	select {
	case r.queue <- c:
	default:
		telemetry.CapturesDropped.WithLabelValues(recorderSink).Inc()
	}
}

// Start runs the writer loop until ctx is cancelled. Queued captures are
// written before the underlying file is closed and Done is closed.
func (r *Recorder) Start(ctx context.Context) {
	go func() {
		defer close(r.done)
		defer r.close()
		for {
			select {
			case <-ctx.Done():
				for {
					select {
					case c := <-r.queue:
						r.write(c)
					default:
						return
					}
				}
			case c := <-r.queue:
				r.write(c)
			}
		}
	}()
}

// Done is closed once the recorder has flushed and closed its output.
func (r *Recorder) Done() <-chan struct{} {
	return r.done
}

func (r *Recorder) write(c domain.Capture) {
	data := EncodeRadiotap(c.Frame, c.RSSI, c.NoiseFloor, c.Channel)
	ci := gopacket.CaptureInfo{
		Timestamp:     c.Timestamp,
		CaptureLength: len(data),
		Length:        len(data),
	}
	if err := r.w.WritePacket(ci, data); err != nil {
		telemetry.CapturesDropped.WithLabelValues(recorderSink).Inc()
		r.logger.Error("Error writing packet to pcap", "capture", c.ID, "error", err)
	}
}

func (r *Recorder) close() {
	if r.closer == nil {
		return
	}
	if err := r.closer.Close(); err != nil {
		r.logger.Error("Error closing pcap file", "error", err)
	}
}
