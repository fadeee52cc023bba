// Package console writes the human-readable record stream to stdout or a
// serial port.
package console

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"go.bug.st/serial"

	"github.com/lcalzada-xor/tagap/internal/core/domain"
	"github.com/lcalzada-xor/tagap/internal/core/services/reporting"
	"github.com/lcalzada-xor/tagap/internal/telemetry"
)

// Writer is a CaptureSink and StationEventSink that renders text records to
// an io.Writer from its own goroutine.
type Writer struct {
	name   string
	out    io.Writer
	render func(domain.Capture) string
	lines  chan string
	logger *slog.Logger
	done   chan struct{}
}

// NewWriter creates a Writer. name labels dropped-record metrics.
func NewWriter(name string, out io.Writer, bufferSize int, logger *slog.Logger) *Writer {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{
		name:   name,
		out:    out,
		render: reporting.FormatRecord,
		lines:  make(chan string, bufferSize),
		logger: logger,
		done:   make(chan struct{}),
	}
}

// UseJSON switches captures to one JSON object per line.
func (w *Writer) UseJSON() {
	w.render = FormatJSON
}

// Publish queues the text record of c.
func (w *Writer) Publish(c domain.Capture) {
	w.enqueue(w.render(c))
}

// HandleStationEvent queues a one-line station notice.
func (w *Writer) HandleStationEvent(ev domain.StationEvent) {
	w.enqueue(FormatStationEvent(ev))
}

func (w *Writer) enqueue(s string) {
	select {
	case w.lines <- s:
	default:
		telemetry.CapturesDropped.WithLabelValues(w.name).Inc()
	}
}

// Start writes queued records until ctx is cancelled, then drains the queue.
func (w *Writer) Start(ctx context.Context) {
	go func() {
		defer close(w.done)
		for {
			select {
			case s := <-w.lines:
				w.write(s)
			case <-ctx.Done():
				for {
					select {
					case s := <-w.lines:
						w.write(s)
					default:
						return
					}
				}
			}
		}
	}()
}

// Done is closed after Start's goroutine has drained.
func (w *Writer) Done() <-chan struct{} {
	return w.done
}

func (w *Writer) write(s string) {
	if _, err := io.WriteString(w.out, s); err != nil {
		w.logger.Warn("console write failed", "sink", w.name, "error", err)
	}
}

// FormatStationEvent renders a station notice, e.g.
// "station 60:55:F9:F7:16:A8 join, AID=1\n".
func FormatStationEvent(ev domain.StationEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "station %s %s, AID=%d", ev.Address, ev.Type, ev.AID)
	if ev.Interface != "" {
		fmt.Fprintf(&b, " (%s)", ev.Interface)
	}
	b.WriteByte('\n')
	return b.String()
}

// FormatJSON renders c as a single JSON line.
func FormatJSON(c domain.Capture) string {
	b, err := json.Marshal(c)
	if err != nil {
		return fmt.Sprintf("{\"error\":%q}\n", err.Error())
	}
	return string(b) + "\n"
}

// SerialMode is the 8N1 UART framing at baud.
func SerialMode(baud int) *serial.Mode {
	if baud <= 0 {
		baud = 115200
	}
	return &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
}

// OpenSerial opens a serial port for writing records.
func OpenSerial(path string, baud int) (serial.Port, error) {
	port, err := serial.Open(path, SerialMode(baud))
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", path, err)
	}
	return port, nil
}
