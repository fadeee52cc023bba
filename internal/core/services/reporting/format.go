package reporting

import (
	"strconv"
	"strings"

	"github.com/lcalzada-xor/tagap/internal/core/domain"
)

// FormatRecord renders a capture in the line-oriented console format. The
// result always ends with a newline.
func FormatRecord(c domain.Capture) string {
	var b strings.Builder
	b.Grow(160 + 5*len(c.Samples))

	b.WriteString("** Device ")
	b.WriteString(c.Device.String())
	b.WriteString(" **\n")

	b.WriteString("Received packet with RSSI ")
	b.WriteString(strconv.Itoa(c.RSSI))
	b.WriteString(" dB\n")

	b.WriteString("Received packet with NOISE FLOOR ")
	b.WriteString(strconv.Itoa(c.NoiseFloor))
	b.WriteString(" dBm\n")

	b.WriteString("Source MAC address: ")
	b.WriteString(orZeroAddress(c.Source))
	b.WriteByte('\n')

	b.WriteString("Destination MAC address: ")
	b.WriteString(orZeroAddress(c.Destination))
	b.WriteByte('\n')

	b.WriteString("Payload (Decimal):\n")
	for i, s := range c.Samples {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strconv.Itoa(s))
	}
	b.WriteByte('\n')

	return b.String()
}

func orZeroAddress(s string) string {
	if s == "" {
		return domain.ZeroAddress.String()
	}
	return s
}
