// Package testutil builds raw 802.11 frames for tests.
package testutil

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/lcalzada-xor/tagap/internal/core/domain"
)

// Device1 is the address of the first reference peer.
var Device1 = domain.HardwareAddress{0x60, 0x55, 0xf9, 0xf7, 0x16, 0xa8}

// FrameBuilder assembles a data frame: 24-byte header, body and a 4-byte FCS.
type FrameBuilder struct {
	fc0  byte
	dst  domain.HardwareAddress
	src  domain.HardwareAddress
	bss  domain.HardwareAddress
	body []byte
}

// NewDataFrame starts a data frame from src to dst.
func NewDataFrame(src, dst domain.HardwareAddress) *FrameBuilder {
	return &FrameBuilder{fc0: 0x08, src: src, dst: dst, bss: dst}
}

// WithFrameControl overrides the first frame-control byte (type/subtype).
func (b *FrameBuilder) WithFrameControl(fc0 byte) *FrameBuilder {
	b.fc0 = fc0
	return b
}

// Tagged appends the marker, the reference byte and the encoded samples.
func (b *FrameBuilder) Tagged(marker, ref byte, encoded ...byte) *FrameBuilder {
	b.body = append(b.body, marker, ref)
	b.body = append(b.body, encoded...)
	return b
}

// Body appends raw bytes after the header.
func (b *FrameBuilder) Body(p ...byte) *FrameBuilder {
	b.body = append(b.body, p...)
	return b
}

// Bytes returns the frame with its FCS trailer.
func (b *FrameBuilder) Bytes() []byte {
	h := make([]byte, 24, 24+len(b.body)+4)
	h[0] = b.fc0
	copy(h[4:10], b.dst[:])
	copy(h[10:16], b.src[:])
	copy(h[16:22], b.bss[:])
	h = append(h, b.body...)
	return binary.LittleEndian.AppendUint32(h, crc32.ChecksumIEEE(h))
}

// Frame returns a CapturedFrame whose declared length is the full frame.
func (b *FrameBuilder) Frame() domain.CapturedFrame {
	raw := b.Bytes()
	return domain.CapturedFrame{
		Payload:    raw,
		Length:     len(raw),
		RSSI:       -41,
		NoiseFloor: -96,
		Channel:    1,
	}
}
