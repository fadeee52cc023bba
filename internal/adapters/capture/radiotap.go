// Package capture turns 802.11 radiotap captures into domain frames.
package capture

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/lcalzada-xor/tagap/internal/core/domain"
)

var (
	// ErrBadFCS is returned for frames the driver flagged as failing the FCS check.
	ErrBadFCS = errors.New("frame failed FCS check")

	// ErrUnsupportedLinkType is returned for captures without radiotap headers.
	ErrUnsupportedLinkType = errors.New("unsupported link type")

	// ErrTruncated is returned when the radiotap header claims more bytes than captured.
	ErrTruncated = errors.New("truncated radiotap packet")
)

// ParseRadiotap decodes a radiotap-framed packet. The returned frame always
// ends in a 4-byte FCS: when the driver stripped it, a CRC-32 is appended.
// channel is used when the header carries no channel field.
func ParseRadiotap(data []byte, ts time.Time, channel int) (domain.CapturedFrame, domain.FrameKind, error) {
	if len(data) < 8 || int(binary.LittleEndian.Uint16(data[2:4])) > len(data) {
		return domain.CapturedFrame{}, domain.FrameKindMisc, ErrTruncated
	}

	var rt layers.RadioTap
	if err := rt.DecodeFromBytes(data, gopacket.NilDecodeFeedback); err != nil {
		return domain.CapturedFrame{}, domain.FrameKindMisc, fmt.Errorf("decode radiotap: %w", err)
	}
	if rt.Present.Flags() && rt.Flags&layers.RadioTapFlagsBadFCS != 0 {
		return domain.CapturedFrame{}, domain.FrameKindMisc, ErrBadFCS
	}

	body := data[rt.Length:]
	hasFCS := rt.Present.Flags() && rt.Flags&layers.RadioTapFlagsFCS != 0

	payload := make([]byte, len(body), len(body)+domain.TrailerSize)
	copy(payload, body)
	if !hasFCS {
		payload = binary.LittleEndian.AppendUint32(payload, crc32.ChecksumIEEE(body))
	}

	frame := domain.CapturedFrame{
		Payload:   payload,
		Length:    len(payload),
		Channel:   channel,
		Timestamp: ts,
	}
	if rt.Present.DBMAntennaSignal() {
		frame.RSSI = int(rt.DBMAntennaSignal)
	}
	if rt.Present.DBMAntennaNoise() {
		frame.NoiseFloor = int(rt.DBMAntennaNoise)
	}
	if rt.Present.Channel() {
		if ch := FrequencyToChannel(int(rt.ChannelFrequency)); ch > 0 {
			frame.Channel = ch
		}
	}

	return frame, FrameKindOf(payload), nil
}

// FrameKindOf reads the type bits of the frame control field.
func FrameKindOf(raw []byte) domain.FrameKind {
	if len(raw) == 0 {
		return domain.FrameKindMisc
	}
	switch layers.Dot11Type(raw[0] >> 2).MainType() {
	case layers.Dot11TypeMgmt:
		return domain.FrameKindMgmt
	case layers.Dot11TypeCtrl:
		return domain.FrameKindCtrl
	case layers.Dot11TypeData:
		return domain.FrameKindData
	default:
		return domain.FrameKindMisc
	}
}

// FrequencyToChannel maps a centre frequency in MHz to its channel number,
// or 0 if the frequency is outside the 2.4/5 GHz bands.
func FrequencyToChannel(mhz int) int {
	switch {
	case mhz == 2484:
		return 14
	case mhz >= 2412 && mhz < 2484:
		return (mhz - 2407) / 5
	case mhz >= 5000 && mhz <= 5900:
		return (mhz - 5000) / 5
	default:
		return 0
	}
}

// ChannelToFrequency is the inverse of FrequencyToChannel for 2.4 GHz channels
// 1-14 and 5 GHz channels 32-177.
func ChannelToFrequency(ch int) int {
	switch {
	case ch == 14:
		return 2484
	case ch >= 1 && ch <= 13:
		return 2407 + 5*ch
	case ch >= 32 && ch <= 177:
		return 5000 + 5*ch
	default:
		return 0
	}
}

const (
	radiotapHeaderLen = 16

	presentFlags     = 1 << 1
	presentChannel   = 1 << 3
	presentDBMSignal = 1 << 5
	presentDBMNoise  = 1 << 6

	channelFlags2GHz = 0x0080
	channelFlagsOFDM = 0x0040
	channelFlags5GHz = 0x0100
)

// EncodeRadiotap prefixes an 802.11 frame (FCS included) with a radiotap
// header carrying flags, channel, signal and noise.
func EncodeRadiotap(frame []byte, rssi, noise, channel int) []byte {
	out := make([]byte, radiotapHeaderLen, radiotapHeaderLen+len(frame))
	binary.LittleEndian.PutUint16(out[2:4], radiotapHeaderLen)
	binary.LittleEndian.PutUint32(out[4:8], presentFlags|presentChannel|presentDBMSignal|presentDBMNoise)
	out[8] = byte(layers.RadioTapFlagsFCS)
	// out[9] pads the channel field to a 2-byte boundary.
	freq := ChannelToFrequency(channel)
	binary.LittleEndian.PutUint16(out[10:12], uint16(freq))
	flags := uint16(channelFlags2GHz | channelFlagsOFDM)
	if freq > 5000 {
		flags = channelFlags5GHz | channelFlagsOFDM
	}
	binary.LittleEndian.PutUint16(out[12:14], flags)
	out[14] = byte(int8(rssi))
	out[15] = byte(int8(noise))
	return append(out, frame...)
}
