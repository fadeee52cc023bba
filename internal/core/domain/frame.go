package domain

import "time"

// Offsets into a captured 802.11 frame. The application payload offset
// assumes a 24-byte data header (no QoS control, no Address4); the layout is
// not validated structurally.
const (
	DestinationOffset = 4  // Address1
	SourceOffset      = 10 // Address2
	MarkerOffset      = 24
	ReferenceOffset   = 25
	SampleOffset      = 26
	TrailerSize       = 4 // FCS

	// TagMarker flags a frame that carries an embedded application payload.
	TagMarker byte = 0xAB
)

// FrameKind mirrors the promiscuous-mode packet categories delivered by the radio.
type FrameKind int

const (
	FrameKindMgmt FrameKind = iota
	FrameKindCtrl
	FrameKindData
	FrameKindMisc
)

func (k FrameKind) String() string {
	switch k {
	case FrameKindMgmt:
		return "mgmt"
	case FrameKindCtrl:
		return "ctrl"
	case FrameKindData:
		return "data"
	default:
		return "misc"
	}
}

// CapturedFrame is one radio frame as delivered by a frame source. Payload
// holds the over-the-air bytes: header, body and FCS trailer.
type CapturedFrame struct {
	Payload    []byte
	Length     int // declared length, including the trailer
	RSSI       int // dB
	NoiseFloor int // dBm
	Channel    int
	Timestamp  time.Time
}

// Len is the number of bytes that may be read: the declared length clamped
// to the buffer.
func (f CapturedFrame) Len() int {
	n := f.Length
	if n > len(f.Payload) {
		n = len(f.Payload)
	}
	if n < 0 {
		return 0
	}
	return n
}

// ByteAt returns the byte at off, or false when off is outside Len.
func (f CapturedFrame) ByteAt(off int) (byte, bool) {
	if off < 0 || off >= f.Len() {
		return 0, false
	}
	return f.Payload[off], true
}

// Slice returns Payload[off:off+n], or false when the range exceeds Len.
func (f CapturedFrame) Slice(off, n int) ([]byte, bool) {
	if off < 0 || n < 0 || off+n > f.Len() {
		return nil, false
	}
	return f.Payload[off : off+n], true
}

// Source returns the transmitter address (Address2).
func (f CapturedFrame) Source() (HardwareAddress, bool) {
	b, ok := f.Slice(SourceOffset, HardwareAddressLen)
	if !ok {
		return ZeroAddress, false
	}
	return HardwareAddressFromBytes(b)
}

// Destination returns the receiver address (Address1).
func (f CapturedFrame) Destination() (HardwareAddress, bool) {
	b, ok := f.Slice(DestinationOffset, HardwareAddressLen)
	if !ok {
		return ZeroAddress, false
	}
	return HardwareAddressFromBytes(b)
}

// Marker returns the candidate tag byte.
func (f CapturedFrame) Marker() (byte, bool) {
	return f.ByteAt(MarkerOffset)
}

// Reference returns the zero-point byte used by the differential encoding.
func (f CapturedFrame) Reference() (byte, bool) {
	return f.ByteAt(ReferenceOffset)
}

// SampleRegion returns the encoded sample bytes between the reference byte
// and the trailer. It is empty when the frame is too short to hold any.
func (f CapturedFrame) SampleRegion() []byte {
	end := f.Len() - TrailerSize
	if end <= SampleOffset {
		return nil
	}
	return f.Payload[SampleOffset:end]
}

// ClassifiedFrame is a CapturedFrame after source resolution. It lives only
// for the duration of one frame-handling call.
type ClassifiedFrame struct {
	Frame       CapturedFrame
	Kind        FrameKind
	Device      DeviceID
	Tagged      bool
	Source      HardwareAddress
	Destination HardwareAddress
}
