package domain

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// HardwareAddressLen is the length of an 802.11 hardware address in bytes.
const HardwareAddressLen = 6

// HardwareAddress identifies a radio interface. It is a value type: copies
// are independent and equality is byte-wise.
type HardwareAddress [HardwareAddressLen]byte

// ZeroAddress is substituted for addresses that cannot be extracted.
var ZeroAddress HardwareAddress

// BroadcastAddress is the all-ones destination.
var BroadcastAddress = HardwareAddress{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}

// ParseHardwareAddress parses "XX:XX:XX:XX:XX:XX", "XX-XX-XX-XX-XX-XX" or
// "XXXXXXXXXXXX" (case-insensitive).
func ParseHardwareAddress(s string) (HardwareAddress, error) {
	var addr HardwareAddress
	if s == "" {
		return addr, ErrEmptyAddress
	}

	normalized := strings.NewReplacer(":", "", "-", "", ".", "").Replace(strings.TrimSpace(s))
	if len(normalized) != 2*HardwareAddressLen {
		return addr, &ValidationError{Field: "mac", Value: s, Err: ErrInvalidAddress}
	}
	if _, err := hex.Decode(addr[:], []byte(normalized)); err != nil {
		return addr, &ValidationError{Field: "mac", Value: s, Err: ErrInvalidAddress}
	}
	return addr, nil
}

// MustParseHardwareAddress is ParseHardwareAddress for known-good literals.
func MustParseHardwareAddress(s string) HardwareAddress {
	addr, err := ParseHardwareAddress(s)
	if err != nil {
		panic(fmt.Sprintf("invalid hardware address %q: %v", s, err))
	}
	return addr
}

// HardwareAddressFromBytes copies b into an address. ok is false when b is
// not exactly HardwareAddressLen bytes long.
func HardwareAddressFromBytes(b []byte) (addr HardwareAddress, ok bool) {
	if len(b) != HardwareAddressLen {
		return ZeroAddress, false
	}
	copy(addr[:], b)
	return addr, true
}

// FormatHardwareAddress renders b as six colon-separated hex pairs. Any slice
// that is not exactly six bytes long renders as the zero address.
func FormatHardwareAddress(b []byte) string {
	addr, _ := HardwareAddressFromBytes(b)
	return addr.String()
}

// String returns the address as "XX:XX:XX:XX:XX:XX".
func (a HardwareAddress) String() string {
	const digits = "0123456789ABCDEF"
	buf := make([]byte, 0, 3*HardwareAddressLen-1)
	for i, b := range a {
		if i > 0 {
			buf = append(buf, ':')
		}
		buf = append(buf, digits[b>>4], digits[b&0x0F])
	}
	return string(buf)
}

// OUI returns the vendor prefix as "XX:XX:XX".
func (a HardwareAddress) OUI() string {
	return a.String()[:8]
}

// IsZero reports whether every byte is zero.
func (a HardwareAddress) IsZero() bool {
	return a == ZeroAddress
}

// IsMulticast checks the group bit of the first octet.
func (a HardwareAddress) IsMulticast() bool {
	return a[0]&0x01 != 0
}

// IsLocallyAdministered checks the LAA bit, which is set on randomized addresses.
func (a HardwareAddress) IsLocallyAdministered() bool {
	return a[0]&0x02 != 0
}

// MarshalText implements encoding.TextMarshaler so addresses serialize as strings.
func (a HardwareAddress) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *HardwareAddress) UnmarshalText(text []byte) error {
	parsed, err := ParseHardwareAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
