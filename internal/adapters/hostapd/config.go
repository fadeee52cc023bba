// Package hostapd runs the access point through the hostapd daemon.
package hostapd

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

var (
	// ErrInvalidSSID is returned for an empty SSID or one over 32 bytes.
	ErrInvalidSSID = errors.New("SSID must be 1-32 bytes")

	// ErrInvalidPassphrase is returned for a non-empty passphrase outside 8-63 characters.
	ErrInvalidPassphrase = errors.New("passphrase must be empty or 8-63 characters")

	// ErrInvalidChannel is returned for a channel outside the country's channel count.
	ErrInvalidChannel = errors.New("channel outside allowed range")
)

// Config describes the access point.
type Config struct {
	Interface     string
	SSID          string
	Passphrase    string // empty selects open authentication
	Channel       int
	ChannelCount  int // highest usable 2.4 GHz channel in Country
	Country       string
	MaxStations   int
	Protocols     []string // any of b, g, n, ax
	CtrlInterface string
}

// Validate checks the fields hostapd would otherwise reject at startup.
func (c Config) Validate() error {
	if c.Interface == "" {
		return errors.New("interface is required")
	}
	if len(c.SSID) == 0 || len(c.SSID) > 32 {
		return ErrInvalidSSID
	}
	if n := len(c.Passphrase); n != 0 && (n < 8 || n > 63) {
		return ErrInvalidPassphrase
	}
	maxChannel := c.ChannelCount
	if maxChannel <= 0 {
		maxChannel = 13
	}
	if c.Channel < 1 || c.Channel > maxChannel {
		return fmt.Errorf("channel %d (max %d): %w", c.Channel, maxChannel, ErrInvalidChannel)
	}
	if len(c.Country) != 2 {
		return fmt.Errorf("invalid country code %q", c.Country)
	}
	for _, p := range c.Protocols {
		if !slices.Contains([]string{"b", "g", "n", "ax"}, p) {
			return fmt.Errorf("unknown protocol %q", p)
		}
	}
	return nil
}

// Open reports whether the access point runs without authentication.
func (c Config) Open() bool {
	return c.Passphrase == ""
}

// PSK derives the 256-bit WPA pre-shared key as 64 hex digits.
func PSK(passphrase, ssid string) string {
	return hex.EncodeToString(pbkdf2.Key([]byte(passphrase), []byte(ssid), 4096, 32, sha1.New))
}

// Render produces hostapd.conf contents.
func (c Config) Render() (string, error) {
	if err := c.Validate(); err != nil {
		return "", err
	}

	var b strings.Builder
	line := func(key, value string) {
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(value)
		b.WriteByte('\n')
	}

	line("interface", c.Interface)
	line("driver", "nl80211")
	if c.CtrlInterface != "" {
		line("ctrl_interface", c.CtrlInterface)
	}
	line("logger_stdout", "-1")
	line("logger_stdout_level", "2")

	line("ssid", c.SSID)
	line("country_code", strings.ToUpper(c.Country))
	line("ieee80211d", "1")
	line("hw_mode", "g")
	line("channel", strconv.Itoa(c.Channel))
	if c.MaxStations > 0 {
		line("max_num_sta", strconv.Itoa(c.MaxStations))
	}

	protocols := c.Protocols
	if len(protocols) == 0 {
		protocols = []string{"b", "g", "n"}
	}
	if slices.Contains(protocols, "n") || slices.Contains(protocols, "ax") {
		line("wmm_enabled", "1")
	}
	if slices.Contains(protocols, "n") {
		line("ieee80211n", "1")
	}
	if slices.Contains(protocols, "ax") {
		line("ieee80211ax", "1")
	}
	if !slices.Contains(protocols, "b") {
		// Drop the DSSS/CCK rates so 802.11b clients cannot associate.
		line("supported_rates", "60 90 120 180 240 360 480 540")
		line("basic_rates", "60 120 240")
	}

	line("auth_algs", "1")
	if c.Open() {
		line("wpa", "0")
	} else {
		// WPA and WPA2 personal.
		line("wpa", "3")
		line("wpa_key_mgmt", "WPA-PSK")
		line("wpa_pairwise", "TKIP CCMP")
		line("rsn_pairwise", "CCMP")
		line("wpa_psk", PSK(c.Passphrase, c.SSID))
	}

	return b.String(), nil
}
