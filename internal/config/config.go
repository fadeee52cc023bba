// Package config loads tagap settings from defaults, TAGAP_* environment
// variables and command-line flags, in that order of precedence.
package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/lcalzada-xor/tagap/internal/core/domain"
)

// Report formats for the console stream.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatNone = "none"
)

// Config holds all application configuration.
type Config struct {
	// Access point
	Interface    string
	SSID         string
	Passphrase   string // empty selects open authentication
	Channel      int
	MaxStations  int
	Country      string
	ChannelCount int
	Protocols    []string
	HostapdPath  string
	StartTimeout time.Duration

	// Capture
	MonitorInterface string
	BPFFilter        string
	ReplayPath       string
	MockMode         bool
	MockInterval     time.Duration
	MockCount        int // frames before a mock run ends; 0 runs until stopped
	DevicesPath      string

	// Outputs
	Addr         string
	DBPath       string // empty disables persistence
	OUIDBPath    string
	PcapPath     string
	SerialPort   string
	SerialBaud   int
	ForwardAddr  string
	ReportFormat string

	Debug bool
	Trace bool
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Interface:        "wlan0",
		SSID:             "ESP32C6_AP",
		Passphrase:       "MyPassword",
		Channel:          1,
		MaxStations:      5,
		Country:          "PT",
		ChannelCount:     13,
		Protocols:        []string{"b", "g", "n", "ax"},
		HostapdPath:      "hostapd",
		StartTimeout:     15 * time.Second,
		MonitorInterface: "mon0",
		MockInterval:     500 * time.Millisecond,
		Addr:             ":8080",
		DBPath:           getDefaultDBPath(),
		SerialBaud:       115200,
		ReportFormat:     FormatText,
	}
}

// Load builds the configuration from the environment and args (without the
// program name). Flags take precedence over environment variables.
func Load(args []string) (*Config, error) {
	cfg := Default()
	cfg.applyEnv()

	fs := flag.NewFlagSet("tagap", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	protocols := strings.Join(cfg.Protocols, ",")

	fs.StringVar(&cfg.Interface, "i", cfg.Interface, "Wireless interface hosting the access point")
	fs.StringVar(&cfg.SSID, "ssid", cfg.SSID, "Access point SSID")
	fs.StringVar(&cfg.Passphrase, "pass", cfg.Passphrase, "WPA passphrase (empty for an open network)")
	fs.IntVar(&cfg.Channel, "channel", cfg.Channel, "Access point channel")
	fs.IntVar(&cfg.MaxStations, "max-sta", cfg.MaxStations, "Maximum associated stations")
	fs.StringVar(&cfg.Country, "country", cfg.Country, "Regulatory country code")
	fs.IntVar(&cfg.ChannelCount, "channel-count", cfg.ChannelCount, "Highest usable channel in the country")
	fs.StringVar(&protocols, "protocols", protocols, "Enabled 802.11 protocols (comma separated: b,g,n,ax)")
	fs.StringVar(&cfg.HostapdPath, "hostapd", cfg.HostapdPath, "Path to hostapd binary")
	fs.DurationVar(&cfg.StartTimeout, "ap-timeout", cfg.StartTimeout, "Time to wait for the access point to come up")
	fs.StringVar(&cfg.MonitorInterface, "mon", cfg.MonitorInterface, "Monitor interface created for capture")
	fs.StringVar(&cfg.BPFFilter, "filter", cfg.BPFFilter, "BPF filter applied to the capture")
	fs.StringVar(&cfg.ReplayPath, "replay", cfg.ReplayPath, "Replay a radiotap pcap file instead of capturing")
	fs.BoolVar(&cfg.MockMode, "mock", cfg.MockMode, "Run in mock mode (simulation)")
	fs.DurationVar(&cfg.MockInterval, "mock-interval", cfg.MockInterval, "Frame interval in mock mode")
	fs.IntVar(&cfg.MockCount, "mock-count", cfg.MockCount, "Frames to generate in mock mode (0 for unlimited)")
	fs.StringVar(&cfg.DevicesPath, "devices", cfg.DevicesPath, "JSON file listing known devices")
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP server address (empty to disable)")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to SQLite database (empty to disable)")
	fs.StringVar(&cfg.OUIDBPath, "oui-db", cfg.OUIDBPath, "Path to the OUI vendor database")
	fs.StringVar(&cfg.PcapPath, "pcap", cfg.PcapPath, "Path to save tagged frames as PCAP (empty to disable)")
	fs.StringVar(&cfg.SerialPort, "serial", cfg.SerialPort, "Serial port for the record stream")
	fs.IntVar(&cfg.SerialBaud, "baud", cfg.SerialBaud, "Serial port baud rate")
	fs.StringVar(&cfg.ForwardAddr, "forward", cfg.ForwardAddr, "gRPC collector address")
	fs.StringVar(&cfg.ReportFormat, "format", cfg.ReportFormat, "Console record format: text, json or none")
	fs.BoolVar(&cfg.Debug, "debug", cfg.Debug, "Enable verbose debug logging")
	fs.BoolVar(&cfg.Trace, "trace", cfg.Trace, "Export OpenTelemetry traces to stderr")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}
	cfg.Protocols = parseList(protocols)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Interface = getEnv("TAGAP_INTERFACE", c.Interface)
	c.SSID = getEnv("TAGAP_SSID", c.SSID)
	c.Passphrase = getEnv("TAGAP_PASSPHRASE", c.Passphrase)
	c.Channel = getEnvInt("TAGAP_CHANNEL", c.Channel)
	c.MaxStations = getEnvInt("TAGAP_MAX_STA", c.MaxStations)
	c.Country = getEnv("TAGAP_COUNTRY", c.Country)
	c.ChannelCount = getEnvInt("TAGAP_CHANNEL_COUNT", c.ChannelCount)
	if v, ok := os.LookupEnv("TAGAP_PROTOCOLS"); ok {
		c.Protocols = parseList(v)
	}
	c.HostapdPath = getEnv("TAGAP_HOSTAPD", c.HostapdPath)
	c.MonitorInterface = getEnv("TAGAP_MONITOR", c.MonitorInterface)
	c.BPFFilter = getEnv("TAGAP_FILTER", c.BPFFilter)
	c.ReplayPath = getEnv("TAGAP_REPLAY", c.ReplayPath)
	c.MockMode = getEnvBool("TAGAP_MOCK", c.MockMode)
	c.MockCount = getEnvInt("TAGAP_MOCK_COUNT", c.MockCount)
	c.DevicesPath = getEnv("TAGAP_DEVICES", c.DevicesPath)
	c.Addr = getEnv("TAGAP_ADDR", c.Addr)
	c.DBPath = getEnv("TAGAP_DB", c.DBPath)
	c.OUIDBPath = getEnv("TAGAP_OUI_DB", c.OUIDBPath)
	c.PcapPath = getEnv("TAGAP_PCAP", c.PcapPath)
	c.SerialPort = getEnv("TAGAP_SERIAL", c.SerialPort)
	c.SerialBaud = getEnvInt("TAGAP_BAUD", c.SerialBaud)
	c.ForwardAddr = getEnv("TAGAP_FORWARD", c.ForwardAddr)
	c.ReportFormat = getEnv("TAGAP_FORMAT", c.ReportFormat)
	c.Debug = getEnvBool("TAGAP_DEBUG", c.Debug)
	c.Trace = getEnvBool("TAGAP_TRACE", c.Trace)
}

// LiveRadio reports whether the configuration drives real hardware.
func (c *Config) LiveRadio() bool {
	return !c.MockMode && c.ReplayPath == ""
}

// Validate checks field ranges and interface names.
func (c *Config) Validate() error {
	var errs []error
	if c.LiveRadio() {
		if !domain.IsValidInterface(c.Interface) {
			errs = append(errs, &domain.ValidationError{Field: "interface", Value: c.Interface, Err: domain.ErrInvalidInterfaceName})
		}
		if c.MonitorInterface != "" && !domain.IsValidInterface(c.MonitorInterface) {
			errs = append(errs, &domain.ValidationError{Field: "monitor", Value: c.MonitorInterface, Err: domain.ErrInvalidInterfaceName})
		}
	}
	if !domain.IsValidCountryCode(c.Country) {
		errs = append(errs, &domain.ValidationError{Field: "country", Value: c.Country, Err: domain.ErrInvalidCountryCode})
	}
	if c.ChannelCount < 1 || c.ChannelCount > 14 {
		errs = append(errs, fmt.Errorf("channel count %d outside 1-14", c.ChannelCount))
	}
	if c.Channel < 1 || c.Channel > c.ChannelCount {
		errs = append(errs, fmt.Errorf("channel %d outside 1-%d", c.Channel, c.ChannelCount))
	}
	if c.MaxStations < 1 {
		errs = append(errs, fmt.Errorf("max stations must be positive, got %d", c.MaxStations))
	}
	if n := len(c.Passphrase); n != 0 && (n < 8 || n > 63) {
		errs = append(errs, errors.New("passphrase must be empty or 8-63 characters"))
	}
	for _, p := range c.Protocols {
		if !slices.Contains([]string{"b", "g", "n", "ax"}, p) {
			errs = append(errs, fmt.Errorf("unknown protocol %q", p))
		}
	}
	if !slices.Contains([]string{FormatText, FormatJSON, FormatNone}, c.ReportFormat) {
		errs = append(errs, fmt.Errorf("unknown report format %q", c.ReportFormat))
	}
	if c.MockCount < 0 {
		errs = append(errs, fmt.Errorf("mock count must not be negative, got %d", c.MockCount))
	}
	if c.MockMode && c.ReplayPath != "" {
		errs = append(errs, errors.New("mock and replay are mutually exclusive"))
	}
	return errors.Join(errs...)
}

// LoadDevices reads a known-device list from a JSON file of the form
// [{"mac": "60:55:F9:F7:16:A8", "id": 1, "label": "bench"}].
func LoadDevices(path string) ([]domain.KnownDevice, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open devices file: %w", err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	var devices []domain.KnownDevice
	if err := dec.Decode(&devices); err != nil {
		return nil, fmt.Errorf("parse devices file %s: %w", path, err)
	}
	if len(devices) == 0 {
		return nil, fmt.Errorf("devices file %s lists no devices", path)
	}
	return devices, nil
}

func parseList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

// getDefaultDBPath returns the default database path in user's home directory.
func getDefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		slog.Warn("could not get user home directory, using current dir", "error", err)
		return "tagap.db"
	}
	return filepath.Join(home, ".tagap", "tagap.db")
}
