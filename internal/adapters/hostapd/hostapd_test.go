package hostapd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/tagap/internal/core/domain"
)

func baseConfig() Config {
	return Config{
		Interface:    "wlan0",
		SSID:         "ESP32C6_AP",
		Passphrase:   "MyPassword",
		Channel:      1,
		ChannelCount: 13,
		Country:      "pt",
		MaxStations:  5,
		Protocols:    []string{"b", "g", "n", "ax"},
	}
}

func TestPSK_KnownVector(t *testing.T) {
	// IEEE 802.11i-2004 annex H.4 test vector.
	assert.Equal(t, "f42c6fc52df0ebef9ebb4b90b38a5f902e83fe1b135a70e23aed762e9710a12e", PSK("password", "IEEE"))
}

func TestRender_WPA(t *testing.T) {
	conf, err := baseConfig().Render()
	require.NoError(t, err)

	for _, want := range []string{
		"interface=wlan0\n",
		"ssid=ESP32C6_AP\n",
		"country_code=PT\n",
		"channel=1\n",
		"hw_mode=g\n",
		"max_num_sta=5\n",
		"ieee80211n=1\n",
		"ieee80211ax=1\n",
		"wpa=3\n",
		"wpa_psk=" + PSK("MyPassword", "ESP32C6_AP") + "\n",
	} {
		assert.Contains(t, conf, want)
	}
	assert.NotContains(t, conf, "MyPassword")
	assert.NotContains(t, conf, "supported_rates")
}

func TestRender_OpenWhenNoPassphrase(t *testing.T) {
	cfg := baseConfig()
	cfg.Passphrase = ""
	cfg.Protocols = []string{"g", "n"}

	conf, err := cfg.Render()
	require.NoError(t, err)
	assert.True(t, cfg.Open())
	assert.Contains(t, conf, "wpa=0\n")
	assert.NotContains(t, conf, "wpa_psk")
	assert.NotContains(t, conf, "ieee80211ax")
	assert.Contains(t, conf, "supported_rates=")
}

func TestConfig_Validate(t *testing.T) {
	cases := map[string]func(*Config){
		"empty ssid":       func(c *Config) { c.SSID = "" },
		"long ssid":        func(c *Config) { c.SSID = strings.Repeat("x", 33) },
		"short passphrase": func(c *Config) { c.Passphrase = "short" },
		"channel zero":     func(c *Config) { c.Channel = 0 },
		"channel too high": func(c *Config) { c.ChannelCount = 11; c.Channel = 12 },
		"bad country":      func(c *Config) { c.Country = "PRT" },
		"bad protocol":     func(c *Config) { c.Protocols = []string{"ac"} },
		"no interface":     func(c *Config) { c.Interface = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := baseConfig()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
	assert.NoError(t, baseConfig().Validate())
}

func TestEventParser(t *testing.T) {
	p := NewEventParser()
	addr := domain.MustParseHardwareAddress("60:55:F9:F7:16:A8")

	_, ok := p.Parse("wlan0: STA 60:55:f9:f7:16:a8 IEEE 802.11: associated (aid 3)")
	assert.False(t, ok)

	ev, ok := p.Parse("wlan0: AP-STA-CONNECTED 60:55:f9:f7:16:a8")
	require.True(t, ok)
	assert.Equal(t, domain.StationJoined, ev.Type)
	assert.Equal(t, addr, ev.Address)
	assert.Equal(t, 3, ev.AID)
	assert.Equal(t, "wlan0", ev.Interface)
	assert.False(t, ev.Timestamp.IsZero())

	ev, ok = p.Parse("wlan0: AP-STA-DISCONNECTED 60:55:f9:f7:16:a8")
	require.True(t, ok)
	assert.Equal(t, domain.StationLeft, ev.Type)
	assert.Equal(t, 3, ev.AID)

	ev, ok = p.Parse("AP-STA-CONNECTED 60:55:f9:f7:16:a8")
	require.True(t, ok)
	assert.Equal(t, 0, ev.AID, "aid forgotten after leave")
	assert.Empty(t, ev.Interface)

	for _, line := range []string{"", "wlan0: AP-ENABLED", "wlan0: AP-STA-CONNECTED nonsense"} {
		_, ok := p.Parse(line)
		assert.False(t, ok, line)
	}
}

type eventSink struct {
	mu     sync.Mutex
	events []domain.StationEvent
}

func (s *eventSink) HandleStationEvent(ev domain.StationEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func TestProcess_Monitor(t *testing.T) {
	sink := &eventSink{}
	p := NewProcess("", baseConfig(), sink, slog.New(slog.NewJSONHandler(io.Discard, nil)))

	output := strings.Join([]string{
		"Configuration file: /tmp/hostapd.conf",
		"wlan0: interface state UNINITIALIZED->ENABLED",
		"wlan0: AP-ENABLED",
		"wlan0: STA 60:55:f9:f7:21:90 IEEE 802.11: associated (aid 1)",
		"AP-STA-CONNECTED 60:55:f9:f7:21:90",
		"wlan0: AP-STA-DISCONNECTED 60:55:f9:f7:21:90",
	}, "\n")
	p.Monitor(strings.NewReader(output))

	select {
	case <-p.Ready():
	default:
		t.Fatal("ready not signalled")
	}

	require.Len(t, sink.events, 2)
	assert.Equal(t, "wlan0", sink.events[0].Interface, "interface defaults to the configured one")
	assert.Equal(t, 1, sink.events[0].AID)
	assert.Equal(t, domain.StationLeft, sink.events[1].Type)
}

func TestProcess_StopWithoutStart(t *testing.T) {
	p := NewProcess("/nonexistent/hostapd", baseConfig(), nil, nil)
	assert.NoError(t, p.Stop())
}

// fakeHostapd writes a shell stand-in for hostapd. It records its config
// path, touches marker when interrupted and announces AP-ENABLED when ready.
func fakeHostapd(t *testing.T, ready bool) (bin, marker, confRecord string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
	dir := t.TempDir()
	marker = filepath.Join(dir, "interrupted")
	confRecord = filepath.Join(dir, "conf-path")
	announce := ""
	if ready {
		announce = "echo 'wlan0: AP-ENABLED'"
	}
	script := fmt.Sprintf(`#!/bin/sh
echo "$1" > %q
trap 'touch %q; exit 0' INT
%s
while true; do sleep 0.05; done
`, confRecord, marker, announce)
	bin = filepath.Join(dir, "hostapd")
	require.NoError(t, os.WriteFile(bin, []byte(script), 0o755))
	return bin, marker, confRecord
}

func recordedConfDir(t *testing.T, confRecord string) string {
	t.Helper()
	data, err := os.ReadFile(confRecord)
	require.NoError(t, err)
	return filepath.Dir(strings.TrimSpace(string(data)))
}

func TestProcess_StopInterruptsAfterContextCancel(t *testing.T) {
	bin, marker, confRecord := fakeHostapd(t, true)
	p := NewProcess(bin, baseConfig(), nil, slog.New(slog.NewJSONHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, p.Start(ctx, 5*time.Second))

	// Cancelling the start context must not kill hostapd outright.
	cancel()
	time.Sleep(100 * time.Millisecond)
	assert.NoFileExists(t, marker)

	require.NoError(t, p.Stop())
	assert.FileExists(t, marker, "hostapd should receive SIGINT")
	assert.NoDirExists(t, recordedConfDir(t, confRecord))
}

func TestProcess_StartTimeoutStopsHostapd(t *testing.T) {
	bin, marker, confRecord := fakeHostapd(t, false)
	p := NewProcess(bin, baseConfig(), nil, slog.New(slog.NewJSONHandler(io.Discard, nil)))

	err := p.Start(context.Background(), 300*time.Millisecond)
	require.ErrorIs(t, err, ErrNotReady)

	assert.FileExists(t, marker)
	assert.NoDirExists(t, recordedConfDir(t, confRecord))
}

func TestProcess_StartCancelledStopsHostapd(t *testing.T) {
	bin, marker, confRecord := fakeHostapd(t, false)
	p := NewProcess(bin, baseConfig(), nil, slog.New(slog.NewJSONHandler(io.Discard, nil)))

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	err := p.Start(ctx, 5*time.Second)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	assert.FileExists(t, marker)
	assert.NoDirExists(t, recordedConfDir(t, confRecord))
}
