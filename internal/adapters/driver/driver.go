// Package driver wraps the iw/ip/systemctl commands that configure the radio.
package driver

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

// Runner executes a command and returns its combined output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands on the host.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Driver configures wireless interfaces through a Runner.
type Driver struct {
	runner Runner
	logger *slog.Logger
}

// New creates a Driver. A nil runner executes real commands.
func New(runner Runner, logger *slog.Logger) *Driver {
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{runner: runner, logger: logger}
}

func (d *Driver) run(ctx context.Context, name string, args ...string) error {
	out, err := d.runner.Run(ctx, name, args...)
	if err != nil {
		d.logger.Debug("Command failed", "cmd", name, "args", args, "output", string(out))
		return fmt.Errorf("%s %s: %w (%s)", name, strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return nil
}

// SetRegulatoryDomain selects the country whose channel plan the radio uses.
func (d *Driver) SetRegulatoryDomain(ctx context.Context, country string) error {
	if len(country) != 2 {
		return fmt.Errorf("invalid country code %q", country)
	}
	d.logger.Info("Setting regulatory domain", "country", strings.ToUpper(country))
	return d.run(ctx, "iw", "reg", "set", strings.ToUpper(country))
}

// AddMonitorInterface creates a monitor-mode virtual interface on the same
// phy as parent and brings it up.
func (d *Driver) AddMonitorInterface(ctx context.Context, parent, monitor string) error {
	d.logger.Info("Adding monitor interface", "parent", parent, "monitor", monitor)
	if err := d.run(ctx, "iw", "dev", parent, "interface", "add", monitor, "type", "monitor"); err != nil {
		d.logger.Warn("Hint: if the device is busy, stop NetworkManager/wpa_supplicant first")
		return err
	}
	return d.run(ctx, "ip", "link", "set", monitor, "up")
}

// DeleteInterface removes a virtual interface.
func (d *Driver) DeleteInterface(ctx context.Context, iface string) error {
	_ = d.run(ctx, "ip", "link", "set", iface, "down")
	return d.run(ctx, "iw", "dev", iface, "del")
}

// SetInterfaceChannel sets the WiFi channel for a given interface.
func (d *Driver) SetInterfaceChannel(ctx context.Context, iface string, channel int) error {
	if channel <= 0 {
		return fmt.Errorf("invalid channel: %d", channel)
	}
	return d.run(ctx, "iw", "dev", iface, "set", "channel", strconv.Itoa(channel))
}

// KillConflictingProcesses stops NetworkManager and wpa_supplicant, which
// would otherwise fight hostapd for the interface.
func (d *Driver) KillConflictingProcesses(ctx context.Context) error {
	for _, svc := range []string{"NetworkManager", "wpa_supplicant"} {
		if err := d.run(ctx, "systemctl", "stop", svc); err != nil {
			return err
		}
	}
	return nil
}

// RestoreNetworkServices restarts the services stopped by
// KillConflictingProcesses. It attempts every service and returns the last error.
func (d *Driver) RestoreNetworkServices(ctx context.Context) error {
	var lastErr error
	for _, svc := range []string{"wpa_supplicant", "NetworkManager"} {
		if err := d.run(ctx, "systemctl", "start", svc); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// SupportedChannels lists the enabled channels of the phy backing iface.
func (d *Driver) SupportedChannels(ctx context.Context, iface string) ([]int, error) {
	out, err := d.runner.Run(ctx, "iw", "dev")
	if err != nil {
		return nil, fmt.Errorf("iw dev: %w", err)
	}
	phy, err := parsePhyForInterface(out, iface)
	if err != nil {
		return nil, err
	}

	out, err = d.runner.Run(ctx, "iw", "phy", phy, "info")
	if err != nil {
		return nil, fmt.Errorf("iw phy %s info: %w", phy, err)
	}
	return parseChannels(out), nil
}

// parsePhyForInterface maps an interface to "phyN" using `iw dev` output.
func parsePhyForInterface(out []byte, iface string) (string, error) {
	scanner := bufio.NewScanner(bytes.NewReader(out))
	currentPhy := ""
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "phy#") {
			currentPhy = line
		} else if line == "Interface "+iface && currentPhy != "" {
			return strings.Replace(currentPhy, "#", "", 1), nil
		}
	}
	return "", fmt.Errorf("interface %s not found in iw dev output", iface)
}

var reChannel = regexp.MustCompile(`\[([0-9]+)\]`)

// parseChannels extracts enabled channels from the Frequencies blocks of
// `iw phy <phy> info`.
func parseChannels(out []byte) []int {
	var channels []int
	inFrequencies := false

	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "Frequencies:" {
			inFrequencies = true
			continue
		}
		if !inFrequencies {
			continue
		}
		if !strings.HasPrefix(line, "*") {
			inFrequencies = false
			continue
		}
		if strings.Contains(line, "(disabled)") {
			continue
		}
		if m := reChannel.FindStringSubmatch(line); len(m) > 1 {
			ch, _ := strconv.Atoi(m[1])
			channels = append(channels, ch)
		}
	}
	return channels
}
