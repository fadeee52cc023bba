package hostapd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/lcalzada-xor/tagap/internal/core/ports"
)

// ErrNotReady is returned when hostapd exits or times out before enabling the AP.
var ErrNotReady = errors.New("hostapd did not enable the access point")

const apEnabled = "AP-ENABLED"

// Process supervises a hostapd instance.
type Process struct {
	path    string
	cfg     Config
	sink    ports.StationEventSink
	logger  *slog.Logger
	parser  *EventParser
	confDir string

	cmd   *exec.Cmd
	ready chan struct{}
	once  sync.Once
	exit  chan error
}

// NewProcess prepares hostapd at path (empty means "hostapd" on PATH).
// Station events are delivered to sink.
func NewProcess(path string, cfg Config, sink ports.StationEventSink, logger *slog.Logger) *Process {
	if path == "" {
		path = "hostapd"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Process{
		path:   path,
		cfg:    cfg,
		sink:   sink,
		logger: logger,
		parser: NewEventParser(),
		ready:  make(chan struct{}),
		exit:   make(chan error, 1),
	}
}

// Start writes the configuration and launches hostapd. It returns once the
// access point is enabled, the process dies, or timeout elapses.
func (p *Process) Start(ctx context.Context, timeout time.Duration) error {
	conf, err := p.cfg.Render()
	if err != nil {
		return fmt.Errorf("render hostapd config: %w", err)
	}

	dir, err := os.MkdirTemp("", "tagap-hostapd-")
	if err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	p.confDir = dir
	confPath := filepath.Join(dir, "hostapd.conf")
	if err := os.WriteFile(confPath, []byte(conf), 0o600); err != nil {
		p.removeConfig()
		return fmt.Errorf("write hostapd config: %w", err)
	}

	// Not bound to ctx: hostapd must outlive the caller's context so that
	// Stop can interrupt it and let it deauthenticate stations.
	p.cmd = exec.Command(p.path, confPath)
	stdout, err := p.cmd.StdoutPipe()
	if err != nil {
		p.removeConfig()
		return fmt.Errorf("hostapd stdout: %w", err)
	}
	p.cmd.Stderr = p.cmd.Stdout

	if err := p.cmd.Start(); err != nil {
		p.removeConfig()
		return fmt.Errorf("start %s: %w", p.path, err)
	}
	p.logger.Info("hostapd started", "pid", p.cmd.Process.Pid, "interface", p.cfg.Interface)

	go func() {
		p.Monitor(stdout)
		p.exit <- p.cmd.Wait()
		close(p.exit)
	}()

	select {
	case <-p.ready:
		return nil
	case err := <-p.exit:
		p.removeConfig()
		if err == nil {
			err = io.EOF
		}
		return fmt.Errorf("%w: %v", ErrNotReady, err)
	case <-time.After(timeout):
		p.abort()
		return fmt.Errorf("%w within %s", ErrNotReady, timeout)
	case <-ctx.Done():
		p.abort()
		return ctx.Err()
	}
}

// abort stops a hostapd that never became ready.
func (p *Process) abort() {
	if err := p.Stop(); err != nil {
		p.logger.Warn("could not stop hostapd after failed start", "error", err)
	}
}

func (p *Process) removeConfig() {
	if p.confDir != "" {
		os.RemoveAll(p.confDir)
		p.confDir = ""
	}
}

// Ready is closed once hostapd reports AP-ENABLED.
func (p *Process) Ready() <-chan struct{} {
	return p.ready
}

// Exited delivers the process exit status.
func (p *Process) Exited() <-chan error {
	return p.exit
}

// Monitor consumes hostapd output until r is exhausted, forwarding station
// events and signalling readiness.
func (p *Process) Monitor(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		p.logger.Debug("hostapd", "line", line)

		if strings.Contains(line, apEnabled) {
			p.once.Do(func() { close(p.ready) })
			continue
		}
		if ev, ok := p.parser.Parse(line); ok {
			if ev.Interface == "" {
				ev.Interface = p.cfg.Interface
			}
			if p.sink != nil {
				p.sink.HandleStationEvent(ev)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		p.logger.Warn("hostapd output read failed", "error", err)
	}
}

// Stop terminates hostapd and removes its configuration.
func (p *Process) Stop() error {
	defer p.removeConfig()
	if p.cmd == nil || p.cmd.Process == nil {
		return nil
	}
	if err := p.cmd.Process.Signal(os.Interrupt); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("stop hostapd: %w", err)
	}
	select {
	case <-p.exit:
	case <-time.After(3 * time.Second):
		p.logger.Warn("hostapd did not exit, killing")
		_ = p.cmd.Process.Kill()
	}
	return nil
}
