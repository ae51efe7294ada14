package browser

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os/exec"
	"strconv"
	"syscall"
	"time"
)

// Config holds WebDriver server launch configuration.
type Config struct {
	// Name labels log lines ("geckodriver", "safaridriver").
	Name    string
	Binary  string
	Args    []string
	Address string
	Port    int
	// ReadyTimeout bounds the /status poll. Zero means 15s.
	ReadyTimeout time.Duration
	// Output receives the driver's stdout and stderr. Nil discards it.
	Output io.Writer
}

// Launcher manages the lifecycle of one WebDriver server process.
type Launcher struct {
	cfg     Config
	cmd     *exec.Cmd
	running bool
}

// NewLauncher creates a new driver launcher with the given config.
func NewLauncher(cfg Config) *Launcher {
	if cfg.Address == "" {
		cfg.Address = "127.0.0.1"
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = 15 * time.Second
	}
	if cfg.Name == "" {
		cfg.Name = cfg.Binary
	}
	return &Launcher{cfg: cfg}
}

// URL returns the base URL of the driver's WebDriver endpoint.
func (l *Launcher) URL() string {
	return "http://" + net.JoinHostPort(l.cfg.Address, strconv.Itoa(l.cfg.Port))
}

// isPortInUse checks whether a TCP port is already listening.
func isPortInUse(address string, port int) bool {
	conn, err := net.DialTimeout("tcp", net.JoinHostPort(address, strconv.Itoa(port)), time.Second)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// Launch starts the driver process and waits until it accepts sessions.
func (l *Launcher) Launch(ctx context.Context) error {
	if l.cfg.Binary == "" {
		return fmt.Errorf("%s: no driver binary configured", l.cfg.Name)
	}
	if isPortInUse(l.cfg.Address, l.cfg.Port) {
		return fmt.Errorf("%s: port conflict on %s:%d", l.cfg.Name, l.cfg.Address, l.cfg.Port)
	}

	l.cmd = exec.Command(l.cfg.Binary, l.cfg.Args...)
	out := l.cfg.Output
	if out == nil {
		out = io.Discard
	}
	l.cmd.Stdout = out
	l.cmd.Stderr = out

	if err := l.cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", l.cfg.Name, err)
	}
	l.running = true
	slog.Debug("driver process started", "driver", l.cfg.Name, "pid", l.cmd.Process.Pid, "port", l.cfg.Port)

	if err := l.waitForStatus(ctx); err != nil {
		l.Stop()
		return fmt.Errorf("waiting for %s: %w", l.cfg.Name, err)
	}
	slog.Debug("driver endpoint ready", "driver", l.cfg.Name, "url", l.URL())
	return nil
}

// waitForStatus polls the WebDriver /status endpoint until it responds.
func (l *Launcher) waitForStatus(ctx context.Context) error {
	url := l.URL() + "/status"
	deadline := time.After(l.cfg.ReadyTimeout)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	client := &http.Client{Timeout: time.Second}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return fmt.Errorf("driver did not become ready within %s at %s", l.cfg.ReadyTimeout, url)
		case <-ticker.C:
			resp, err := client.Get(url)
			if err != nil {
				continue
			}
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
	}
}

// Running reports whether this launcher has a live driver process.
func (l *Launcher) Running() bool {
	return l.running
}

// Stop terminates the driver process with SIGTERM, falling back to SIGKILL.
func (l *Launcher) Stop() {
	if l.cmd == nil || l.cmd.Process == nil || !l.running {
		return
	}
	_ = l.cmd.Process.Signal(syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		_ = l.cmd.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		slog.Warn("driver did not exit, sending SIGKILL", "driver", l.cfg.Name, "pid", l.cmd.Process.Pid)
		_ = l.cmd.Process.Kill()
		<-done
	}
	l.running = false
}
