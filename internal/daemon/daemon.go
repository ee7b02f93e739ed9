// Package daemon runs a moduleguide command detached from the terminal and
// tracks it through a PID file.
package daemon

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

const (
	DirName = ".moduleguide"
	envFlag = "_MODULEGUIDE_DAEMON"
)

// ErrNotRunning is returned by Stop when no live process owns the PID file.
var ErrNotRunning = errors.New("daemon is not running")

// Daemon manages one named background process, e.g. "dev".
type Daemon struct {
	dir  string
	name string
}

// New manages name inside dir.
func New(dir, name string) *Daemon {
	return &Daemon{dir: dir, name: name}
}

// Default manages name inside ~/.moduleguide, creating it if needed.
func Default(name string) (*Daemon, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	dir := filepath.Join(home, DirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return New(dir, name), nil
}

func (d *Daemon) PIDPath() string {
	return filepath.Join(d.dir, d.name+".pid")
}

func (d *Daemon) LogPath() string {
	return filepath.Join(d.dir, d.name+".log")
}

// WritePID records the current process as the daemon.
func (d *Daemon) WritePID() error {
	return os.WriteFile(d.PIDPath(), []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func (d *Daemon) RemovePID() {
	os.Remove(d.PIDPath()) //nolint:errcheck
}

// ReadPID returns 0 when there is no PID file.
func (d *Daemon) ReadPID() (int, error) {
	data, err := os.ReadFile(d.PIDPath())
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("corrupt PID file: %w", err)
	}
	return pid, nil
}

// IsRunning reports whether the recorded process is alive. A stale PID
// file is removed.
func (d *Daemon) IsRunning() (int, bool) {
	pid, err := d.ReadPID()
	if err != nil || pid == 0 {
		return 0, false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return pid, false
	}
	// Signal 0 checks existence without delivering anything.
	if err := proc.Signal(syscall.Signal(0)); err != nil {
		d.RemovePID()
		return pid, false
	}
	return pid, true
}

// Background re-execs the current binary with args in a new session,
// logging to LogPath. The child sees IsDaemonProcess() == true.
func (d *Daemon) Background(args []string) (int, error) {
	exe, err := os.Executable()
	if err != nil {
		return 0, fmt.Errorf("resolve executable: %w", err)
	}

	logFile, err := os.OpenFile(d.LogPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return 0, fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()

	cmd := exec.Command(exe, args...)
	cmd.Env = append(os.Environ(), envFlag+"=1")
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("start daemon: %w", err)
	}
	return cmd.Process.Pid, nil
}

// IsDaemonProcess reports whether this process was started by Background.
func IsDaemonProcess() bool {
	return os.Getenv(envFlag) == "1"
}

// Stop sends SIGTERM and waits up to timeout before killing the process.
func (d *Daemon) Stop(timeout time.Duration) error {
	pid, alive := d.IsRunning()
	if !alive {
		return ErrNotRunning
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("send SIGTERM: %w", err)
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if err := proc.Signal(syscall.Signal(0)); err != nil {
			d.RemovePID()
			return nil
		}
		time.Sleep(200 * time.Millisecond)
	}
	_ = proc.Signal(syscall.SIGKILL)
	d.RemovePID()
	return nil
}

// StripFlag removes a boolean flag (--name, -short, --name=value) from args
// so the detached child does not detach again.
func StripFlag(args []string, name, short string) []string {
	out := make([]string, 0, len(args))
	for _, a := range args {
		switch {
		case a == "--"+name, short != "" && a == "-"+short:
		case strings.HasPrefix(a, "--"+name+"="):
		default:
			out = append(out, a)
		}
	}
	return out
}
