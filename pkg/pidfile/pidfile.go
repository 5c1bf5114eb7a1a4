// Package pidfile manages the daemon PID file so only one fieldclockd
// instance serves a terminal at a time.
package pidfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// PIDFile guards single-instance execution through a PID file.
type PIDFile struct {
	path string
	pid  int
}

// New creates a PIDFile handle for the current process.
func New(path string) *PIDFile {
	return &PIDFile{path: path, pid: os.Getpid()}
}

// Create writes the PID file, removing a stale one left by a dead process.
// Fails when another live instance owns the file.
func (p *PIDFile) Create() error {
	if existing, err := p.readExisting(); err == nil {
		if processAlive(existing) {
			return fmt.Errorf("daemon already running with PID %d", existing)
		}
		if err := os.Remove(p.path); err != nil {
			return fmt.Errorf("failed to remove stale PID file: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return fmt.Errorf("failed to create PID file directory: %w", err)
	}
	if err := os.WriteFile(p.path, []byte(fmt.Sprintf("%d\n", p.pid)), 0o644); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	return nil
}

// Remove deletes the PID file if this process owns it.
func (p *PIDFile) Remove() error {
	existing, err := p.readExisting()
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return os.Remove(p.path)
	}
	if existing != p.pid {
		return fmt.Errorf("PID file owned by %d, not removing", existing)
	}
	return os.Remove(p.path)
}

func (p *PIDFile) readExisting() (int, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return 0, err
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID file contents: %w", err)
	}
	return pid, nil
}

// processAlive probes a PID with signal 0.
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
