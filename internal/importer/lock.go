package importer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// ErrLocked is returned when another live importer process holds the lock.
var ErrLocked = errors.New("importer: another run holds the lock")

// ProcessLock guards against overlapping importer runs.
type ProcessLock interface {
	Acquire() error
	Release() error
}

// FileLock is an advisory pid lock file. A lock left behind by a dead process
// is considered stale and cleared on acquire.
type FileLock struct {
	path  string
	pid   int
	alive func(pid int) bool
}

// FileLockOption configures the lock.
type FileLockOption func(*FileLock)

// WithAliveProbe overrides the process liveness probe.
func WithAliveProbe(alive func(pid int) bool) FileLockOption {
	return func(l *FileLock) {
		if alive != nil {
			l.alive = alive
		}
	}
}

// NewFileLock constructs a lock at path for the current process.
func NewFileLock(path string, opts ...FileLockOption) *FileLock {
	lock := &FileLock{path: path, pid: os.Getpid(), alive: processAlive}
	for _, opt := range opts {
		opt(lock)
	}
	return lock
}

// Acquire takes the lock, clearing a stale one if its recorded pid is dead.
func (l *FileLock) Acquire() error {
	if l == nil || l.path == "" {
		return errors.New("importer: lock path required")
	}

	if content, err := os.ReadFile(l.path); err == nil {
		recorded, parseErr := strconv.Atoi(strings.TrimSpace(string(content)))
		if parseErr == nil && recorded != l.pid && l.alive(recorded) {
			return fmt.Errorf("%w (pid %d)", ErrLocked, recorded)
		}
		// Stale or unreadable lock: clear it.
		if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(l.path, []byte(strconv.Itoa(l.pid)), 0o644)
}

// Release removes the lock file.
func (l *FileLock) Release() error {
	if l == nil || l.path == "" {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
