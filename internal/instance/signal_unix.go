//go:build unix

package instance

import (
	"errors"
	"syscall"
)

// unixSignaler signals whole process groups, falling back to the single
// pid when the group is already gone.
type unixSignaler struct{}

func newPlatformSignaler() signaler {
	return unixSignaler{}
}

func (unixSignaler) Terminate(pid int, graceful bool) error {
	sig := syscall.SIGKILL
	if graceful {
		sig = syscall.SIGTERM
	}

	// Negative pid addresses the process group created at spawn, so the
	// server's children go down with it.
	if err := syscall.Kill(-pid, sig); err == nil {
		return nil
	}
	return syscall.Kill(pid, sig)
}

func (unixSignaler) Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, syscall.Signal(0))
	if err == nil {
		return true
	}
	// EPERM means the process exists but belongs to someone else.
	return errors.Is(err, syscall.EPERM)
}

func detachedProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}
