//go:build !unix

package instance

import (
	"os"
	"syscall"
)

// fallbackSignaler covers platforms without process-group signaling:
// only the recorded pid is addressed.
type fallbackSignaler struct{}

func newPlatformSignaler() signaler {
	return fallbackSignaler{}
}

func (fallbackSignaler) Terminate(pid int, graceful bool) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	if graceful {
		return proc.Signal(os.Interrupt)
	}
	return proc.Kill()
}

func (fallbackSignaler) Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

func detachedProcAttr() *syscall.SysProcAttr {
	return nil
}
