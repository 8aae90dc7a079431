package instance

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/modpit/craftd/internal/logging"
)

// Status values reported by the supervisor.
const (
	StatusRunning = "running"
	StatusStopped = "stopped"
	StatusUnknown = "unknown"
	StatusExited  = "exited"
)

// Stop methods reported by StopResult.
const (
	StopGraceful = "graceful"
	StopForceful = "forceful"
	StopNone     = "none"
)

// signaler abstracts platform process signaling so group termination can
// fall back to single-pid delivery where groups are unsupported, and so
// tests can fake a process that ignores graceful termination.
type signaler interface {
	// Terminate delivers the graceful or forceful termination signal.
	Terminate(pid int, graceful bool) error
	// Alive probes the pid with a no-op signal.
	Alive(pid int) bool
}

// StartResult reports the outcome of a start call.
type StartResult struct {
	Name   string `json:"id"`
	Status string `json:"status"`
	PID    int    `json:"pid"`
}

// StopResult reports the outcome of a stop call. Stop never fails on a
// missing instance or pid sidecar; Status carries the answer instead.
type StopResult struct {
	Name   string `json:"id"`
	Status string `json:"status"`
	Method string `json:"method"`
}

// Supervisor spawns, probes and terminates instance processes. All state
// lives in the pid sidecar and the OS process table; nothing is cached in
// memory, so a restarted manager picks up where it left off.
type Supervisor struct {
	root         string
	sig          signaler
	locks        *nameLocks
	pollInterval time.Duration
	stopTimeout  time.Duration
}

// NewSupervisor creates a Supervisor over the instances root.
func NewSupervisor(root string, locks *nameLocks) *Supervisor {
	if locks == nil {
		locks = newNameLocks()
	}
	return &Supervisor{
		root:         root,
		sig:          newPlatformSignaler(),
		locks:        locks,
		pollInterval: 500 * time.Millisecond,
		stopTimeout:  10 * time.Second,
	}
}

// Start launches the named instance as a detached process and records its
// pid in the sidecar. extraEnv entries are applied after the stored
// instance overrides, which in turn win over the process environment.
func (s *Supervisor) Start(name string, extraEnv map[string]string) (*StartResult, error) {
	if !validName(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	unlock := s.locks.acquire(name)
	defer unlock()

	dir := filepath.Join(s.root, name)
	if _, err := os.Stat(dir); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("failed to stat instance directory: %w", err)
	}

	if pid, ok := s.readPid(dir); ok && s.sig.Alive(pid) {
		return &StartResult{Name: name, Status: StatusRunning, PID: pid}, nil
	}

	meta, err := ReadMetadata(dir)
	if err != nil {
		return nil, err
	}

	port := meta.HostPort
	if port > 0 {
		if err := rewritePort(dir, port); err != nil {
			return nil, err
		}
	}

	command := meta.LaunchCommand
	if len(command) == 0 {
		minRAM, maxRAM := meta.MinRAM, meta.MaxRAM
		if minRAM == "" {
			minRAM = "1G"
		}
		if maxRAM == "" {
			maxRAM = minRAM
		}
		command = javaCommand(serverJar, minRAM, maxRAM)
	}

	logFile, err := os.OpenFile(filepath.Join(dir, ConsoleLog), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, &SpawnError{Name: name, Err: fmt.Errorf("failed to open console log: %w", err)}
	}
	defer logFile.Close()

	cmd := exec.Command(command[0], command[1:]...)
	cmd.Dir = dir
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.Env = mergeEnv(os.Environ(), meta.EnvOverrides, extraEnv)
	// Own process group: the server must outlive supervisor restarts.
	cmd.SysProcAttr = detachedProcAttr()

	if err := cmd.Start(); err != nil {
		return nil, &SpawnError{Name: name, Err: err}
	}

	pid := cmd.Process.Pid
	if err := s.writePid(dir, pid); err != nil {
		return nil, err
	}

	// Reap the child when it exits so a dead server does not linger as a
	// zombie and keep answering liveness probes. If the manager restarts,
	// init adopts and reaps the process instead.
	go func() {
		if err := cmd.Wait(); err != nil {
			logging.L().Debug("instance process exited", "name", name, "pid", pid, "error", err)
		}
	}()

	logging.L().Info("instance started",
		"name", name,
		"pid", pid,
		"command", strings.Join(command, " "),
	)

	return &StartResult{Name: name, Status: StatusRunning, PID: pid}, nil
}

// Stop terminates the named instance gracefully, escalating to a forceful
// signal when the process ignores the graceful one for the full poll
// window. A missing pid sidecar is not an error; the instance was never
// started or already confirmed stopped.
func (s *Supervisor) Stop(name string) (*StopResult, error) {
	if !validName(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	unlock := s.locks.acquire(name)
	defer unlock()

	dir := filepath.Join(s.root, name)
	pid, ok := s.readPid(dir)
	if !ok {
		return &StopResult{Name: name, Status: StatusUnknown, Method: StopNone}, nil
	}

	if !s.sig.Alive(pid) {
		s.removePid(dir)
		return &StopResult{Name: name, Status: StatusStopped, Method: StopNone}, nil
	}

	logging.L().Info("stopping instance", "name", name, "pid", pid)

	method := StopGraceful
	if err := s.sig.Terminate(pid, true); err != nil {
		logging.L().Warn("graceful signal failed", "name", name, "pid", pid, "error", err)
	}

	if !s.waitForExit(pid) {
		logging.L().Warn("graceful stop timed out, escalating", "name", name, "pid", pid)
		method = StopForceful
		if err := s.sig.Terminate(pid, false); err != nil {
			logging.L().Warn("forceful signal failed", "name", name, "pid", pid, "error", err)
		}
	}

	s.removePid(dir)

	logging.L().Info("instance stopped", "name", name, "pid", pid, "method", method)
	return &StopResult{Name: name, Status: StatusStopped, Method: method}, nil
}

// Restart stops the named instance and starts it again.
func (s *Supervisor) Restart(name string, extraEnv map[string]string) (*StartResult, error) {
	if _, err := s.Stop(name); err != nil {
		return nil, err
	}
	return s.Start(name, extraEnv)
}

// Alive re-derives liveness from the OS on every call. Liveness is never
// cached; the pid sidecar plus a signal probe is the whole truth.
func (s *Supervisor) Alive(pid int) bool {
	return s.sig.Alive(pid)
}

// PID returns the recorded pid for the named instance, or false when no
// pid sidecar exists.
func (s *Supervisor) PID(name string) (int, bool) {
	if !validName(name) {
		return 0, false
	}
	return s.readPid(filepath.Join(s.root, name))
}

func (s *Supervisor) waitForExit(pid int) bool {
	deadline := time.Now().Add(s.stopTimeout)
	for time.Now().Before(deadline) {
		if !s.sig.Alive(pid) {
			return true
		}
		time.Sleep(s.pollInterval)
	}
	return !s.sig.Alive(pid)
}

func (s *Supervisor) readPid(dir string) (int, bool) {
	data, err := os.ReadFile(filepath.Join(dir, PidFile))
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}

func (s *Supervisor) writePid(dir string, pid int) error {
	if err := os.WriteFile(filepath.Join(dir, PidFile), []byte(strconv.Itoa(pid)+"\n"), 0644); err != nil {
		return fmt.Errorf("failed to write pid sidecar: %w", err)
	}
	return nil
}

func (s *Supervisor) removePid(dir string) {
	if err := os.Remove(filepath.Join(dir, PidFile)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logging.L().Warn("failed to remove pid sidecar", "dir", dir, "error", err)
	}
}

// mergeEnv layers override maps onto a base environment. Later layers win.
func mergeEnv(base []string, layers ...map[string]string) []string {
	merged := make(map[string]string, len(base))
	order := make([]string, 0, len(base))

	set := func(key, value string) {
		if _, ok := merged[key]; !ok {
			order = append(order, key)
		}
		merged[key] = value
	}

	for _, entry := range base {
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			continue
		}
		set(parts[0], parts[1])
	}
	for _, layer := range layers {
		for key, value := range layer {
			set(key, value)
		}
	}

	env := make([]string, 0, len(order))
	for _, key := range order {
		env = append(env, key+"="+merged[key])
	}
	return env
}
