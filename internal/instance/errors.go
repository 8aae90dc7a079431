package instance

import (
	"errors"
	"fmt"
)

// ErrNotFound marks operations that require a pre-existing instance
// directory. Stop never returns it; stop reports a status instead.
var ErrNotFound = errors.New("instance not found")

// ErrInvalidName rejects instance names that are not safe path segments.
var ErrInvalidName = errors.New("invalid instance name")

// ProvisionError wraps a download or filesystem failure during provisioning.
type ProvisionError struct {
	Name string
	Err  error
}

func (e *ProvisionError) Error() string {
	return fmt.Sprintf("provision %s: %v", e.Name, e.Err)
}

func (e *ProvisionError) Unwrap() error {
	return e.Err
}

// SpawnError means the launch command could not be started.
type SpawnError struct {
	Name string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn %s: %v", e.Name, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}
