package instance

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/modpit/craftd/internal/logging"
)

// Summary is the registry's per-instance view, assembled from the metadata
// sidecar and a fresh liveness probe.
type Summary struct {
	Name      string `json:"name"`
	Type      string `json:"type,omitempty"`
	Version   string `json:"version,omitempty"`
	MinRAMMB  int    `json:"min_ram_mb,omitempty"`
	MaxRAMMB  int    `json:"max_ram_mb,omitempty"`
	HostPort  int    `json:"host_port,omitempty"`
	CreatedAt int64  `json:"created_at,omitempty"`
	Running   bool   `json:"running"`
	PID       int    `json:"pid,omitempty"`
	Status    string `json:"status"`
}

// Registry enumerates instance directories and reconciles each with its
// sidecar and the OS process table. No ordering is guaranteed.
type Registry struct {
	root string
	sup  *Supervisor
}

// NewRegistry creates a Registry over the instances root.
func NewRegistry(root string, sup *Supervisor) *Registry {
	return &Registry{root: root, sup: sup}
}

// List scans the root for instance directories. Directories whose sidecar
// carries a foreign kind belong to another subsystem sharing the root and
// are skipped. A missing or unreadable sidecar yields a summary with
// defaulted fields.
func (r *Registry) List() ([]Summary, error) {
	entries, err := os.ReadDir(r.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []Summary{}, nil
		}
		return nil, fmt.Errorf("failed to scan instances root: %w", err)
	}

	summaries := make([]Summary, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()

		meta, err := ReadMetadata(filepath.Join(r.root, name))
		if err != nil {
			// A corrupt sidecar must not hide the directory; list it with
			// defaulted fields so an operator can find and repair it.
			logging.L().Warn("instance sidecar unreadable", "name", name, "error", err)
			meta = &Metadata{}
		}

		if meta.Kind != "" && meta.Kind != KindCraftd {
			continue
		}

		summaries = append(summaries, r.summarize(name, meta))
	}
	return summaries, nil
}

// Get returns the summary for one named instance.
func (r *Registry) Get(name string) (*Summary, error) {
	if !validName(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	dir := filepath.Join(r.root, name)
	if _, err := os.Stat(dir); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("failed to stat instance directory: %w", err)
	}

	meta, err := ReadMetadata(dir)
	if err != nil {
		return nil, err
	}
	if meta.Kind != "" && meta.Kind != KindCraftd {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	summary := r.summarize(name, meta)
	return &summary, nil
}

func (r *Registry) summarize(name string, meta *Metadata) Summary {
	summary := Summary{
		Name:      name,
		Type:      meta.Type,
		Version:   meta.Version,
		MinRAMMB:  meta.MinRAMMB,
		MaxRAMMB:  meta.MaxRAMMB,
		HostPort:  meta.HostPort,
		CreatedAt: meta.CreatedAt,
		Status:    StatusStopped,
	}

	if pid, ok := r.sup.PID(name); ok {
		if r.sup.Alive(pid) {
			summary.Running = true
			summary.PID = pid
			summary.Status = StatusRunning
		} else {
			// A pid sidecar with no live process means the server died
			// without a clean stop.
			summary.Status = StatusExited
		}
	}
	return summary
}
