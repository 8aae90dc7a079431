package instance

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// On-disk layout of an instance directory.
const (
	// MetadataFile is the JSON sidecar holding all persistent instance
	// state. There is no database; this file is the record of truth.
	MetadataFile = "instance.json"
	// PidFile records the pid of the running server process.
	PidFile = "server.pid"
	// ConsoleLog is the append-only stdout/stderr capture.
	ConsoleLog = "console.log"
	// EulaFile is the license acceptance marker the server checks on boot.
	EulaFile = "eula.txt"
	// PropertiesFile carries the server's own settings, including its port.
	PropertiesFile = "server.properties"
)

// KindCraftd tags sidecars written by this manager. Directories whose
// sidecar carries a different kind belong to another subsystem sharing the
// root and are skipped by the registry.
const KindCraftd = "craftd"

// Metadata is the sidecar schema. Every field is optional on read so that
// sidecars written by older versions keep loading after schema growth.
type Metadata struct {
	Kind             string            `json:"kind,omitempty"`
	Name             string            `json:"name,omitempty"`
	Type             string            `json:"type,omitempty"`
	Version          string            `json:"version,omitempty"`
	LoaderVersion    string            `json:"loader_version,omitempty"`
	InstallerVersion string            `json:"installer_version,omitempty"`
	MinRAM           string            `json:"min_ram,omitempty"`
	MaxRAM           string            `json:"max_ram,omitempty"`
	MinRAMMB         int               `json:"min_ram_mb,omitempty"`
	MaxRAMMB         int               `json:"max_ram_mb,omitempty"`
	HostPort         int               `json:"host_port,omitempty"`
	EnvOverrides     map[string]string `json:"env_overrides,omitempty"`
	CreatedAt        int64             `json:"created_at,omitempty"`
	ArtifactSHA256   string            `json:"artifact_sha256,omitempty"`
	ArtifactSize     int64             `json:"artifact_size,omitempty"`
	ArtifactBuild    string            `json:"artifact_build,omitempty"`
	LaunchCommand    []string          `json:"launch_command,omitempty"`
}

// ReadMetadata loads the sidecar from dir. A missing sidecar yields an
// empty Metadata rather than an error so callers can default every field.
func ReadMetadata(dir string) (*Metadata, error) {
	data, err := os.ReadFile(filepath.Join(dir, MetadataFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Metadata{}, nil
		}
		return nil, fmt.Errorf("failed to read metadata sidecar: %w", err)
	}

	meta := &Metadata{}
	if err := json.Unmarshal(data, meta); err != nil {
		return nil, fmt.Errorf("failed to parse metadata sidecar: %w", err)
	}
	return meta, nil
}

// MergeMetadata performs a full read-merge-write cycle on the sidecar:
// the current document is loaded, apply mutates it, and the result is
// written back atomically via rename. The creation timestamp is stamped on
// first write and never overwritten afterwards.
func MergeMetadata(dir string, apply func(*Metadata)) (*Metadata, error) {
	meta, err := ReadMetadata(dir)
	if err != nil {
		return nil, err
	}

	apply(meta)

	meta.Kind = KindCraftd
	if meta.CreatedAt == 0 {
		meta.CreatedAt = time.Now().Unix()
	}

	if err := writeMetadata(dir, meta); err != nil {
		return nil, err
	}
	return meta, nil
}

func writeMetadata(dir string, meta *Metadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	// Write-then-rename so concurrent readers never observe a torn file.
	tmp, err := os.CreateTemp(dir, ".instance-*.json")
	if err != nil {
		return fmt.Errorf("failed to create metadata temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close metadata temp file: %w", err)
	}

	if err := os.Rename(tmpName, filepath.Join(dir, MetadataFile)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace metadata sidecar: %w", err)
	}
	return nil
}

// validName reports whether name is a safe single path segment.
func validName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	if strings.ContainsAny(name, "/\\") {
		return false
	}
	return name == filepath.Base(name)
}
