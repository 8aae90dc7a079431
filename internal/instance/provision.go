package instance

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/modpit/craftd/internal/fetch"
	"github.com/modpit/craftd/internal/logging"
	"github.com/modpit/craftd/internal/ram"
	"github.com/modpit/craftd/internal/resolver"
)

// Defaults supplies fallback values for fields a provisioning request
// leaves unset.
type Defaults struct {
	MinRAMMB int
	MaxRAMMB int
	GamePort int
}

// ProvisionRequest describes the instance a caller wants materialized.
type ProvisionRequest struct {
	Name      string
	Type      string
	Version   string
	Loader    string
	Installer string
	MinRAM    string
	MaxRAM    string
	Port      int
	Env       map[string]string
}

// Provisioner materializes runnable instance directories: it resolves the
// right artifact, downloads and validates it, lays out the directory for
// the distribution family and merges the result into the metadata sidecar.
type Provisioner struct {
	root     string
	resolver resolver.Resolver
	fetcher  *fetch.Fetcher
	defaults Defaults
	locks    *nameLocks
}

// NewProvisioner creates a Provisioner rooted at root.
func NewProvisioner(root string, res resolver.Resolver, fetcher *fetch.Fetcher, defaults Defaults, locks *nameLocks) *Provisioner {
	if locks == nil {
		locks = newNameLocks()
	}
	return &Provisioner{
		root:     root,
		resolver: res,
		fetcher:  fetcher,
		defaults: defaults,
		locks:    locks,
	}
}

// Provision creates or re-provisions the named instance. Calls are
// idempotent: artifacts are overwritten in place and metadata merges onto
// whatever an earlier call stored, so a failed attempt is safe to retry.
func (p *Provisioner) Provision(ctx context.Context, req ProvisionRequest) (*Metadata, error) {
	if !validName(req.Name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, req.Name)
	}

	unlock := p.locks.acquire(req.Name)
	defer unlock()

	minMB := ram.Parse(req.MinRAM, p.defaults.MinRAMMB)
	maxMB := ram.Parse(req.MaxRAM, p.defaults.MaxRAMMB)
	minMB, maxMB = ram.Clamp(minMB, maxMB)

	port := req.Port
	if port <= 0 {
		port = p.defaults.GamePort
	}

	resolution, err := p.resolver.Resolve(ctx, resolver.Request{
		Type:      req.Type,
		Version:   req.Version,
		Loader:    req.Loader,
		Installer: req.Installer,
	})
	if err != nil {
		return nil, &ProvisionError{Name: req.Name, Err: err}
	}

	dir := filepath.Join(p.root, req.Name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, &ProvisionError{Name: req.Name, Err: fmt.Errorf("failed to create instance directory: %w", err)}
	}

	dist := distributionFor(req.Type)

	artifact, err := p.fetcher.Fetch(ctx, resolution.URL, filepath.Join(dir, dist.artifactName()))
	if err != nil {
		// Download failures pass through so callers can triage by kind.
		// Partial directory state stays put; a retry overwrites it.
		return nil, &ProvisionError{Name: req.Name, Err: err}
	}

	launch, err := dist.finalize(dir, ram.Format(minMB), ram.Format(maxMB))
	if err != nil {
		return nil, &ProvisionError{Name: req.Name, Err: err}
	}

	meta, err := MergeMetadata(dir, func(m *Metadata) {
		m.Name = req.Name
		m.Type = req.Type
		m.Version = req.Version
		if req.Loader != "" {
			m.LoaderVersion = req.Loader
		}
		if req.Installer != "" {
			m.InstallerVersion = req.Installer
		}
		m.MinRAM = ram.Format(minMB)
		m.MaxRAM = ram.Format(maxMB)
		m.MinRAMMB = minMB
		m.MaxRAMMB = maxMB
		m.HostPort = port
		m.ArtifactSHA256 = artifact.SHA256
		m.ArtifactSize = artifact.Size
		if resolution.Build != "" {
			m.ArtifactBuild = resolution.Build
		}
		m.LaunchCommand = launch

		// Env overrides merge last-writer-wins; keys from earlier
		// provisioning calls survive unless explicitly overwritten.
		if len(req.Env) > 0 {
			if m.EnvOverrides == nil {
				m.EnvOverrides = make(map[string]string, len(req.Env))
			}
			for key, value := range req.Env {
				m.EnvOverrides[key] = value
			}
		}
	})
	if err != nil {
		return nil, &ProvisionError{Name: req.Name, Err: err}
	}

	logging.L().Info("instance provisioned",
		"name", req.Name,
		"type", req.Type,
		"version", req.Version,
		"sha256", artifact.SHA256,
		"size", artifact.Size,
	)

	return meta, nil
}
