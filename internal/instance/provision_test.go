package instance

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/modpit/craftd/internal/fetch"
	"github.com/modpit/craftd/internal/resolver"
)

func archivePayload(size int) []byte {
	data := make([]byte, size)
	copy(data, []byte{0x50, 0x4B, 0x03, 0x04})
	return data
}

// testProvisioner wires a provisioner against an artifact server that
// always returns a valid fake jar.
func testProvisioner(t *testing.T) (*Provisioner, string) {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/java-archive")
		w.Write(archivePayload(8 * 1024))
	}))
	t.Cleanup(srv.Close)

	root := t.TempDir()
	res := resolver.Func(func(_ context.Context, req resolver.Request) (*resolver.Resolution, error) {
		return &resolver.Resolution{URL: srv.URL + "/" + req.Type + "/" + req.Version, Build: "77"}, nil
	})

	defaults := Defaults{MinRAMMB: 1024, MaxRAMMB: 2048, GamePort: 25565}
	return NewProvisioner(root, res, fetch.NewFetcher(), defaults, nil), root
}

func TestProvisionDirectJar(t *testing.T) {
	p, root := testProvisioner(t)

	meta, err := p.Provision(context.Background(), ProvisionRequest{
		Name:    "alpha",
		Type:    "vanilla",
		Version: "1.20.4",
		MinRAM:  "1G",
		MaxRAM:  "2G",
	})
	if err != nil {
		t.Fatalf("Provision() error: %v", err)
	}

	if meta.MinRAMMB != 1024 || meta.MaxRAMMB != 2048 {
		t.Errorf("ram = %d/%d, want 1024/2048", meta.MinRAMMB, meta.MaxRAMMB)
	}
	if meta.HostPort != 25565 {
		t.Errorf("port = %d, want default 25565", meta.HostPort)
	}
	if meta.ArtifactSHA256 == "" || meta.ArtifactSize == 0 {
		t.Errorf("artifact fields not recorded: %+v", meta)
	}
	if meta.ArtifactBuild != "77" {
		t.Errorf("build = %q, want 77", meta.ArtifactBuild)
	}

	dir := filepath.Join(root, "alpha")
	for _, file := range []string{serverJar, EulaFile, MetadataFile} {
		if _, err := os.Stat(filepath.Join(dir, file)); err != nil {
			t.Errorf("missing %s: %v", file, err)
		}
	}
}

func TestProvisionClampsInvertedRAM(t *testing.T) {
	p, _ := testProvisioner(t)

	meta, err := p.Provision(context.Background(), ProvisionRequest{
		Name:    "beta",
		Type:    "vanilla",
		Version: "1.20.4",
		MinRAM:  "4G",
		MaxRAM:  "2G",
	})
	if err != nil {
		t.Fatal(err)
	}

	if meta.MaxRAMMB < meta.MinRAMMB {
		t.Errorf("max %d < min %d after clamp", meta.MaxRAMMB, meta.MinRAMMB)
	}
	if meta.MaxRAMMB != 4096 {
		t.Errorf("max = %d, want clamped to 4096", meta.MaxRAMMB)
	}
}

func TestProvisionMergePreservesEnv(t *testing.T) {
	p, _ := testProvisioner(t)
	ctx := context.Background()

	if _, err := p.Provision(ctx, ProvisionRequest{
		Name:    "gamma",
		Type:    "vanilla",
		Version: "1.20.4",
		Port:    25570,
		Env:     map[string]string{"JAVA_OPTS": "-XX:+UseZGC"},
	}); err != nil {
		t.Fatal(err)
	}

	meta, err := p.Provision(ctx, ProvisionRequest{
		Name:    "gamma",
		Type:    "vanilla",
		Version: "1.20.4",
		Port:    25599,
	})
	if err != nil {
		t.Fatal(err)
	}

	if meta.HostPort != 25599 {
		t.Errorf("port = %d, want 25599", meta.HostPort)
	}
	if meta.EnvOverrides["JAVA_OPTS"] != "-XX:+UseZGC" {
		t.Errorf("env overrides dropped on re-provision: %v", meta.EnvOverrides)
	}
}

func TestProvisionRejectsUnsafeNames(t *testing.T) {
	p, _ := testProvisioner(t)

	for _, name := range []string{"", "..", "a/b", "../escape"} {
		_, err := p.Provision(context.Background(), ProvisionRequest{
			Name: name, Type: "vanilla", Version: "1.20.4",
		})
		if !errors.Is(err, ErrInvalidName) {
			t.Errorf("Provision(%q) error = %v, want ErrInvalidName", name, err)
		}
	}
}

func TestProvisionPropagatesResolverError(t *testing.T) {
	root := t.TempDir()
	res := resolver.NewTemplateResolver(nil)
	p := NewProvisioner(root, res, fetch.NewFetcher(), Defaults{MinRAMMB: 1024, MaxRAMMB: 2048, GamePort: 25565}, nil)

	_, err := p.Provision(context.Background(), ProvisionRequest{
		Name: "delta", Type: "bedrock", Version: "1.20.4",
	})
	if !errors.Is(err, resolver.ErrUnknownDistribution) {
		t.Errorf("error = %v, want ErrUnknownDistribution", err)
	}

	var provErr *ProvisionError
	if !errors.As(err, &provErr) {
		t.Errorf("error not wrapped in ProvisionError: %v", err)
	}
}

func TestProvisionPropagatesDownloadError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"error": "no such version"}`))
	}))
	t.Cleanup(srv.Close)

	root := t.TempDir()
	res := resolver.Func(func(_ context.Context, _ resolver.Request) (*resolver.Resolution, error) {
		return &resolver.Resolution{URL: srv.URL}, nil
	})
	p := NewProvisioner(root, res, fetch.NewFetcher(), Defaults{MinRAMMB: 1024, MaxRAMMB: 2048, GamePort: 25565}, nil)

	_, err := p.Provision(context.Background(), ProvisionRequest{
		Name: "epsilon", Type: "vanilla", Version: "9.9.9",
	})

	var dlErr *fetch.DownloadError
	if !errors.As(err, &dlErr) {
		t.Fatalf("download error not propagated: %v", err)
	}
	if dlErr.Kind != fetch.KindNotBinary {
		t.Errorf("kind = %s, want %s", dlErr.Kind, fetch.KindNotBinary)
	}

	// The instance directory stays in place for an idempotent retry.
	if _, statErr := os.Stat(filepath.Join(root, "epsilon")); statErr != nil {
		t.Errorf("instance directory removed after failed provision: %v", statErr)
	}
}
