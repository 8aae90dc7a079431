package instance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/modpit/craftd/internal/fetch"
	"github.com/modpit/craftd/internal/resolver"
)

// TestProvisionStartStopList walks the full lifecycle of one direct-jar
// instance: provision, start, stop, list.
func TestProvisionStartStopList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/java-archive")
		w.Write(archivePayload(16 * 1024))
	}))
	t.Cleanup(srv.Close)

	root := t.TempDir()
	locks := newNameLocks()
	res := resolver.Func(func(_ context.Context, _ resolver.Request) (*resolver.Resolution, error) {
		return &resolver.Resolution{URL: srv.URL}, nil
	})

	prov := NewProvisioner(root, res, fetch.NewFetcher(), Defaults{MinRAMMB: 1024, MaxRAMMB: 2048, GamePort: 25565}, locks)
	sup := NewSupervisor(root, locks)
	sup.pollInterval = 20 * time.Millisecond
	sup.stopTimeout = 5 * time.Second
	reg := NewRegistry(root, sup)

	meta, err := prov.Provision(context.Background(), ProvisionRequest{
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
		t.Fatalf("ram = %d/%d, want 1024/2048", meta.MinRAMMB, meta.MaxRAMMB)
	}

	// No JVM in the test environment; swap the entry command for
	// something that behaves like a long-running server.
	dir := filepath.Join(root, "alpha")
	if _, err := MergeMetadata(dir, func(m *Metadata) {
		m.LaunchCommand = []string{"sleep", "60"}
	}); err != nil {
		t.Fatal(err)
	}

	started, err := sup.Start("alpha", nil)
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if started.Status != StatusRunning || started.PID <= 0 {
		t.Fatalf("start result = %+v", started)
	}

	summaries, err := reg.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(summaries) != 1 || !summaries[0].Running {
		t.Fatalf("list after start = %+v", summaries)
	}

	stopped, err := sup.Stop("alpha")
	if err != nil {
		t.Fatalf("Stop() error: %v", err)
	}
	if stopped.Status != StatusStopped {
		t.Fatalf("stop result = %+v", stopped)
	}

	summaries, err = reg.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(summaries) != 1 || summaries[0].Running {
		t.Fatalf("list after stop = %+v", summaries)
	}
	if summaries[0].Name != "alpha" || summaries[0].Version != "1.20.4" {
		t.Fatalf("summary = %+v", summaries[0])
	}
}
