package instance

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRewritePortCreatesFile(t *testing.T) {
	dir := t.TempDir()

	if err := rewritePort(dir, 25565); err != nil {
		t.Fatalf("rewritePort() error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, PropertiesFile))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "server-port=25565\n" {
		t.Errorf("content = %q", data)
	}
}

func TestRewritePortReplacesExistingKey(t *testing.T) {
	dir := t.TempDir()
	original := "motd=Welcome\nserver-port=25565\nmax-players=20\n"
	if err := os.WriteFile(filepath.Join(dir, PropertiesFile), []byte(original), 0644); err != nil {
		t.Fatal(err)
	}

	if err := rewritePort(dir, 25599); err != nil {
		t.Fatalf("rewritePort() error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, PropertiesFile))
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)

	if !strings.Contains(content, "server-port=25599") {
		t.Errorf("port not replaced: %q", content)
	}
	if strings.Contains(content, "25565") {
		t.Errorf("old port still present: %q", content)
	}
	if !strings.Contains(content, "motd=Welcome") || !strings.Contains(content, "max-players=20") {
		t.Errorf("unrelated keys lost: %q", content)
	}
}

func TestRewritePortIdempotent(t *testing.T) {
	dir := t.TempDir()

	for i := 0; i < 3; i++ {
		if err := rewritePort(dir, 25570); err != nil {
			t.Fatal(err)
		}
	}

	data, err := os.ReadFile(filepath.Join(dir, PropertiesFile))
	if err != nil {
		t.Fatal(err)
	}
	if count := strings.Count(string(data), "server-port="); count != 1 {
		t.Errorf("server-port appears %d times, want 1: %q", count, data)
	}
}
