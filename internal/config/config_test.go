package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != 8090 {
		t.Errorf("default server port = %d, want 8090", cfg.Server.Port)
	}
	if cfg.Defaults.GamePort != 25565 {
		t.Errorf("default game port = %d, want 25565", cfg.Defaults.GamePort)
	}
	if cfg.Defaults.MinRAM != "1G" || cfg.Defaults.MaxRAM != "2G" {
		t.Errorf("default RAM = %s/%s, want 1G/2G", cfg.Defaults.MinRAM, cfg.Defaults.MaxRAM)
	}
	if !filepath.IsAbs(cfg.Storage.InstancesDir) {
		t.Errorf("instances dir not absolute: %s", cfg.Storage.InstancesDir)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")

	content := `
server:
  port: 9999
storage:
  instances_dir: /srv/craftd/instances
defaults:
  min_ram: "2G"
resolver:
  url_templates:
    vanilla: "https://example.com/vanilla/{version}/server.jar"
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_PATH", configPath)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != 9999 {
		t.Errorf("server port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.Storage.InstancesDir != "/srv/craftd/instances" {
		t.Errorf("instances dir = %s", cfg.Storage.InstancesDir)
	}
	if cfg.Defaults.MinRAM != "2G" {
		t.Errorf("min ram = %s, want 2G", cfg.Defaults.MinRAM)
	}
	// Unset keys keep defaults.
	if cfg.Defaults.MaxRAM != "2G" {
		t.Errorf("max ram = %s, want default 2G", cfg.Defaults.MaxRAM)
	}
	if cfg.Resolver.URLTemplates["vanilla"] == "" {
		t.Error("vanilla url template not loaded")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("INSTANCES_DIR", "/var/lib/craftd")
	t.Setenv("CRAFTD_PORT", "8181")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Storage.InstancesDir != "/var/lib/craftd" {
		t.Errorf("instances dir = %s", cfg.Storage.InstancesDir)
	}
	if cfg.Server.Port != 8181 {
		t.Errorf("server port = %d, want 8181", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("log level = %s, want debug", cfg.Logging.Level)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"empty instances dir", func(c *Config) { c.Storage.InstancesDir = "" }, true},
		{"bad server port", func(c *Config) { c.Server.Port = 0 }, true},
		{"bad game port", func(c *Config) { c.Defaults.GamePort = 70000 }, true},
		{"bad fetch timeout", func(c *Config) { c.Fetch.TimeoutSeconds = 0 }, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &Config{
				Server:   ServerConfig{Host: "0.0.0.0", Port: 8090},
				Storage:  StorageConfig{InstancesDir: "/tmp/instances"},
				Defaults: DefaultsConfig{GamePort: 25565},
				Fetch:    FetchConfig{TimeoutSeconds: 300},
			}
			tc.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}
