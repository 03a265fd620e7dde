package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadFromAppliesDefaultsAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[room]
url = "https://ktv.example.com/102"

[renderer]
device = "Living Room TV"
retries = 2
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv(EnvPrefix+"RENDERER_RETRIES", "4")
	t.Setenv(EnvPrefix+"LOG_FILE_ENABLED", "true")
	t.Setenv(EnvPrefix+"SYNC_RECOVERY_ATTEMPTS", "not-a-number")

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	if cfg.Room.URL != "https://ktv.example.com/102" {
		t.Errorf("Room.URL = %q", cfg.Room.URL)
	}
	if cfg.Renderer.Device != "Living Room TV" {
		t.Errorf("Renderer.Device = %q", cfg.Renderer.Device)
	}
	if cfg.Renderer.Retries != 4 {
		t.Errorf("Renderer.Retries = %d, want env override 4", cfg.Renderer.Retries)
	}
	if !cfg.Log.FileEnabled {
		t.Error("Log.FileEnabled = false, want env override")
	}
	if cfg.Sync.RecoveryAttempts != Default().Sync.RecoveryAttempts {
		t.Errorf("Sync.RecoveryAttempts = %d, unparsable env should be ignored", cfg.Sync.RecoveryAttempts)
	}
	if cfg.Room.PollInterval != 3000 {
		t.Errorf("Room.PollInterval = %d, want default", cfg.Room.PollInterval)
	}
}

func TestLoadFromInvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[room\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFrom(path); err == nil {
		t.Error("expected decode error")
	}
}

func TestLoadSearchesXDG(t *testing.T) {
	home := t.TempDir()
	xdg := filepath.Join(home, "xdg")
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", xdg)

	dir := filepath.Join(xdg, "ktv-casting")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte("[renderer]\ndevice = \"Box\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Renderer.Device != "Box" {
		t.Errorf("Renderer.Device = %q, want Box", cfg.Renderer.Device)
	}
	if got := DefaultPath(); got != filepath.Join(dir, "config.toml") {
		t.Errorf("DefaultPath() = %q", got)
	}

	// ~/.ktv-castingrc takes precedence.
	rc := filepath.Join(home, ".ktv-castingrc")
	if err := os.WriteFile(rc, []byte("[renderer]\ndevice = \"TV\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Renderer.Device != "TV" {
		t.Errorf("Renderer.Device = %q, want TV", cfg.Renderer.Device)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg := Default()
	cfg.Room.URL = "https://ktv.example.com/7"
	cfg.Sync.EndThreshold = 1500
	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if loaded.Room.URL != cfg.Room.URL || loaded.Sync.EndThreshold != 1500 {
		t.Errorf("loaded = %+v", loaded)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"bad scheme", func(c *Config) { c.Room.URL = "ftp://ktv.example.com/1" }, "room: invalid url scheme"},
		{"negative poll", func(c *Config) { c.Room.PollInterval = -1 }, "poll_interval_ms"},
		{"bad protocol", func(c *Config) { c.Room.Protocol = "grpc" }, "room: invalid protocol"},
		{"too many retries", func(c *Config) { c.Renderer.Retries = 11 }, "retries"},
		{"negative threshold", func(c *Config) { c.Sync.EndThreshold = -1 }, "end_threshold_ms"},
		{"bad level", func(c *Config) { c.Log.Level = "trace" }, "invalid log level"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "invalid log format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateJoinsErrors(t *testing.T) {
	c := Default()
	c.Room.PollInterval = -1
	c.Log.Level = "loud"

	err := c.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "room:") || !strings.Contains(err.Error(), "log:") {
		t.Errorf("Validate() = %v, want both sections", err)
	}
}
