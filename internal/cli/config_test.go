package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aspromise/ktv-casting/internal/config"
)

func TestSetConfigValue(t *testing.T) {
	c := config.Default()

	tests := []struct {
		key   string
		value string
		check func() bool
	}{
		{"room.url", "https://ktv.example.com/102", func() bool { return c.Room.URL == "https://ktv.example.com/102" }},
		{"renderer.device", "Living Room TV", func() bool { return c.Renderer.Device == "Living Room TV" }},
		{"renderer.retries", "5", func() bool { return c.Renderer.Retries == 5 }},
		{"sync.end_threshold_ms", "1500", func() bool { return c.Sync.EndThreshold == 1500 }},
		{"room.notify", "true", func() bool { return c.Room.Notify }},
		{"log.file_enabled", "1", func() bool { return c.Log.FileEnabled }},
	}

	for _, tt := range tests {
		if err := setConfigValue(c, tt.key, tt.value); err != nil {
			t.Errorf("setConfigValue(%q) error = %v", tt.key, err)
			continue
		}
		if !tt.check() {
			t.Errorf("setConfigValue(%q, %q) did not apply", tt.key, tt.value)
		}
	}
}

func TestSetConfigValueErrors(t *testing.T) {
	c := config.Default()

	tests := []struct{ key, value string }{
		{"renderer.retries", "many"},
		{"room.notify", "perhaps"},
		{"spotify.client_id", "x"},
		{"room", "x"},
	}

	for _, tt := range tests {
		if err := setConfigValue(c, tt.key, tt.value); err == nil {
			t.Errorf("setConfigValue(%q, %q) expected error", tt.key, tt.value)
		}
	}
}

func TestReadConfigFile(t *testing.T) {
	dir := t.TempDir()

	// Missing file starts from defaults.
	c, err := readConfigFile(filepath.Join(dir, "missing.toml"))
	if err != nil {
		t.Fatalf("readConfigFile() error = %v", err)
	}
	if c.Renderer.Retries != config.Default().Renderer.Retries {
		t.Errorf("Retries = %d, want default", c.Renderer.Retries)
	}

	// Existing file is read as-is, without defaults filled in.
	path := filepath.Join(dir, "config.toml")
	content := "[renderer]\ndevice = \"Box\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err = readConfigFile(path)
	if err != nil {
		t.Fatalf("readConfigFile() error = %v", err)
	}
	if c.Renderer.Device != "Box" {
		t.Errorf("Device = %q, want Box", c.Renderer.Device)
	}
	if c.Renderer.Retries != 0 {
		t.Errorf("Retries = %d, want 0", c.Renderer.Retries)
	}

	if err := os.WriteFile(path, []byte("[renderer\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := readConfigFile(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestConfigSetRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	oldFile, oldJSON := cfgFile, jsonOut
	defer func() { cfgFile, jsonOut = oldFile, oldJSON }()
	cfgFile, jsonOut = path, true

	if err := runConfigSet(configSetCmd, []string{"room.url", "https://ktv.example.com/7"}); err != nil {
		t.Fatalf("runConfigSet() error = %v", err)
	}

	loaded, err := config.LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if loaded.Room.URL != "https://ktv.example.com/7" {
		t.Errorf("Room.URL = %q", loaded.Room.URL)
	}

	if err := runConfigSet(configSetCmd, []string{"room.url", "ftp://nope"}); err == nil {
		t.Error("expected validation error for non-http url")
	}
}
