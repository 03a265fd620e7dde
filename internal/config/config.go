package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "KTV_CASTING_"

// Load reads configuration from standard locations with environment overrides.
// Search order: ~/.ktv-castingrc, $XDG_CONFIG_HOME/ktv-casting/config.toml, ~/.config/ktv-casting/config.toml
func Load() (*Config, error) {
	cfg := &Config{}

	// .env never overrides variables already set in the environment
	_ = godotenv.Load()

	path := findConfigFile()
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	}

	cfg.ApplyDefaults()
	applyEnvOverrides(cfg)

	return cfg, nil
}

// LoadFrom reads configuration from a specific file path.
func LoadFrom(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	cfg.ApplyDefaults()
	applyEnvOverrides(cfg)
	return cfg, nil
}

// Save writes the configuration as TOML, creating parent directories.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create config file: %w", err)
	}
	defer f.Close()

	enc := toml.NewEncoder(f)
	enc.Indent = "  "
	return enc.Encode(cfg)
}

// DefaultPath returns the path used by 'config init'.
func DefaultPath() string {
	if p := findConfigFile(); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.toml"
	}
	xdgConfig := os.Getenv("XDG_CONFIG_HOME")
	if xdgConfig == "" {
		xdgConfig = filepath.Join(home, ".config")
	}
	return filepath.Join(xdgConfig, "ktv-casting", "config.toml")
}

// findConfigFile returns the first existing config file path.
func findConfigFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	paths := []string{
		filepath.Join(home, ".ktv-castingrc"),
	}

	xdgConfig := os.Getenv("XDG_CONFIG_HOME")
	if xdgConfig == "" {
		xdgConfig = filepath.Join(home, ".config")
	}
	paths = append(paths, filepath.Join(xdgConfig, "ktv-casting", "config.toml"))

	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}

func envInt(key string, dst *int) {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			*dst = i
		}
	}
}

func envBool(key string, dst *bool) {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func envString(key string, dst *string) {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		*dst = v
	}
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(cfg *Config) {
	// Room
	envString("ROOM_URL", &cfg.Room.URL)
	envString("ROOM_PROTOCOL", &cfg.Room.Protocol)
	envInt("ROOM_POLL_INTERVAL_MS", &cfg.Room.PollInterval)
	envBool("ROOM_NOTIFY", &cfg.Room.Notify)

	// Renderer
	envString("RENDERER_DEVICE", &cfg.Renderer.Device)
	envString("RENDERER_LOCATION", &cfg.Renderer.Location)
	envInt("RENDERER_DISCOVERY_TIMEOUT_MS", &cfg.Renderer.DiscoveryTimeout)
	envInt("RENDERER_STATUS_INTERVAL_MS", &cfg.Renderer.StatusInterval)
	envInt("RENDERER_RETRIES", &cfg.Renderer.Retries)

	// Sync
	envInt("SYNC_RECOVERY_ATTEMPTS", &cfg.Sync.RecoveryAttempts)
	envInt("SYNC_END_THRESHOLD_MS", &cfg.Sync.EndThreshold)

	// Log
	envString("LOG_LEVEL", &cfg.Log.Level)
	envString("LOG_FILE", &cfg.Log.File)
	envBool("LOG_FILE_ENABLED", &cfg.Log.FileEnabled)
}
