package config

import "time"

// Config is the root configuration structure.
type Config struct {
	Room     RoomConfig     `toml:"room" json:"room"`
	Renderer RendererConfig `toml:"renderer" json:"renderer"`
	Sync     SyncConfig     `toml:"sync" json:"sync"`
	Log      LogConfig      `toml:"log" json:"log"`
}

// RoomConfig holds remote room service settings.
type RoomConfig struct {
	URL            string `toml:"url" json:"url"`
	Protocol       string `toml:"protocol" json:"protocol"`
	PollInterval   int    `toml:"poll_interval_ms" json:"poll_interval_ms"`
	RequestTimeout int    `toml:"request_timeout_ms" json:"request_timeout_ms"`
	Notify         bool   `toml:"notify" json:"notify"`
	NotifyNickname string `toml:"notify_nickname" json:"notify_nickname"`
}

// RendererConfig holds DLNA renderer discovery and control settings.
type RendererConfig struct {
	Device           string `toml:"device" json:"device"`
	Location         string `toml:"location" json:"location"`
	DiscoveryTimeout int    `toml:"discovery_timeout_ms" json:"discovery_timeout_ms"`
	StatusInterval   int    `toml:"status_interval_ms" json:"status_interval_ms"`
	CallTimeout      int    `toml:"call_timeout_ms" json:"call_timeout_ms"`
	Retries          int    `toml:"retries" json:"retries"`
	RetryBackoff     int    `toml:"retry_backoff_ms" json:"retry_backoff_ms"`
}

// SyncConfig holds orchestrator settings.
type SyncConfig struct {
	RecoveryAttempts int `toml:"recovery_attempts" json:"recovery_attempts"`
	RecoveryInterval int `toml:"recovery_interval_ms" json:"recovery_interval_ms"`
	EndThreshold     int `toml:"end_threshold_ms" json:"end_threshold_ms"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level       string `toml:"level" json:"level"`
	Format      string `toml:"format" json:"format"`
	File        string `toml:"file" json:"file"`
	FileEnabled bool   `toml:"file_enabled" json:"file_enabled"`
	MaxSizeMB   int    `toml:"max_size_mb" json:"max_size_mb"`
	MaxBackups  int    `toml:"max_backups" json:"max_backups"`
	MaxAgeDays  int    `toml:"max_age_days" json:"max_age_days"`
	Compress    bool   `toml:"compress" json:"compress"`
}

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}

// PollEvery returns the room poll interval.
func (c RoomConfig) PollEvery() time.Duration { return ms(c.PollInterval) }

// Timeout returns the per-request timeout for the room service.
func (c RoomConfig) Timeout() time.Duration { return ms(c.RequestTimeout) }

// DiscoveryWindow returns how long to collect SSDP replies.
func (c RendererConfig) DiscoveryWindow() time.Duration { return ms(c.DiscoveryTimeout) }

// StatusEvery returns the renderer status poll interval.
func (c RendererConfig) StatusEvery() time.Duration { return ms(c.StatusInterval) }

// CallTimeoutDuration bounds a single SOAP round trip.
func (c RendererConfig) CallTimeoutDuration() time.Duration { return ms(c.CallTimeout) }

// BackoffBase returns the first retry wait.
func (c RendererConfig) BackoffBase() time.Duration { return ms(c.RetryBackoff) }

// RecoveryEvery returns the wait between recovery attempts.
func (c SyncConfig) RecoveryEvery() time.Duration { return ms(c.RecoveryInterval) }

// EndWindow returns the near-end threshold, zero when disabled.
func (c SyncConfig) EndWindow() time.Duration { return ms(c.EndThreshold) }
