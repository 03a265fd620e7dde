package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if err := c.Room.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("room: %w", err))
	}
	if err := c.Renderer.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("renderer: %w", err))
	}
	if err := c.Sync.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("sync: %w", err))
	}
	if err := c.Log.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("log: %w", err))
	}

	return errors.Join(errs...)
}

// Validate checks RoomConfig for errors.
func (c *RoomConfig) Validate() error {
	if c.URL != "" {
		u, err := url.Parse(c.URL)
		if err != nil {
			return fmt.Errorf("invalid url: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("invalid url scheme: %q (must be http or https)", u.Scheme)
		}
	}
	switch c.Protocol {
	case "", "songlist", "revision":
	default:
		return fmt.Errorf("invalid protocol: %q (must be songlist or revision)", c.Protocol)
	}
	if c.PollInterval < 0 {
		return errors.New("poll_interval_ms must be non-negative")
	}
	if c.RequestTimeout < 0 {
		return errors.New("request_timeout_ms must be non-negative")
	}
	return nil
}

// Validate checks RendererConfig for errors.
func (c *RendererConfig) Validate() error {
	if c.Location != "" {
		if _, err := url.Parse(c.Location); err != nil {
			return fmt.Errorf("invalid location: %w", err)
		}
	}
	if c.DiscoveryTimeout < 0 {
		return errors.New("discovery_timeout_ms must be non-negative")
	}
	if c.StatusInterval < 0 {
		return errors.New("status_interval_ms must be non-negative")
	}
	if c.CallTimeout < 0 {
		return errors.New("call_timeout_ms must be non-negative")
	}
	if c.Retries < 0 || c.Retries > 10 {
		return errors.New("retries must be between 0 and 10")
	}
	if c.RetryBackoff < 0 {
		return errors.New("retry_backoff_ms must be non-negative")
	}
	return nil
}

// Validate checks SyncConfig for errors.
func (c *SyncConfig) Validate() error {
	if c.RecoveryAttempts < 0 {
		return errors.New("recovery_attempts must be non-negative")
	}
	if c.RecoveryInterval < 0 {
		return errors.New("recovery_interval_ms must be non-negative")
	}
	if c.EndThreshold < 0 {
		return errors.New("end_threshold_ms must be non-negative")
	}
	return nil
}

// Validate checks LogConfig for errors.
func (c *LogConfig) Validate() error {
	switch c.Level {
	case "", "debug", "info", "warn", "error":
		// valid
	default:
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Level)
	}
	switch c.Format {
	case "", "console", "json":
		// valid
	default:
		return fmt.Errorf("invalid log format: %s (must be console or json)", c.Format)
	}
	if c.MaxSizeMB < 0 || c.MaxBackups < 0 || c.MaxAgeDays < 0 {
		return errors.New("rotation limits must be non-negative")
	}
	return nil
}
