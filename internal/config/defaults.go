package config

// Default returns a Config populated with sensible defaults.
func Default() *Config {
	return &Config{
		Room: RoomConfig{
			Protocol:       "songlist",
			PollInterval:   3000,
			RequestTimeout: 5000,
			NotifyNickname: "ktv-casting",
		},
		Renderer: RendererConfig{
			DiscoveryTimeout: 3000,
			StatusInterval:   1000,
			CallTimeout:      5000,
			Retries:          3,
			RetryBackoff:     500,
		},
		Sync: SyncConfig{
			RecoveryAttempts: 5,
			RecoveryInterval: 5000,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "console",
			File:       "logs/ktv-casting.log",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 7,
		},
	}
}

// ApplyDefaults fills in zero values with sensible defaults.
func (c *Config) ApplyDefaults() {
	d := Default()

	// Room
	if c.Room.Protocol == "" {
		c.Room.Protocol = d.Room.Protocol
	}
	if c.Room.PollInterval == 0 {
		c.Room.PollInterval = d.Room.PollInterval
	}
	if c.Room.RequestTimeout == 0 {
		c.Room.RequestTimeout = d.Room.RequestTimeout
	}
	if c.Room.NotifyNickname == "" {
		c.Room.NotifyNickname = d.Room.NotifyNickname
	}

	// Renderer
	if c.Renderer.DiscoveryTimeout == 0 {
		c.Renderer.DiscoveryTimeout = d.Renderer.DiscoveryTimeout
	}
	if c.Renderer.StatusInterval == 0 {
		c.Renderer.StatusInterval = d.Renderer.StatusInterval
	}
	if c.Renderer.CallTimeout == 0 {
		c.Renderer.CallTimeout = d.Renderer.CallTimeout
	}
	if c.Renderer.Retries == 0 {
		c.Renderer.Retries = d.Renderer.Retries
	}
	if c.Renderer.RetryBackoff == 0 {
		c.Renderer.RetryBackoff = d.Renderer.RetryBackoff
	}

	// Sync
	if c.Sync.RecoveryAttempts == 0 {
		c.Sync.RecoveryAttempts = d.Sync.RecoveryAttempts
	}
	if c.Sync.RecoveryInterval == 0 {
		c.Sync.RecoveryInterval = d.Sync.RecoveryInterval
	}

	// Log
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
	if c.Log.File == "" {
		c.Log.File = d.Log.File
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = d.Log.MaxSizeMB
	}
	if c.Log.MaxBackups == 0 {
		c.Log.MaxBackups = d.Log.MaxBackups
	}
	if c.Log.MaxAgeDays == 0 {
		c.Log.MaxAgeDays = d.Log.MaxAgeDays
	}
}
