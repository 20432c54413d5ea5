package config

// ApplyDefaults fills zero values with the built-in defaults. Explicitly
// configured values are preserved.
func ApplyDefaults(cfg *Config) {
	if cfg.Listen.Addr == "" {
		cfg.Listen.Addr = "0.0.0.0"
	}
	if cfg.Listen.Port == 0 {
		cfg.Listen.Port = 10000
	}

	if cfg.IPCheck.Addr == "" {
		cfg.IPCheck.Addr = "0.0.0.0"
	}
	if cfg.IPCheck.Port == 0 {
		cfg.IPCheck.Port = 10001
	}
	if cfg.IPCheck.Response == "" {
		cfg.IPCheck.Response = "reject"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Queue.MaxQueueSize == 0 {
		cfg.Queue.MaxQueueSize = 50
	}
	if cfg.Queue.MaxRetryTimeMinutes == 0 {
		cfg.Queue.MaxRetryTimeMinutes = 60
	}
	if cfg.Queue.ShutdownPolicy == "" {
		cfg.Queue.ShutdownPolicy = "discard"
	}

	if cfg.DefaultPriority == 0 {
		// Urgent. Unlisted codes include the alarm family (BA, FA, PA, TA)
		// so the safe default is loud.
		cfg.DefaultPriority = 5
	}
	if cfg.Priorities == nil {
		cfg.Priorities = DefaultPriorities()
	}
}

// DefaultPriorities is the priority table used when none is configured:
// tests low, user actions normal, power restores high, everything else (the
// alarm codes) falls through to DefaultPriority.
func DefaultPriorities() map[string]int {
	return map[string]int{
		// Tests and routine events.
		"RX": 2,
		"RP": 2,
		"TS": 2,
		"TE": 2,

		// Arm, disarm and user actions.
		"CL": 3,
		"OP": 3,
		"CA": 3,
		"OA": 3,
		"BC": 3,
		"OR": 3,

		// System recovery, non-critical.
		"AR": 4,
		"XR": 4,
	}
}
