package config

import (
	"fmt"
)

// Validate checks a normalized configuration. It does not mutate it.
func Validate(cfg *Config) error {
	p := cfg.Poll

	if p.TickMs < 0 {
		return fmt.Errorf("poll: tick_ms must be positive")
	}

	if p.MinPollMs < 0 || p.CheckExpiryMs < 0 {
		return fmt.Errorf("poll: min_poll_ms and check_expiry_ms must be positive")
	}

	if p.MinPollMs < p.TickMs {
		return fmt.Errorf("poll: min_poll_ms (%d) is shorter than tick_ms (%d)", p.MinPollMs, p.TickMs)
	}

	if p.CheckExpiryMs < p.TickMs {
		return fmt.Errorf("poll: check_expiry_ms (%d) is shorter than tick_ms (%d)", p.CheckExpiryMs, p.TickMs)
	}

	if p.MaxEntries < 0 {
		return fmt.Errorf("poll: max_entries must not be negative")
	}

	if cfg.Request.TimeoutMs < 0 {
		return fmt.Errorf("request: timeout_ms must be positive")
	}

	if r := cfg.Request.Retries; r != nil && *r < 0 {
		return fmt.Errorf("request: retries must not be negative")
	}

	names := make(map[string]bool)

	for i, rs := range cfg.Rules {
		if rs.Name == "" {
			return fmt.Errorf("rules[%d]: name is required", i)
		}

		if names[rs.Name] {
			return fmt.Errorf("rules[%d]: duplicate rule set %q", i, rs.Name)
		}

		names[rs.Name] = true
	}

	return nil
}
