package config

import "github.com/shimmeringbee/zwa/poll"

// Normalize fills every unset field with its default. It is called before Validate.
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	if cfg.Poll.Enabled == nil {
		enabled := true
		cfg.Poll.Enabled = &enabled
	}

	if cfg.Poll.TickMs == 0 {
		cfg.Poll.TickMs = int(poll.DefaultTickInterval.Milliseconds())
	}

	if cfg.Poll.MinPollMs == 0 {
		cfg.Poll.MinPollMs = int(poll.DefaultMinPollTime.Milliseconds())
	}

	if cfg.Poll.CheckExpiryMs == 0 {
		cfg.Poll.CheckExpiryMs = int(poll.DefaultCheckExpiryTime.Milliseconds())
	}

	if cfg.Poll.MaxEntries == 0 {
		cfg.Poll.MaxEntries = poll.DefaultMaxEntries
	}

	if cfg.Request.TimeoutMs == 0 {
		cfg.Request.TimeoutMs = int(DefaultRequestTimeout.Milliseconds())
	}

	if cfg.Request.Retries == nil {
		retries := DefaultRequestRetries
		cfg.Request.Retries = &retries
	}

	if cfg.DefaultRules == nil {
		useDefault := true
		cfg.DefaultRules = &useDefault
	}
}
