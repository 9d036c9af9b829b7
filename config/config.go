// Package config loads the network configuration from YAML.
package config

import (
	"fmt"
	"github.com/shimmeringbee/zwa/poll"
	"github.com/shimmeringbee/zwa/rules"
	"gopkg.in/yaml.v3"
	"os"
	"time"
)

type Config struct {
	Poll    PollConfig      `yaml:"poll"`
	Request RequestConfig   `yaml:"request"`
	Rules   []rules.RuleSet `yaml:"rules"`

	// DefaultRules disables the embedded rule sets when set to false.
	DefaultRules *bool `yaml:"default_rules"`
}

type PollConfig struct {
	Enabled       *bool `yaml:"enabled"`
	TickMs        int   `yaml:"tick_ms"`
	MinPollMs     int   `yaml:"min_poll_ms"`
	CheckExpiryMs int   `yaml:"check_expiry_ms"`
	MaxEntries    int   `yaml:"max_entries"`
}

type RequestConfig struct {
	TimeoutMs int  `yaml:"timeout_ms"`
	Retries   *int `yaml:"retries"`
}

const DefaultRequestTimeout = 3 * time.Second
const DefaultRequestRetries = 3

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	Normalize(cfg)
	return cfg
}

// Load reads, normalizes and validates the configuration at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	cfg := &Config{}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	Normalize(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) PollConfig() poll.Config {
	return poll.Config{
		Enabled:         *c.Poll.Enabled,
		TickInterval:    time.Duration(c.Poll.TickMs) * time.Millisecond,
		MinPollTime:     time.Duration(c.Poll.MinPollMs) * time.Millisecond,
		CheckExpiryTime: time.Duration(c.Poll.CheckExpiryMs) * time.Millisecond,
		MaxEntries:      c.Poll.MaxEntries,
	}
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Request.TimeoutMs) * time.Millisecond
}

func (c *Config) RequestRetries() int {
	return *c.Request.Retries
}

func (c *Config) UseDefaultRules() bool {
	return *c.DefaultRules
}

// RuleEngine builds and compiles the rule engine from the embedded and configured rule sets. Configured rule sets
// replace embedded ones of the same name.
func (c *Config) RuleEngine() (*rules.Engine, error) {
	e := rules.New()

	if c.UseDefaultRules() {
		if err := e.LoadFS(rules.Embedded); err != nil {
			return nil, fmt.Errorf("load default rules: %w", err)
		}
	}

	for _, rs := range c.Rules {
		e.RuleSets[rs.Name] = rs
	}

	if err := e.CompileRules(); err != nil {
		return nil, err
	}

	return e, nil
}
