// Package app assembles the bot from configuration.
package app

import (
	"fmt"

	"github.com/robfig/cron/v3"

	coreconfig "github.com/m3rciful/earlybot/core/config"
	coredatabase "github.com/m3rciful/earlybot/core/database"
	"github.com/m3rciful/earlybot/internal/broadcast"
	"github.com/m3rciful/earlybot/internal/onboarding"
)

// Config is the full bot configuration: the shared core settings plus the
// store and service tuning.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database   coredatabase.Config `yaml:"database"`
	Broadcast  broadcast.Config    `yaml:"broadcast"`
	Onboarding onboarding.Config   `yaml:"onboarding"`
}

// CoreConfig exposes the embedded core configuration to the runner.
func (c *Config) CoreConfig() *coreconfig.Config {
	return &c.Config
}

// LoadConfig reads path (optional) and the environment, then validates.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.LoadInto(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates every section and fills defaults.
func (c *Config) Normalize() error {
	if err := coreconfig.Normalize(&c.Config); err != nil {
		return err
	}
	if err := c.Database.Normalize(); err != nil {
		return err
	}
	if err := c.Broadcast.Normalize(); err != nil {
		return err
	}
	if err := c.Onboarding.Normalize(); err != nil {
		return err
	}
	if _, err := cron.ParseStandard(c.Onboarding.SweepSpec); err != nil {
		return fmt.Errorf("invalid onboarding.sweep_spec %q: %w", c.Onboarding.SweepSpec, err)
	}
	return nil
}
