package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"zeinbus/internal/booking"
)

// FaresConfig is the root of fares.yaml. It overrides the system default
// per-seat fares used when a pickup point has no price of its own.
type FaresConfig struct {
	Defaults booking.Fares `yaml:"defaults"`
}

// LoadFares loads and validates the fares file. A missing path yields the
// built-in defaults.
func LoadFares(path string) (*FaresConfig, error) {
	if path == "" {
		return &FaresConfig{Defaults: booking.DefaultFares}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fares config: %w", err)
	}

	var cfg FaresConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse fares config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate fares config: %w", err)
	}

	return &cfg, nil
}

// Validate rejects negative fares. Zero means "use the built-in default".
func (c *FaresConfig) Validate() error {
	if c.Defaults.OneWay < 0 {
		return fmt.Errorf("defaults.one_way cannot be negative")
	}
	if c.Defaults.Return < 0 {
		return fmt.Errorf("defaults.return cannot be negative")
	}
	if c.Defaults.RoundTrip < 0 {
		return fmt.Errorf("defaults.round_trip cannot be negative")
	}
	return nil
}

// Pricing returns the resolver for these fares.
func (c *FaresConfig) Pricing() booking.Pricing {
	return booking.NewPricing(c.Defaults)
}
