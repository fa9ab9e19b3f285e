package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the tool configuration. All fields are optional; zero values
// fall back to the defaults from Default.
type Config struct {
	// Device is the I2C bus device path, e.g. "/dev/i2c-1".
	Device string `yaml:"device"`

	// Addresses pins the bus addresses to use. Empty means scan the bus.
	Addresses []uint16 `yaml:"addresses"`

	// Blacklist lists addresses the bus scan must not probe.
	Blacklist []uint16 `yaml:"blacklist"`

	// MaxRetries is the not-ready retry budget. nil keeps the default;
	// a negative value disables retries.
	MaxRetries *int `yaml:"max_retries"`

	// ResponseDelay overrides the per-module response delay in seconds.
	// Zero keeps each module's own delay.
	ResponseDelay float64 `yaml:"response_delay"`

	// ChecksumValidation enables response footer validation.
	ChecksumValidation bool `yaml:"checksum_validation"`

	// Workers is the fan-out pool size.
	Workers int `yaml:"workers"`

	// RecoverPanics keeps bus sweeps alive across panicking operations.
	RecoverPanics bool `yaml:"recover_panics"`

	// DefinitionFile is where discovered module definitions persist.
	DefinitionFile string `yaml:"definition_file"`

	// CaptureFile is where bus events are captured in CBOR format.
	// Empty disables capture.
	CaptureFile string `yaml:"capture_file"`

	// Verbose mirrors protocol events to the console.
	Verbose bool `yaml:"verbose"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Device:         "/dev/i2c-1",
		Workers:        2,
		DefinitionFile: "modules.json",
	}
}

// Load reads the configuration file at path, layered over the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks field values for consistency.
func (c *Config) Validate() error {
	if c.Device == "" {
		return fmt.Errorf("device must not be empty")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, have %d", c.Workers)
	}
	if c.ResponseDelay < 0 {
		return fmt.Errorf("response_delay must not be negative, have %g", c.ResponseDelay)
	}
	for _, addr := range c.Addresses {
		if addr < 0x03 || addr > 0x77 {
			return fmt.Errorf("address %#04x outside the 7-bit range 0x03..0x77", addr)
		}
	}
	return nil
}
