package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/numlab/numerosity/types"
)

// Config represents a numerosity.yaml configuration file.
// All values are optional and act as defaults for numerosity run flags.
// CLI flags always override config values.
type Config struct {
	Experiment  string          `yaml:"experiment"`
	Participant string          `yaml:"participant"`
	Settings    *types.Settings `yaml:"settings"`
	Device      DeviceConfig    `yaml:"device"`
	Frontend    FrontendConfig  `yaml:"frontend"`
	Storage     StorageConfig   `yaml:"storage"`
	Policy      PolicyConfig    `yaml:"policy"`
	Adapter     AdapterConfig   `yaml:"adapter"`
}

// DeviceConfig selects and tunes the trigger device.
type DeviceConfig struct {
	// Type is serial, usb or none.
	Type        string   `yaml:"type"`
	Port        string   `yaml:"port"`
	Baud        int      `yaml:"baud"`
	VendorID    uint16   `yaml:"vid"`
	ProductID   uint16   `yaml:"pid"`
	SendTimeout Duration `yaml:"send_timeout"`
	QueueSize   int      `yaml:"queue_size"`
}

// FrontendConfig selects the participant screen.
type FrontendConfig struct {
	// Type is tui, stdio or process.
	Type    string   `yaml:"type"`
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
}

// StorageConfig holds storage defaults from the config file.
type StorageConfig struct {
	Dataset     string `yaml:"dataset"`
	Backend     string `yaml:"backend"`
	Path        string `yaml:"path"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// PolicyConfig holds record policy defaults from the config file.
type PolicyConfig struct {
	Name          string   `yaml:"name"`
	BufferRecords int      `yaml:"buffer_records"`
	FlushCount    int      `yaml:"flush_count"`
	FlushInterval Duration `yaml:"flush_interval"`
}

// AdapterConfig holds completion adapter defaults from the config file.
type AdapterConfig struct {
	Type    string            `yaml:"type"`
	URL     string            `yaml:"url"`
	Channel string            `yaml:"channel,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// Validate checks enumerated values. Empty values mean "use the flag default".
func (c *Config) Validate() error {
	var errs []error
	check := func(field, value string, allowed ...string) {
		if value == "" {
			return
		}
		for _, a := range allowed {
			if value == a {
				return
			}
		}
		errs = append(errs, fmt.Errorf("%s: unknown value %q (allowed: %v)", field, value, allowed))
	}
	check("device.type", c.Device.Type, "serial", "usb", "none")
	check("frontend.type", c.Frontend.Type, "tui", "stdio", "process")
	check("storage.backend", c.Storage.Backend, "fs", "s3", "memory")
	check("policy.name", c.Policy.Name, "strict", "buffered", "streaming", "noop")
	check("adapter.type", c.Adapter.Type, "webhook", "redis")

	if c.Frontend.Type == "process" && c.Frontend.Command == "" {
		errs = append(errs, errors.New("frontend.command is required for the process front-end"))
	}
	if c.Settings != nil {
		if err := c.Settings.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("settings: %w", err))
		}
	}
	return errors.Join(errs...)
}
