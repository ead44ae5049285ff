// Package config provides configuration management for overlaywatch.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Version is the current version of overlaywatch.
// This is set at build time via ldflags.
var Version = "dev"

// Config holds all configuration options for overlaywatch.
type Config struct {
	// Connection
	ChromePort string
	AutoLaunch bool
	Headless   bool

	// Reporting
	ParentURL string
	OutputDir string

	// Detection
	OverlaySelector  string
	HeaderRetries    int
	HeaderRetryDelay time.Duration

	// Privacy
	Scrub bool

	// Injector
	AppDir     string
	ScriptsDir string
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		// Connection
		ChromePort: "9222",
		AutoLaunch: false,
		Headless:   false,

		// Reporting: parent delivery is opt-in; without a parent URL or an
		// output directory, reports are dropped with a warning.
		ParentURL: "",
		OutputDir: "",

		// Detection
		OverlaySelector:  "nextjs-portal",
		HeaderRetries:    10,
		HeaderRetryDelay: 200 * time.Millisecond,

		// Privacy
		Scrub: true,

		// Injector
		AppDir:     "../web",
		ScriptsDir: "./scripts",
	}
}

// fileConfig is the YAML schema of a config file. All fields are pointers so
// keys absent from the file can be told apart from zero values. Durations are
// strings in time.ParseDuration form ("200ms", "1s").
type fileConfig struct {
	ChromePort       *string `yaml:"chrome_port"`
	AutoLaunch       *bool   `yaml:"auto_launch"`
	Headless         *bool   `yaml:"headless"`
	ParentURL        *string `yaml:"parent_url"`
	OutputDir        *string `yaml:"output_dir"`
	OverlaySelector  *string `yaml:"overlay_selector"`
	HeaderRetries    *int    `yaml:"header_retries"`
	HeaderRetryDelay *string `yaml:"header_retry_delay"`
	Scrub            *bool   `yaml:"scrub"`
	AppDir           *string `yaml:"app_dir"`
	ScriptsDir       *string `yaml:"scripts_dir"`
}

// LoadFile overlays values from a YAML config file onto the receiver.
// Fields absent from the file keep their current values.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var file fileConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if file.ChromePort != nil {
		c.ChromePort = *file.ChromePort
	}
	if file.AutoLaunch != nil {
		c.AutoLaunch = *file.AutoLaunch
	}
	if file.Headless != nil {
		c.Headless = *file.Headless
	}
	if file.ParentURL != nil {
		c.ParentURL = *file.ParentURL
	}
	if file.OutputDir != nil {
		c.OutputDir = *file.OutputDir
	}
	if file.OverlaySelector != nil {
		c.OverlaySelector = *file.OverlaySelector
	}
	if file.HeaderRetries != nil {
		c.HeaderRetries = *file.HeaderRetries
	}
	if file.HeaderRetryDelay != nil {
		d, err := time.ParseDuration(*file.HeaderRetryDelay)
		if err != nil {
			return fmt.Errorf("invalid header_retry_delay in %s: %w", path, err)
		}
		c.HeaderRetryDelay = d
	}
	if file.Scrub != nil {
		c.Scrub = *file.Scrub
	}
	if file.AppDir != nil {
		c.AppDir = *file.AppDir
	}
	if file.ScriptsDir != nil {
		c.ScriptsDir = *file.ScriptsDir
	}

	return c.Validate()
}

// Validate checks that configured values are usable.
func (c *Config) Validate() error {
	if c.ChromePort == "" {
		return fmt.Errorf("chrome_port must not be empty")
	}
	if c.OverlaySelector == "" {
		return fmt.Errorf("overlay_selector must not be empty")
	}
	if c.HeaderRetries < 0 {
		return fmt.Errorf("header_retries must not be negative")
	}
	if c.HeaderRetryDelay < 0 {
		return fmt.Errorf("header_retry_delay must not be negative")
	}
	return nil
}
