// Package config provides configuration loading and management for dvfcomposer.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Motion model component files
	Components struct {
		// AP is the anterior-posterior (chest) component
		AP string `yaml:"ap"`

		// SI is the superior-inferior (diaphragm) component
		SI string `yaml:"si"`

		// Offset is the constant component
		Offset string `yaml:"offset"`
	} `yaml:"components"`

	// Surrogate signal values the DVF is evaluated at
	Surrogates struct {
		AP float64 `yaml:"ap"`
		SI float64 `yaml:"si"`
	} `yaml:"surrogates"`

	// Output parameters
	Output struct {
		// Path is where the composed DVF is written (.nii or .nii.gz)
		Path string `yaml:"path"`

		// CopyHeader copies the AP component's header metadata to the output
		CopyHeader bool `yaml:"copyHeader"`

		// DataType of the written voxels, float32 or float64. Empty keeps
		// the AP component's float type and falls back to float32.
		DataType string `yaml:"dataType"`

		// Summary prints displacement statistics of the composed DVF
		Summary bool `yaml:"summary"`

		// PreviewDir, when set, receives JPEG slices of each component
		PreviewDir string `yaml:"previewDir"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`

	// Geometry checks applied when loading the components
	Validation struct {
		// AffineTolerance is the largest allowed element difference between affines
		AffineTolerance float64 `yaml:"affineTolerance"`
	} `yaml:"validation"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Components.AP = "./modelComp_ap.nii.gz"
	cfg.Components.SI = "./modelComp_si.nii.gz"
	cfg.Components.Offset = "./modelComp_offest.nii.gz"

	// Surrogate values used when the motion model was fitted
	cfg.Surrogates.AP = 8.8
	cfg.Surrogates.SI = -34.88

	cfg.Output.Path = "./testOutDVF00.nii.gz"
	cfg.Output.CopyHeader = true
	cfg.Output.DataType = ""
	cfg.Output.Summary = false
	cfg.Output.Verbose = false

	cfg.Validation.AffineTolerance = 1e-4

	return cfg
}

// Validate checks values that cannot be defaulted
func (c *Config) Validate() error {
	if c.Components.AP == "" || c.Components.SI == "" || c.Components.Offset == "" {
		return fmt.Errorf("all three component paths must be set")
	}
	if c.Output.Path == "" {
		return fmt.Errorf("output path must be set")
	}
	if c.Validation.AffineTolerance < 0 {
		return fmt.Errorf("affine tolerance must be non-negative, got %g", c.Validation.AffineTolerance)
	}
	return nil
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}
