// Package config provides configuration loading and management for ants2fsl.
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
	// External tool names, resolvable on PATH. Overridable for sites
	// that install wrappers or versioned binaries.
	Tools struct {
		// CompositeTransformUtil disassembles an ANTs composite transform
		// into its affine and displacement-field components
		CompositeTransformUtil string `yaml:"compositeTransformUtil"`

		// WbCommand is the Connectome Workbench CLI used to convert the
		// displacement field from ITK to FNIRT convention
		WbCommand string `yaml:"wbCommand"`

		// C3DAffineTool converts the affine matrix from ITK to FLIRT convention
		C3DAffineTool string `yaml:"c3dAffineTool"`

		// Convertwarp is the FSL tool that composes the affine and warp
		// field into one combined transform
		Convertwarp string `yaml:"convertwarp"`
	} `yaml:"tools"`

	// Pipeline parameters
	Pipeline struct {
		// ScratchDirName is the name of the scratch directory created
		// beside the input transform for intermediate artifacts
		ScratchDirName string `yaml:"scratchDirName"`

		// KeepScratch retains the scratch directory after a successful run.
		// On failure the scratch directory is always retained for inspection.
		KeepScratch bool `yaml:"keepScratch"`

		// Verbose controls the level of progress output
		Verbose bool `yaml:"verbose"`
	} `yaml:"pipeline"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default tool names as shipped by ANTs, Workbench, Convert3D and FSL
	cfg.Tools.CompositeTransformUtil = "CompositeTransformUtil"
	cfg.Tools.WbCommand = "wb_command"
	cfg.Tools.C3DAffineTool = "c3d_affine_tool"
	cfg.Tools.Convertwarp = "convertwarp"

	// Set default pipeline parameters
	cfg.Pipeline.ScratchDirName = "tmp_ants2fsl"
	cfg.Pipeline.KeepScratch = false
	cfg.Pipeline.Verbose = true

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// ToolNames returns the configured external tool names in the order they
// are used by the pipeline.
func (c *Config) ToolNames() []string {
	return []string{
		c.Tools.CompositeTransformUtil,
		c.Tools.WbCommand,
		c.Tools.C3DAffineTool,
		c.Tools.Convertwarp,
	}
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
