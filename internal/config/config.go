/*
PURPOSE:
  Defines the configuration structure and loading logic for Edge Runner.
  Adheres to "Config IS Code" philosophy.

REQUIREMENTS:
  User-specified:
  - Configure devices, models, the run matrix, and timing policy
    (timeout, retries, backoff, cooldown).

  Implementation-discovered:
  - Needs to support YAML parsing.
  - Durations must round-trip as Go duration strings ("300s", "2m").

ARCHITECTURE INTEGRATION:
  - Used by: internal/cli, internal/matrix, internal/engine
  - Dependencies: gopkg.in/yaml.v3 (standard for Go config)

ERROR HANDLING:
  - Returns explicit error if config file is invalid.
  - Missing file falls back to defaults (caller may then rely on CLI flags).

IMPLEMENTATION RULES:
  - Config struct tags should support yaml.
  - Defaults should be sensible (e.g., 300s run timeout, 30s cooldown).
  - Matrix validity is checked by internal/matrix, not here.

USAGE:
  cfg, err := config.Load("edge_runner.yaml")

SELF-HEALING INSTRUCTIONS:
  - If new fields are needed, add to Config struct and update Load() defaults.

RELATED FILES:
  - internal/cli/root.go
  - internal/matrix/matrix.go

MAINTENANCE:
  - Update when adding new tuning parameters.
*/

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/edge-bench/edge-runner/internal/model"
)

// Duration accepts human-readable YAML scalars ("300s", "2m") as well as
// plain nanosecond integers.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err == nil {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", raw, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var ns int64
	if err := value.Decode(&ns); err != nil {
		return fmt.Errorf("invalid duration value %q", value.Value)
	}
	*d = Duration(ns)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// D returns the plain time.Duration.
func (d Duration) D() time.Duration { return time.Duration(d) }

// Matrix lists the varying run parameters. Devices/Models optionally narrow
// the run to a subset of the top-level definitions, referenced by id/name;
// empty means all.
type Matrix struct {
	Devices    []string `yaml:"devices"`
	Models     []string `yaml:"models"`
	Threads    []int    `yaml:"threads"`
	Streams    []int    `yaml:"streams"`
	Precisions []string `yaml:"precisions"`
	Batches    []int    `yaml:"batches"`
	Repeats    int      `yaml:"repeats"`
}

// Config represents the full configuration for Edge Runner.
type Config struct {
	Devices []model.DeviceTarget `yaml:"devices"`
	Models  []model.ModelRef     `yaml:"models"`
	Matrix  Matrix               `yaml:"matrix"`

	// BundleDir is the local packaged bundle (benchmark binary, libs, models).
	// DeployRoot is where the bundle lives on the device; it must be writable.
	BundleDir  string `yaml:"bundle_dir"`
	DeployRoot string `yaml:"deploy_root"`

	RunTimeout   Duration `yaml:"run_timeout"`
	MaxAttempts  int      `yaml:"max_attempts"`
	RetryBackoff Duration `yaml:"retry_backoff"`
	Cooldown     Duration `yaml:"cooldown"`

	// Concurrency caps the number of device workers. 0 means one worker per
	// configured device.
	Concurrency int `yaml:"concurrency"`

	// TuneDevices enables best-effort device tuning before the first
	// invocation (animations off, screen off). Tuning failures never fail a
	// run.
	TuneDevices bool `yaml:"tune_devices"`

	OutputDir  string `yaml:"output_dir"`
	OutputFile string `yaml:"output_file"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Matrix: Matrix{
			Threads:    []int{4},
			Streams:    []int{1},
			Precisions: []string{"FP16"},
			Batches:    []int{1},
			Repeats:    1,
		},
		BundleDir:    "./bundle",
		DeployRoot:   "/data/local/tmp/edge-runner",
		RunTimeout:   Duration(300 * time.Second),
		MaxAttempts:  3,
		RetryBackoff: Duration(5 * time.Second),
		Cooldown:     Duration(30 * time.Second),
		TuneDevices:  true,
		OutputDir:    ".",
		OutputFile:   "bench_results.csv",
	}
}

// Load reads configuration from a file.
// If path is specified, it attempts to load that file.
// If path is empty, it searches for default files in order.
// If no file found, returns default config.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	var data []byte
	var err error

	if path != "" {
		data, err = os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
	} else {
		// Search for defaults
		defaults := []string{"edge_runner.yaml", "runner.yaml"}
		found := false
		for _, name := range defaults {
			data, err = os.ReadFile(name)
			if err == nil {
				path = name // record which file we loaded
				found = true
				break
			}
		}
		if !found {
			// No config file found, return default
			return cfg, nil
		}
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return cfg, nil
}

// Device returns the target with the given id, if configured.
func (c *Config) Device(id string) (model.DeviceTarget, bool) {
	for _, d := range c.Devices {
		if d.ID == id {
			return d, true
		}
	}
	return model.DeviceTarget{}, false
}

// Model returns the model ref with the given name, if configured.
func (c *Config) Model(name string) (model.ModelRef, bool) {
	for _, m := range c.Models {
		if m.Name == name {
			return m, true
		}
	}
	return model.ModelRef{}, false
}
