// Package config loads the engine's YAML-driven driver configuration:
// solver tolerances, logging, and Monte-Carlo run sizing, everything
// cmd/veragrid subcommands need that isn't a per-invocation CLI flag.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration tree.
type Config struct {
	Logging     LoggingConfig     `yaml:"logging"`
	PowerFlow   PowerFlowConfig   `yaml:"power_flow"`
	Contingency ContingencyConfig `yaml:"contingency"`
	Reliability ReliabilityConfig `yaml:"reliability"`
	RMS         RMSConfig         `yaml:"rms"`
}

// LoggingConfig controls the ambient zerolog diagnostics emitted by
// cmd/veragrid, separate from each driver's own append-only vlog.Logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // console, json
}

// PowerFlowConfig holds the Newton-Raphson default tolerances.
type PowerFlowConfig struct {
	Tolerance             float64 `yaml:"tolerance"`
	MaxIter               int     `yaml:"max_iter"`
	MaxControlIterations  int     `yaml:"max_control_iterations"`
	MaxBacktrackDepth     int     `yaml:"max_backtrack_depth"`
	BacktrackingParameter float64 `yaml:"backtracking_parameter"`
	ControlQLimits        bool    `yaml:"control_q_limits"`
}

// ContingencyConfig holds N-1 scan and SRAP redispatch defaults.
type ContingencyConfig struct {
	Threshold    float64       `yaml:"threshold"`
	SrapEnabled  bool          `yaml:"srap_enabled"`
	SrapMaxPower float64       `yaml:"srap_max_power"`
	SrapTopN     int           `yaml:"srap_top_n"`
	SrapDeadband float64       `yaml:"srap_deadband"`
	Timeout      time.Duration `yaml:"timeout"`
}

// ReliabilityConfig holds Monte-Carlo sizing defaults.
type ReliabilityConfig struct {
	NSim         int     `yaml:"n_sim"`
	HorizonHours int     `yaml:"horizon_hours"`
	OverloadFrac float64 `yaml:"overload_frac"`
	Seed1        uint64  `yaml:"seed1"`
	Seed2        uint64  `yaml:"seed2"`
}

// RMSConfig holds time-domain integration defaults.
type RMSConfig struct {
	StepSec       float64 `yaml:"step_sec"`
	StopSec       float64 `yaml:"stop_sec"`
	NewtonTol     float64 `yaml:"newton_tol"`
	NewtonMaxIter int     `yaml:"newton_max_iter"`
	Method        string  `yaml:"method"` // implicit_euler, trapezoidal
}

// Default returns the engine's built-in defaults, used whenever no
// config file is present or a field is left unset in one.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info", Format: "console"},
		PowerFlow: PowerFlowConfig{
			Tolerance:             1e-8,
			MaxIter:               30,
			MaxControlIterations:  3,
			MaxBacktrackDepth:     6,
			BacktrackingParameter: 0.1,
			ControlQLimits:        true,
		},
		Contingency: ContingencyConfig{
			Threshold:    1e-6,
			SrapMaxPower: 50,
			SrapTopN:     3,
			SrapDeadband: 0.02,
			Timeout:      5 * time.Minute,
		},
		Reliability: ReliabilityConfig{
			NSim:         1000,
			HorizonHours: 8760,
			OverloadFrac: 1.0,
			Seed1:        1,
			Seed2:        2,
		},
		RMS: RMSConfig{
			StepSec:       0.01,
			StopSec:       10,
			NewtonTol:     1e-8,
			NewtonMaxIter: 30,
			Method:        "implicit_euler",
		},
	}
}

// Load reads and parses path, overlaying it on top of Default(). A
// missing file is not an error: the caller gets the defaults back.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = "veragrid.yaml"
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

// Save writes cfg to path as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks the loaded configuration for out-of-range values that
// would otherwise surface as a confusing failure deep inside a solver.
func (c *Config) Validate() error {
	if c.PowerFlow.Tolerance <= 0 {
		return fmt.Errorf("power_flow.tolerance must be positive")
	}
	if c.PowerFlow.MaxIter < 1 {
		return fmt.Errorf("power_flow.max_iter must be at least 1")
	}
	if c.Reliability.NSim < 1 {
		return fmt.Errorf("reliability.n_sim must be at least 1")
	}
	if c.RMS.StepSec <= 0 {
		return fmt.Errorf("rms.step_sec must be positive")
	}
	if c.RMS.Method != "implicit_euler" && c.RMS.Method != "trapezoidal" {
		return fmt.Errorf("rms.method must be implicit_euler or trapezoidal")
	}
	return nil
}
