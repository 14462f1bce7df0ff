// Package config provides configuration loading and management for clicksim3d.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"clicksim3d/internal/metrics"
	"clicksim3d/pkg/clicks"
	"clicksim3d/pkg/components"
	"clicksim3d/pkg/distance"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Output formats.
const (
	FormatJSON = "json"
	FormatText = "text"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Sampler parameters
	Sampler struct {
		// Method selects the click simulation strategy
		Method string `yaml:"method" mapstructure:"method"`

		// Seed makes every run reproducible
		Seed uint64 `yaml:"seed" mapstructure:"seed"`

		// Workers bounds the batch entries sampled concurrently
		Workers int `yaml:"workers" mapstructure:"workers"`

		// IntensityThreshold is the weak reference cutoff for threshold_only
		IntensityThreshold float64 `yaml:"intensityThreshold" mapstructure:"intensityThreshold"`
	} `yaml:"sampler" mapstructure:"sampler"`

	// Distance transform parameters
	Distance struct {
		// Engine is "exact" or "kdtree"
		Engine string `yaml:"engine" mapstructure:"engine"`

		// Workers is the parallelism inside one transform
		Workers int `yaml:"workers" mapstructure:"workers"`
	} `yaml:"distance" mapstructure:"distance"`

	// Connected component parameters
	Components struct {
		// Connectivity is 6, 18 or 26
		Connectivity int `yaml:"connectivity" mapstructure:"connectivity"`
	} `yaml:"components" mapstructure:"components"`

	// Output parameters
	Output struct {
		// Format of the printed click set, "json" or "text"
		Format string `yaml:"format" mapstructure:"format"`

		// OverlayDir receives one PNG per click when set
		OverlayDir string `yaml:"overlayDir" mapstructure:"overlayDir"`

		// OverlayScale is the upscale factor of overlay images
		OverlayScale int `yaml:"overlayScale" mapstructure:"overlayScale"`

		// MetricsFile receives a Prometheus text dump when set
		MetricsFile string `yaml:"metricsFile" mapstructure:"metricsFile"`
	} `yaml:"output" mapstructure:"output"`

	// Logging parameters
	Log struct {
		// Level is debug, info, warn or error
		Level string `yaml:"level" mapstructure:"level"`

		// Verbose forces debug logging
		Verbose bool `yaml:"verbose" mapstructure:"verbose"`
	} `yaml:"log" mapstructure:"log"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Sampler.Method = string(clicks.DefaultMethod)
	cfg.Sampler.Seed = 0
	cfg.Sampler.Workers = runtime.NumCPU()
	cfg.Sampler.IntensityThreshold = clicks.DefaultIntensityThreshold

	cfg.Distance.Engine = distance.EngineExact
	cfg.Distance.Workers = clicks.DefaultDistanceWorkers

	cfg.Components.Connectivity = int(components.Corners)

	cfg.Output.Format = FormatJSON
	cfg.Output.OverlayScale = 8

	cfg.Log.Level = "info"
	cfg.Log.Verbose = false

	return cfg
}

// Validate rejects settings no sampler can run with.
func (c *Config) Validate() error {
	if _, err := clicks.ParseMethod(c.Sampler.Method); err != nil {
		return fmt.Errorf("%w: sampler.method: %w", ErrInvalid, err)
	}
	if c.Sampler.Workers < 0 {
		return fmt.Errorf("%w: sampler.workers must not be negative, got %d", ErrInvalid, c.Sampler.Workers)
	}
	if _, err := distance.New(c.Distance.Engine); err != nil {
		return fmt.Errorf("%w: distance.engine: %w", ErrInvalid, err)
	}
	if c.Distance.Workers < 0 {
		return fmt.Errorf("%w: distance.workers must not be negative, got %d", ErrInvalid, c.Distance.Workers)
	}
	if !components.Connectivity(c.Components.Connectivity).Valid() {
		return fmt.Errorf("%w: components.connectivity must be 6, 18 or 26, got %d",
			ErrInvalid, c.Components.Connectivity)
	}
	switch c.Output.Format {
	case FormatJSON, FormatText:
	default:
		return fmt.Errorf("%w: output.format must be json or text, got %q", ErrInvalid, c.Output.Format)
	}
	if c.Output.OverlayScale < 1 {
		return fmt.Errorf("%w: output.overlayScale must be at least 1, got %d", ErrInvalid, c.Output.OverlayScale)
	}
	if _, ok := levels[c.Log.Level]; !ok {
		return fmt.Errorf("%w: log.level must be debug, info, warn or error, got %q", ErrInvalid, c.Log.Level)
	}
	return nil
}

var levels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// LogLevel returns the slog level. Verbose wins over Level.
func (c *Config) LogLevel() slog.Level {
	if c.Log.Verbose {
		return slog.LevelDebug
	}
	if l, ok := levels[c.Log.Level]; ok {
		return l
	}
	return slog.LevelInfo
}

// SamplerOptions turns the sampler, distance and component sections into
// clicks.Options.
func (c *Config) SamplerOptions(rec *metrics.Recorder) (clicks.Options, error) {
	engine, err := distance.New(c.Distance.Engine)
	if err != nil {
		return clicks.Options{}, err
	}
	return clicks.Options{
		Workers:            c.Sampler.Workers,
		IntensityThreshold: clicks.Threshold(c.Sampler.IntensityThreshold),
		DistanceEngine:     engine,
		DistanceWorkers:    c.Distance.Workers,
		Connectivity:       components.Connectivity(c.Components.Connectivity),
		Metrics:            rec,
	}, nil
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

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

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
