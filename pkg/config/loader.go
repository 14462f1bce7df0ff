package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "clicksim3d"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "CLICKSIM"
)

// Loader layers defaults, a config file, CLICKSIM_* environment variables
// and bound command-line flags, in increasing priority.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	l := &Loader{v: viper.New()}
	l.setupEnvironmentVariables()
	l.setDefaults()
	return l
}

// BindFlag binds a command-line flag to a configuration key such as
// "sampler.method". A nil flag is ignored.
func (l *Loader) BindFlag(key string, flag *pflag.Flag) error {
	if flag == nil {
		return nil
	}
	if err := l.v.BindPFlag(key, flag); err != nil {
		return fmt.Errorf("error binding flag %s: %w", flag.Name, err)
	}
	return nil
}

// Load searches the standard locations for clicksim3d.yaml. A missing file
// is not an error.
func (l *Loader) Load() (*Config, error) {
	l.v.SetConfigName(ConfigFileName)
	l.v.SetConfigType("yaml")
	l.addConfigPaths()

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return l.unmarshal()
}

// LoadWithFile loads configuration from a specific file path.
func (l *Loader) LoadWithFile(configFile string) (*Config, error) {
	if configFile == "" {
		return l.Load()
	}
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configFile)
	}

	l.v.SetConfigFile(configFile)
	if err := l.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
	}
	return l.unmarshal()
}

// ConfigFileUsed returns the path of the config file used, if any.
func (l *Loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

func (l *Loader) unmarshal() (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// addConfigPaths adds the standard configuration search paths.
func (l *Loader) addConfigPaths() {
	for _, p := range SearchPaths() {
		l.v.AddConfigPath(p)
	}
}

// SearchPaths returns the directories searched for clicksim3d.yaml, in order.
func SearchPaths() []string {
	paths := []string{"."}
	if configDir, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		paths = append(paths, filepath.Join(configDir, "clicksim3d"))
	} else if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "clicksim3d"))
	}
	return append(paths, "/etc/clicksim3d")
}

// setupEnvironmentVariables maps sampler.intensityThreshold to
// CLICKSIM_SAMPLER_INTENSITYTHRESHOLD and so on.
func (l *Loader) setupEnvironmentVariables() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.AutomaticEnv()
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

// setDefaults registers every key so that environment overrides apply.
func (l *Loader) setDefaults() {
	d := DefaultConfig()

	l.v.SetDefault("sampler.method", d.Sampler.Method)
	l.v.SetDefault("sampler.seed", d.Sampler.Seed)
	l.v.SetDefault("sampler.workers", d.Sampler.Workers)
	l.v.SetDefault("sampler.intensityThreshold", d.Sampler.IntensityThreshold)

	l.v.SetDefault("distance.engine", d.Distance.Engine)
	l.v.SetDefault("distance.workers", d.Distance.Workers)

	l.v.SetDefault("components.connectivity", d.Components.Connectivity)

	l.v.SetDefault("output.format", d.Output.Format)
	l.v.SetDefault("output.overlayDir", d.Output.OverlayDir)
	l.v.SetDefault("output.overlayScale", d.Output.OverlayScale)
	l.v.SetDefault("output.metricsFile", d.Output.MetricsFile)

	l.v.SetDefault("log.level", d.Log.Level)
	l.v.SetDefault("log.verbose", d.Log.Verbose)
}
