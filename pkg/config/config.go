// Package config loads the probe's configuration.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority, applied by the commands)
//  2. Environment variables (DURAPROBE_*)
//  3. Configuration file (YAML)
//  4. Default values (lowest priority)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config represents the duraprobe configuration.
//
// The run section configures the transaction simulator, the verify section
// the post-crash verifier. Everything here is static per invocation: the
// configuration value is constructed once from validated input and passed
// by reference; there is no mutable global configuration.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Run configures the transaction simulator
	Run RunConfig `mapstructure:"run" yaml:"run"`

	// Verify configures the post-crash verifier
	Verify VerifyConfig `mapstructure:"verify" yaml:"verify"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level: DEBUG, INFO, WARN, ERROR
	Level string `mapstructure:"level" yaml:"level"`

	// Format is "text" or "json"
	Format string `mapstructure:"format" yaml:"format"`

	// Output is "stderr", "stdout", or a file path. The default is stderr
	// so progress narration never mixes into the verifier's stdout report.
	Output string `mapstructure:"output" yaml:"output"`
}

// RunConfig configures the transaction simulator.
type RunConfig struct {
	// Dir is the working directory for test files, created if absent
	Dir string `mapstructure:"dir" yaml:"dir"`

	// WritePath selects how writes reach the kernel: "mmap" or "write"
	WritePath string `mapstructure:"write_path" yaml:"write_path"`

	// ExtendSync is the comma-separated barrier list applied after each
	// file extension (tokens: none, msync, fsync, fsyncparent, fullfsync)
	ExtendSync string `mapstructure:"extend_sync" yaml:"extend_sync"`

	// WriteSync is the barrier list applied after each write group
	WriteSync string `mapstructure:"write_sync" yaml:"write_sync"`

	// Policy is the growth pattern: "grow" or "slots"
	Policy string `mapstructure:"policy" yaml:"policy"`

	// Iterations is the number of transactions (grow) or growth steps (slots)
	Iterations int `mapstructure:"iterations" yaml:"iterations"`

	// Idle is the pause between write groups, the operator's window for
	// cutting power
	Idle time.Duration `mapstructure:"idle" yaml:"idle"`

	// VersionsPerSize is how many times each slot is rewritten per growth
	// step (slots policy only)
	VersionsPerSize int `mapstructure:"versions_per_size" yaml:"versions_per_size"`
}

// VerifyConfig configures the post-crash verifier.
type VerifyConfig struct {
	// Layout names the on-disk format to reconstruct: "header" or "slots"
	Layout string `mapstructure:"layout" yaml:"layout"`

	// StrictLag fails verification when the header lags the actual file
	// size instead of treating it as benign
	StrictLag bool `mapstructure:"strict_lag" yaml:"strict_lag"`
}

// Load loads configuration from file, environment, and defaults.
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	configFileFound, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	if !configFileFound {
		cfg := GetDefaultConfig()
		return cfg, nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// SaveConfig saves the configuration to the specified file path in YAML.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use the DURAPROBE_ prefix and underscores.
	// Example: DURAPROBE_RUN_WRITE_PATH=write
	v.SetEnvPrefix("DURAPROBE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
// Returns (fileFound, error) where fileFound indicates if a config file was found.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}

	return true, nil
}

// durationDecodeHook returns a mapstructure decode hook that converts
// strings like "500ms" or "2s" to time.Duration.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(int64(v)), nil
		default:
			return data, nil
		}
	}
}

// GetDefaultConfigPath returns the default config file location.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists reports whether a config file exists at the default location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to the
// current directory if the home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "duraprobe")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "duraprobe")
}
