package config

import (
	"fmt"
	"time"

	"github.com/marmos91/duraprobe/pkg/probe"
)

// Default values. Iterations and idle match the original experiment's
// pacing: enough transactions that the operator never runs out of file
// before reaching for the power cable, and a half-second window per group.
const (
	DefaultLogLevel  = "INFO"
	DefaultLogFormat = "text"
	DefaultLogOutput = "stderr"

	DefaultDir             = "working"
	DefaultWritePath       = "mmap"
	DefaultSync            = "fsync"
	DefaultPolicy          = "grow"
	DefaultIterations      = 1024
	DefaultIdle            = 500 * time.Millisecond
	DefaultVersionsPerSize = 8

	DefaultLayout = "header"
)

// GetDefaultConfig returns a configuration with all default values.
func GetDefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
			Output: DefaultLogOutput,
		},
		Run: RunConfig{
			Dir:             DefaultDir,
			WritePath:       DefaultWritePath,
			ExtendSync:      DefaultSync,
			WriteSync:       DefaultSync,
			Policy:          DefaultPolicy,
			Iterations:      DefaultIterations,
			Idle:            DefaultIdle,
			VersionsPerSize: DefaultVersionsPerSize,
		},
		Verify: VerifyConfig{
			Layout:    DefaultLayout,
			StrictLag: false,
		},
	}
}

// ApplyDefaults fills in defaults for any missing values.
func ApplyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLogFormat
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = DefaultLogOutput
	}
	if cfg.Run.Dir == "" {
		cfg.Run.Dir = DefaultDir
	}
	if cfg.Run.WritePath == "" {
		cfg.Run.WritePath = DefaultWritePath
	}
	if cfg.Run.ExtendSync == "" {
		cfg.Run.ExtendSync = DefaultSync
	}
	if cfg.Run.WriteSync == "" {
		cfg.Run.WriteSync = DefaultSync
	}
	if cfg.Run.Policy == "" {
		cfg.Run.Policy = DefaultPolicy
	}
	if cfg.Run.Iterations == 0 {
		cfg.Run.Iterations = DefaultIterations
	}
	if cfg.Run.Idle == 0 {
		cfg.Run.Idle = DefaultIdle
	}
	if cfg.Run.VersionsPerSize == 0 {
		cfg.Run.VersionsPerSize = DefaultVersionsPerSize
	}
	if cfg.Verify.Layout == "" {
		cfg.Verify.Layout = DefaultLayout
	}
}

// Validate checks every token in the configuration against the probe's
// parsers, so an invalid config file fails at load time with the same
// error an invalid flag would produce.
func Validate(cfg *Config) error {
	if _, err := probe.ParseWritePath(cfg.Run.WritePath); err != nil {
		return err
	}
	if _, err := probe.ParseBarrierList(cfg.Run.ExtendSync); err != nil {
		return fmt.Errorf("extend_sync: %w", err)
	}
	if _, err := probe.ParseBarrierList(cfg.Run.WriteSync); err != nil {
		return fmt.Errorf("write_sync: %w", err)
	}
	if _, err := probe.ParsePolicy(cfg.Run.Policy); err != nil {
		return err
	}
	if _, err := probe.ParseLayout(cfg.Verify.Layout); err != nil {
		return err
	}
	if cfg.Run.Iterations < 1 {
		return fmt.Errorf("iterations must be positive, got %d", cfg.Run.Iterations)
	}
	if cfg.Run.VersionsPerSize < 1 {
		return fmt.Errorf("versions_per_size must be positive, got %d", cfg.Run.VersionsPerSize)
	}
	if cfg.Run.Idle < 0 {
		return fmt.Errorf("idle must not be negative, got %s", cfg.Run.Idle)
	}
	return nil
}
