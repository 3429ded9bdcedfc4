// Package config loads cxxsema settings from YAML.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultFile is the config file looked up when no path is given.
const DefaultFile = "cxxsema.yaml"

// Config holds the cxxsema settings.
type Config struct {
	LogLevel string         `yaml:"log_level" validate:"oneof=debug info warn error"`
	Output   string         `yaml:"output" validate:"oneof=text json yaml"`
	Cache    CacheConfig    `yaml:"cache"`
	Analysis AnalysisConfig `yaml:"analysis"`
}

// CacheConfig controls result caching and report persistence.
type CacheConfig struct {
	Enabled *bool  `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

// AnalysisConfig controls how classes are analyzed.
type AnalysisConfig struct {
	Workers              int    `yaml:"workers" validate:"min=1,max=256"`
	FailOnAmbiguity      *bool  `yaml:"fail_on_ambiguity"`
	InstantiationContext string `yaml:"instantiation_context"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	enabled := true
	failOnAmbiguity := false
	return &Config{
		LogLevel: "info",
		Output:   "text",
		Cache: CacheConfig{
			Enabled: &enabled,
		},
		Analysis: AnalysisConfig{
			Workers:         4,
			FailOnAmbiguity: &failOnAmbiguity,
		},
	}
}

// Load reads configuration from file, falling back to defaults.
// If configPath is empty, it looks for cxxsema.yaml in the current directory.
// Values present in the file override the defaults.
func Load(configPath string) (*Config, error) {
	defaults := Default()

	if configPath == "" {
		configPath = DefaultFile
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaults, nil
		}
		return nil, err
	}

	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", configPath, err)
	}

	defaults.Merge(&fileCfg)
	if err := defaults.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", configPath, err)
	}
	return defaults, nil
}

// LoadFromDir loads configuration from the specified directory.
func LoadFromDir(dir string) (*Config, error) {
	return Load(filepath.Join(dir, DefaultFile))
}

// Merge combines another config into this one, with other taking precedence.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.Output != "" {
		c.Output = other.Output
	}
	if other.Cache.Enabled != nil {
		c.Cache.Enabled = other.Cache.Enabled
	}
	if other.Cache.Dir != "" {
		c.Cache.Dir = other.Cache.Dir
	}
	if other.Analysis.Workers != 0 {
		c.Analysis.Workers = other.Analysis.Workers
	}
	if other.Analysis.FailOnAmbiguity != nil {
		c.Analysis.FailOnAmbiguity = other.Analysis.FailOnAmbiguity
	}
	if other.Analysis.InstantiationContext != "" {
		c.Analysis.InstantiationContext = other.Analysis.InstantiationContext
	}
}

var validate = validator.New()

// Validate checks the settings.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: invalid value %v", fe.Namespace(), fe.Value()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return err
	}
	return nil
}

// CacheEnabled reports whether the analysis cache is on.
func (c *Config) CacheEnabled() bool {
	return c.Cache.Enabled == nil || *c.Cache.Enabled
}

// FailOnAmbiguity reports whether an ambiguous final overrider is an error.
func (c *Config) FailOnAmbiguity() bool {
	return c.Analysis.FailOnAmbiguity != nil && *c.Analysis.FailOnAmbiguity
}

// SlogLevel converts LogLevel to a slog level. Unknown names map to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
