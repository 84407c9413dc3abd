// Package config provides configuration loading for acp.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/phobologic/acp/internal/constraints"
	"github.com/phobologic/acp/internal/vocab"
)

// Config is the complete acp configuration.
type Config struct {
	Project     ProjectConfig     `yaml:"project"`
	Include     []string          `yaml:"include,omitempty"`
	Exclude     []string          `yaml:"exclude,omitempty"`
	Domains     map[string]string `yaml:"domains,omitempty"`
	Annotate    AnnotateConfig    `yaml:"annotate"`
	Limits      LimitsConfig      `yaml:"limits"`
	Constraints ConstraintsConfig `yaml:"constraints"`
	Git         GitConfig         `yaml:"git"`
	Vars        VarsConfig        `yaml:"vars"`
}

// ProjectConfig names the project.
type ProjectConfig struct {
	Name        string `yaml:"name,omitempty"`
	Description string `yaml:"description,omitempty"`
}

// AnnotateConfig configures the annotate command.
type AnnotateConfig struct {
	// Level is minimal, standard or full.
	Level string `yaml:"level"`
}

// LimitsConfig bounds indexing work.
type LimitsConfig struct {
	// MaxFileSize skips files larger than this many bytes.
	MaxFileSize int64 `yaml:"max_file_size"`
	// Workers caps the worker pool (0 = GOMAXPROCS).
	Workers int `yaml:"workers,omitempty"`
	// Hotpaths is how many call-graph hotpaths the cache keeps.
	Hotpaths int `yaml:"hotpaths"`
}

// ConstraintsConfig holds project-wide constraint defaults.
type ConstraintsConfig struct {
	Defaults DefaultsConfig `yaml:"defaults"`
}

// DefaultsConfig are the constraints every file starts from.
type DefaultsConfig struct {
	Lock              string   `yaml:"lock"`
	Reason            string   `yaml:"reason,omitempty"`
	AllowedOperations []string `yaml:"allowed_operations,omitempty"`
	Directive         string   `yaml:"directive,omitempty"`
}

// GitConfig controls git metadata collection.
type GitConfig struct {
	// Enabled is nil when unset so a later layer can turn it off.
	Enabled      *bool `yaml:"enabled,omitempty"`
	HistoryLimit int   `yaml:"history_limit"`
}

// VarsConfig configures variable expansion.
type VarsConfig struct {
	ExpandDepth int `yaml:"expand_depth"`
}

// DefaultMaxFileSize is 1 MB.
const DefaultMaxFileSize = 1_000_000

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	enabled := true
	return &Config{
		Annotate: AnnotateConfig{Level: string(vocab.Standard)},
		Limits: LimitsConfig{
			MaxFileSize: DefaultMaxFileSize,
			Hotpaths:    20,
		},
		Constraints: ConstraintsConfig{
			Defaults: DefaultsConfig{Lock: string(constraints.Normal)},
		},
		Git:  GitConfig{Enabled: &enabled, HistoryLimit: 10},
		Vars: VarsConfig{ExpandDepth: 3},
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if _, err := vocab.ParseLevel(c.Annotate.Level); err != nil {
		return fmt.Errorf("annotate.level: %w", err)
	}
	if l := c.Constraints.Defaults.Lock; l != "" && !constraints.IsLockLevel(l) {
		return fmt.Errorf("constraints.defaults.lock: unknown lock level %q", l)
	}
	if c.Limits.MaxFileSize < 0 {
		return fmt.Errorf("limits.max_file_size must not be negative")
	}
	if c.Limits.Workers < 0 {
		return fmt.Errorf("limits.workers must not be negative")
	}
	if c.Vars.ExpandDepth < 0 {
		return fmt.Errorf("vars.expand_depth must not be negative")
	}
	return nil
}

// Level returns the configured annotate level.
func (c *Config) Level() vocab.Level {
	l, err := vocab.ParseLevel(c.Annotate.Level)
	if err != nil {
		return vocab.Standard
	}
	return l
}

// GitEnabled reports whether git metadata should be collected.
func (c *Config) GitEnabled() bool {
	return c.Git.Enabled == nil || *c.Git.Enabled
}

// ConstraintDefaults returns the project defaults as Constraints.
func (c *Config) ConstraintDefaults() constraints.Constraints {
	d := c.Constraints.Defaults
	out := constraints.Constraints{Directive: d.Directive}
	if d.Lock != "" || d.Reason != "" || len(d.AllowedOperations) > 0 {
		out.Mutation = &constraints.MutationConstraint{
			Level:             constraints.ParseLockLevel(d.Lock),
			Reason:            d.Reason,
			AllowedOperations: d.AllowedOperations,
		}
	}
	return out
}

// LoadFromFile loads configuration from a YAML (or JSON) file on top of the
// defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return config, nil
}

// parseFile reads a layer without defaults so Merge sees only what the file
// sets.
func parseFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return &config, nil
}

// SaveToFile saves configuration to a YAML file.
func (c *Config) SaveToFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Merge merges another config into this one (other takes precedence for
// non-zero values).
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if other.Project.Name != "" {
		c.Project.Name = other.Project.Name
	}
	if other.Project.Description != "" {
		c.Project.Description = other.Project.Description
	}
	if len(other.Include) > 0 {
		c.Include = other.Include
	}
	if len(other.Exclude) > 0 {
		c.Exclude = other.Exclude
	}
	if len(other.Domains) > 0 {
		if c.Domains == nil {
			c.Domains = make(map[string]string, len(other.Domains))
		}
		for k, v := range other.Domains {
			c.Domains[k] = v
		}
	}

	if other.Annotate.Level != "" {
		c.Annotate.Level = other.Annotate.Level
	}

	if other.Limits.MaxFileSize != 0 {
		c.Limits.MaxFileSize = other.Limits.MaxFileSize
	}
	if other.Limits.Workers != 0 {
		c.Limits.Workers = other.Limits.Workers
	}
	if other.Limits.Hotpaths != 0 {
		c.Limits.Hotpaths = other.Limits.Hotpaths
	}

	d := other.Constraints.Defaults
	if d.Lock != "" {
		c.Constraints.Defaults.Lock = d.Lock
	}
	if d.Reason != "" {
		c.Constraints.Defaults.Reason = d.Reason
	}
	if len(d.AllowedOperations) > 0 {
		c.Constraints.Defaults.AllowedOperations = d.AllowedOperations
	}
	if d.Directive != "" {
		c.Constraints.Defaults.Directive = d.Directive
	}

	if other.Git.Enabled != nil {
		enabled := *other.Git.Enabled
		c.Git.Enabled = &enabled
	}
	if other.Git.HistoryLimit != 0 {
		c.Git.HistoryLimit = other.Git.HistoryLimit
	}

	if other.Vars.ExpandDepth != 0 {
		c.Vars.ExpandDepth = other.Vars.ExpandDepth
	}
}
