// Package config provides configuration loading and validation.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/artpar/limbo/core/interpolate"
)

// DefaultFile is the configuration file looked up next to a project.
const DefaultFile = "limbo.yaml"

// ThisAlias is the path alias that always points at the project directory.
const ThisAlias = "this"

// Config is the root configuration structure.
type Config struct {
	// Project is a project file or directory. Relative paths are resolved
	// against the directory of the configuration file.
	Project string `yaml:"project"`

	// Paths maps ${path:alias} roots to directories.
	Paths map[string]string `yaml:"paths"`

	// Generators lists generator identifiers in addition to those provided
	// by plugins.
	Generators []string `yaml:"generators"`

	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`

	// ProjectIsDir is set by Load when Project names a directory.
	ProjectIsDir bool `yaml:"-"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// MetricsConfig configures metrics output.
type MetricsConfig struct {
	// Textfile is written after every validation pass when set.
	Textfile string `yaml:"textfile"`
}

// ProjectDir returns the directory the project lives in.
func (c *Config) ProjectDir() string {
	if c.ProjectIsDir {
		return c.Project
	}
	return filepath.Dir(c.Project)
}

// Load reads configuration from a YAML file. ${env:NAME} and
// ${env:NAME:-DEFAULT} are expanded in string values; comments and keys are
// left alone.
func Load(path string) (*Config, error) {
	return load(path, "")
}

// load reads path; a non-empty project replaces the configured one.
func load(path, project string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := interpolate.Node(&doc, nil); err != nil {
		return nil, fmt.Errorf("expand config: %w", err)
	}

	var cfg Config
	if doc.Kind != 0 {
		if err := doc.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}

	return finish(&cfg, filepath.Dir(absPath), project)
}

// ForProject creates configuration for a project without a config file.
// Relative paths are resolved against the working directory. An empty
// project means the working directory.
func ForProject(project string) (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("working directory: %w", err)
	}

	var cfg Config
	return finish(&cfg, wd, project)
}

// LoadWithFallback loads path when it exists and otherwise builds a
// configuration for project alone.
//
// Environment variables:
//
//	LIMBO_PROJECT           - project file or directory
//	LIMBO_GENERATORS        - comma separated extra generators
//	LIMBO_LOG_LEVEL         - debug, info, warn, error (default: info)
//	LIMBO_LOG_FORMAT        - json or console (default: console)
//	LIMBO_METRICS_TEXTFILE  - metrics textfile path
func LoadWithFallback(path, project string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return load(path, project)
		}
	}

	return ForProject(project)
}

// finish applies overrides in increasing precedence: file, environment,
// explicit project argument.
func finish(cfg *Config, base, project string) (*Config, error) {
	applyEnvOverrides(cfg)
	if project != "" {
		abs, err := filepath.Abs(project)
		if err != nil {
			return nil, fmt.Errorf("absolute path: %w", err)
		}
		cfg.Project = abs
	}
	setDefaults(cfg, base)

	if err := resolveProject(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	if _, ok := cfg.Paths[ThisAlias]; !ok {
		cfg.Paths[ThisAlias] = cfg.ProjectDir()
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies LIMBO_* environment variables to the config.
// Environment variables always override file-based configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LIMBO_PROJECT"); v != "" {
		cfg.Project = v
	}
	if v := os.Getenv("LIMBO_GENERATORS"); v != "" {
		for _, g := range strings.Split(v, ",") {
			if g = strings.TrimSpace(g); g != "" {
				cfg.Generators = append(cfg.Generators, g)
			}
		}
	}

	if v := os.Getenv("LIMBO_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LIMBO_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	if v := os.Getenv("LIMBO_METRICS_TEXTFILE"); v != "" {
		cfg.Metrics.Textfile = v
	}
}

func setDefaults(cfg *Config, base string) {
	if cfg.Project == "" {
		cfg.Project = "."
	}
	cfg.Project = absFrom(base, cfg.Project)

	if cfg.Paths == nil {
		cfg.Paths = make(map[string]string)
	}
	for alias, dir := range cfg.Paths {
		cfg.Paths[alias] = absFrom(base, dir)
	}

	if cfg.Metrics.Textfile != "" {
		cfg.Metrics.Textfile = absFrom(base, cfg.Metrics.Textfile)
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}
}

func resolveProject(cfg *Config) error {
	info, err := os.Stat(cfg.Project)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("project %s does not exist", cfg.Project)
		}
		return fmt.Errorf("stat project: %w", err)
	}
	cfg.ProjectIsDir = info.IsDir()
	return nil
}

func validate(cfg *Config) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error, got %q", cfg.Logging.Level)
	}

	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("logging.format must be 'json' or 'console', got %q", cfg.Logging.Format)
	}

	aliases := make([]string, 0, len(cfg.Paths))
	for alias := range cfg.Paths {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)
	for _, alias := range aliases {
		// "." separates attributes in ${path:alias.attr}
		if alias == "" || strings.ContainsAny(alias, ".:{}") {
			return fmt.Errorf("paths: invalid alias %q", alias)
		}
	}

	for i, g := range cfg.Generators {
		if strings.TrimSpace(g) == "" {
			return fmt.Errorf("generators[%d] is empty", i)
		}
	}

	return nil
}

func absFrom(base, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(base, p)
}
