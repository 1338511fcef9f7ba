package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// ConfigFileName is the name of the project config file
	ConfigFileName = "pct.yaml"

	// CurrentVersion tracks the config file version for future migrations
	CurrentVersion = "1.0"
)

// Config represents a pct project configuration
type Config struct {
	// SourceDirs are searched in order for templates; the first holding a
	// name wins
	SourceDirs []string `yaml:"source_dirs" validate:"required,min=1,dive,required"`

	// Extensions select which files under SourceDirs are templates
	Extensions []string `yaml:"extensions" validate:"required,min=1,dive,startswith=."`

	// OutDir receives the generated Go files
	OutDir string `yaml:"out_dir" validate:"required"`

	// Package is the package clause of generated files
	Package string `yaml:"package" validate:"required,goident"`

	// RuntimeImport is the import path of the runtime support package
	RuntimeImport string `yaml:"runtime_import" validate:"required,importpath"`

	// LeftDelim and RightDelim override the "{{" and "}}" action delimiters
	LeftDelim  string `yaml:"left_delim,omitempty" validate:"required_with=RightDelim"`
	RightDelim string `yaml:"right_delim,omitempty" validate:"required_with=LeftDelim"`

	// Manifest is the sqlite database recording what has been built
	Manifest string `yaml:"manifest" validate:"required"`

	// Jobs bounds how many templates build concurrently
	Jobs int `yaml:"jobs" validate:"min=1,max=256"`

	LogLevel  string `yaml:"log_level" validate:"oneof=debug info warn error"`
	LogFormat string `yaml:"log_format" validate:"oneof=text json"`

	Version string `yaml:"version,omitempty"`
}

// DefaultConfig returns a new Config with default values
func DefaultConfig() *Config {
	return &Config{
		SourceDirs:    []string{"templates"},
		Extensions:    []string{".html", ".tmpl", ".gotmpl"},
		OutDir:        "precompiled",
		Package:       "precompiled",
		RuntimeImport: "github.com/livefir/pct/pctrt",
		Manifest:      filepath.Join(".pct", "manifest.db"),
		Jobs:          4,
		LogLevel:      "info",
		LogFormat:     "text",
		Version:       CurrentVersion,
	}
}

// FindConfigPath walks up from dir looking for pct.yaml. It returns the
// path in dir itself when no parent holds one.
func FindConfigPath(dir string) (string, error) {
	start, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", dir, err)
	}

	current := start
	for {
		candidate := filepath.Join(current, ConfigFileName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}

		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}

	return filepath.Join(start, ConfigFileName), nil
}

// LoadConfig loads the configuration from path.
// If the file doesn't exist, returns a default config.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if config.Version == "" {
		config.Version = CurrentVersion
	}

	return config, nil
}

// SaveConfig writes the configuration to path
func SaveConfig(config *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Resolve returns a copy whose relative paths are anchored at base, the
// directory holding the config file
func (c *Config) Resolve(base string) *Config {
	resolved := *c
	anchor := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}

	resolved.SourceDirs = make([]string, len(c.SourceDirs))
	for i, dir := range c.SourceDirs {
		resolved.SourceDirs[i] = anchor(dir)
	}
	resolved.OutDir = anchor(c.OutDir)
	resolved.Manifest = anchor(c.Manifest)
	return &resolved
}

// Keys returns the settable keys in file order
func Keys() []string {
	return []string{
		"source_dirs", "extensions", "out_dir", "package", "runtime_import",
		"left_delim", "right_delim", "manifest", "jobs", "log_level", "log_format",
	}
}

// Get returns the value of key as it would be typed on the command line.
// Lists are comma separated.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "source_dirs":
		return strings.Join(c.SourceDirs, ","), nil
	case "extensions":
		return strings.Join(c.Extensions, ","), nil
	case "out_dir":
		return c.OutDir, nil
	case "package":
		return c.Package, nil
	case "runtime_import":
		return c.RuntimeImport, nil
	case "left_delim":
		return c.LeftDelim, nil
	case "right_delim":
		return c.RightDelim, nil
	case "manifest":
		return c.Manifest, nil
	case "jobs":
		return strconv.Itoa(c.Jobs), nil
	case "log_level":
		return c.LogLevel, nil
	case "log_format":
		return c.LogFormat, nil
	}
	return "", fmt.Errorf("unknown key: %s (expected one of: %s)", key, strings.Join(Keys(), ", "))
}

// Set assigns key from its command-line form. The result is not validated.
func (c *Config) Set(key, value string) error {
	switch key {
	case "source_dirs":
		c.SourceDirs = splitList(value)
	case "extensions":
		c.Extensions = splitList(value)
	case "out_dir":
		c.OutDir = value
	case "package":
		c.Package = value
	case "runtime_import":
		c.RuntimeImport = value
	case "left_delim":
		c.LeftDelim = value
	case "right_delim":
		c.RightDelim = value
	case "manifest":
		c.Manifest = value
	case "jobs":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("jobs must be a number: %w", err)
		}
		c.Jobs = n
	case "log_level":
		c.LogLevel = value
	case "log_format":
		c.LogFormat = value
	default:
		return fmt.Errorf("unknown key: %s (expected one of: %s)", key, strings.Join(Keys(), ", "))
	}
	return nil
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
