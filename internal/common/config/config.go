// Package config loads the plugreg user configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	GitHub    GitHubConfig    `yaml:"github"`
	Registry  RegistryConfig  `yaml:"registry"`
	Downloads DownloadsConfig `yaml:"downloads"`
}

// GitHubConfig holds GitHub API settings
type GitHubConfig struct {
	Token string `yaml:"token"` // Personal access token for higher rate limits
}

// RegistryConfig holds registry discovery settings
type RegistryConfig struct {
	// Sibling is the path to a sibling project that may hold a shared
	// registry, consulted when the working directory has none
	Sibling string `yaml:"sibling"`
}

// DownloadsConfig holds asset download settings
type DownloadsConfig struct {
	// Dir is the default directory for downloaded assets; the
	// --download-dir flag overrides it
	Dir string `yaml:"dir"`
}

// RegistryFileName is the registry file looked up at each candidate location.
const RegistryFileName = "plugin_registry.json"

// Default returns the configuration used when no config file exists.
func Default() *Config {
	return &Config{
		Registry:  RegistryConfig{Sibling: "../plugin-registry"},
		Downloads: DownloadsConfig{Dir: "./downloaded_updates"},
	}
}

// ConfigPaths returns all possible config file paths in priority order:
// 1. ~/.config/plugreg/config.yaml (XDG standard - priority)
// 2. ~/.plugreg/config.yaml (legacy fallback)
func ConfigPaths() ([]string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	xdgConfig := os.Getenv("XDG_CONFIG_HOME")
	if xdgConfig == "" {
		xdgConfig = filepath.Join(home, ".config")
	}

	return []string{
		filepath.Join(xdgConfig, "plugreg", "config.yaml"),
		filepath.Join(home, ".plugreg", "config.yaml"),
	}, nil
}

// Load reads configuration from the first available config file.
// A missing config file yields the defaults; a malformed one is an error.
func Load() (*Config, error) {
	paths, err := ConfigPaths()
	if err != nil {
		return nil, err
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			return LoadFrom(path)
		}
	}

	return Default(), nil
}

// LoadFrom reads configuration from a specific file path, filling
// unset fields with defaults.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %q: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %q: %w", path, err)
	}

	if cfg.Registry.Sibling == "" {
		cfg.Registry.Sibling = Default().Registry.Sibling
	}
	if cfg.Downloads.Dir == "" {
		cfg.Downloads.Dir = Default().Downloads.Dir
	}

	return cfg, nil
}

// RegistryCandidates returns the registry file locations in discovery
// order: the working directory, the configured sibling project, then a
// local fallback. The first existing file wins.
func (c *Config) RegistryCandidates() []string {
	return []string{
		RegistryFileName,
		filepath.Join(c.Registry.Sibling, RegistryFileName),
		"local_plugin_registry.json",
	}
}
