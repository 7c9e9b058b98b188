package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the gateway.
// Zero values mean "unspecified" and are replaced by ApplyDefaults.
type Config struct {
	Addr                  string  `json:"addr" yaml:"addr" toml:"addr"`
	BackendURL            string  `json:"backend_url" yaml:"backend_url" toml:"backend_url"`
	BackendTimeoutSeconds int     `json:"backend_timeout_seconds" yaml:"backend_timeout_seconds" toml:"backend_timeout_seconds"`
	DefaultModel          string  `json:"default_model" yaml:"default_model" toml:"default_model"`
	CacheCapacity         int     `json:"cache_capacity" yaml:"cache_capacity" toml:"cache_capacity"`
	MaxBatchSize          int     `json:"max_batch_size" yaml:"max_batch_size" toml:"max_batch_size"`
	BatchWaitMs           int     `json:"batch_wait_ms" yaml:"batch_wait_ms" toml:"batch_wait_ms"`
	BatchMaxPromptBytes   int     `json:"batch_max_prompt_bytes" yaml:"batch_max_prompt_bytes" toml:"batch_max_prompt_bytes"`
	BatchMinTraffic       int     `json:"batch_min_traffic" yaml:"batch_min_traffic" toml:"batch_min_traffic"`
	AcceptanceThreshold   float64 `json:"acceptance_threshold" yaml:"acceptance_threshold" toml:"acceptance_threshold"`
	MaxBodyBytes          int64   `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
	LogLevel              string  `json:"log_level" yaml:"log_level" toml:"log_level"`
}

// Documented defaults.
const (
	DefaultAddr                  = ":11500"
	DefaultBackendURL            = "http://127.0.0.1:11434"
	DefaultBackendTimeoutSeconds = 30
	DefaultCacheCapacity         = 256
	DefaultMaxBatchSize          = 4
	DefaultBatchWaitMs           = 50
	DefaultBatchMaxPromptBytes   = 512
	DefaultBatchMinTraffic       = 10
	DefaultAcceptanceThreshold   = 0.6
	DefaultMaxBodyBytes          = 1 << 20
)

// ApplyDefaults fills unspecified fields with the documented defaults.
func (c *Config) ApplyDefaults() {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.BackendURL == "" {
		c.BackendURL = DefaultBackendURL
	}
	if c.BackendTimeoutSeconds <= 0 {
		c.BackendTimeoutSeconds = DefaultBackendTimeoutSeconds
	}
	if c.CacheCapacity <= 0 {
		c.CacheCapacity = DefaultCacheCapacity
	}
	if c.MaxBatchSize <= 0 {
		c.MaxBatchSize = DefaultMaxBatchSize
	}
	if c.BatchWaitMs <= 0 {
		c.BatchWaitMs = DefaultBatchWaitMs
	}
	if c.BatchMaxPromptBytes <= 0 {
		c.BatchMaxPromptBytes = DefaultBatchMaxPromptBytes
	}
	if c.BatchMinTraffic <= 0 {
		c.BatchMinTraffic = DefaultBatchMinTraffic
	}
	if c.AcceptanceThreshold <= 0 {
		c.AcceptanceThreshold = DefaultAcceptanceThreshold
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Default returns a fully-populated Config.
func Default() Config {
	var c Config
	c.ApplyDefaults()
	return c
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	path, err := ExpandHome(path)
	if err != nil {
		return cfg, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

// ExpandHome expands a leading '~' to the user's home directory.
func ExpandHome(path string) (string, error) {
	if path == "" || path[0] != '~' {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home dir: %w", err)
	}
	if path == "~" {
		return home, nil
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~/")), nil
}
