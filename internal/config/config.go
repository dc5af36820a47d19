// Package config provides configuration management for riskgraph.
//
// Config file locations (priority order):
//  1. $RISKGRAPH_CONFIG
//  2. ./riskgraph.yaml
//  3. $XDG_CONFIG_HOME/riskgraph/config.yaml
//  4. ~/.config/riskgraph/config.yaml
//  5. /etc/riskgraph/config.yaml
//
// Environment variables override file values after loading. The API key is
// read from GEMINI_API_KEY, falling back to API_KEY.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"riskgraph/internal/analysis"
	"riskgraph/internal/logging"
)

// Environment overrides
const (
	EnvAPIKey         = "GEMINI_API_KEY"
	EnvAPIKeyFallback = "API_KEY"
	EnvAddr           = "RISKGRAPH_ADDR"
	EnvLogLevel       = "RISKGRAPH_LOG_LEVEL"
	EnvDatabasePath   = "RISKGRAPH_DB"
)

// Load finds and loads the config file, or returns defaults if none found.
// Environment overrides are applied either way.
func Load() (*Config, string, error) {
	path := FindConfigPath()

	if path == "" {
		// No config found - return defaults
		cfg := DefaultConfig()
		cfg.ApplyEnv()
		return cfg, "", nil
	}

	return LoadFromPath(path)
}

// LoadFromPath loads config from a specific path
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, path, err
	}
	cfg.ApplyEnv()

	return cfg, path, nil
}

// Parse decodes YAML config bytes and fills in defaults
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

// Save writes config to the specified path. The API key is never written.
func (c *Config) Save(path string) error {
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	out := *c
	out.Analysis.APIKey = ""
	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0600)
}

// DefaultConfig returns sensible defaults for a new installation
func DefaultConfig() *Config {
	return &Config{
		Version: 1,
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     Duration(15 * time.Second),
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Database: DatabaseConfig{Path: "./riskgraph.db"},
		Analysis: AnalysisConfig{
			Model:          analysis.DefaultModel,
			Temperature:    0.2,
			RequestTimeout: Duration(90 * time.Second),
			CacheTTL:       Duration(10 * time.Minute),
		},
		Logging:   logging.DefaultConfig(),
		Scenarios: ScenarioConfig{Watch: true},
		Portfolio: PortfolioConfig{AnalyzeOnStart: true},
	}
}

// applyDefaults fills in values an explicit file left empty
func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.Version == 0 {
		c.Version = 1
	}
	if c.Server.Addr == "" {
		c.Server.Addr = def.Server.Addr
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = def.Server.ShutdownTimeout
	}
	if c.Analysis.Model == "" {
		c.Analysis.Model = def.Analysis.Model
	}
	if c.Logging.Level == "" {
		c.Logging.Level = def.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = def.Logging.Format
	}
}

// ApplyEnv overrides config values from the environment
func (c *Config) ApplyEnv() {
	if key := os.Getenv(EnvAPIKey); key != "" {
		c.Analysis.APIKey = key
	} else if key := os.Getenv(EnvAPIKeyFallback); key != "" && c.Analysis.APIKey == "" {
		c.Analysis.APIKey = key
	}
	if addr := os.Getenv(EnvAddr); addr != "" {
		c.Server.Addr = addr
	}
	if level := os.Getenv(EnvLogLevel); level != "" {
		c.Logging.Level = level
	}
	if path := os.Getenv(EnvDatabasePath); path != "" {
		c.Database.Path = path
	}
}

// Validate checks values that would otherwise fail later at startup
func (c *Config) Validate() error {
	var problems []string
	if c.Server.Addr == "" {
		problems = append(problems, "server.addr is required")
	}
	if c.Analysis.Temperature < 0 || c.Analysis.Temperature > 2 {
		problems = append(problems, fmt.Sprintf("analysis.temperature %.2f out of range [0, 2]", c.Analysis.Temperature))
	}
	if c.Analysis.RequestTimeout < 0 {
		problems = append(problems, "analysis.request_timeout must not be negative")
	}
	if c.Analysis.CacheTTL < 0 {
		problems = append(problems, "analysis.cache_ttl must not be negative")
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		problems = append(problems, err.Error())
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		problems = append(problems, fmt.Sprintf("logging.format %q must be json or console", c.Logging.Format))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Summary returns a human-readable config summary
func (c *Config) Summary() string {
	key := "missing"
	if c.Analysis.APIKey != "" {
		key = "set"
	}
	history := c.Database.Path
	if history == "" {
		history = "disabled"
	}

	summary := fmt.Sprintf("Listen: %s, History: %s\n", c.Server.Addr, history)
	summary += fmt.Sprintf("Model: %s (temperature %.2f, timeout %s, cache %s), API key: %s",
		c.Analysis.Model, c.Analysis.Temperature,
		c.Analysis.RequestTimeout.Duration(), c.Analysis.CacheTTL.Duration(), key)
	if c.Scenarios.File != "" {
		summary += fmt.Sprintf("\nScenario catalog: %s (watch: %v)", c.Scenarios.File, c.Scenarios.Watch)
	}
	return summary
}
