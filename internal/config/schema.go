package config

import (
	"time"

	"riskgraph/internal/logging"
)

// Config is the root configuration structure
type Config struct {
	Version   int             `yaml:"version"`
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Logging   logging.Config  `yaml:"logging"`
	Scenarios ScenarioConfig  `yaml:"scenarios"`
	Portfolio PortfolioConfig `yaml:"portfolio"`
}

// ServerConfig holds HTTP listener settings
type ServerConfig struct {
	Addr            string   `yaml:"addr"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"` // 0 keeps SSE streams open
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
	CORSOrigin      string   `yaml:"cors_origin,omitempty"`
}

// DatabaseConfig holds database settings
type DatabaseConfig struct {
	Path string `yaml:"path"` // empty disables history
}

// AnalysisConfig holds settings for the external analysis service
type AnalysisConfig struct {
	// APIKey is normally supplied through GEMINI_API_KEY rather than the file
	APIKey         string   `yaml:"api_key,omitempty"`
	Model          string   `yaml:"model"`
	Temperature    float32  `yaml:"temperature"`
	RequestTimeout Duration `yaml:"request_timeout"` // 0 waits indefinitely
	CacheTTL       Duration `yaml:"cache_ttl"`       // 0 disables the cache
}

// ScenarioConfig points at an optional scenario catalog
type ScenarioConfig struct {
	File  string `yaml:"file,omitempty"`
	Watch bool   `yaml:"watch"`
}

// PortfolioConfig controls the holdings loaded at startup
type PortfolioConfig struct {
	File           string `yaml:"file,omitempty"` // empty uses the saved or default portfolio
	AnalyzeOnStart bool   `yaml:"analyze_on_start"`
}

// Duration wraps time.Duration for YAML unmarshaling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
