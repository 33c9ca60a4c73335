// Package config handles TOML configuration for carta.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Discovery paths.
const (
	PathDirect = "direct"
	PathGroup  = "group"
)

// Config is the root configuration structure.
type Config struct {
	Workload  WorkloadConfig  `toml:"workload"`
	Directory DirectoryConfig `toml:"directory"`
	Azure     AzureConfig     `toml:"azure"`
	LLM       LLMConfig       `toml:"llm"`
	Refine    RefineConfig    `toml:"refine"`
	Resolver  ResolverConfig  `toml:"resolver"`
	Output    OutputConfig    `toml:"output"`
	Publish   PublishConfig   `toml:"publish"`
	OTEL      OTELConfig      `toml:"otel"`
	Metrics   MetricsConfig   `toml:"metrics"`
	Log       LogConfig       `toml:"log"`
}

// WorkloadConfig selects the workload by tag.
type WorkloadConfig struct {
	TagKey   string   `toml:"tag_key"`
	TagValue string   `toml:"tag_value"`
	Paths    []string `toml:"paths"`

	// Post-discovery filters.
	ExcludeTypes []string          `toml:"exclude_types"`
	RequireTags  map[string]string `toml:"require_tags"`
	ExcludeTags  map[string]string `toml:"exclude_tags"`
}

// DirectoryConfig selects the resource directory.
type DirectoryConfig struct {
	Provider string `toml:"provider"`
	Snapshot string `toml:"snapshot"`
}

// AzureConfig holds Azure Resource Manager settings.
// Subscriptions are the account scopes; empty means the default subscription.
type AzureConfig struct {
	Subscriptions       []string `toml:"subscriptions"`
	DefaultSubscription string   `toml:"default_subscription"`
}

// LLMConfig holds text generation settings.
type LLMConfig struct {
	Provider    string   `toml:"provider"`
	Model       string   `toml:"model"`
	Endpoint    string   `toml:"endpoint"`
	APIVersion  string   `toml:"api_version"`
	APIKeyEnv   string   `toml:"api_key_env"`
	Temperature *float64 `toml:"temperature"`
	MaxTokens   int      `toml:"max_tokens"`
}

// APIKey reads the key from the configured environment variable.
func (c LLMConfig) APIKey() string {
	if c.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.APIKeyEnv)
}

// SamplingTemperature returns the configured temperature. An explicit 0 is kept.
func (c LLMConfig) SamplingTemperature() float64 {
	if c.Temperature == nil {
		return DefaultTemperature
	}
	return *c.Temperature
}

// RefineConfig holds refinement loop settings.
type RefineConfig struct {
	Rounds      *int `toml:"rounds"`
	Concurrency int  `toml:"concurrency"`
}

// RoundCount returns the configured rounds.
func (c RefineConfig) RoundCount() int {
	if c.Rounds == nil {
		return DefaultRounds
	}
	return *c.Rounds
}

// ResolverConfig holds metadata resolution settings.
type ResolverConfig struct {
	Concurrency int `toml:"concurrency"`
}

// OutputConfig names the artifacts.
type OutputConfig struct {
	Dir      string `toml:"dir"`
	Table    string `toml:"table"`
	Document string `toml:"document"`
	Format   string `toml:"format"`
}

// TablePath returns the table artifact path.
func (c OutputConfig) TablePath() string {
	return filepath.Join(c.Dir, c.Table)
}

// DocumentPath returns the document artifact path.
func (c OutputConfig) DocumentPath() string {
	return filepath.Join(c.Dir, c.Document)
}

// PublishConfig holds artifact upload settings.
type PublishConfig struct {
	S3 S3Config `toml:"s3"`
}

// S3Config holds S3 upload settings. Publishing is off when Bucket is empty.
type S3Config struct {
	Bucket string `toml:"bucket"`
	Prefix string `toml:"prefix"`
	Region string `toml:"region"`
}

// OTELConfig holds OpenTelemetry settings.
type OTELConfig struct {
	Endpoint    string  `toml:"endpoint"`
	Insecure    bool    `toml:"insecure"`
	ServiceName string  `toml:"service_name"`
	SampleRate  float64 `toml:"sample_rate"`
}

// MetricsConfig holds batch metrics settings.
type MetricsConfig struct {
	Pushgateway string `toml:"pushgateway"`
	Job         string `toml:"job"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Defaults.
const (
	DefaultRounds      = 3
	DefaultConcurrency = 4
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 16000
)

// Load reads and parses a TOML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is intentional user input
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	ApplyDefaults(cfg)
	return cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills unset fields.
func ApplyDefaults(cfg *Config) {
	if cfg.Workload.TagKey == "" {
		cfg.Workload.TagKey = "Workload"
	}
	if len(cfg.Workload.Paths) == 0 {
		cfg.Workload.Paths = []string{PathDirect, PathGroup}
	}
	if cfg.Directory.Provider == "" {
		cfg.Directory.Provider = "azure"
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "openai"
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = DefaultMaxTokens
	}
	if cfg.LLM.APIKeyEnv == "" {
		cfg.LLM.APIKeyEnv = defaultKeyEnv(cfg.LLM.Provider)
	}
	if cfg.Refine.Concurrency == 0 {
		cfg.Refine.Concurrency = DefaultConcurrency
	}
	if cfg.Resolver.Concurrency == 0 {
		cfg.Resolver.Concurrency = DefaultConcurrency
	}
	if cfg.Output.Dir == "" {
		cfg.Output.Dir = "."
	}
	if cfg.Output.Table == "" {
		cfg.Output.Table = "resources_with_expanded_metadata.csv"
	}
	if cfg.Output.Format == "" {
		cfg.Output.Format = "html"
	}
	if cfg.Output.Document == "" {
		if cfg.Output.Format == "markdown" {
			cfg.Output.Document = "workload.md"
		} else {
			cfg.Output.Document = "workload.html"
		}
	}
	if cfg.OTEL.ServiceName == "" {
		cfg.OTEL.ServiceName = "carta"
	}
	if cfg.OTEL.SampleRate == 0 {
		cfg.OTEL.SampleRate = 1.0
	}
	if cfg.Metrics.Job == "" {
		cfg.Metrics.Job = "carta"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
}

func defaultKeyEnv(provider string) string {
	switch provider {
	case "azure-openai":
		return "AZURE_OPENAI_API_KEY"
	case "gemini":
		return "GEMINI_API_KEY"
	default:
		return "OPENAI_API_KEY"
	}
}

// Validate checks the configuration is valid.
func (c *Config) Validate() error {
	if c.Workload.TagKey == "" || c.Workload.TagValue == "" {
		return fmt.Errorf("workload: tag_key and tag_value are required")
	}
	for _, p := range c.Workload.Paths {
		if p != PathDirect && p != PathGroup {
			return fmt.Errorf("workload: unknown discovery path %q (must be %q or %q)", p, PathDirect, PathGroup)
		}
	}
	if c.Directory.Provider == "snapshot" && c.Directory.Snapshot == "" {
		return fmt.Errorf("directory: snapshot path required for snapshot provider")
	}
	if c.Refine.RoundCount() < 0 {
		return fmt.Errorf("refine: rounds must be >= 0 (got %d)", c.Refine.RoundCount())
	}
	if c.Refine.Concurrency < 1 || c.Resolver.Concurrency < 1 {
		return fmt.Errorf("concurrency must be >= 1")
	}
	if t := c.LLM.SamplingTemperature(); t < 0 || t > 2 {
		return fmt.Errorf("llm: temperature must be between 0 and 2 (got %v)", t)
	}
	if c.LLM.Provider == "azure-openai" && c.LLM.Endpoint == "" {
		return fmt.Errorf("llm: endpoint required for azure-openai")
	}
	if c.Output.Format != "html" && c.Output.Format != "markdown" {
		return fmt.Errorf("output: format must be html or markdown (got %q)", c.Output.Format)
	}
	if c.OTEL.SampleRate < 0.0 || c.OTEL.SampleRate > 1.0 {
		return fmt.Errorf("otel: sample_rate must be between 0.0 and 1.0 (got %v)", c.OTEL.SampleRate)
	}
	return nil
}
