package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/abdul-hamid-achik/hitchain/packages/auth/oauth2"
	"gopkg.in/yaml.v3"
)

// ErrInvalid marks configuration problems detected before a run starts.
var ErrInvalid = errors.New("invalid configuration")

// Config represents the hitchain configuration
type Config struct {
	BaseURL            string                 `json:"baseUrl,omitempty" yaml:"baseUrl,omitempty" toml:"baseUrl"`
	DefaultEnvironment string                 `json:"defaultEnvironment,omitempty" yaml:"defaultEnvironment,omitempty" toml:"defaultEnvironment"`
	Environments       map[string]Environment `json:"environments,omitempty" yaml:"environments,omitempty" toml:"environments"`

	Timeout         int               `json:"timeout,omitempty" yaml:"timeout,omitempty" toml:"timeout"`          // milliseconds
	Retries         int               `json:"retries,omitempty" yaml:"retries,omitempty" toml:"retries"`
	RetryDelay      int               `json:"retryDelay,omitempty" yaml:"retryDelay,omitempty" toml:"retryDelay"` // milliseconds
	RateLimit       float64           `json:"rateLimit,omitempty" yaml:"rateLimit,omitempty" toml:"rateLimit"`    // requests per second
	FollowRedirects *bool             `json:"followRedirects,omitempty" yaml:"followRedirects,omitempty" toml:"followRedirects"`
	MaxRedirects    int               `json:"maxRedirects,omitempty" yaml:"maxRedirects,omitempty" toml:"maxRedirects"`
	ValidateSSL     *bool             `json:"validateSSL,omitempty" yaml:"validateSSL,omitempty" toml:"validateSSL"`
	Proxy           string            `json:"proxy,omitempty" yaml:"proxy,omitempty" toml:"proxy"`
	Headers         map[string]string `json:"headers,omitempty" yaml:"headers,omitempty" toml:"headers"`

	Concurrency int   `json:"concurrency,omitempty" yaml:"concurrency,omitempty" toml:"concurrency"`
	FailFast    *bool `json:"failFast,omitempty" yaml:"failFast,omitempty" toml:"failFast"`
	MaxFailures int   `json:"maxFailures,omitempty" yaml:"maxFailures,omitempty" toml:"maxFailures"`
	VariableTTL int   `json:"variableTTL,omitempty" yaml:"variableTTL,omitempty" toml:"variableTTL"` // seconds

	Reporters []string `json:"reporters,omitempty" yaml:"reporters,omitempty" toml:"reporters"`
	OutputDir string   `json:"outputDir,omitempty" yaml:"outputDir,omitempty" toml:"outputDir"`
	HistoryDB string   `json:"historyDb,omitempty" yaml:"historyDb,omitempty" toml:"historyDb"`
	NoColor   *bool    `json:"noColor,omitempty" yaml:"noColor,omitempty" toml:"noColor"`

	OAuth2    *oauth2.Config   `json:"oauth2,omitempty" yaml:"oauth2,omitempty" toml:"oauth2"`
	Artifacts *ArtifactsConfig `json:"artifacts,omitempty" yaml:"artifacts,omitempty" toml:"artifacts"`
}

// Environment overrides the base URL and seeds variables for one target.
type Environment struct {
	BaseURL   string         `json:"baseUrl,omitempty" yaml:"baseUrl,omitempty" toml:"baseUrl"`
	Variables map[string]any `json:"variables,omitempty" yaml:"variables,omitempty" toml:"variables"`
}

// ArtifactsConfig points at the S3-compatible bucket reports are published to.
// Credentials come from the environment, never from the file.
type ArtifactsConfig struct {
	Endpoint string `json:"endpoint" yaml:"endpoint" toml:"endpoint"`
	Bucket   string `json:"bucket" yaml:"bucket" toml:"bucket"`
	Prefix   string `json:"prefix,omitempty" yaml:"prefix,omitempty" toml:"prefix"`
	Region   string `json:"region,omitempty" yaml:"region,omitempty" toml:"region"`
	UseSSL   *bool  `json:"useSSL,omitempty" yaml:"useSSL,omitempty" toml:"useSSL"`
}

// BoolPtr returns a pointer to b, for building configs in code.
func BoolPtr(b bool) *bool {
	return &b
}

func getBool(b *bool, defaultVal bool) bool {
	if b == nil {
		return defaultVal
	}
	return *b
}

// GetFollowRedirects returns the follow redirects setting, defaulting to true
func (c *Config) GetFollowRedirects() bool {
	return getBool(c.FollowRedirects, true)
}

// GetValidateSSL returns the validate SSL setting, defaulting to true
func (c *Config) GetValidateSSL() bool {
	return getBool(c.ValidateSSL, true)
}

func (c *Config) GetFailFast() bool {
	return getBool(c.FailFast, false)
}

func (c *Config) GetNoColor() bool {
	return getBool(c.NoColor, false)
}

func (a *ArtifactsConfig) GetUseSSL() bool {
	return getBool(a.UseSSL, true)
}

func (c *Config) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Millisecond
}

func (c *Config) RetryDelayDuration() time.Duration {
	return time.Duration(c.RetryDelay) * time.Millisecond
}

func (c *Config) VariableTTLDuration() time.Duration {
	return time.Duration(c.VariableTTL) * time.Second
}

// Environment returns the named environment, falling back to
// DefaultEnvironment when name is empty. A missing default is not an error.
func (c *Config) Environment(name string) (Environment, error) {
	if name == "" {
		name = c.DefaultEnvironment
		if _, ok := c.Environments[name]; !ok {
			return Environment{}, nil
		}
	}
	env, ok := c.Environments[name]
	if !ok {
		return Environment{}, fmt.Errorf("%w: unknown environment %q", ErrInvalid, name)
	}
	return env, nil
}

// ResolveBaseURL picks the base URL for a run: an explicit value wins, then
// the environment, then the top-level setting.
func (c *Config) ResolveBaseURL(explicit string, env Environment) string {
	switch {
	case explicit != "":
		return explicit
	case env.BaseURL != "":
		return env.BaseURL
	default:
		return c.BaseURL
	}
}

// Validate checks values that would otherwise fail late during a run.
func (c *Config) Validate() error {
	var problems []string
	if c.Timeout < 0 {
		problems = append(problems, "timeout must not be negative")
	}
	if c.Retries < 0 {
		problems = append(problems, "retries must not be negative")
	}
	if c.Concurrency < 0 {
		problems = append(problems, "concurrency must not be negative")
	}
	if c.RateLimit < 0 {
		problems = append(problems, "rateLimit must not be negative")
	}
	if c.VariableTTL < 0 {
		problems = append(problems, "variableTTL must not be negative")
	}
	if c.MaxFailures < 0 {
		problems = append(problems, "maxFailures must not be negative")
	}
	if c.OAuth2 != nil {
		if err := c.OAuth2.Validate(); err != nil {
			problems = append(problems, err.Error())
		}
	}
	if c.Artifacts != nil && c.Artifacts.Bucket == "" {
		problems = append(problems, "artifacts.bucket is required")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// ConfigFilenames contains the possible config file names, in lookup order.
var ConfigFilenames = []string{
	".hitchain.json",
	"hitchain.json",
	"hitchain.yaml",
	"hitchain.yml",
	"hitchain.toml",
}

// LoadConfig loads configuration from the specified path or searches for config files
func LoadConfig(path string) (*Config, error) {
	if path != "" {
		return loadConfigFromFile(path)
	}
	return FindAndLoadConfig(".")
}

// FindAndLoadConfig searches for a config file in the given directory
func FindAndLoadConfig(dir string) (*Config, error) {
	for _, filename := range ConfigFilenames {
		configPath := filepath.Join(dir, filename)
		if _, err := os.Stat(configPath); err == nil {
			return loadConfigFromFile(configPath)
		}
	}
	return DefaultConfig(), nil
}

func loadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := DefaultConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, config)
	case ".toml":
		_, err = toml.Decode(string(data), config)
	default:
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalid, path, err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return config, nil
}

// Merge merges another config into this one, with other taking precedence
func (c *Config) Merge(other *Config) *Config {
	if other == nil {
		return c
	}

	result := *c

	if other.BaseURL != "" {
		result.BaseURL = other.BaseURL
	}
	if other.DefaultEnvironment != "" {
		result.DefaultEnvironment = other.DefaultEnvironment
	}
	if other.Timeout > 0 {
		result.Timeout = other.Timeout
	}
	if other.Retries > 0 {
		result.Retries = other.Retries
	}
	if other.RetryDelay > 0 {
		result.RetryDelay = other.RetryDelay
	}
	if other.RateLimit > 0 {
		result.RateLimit = other.RateLimit
	}
	if other.MaxRedirects > 0 {
		result.MaxRedirects = other.MaxRedirects
	}
	if other.Proxy != "" {
		result.Proxy = other.Proxy
	}
	if other.Concurrency > 0 {
		result.Concurrency = other.Concurrency
	}
	if other.MaxFailures > 0 {
		result.MaxFailures = other.MaxFailures
	}
	if other.VariableTTL > 0 {
		result.VariableTTL = other.VariableTTL
	}
	if other.OutputDir != "" {
		result.OutputDir = other.OutputDir
	}
	if other.HistoryDB != "" {
		result.HistoryDB = other.HistoryDB
	}
	if len(other.Reporters) > 0 {
		result.Reporters = other.Reporters
	}
	if other.FollowRedirects != nil {
		result.FollowRedirects = other.FollowRedirects
	}
	if other.ValidateSSL != nil {
		result.ValidateSSL = other.ValidateSSL
	}
	if other.FailFast != nil {
		result.FailFast = other.FailFast
	}
	if other.NoColor != nil {
		result.NoColor = other.NoColor
	}
	if other.OAuth2 != nil {
		result.OAuth2 = other.OAuth2
	}
	if other.Artifacts != nil {
		result.Artifacts = other.Artifacts
	}

	if len(other.Headers) > 0 {
		result.Headers = make(map[string]string, len(c.Headers)+len(other.Headers))
		for k, v := range c.Headers {
			result.Headers[k] = v
		}
		for k, v := range other.Headers {
			result.Headers[k] = v
		}
	}
	if len(other.Environments) > 0 {
		result.Environments = make(map[string]Environment, len(c.Environments)+len(other.Environments))
		for k, v := range c.Environments {
			result.Environments[k] = v
		}
		for k, v := range other.Environments {
			result.Environments[k] = v
		}
	}

	return &result
}

// SaveConfig writes cfg as indented JSON, the format `hitchain init` emits.
func SaveConfig(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
