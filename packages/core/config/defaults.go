package config

import "github.com/abdul-hamid-achik/hitchain/packages/core/runner"

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		DefaultEnvironment: "dev",
		Timeout:            30000,
		RetryDelay:         1000,
		FollowRedirects:    BoolPtr(true),
		MaxRedirects:       10,
		ValidateSSL:        BoolPtr(true),
		Reporters:          []string{"console"},
		Concurrency:        runner.DefaultConcurrency,
		FailFast:           BoolPtr(false),
		NoColor:            BoolPtr(false),
	}
}

// IsDefault returns true if the config matches defaults
func (c *Config) IsDefault() bool {
	d := DefaultConfig()
	return c.BaseURL == d.BaseURL &&
		c.DefaultEnvironment == d.DefaultEnvironment &&
		len(c.Environments) == 0 &&
		c.Timeout == d.Timeout &&
		c.Retries == d.Retries &&
		c.RetryDelay == d.RetryDelay &&
		c.RateLimit == d.RateLimit &&
		c.GetFollowRedirects() == d.GetFollowRedirects() &&
		c.MaxRedirects == d.MaxRedirects &&
		c.GetValidateSSL() == d.GetValidateSSL() &&
		c.Proxy == d.Proxy &&
		len(c.Headers) == 0 &&
		c.Concurrency == d.Concurrency &&
		c.GetFailFast() == d.GetFailFast() &&
		c.MaxFailures == d.MaxFailures &&
		c.VariableTTL == d.VariableTTL &&
		c.OutputDir == d.OutputDir &&
		c.HistoryDB == d.HistoryDB &&
		c.OAuth2 == nil &&
		c.Artifacts == nil
}
