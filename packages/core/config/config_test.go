package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.True(t, cfg.IsDefault())
	assert.True(t, cfg.GetFollowRedirects())
	assert.True(t, cfg.GetValidateSSL())
	assert.False(t, cfg.GetFailFast())
	assert.Equal(t, 5, cfg.Concurrency)
	assert.Equal(t, 30*time.Second, cfg.TimeoutDuration())
	assert.Equal(t, time.Second, cfg.RetryDelayDuration())
}

func TestFindAndLoadConfig_NoFile(t *testing.T) {
	cfg, err := FindAndLoadConfig(t.TempDir())
	require.NoError(t, err)
	assert.True(t, cfg.IsDefault())
}

func TestLoadConfig_Formats(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name: "json",
			file: ".hitchain.json",
			content: `{"baseUrl": "http://api", "concurrency": 8, "failFast": true, "variableTTL": 60,
  "environments": {"staging": {"baseUrl": "http://staging", "variables": {"user": "bob"}}}}`,
		},
		{
			name: "yaml",
			file: "hitchain.yaml",
			content: `baseUrl: http://api
concurrency: 8
failFast: true
variableTTL: 60
environments:
  staging:
    baseUrl: http://staging
    variables:
      user: bob
`,
		},
		{
			name: "toml",
			file: "hitchain.toml",
			content: `baseUrl = "http://api"
concurrency = 8
failFast = true
variableTTL = 60

[environments.staging]
baseUrl = "http://staging"

[environments.staging.variables]
user = "bob"
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeConfig(t, dir, tt.file, tt.content)

			cfg, err := FindAndLoadConfig(dir)
			require.NoError(t, err)
			assert.Equal(t, "http://api", cfg.BaseURL)
			assert.Equal(t, 8, cfg.Concurrency)
			assert.True(t, cfg.GetFailFast())
			assert.Equal(t, time.Minute, cfg.VariableTTLDuration())
			// Unset keys keep their defaults.
			assert.Equal(t, 30000, cfg.Timeout)

			env, err := cfg.Environment("staging")
			require.NoError(t, err)
			assert.Equal(t, "http://staging", env.BaseURL)
			assert.Equal(t, "bob", env.Variables["user"])
		})
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	dir := t.TempDir()

	path := writeConfig(t, dir, "bad.json", `{"concurrency": -1}`)
	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "concurrency must not be negative")

	path = writeConfig(t, dir, "broken.yaml", "timeout: [")
	_, err = LoadConfig(path)
	assert.ErrorIs(t, err, ErrInvalid)

	path = writeConfig(t, dir, "oauth.json", `{"oauth2": {"clientId": "x"}}`)
	_, err = LoadConfig(path)
	assert.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "token URL is required")
}

func TestEnvironment(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Environments = map[string]Environment{"dev": {BaseURL: "http://dev"}}

	env, err := cfg.Environment("")
	require.NoError(t, err)
	assert.Equal(t, "http://dev", env.BaseURL)

	_, err = cfg.Environment("prod")
	assert.ErrorIs(t, err, ErrInvalid)

	cfg.Environments = nil
	env, err = cfg.Environment("")
	require.NoError(t, err)
	assert.Empty(t, env.BaseURL)
}

func TestResolveBaseURL(t *testing.T) {
	cfg := &Config{BaseURL: "http://top"}
	assert.Equal(t, "http://flag", cfg.ResolveBaseURL("http://flag", Environment{BaseURL: "http://env"}))
	assert.Equal(t, "http://env", cfg.ResolveBaseURL("", Environment{BaseURL: "http://env"}))
	assert.Equal(t, "http://top", cfg.ResolveBaseURL("", Environment{}))
}

func TestMerge(t *testing.T) {
	base := DefaultConfig()
	base.Headers = map[string]string{"X-A": "1"}

	merged := base.Merge(&Config{
		Concurrency: 2,
		FailFast:    BoolPtr(true),
		Headers:     map[string]string{"X-B": "2"},
		Reporters:   []string{"json"},
	})

	assert.Equal(t, 2, merged.Concurrency)
	assert.True(t, merged.GetFailFast())
	assert.Equal(t, map[string]string{"X-A": "1", "X-B": "2"}, merged.Headers)
	assert.Equal(t, []string{"json"}, merged.Reporters)
	assert.Equal(t, 30000, merged.Timeout)

	// The receiver is left untouched.
	assert.Equal(t, 5, base.Concurrency)
	assert.Same(t, base, base.Merge(nil))
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".hitchain.json")
	cfg := DefaultConfig()
	cfg.BaseURL = "http://saved"
	require.NoError(t, SaveConfig(path, cfg))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "http://saved", loaded.BaseURL)
}
