package artifacts

import (
	"errors"
	"fmt"
	"os"
	"strconv"
)

// Config locates the bucket reports are published to. Keys come from
// HITCHAIN_ARTIFACTS_ACCESS_KEY and HITCHAIN_ARTIFACTS_SECRET_KEY.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	Region    string
	UseSSL    bool
}

// ConfigFromEnv fills credentials from the environment and lets
// HITCHAIN_ARTIFACTS_* variables override the file settings in base.
func ConfigFromEnv(base Config) (Config, error) {
	cfg := base
	cfg.Endpoint = envString("HITCHAIN_ARTIFACTS_ENDPOINT", cfg.Endpoint)
	cfg.Bucket = envString("HITCHAIN_ARTIFACTS_BUCKET", cfg.Bucket)
	cfg.Prefix = envString("HITCHAIN_ARTIFACTS_PREFIX", cfg.Prefix)
	cfg.Region = envString("HITCHAIN_ARTIFACTS_REGION", cfg.Region)
	cfg.AccessKey = envString("HITCHAIN_ARTIFACTS_ACCESS_KEY", cfg.AccessKey)
	cfg.SecretKey = envString("HITCHAIN_ARTIFACTS_SECRET_KEY", cfg.SecretKey)

	if v, ok := os.LookupEnv("HITCHAIN_ARTIFACTS_USE_SSL"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("parse HITCHAIN_ARTIFACTS_USE_SSL: %w", err)
		}
		cfg.UseSSL = b
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Endpoint == "" {
		return errors.New("artifacts endpoint is required")
	}
	if c.Bucket == "" {
		return errors.New("artifacts bucket is required")
	}
	if c.AccessKey == "" || c.SecretKey == "" {
		return errors.New("HITCHAIN_ARTIFACTS_ACCESS_KEY and HITCHAIN_ARTIFACTS_SECRET_KEY are required")
	}
	return nil
}

func envString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}
