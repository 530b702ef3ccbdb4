// Package config handles configuration loading and management for hitchain.
//
// It provides functionality for:
//   - Loading .hitchain.json, hitchain.json, hitchain.yaml or hitchain.toml
//   - Default configuration values
//   - Named environments that override the base URL and seed variables
//
// Command-line flags are layered on top with Merge.
package config
