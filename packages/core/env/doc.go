// Package env gathers the variables a run starts with.
//
// It provides functionality for:
//   - Parsing .env files
//   - Reading HITCHAIN_VAR_* variables from the process environment
//   - Parsing name=value assignments given on the command line
//   - Layering all sources in a fixed precedence order
package env
