// Package cmd implements the hitchain CLI commands using Cobra.
//
// Available commands:
//   - run: Execute suites, dependencies first, in parallel batches
//   - validate: Load suites and check the dependency graph without executing
//   - list: Display the cases that a filter selects
//   - graph: Print the batch plan of a run
//   - history: Inspect and prune stored run results
//   - import: Generate a suite from an OpenAPI document
//   - coverage: Report the OpenAPI operations a suite exercises
//   - init: Create a config file and an example suite
//   - version: Show hitchain version information
//
// Flags default to HITCHAIN_* environment variables, and values from the
// config file apply when a flag is not set.
package cmd
