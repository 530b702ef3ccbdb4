package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/abdul-hamid-achik/hitchain/packages/core/config"
	"github.com/abdul-hamid-achik/hitchain/packages/loader"
	"github.com/spf13/cobra"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new hitchain project",
	Long: `Initialize a new hitchain project in the current directory.

This creates:
  - hitchain.json         - Configuration file with environments
  - suites/example.yaml   - Example suite with a dependency chain

Examples:
  hitchain init
  hitchain init --force`,
	Args: usageArgs(cobra.NoArgs),
	RunE: initCommand,
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite existing files")
}

const exampleSuite = `name: example
variables:
  username: demo
test_cases:
  - test_case_id: health
    name: Health check
    module: system
    tags: smoke
    priority: P0
    method: GET
    path: /health
    asserts:
      - type: status_code
        value: 200

  - test_case_id: create_resource
    name: Create a resource
    module: resources
    tags: crud
    priority: P1
    method: POST
    path: /resources
    headers:
      Content-Type: application/json
    body:
      name: Test Resource
      owner: ${username}
      request_id: ${uuid()}
    extract_vars:
      resource_id: $.id
    extract_ttl: 5m
    asserts:
      - type: status_code
        value: 201
      - type: json_path
        expr: $.name
        value: Test Resource

  - test_case_id: get_resource
    name: Get the created resource
    module: resources
    tags: crud
    priority: P1
    method: GET
    path: /resources/${resource_id}
    pre_condition_tc: create_resource
    asserts:
      - type: status_code
        value: 200
      - type: json_path
        expr: $.id
        op: exists
      - type: response_time
        value: 2000
`

func initCommand(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	configFile := filepath.Join(cwd, "hitchain.json")
	exampleFile := filepath.Join(cwd, "suites", "example.yaml")

	if !forceInit {
		for _, f := range []string{configFile, exampleFile} {
			if _, err := os.Stat(f); err == nil {
				return withExit(ExitUsageError, fmt.Errorf("file already exists: %s (use --force to overwrite)", f))
			}
		}
	}

	cfg := config.DefaultConfig()
	cfg.Headers = map[string]string{
		"User-Agent": "hitchain/" + version,
	}
	cfg.Environments = map[string]config.Environment{
		"dev":     {BaseURL: "http://localhost:3000"},
		"staging": {BaseURL: "https://staging.api.example.com"},
		"prod":    {BaseURL: "https://api.example.com"},
	}
	if err := config.SaveConfig(configFile, cfg); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", configFile)

	if err := os.MkdirAll(filepath.Dir(exampleFile), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(exampleFile, []byte(exampleSuite), 0o644); err != nil {
		return fmt.Errorf("failed to create example suite: %w", err)
	}
	// The example must stay loadable.
	if _, err := loader.LoadFile(exampleFile); err != nil {
		return fmt.Errorf("example suite: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", exampleFile)

	fmt.Fprintf(cmd.OutOrStdout(), "\nhitchain project initialized!\n")
	fmt.Fprintf(cmd.OutOrStdout(), "Run 'hitchain run suites/' to execute the example cases.\n")
	return nil
}
