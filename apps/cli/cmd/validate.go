package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/abdul-hamid-achik/hitchain/packages/core/cases"
	"github.com/abdul-hamid-achik/hitchain/packages/core/graph"
	"github.com/abdul-hamid-achik/hitchain/packages/core/vars"
	"github.com/spf13/cobra"
)

var (
	strictValidate bool
	validateVars   variableFlags
)

var validateCmd = &cobra.Command{
	Use:   "validate <file|directory>...",
	Short: "Check suites and their dependency graph without executing",
	Long: `Load suites, compile assertion rules and check the dependency graph
for duplicate ids, missing dependencies and cycles. Nothing is sent.

Placeholders that no variable source defines are reported as warnings, or
as errors with --strict. The sources are the ones run uses: suite variables,
the config environment, --env-file, HITCHAIN_VAR_* and --var, plus the
extract_vars of a case's ancestors.

Examples:
  hitchain validate suites/
  hitchain validate cases.xlsx --strict --env staging`,
	Args: usageArgs(cobra.MinimumNArgs(1)),
	RunE: validateCommand,
}

func init() {
	validateVars.register(validateCmd)
	validateCmd.Flags().BoolVar(&strictValidate, "strict", false, "Treat undefined placeholders as errors")
}

func validateCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	environment, err := validateVars.environment(cfg)
	if err != nil {
		return err
	}

	suite, err := loadSuite(args)
	if err != nil {
		return err
	}
	initial, err := validateVars.seed(suite, environment)
	if err != nil {
		return err
	}

	plan, err := planSuite(suite, cases.Filter{IncludeDisabled: true})
	if err != nil {
		return err
	}

	undefined := undefinedPlaceholders(plan.Graph, initial)
	for _, id := range plan.Graph.IDs() {
		if names := undefined[id]; len(names) > 0 {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %s uses undefined variables: %s\n", id, strings.Join(names, ", "))
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Valid: %d cases in %d files, %d batches\n",
		plan.Graph.Len(), len(suite.Files), len(plan.Batches))

	if strictValidate && len(undefined) > 0 {
		return withExit(ExitLoadError, fmt.Errorf("%d cases use undefined variables", len(undefined)))
	}
	return nil
}

// undefinedPlaceholders maps case ids to the ${name} tokens in their request
// that neither the initial variables nor an ancestor's extraction provides.
func undefinedPlaceholders(g *graph.Graph, initial map[string]any) map[string][]string {
	out := make(map[string][]string)

	for _, tc := range g.Cases() {
		store := vars.NewStore()
		store.SetAll(initial)
		for _, ancestor := range g.Chain(tc.ID) {
			if dep, ok := g.Case(ancestor); ok {
				for name := range dep.ExtractVars {
					store.Set(name, "", 0)
				}
			}
		}

		if missing := store.Missing(requestText(tc)); len(missing) > 0 {
			out[tc.ID] = missing
		}
	}
	return out
}

func requestText(tc *cases.TestCase) string {
	parts := []any{tc.Path, tc.Headers, tc.Params, tc.Body}
	data, err := json.Marshal(parts)
	if err != nil {
		return tc.Path
	}
	return string(data)
}
