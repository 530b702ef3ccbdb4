package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hitchain/packages/core/cases"
	"github.com/abdul-hamid-achik/hitchain/packages/coverage"
)

var (
	coverageSelection selectionFlags
	coverageSpec      string
	coverageJSON      bool
	coverageMin       float64
)

var coverageCmd = &cobra.Command{
	Use:   "coverage <file|directory>...",
	Short: "Report which OpenAPI operations the suite exercises",
	Long: `Match every selected case's method and path against the operations of
an OpenAPI document and report the covered share, overall and per tag.

Placeholders in case paths match any single path parameter.

Examples:
  hitchain coverage suites/ --openapi openapi.yaml
  hitchain coverage suites/ --openapi https://api.example.com/openapi.json --min 80`,
	Args: usageArgs(cobra.MinimumNArgs(1)),
	RunE: coverageCommand,
}

func init() {
	coverageSelection.register(coverageCmd)
	coverageCmd.Flags().StringVar(&coverageSpec, "openapi", getEnvString("HITCHAIN_OPENAPI", ""), "OpenAPI document (file or URL)")
	coverageCmd.Flags().BoolVar(&coverageJSON, "json", false, "Print the report as JSON")
	coverageCmd.Flags().Float64Var(&coverageMin, "min", 0, "Exit with a test failure below this coverage percentage")
}

func coverageCommand(cmd *cobra.Command, args []string) error {
	if coverageSpec == "" {
		return withExit(ExitUsageError, fmt.Errorf("--openapi is required"))
	}
	if coverageMin < 0 || coverageMin > 100 {
		return withExit(ExitUsageError, fmt.Errorf("--min must be between 0 and 100"))
	}

	suite, err := loadSuite(args)
	if err != nil {
		return err
	}
	filter, err := coverageSelection.filter()
	if err != nil {
		return err
	}

	analyzer := coverage.NewAnalyzer()
	if err := analyzer.LoadOpenAPI(cmd.Context(), coverageSpec); err != nil {
		return withExit(ExitLoadError, err)
	}

	ids := cases.Select(suite.Cases, filter)
	report := analyzer.Analyze(coverage.FromSuite(suite, ids))
	logger.Debug("coverage analysed", "cases", len(ids), "endpoints", report.TotalEndpoints)

	out := cmd.OutOrStdout()
	if coverageJSON {
		js, err := report.FormatJSON()
		if err != nil {
			return err
		}
		fmt.Fprintln(out, js)
	} else {
		fmt.Fprint(out, report.FormatConsole())
	}

	if report.CoveragePercent < coverageMin {
		return withExit(ExitTestFailure, fmt.Errorf("coverage %.1f%% is below the required %.1f%%", report.CoveragePercent, coverageMin))
	}
	return nil
}
