package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var listSelection selectionFlags

var listCmd = &cobra.Command{
	Use:   "list <file|directory>...",
	Short: "List the cases a filter selects",
	Long: `List the cases defined in suites, narrowed by the same filters as run.

Examples:
  hitchain list suites/
  hitchain list cases.xlsx --module user --tags smoke`,
	Args: usageArgs(cobra.MinimumNArgs(1)),
	RunE: listCommand,
}

func init() {
	listSelection.register(listCmd)
}

func listCommand(cmd *cobra.Command, args []string) error {
	suite, err := loadSuite(args)
	if err != nil {
		return err
	}
	filter, err := listSelection.filter()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	count := 0
	module := "\x00"
	for _, tc := range suite.Cases {
		if !filter.Match(tc) {
			continue
		}
		if tc.Module != module {
			module = tc.Module
			name := module
			if name == "" {
				name = "(no module)"
			}
			fmt.Fprintf(out, "\n%s:\n", name)
		}
		count++

		fmt.Fprintf(out, "  - %s\n", describeCase(tc))
		var details []string
		if tc.Priority != "" {
			details = append(details, "priority: "+string(tc.Priority))
		}
		if len(tc.Tags) > 0 {
			details = append(details, "tags: "+strings.Join(tc.Tags, ", "))
		}
		if tc.HasDependency() {
			details = append(details, "depends on: "+tc.DependsOn)
		}
		if !tc.Runnable {
			details = append(details, "disabled")
		}
		if len(details) > 0 {
			fmt.Fprintf(out, "    %s\n", strings.Join(details, "; "))
		}
	}

	fmt.Fprintf(out, "\n%d of %d cases selected\n", count, len(suite.Cases))
	return nil
}
