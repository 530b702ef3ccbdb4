package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	graphSelection selectionFlags
	graphJSON      bool
)

var graphCmd = &cobra.Command{
	Use:   "graph <file|directory>...",
	Short: "Print the batch plan without executing",
	Long: `Print the batches a run would execute, in order. Cases within a batch
run in parallel; a batch starts once the previous one has finished.

Dependencies outside the selection are listed under the case that needs
them; they run on demand.

Examples:
  hitchain graph suites/
  hitchain graph suites/ --module order --json`,
	Args: usageArgs(cobra.MinimumNArgs(1)),
	RunE: graphCommand,
}

func init() {
	graphSelection.register(graphCmd)
	graphCmd.Flags().BoolVar(&graphJSON, "json", false, "Print batches as a JSON array of id arrays")
}

func graphCommand(cmd *cobra.Command, args []string) error {
	suite, err := loadSuite(args)
	if err != nil {
		return err
	}
	filter, err := graphSelection.filter()
	if err != nil {
		return err
	}
	plan, err := planSuite(suite, filter)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if graphJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(plan.Batches)
	}

	selected := make(map[string]bool, len(plan.Selected))
	for _, id := range plan.Selected {
		selected[id] = true
	}

	for i, batch := range plan.Batches {
		fmt.Fprintf(out, "Batch %d (%d cases)\n", i+1, len(batch))
		for _, id := range batch {
			tc, _ := plan.Graph.Case(id)
			fmt.Fprintf(out, "  %s\n", describeCase(tc))
			for _, ancestor := range plan.Graph.Chain(id) {
				if selected[ancestor] {
					break
				}
				fmt.Fprintf(out, "    needs %s (runs on demand)\n", ancestor)
			}
		}
	}
	fmt.Fprintf(out, "\n%d cases in %d batches\n", len(plan.Selected), len(plan.Batches))
	return nil
}
