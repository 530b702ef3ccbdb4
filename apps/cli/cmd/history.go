package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/abdul-hamid-achik/hitchain/packages/db"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	historyDBFlag    string
	historyLimitFlag int
	historyKeepFlag  int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect stored run results",
	Long: `Inspect runs stored with run --history. The database comes from
--db, HITCHAIN_HISTORY_DB or historyDb in the config file.

Examples:
  hitchain history list --db sqlite://hitchain.db
  hitchain history show 1b4e28ba-2fa1-11d2-883f-0016d3cca427
  hitchain history prune --keep 50`,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent runs, newest first",
	Args:  usageArgs(cobra.NoArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withHistory(cmd.Context(), func(ctx context.Context, store *db.Store) error {
			runs, err := store.ListRuns(ctx, historyLimitFlag)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "RUN\tSUITE\tSTATUS\tPASSED\tFAILED\tSKIPPED\tSTARTED\tDURATION")
			for _, run := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
					run.ID, run.Suite, colorStatus(run.Status), run.Passed, run.Failed, run.Skipped,
					run.StartedAt.Local().Format(time.DateTime), run.Duration.Round(time.Millisecond))
			}
			return w.Flush()
		})
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show the records of one run",
	Args:  usageArgs(cobra.ExactArgs(1)),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withHistory(cmd.Context(), func(ctx context.Context, store *db.Store) error {
			run, err := store.GetRun(ctx, args[0])
			if err != nil {
				return err
			}
			records, err := store.RunRecords(ctx, run.ID)
			if err != nil {
				return err
			}
			return printRun(cmd.OutOrStdout(), run, records)
		})
	},
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete all but the newest runs",
	Args:  usageArgs(cobra.NoArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		if historyKeepFlag < 0 {
			return withExit(ExitUsageError, errors.New("--keep must not be negative"))
		}
		return withHistory(cmd.Context(), func(ctx context.Context, store *db.Store) error {
			n, err := store.Prune(ctx, historyKeepFlag)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d runs\n", n)
			return nil
		})
	},
}

func init() {
	historyCmd.PersistentFlags().StringVar(&historyDBFlag, "db", getEnvString("HITCHAIN_HISTORY_DB", ""), "History database (sqlite://path or postgres://...) (env: HITCHAIN_HISTORY_DB)")
	historyListCmd.Flags().IntVarP(&historyLimitFlag, "limit", "n", 20, "Number of runs to show")
	historyPruneCmd.Flags().IntVar(&historyKeepFlag, "keep", 100, "Number of newest runs to keep")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyPruneCmd)
}

func withHistory(ctx context.Context, fn func(context.Context, *db.Store) error) error {
	if ctx == nil {
		ctx = context.Background()
	}

	conn := historyDBFlag
	if conn == "" {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		conn = cfg.HistoryDB
	}
	if conn == "" {
		return withExit(ExitConfigError, errors.New("no history database configured (use --db or historyDb)"))
	}

	store, err := db.Open(ctx, conn)
	if err != nil {
		return withExit(ExitConfigError, err)
	}
	defer store.Close()

	if err := fn(ctx, store); err != nil {
		if errors.Is(err, db.ErrRunNotFound) {
			return withExit(ExitUsageError, err)
		}
		return err
	}
	return nil
}

func printRun(out io.Writer, run db.RunSummary, records []db.RecordRow) error {
	fmt.Fprintf(out, "Run:      %s\n", run.ID)
	fmt.Fprintf(out, "Suite:    %s\n", run.Suite)
	fmt.Fprintf(out, "Status:   %s\n", colorStatus(run.Status))
	fmt.Fprintf(out, "Started:  %s\n", run.StartedAt.Local().Format(time.DateTime))
	fmt.Fprintf(out, "Duration: %s\n", run.Duration.Round(time.Millisecond))
	fmt.Fprintf(out, "Cases:    %d passed, %d failed, %d skipped in %d batches\n",
		run.Passed, run.Failed, run.Skipped, run.Batches)
	if run.Error != "" {
		fmt.Fprintf(out, "Error:    %s\n", run.Error)
	}
	fmt.Fprintln(out)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CASE\tMODULE\tSTATUS\tCODE\tDURATION\tERROR")
	for _, r := range records {
		caseID := r.CaseID
		if r.AsDependency {
			caseID += " (dep)"
		}
		code := "-"
		if r.StatusCode > 0 {
			code = strconv.Itoa(r.StatusCode)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			caseID, r.Module, colorStatus(r.Status), code, r.Duration.Round(time.Millisecond), r.Error)
	}
	return w.Flush()
}

func colorStatus(status string) string {
	switch status {
	case "passed":
		return color.GreenString(status)
	case "failed", "aborted":
		return color.RedString(status)
	default:
		return color.YellowString(status)
	}
}
