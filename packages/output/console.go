package output

import (
	"fmt"
	"io"
	"sync"

	"github.com/abdul-hamid-achik/hitchain/packages/core/runner"
	"github.com/fatih/color"
)

// ConsoleFormatter prints one line per finished case while the run is in
// progress, then failure details and a summary.
type ConsoleFormatter struct {
	mu      sync.Mutex
	writer  io.Writer
	verbose bool

	green, red, yellow, cyan, bold func(a ...any) string
}

func NewConsoleFormatter(opts Options) *ConsoleFormatter {
	if opts.NoColor {
		color.NoColor = true
	}
	return &ConsoleFormatter{
		writer:  opts.writer(),
		verbose: opts.Verbose,
		green:   color.New(color.FgGreen).SprintFunc(),
		red:     color.New(color.FgRed).SprintFunc(),
		yellow:  color.New(color.FgYellow).SprintFunc(),
		cyan:    color.New(color.FgCyan).SprintFunc(),
		bold:    color.New(color.Bold).SprintFunc(),
	}
}

func (f *ConsoleFormatter) Name() string { return "console" }

// CaseFinished implements runner.Sink.
func (f *ConsoleFormatter) CaseFinished(rec *runner.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case rec.Skipped:
		fmt.Fprintf(f.writer, "  %s %s", f.yellow("-"), title(rec))
		if rec.SkipReason != "" {
			fmt.Fprintf(f.writer, " (%s)", rec.SkipReason)
		}
		fmt.Fprintln(f.writer)
	case rec.Success:
		fmt.Fprintf(f.writer, "  %s %s %s\n", f.green("✓"), title(rec), f.cyan(fmt.Sprintf("(%dms)", rec.Duration.Milliseconds())))
	default:
		fmt.Fprintf(f.writer, "  %s %s %s\n", f.red("✗"), title(rec), f.cyan(fmt.Sprintf("(%dms)", rec.Duration.Milliseconds())))
	}

	if f.verbose && !rec.Skipped {
		if line := requestLine(rec); line != "" {
			fmt.Fprintf(f.writer, "    %s -> %d\n", line, statusCode(rec))
		}
		for name, value := range rec.ExtractedVars {
			fmt.Fprintf(f.writer, "    %s = %s\n", name, formatValue(value, 80))
		}
	}
}

func (f *ConsoleFormatter) Report(result *runner.RunResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if result.Err != nil && len(result.Records) == 0 {
		fmt.Fprintf(f.writer, "%s %v\n", f.red("Error:"), result.Err)
		return nil
	}

	var failed []*runner.Record
	for _, rec := range result.Ordered() {
		if rec.Failed() {
			failed = append(failed, rec)
		}
	}
	if len(failed) > 0 {
		fmt.Fprintf(f.writer, "\n%s\n", f.bold("Failures:"))
		for _, rec := range failed {
			fmt.Fprintf(f.writer, "\n  %s %s\n", f.red("●"), title(rec))
			if line := requestLine(rec); line != "" {
				fmt.Fprintf(f.writer, "    %s -> %d\n", line, statusCode(rec))
			}
			for _, msg := range failures(rec) {
				fmt.Fprintf(f.writer, "    %s %s\n", f.red("→"), msg)
			}
		}
	}

	fmt.Fprintf(f.writer, "\nCases:   ")
	if result.Passed > 0 {
		fmt.Fprintf(f.writer, "%s, ", f.green(fmt.Sprintf("%d passed", result.Passed)))
	}
	if result.Failed > 0 {
		fmt.Fprintf(f.writer, "%s, ", f.red(fmt.Sprintf("%d failed", result.Failed)))
	}
	if result.Skipped > 0 {
		fmt.Fprintf(f.writer, "%s, ", f.yellow(fmt.Sprintf("%d skipped", result.Skipped)))
	}
	fmt.Fprintf(f.writer, "%d total\n", len(result.Records))
	fmt.Fprintf(f.writer, "Batches: %d\n", len(result.Batches))

	if lat := ComputeStats(result).Latency; lat.Count > 0 {
		fmt.Fprintf(f.writer, "Latency: p50 %dms, p95 %dms, p99 %dms\n",
			lat.P50.Milliseconds(), lat.P95.Milliseconds(), lat.P99.Milliseconds())
	}
	fmt.Fprintf(f.writer, "Time:    %dms\n", result.Duration.Milliseconds())

	switch result.Status {
	case runner.StatusCancelled:
		fmt.Fprintf(f.writer, "%s\n", f.yellow("Run cancelled"))
	case runner.StatusAborted:
		fmt.Fprintf(f.writer, "%s %v\n", f.red("Run aborted:"), result.Err)
	}
	fmt.Fprintln(f.writer)
	return nil
}
