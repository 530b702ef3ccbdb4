package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/abdul-hamid-achik/hitchain/packages/logging"
	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var (
	configFlag    string
	logLevelFlag  string
	logFormatFlag string
	logFileFlag   string

	logger   = logging.Discard()
	closeLog = func() error { return nil }
)

var rootCmd = &cobra.Command{
	Use:   "hitchain",
	Short: "Dependency-aware API test runner",
	Long: `hitchain runs API test cases described in YAML, JSON or Excel suites.
Cases may depend on one another: a dependency runs first, its extracted
variables feed the dependent's request, and independent cases run in
parallel batches.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setupLogging,
}

func Execute(v, bt string) {
	version = v
	buildTime = bt

	err := rootCmd.Execute()
	_ = closeLog()
	if err != nil {
		if msg := err.Error(); msg != "" {
			fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
		}
		os.Exit(exitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", getEnvString("HITCHAIN_CONFIG", ""), "Path to config file (env: HITCHAIN_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", getEnvString("HITCHAIN_LOG_LEVEL", "warn"), "Log level: debug, info, warn, error (env: HITCHAIN_LOG_LEVEL)")
	rootCmd.PersistentFlags().StringVar(&logFormatFlag, "log-format", getEnvString("HITCHAIN_LOG_FORMAT", "text"), "Log format: text, json (env: HITCHAIN_LOG_FORMAT)")
	rootCmd.PersistentFlags().StringVar(&logFileFlag, "log-file", getEnvString("HITCHAIN_LOG_FILE", ""), "Write logs to file instead of stderr (env: HITCHAIN_LOG_FILE)")

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return withExit(ExitUsageError, err)
	})

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(coverageCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
}

func setupLogging(cmd *cobra.Command, args []string) error {
	l, closer, err := logging.New(logging.Options{
		Level:  logLevelFlag,
		Format: logging.Format(strings.ToLower(logFormatFlag)),
		File:   logFileFlag,
	})
	if err != nil {
		return withExit(ExitUsageError, err)
	}
	logger = l
	closeLog = closer
	slog.SetDefault(l)
	return nil
}

// usageArgs maps argument validation failures to ExitUsageError.
func usageArgs(fn cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := fn(cmd, args); err != nil {
			return withExit(ExitUsageError, err)
		}
		return nil
	}
}

// Environment variable helpers
func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1" || val == "yes"
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvList(key string) []string {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	return splitList(val)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
