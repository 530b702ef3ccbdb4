package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/abdul-hamid-achik/hitchain/packages/artifacts"
	"github.com/abdul-hamid-achik/hitchain/packages/core/cases"
	"github.com/abdul-hamid-achik/hitchain/packages/core/config"
	"github.com/abdul-hamid-achik/hitchain/packages/core/runner"
	"github.com/abdul-hamid-achik/hitchain/packages/core/vars"
	"github.com/abdul-hamid-achik/hitchain/packages/db"
	"github.com/abdul-hamid-achik/hitchain/packages/http"
	"github.com/abdul-hamid-achik/hitchain/packages/loader"
	"github.com/abdul-hamid-achik/hitchain/packages/notify"
	"github.com/abdul-hamid-achik/hitchain/packages/output"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <file|directory>...",
	Short: "Run test cases from suite files",
	Long: `Run the test cases defined in .yaml, .json or .xlsx suites.

Dependencies run before their dependents, extracted variables feed later
requests, and independent cases run in parallel batches.

Examples:
  hitchain run suites/
  hitchain run suites/orders.yaml --env staging
  hitchain run cases.xlsx --module user --priority P0,P1
  hitchain run suites/ --reporter console,junit,allure --output-dir reports
  hitchain run suites/ --var token=abc --failfast
  hitchain run suites/ --history sqlite://hitchain.db --publish`,
	Args: usageArgs(cobra.MinimumNArgs(1)),
	RunE: runCommand,
}

const (
	// WatchDebounceDelay is the debounce delay for file watch events
	WatchDebounceDelay = 300 * time.Millisecond
)

var (
	runSelection selectionFlags
	runVars      variableFlags

	baseURLFlag string

	concurrencyFlag int
	failFastFlag    bool
	maxFailuresFlag int
	timeoutFlag     string
	retriesFlag     int
	rateLimitFlag   float64
	variableTTLFlag string
	proxyFlag       string
	insecureFlag    bool

	reportersFlag []string
	outputDirFlag string
	lockWaitFlag  string
	keepResults   bool
	verboseFlag   bool
	noColorFlag   bool

	watchFlag       bool
	historyFlag     string
	publishFlag     bool
	waitForFlag     string
	waitStatusFlag  int
	waitTimeoutFlag string

	notifyFlag       string
	notifyOnFlag     string
	slackWebhookFlag string
	slackChannelFlag string
	teamsWebhookFlag string
)

func init() {
	runSelection.register(runCmd)
	runVars.register(runCmd)

	// Variables and targets
	runCmd.Flags().StringVar(&baseURLFlag, "base-url", getEnvString("HITCHAIN_BASE_URL", ""), "Base URL for relative case paths (env: HITCHAIN_BASE_URL)")

	// Execution flags
	runCmd.Flags().IntVarP(&concurrencyFlag, "concurrency", "c", getEnvInt("HITCHAIN_CONCURRENCY", 0), "Cases run at once within a batch (env: HITCHAIN_CONCURRENCY)")
	runCmd.Flags().BoolVarP(&failFastFlag, "failfast", "x", getEnvBool("HITCHAIN_FAILFAST", false), "Stop scheduling batches after a failing batch (env: HITCHAIN_FAILFAST)")
	runCmd.Flags().IntVar(&maxFailuresFlag, "max-failures", getEnvInt("HITCHAIN_MAX_FAILURES", 0), "Stop scheduling batches after this many failures (env: HITCHAIN_MAX_FAILURES)")
	runCmd.Flags().StringVar(&timeoutFlag, "timeout", getEnvString("HITCHAIN_TIMEOUT", ""), "Request timeout (e.g., 30s, 1m) (env: HITCHAIN_TIMEOUT)")
	runCmd.Flags().IntVar(&retriesFlag, "retries", getEnvInt("HITCHAIN_RETRIES", 0), "Retries after a transport error (env: HITCHAIN_RETRIES)")
	runCmd.Flags().Float64Var(&rateLimitFlag, "rate-limit", 0, "Maximum requests per second across all workers")
	runCmd.Flags().StringVar(&variableTTLFlag, "variable-ttl", getEnvString("HITCHAIN_VARIABLE_TTL", ""), "Lifetime of extracted variables without their own extract_ttl (env: HITCHAIN_VARIABLE_TTL)")

	// Network flags
	runCmd.Flags().StringVar(&proxyFlag, "proxy", getEnvString("HITCHAIN_PROXY", ""), "Proxy URL for HTTP requests (env: HITCHAIN_PROXY)")
	runCmd.Flags().BoolVar(&insecureFlag, "insecure", getEnvBool("HITCHAIN_INSECURE", false), "Disable SSL certificate validation (env: HITCHAIN_INSECURE)")

	// Output flags
	runCmd.Flags().StringSliceVarP(&reportersFlag, "reporter", "r", getEnvList("HITCHAIN_REPORTERS"), "Reporters: "+strings.Join(output.Names(), ", ")+" (env: HITCHAIN_REPORTERS)")
	runCmd.Flags().StringVarP(&outputDirFlag, "output-dir", "o", getEnvString("HITCHAIN_OUTPUT_DIR", ""), "Directory for report files (env: HITCHAIN_OUTPUT_DIR)")
	runCmd.Flags().StringVar(&lockWaitFlag, "lock-wait", "0s", "How long to wait for another run to release the output directory")
	runCmd.Flags().BoolVar(&keepResults, "keep-results", getEnvBool("HITCHAIN_KEEP_RESULTS", false), "Keep earlier allure results in the output directory (env: HITCHAIN_KEEP_RESULTS)")
	runCmd.Flags().BoolVarP(&verboseFlag, "verbose", "v", false, "Show request and response details of failing cases")
	runCmd.Flags().BoolVar(&noColorFlag, "no-color", getEnvBool("HITCHAIN_NO_COLOR", false), "Disable colored output (env: HITCHAIN_NO_COLOR)")

	// Integrations
	runCmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "Watch suite files for changes and re-run")
	runCmd.Flags().StringVar(&historyFlag, "history", getEnvString("HITCHAIN_HISTORY_DB", ""), "Store run results in sqlite:// or postgres:// (env: HITCHAIN_HISTORY_DB)")
	runCmd.Flags().BoolVar(&publishFlag, "publish", getEnvBool("HITCHAIN_PUBLISH", false), "Upload the output directory to the configured bucket (env: HITCHAIN_PUBLISH)")
	runCmd.Flags().StringVar(&waitForFlag, "wait-for", getEnvString("HITCHAIN_WAIT_FOR", ""), "Poll this URL before the run starts (env: HITCHAIN_WAIT_FOR)")
	runCmd.Flags().IntVar(&waitStatusFlag, "wait-status", 200, "Status code --wait-for expects")
	runCmd.Flags().StringVar(&waitTimeoutFlag, "wait-timeout", "30s", "How long --wait-for polls")

	// Notification flags
	runCmd.Flags().StringVar(&notifyFlag, "notify", getEnvString("HITCHAIN_NOTIFY", ""), "Notification services: slack, teams (env: HITCHAIN_NOTIFY)")
	runCmd.Flags().StringVar(&notifyOnFlag, "notify-on", getEnvString("HITCHAIN_NOTIFY_ON", "failure"), "When to notify: always, failure, success, recovery (env: HITCHAIN_NOTIFY_ON)")
	runCmd.Flags().StringVar(&slackWebhookFlag, "slack-webhook", getEnvString("SLACK_WEBHOOK", ""), "Slack webhook URL (env: SLACK_WEBHOOK)")
	runCmd.Flags().StringVar(&slackChannelFlag, "slack-channel", getEnvString("SLACK_CHANNEL", ""), "Slack channel override (env: SLACK_CHANNEL)")
	runCmd.Flags().StringVar(&teamsWebhookFlag, "teams-webhook", getEnvString("TEAMS_WEBHOOK", ""), "Microsoft Teams webhook URL (env: TEAMS_WEBHOOK)")
}

func buildNotifier() (*notify.Manager, error) {
	services := splitList(notifyFlag)
	if len(services) == 0 {
		return nil, nil
	}
	on, err := notify.ParseNotifyOn(notifyOnFlag)
	if err != nil {
		return nil, withExit(ExitUsageError, err)
	}

	var notifiers []notify.Notifier
	for _, service := range services {
		switch strings.ToLower(service) {
		case "slack":
			if slackWebhookFlag == "" {
				return nil, withExit(ExitUsageError, errors.New("--slack-webhook is required when using --notify slack"))
			}
			var opts []notify.SlackOption
			if slackChannelFlag != "" {
				opts = append(opts, notify.WithSlackChannel(slackChannelFlag))
			}
			notifiers = append(notifiers, notify.NewSlackNotifier(slackWebhookFlag, opts...))
		case "teams":
			if teamsWebhookFlag == "" {
				return nil, withExit(ExitUsageError, errors.New("--teams-webhook is required when using --notify teams"))
			}
			notifiers = append(notifiers, notify.NewTeamsNotifier(teamsWebhookFlag))
		default:
			return nil, withExit(ExitUsageError, fmt.Errorf("unknown notification service %q", service))
		}
	}
	return notify.NewManager(on, notifiers...), nil
}

// isSet reports whether a flag was given on the command line or through its
// environment variable.
func isSet(cmd *cobra.Command, name, envKey string) bool {
	if cmd.Flags().Changed(name) {
		return true
	}
	return envKey != "" && os.Getenv(envKey) != ""
}

// flagOverrides returns the config values set by flags. Merged over the file
// config, they take precedence.
func flagOverrides(cmd *cobra.Command) (*config.Config, error) {
	o := &config.Config{}

	if isSet(cmd, "base-url", "HITCHAIN_BASE_URL") {
		o.BaseURL = baseURLFlag
	}
	if isSet(cmd, "timeout", "HITCHAIN_TIMEOUT") {
		d, err := time.ParseDuration(timeoutFlag)
		if err != nil || d <= 0 {
			return nil, withExit(ExitUsageError, fmt.Errorf("invalid timeout value %q (use format like 30s, 1m, 500ms)", timeoutFlag))
		}
		o.Timeout = int(d.Milliseconds())
	}
	if isSet(cmd, "variable-ttl", "HITCHAIN_VARIABLE_TTL") {
		d, err := time.ParseDuration(variableTTLFlag)
		if err != nil || d < 0 {
			return nil, withExit(ExitUsageError, fmt.Errorf("invalid variable-ttl value %q", variableTTLFlag))
		}
		o.VariableTTL = int(d.Seconds())
	}
	if concurrencyFlag < 0 || maxFailuresFlag < 0 || retriesFlag < 0 || rateLimitFlag < 0 {
		return nil, withExit(ExitUsageError, errors.New("concurrency, max-failures, retries and rate-limit must not be negative"))
	}
	o.Concurrency = concurrencyFlag
	o.MaxFailures = maxFailuresFlag
	o.Retries = retriesFlag
	o.RateLimit = rateLimitFlag
	o.Proxy = proxyFlag
	o.OutputDir = outputDirFlag
	o.HistoryDB = historyFlag
	o.Reporters = reportersFlag

	if isSet(cmd, "failfast", "HITCHAIN_FAILFAST") {
		o.FailFast = config.BoolPtr(failFastFlag)
	}
	if isSet(cmd, "no-color", "HITCHAIN_NO_COLOR") {
		o.NoColor = config.BoolPtr(noColorFlag)
	}
	if insecureFlag {
		o.ValidateSSL = config.BoolPtr(false)
	}
	return o, nil
}

func runCommand(cmd *cobra.Command, args []string) error {
	fileConfig, err := loadConfig()
	if err != nil {
		return err
	}
	overrides, err := flagOverrides(cmd)
	if err != nil {
		return err
	}
	cfg := fileConfig.Merge(overrides)
	if err := cfg.Validate(); err != nil {
		return withExit(ExitConfigError, err)
	}

	environment, err := runVars.environment(cfg)
	if err != nil {
		return err
	}

	filter, err := runSelection.filter()
	if err != nil {
		return err
	}

	waitFor, err := buildWaitFor()
	if err != nil {
		return err
	}

	notifier, err := buildNotifier()
	if err != nil {
		return err
	}

	lockWait, err := time.ParseDuration(lockWaitFlag)
	if err != nil {
		return withExit(ExitUsageError, fmt.Errorf("invalid lock-wait value %q: %w", lockWaitFlag, err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rs := &runSession{
		cfg:         cfg,
		environment: environment,
		filter:      filter,
		waitFor:     waitFor,
		lockWait:    lockWait,
		notifier:    notifier,
		paths:       args,
		out:         cmd.OutOrStdout(),
		errOut:      cmd.ErrOrStderr(),
	}

	result, err := rs.runOnce(ctx)
	if !watchFlag {
		if err != nil {
			return err
		}
		return rs.exitFor(result)
	}
	if err != nil {
		fmt.Fprintf(rs.errOut, "Error: %v\n", err)
	}
	return rs.watch(ctx)
}

func buildWaitFor() (*runner.WaitFor, error) {
	if waitForFlag == "" {
		return nil, nil
	}
	timeout, err := time.ParseDuration(waitTimeoutFlag)
	if err != nil {
		return nil, withExit(ExitUsageError, fmt.Errorf("invalid wait-timeout value %q: %w", waitTimeoutFlag, err))
	}
	return &runner.WaitFor{
		URL:     waitForFlag,
		Status:  waitStatusFlag,
		Timeout: timeout,
	}, nil
}

// runSession holds what stays fixed across watch re-runs. Suites, the
// variable store, the client and the reporters are rebuilt for every run.
type runSession struct {
	cfg         *config.Config
	environment config.Environment
	filter      cases.Filter
	waitFor     *runner.WaitFor
	lockWait    time.Duration
	notifier    *notify.Manager
	paths       []string
	out         io.Writer
	errOut      io.Writer
}

func (s *runSession) runOnce(ctx context.Context) (*runner.RunResult, error) {
	suite, err := loadSuite(s.paths)
	if err != nil {
		return nil, err
	}

	store, err := s.seedStore(suite)
	if err != nil {
		return nil, err
	}

	baseURL := s.cfg.ResolveBaseURL(baseURLFlag, s.environment)
	if baseURL == "" {
		baseURL = suite.BaseURL
	}
	client, err := s.buildClient(store.Substitute(baseURL), store)
	if err != nil {
		return nil, err
	}

	reportOpts := output.Options{
		Writer:      s.out,
		Dir:         s.cfg.OutputDir,
		SuiteName:   suite.Name,
		Verbose:     verboseFlag,
		NoColor:     s.cfg.GetNoColor(),
		KeepResults: keepResults,
	}
	reporters, err := output.NewAll(s.cfg.Reporters, reportOpts)
	if err != nil {
		return nil, withExit(ExitUsageError, err)
	}

	dir := s.reportDir(reporters)
	if dir != "" {
		unlock, err := output.Lock(ctx, dir, s.lockWait)
		if err != nil {
			return nil, withExit(ExitAborted, err)
		}
		defer func() {
			if err := unlock(); err != nil {
				logger.Warn("release output lock", "dir", dir, "error", err)
			}
		}()
	}

	var sinks []runner.Sink
	for _, rep := range reporters {
		if sink, ok := rep.(runner.Sink); ok {
			sinks = append(sinks, sink)
		}
	}

	r := runner.NewRunner(&runner.Config{
		Concurrency: s.cfg.Concurrency,
		FailFast:    s.cfg.GetFailFast(),
		MaxFailures: s.cfg.MaxFailures,
		VariableTTL: s.cfg.VariableTTLDuration(),
		Filter:      s.filter,
		WaitFor:     s.waitFor,
	},
		runner.WithTransport(client),
		runner.WithStore(store),
		runner.WithSink(sinks...),
		runner.WithLogger(logger),
	)

	result := r.Run(ctx, suite.Cases)

	// Persisting and reporting still happen after an interrupt.
	finishCtx := context.WithoutCancel(ctx)
	var errs []error
	for _, rep := range reporters {
		if err := rep.Report(result); err != nil {
			errs = append(errs, fmt.Errorf("%s reporter: %w", rep.Name(), err))
		}
	}
	if s.cfg.HistoryDB != "" {
		if err := saveHistory(finishCtx, s.cfg.HistoryDB, suite.Name, result); err != nil {
			errs = append(errs, err)
		}
	}
	if s.notifier != nil {
		if err := s.notifier.Notify(finishCtx, notify.Summarize(result, suite.Name, runVars.envName(s.cfg))); err != nil {
			logger.Warn("failed to send notification", "error", err)
		}
	}
	if publishFlag {
		if dir == "" {
			errs = append(errs, errors.New("--publish needs a reporter that writes files or --output-dir"))
		} else if err := s.publish(finishCtx, dir, result.ID); err != nil {
			errs = append(errs, err)
		}
	}
	return result, errors.Join(errs...)
}

func (s *runSession) seedStore(suite *cases.Suite) (*vars.Store, error) {
	initial, err := runVars.seed(suite, s.environment)
	if err != nil {
		return nil, err
	}
	store := vars.NewStore(vars.WithWarnFunc(logger.Warn))
	store.SetAll(initial)
	return store, nil
}

func (s *runSession) buildClient(baseURL string, store *vars.Store) (*http.Client, error) {
	if baseURL != "" {
		if err := http.ValidateURL(baseURL); err != nil {
			return nil, withExit(ExitConfigError, fmt.Errorf("base URL: %w", err))
		}
	}

	headers := make(map[string]string, len(s.cfg.Headers))
	for k, v := range s.cfg.Headers {
		headers[k] = store.Substitute(v)
	}

	opts := []http.ClientOption{
		http.WithBaseURL(baseURL),
		http.WithTimeout(s.cfg.TimeoutDuration()),
		http.WithFollowRedirects(s.cfg.GetFollowRedirects()),
		http.WithMaxRedirects(s.cfg.MaxRedirects),
		http.WithValidateSSL(s.cfg.GetValidateSSL()),
		http.WithDefaultHeaders(headers),
		http.WithRetries(s.cfg.Retries, s.cfg.RetryDelayDuration()),
		http.WithRateLimit(s.cfg.RateLimit),
	}
	if s.cfg.Proxy != "" {
		opts = append(opts, http.WithProxy(s.cfg.Proxy))
	}
	if s.cfg.OAuth2 != nil {
		opts = append(opts, http.WithOAuth2(s.cfg.OAuth2))
	}

	client, err := http.NewClient(opts...)
	if err != nil {
		return nil, withExit(ExitConfigError, err)
	}
	return client, nil
}

// reportDir is the directory file-writing reporters use, or "" when every
// reporter writes to the terminal.
func (s *runSession) reportDir(reporters []output.Reporter) string {
	if s.cfg.OutputDir != "" {
		return s.cfg.OutputDir
	}
	for _, rep := range reporters {
		switch rep.Name() {
		case "allure", "xlsx", "html":
			return output.DefaultDir
		}
	}
	return ""
}

func (s *runSession) publish(ctx context.Context, dir, runID string) error {
	var base artifacts.Config
	if a := s.cfg.Artifacts; a != nil {
		base = artifacts.Config{
			Endpoint: a.Endpoint,
			Bucket:   a.Bucket,
			Prefix:   a.Prefix,
			Region:   a.Region,
			UseSSL:   a.GetUseSSL(),
		}
	}
	acfg, err := artifacts.ConfigFromEnv(base)
	if err != nil {
		return withExit(ExitConfigError, err)
	}
	client, err := artifacts.NewMinIOClient(acfg)
	if err != nil {
		return withExit(ExitConfigError, err)
	}

	keys, err := artifacts.NewPublisher(client, acfg, logger).Publish(ctx, dir, runID)
	if err != nil {
		return fmt.Errorf("publishing reports: %w", err)
	}
	fmt.Fprintf(s.out, "Published %d files to bucket %s (run %s)\n", len(keys), acfg.Bucket, runID)
	return nil
}

func saveHistory(ctx context.Context, conn, suiteName string, result *runner.RunResult) error {
	store, err := db.Open(ctx, conn)
	if err != nil {
		return withExit(ExitConfigError, fmt.Errorf("opening history: %w", err))
	}
	defer store.Close()

	if err := store.SaveRun(ctx, suiteName, result); err != nil {
		return fmt.Errorf("saving run history: %w", err)
	}
	logger.Debug("run saved", "run_id", result.ID, "driver", store.Driver())
	return nil
}

// exitFor maps a finished run to the process exit code. The console reporter
// has already printed failures, so the error message stays empty.
func (s *runSession) exitFor(result *runner.RunResult) error {
	switch result.Status {
	case runner.StatusPassed:
		return nil
	case runner.StatusAborted:
		if s.printsToConsole() {
			return withExit(ExitAborted, nil)
		}
		return withExit(ExitAborted, result.Err)
	case runner.StatusCancelled:
		return withExit(ExitAborted, nil)
	default:
		return withExit(ExitTestFailure, nil)
	}
}

func (s *runSession) printsToConsole() bool {
	for _, name := range s.cfg.Reporters {
		if strings.EqualFold(strings.TrimSpace(name), "console") {
			return true
		}
	}
	return false
}

func (s *runSession) watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	watched := make(map[string]bool)
	add := func(dir string) {
		if watched[dir] {
			return
		}
		watched[dir] = true
		if err := watcher.Add(dir); err != nil {
			logger.Warn("watch", "dir", dir, "error", err)
		}
	}
	for _, arg := range s.paths {
		info, err := os.Stat(arg)
		if err != nil {
			continue
		}
		if !info.IsDir() {
			add(filepath.Dir(arg))
			continue
		}
		_ = filepath.WalkDir(arg, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != arg && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				add(path)
			}
			return nil
		})
	}

	fmt.Fprintf(s.out, "\nWatching for changes... (press Ctrl+C to stop)\n\n")

	var (
		debounce <-chan time.Time
		changed  string
	)
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			name := filepath.Base(event.Name)
			if strings.HasPrefix(name, "~$") || !loader.IsSuiteFile(name) {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				changed = event.Name
				debounce = time.After(WatchDebounceDelay)
			}

		case <-debounce:
			debounce = nil
			fmt.Fprintf(s.out, "\n\nFile changed: %s\nRe-running cases...\n\n", changed)
			if _, err := s.runOnce(ctx); err != nil {
				fmt.Fprintf(s.errOut, "Error: %v\n", err)
			}
			fmt.Fprintf(s.out, "\nWatching for changes... (press Ctrl+C to stop)\n")

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error", "error", err)
		}
	}
}
