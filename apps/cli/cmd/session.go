package cmd

import (
	"fmt"

	"github.com/abdul-hamid-achik/hitchain/packages/core/cases"
	"github.com/abdul-hamid-achik/hitchain/packages/core/config"
	"github.com/abdul-hamid-achik/hitchain/packages/core/env"
	"github.com/abdul-hamid-achik/hitchain/packages/core/runner"
	"github.com/abdul-hamid-achik/hitchain/packages/loader"
	"github.com/spf13/cobra"
)

// selectionFlags are the case filters shared by run, list and graph.
type selectionFlags struct {
	caseIDs         []string
	module          string
	keyword         string
	tags            string
	priorities      []string
	includeDisabled bool
}

func (s *selectionFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&s.caseIDs, "case-id", nil, "Select cases by id (repeatable or comma-separated)")
	cmd.Flags().StringVarP(&s.module, "module", "m", getEnvString("HITCHAIN_MODULE", ""), "Select cases of one module (env: HITCHAIN_MODULE)")
	cmd.Flags().StringVarP(&s.keyword, "keyword", "k", "", "Select cases whose id or name matches (supports * wildcards)")
	cmd.Flags().StringVarP(&s.tags, "tags", "t", getEnvString("HITCHAIN_TAGS", ""), "Select cases with any of these tags (comma-separated) (env: HITCHAIN_TAGS)")
	cmd.Flags().StringSliceVar(&s.priorities, "priority", getEnvList("HITCHAIN_PRIORITY"), "Select cases by priority P0-P3 (env: HITCHAIN_PRIORITY)")
	cmd.Flags().BoolVar(&s.includeDisabled, "include-disabled", false, "Also select cases marked is_run: false")
}

func (s *selectionFlags) filter() (cases.Filter, error) {
	f := cases.Filter{
		CaseIDs:         s.caseIDs,
		Module:          s.module,
		Keyword:         s.keyword,
		Tags:            splitList(s.tags),
		IncludeDisabled: s.includeDisabled,
	}
	for _, raw := range s.priorities {
		p, err := cases.ParsePriority(raw)
		if err != nil {
			return cases.Filter{}, withExit(ExitUsageError, err)
		}
		if p != "" {
			f.Priorities = append(f.Priorities, p)
		}
	}
	return f, nil
}

// variableFlags choose where a run's initial variables come from. run and
// validate share them so both see the same store.
type variableFlags struct {
	env         string
	envFile     string
	assignments []string
}

func (v *variableFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&v.env, "env", "e", getEnvString("HITCHAIN_ENV", ""), "Environment from the config file (env: HITCHAIN_ENV)")
	cmd.Flags().StringVar(&v.envFile, "env-file", getEnvString("HITCHAIN_ENV_FILE", ""), "Path to .env file seeding variables (env: HITCHAIN_ENV_FILE)")
	cmd.Flags().StringArrayVar(&v.assignments, "var", nil, "Set a variable (name=value, repeatable)")
}

// environment returns the selected environment, or the config's default one.
func (v *variableFlags) environment(cfg *config.Config) (config.Environment, error) {
	e, err := cfg.Environment(v.env)
	if err != nil {
		return config.Environment{}, withExit(ExitConfigError, err)
	}
	return e, nil
}

// envName is the environment name reported in notifications.
func (v *variableFlags) envName(cfg *config.Config) string {
	if v.env != "" {
		return v.env
	}
	return cfg.DefaultEnvironment
}

// seed merges suite, environment, dotenv, HITCHAIN_VAR_* and --var values,
// later sources winning.
func (v *variableFlags) seed(suite *cases.Suite, environment config.Environment) (map[string]any, error) {
	var dotenv map[string]string
	if v.envFile != "" {
		var err error
		dotenv, err = env.LoadDotEnv(v.envFile)
		if err != nil {
			return nil, withExit(ExitConfigError, fmt.Errorf("loading env file: %w", err))
		}
	}
	overrides, err := env.ParseAssignments(v.assignments)
	if err != nil {
		return nil, withExit(ExitUsageError, err)
	}

	return env.Sources{
		Suite:       suite.Variables,
		Environment: environment.Variables,
		DotEnv:      dotenv,
		Process:     env.FromProcess(env.VarPrefix),
		Overrides:   overrides,
	}.Merge(), nil
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configFlag)
	if err != nil {
		return nil, withExit(ExitConfigError, err)
	}
	return cfg, nil
}

func loadSuite(paths []string) (*cases.Suite, error) {
	suite, err := loader.LoadPaths(paths)
	if err != nil {
		return nil, withExit(ExitLoadError, err)
	}
	logger.Debug("suite loaded", "name", suite.Name, "files", len(suite.Files), "cases", len(suite.Cases))
	return suite, nil
}

// planSuite validates the dependency graph and batches the selected cases
// without sending anything.
func planSuite(suite *cases.Suite, filter cases.Filter) (*runner.Plan, error) {
	plan, err := runner.NewRunner(&runner.Config{Filter: filter}, runner.WithLogger(logger)).Load(suite.Cases)
	if err != nil {
		return nil, withExit(ExitAborted, err)
	}
	return plan, nil
}

func describeCase(tc *cases.TestCase) string {
	s := fmt.Sprintf("%s  %s %s", tc.ID, tc.Method, tc.Path)
	if tc.Name != "" {
		s += "  " + tc.Name
	}
	return s
}
