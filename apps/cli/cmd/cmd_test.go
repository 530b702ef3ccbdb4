package cmd

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/hitchain/packages/core/cases"
	"github.com/abdul-hamid-achik/hitchain/packages/core/config"
	"github.com/abdul-hamid-achik/hitchain/packages/core/graph"
	"github.com/abdul-hamid-achik/hitchain/packages/core/runner"
)

func TestExitCode(t *testing.T) {
	cause := errors.New("boom")

	assert.Equal(t, ExitSuccess, exitCode(nil))
	assert.Equal(t, ExitTestFailure, exitCode(cause))
	assert.Equal(t, ExitLoadError, exitCode(withExit(ExitLoadError, cause)))

	wrapped := errors.Join(errors.New("context"), withExit(ExitConfigError, cause))
	assert.Equal(t, ExitConfigError, exitCode(wrapped))
	assert.ErrorIs(t, withExit(ExitAborted, cause), cause)
	assert.Empty(t, withExit(ExitTestFailure, nil).Error())
}

func TestSelectionFilter(t *testing.T) {
	s := selectionFlags{
		caseIDs:    []string{"login"},
		module:     "auth",
		tags:       "smoke, ,regression",
		priorities: []string{"p0", "P2"},
	}

	f, err := s.filter()
	require.NoError(t, err)
	assert.Equal(t, []string{"login"}, f.CaseIDs)
	assert.Equal(t, []string{"smoke", "regression"}, f.Tags)
	assert.Equal(t, []cases.Priority{cases.P0, cases.P2}, f.Priorities)

	s.priorities = []string{"urgent"}
	_, err = s.filter()
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, exitCode(err))
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, splitList(""))
	assert.Equal(t, []string{"a", "b"}, splitList(" a,,b "))
}

func TestRunExitFor(t *testing.T) {
	abortErr := errors.New("cycle")
	quiet := &runSession{cfg: &config.Config{Reporters: []string{"json"}}}
	console := &runSession{cfg: &config.Config{Reporters: []string{"console"}}}

	assert.NoError(t, quiet.exitFor(&runner.RunResult{Status: runner.StatusPassed}))
	assert.Equal(t, ExitTestFailure, exitCode(quiet.exitFor(&runner.RunResult{Status: runner.StatusFailed})))
	assert.Equal(t, ExitAborted, exitCode(quiet.exitFor(&runner.RunResult{Status: runner.StatusCancelled})))

	err := quiet.exitFor(&runner.RunResult{Status: runner.StatusAborted, Err: abortErr})
	assert.Equal(t, ExitAborted, exitCode(err))
	assert.ErrorIs(t, err, abortErr)

	err = console.exitFor(&runner.RunResult{Status: runner.StatusAborted, Err: abortErr})
	assert.Equal(t, ExitAborted, exitCode(err))
	assert.Empty(t, err.Error())
}

func TestUndefinedPlaceholders(t *testing.T) {
	g, err := graph.Build([]*cases.TestCase{
		{
			ID:          "login",
			Method:      "POST",
			Path:        "/${tenant}/login",
			Body:        map[string]any{"user": "${user}"},
			ExtractVars: map[string]string{"token": "$.token"},
			Runnable:    true,
		},
		{
			ID:        "profile",
			Method:    "GET",
			Path:      "/${tenant}/me",
			Headers:   map[string]any{"Authorization": "Bearer ${token}"},
			Body:      map[string]any{"trace": "${traceId}"},
			DependsOn: "login",
			Runnable:  true,
		},
	})
	require.NoError(t, err)

	missing := undefinedPlaceholders(g, map[string]any{"user": "alice", "tenant": "acme"})

	assert.Equal(t, map[string][]string{"profile": {"traceId"}}, missing)
}

func TestVariableFlagsSeed(t *testing.T) {
	t.Setenv("HITCHAIN_VAR_region", "eu")
	dotenv := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(dotenv, []byte("user=from-dotenv\nplan=gold\n"), 0o644))

	cfg := &config.Config{
		DefaultEnvironment: "dev",
		Environments: map[string]config.Environment{
			"dev":     {Variables: map[string]any{"token": "abc", "user": "from-env"}},
			"staging": {Variables: map[string]any{"token": "xyz"}},
		},
	}
	suite := &cases.Suite{
		Variables: map[string]any{"user": "from-suite", "limit": 10},
		Cases: []*cases.TestCase{{
			ID:       "me",
			Method:   "GET",
			Path:     "/${region}/me?plan=${plan}&limit=${limit}",
			Headers:  map[string]any{"Authorization": "Bearer ${token}", "X-User": "${user}"},
			Runnable: true,
		}},
	}

	v := variableFlags{envFile: dotenv, assignments: []string{"plan=platinum"}}
	environment, err := v.environment(cfg)
	require.NoError(t, err)
	initial, err := v.seed(suite, environment)
	require.NoError(t, err)

	assert.Equal(t, "abc", initial["token"])
	assert.Equal(t, "from-dotenv", initial["user"])
	assert.Equal(t, "platinum", initial["plan"])
	assert.Equal(t, "eu", initial["region"])
	assert.Equal(t, 10, initial["limit"])
	assert.Equal(t, "dev", v.envName(cfg))

	g, err := graph.Build(suite.Cases)
	require.NoError(t, err)
	assert.Empty(t, undefinedPlaceholders(g, initial))

	// Without the config environment the bearer token has no source.
	bare, err := (&variableFlags{}).seed(suite, config.Environment{})
	require.NoError(t, err)
	assert.Equal(t, []string{"plan", "token"}, undefinedPlaceholders(g, bare)["me"])

	_, err = (&variableFlags{env: "prod"}).environment(cfg)
	assert.Equal(t, ExitConfigError, exitCode(err))

	_, err = (&variableFlags{assignments: []string{"novalue"}}).seed(suite, environment)
	assert.Equal(t, ExitUsageError, exitCode(err))
}
