package cmd

import "errors"

// Exit codes for hitchain CLI
const (
	// ExitSuccess indicates all cases passed
	ExitSuccess = 0

	// ExitTestFailure indicates one or more cases failed
	ExitTestFailure = 1

	// ExitLoadError indicates a suite file could not be read or parsed
	ExitLoadError = 2

	// ExitConfigError indicates a configuration error
	ExitConfigError = 3

	// ExitAborted indicates the run stopped before executing, for example on
	// a dependency cycle, or was interrupted
	ExitAborted = 4

	// ExitUsageError indicates invalid CLI usage
	ExitUsageError = 64
)

// exitError carries the process exit code for an error. A nil err exits
// silently, which is how a run with failing cases ends.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return ""
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func withExit(code int, err error) error {
	return &exitError{code: code, err: err}
}

func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return ExitTestFailure
}
