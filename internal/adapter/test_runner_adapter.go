package adapter

import (
	"context"
)

// TestRunnerAdapter abstracts `go test` invocations.
type TestRunnerAdapter interface {
	// RunGoTest runs the whole test suite of the module rooted at workDir.
	RunGoTest(ctx context.Context, workDir string) (CommandResult, error)

	// RunGoTestCoverage runs the test suite with coverage instrumentation and
	// writes a cover profile to profilePath (absolute, or relative to workDir).
	RunGoTestCoverage(ctx context.Context, workDir, profilePath string) (CommandResult, error)
}

// LocalTestRunnerAdapter runs the go tool through a CommandRunner.
type LocalTestRunnerAdapter struct {
	runner CommandRunner
}

// NewLocalTestRunnerAdapter constructs a LocalTestRunnerAdapter.
func NewLocalTestRunnerAdapter(runner CommandRunner) *LocalTestRunnerAdapter {
	return &LocalTestRunnerAdapter{runner: runner}
}

// RunGoTest runs 'go test ./...' in workDir.
func (a *LocalTestRunnerAdapter) RunGoTest(ctx context.Context, workDir string) (CommandResult, error) {
	return a.runner.Run(ctx, workDir, "go", "test", "./...")
}

// RunGoTestCoverage runs 'go test' with a set-mode cover profile spanning all packages.
func (a *LocalTestRunnerAdapter) RunGoTestCoverage(ctx context.Context, workDir, profilePath string) (CommandResult, error) {
	return a.runner.Run(ctx, workDir, "go", "test",
		"-covermode=set",
		"-coverpkg=./...",
		"-coverprofile="+profilePath,
		"./...",
	)
}
