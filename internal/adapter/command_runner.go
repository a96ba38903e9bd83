package adapter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"time"
)

var (
	// ErrToolUnavailable is returned when an external tool binary cannot be found.
	ErrToolUnavailable = errors.New("external tool unavailable")

	// ErrToolTimeout is returned when an external tool exceeds its time budget.
	ErrToolTimeout = errors.New("external tool timed out")

	// ErrToolFailed is returned when an external tool exits with a non-zero status.
	ErrToolFailed = errors.New("external tool failed")
)

// IsUnavailable reports whether err means the tool could not produce a result
// at all (missing binary or timeout). Callers treat both the same way.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrToolUnavailable) || errors.Is(err, ErrToolTimeout)
}

const waitDelay = 5 * time.Second

// CommandResult holds the captured output of an external command.
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Combined returns stdout followed by stderr.
func (r CommandResult) Combined() string {
	return r.Stdout + r.Stderr
}

// CommandRunner abstracts process execution so pipeline logic can be tested
// without spawning git or go.
type CommandRunner interface {
	// Run executes name with args inside dir. A nil error means exit status 0.
	// Failures wrap ErrToolUnavailable, ErrToolTimeout or ErrToolFailed.
	Run(ctx context.Context, dir string, name string, args ...string) (CommandResult, error)
}

// LocalCommandRunner runs commands with os/exec.
type LocalCommandRunner struct {
	timeout time.Duration
	logger  *slog.Logger
}

// NewLocalCommandRunner constructs a LocalCommandRunner. A zero timeout
// disables the deadline.
func NewLocalCommandRunner(timeout time.Duration, logger *slog.Logger) *LocalCommandRunner {
	return &LocalCommandRunner{
		timeout: timeout,
		logger:  logger,
	}
}

// Run executes the command and classifies its failure.
func (r *LocalCommandRunner) Run(ctx context.Context, dir string, name string, args ...string) (CommandResult, error) {
	if _, err := exec.LookPath(name); err != nil {
		r.logger.Warn("Tool not found", "tool", name, "error", err)
		return CommandResult{ExitCode: -1}, fmt.Errorf("%s: %w", name, ErrToolUnavailable)
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	// #nosec G204 - the tool name and arguments are fixed by the pipeline
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	// Children that inherit the output pipes must not outlive a killed command.
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer

	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.logger.Debug("Running command", "dir", dir, "tool", name, "args", args)

	err := cmd.Run()

	result := CommandResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: -1,
	}
	if cmd.ProcessState != nil {
		result.ExitCode = cmd.ProcessState.ExitCode()
	}

	if err == nil {
		return result, nil
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		r.logger.Warn("Command timed out", "tool", name, "timeout", r.timeout)
		return result, fmt.Errorf("%s after %s: %w", name, r.timeout, ErrToolTimeout)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return result, fmt.Errorf("%s exited with status %d: %w", name, exitErr.ExitCode(), ErrToolFailed)
	}

	if errors.Is(err, exec.ErrNotFound) {
		return result, fmt.Errorf("%s: %w", name, ErrToolUnavailable)
	}

	return result, fmt.Errorf("failed to run %s: %w", name, err)
}
