// Package controller provides output adapters for displaying pipeline progress and results.
package controller

import (
	"context"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	m "gapfill.dev/pkg/gapfill/internal/model"
)

// Stage names a pipeline step reported to the UI.
type Stage string

// Pipeline stages in execution order.
const (
	StageChanges    Stage = "changes"
	StageDiscovery  Stage = "discovery"
	StageCoverage   Stage = "coverage"
	StageGeneration Stage = "generation"
	StageValidation Stage = "validation"
)

// Summary is the final report shown after a run.
type Summary struct {
	ChangedFiles   []m.Path
	ChangedSymbols int
	Gaps           []m.CoverageGap
	ReportPath     m.Path
	Generated      []m.GeneratedTest
	Validation     m.ValidationOutcome
	DryRun         bool
}

// UI defines the interface for displaying pipeline progress.
// Implementations must be safe for concurrent stage events.
type UI interface {
	Start(ctx context.Context) error
	Close(ctx context.Context)
	StageStarted(ctx context.Context, stage Stage)
	StageFinished(ctx context.Context, stage Stage, detail string)
	DisplaySummary(ctx context.Context, summary Summary) error
	DisplayHooksInstalled(ctx context.Context, hooks []string) error
}

// NewUI returns the interactive TUI for terminals and SimpleUI otherwise.
func NewUI(cmd *cobra.Command, interactive bool) UI {
	if interactive {
		return NewTUI(cmd.OutOrStdout())
	}

	return NewSimpleUI(cmd)
}

// IsTTY reports whether w is an interactive terminal.
func IsTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}

	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
