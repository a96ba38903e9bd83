package domain

import (
	"context"
	"fmt"
	"log/slog"
	"path"

	"golang.org/x/sync/errgroup"

	"gapfill.dev/pkg/gapfill/internal/adapter"
	"gapfill.dev/pkg/gapfill/internal/controller"
	m "gapfill.dev/pkg/gapfill/internal/model"
)

// Trigger says who started a run.
type Trigger string

// Supported triggers.
const (
	TriggerManual Trigger = "manual"
	TriggerGit    Trigger = "git"
)

// ParseTrigger validates a trigger name.
func ParseTrigger(value string) (Trigger, error) {
	switch Trigger(value) {
	case TriggerManual, TriggerGit:
		return Trigger(value), nil
	default:
		return "", fmt.Errorf("invalid trigger %q: must be %q or %q", value, TriggerManual, TriggerGit)
	}
}

// RunArgs contains the arguments of one pipeline run.
type RunArgs struct {
	Trigger Trigger
	DryRun  bool
}

// RunReport collects the output of every stage.
type RunReport struct {
	Changes    m.ChangeSet
	Discovery  m.DiscoveryResult
	Coverage   m.CoverageAnalysisResult
	Generation m.GenerationResult
	Validation m.ValidationOutcome
	DryRun     bool
	ExitCode   int
}

// Workflow runs the five pipeline stages in order.
type Workflow interface {
	// Run returns ExitCode 1 and ErrValidationFailed only when the final
	// validation run fails. Every other problem degrades to an empty stage
	// result and exit code 0.
	Run(ctx context.Context, args RunArgs) (RunReport, error)
}

type workflow struct {
	ChangeDetector
	TestDiscovery
	CoverageAnalyzer
	TestGenerator
	Validator
	reportStore adapter.ReportStore
	ui          controller.UI
	settings    Settings
	logger      *slog.Logger
}

// NewWorkflow creates a Workflow from its stages.
func NewWorkflow(
	detector ChangeDetector,
	discovery TestDiscovery,
	analyzer CoverageAnalyzer,
	generator TestGenerator,
	validator Validator,
	reportStore adapter.ReportStore,
	ui controller.UI,
	settings Settings,
	logger *slog.Logger,
) Workflow {
	return &workflow{
		ChangeDetector:   detector,
		TestDiscovery:    discovery,
		CoverageAnalyzer: analyzer,
		TestGenerator:    generator,
		Validator:        validator,
		reportStore:      reportStore,
		ui:               ui,
		settings:         settings,
		logger:           logger,
	}
}

func (w *workflow) Run(ctx context.Context, args RunArgs) (RunReport, error) {
	report := RunReport{DryRun: args.DryRun}

	w.logger.Info("Starting run", "trigger", args.Trigger, "dry_run", args.DryRun)

	if err := w.ui.Start(ctx); err != nil {
		return report, fmt.Errorf("start ui: %w", err)
	}
	defer w.ui.Close(ctx)

	if err := w.analyze(ctx, &report); err != nil {
		return report, err
	}

	if args.DryRun {
		w.logger.Info("Dry run complete", "gaps", len(report.Coverage.Gaps))
		return report, w.display(ctx, report)
	}

	w.ui.StageStarted(ctx, controller.StageGeneration)
	report.Generation = w.Generate(ctx, report.Coverage, report.Discovery)
	w.ui.StageFinished(ctx, controller.StageGeneration, fmt.Sprintf("%d test(s) written", len(report.Generation.Tests)))

	w.ui.StageStarted(ctx, controller.StageValidation)
	report.Validation = w.Validate(ctx, &report.Generation)
	w.ui.StageFinished(ctx, controller.StageValidation, validationDetail(report.Validation))

	if err := w.display(ctx, report); err != nil {
		return report, err
	}

	if !report.Validation.Success {
		w.logger.Error("Validation failed", "attempts", report.Validation.Attempts)
		report.ExitCode = 1

		return report, ErrValidationFailed
	}

	w.logger.Info("Run complete", "generated", len(report.Generation.Tests))

	return report, nil
}

// analyze runs test discovery alongside change detection and coverage
// analysis, then records the gap summary.
func (w *workflow) analyze(ctx context.Context, report *RunReport) error {
	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		w.ui.StageStarted(groupCtx, controller.StageChanges)
		report.Changes = w.Detect(groupCtx)
		w.ui.StageFinished(groupCtx, controller.StageChanges,
			fmt.Sprintf("%d file(s), %d symbol(s)", len(report.Changes.ChangedFiles), len(report.Changes.ChangedSymbols)))

		w.ui.StageStarted(groupCtx, controller.StageCoverage)
		report.Coverage = w.Analyze(groupCtx, report.Changes)
		w.ui.StageFinished(groupCtx, controller.StageCoverage, fmt.Sprintf("%d gap(s)", len(report.Coverage.Gaps)))

		return groupCtx.Err()
	})

	group.Go(func() error {
		w.ui.StageStarted(groupCtx, controller.StageDiscovery)
		report.Discovery = w.DiscoverTests(groupCtx)
		w.ui.StageFinished(groupCtx, controller.StageDiscovery,
			fmt.Sprintf("%d test file(s)", len(report.Discovery.TestsByFile)))

		return groupCtx.Err()
	})

	if err := group.Wait(); err != nil {
		return fmt.Errorf("analysis interrupted: %w", err)
	}

	summaryPath := m.Path(path.Join(string(w.settings.reportDir()), gapSummaryName))
	if err := w.reportStore.SaveGapSummary(summaryPath, report.Coverage); err != nil {
		w.logger.Warn("Failed to save gap summary", "path", summaryPath, "error", err)
	}

	return nil
}

func (w *workflow) display(ctx context.Context, report RunReport) error {
	summary := controller.Summary{
		ChangedFiles:   report.Changes.ChangedFiles,
		ChangedSymbols: len(report.Changes.ChangedSymbols),
		Gaps:           report.Coverage.Gaps,
		ReportPath:     report.Coverage.ReportPath,
		Generated:      report.Generation.Tests,
		Validation:     report.Validation,
		DryRun:         report.DryRun,
	}

	if err := w.ui.DisplaySummary(ctx, summary); err != nil {
		return fmt.Errorf("display summary: %w", err)
	}

	return nil
}

func validationDetail(outcome m.ValidationOutcome) string {
	switch {
	case outcome.Skipped:
		return "skipped"
	case outcome.Success:
		return fmt.Sprintf("passed (attempt %d)", outcome.Attempts)
	default:
		return fmt.Sprintf("failed (attempt %d)", outcome.Attempts)
	}
}
