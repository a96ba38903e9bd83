package domain

import (
	"context"
	"log/slog"
	"path"
	"path/filepath"

	"gapfill.dev/pkg/gapfill/internal/adapter"
	m "gapfill.dev/pkg/gapfill/internal/model"
)

const (
	coverProfileName   = "coverage.out"
	coverageReportName = "coverage.json"
	gapSummaryName     = "gaps.yaml"
)

// CoverageAnalyzer runs the test suite under coverage and reports which
// changed symbols contain uncovered lines.
type CoverageAnalyzer interface {
	// Analyze never fails: when coverage cannot be produced it returns an
	// empty result and logs the reason.
	Analyze(ctx context.Context, changes m.ChangeSet) m.CoverageAnalysisResult

	// FindGaps intersects a coverage report with the changed files.
	FindGaps(ctx context.Context, report m.CoverageReport, changes m.ChangeSet) []m.CoverageGap
}

type coverageAnalyzer struct {
	testRunner  adapter.TestRunnerAdapter
	reportStore adapter.ReportStore
	fsAdapter   adapter.SourceFSAdapter
	indexer     SymbolIndexer
	settings    Settings
	logger      *slog.Logger
}

// NewCoverageAnalyzer constructs a CoverageAnalyzer.
func NewCoverageAnalyzer(
	testRunner adapter.TestRunnerAdapter,
	reportStore adapter.ReportStore,
	fsAdapter adapter.SourceFSAdapter,
	indexer SymbolIndexer,
	settings Settings,
	logger *slog.Logger,
) CoverageAnalyzer {
	return &coverageAnalyzer{
		testRunner:  testRunner,
		reportStore: reportStore,
		fsAdapter:   fsAdapter,
		indexer:     indexer,
		settings:    settings,
		logger:      logger,
	}
}

func (ca *coverageAnalyzer) Analyze(ctx context.Context, changes m.ChangeSet) m.CoverageAnalysisResult {
	reportDir := ca.settings.reportDir()
	profilePath := m.Path(path.Join(string(reportDir), coverProfileName))
	reportPath := m.Path(path.Join(string(reportDir), coverageReportName))

	if err := ca.fsAdapter.MkdirAll(reportDir); err != nil {
		ca.logger.Warn("Failed to create report directory", "dir", reportDir, "error", err)
		return m.CoverageAnalysisResult{}
	}

	profileArg := filepath.Join(ca.settings.WorkDir, filepath.FromSlash(string(profilePath)))

	if _, err := ca.testRunner.RunGoTestCoverage(ctx, ca.settings.WorkDir, profileArg); err != nil {
		if adapter.IsUnavailable(err) {
			ca.logger.Warn("Go toolchain unavailable, skipping coverage", "error", err)
			return m.CoverageAnalysisResult{}
		}

		ca.logger.Warn("Coverage run failed, skipping analysis", "error", err)

		return m.CoverageAnalysisResult{}
	}

	if !ca.fsAdapter.Exists(profilePath) {
		ca.logger.Warn("Coverage run produced no profile", "profile", profilePath)
		return m.CoverageAnalysisResult{}
	}

	modulePath, err := ca.reportStore.ModulePath()
	if err != nil {
		ca.logger.Warn("Failed to read module path, profile paths stay import paths", "error", err)
	}

	report, err := ca.reportStore.ConvertProfile(profilePath, modulePath)
	if err != nil {
		ca.logger.Warn("Failed to convert cover profile", "error", err)
		return m.CoverageAnalysisResult{}
	}

	if err := ca.reportStore.SaveCoverageReport(reportPath, report); err != nil {
		ca.logger.Warn("Failed to save coverage report", "error", err)
		return m.CoverageAnalysisResult{}
	}

	loaded, err := ca.reportStore.LoadCoverageReport(reportPath)
	if err != nil {
		ca.logger.Warn("Failed to load coverage report", "error", err)
		return m.CoverageAnalysisResult{}
	}

	gaps := ca.FindGaps(ctx, loaded, changes)
	ca.checkThreshold(loaded, changes)

	ca.logger.Info("Analyzed coverage", "report", reportPath, "gaps", len(gaps))

	return m.CoverageAnalysisResult{Gaps: gaps, ReportPath: reportPath}
}

func (ca *coverageAnalyzer) FindGaps(ctx context.Context, report m.CoverageReport, changes m.ChangeSet) []m.CoverageGap {
	var gaps []m.CoverageGap

	for _, file := range changes.ChangedFiles {
		coverage, ok := report.Files[file]
		if !ok || len(coverage.MissingLines) == 0 {
			continue
		}

		symbols, err := ca.indexer.IndexFile(ctx, file)
		if err != nil {
			ca.logger.Warn("Failed to index file for coverage", "file", file, "error", err)
			continue
		}

		missing := uncoveredSymbols(symbols, coverage.MissingLines)
		if len(missing) == 0 {
			continue
		}

		gaps = append(gaps, m.CoverageGap{File: file, MissingSymbols: missing})
	}

	return gaps
}

// uncoveredSymbols names every symbol whose line range holds a missing line,
// in source order and without duplicates. A package-level type also counts
// as uncovered when one of its methods does, since a type declaration holds
// no statements of its own.
func uncoveredSymbols(symbols []m.Symbol, missingLines []int) []string {
	uncovered := make([]bool, len(symbols))
	receivers := make(map[string]struct{})

	for i, symbol := range symbols {
		for _, line := range missingLines {
			if symbol.Contains(line) {
				uncovered[i] = true
				break
			}
		}

		if uncovered[i] && symbol.Receiver != "" {
			receivers[symbol.Receiver] = struct{}{}
		}
	}

	var (
		names []string
		seen  = make(map[string]struct{})
	)

	for i, symbol := range symbols {
		if _, ok := seen[symbol.Name]; ok {
			continue
		}

		if !uncovered[i] && symbol.Kind == m.SymbolType && !symbol.Nested {
			_, uncovered[i] = receivers[symbol.Name]
		}

		if uncovered[i] {
			seen[symbol.Name] = struct{}{}
			names = append(names, symbol.Name)
		}
	}

	return names
}

// checkThreshold logs a warning when the changed files fall below the
// configured coverage percentage. It never affects the outcome.
func (ca *coverageAnalyzer) checkThreshold(report m.CoverageReport, changes m.ChangeSet) {
	if ca.settings.CoverageThreshold <= 0 {
		return
	}

	var executed, total int

	for _, file := range changes.ChangedFiles {
		coverage, ok := report.Files[file]
		if !ok {
			continue
		}

		executed += len(coverage.ExecutedLines)
		total += len(coverage.ExecutedLines) + len(coverage.MissingLines)
	}

	if total == 0 {
		return
	}

	percent := float64(executed) * 100 / float64(total)
	if percent < ca.settings.CoverageThreshold {
		ca.logger.Warn("Changed code coverage below threshold",
			"coverage", percent, "threshold", ca.settings.CoverageThreshold)
	}
}
