package adapter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"

	"golang.org/x/mod/modfile"
	"golang.org/x/tools/cover"
	"gopkg.in/yaml.v3"

	m "gapfill.dev/pkg/gapfill/internal/model"
)

// ReportStore converts, persists and loads coverage reports.
type ReportStore interface {
	// ConvertProfile reads a Go cover profile and turns it into a report keyed
	// by project-relative paths.
	ConvertProfile(profilePath m.Path, modulePath string) (m.CoverageReport, error)

	// SaveCoverageReport writes the report as JSON.
	SaveCoverageReport(path m.Path, report m.CoverageReport) error

	// LoadCoverageReport reads a JSON report.
	LoadCoverageReport(path m.Path) (m.CoverageReport, error)

	// SaveGapSummary writes the detected gaps as YAML.
	SaveGapSummary(path m.Path, result m.CoverageAnalysisResult) error

	// ModulePath reads the module path declared in go.mod at the project root.
	ModulePath() (string, error)
}

type reportStore struct {
	fsAdapter SourceFSAdapter
}

// NewReportStore constructs a ReportStore that reads and writes through fsAdapter.
func NewReportStore(fsAdapter SourceFSAdapter) ReportStore {
	return &reportStore{fsAdapter: fsAdapter}
}

func (s *reportStore) ConvertProfile(profilePath m.Path, modulePath string) (m.CoverageReport, error) {
	content, err := s.fsAdapter.ReadFile(profilePath)
	if err != nil {
		return m.CoverageReport{}, fmt.Errorf("failed to read cover profile: %w", err)
	}

	profiles, err := cover.ParseProfilesFromReader(bytes.NewReader(content))
	if err != nil {
		return m.CoverageReport{}, fmt.Errorf("failed to parse cover profile: %w", err)
	}

	report := m.CoverageReport{Files: make(map[m.Path]m.FileCoverage, len(profiles))}

	for _, profile := range profiles {
		report.Files[relativeProfilePath(profile.FileName, modulePath)] = lineCoverage(profile.Blocks)
	}

	return report, nil
}

func relativeProfilePath(fileName, modulePath string) m.Path {
	if modulePath != "" {
		if rel, ok := strings.CutPrefix(fileName, modulePath+"/"); ok {
			return m.Path(rel)
		}
	}

	return m.Path(fileName)
}

// lineCoverage flattens profile blocks into line sets. A line is missing only
// when no block with hits touches it.
func lineCoverage(blocks []cover.ProfileBlock) m.FileCoverage {
	executed := make(map[int]struct{})
	missing := make(map[int]struct{})

	for _, block := range blocks {
		for line := block.StartLine; line <= block.EndLine; line++ {
			if block.Count > 0 {
				executed[line] = struct{}{}
			} else {
				missing[line] = struct{}{}
			}
		}
	}

	for line := range executed {
		delete(missing, line)
	}

	return m.FileCoverage{
		MissingLines:  slices.Sorted(maps.Keys(missing)),
		ExecutedLines: slices.Sorted(maps.Keys(executed)),
	}
}

func (s *reportStore) SaveCoverageReport(path m.Path, report m.CoverageReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode coverage report: %w", err)
	}

	if err := s.fsAdapter.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to save coverage report: %w", err)
	}

	return nil
}

func (s *reportStore) LoadCoverageReport(path m.Path) (m.CoverageReport, error) {
	content, err := s.fsAdapter.ReadFile(path)
	if err != nil {
		return m.CoverageReport{}, fmt.Errorf("failed to read coverage report: %w", err)
	}

	var report m.CoverageReport
	if err := json.Unmarshal(content, &report); err != nil {
		return m.CoverageReport{}, fmt.Errorf("failed to decode coverage report: %w", err)
	}

	if report.Files == nil {
		report.Files = map[m.Path]m.FileCoverage{}
	}

	return report, nil
}

type gapSummary struct {
	Report string          `yaml:"report,omitempty"`
	Gaps   []m.CoverageGap `yaml:"gaps"`
}

func (s *reportStore) SaveGapSummary(path m.Path, result m.CoverageAnalysisResult) error {
	summary := gapSummary{
		Report: string(result.ReportPath),
		Gaps:   result.Gaps,
	}
	if summary.Gaps == nil {
		summary.Gaps = []m.CoverageGap{}
	}

	data, err := yaml.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to encode gap summary: %w", err)
	}

	if err := s.fsAdapter.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to save gap summary: %w", err)
	}

	return nil
}

func (s *reportStore) ModulePath() (string, error) {
	content, err := s.fsAdapter.ReadFile("go.mod")
	if err != nil {
		return "", fmt.Errorf("failed to read go.mod: %w", err)
	}

	modulePath := modfile.ModulePath(content)
	if modulePath == "" {
		return "", fmt.Errorf("go.mod does not declare a module path")
	}

	return modulePath, nil
}
