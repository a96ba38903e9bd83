package model

// FileCoverage holds the line coverage of one source file.
type FileCoverage struct {
	MissingLines  []int `json:"missing_lines"`
	ExecutedLines []int `json:"executed_lines"`
}

// CoverageReport is the structured coverage report, keyed by project-relative path.
type CoverageReport struct {
	Files map[Path]FileCoverage `json:"files"`
}

// CoverageGap lists the symbols of a changed file that contain uncovered lines.
type CoverageGap struct {
	File           Path     `yaml:"file"`
	MissingSymbols []string `yaml:"missing_symbols"`
}

// CoverageAnalysisResult is the outcome of a coverage analysis.
// ReportPath is empty when no report could be produced.
type CoverageAnalysisResult struct {
	Gaps       []CoverageGap
	ReportPath Path
}

// ValidationOutcome is the result of running the test suite.
type ValidationOutcome struct {
	Success  bool
	Output   string
	Skipped  bool
	Attempts int
}
