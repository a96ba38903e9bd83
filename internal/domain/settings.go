// Package domain contains the gapfill pipeline: change detection, symbol
// indexing, test discovery, coverage analysis, test generation and validation.
package domain

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"gapfill.dev/pkg/gapfill/internal/adapter"
	m "gapfill.dev/pkg/gapfill/internal/model"
)

// ErrValidationFailed is returned to the CLI when the final validation run fails.
var ErrValidationFailed = errors.New("test validation failed")

// ParseError reports a source or test file that is not valid Go.
type ParseError struct {
	Path m.Path
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Settings describes the project layout shared by the pipeline components.
type Settings struct {
	// WorkDir is the absolute project root; git and go run there.
	WorkDir string
	// SourceRoot restricts change detection to a subtree.
	SourceRoot m.Path
	// TestRoot is scanned by test discovery. Empty means SourceRoot.
	TestRoot m.Path
	// ReportDir receives the cover profile, the JSON report and the gap summary.
	ReportDir m.Path
	// Exclude filters out configured folders.
	Exclude *adapter.PathFilter
	// CoverageThreshold is an advisory percentage for changed code.
	CoverageThreshold float64
	// Workers bounds per-file parallelism. Zero means unbounded.
	Workers int
}

func (s Settings) sourceRoot() m.Path {
	return cleanRoot(s.SourceRoot)
}

func (s Settings) testRoot() m.Path {
	if s.TestRoot == "" {
		return s.sourceRoot()
	}

	return cleanRoot(s.TestRoot)
}

func (s Settings) reportDir() m.Path {
	if s.ReportDir == "" {
		return ".gapfill"
	}

	return cleanRoot(s.ReportDir)
}

func cleanRoot(root m.Path) m.Path {
	cleaned := path.Clean(strings.TrimPrefix(string(root), "./"))
	if cleaned == "" || cleaned == "/" {
		return "."
	}

	return m.Path(cleaned)
}

// under reports whether p lies inside root.
func under(p, root m.Path) bool {
	if root == "." {
		return !strings.HasPrefix(string(p), "../")
	}

	return p == root || strings.HasPrefix(string(p), string(root)+"/")
}

// relativeTo strips root from p.
func relativeTo(p, root m.Path) m.Path {
	if root == "." {
		return p
	}

	return m.Path(strings.TrimPrefix(string(p), string(root)+"/"))
}

func isGoSource(p m.Path) bool {
	return strings.HasSuffix(string(p), ".go") && !isGoTest(p)
}

func isGoTest(p m.Path) bool {
	return strings.HasSuffix(string(p), "_test.go")
}
