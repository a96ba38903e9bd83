package domain

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gapfill.dev/pkg/gapfill/internal/adapter"
	"gapfill.dev/pkg/gapfill/internal/adapter/mocks"
	m "gapfill.dev/pkg/gapfill/internal/model"
)

func (p *project) analyzer(logger *slog.Logger) CoverageAnalyzer {
	return NewCoverageAnalyzer(
		adapter.NewLocalTestRunnerAdapter(p.runner),
		adapter.NewReportStore(p.fs),
		p.fs,
		p.indexer(),
		p.settings,
		logger,
	)
}

var calcChanges = m.ChangeSet{ChangedFiles: []m.Path{"calc.go"}}

func TestCoverageAnalyzer_Analyze(t *testing.T) {
	p := newCalcProject(t)
	p.runner.On("go test -covermode=set", p.writesProfile(calcProfile))

	result := p.analyzer(discardLogger()).Analyze(context.Background(), calcChanges)

	assert.Equal(t, []m.CoverageGap{
		{File: "calc.go", MissingSymbols: []string{"addOne", "Widget", "Widget.Render"}},
	}, result.Gaps)
	assert.Equal(t, m.Path(".gapfill/coverage.json"), result.ReportPath)

	calls := p.runner.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t,
		"go test -covermode=set -coverpkg=./... -coverprofile=/repo/.gapfill/coverage.out ./...",
		calls[0].Line())
	assert.Equal(t, projectDir, calls[0].Dir)

	var report m.CoverageReport
	require.NoError(t, json.Unmarshal([]byte(p.read(t, ".gapfill/coverage.json")), &report))
	assert.Equal(t, []int{8, 9, 10, 17, 18, 19}, report.Files["calc.go"].MissingLines)
}

func TestCoverageAnalyzer_Analyze_ChangedFileWithoutCoverage(t *testing.T) {
	p := newCalcProject(t)
	p.runner.On("go test -covermode=set", p.writesProfile(calcProfile))

	changes := m.ChangeSet{ChangedFiles: []m.Path{"gen.go"}}

	result := p.analyzer(discardLogger()).Analyze(context.Background(), changes)

	assert.Empty(t, result.Gaps)
	assert.Equal(t, m.Path(".gapfill/coverage.json"), result.ReportPath)
}

func TestCoverageAnalyzer_Analyze_Degrades(t *testing.T) {
	tests := []struct {
		name  string
		setup func(p *project)
	}{
		{
			name:  "go unavailable",
			setup: func(p *project) { p.runner.Unavailable = true },
		},
		{
			name: "tests fail",
			setup: func(p *project) {
				failing := mocks.Fail("--- FAIL: TestAdd")
				failing.Effect = p.writesProfile(calcProfile).Effect
				p.runner.On("go test -covermode=set", failing)
			},
		},
		{
			name:  "no profile written",
			setup: func(p *project) { p.runner.On("go test -covermode=set", mocks.Succeed("")) },
		},
		{
			name:  "malformed profile",
			setup: func(p *project) { p.runner.On("go test -covermode=set", p.writesProfile("garbage\n")) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newCalcProject(t)
			tt.setup(p)

			result := p.analyzer(discardLogger()).Analyze(context.Background(), calcChanges)

			assert.Empty(t, result.Gaps)
			assert.Empty(t, result.ReportPath)
		})
	}
}

func TestCoverageAnalyzer_Analyze_CustomReportDir(t *testing.T) {
	p := newCalcProject(t)
	p.settings.ReportDir = "build/coverage"
	p.runner.On("go test -covermode=set", mocks.Response{
		Effect: func(call mocks.Call) {
			_ = p.fs.WriteFile("build/coverage/coverage.out", []byte(calcProfile), 0o644)
		},
	})

	result := p.analyzer(discardLogger()).Analyze(context.Background(), calcChanges)

	assert.Equal(t, m.Path("build/coverage/coverage.json"), result.ReportPath)
	assert.Len(t, result.Gaps, 1)
	assert.Contains(t, p.runner.Calls()[0].Line(), "-coverprofile=/repo/build/coverage/coverage.out")
}

func TestCoverageAnalyzer_FindGaps(t *testing.T) {
	p := newCalcProject(t)
	report := m.CoverageReport{Files: map[m.Path]m.FileCoverage{
		"calc.go":    {MissingLines: []int{13}, ExecutedLines: []int{4, 5}},
		"covered.go": {ExecutedLines: []int{3}},
	}}
	changes := m.ChangeSet{ChangedFiles: []m.Path{"calc.go", "covered.go", "absent.go"}}

	gaps := p.analyzer(discardLogger()).FindGaps(context.Background(), report, changes)

	assert.Equal(t, []m.CoverageGap{{File: "calc.go", MissingSymbols: []string{"Widget"}}}, gaps)
}

func TestUncoveredSymbols(t *testing.T) {
	symbols := []m.Symbol{
		{Name: "run", StartLine: 1, EndLine: 10},
		{Name: "config", StartLine: 3, EndLine: 5, Nested: true},
		{Name: "config", StartLine: 12, EndLine: 14},
		{Name: "covered", StartLine: 16, EndLine: 18},
	}

	assert.Equal(t, []string{"run", "config"}, uncoveredSymbols(symbols, []int{4, 13}))
	assert.Empty(t, uncoveredSymbols(symbols, []int{11, 20}))
}

func TestUncoveredSymbols_TypeFollowsItsMethods(t *testing.T) {
	symbols := []m.Symbol{
		{Name: "Widget", Kind: m.SymbolType, StartLine: 1, EndLine: 3},
		{Name: "Gadget", Kind: m.SymbolType, StartLine: 5, EndLine: 7},
		{Name: "Widget", Kind: m.SymbolType, StartLine: 10, EndLine: 10, Nested: true},
		{Name: "Widget.Render", Kind: m.SymbolFunction, Receiver: "Widget", StartLine: 12, EndLine: 14},
		{Name: "Gadget.Spin", Kind: m.SymbolFunction, Receiver: "Gadget", StartLine: 16, EndLine: 18},
	}

	assert.Equal(t, []string{"Widget", "Widget.Render"}, uncoveredSymbols(symbols, []int{13}))
	assert.Empty(t, uncoveredSymbols(symbols, []int{20}))
}

func TestCoverageAnalyzer_ThresholdIsAdvisory(t *testing.T) {
	var logs bytes.Buffer

	p := newCalcProject(t)
	p.settings.CoverageThreshold = 80
	p.runner.On("go test -covermode=set", p.writesProfile(calcProfile))

	logger := slog.New(slog.NewTextHandler(&logs, nil))
	result := p.analyzer(logger).Analyze(context.Background(), calcChanges)

	assert.Len(t, result.Gaps, 1)
	assert.Contains(t, logs.String(), "Changed code coverage below threshold")
}
