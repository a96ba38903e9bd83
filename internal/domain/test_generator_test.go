package domain

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "gapfill.dev/pkg/gapfill/internal/model"
)

func gapsFor(file m.Path, symbols ...string) m.CoverageAnalysisResult {
	return m.CoverageAnalysisResult{Gaps: []m.CoverageGap{{File: file, MissingSymbols: symbols}}}
}

var noTests = m.DiscoveryResult{TestsByFile: map[m.Path][]m.TestCase{}}

func TestTestGenerator_UncoveredFunction(t *testing.T) {
	p := newCalcProject(t)

	result := p.generator().Generate(context.Background(), gapsFor("calc.go", "addOne"), noTests)

	require.Len(t, result.Tests, 1)
	assert.Equal(t, "Test_addOne", result.Tests[0].Name)
	assert.Equal(t, m.Path("calc_test.go"), result.Tests[0].File)
	assert.Equal(t, "addOne", result.Tests[0].Symbol)
	assert.Equal(t, m.StatusPending, result.Tests[0].Status)

	assert.Equal(t, `// Baseline tests generated by gapfill.

package calc

import "testing"

// Test_addOne is a generated baseline test for addOne.
func Test_addOne(t *testing.T) {
	// Arrange

	// Act
	got := addOne(0)

	// Assert
	if any(got) == nil {
		t.Fatal("addOne returned nil")
	}
}
`, p.read(t, "calc_test.go"))
}

func TestTestGenerator_UncoveredType(t *testing.T) {
	p := newCalcProject(t)

	result := p.generator().Generate(context.Background(), gapsFor("calc.go", "Widget"), noTests)

	require.Len(t, result.Tests, 1)
	assert.Equal(t, "TestWidget", result.Tests[0].Name)

	content := p.read(t, "calc_test.go")
	assert.Contains(t, content, "func TestWidget(t *testing.T) {")
	assert.Contains(t, content, "\tinstance := new(Widget)\n")
	assert.Contains(t, content, "\tif instance == nil {\n")
}

func TestTestGenerator_Method(t *testing.T) {
	p := newCalcProject(t)

	result := p.generator().Generate(context.Background(), gapsFor("calc.go", "Widget.Render"), noTests)

	require.Len(t, result.Tests, 1)
	assert.Equal(t, "TestWidget_Render", result.Tests[0].Name)
	assert.Contains(t, p.read(t, "calc_test.go"), "\tvar receiver Widget\n")
}

func TestTestGenerator_Idempotent(t *testing.T) {
	p := newCalcProject(t)
	gaps := gapsFor("calc.go", "addOne", "Widget")

	first := p.generator().Generate(context.Background(), gaps, noTests)
	require.Len(t, first.Tests, 2)

	content := p.read(t, "calc_test.go")

	second := p.generator().Generate(context.Background(), gaps, noTests)

	assert.Empty(t, second.Tests)
	assert.Equal(t, content, p.read(t, "calc_test.go"))
	assert.Equal(t, 1, strings.Count(content, `import "testing"`))
}

func TestTestGenerator_SkipsDiscoveredTestsInPackage(t *testing.T) {
	p := newCalcProject(t)
	discovery := m.DiscoveryResult{TestsByFile: map[m.Path][]m.TestCase{
		"calc_extra_test.go": {{Name: "Test_addOne", File: "calc_extra_test.go"}},
	}}

	result := p.generator().Generate(context.Background(), gapsFor("calc.go", "addOne"), discovery)

	assert.Empty(t, result.Tests)
	assert.False(t, p.exists("calc_test.go"), "no file is created without tests")
}

func TestTestGenerator_IgnoresTestsOfOtherPackages(t *testing.T) {
	p := newCalcProject(t)
	discovery := m.DiscoveryResult{TestsByFile: map[m.Path][]m.TestCase{
		"other/calc_test.go": {{Name: "Test_addOne", File: "other/calc_test.go"}},
		"calc_test.go":       {{Name: "Suite.Test_addOne", File: "calc_test.go"}},
	}}

	result := p.generator().Generate(context.Background(), gapsFor("calc.go", "addOne"), discovery)

	assert.Len(t, result.Tests, 1)
}

func TestTestGenerator_NameTakenEarlierInRun(t *testing.T) {
	const source = `package runner

type A struct{}

func (A) Run() int { return 1 }

func A_Run() int { return 2 }
`

	p := newProject(t, map[string]string{
		"go.mod":    "module example.com/runner\n",
		"runner.go": source,
	})

	result := p.generator().Generate(context.Background(), gapsFor("runner.go", "A.Run", "A_Run", "A_Run"), noTests)

	require.Len(t, result.Tests, 1)
	assert.Equal(t, "TestA_Run", result.Tests[0].Name)
	assert.Equal(t, "A.Run", result.Tests[0].Symbol)
	assert.Equal(t, 1, strings.Count(p.read(t, "runner_test.go"), "func TestA_Run("))
}

func TestTestGenerator_ExternalTestPackage(t *testing.T) {
	const existing = `package calc_test

import (
	"testing"
)

func TestExisting(t *testing.T) {}
`

	p := newCalcProject(t)
	p.files(t, map[string]string{"calc_test.go": existing})

	result := p.generator().Generate(context.Background(), gapsFor("calc.go", "Add", "addOne"), noTests)

	require.Len(t, result.Tests, 1, "unexported symbols cannot be reached from calc_test")
	assert.Equal(t, "TestAdd", result.Tests[0].Name)

	content := p.read(t, "calc_test.go")
	assert.True(t, strings.HasPrefix(content, `package calc_test

import (
	"testing"
	example_com_calc "example.com/calc"
)

func TestExisting(t *testing.T) {}

// TestAdd is a generated baseline test for Add.
func TestAdd(t *testing.T) {
`), content)
	assert.Contains(t, content, "\tgot := example_com_calc.Add(0, 0)\n")

	again := p.generator().Generate(context.Background(), gapsFor("calc.go", "Add"), noTests)
	assert.Empty(t, again.Tests)
	assert.Equal(t, 1, strings.Count(p.read(t, "calc_test.go"), `"example.com/calc"`))
}

func TestTestGenerator_ParameterTypeImports(t *testing.T) {
	const source = `package clock

import "time"

func Wait(d time.Duration) bool { return d > 0 }
`

	p := newProject(t, map[string]string{
		"go.mod":         "module example.com/clock\n",
		"clock/clock.go": source,
	})

	result := p.generator().Generate(context.Background(), gapsFor("clock/clock.go", "Wait"), noTests)

	require.Len(t, result.Tests, 1)

	content := p.read(t, "clock/clock_test.go")
	assert.Contains(t, content, "package clock\n\nimport \"testing\"\nimport \"time\"\n")
	assert.Contains(t, content, "\tgot := Wait(*new(time.Duration))\n")
}

func TestTestGenerator_ParameterImportNameTaken(t *testing.T) {
	const source = `package calc

import "example.com/calc/log"

func Record(e log.Entry) bool { return true }
`

	const existing = `package calc

import (
	"log"
	"testing"
)

func TestExisting(t *testing.T) { log.Println("existing") }
`

	p := newProject(t, map[string]string{
		"go.mod":       "module example.com/calc\n",
		"calc.go":      source,
		"calc_test.go": existing,
	})

	result := p.generator().Generate(context.Background(), gapsFor("calc.go", "Record"), noTests)

	require.Len(t, result.Tests, 1)

	content := p.read(t, "calc_test.go")
	assert.Contains(t, content, "import (\n\t\"log\"\n\t\"testing\"\n\texample_com_calc_log \"example.com/calc/log\"\n)\n")
	assert.Contains(t, content, "\tgot := Record(*new(example_com_calc_log.Entry))\n")
}

func TestTestGenerator_TestRoot(t *testing.T) {
	p := newCalcProject(t)
	p.settings.TestRoot = "tests"

	result := p.generator().Generate(context.Background(), gapsFor("calc.go", "Add", "addOne", "Widget"), noTests)

	require.Len(t, result.Tests, 2, "unexported symbols cannot be reached from another directory")
	assert.Equal(t, "TestAdd", result.Tests[0].Name)
	assert.Equal(t, "TestWidget", result.Tests[1].Name)
	assert.Equal(t, m.Path("tests/calc_test.go"), result.Tests[0].File)

	content := p.read(t, "tests/calc_test.go")
	assert.True(t, strings.HasPrefix(content, `// Baseline tests generated by gapfill.

package calc_test

import "testing"
import example_com_calc "example.com/calc"

// TestAdd is a generated baseline test for Add.
func TestAdd(t *testing.T) {
`), content)
	assert.Contains(t, content, "\tgot := example_com_calc.Add(0, 0)\n")
	assert.Contains(t, content, "\tinstance := new(example_com_calc.Widget)\n")
	assert.NotContains(t, content, "addOne")
	assert.False(t, p.exists("calc_test.go"))
}

func TestTestGenerator_TestRoot_OnlyUnexported(t *testing.T) {
	p := newCalcProject(t)
	p.settings.TestRoot = "tests"

	result := p.generator().Generate(context.Background(), gapsFor("calc.go", "addOne"), noTests)

	assert.Empty(t, result.Tests)
	assert.False(t, p.exists("tests/calc_test.go"))
}

func TestTestGenerator_IsolatesFailingFiles(t *testing.T) {
	p := newCalcProject(t)
	p.files(t, map[string]string{
		"broken.go":         "package calc\nfunc {",
		"main/main.go":      "package main\n\nfunc Run() int { return 0 }\n",
		"main/main_test.go": "package main_test\n",
	})

	coverage := m.CoverageAnalysisResult{Gaps: []m.CoverageGap{
		{File: "broken.go", MissingSymbols: []string{"anything"}},
		{File: "missing.go", MissingSymbols: []string{"gone"}},
		{File: "main/main.go", MissingSymbols: []string{"Run"}},
		{File: "calc.go", MissingSymbols: []string{"addOne"}},
	}}

	result := p.generator().Generate(context.Background(), coverage, noTests)

	require.Len(t, result.Tests, 1)
	assert.Equal(t, "Test_addOne", result.Tests[0].Name)
	assert.Equal(t, "package main_test\n", p.read(t, "main/main_test.go"))
}

func TestTestGenerator_StaleSymbol(t *testing.T) {
	p := newCalcProject(t)

	result := p.generator().Generate(context.Background(), gapsFor("calc.go", "removed"), noTests)

	assert.Empty(t, result.Tests)
	assert.False(t, p.exists("calc_test.go"))
}
