package domain

import (
	"context"
	"fmt"
	"go/token"
	"log/slog"
	"path"
	"strings"

	"gapfill.dev/pkg/gapfill/internal/adapter"
	m "gapfill.dev/pkg/gapfill/internal/model"
)

// TestGenerator writes baseline test stubs for uncovered symbols.
type TestGenerator interface {
	// Generate appends one stub per uncovered symbol that has no test yet.
	// Each test file is written once, atomically. Files that fail are
	// logged and contribute no tests.
	Generate(ctx context.Context, coverage m.CoverageAnalysisResult, discovery m.DiscoveryResult) m.GenerationResult
}

type testGenerator struct {
	goFile    adapter.GoFileAdapter
	fsAdapter adapter.SourceFSAdapter
	tests     TestDiscovery
	loader    SourceModuleLoader
	logger    *slog.Logger
}

// NewTestGenerator constructs a TestGenerator.
func NewTestGenerator(
	goFile adapter.GoFileAdapter,
	fsAdapter adapter.SourceFSAdapter,
	tests TestDiscovery,
	loader SourceModuleLoader,
	logger *slog.Logger,
) TestGenerator {
	return &testGenerator{
		goFile:    goFile,
		fsAdapter: fsAdapter,
		tests:     tests,
		loader:    loader,
		logger:    logger,
	}
}

func (tg *testGenerator) Generate(ctx context.Context, coverage m.CoverageAnalysisResult, discovery m.DiscoveryResult) m.GenerationResult {
	taken := takenNamesByDir(discovery)

	var result m.GenerationResult

	for _, gap := range coverage.Gaps {
		tests, err := tg.generateFile(ctx, gap, taken)
		if err != nil {
			tg.logger.Error("Failed to generate tests", "file", gap.File, "error", err)
			continue
		}

		result.Tests = append(result.Tests, tests...)
	}

	tg.logger.Info("Generated tests", "count", len(result.Tests))

	return result
}

// takenNamesByDir indexes discovered top-level test names per package directory.
func takenNamesByDir(discovery m.DiscoveryResult) map[string]map[string]struct{} {
	taken := make(map[string]map[string]struct{})

	for file, cases := range discovery.TestsByFile {
		dir := path.Dir(string(file))

		for _, tc := range cases {
			if strings.Contains(tc.Name, ".") {
				continue
			}

			if taken[dir] == nil {
				taken[dir] = make(map[string]struct{})
			}

			taken[dir][tc.Name] = struct{}{}
		}
	}

	return taken
}

func (tg *testGenerator) generateFile(ctx context.Context, gap m.CoverageGap, taken map[string]map[string]struct{}) ([]m.GeneratedTest, error) {
	content, err := tg.fsAdapter.ReadFile(gap.File)
	if err != nil {
		return nil, fmt.Errorf("failed to read source: %w", err)
	}

	fset := token.NewFileSet()

	source, err := tg.goFile.Parse(ctx, fset, string(gap.File), content)
	if err != nil {
		return nil, &ParseError{Path: gap.File, Err: err}
	}

	testPath := tg.tests.MapSourceToTestFile(gap.File)

	tf, err := loadTestFile(tg.goFile, tg.fsAdapter, testPath)
	if err != nil {
		return nil, err
	}

	if !tf.exists {
		pkg := source.Name.Name
		if !sameDir(gap.File, testPath) {
			pkg += "_test"
		}

		tf.initialize(pkg)
	}

	testPackage, err := tf.packageName(ctx)
	if err != nil {
		return nil, err
	}

	binding, err := tg.loader.Bind(gap.File, testPath, source.Name.Name, testPackage)
	if err != nil {
		return nil, err
	}

	dir := path.Dir(string(testPath))
	if taken[dir] == nil {
		taken[dir] = make(map[string]struct{})
	}

	declared, err := tf.declaredFuncs(ctx)
	if err != nil {
		return nil, err
	}

	builder := newStubBuilder(source, binding)
	wanted := make(map[string]struct{}, len(gap.MissingSymbols))

	for _, name := range gap.MissingSymbols {
		wanted[name] = struct{}{}
	}

	var (
		tests  []m.GeneratedTest
		blocks []string
		seen   = make(map[string]struct{})
	)

	for _, symbol := range tg.goFile.ExtractSymbols(fset, source, gap.File) {
		if _, ok := wanted[symbol.Name]; !ok {
			continue
		}

		seen[symbol.Name] = struct{}{}
		name := TestName(symbol)

		if _, ok := taken[dir][name]; ok {
			tg.logger.Debug("Test already exists", "test", name)
			continue
		}

		if _, ok := declared[name]; ok {
			tg.logger.Debug("Test already declared in file", "test", name, "file", testPath)
			continue
		}

		plan, reason := builder.plan(symbol)
		if reason != "" {
			tg.logger.Debug("Skipping symbol", "symbol", symbol.Name, "reason", reason)
			continue
		}

		if len(tests) == 0 && binding.External() {
			alias, err := tf.ensureImport(ctx, binding.Alias, binding.ImportPath, source.Name.Name)
			if err != nil {
				return nil, err
			}

			binding.Alias = alias
			builder.binding = binding

			if plan, reason = builder.plan(symbol); reason != "" {
				continue
			}
		}

		rename := make(map[string]string, len(plan.imports))

		for pkg, importPath := range plan.imports {
			bound, err := tf.ensureImport(ctx, pkg, importPath, guessPackageName(importPath))
			if err != nil {
				return nil, err
			}

			rename[pkg] = bound
		}

		test := m.GeneratedTest{
			Name:   name,
			File:   testPath,
			Symbol: symbol.Name,
			Body:   builder.body(plan, rename),
			Status: m.StatusPending,
		}

		blocks = append(blocks, renderTest(test))
		tests = append(tests, test)
		taken[dir][name] = struct{}{}
		declared[name] = struct{}{}
	}

	for _, name := range gap.MissingSymbols {
		if _, ok := seen[name]; !ok {
			tg.logger.Debug("Dropping stale symbol", "symbol", name, "file", gap.File)
		}
	}

	if len(tests) == 0 {
		return nil, nil
	}

	if _, err := tf.ensureImport(ctx, "", "testing", "testing"); err != nil {
		return nil, err
	}

	tf.appendBlocks(blocks)

	if err := tg.fsAdapter.WriteFile(testPath, tf.bytes(), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", testPath, err)
	}

	tg.logger.Info("Wrote generated tests", "file", testPath, "count", len(tests))

	return tests, nil
}
