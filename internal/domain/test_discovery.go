package domain

import (
	"context"
	"fmt"
	"go/token"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"gapfill.dev/pkg/gapfill/internal/adapter"
	m "gapfill.dev/pkg/gapfill/internal/model"
)

// TestDiscovery finds existing tests and maps source files to their test files.
type TestDiscovery interface {
	// DiscoverTests scans the test root for *_test.go files and lists their
	// test functions. Unparseable files are skipped.
	DiscoverTests(ctx context.Context) m.DiscoveryResult

	// MapSourceToTestFile returns the test file path for a source file,
	// mirroring its location below the source root inside the test root.
	MapSourceToTestFile(source m.Path) m.Path
}

type testDiscovery struct {
	adapter.GoFileAdapter
	fsAdapter adapter.SourceFSAdapter
	settings  Settings
	logger    *slog.Logger
}

// NewTestDiscovery constructs a TestDiscovery.
func NewTestDiscovery(
	goFileAdapter adapter.GoFileAdapter,
	fsAdapter adapter.SourceFSAdapter,
	settings Settings,
	logger *slog.Logger,
) TestDiscovery {
	return &testDiscovery{
		GoFileAdapter: goFileAdapter,
		fsAdapter:     fsAdapter,
		settings:      settings,
		logger:        logger,
	}
}

func (td *testDiscovery) DiscoverTests(ctx context.Context) m.DiscoveryResult {
	result := m.DiscoveryResult{TestsByFile: map[m.Path][]m.TestCase{}}

	files, err := td.testFiles()
	if err != nil {
		td.logger.Warn("Failed to scan test root", "root", td.settings.testRoot(), "error", err)
		return result
	}

	var (
		mu    sync.Mutex
		group errgroup.Group
	)

	if td.settings.Workers > 0 {
		group.SetLimit(td.settings.Workers)
	}

	for _, file := range files {
		group.Go(func() error {
			cases, err := td.parseTestFile(ctx, file)
			if err != nil {
				td.logger.Warn("Skipping unparseable test file", "file", file, "error", err)
				return nil
			}

			if len(cases) == 0 {
				return nil
			}

			mu.Lock()
			result.TestsByFile[file] = cases
			mu.Unlock()

			return nil
		})
	}

	_ = group.Wait()

	td.logger.Info("Discovered tests", "files", len(result.TestsByFile))

	return result
}

func (td *testDiscovery) testFiles() ([]m.Path, error) {
	root := td.settings.testRoot()
	if !td.fsAdapter.Exists(root) {
		return nil, nil
	}

	reportDir := td.settings.reportDir()

	var files []m.Path

	err := td.fsAdapter.Walk(root, func(p m.Path, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		p = cleanRoot(p)

		if info.IsDir() {
			if p != root && skipDir(p, reportDir, td.settings.Exclude) {
				return filepath.SkipDir
			}

			return nil
		}

		if isGoTest(p) && !td.settings.Exclude.Excluded(p) {
			files = append(files, p)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}

	return files, nil
}

func skipDir(dir, reportDir m.Path, exclude *adapter.PathFilter) bool {
	name := path.Base(string(dir))

	return strings.HasPrefix(name, ".") ||
		strings.HasPrefix(name, "_") ||
		name == "vendor" ||
		name == "testdata" ||
		dir == reportDir ||
		exclude.Excluded(dir)
}

func (td *testDiscovery) parseTestFile(ctx context.Context, file m.Path) ([]m.TestCase, error) {
	content, err := td.fsAdapter.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", file, err)
	}

	fset := token.NewFileSet()

	parsed, err := td.Parse(ctx, fset, string(file), content)
	if err != nil {
		return nil, &ParseError{Path: file, Err: err}
	}

	return td.ExtractTestCases(parsed, file), nil
}

func (td *testDiscovery) MapSourceToTestFile(source m.Path) m.Path {
	rel := relativeTo(source, td.settings.sourceRoot())
	dir, base := path.Split(string(rel))
	testName := strings.TrimSuffix(base, ".go") + "_test.go"

	return m.Path(path.Join(string(td.settings.testRoot()), dir, testName))
}
