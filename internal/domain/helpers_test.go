package domain

import (
	"io"
	"log/slog"
	"path"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"gapfill.dev/pkg/gapfill/internal/adapter"
	"gapfill.dev/pkg/gapfill/internal/adapter/mocks"
	m "gapfill.dev/pkg/gapfill/internal/model"
)

const projectDir = "/repo"

const calcSource = `package calc

// Add returns the sum of a and b.
func Add(a, b int) int {
	return a + b
}

func addOne(n int) int {
	return n + 1
}

// Widget renders a label.
type Widget struct {
	Label string
}

func (w *Widget) Render() string {
	return w.Label
}
`

// calcProfile covers Add and leaves addOne and Widget.Render unexecuted.
const calcProfile = `mode: set
example.com/calc/calc.go:4.24,6.2 1 1
example.com/calc/calc.go:8.24,10.2 1 0
example.com/calc/calc.go:17.34,19.2 1 0
`

const addOneDiff = `diff --git a/calc.go b/calc.go
index 1111111..2222222 100644
--- a/calc.go
+++ b/calc.go
@@ -7,0 +8,4 @@ func Add(a, b int) int {
+func addOne(n int) int {
+	return n + 1
+}
+
`

// project is an in-memory module rooted at /repo with a scripted command runner.
type project struct {
	mem      afero.Fs
	fs       adapter.SourceFSAdapter
	runner   *mocks.FakeCommandRunner
	settings Settings
}

func newProject(t *testing.T, files map[string]string) *project {
	t.Helper()

	mem := afero.NewMemMapFs()
	require.NoError(t, mem.MkdirAll(projectDir, 0o755))

	for name, content := range files {
		require.NoError(t, afero.WriteFile(mem, path.Join(projectDir, name), []byte(content), 0o644))
	}

	return &project{
		mem:    mem,
		fs:     adapter.NewSourceFSAdapter(afero.NewBasePathFs(mem, projectDir)),
		runner: mocks.NewFakeCommandRunner(),
		settings: Settings{
			WorkDir:    projectDir,
			SourceRoot: ".",
			Workers:    2,
		},
	}
}

func newCalcProject(t *testing.T) *project {
	t.Helper()

	return newProject(t, map[string]string{
		"go.mod":  "module example.com/calc\n\ngo 1.25\n",
		"calc.go": calcSource,
	})
}

func (p *project) read(t *testing.T, name string) string {
	t.Helper()

	content, err := afero.ReadFile(p.mem, path.Join(projectDir, name))
	require.NoError(t, err)

	return string(content)
}

func (p *project) exists(name string) bool {
	ok, _ := afero.Exists(p.mem, path.Join(projectDir, name))
	return ok
}

// writesProfile scripts a coverage run that leaves content as the cover profile.
func (p *project) writesProfile(content string) mocks.Response {
	return mocks.Response{
		Result: adapter.CommandResult{Stdout: "ok  \texample.com/calc\n"},
		Effect: func(mocks.Call) {
			_ = afero.WriteFile(p.mem, path.Join(projectDir, ".gapfill", coverProfileName), []byte(content), 0o644)
		},
	}
}

func (p *project) goFile() adapter.GoFileAdapter {
	return adapter.NewLocalGoFileAdapter()
}

func (p *project) indexer() SymbolIndexer {
	return NewSymbolIndexer(p.goFile(), p.fs)
}

func (p *project) discovery() TestDiscovery {
	return NewTestDiscovery(p.goFile(), p.fs, p.settings, discardLogger())
}

func (p *project) generator() TestGenerator {
	reportStore := adapter.NewReportStore(p.fs)

	return NewTestGenerator(p.goFile(), p.fs, p.discovery(), NewSourceModuleLoader(reportStore), discardLogger())
}

func (p *project) validator() Validator {
	return NewValidator(p.goFile(), p.fs, adapter.NewLocalTestRunnerAdapter(p.runner), p.settings, discardLogger())
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func symbolNames(symbols []m.Symbol) []string {
	names := make([]string, 0, len(symbols))
	for _, symbol := range symbols {
		names = append(names, symbol.Name)
	}

	return names
}

// files adds files to the project.
func (p *project) files(t *testing.T, files map[string]string) {
	t.Helper()

	for name, content := range files {
		require.NoError(t, afero.WriteFile(p.mem, path.Join(projectDir, name), []byte(content), 0o644))
	}
}
