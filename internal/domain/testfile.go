package domain

import (
	"context"
	"fmt"
	"go/ast"
	"go/token"
	"slices"
	"strconv"
	"strings"

	"gapfill.dev/pkg/gapfill/internal/adapter"
	m "gapfill.dev/pkg/gapfill/internal/model"
)

// generatedHeader opens every test file created by the generator.
const generatedHeader = "// Baseline tests generated by gapfill."

// testFile is a line-oriented view of a test file being edited. Positions are
// always recomputed from a fresh parse, so edits never use stale offsets.
type testFile struct {
	goFile adapter.GoFileAdapter
	path   m.Path
	lines  []string
	exists bool
}

func loadTestFile(goFile adapter.GoFileAdapter, fsAdapter adapter.SourceFSAdapter, path m.Path) (*testFile, error) {
	tf := &testFile{goFile: goFile, path: path}

	if !fsAdapter.Exists(path) {
		return tf, nil
	}

	content, err := fsAdapter.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	tf.lines = strings.Split(strings.TrimSuffix(string(content), "\n"), "\n")
	tf.exists = true

	return tf, nil
}

// initialize fills a missing file with the generated header.
func (tf *testFile) initialize(packageName string) {
	tf.lines = []string{
		generatedHeader,
		"",
		"package " + packageName,
		"",
		`import "testing"`,
	}
}

func (tf *testFile) bytes() []byte {
	return []byte(strings.Join(tf.lines, "\n") + "\n")
}

func (tf *testFile) parse(ctx context.Context) (*token.FileSet, *ast.File, error) {
	fset := token.NewFileSet()

	file, err := tf.goFile.Parse(ctx, fset, string(tf.path), tf.bytes())
	if err != nil {
		return nil, nil, &ParseError{Path: tf.path, Err: err}
	}

	return fset, file, nil
}

func (tf *testFile) packageName(ctx context.Context) (string, error) {
	_, file, err := tf.parse(ctx)
	if err != nil {
		return "", err
	}

	return file.Name.Name, nil
}

// declaredFuncs returns the names of every top-level function in the file.
func (tf *testFile) declaredFuncs(ctx context.Context) (map[string]struct{}, error) {
	_, file, err := tf.parse(ctx)
	if err != nil {
		return nil, err
	}

	names := make(map[string]struct{})

	for _, decl := range file.Decls {
		if fn, ok := decl.(*ast.FuncDecl); ok && fn.Recv == nil {
			names[fn.Name.Name] = struct{}{}
		}
	}

	return names, nil
}

// ensureImport makes importPath available and returns the name it is bound
// to. implicit is the name the path binds without an alias. An existing
// import of the same path is reused; otherwise a spec is inserted after the
// last import, or after the package clause. A name already bound to another
// path is replaced by a fresh alias.
func (tf *testFile) ensureImport(ctx context.Context, alias, importPath, implicit string) (string, error) {
	fset, file, err := tf.parse(ctx)
	if err != nil {
		return "", err
	}

	bound := make(map[string]struct{}, len(file.Imports))

	for _, spec := range file.Imports {
		existing, err := strconv.Unquote(spec.Path.Value)
		if err != nil {
			continue
		}

		if existing != importPath {
			name := guessPackageName(existing)
			if spec.Name != nil {
				name = spec.Name.Name
			}

			bound[name] = struct{}{}

			continue
		}

		if spec.Name == nil {
			return implicit, nil
		}

		if spec.Name.Name != "_" && spec.Name.Name != "." {
			return spec.Name.Name, nil
		}
	}

	if alias == "" {
		alias = implicit
	}

	if _, taken := bound[alias]; taken {
		alias = freshAlias(importPath, bound)
	}

	importSpec := strconv.Quote(importPath)
	if alias != implicit {
		importSpec = alias + " " + importSpec
	}

	var last *ast.GenDecl

	for _, decl := range file.Decls {
		if gd, ok := decl.(*ast.GenDecl); ok && gd.Tok == token.IMPORT {
			last = gd
		}
	}

	switch {
	case last == nil:
		at := fset.Position(file.Name.End()).Line
		tf.insert(at, "", "import "+importSpec)
	case last.Lparen.IsValid() && fset.Position(last.Lparen).Line != fset.Position(last.Rparen).Line:
		at := fset.Position(last.Rparen).Line - 1
		tf.insert(at, "\t"+importSpec)
	default:
		at := fset.Position(last.End()).Line
		tf.insert(at, "import "+importSpec)
	}

	return alias, nil
}

// freshAlias derives an import name from importPath that is not in taken.
func freshAlias(importPath string, taken map[string]struct{}) string {
	base := importAlias(importPath)
	alias := base

	for i := 2; ; i++ {
		if _, ok := taken[alias]; !ok {
			return alias
		}

		alias = base + strconv.Itoa(i)
	}
}

// insert places lines before the zero-based index at.
func (tf *testFile) insert(at int, lines ...string) {
	tf.lines = slices.Insert(tf.lines, at, lines...)
}

// appendBlocks adds rendered declarations at the end of the file, each
// preceded by a blank line.
func (tf *testFile) appendBlocks(blocks []string) {
	for len(tf.lines) > 0 && strings.TrimSpace(tf.lines[len(tf.lines)-1]) == "" {
		tf.lines = tf.lines[:len(tf.lines)-1]
	}

	for _, block := range blocks {
		tf.lines = append(tf.lines, "")
		tf.lines = append(tf.lines, strings.Split(block, "\n")...)
	}
}

// replaceFunc swaps the top-level function name, including its doc comment,
// for block. It reports false when the function is not declared.
func (tf *testFile) replaceFunc(ctx context.Context, name, block string) (bool, error) {
	fset, file, err := tf.parse(ctx)
	if err != nil {
		return false, err
	}

	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Recv != nil || fn.Name.Name != name {
			continue
		}

		start := fn.Pos()
		if fn.Doc != nil {
			start = fn.Doc.Pos()
		}

		first := fset.Position(start).Line - 1
		last := fset.Position(fn.End()).Line

		tf.lines = slices.Replace(tf.lines, first, last, strings.Split(block, "\n")...)

		return true, nil
	}

	return false, nil
}
