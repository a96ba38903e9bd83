package adapter

import (
	"context"
	"go/ast"
	"go/parser"
	"go/token"
	"strings"
	"unicode"
	"unicode/utf8"

	m "gapfill.dev/pkg/gapfill/internal/model"
)

// GoFileAdapter encapsulates Go-specific parsing so the domain layer can work
// with symbols and test cases instead of syntax trees.
type GoFileAdapter interface {
	// Parse builds an AST using the provided file set and source bytes.
	Parse(ctx context.Context, fileSet *token.FileSet, filename string, src []byte) (*ast.File, error)

	// ExtractSymbols returns the function, method and type declarations of the
	// file in source order, including types declared inside function bodies.
	ExtractSymbols(fileSet *token.FileSet, file *ast.File, path m.Path) []m.Symbol

	// ExtractTestCases returns the test functions and grouped suite tests of a test file.
	ExtractTestCases(file *ast.File, path m.Path) []m.TestCase
}

// LocalGoFileAdapter provides a concrete GoFileAdapter backed by go/parser.
type LocalGoFileAdapter struct{}

// NewLocalGoFileAdapter constructs a LocalGoFileAdapter.
func NewLocalGoFileAdapter() *LocalGoFileAdapter {
	return &LocalGoFileAdapter{}
}

// Parse builds an AST for the provided filename/source pair.
func (a *LocalGoFileAdapter) Parse(ctx context.Context, fileSet *token.FileSet, filename string, src []byte) (*ast.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return parser.ParseFile(fileSet, filename, src, parser.ParseComments)
}

// ExtractSymbols inspects AST declarations and records their line ranges.
func (a *LocalGoFileAdapter) ExtractSymbols(fileSet *token.FileSet, file *ast.File, path m.Path) []m.Symbol {
	var symbols []m.Symbol

	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.GenDecl:
			if d.Tok == token.TYPE {
				symbols = append(symbols, typeSymbols(fileSet, d, path, false)...)
			}

		case *ast.FuncDecl:
			symbols = append(symbols, funcSymbol(fileSet, d, path))

			if d.Body != nil {
				symbols = append(symbols, nestedTypeSymbols(fileSet, d.Body, path)...)
			}
		}
	}

	return symbols
}

func funcSymbol(fileSet *token.FileSet, d *ast.FuncDecl, path m.Path) m.Symbol {
	symbol := m.Symbol{
		Name:      d.Name.Name,
		Kind:      m.SymbolFunction,
		File:      path,
		StartLine: fileSet.Position(d.Pos()).Line,
		EndLine:   fileSet.Position(d.End()).Line,
	}

	if recv := ReceiverTypeName(d.Recv); recv != "" {
		symbol.Receiver = recv
		symbol.Name = recv + "." + d.Name.Name
	}

	return symbol
}

func typeSymbols(fileSet *token.FileSet, d *ast.GenDecl, path m.Path, nested bool) []m.Symbol {
	symbols := make([]m.Symbol, 0, len(d.Specs))

	for _, spec := range d.Specs {
		ts, ok := spec.(*ast.TypeSpec)
		if !ok {
			continue
		}

		start := ts.Pos()
		if !d.Lparen.IsValid() {
			// Single spec: the declaration starts at the type keyword.
			start = d.Pos()
		}

		symbols = append(symbols, m.Symbol{
			Name:      ts.Name.Name,
			Kind:      m.SymbolType,
			File:      path,
			StartLine: fileSet.Position(start).Line,
			EndLine:   fileSet.Position(ts.End()).Line,
			Nested:    nested,
		})
	}

	return symbols
}

func nestedTypeSymbols(fileSet *token.FileSet, body *ast.BlockStmt, path m.Path) []m.Symbol {
	var symbols []m.Symbol

	ast.Inspect(body, func(n ast.Node) bool {
		stmt, ok := n.(*ast.DeclStmt)
		if !ok {
			return true
		}

		if gd, ok := stmt.Decl.(*ast.GenDecl); ok && gd.Tok == token.TYPE {
			symbols = append(symbols, typeSymbols(fileSet, gd, path, true)...)
		}

		return true
	})

	return symbols
}

// ExtractTestCases collects top-level TestXxx functions and TestXxx methods of
// suite types (receiver named *Suite or Test*).
func (a *LocalGoFileAdapter) ExtractTestCases(file *ast.File, path m.Path) []m.TestCase {
	var cases []m.TestCase

	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || !IsTestName(fn.Name.Name) {
			continue
		}

		if fn.Recv == nil {
			cases = append(cases, m.TestCase{Name: fn.Name.Name, File: path})
			continue
		}

		recv := ReceiverTypeName(fn.Recv)
		if isSuiteName(recv) {
			cases = append(cases, m.TestCase{Name: recv + "." + fn.Name.Name, File: path})
		}
	}

	return cases
}

// IsTestName reports whether name is recognised by go test as a test function:
// "Test" followed by nothing or by a rune that is not lower case.
func IsTestName(name string) bool {
	const prefix = "Test"
	if !strings.HasPrefix(name, prefix) {
		return false
	}

	if len(name) == len(prefix) {
		return true
	}

	r, _ := utf8.DecodeRuneInString(name[len(prefix):])

	return !unicode.IsLower(r)
}

func isSuiteName(name string) bool {
	return strings.HasSuffix(name, "Suite") || strings.HasPrefix(name, "Test")
}

// ReceiverTypeName returns the base type name of a method receiver, or "" for
// plain functions.
func ReceiverTypeName(recv *ast.FieldList) string {
	if recv == nil || len(recv.List) == 0 {
		return ""
	}

	expr := recv.List[0].Type

	for {
		switch t := expr.(type) {
		case *ast.StarExpr:
			expr = t.X
		case *ast.ParenExpr:
			expr = t.X
		case *ast.IndexExpr:
			expr = t.X
		case *ast.IndexListExpr:
			expr = t.X
		case *ast.Ident:
			return t.Name
		default:
			return ""
		}
	}
}
