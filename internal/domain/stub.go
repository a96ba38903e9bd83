package domain

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/types"
	"path"
	"regexp"
	"strconv"
	"strings"

	m "gapfill.dev/pkg/gapfill/internal/model"
)

const (
	expectedFailureReason    = "auto-corrected generated test"
	expectedFailureDirective = `//gapfill:expected-failure reason="` + expectedFailureReason + `"`
)

var basicPlaceholders = map[string]string{
	"int": "0", "int8": "0", "int16": "0", "int32": "0", "int64": "0",
	"uint": "0", "uint8": "0", "uint16": "0", "uint32": "0", "uint64": "0",
	"uintptr": "0", "byte": "0", "rune": "0",
	"float32": "0.0", "float64": "0.0",
	"complex64": "0", "complex128": "0",
	"string": `"example"`,
	"bool":   "false",
	"error":  "nil",
	"any":    "nil",
}

// TestName derives the generated test function name for a symbol:
// TestName for exported names, Test_name otherwise, and TestRecv_Method for
// methods.
func TestName(symbol m.Symbol) string {
	name := strings.ReplaceAll(symbol.Name, ".", "_")
	if ast.IsExported(name) {
		return "Test" + name
	}

	return "Test_" + name
}

// renderTest prints a generated test as a top-level function declaration.
func renderTest(test m.GeneratedTest) string {
	var b strings.Builder

	fmt.Fprintf(&b, "// %s is a generated baseline test for %s.\n", test.Name, test.Symbol)

	if test.Status == m.StatusExpectedFailure {
		b.WriteString(expectedFailureDirective + "\n")
	}

	fmt.Fprintf(&b, "func %s(t *testing.T) {\n", test.Name)

	if test.Status == m.StatusExpectedFailure {
		fmt.Fprintf(&b, "\tt.Skip(%q)\n", "gapfill: "+expectedFailureReason)
	}

	for _, line := range test.Body {
		if line == "" {
			b.WriteString("\n")
			continue
		}

		b.WriteString("\t" + line + "\n")
	}

	b.WriteString("}")

	return b.String()
}

// stubPlan is everything needed to render a test body once the imports it
// depends on have been bound in the test file.
type stubPlan struct {
	symbol   m.Symbol
	call     string
	receiver string
	params   []ast.Expr
	results  int
	isType   bool
	// imports maps package names used by parameter types to import paths.
	imports map[string]string
}

// stubBuilder turns source declarations into test bodies.
type stubBuilder struct {
	binding PackageBinding
	// sourceImports maps names visible in the source file to import paths.
	sourceImports map[string]string
	decls         map[string]ast.Node
}

func newStubBuilder(source *ast.File, binding PackageBinding) *stubBuilder {
	b := &stubBuilder{
		binding:       binding,
		sourceImports: map[string]string{},
		decls:         map[string]ast.Node{},
	}

	for _, spec := range source.Imports {
		importPath, err := strconv.Unquote(spec.Path.Value)
		if err != nil {
			continue
		}

		name := guessPackageName(importPath)
		if spec.Name != nil {
			name = spec.Name.Name
		}

		if name != "_" && name != "." {
			b.sourceImports[name] = importPath
		}
	}

	for _, decl := range source.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			name := d.Name.Name
			if recv := receiverName(d); recv != "" {
				name = recv + "." + name
			}

			b.decls[name] = d
		case *ast.GenDecl:
			for _, spec := range d.Specs {
				if ts, ok := spec.(*ast.TypeSpec); ok {
					b.decls[ts.Name.Name] = ts
				}
			}
		}
	}

	return b
}

// plan validates that a symbol can get a stub. A non-empty reason explains a skip.
func (b *stubBuilder) plan(symbol m.Symbol) (stubPlan, string) {
	if symbol.Nested {
		return stubPlan{}, "nested declaration"
	}

	switch decl := b.decls[symbol.Name].(type) {
	case *ast.FuncDecl:
		return b.planFunc(symbol, decl)
	case *ast.TypeSpec:
		return b.planType(symbol, decl)
	default:
		return stubPlan{}, "declaration not found"
	}
}

func (b *stubBuilder) planFunc(symbol m.Symbol, fn *ast.FuncDecl) (stubPlan, string) {
	name := fn.Name.Name

	switch {
	case name == "_":
		return stubPlan{}, "blank function"
	case fn.Recv == nil && (name == "init" || name == "main"):
		return stubPlan{}, "entry point"
	case fn.Type.TypeParams != nil && len(fn.Type.TypeParams.List) > 0:
		return stubPlan{}, "generic function"
	}

	plan := stubPlan{symbol: symbol, imports: map[string]string{}}

	if fn.Recv != nil {
		recv := receiverName(fn)
		if recv == "" || genericReceiver(fn.Recv) {
			return stubPlan{}, "generic receiver"
		}

		if b.binding.External() && (!ast.IsExported(recv) || !ast.IsExported(name)) {
			return stubPlan{}, "unexported from external test package"
		}

		plan.receiver = b.binding.Qualify(recv)
		plan.call = "receiver." + name
	} else {
		if b.binding.External() && !ast.IsExported(name) {
			return stubPlan{}, "unexported from external test package"
		}

		plan.call = b.binding.Qualify(name)
	}

	for _, field := range fn.Type.Params.List {
		if _, variadic := field.Type.(*ast.Ellipsis); variadic {
			continue
		}

		_, needs, ok := b.placeholder(field.Type, nil)
		if !ok {
			return stubPlan{}, "unsupported parameter type " + types.ExprString(field.Type)
		}

		for _, pkg := range needs {
			plan.imports[pkg] = b.sourceImports[pkg]
		}

		for range max(len(field.Names), 1) {
			plan.params = append(plan.params, field.Type)
		}
	}

	if fn.Type.Results != nil {
		for _, field := range fn.Type.Results.List {
			plan.results += max(len(field.Names), 1)
		}
	}

	return plan, ""
}

func (b *stubBuilder) planType(symbol m.Symbol, ts *ast.TypeSpec) (stubPlan, string) {
	switch {
	case ts.Name.Name == "_":
		return stubPlan{}, "blank type"
	case ts.TypeParams != nil && len(ts.TypeParams.List) > 0:
		return stubPlan{}, "generic type"
	case b.binding.External() && !ast.IsExported(ts.Name.Name):
		return stubPlan{}, "unexported from external test package"
	}

	return stubPlan{symbol: symbol, call: b.binding.Qualify(ts.Name.Name), isType: true}, ""
}

// body renders the Arrange, Act and Assert sections. rename maps source
// package names to the names bound in the test file.
func (b *stubBuilder) body(plan stubPlan, rename map[string]string) []string {
	if plan.isType {
		return []string{
			"// Arrange",
			"// Act",
			"instance := new(" + plan.call + ")",
			"",
			"// Assert",
			"if instance == nil {",
			fmt.Sprintf("\tt.Fatal(%q)", "new("+plan.call+") returned nil"),
			"}",
		}
	}

	lines := []string{"// Arrange"}
	if plan.receiver != "" {
		lines = append(lines, "var receiver "+plan.receiver)
	}

	args := make([]string, 0, len(plan.params))

	for _, param := range plan.params {
		arg, _, _ := b.placeholder(param, rename)
		args = append(args, arg)
	}

	call := plan.call + "(" + strings.Join(args, ", ") + ")"

	lines = append(lines, "", "// Act")

	if plan.results == 0 {
		return append(lines, call, "", "// Assert: reaching this point means the call did not panic.")
	}

	lines = append(lines,
		"got"+strings.Repeat(", _", plan.results-1)+" := "+call,
		"",
		"// Assert",
		"if any(got) == nil {",
		fmt.Sprintf("\tt.Fatal(%q)", plan.symbol.Name+" returned nil"),
		"}",
	)

	return lines
}

// placeholder returns a zero-like argument for a parameter type together
// with the package names it references. ok is false when no valid
// expression can be written from the test package.
func (b *stubBuilder) placeholder(expr ast.Expr, rename map[string]string) (string, []string, bool) {
	switch t := expr.(type) {
	case *ast.Ident:
		if literal, ok := basicPlaceholders[t.Name]; ok {
			return literal, nil, true
		}

		if b.binding.External() && !ast.IsExported(t.Name) {
			return "", nil, false
		}

		return "*new(" + b.binding.Qualify(t.Name) + ")", nil, true

	case *ast.StarExpr, *ast.MapType, *ast.ChanType, *ast.FuncType, *ast.InterfaceType:
		return "nil", nil, true

	case *ast.ArrayType:
		if t.Len == nil {
			return "nil", nil, true
		}

	case *ast.SelectorExpr:
		pkg, ok := t.X.(*ast.Ident)
		if !ok || b.sourceImports[pkg.Name] == "" {
			return "", nil, false
		}

		return "*new(" + boundName(pkg.Name, rename) + "." + t.Sel.Name + ")", []string{pkg.Name}, true
	}

	if b.binding.External() {
		return "", nil, false
	}

	// Rename qualifiers on a copy; the declaration is shared by every stub.
	typeExpr, err := parser.ParseExpr(types.ExprString(expr))
	if err != nil {
		return "", nil, false
	}

	var (
		needs []string
		ok    = true
	)

	ast.Inspect(typeExpr, func(n ast.Node) bool {
		sel, isSel := n.(*ast.SelectorExpr)
		if !isSel {
			return true
		}

		if pkg, isIdent := sel.X.(*ast.Ident); isIdent {
			if b.sourceImports[pkg.Name] == "" {
				ok = false
			}

			needs = append(needs, pkg.Name)
			pkg.Name = boundName(pkg.Name, rename)
		}

		return false
	})

	if !ok {
		return "", nil, false
	}

	return "*new(" + types.ExprString(typeExpr) + ")", needs, true
}

func boundName(name string, rename map[string]string) string {
	if bound, ok := rename[name]; ok && bound != "" {
		return bound
	}

	return name
}

func receiverName(fn *ast.FuncDecl) string {
	if fn.Recv == nil || len(fn.Recv.List) == 0 {
		return ""
	}

	expr := fn.Recv.List[0].Type
	if star, ok := expr.(*ast.StarExpr); ok {
		expr = star.X
	}

	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.IndexExpr:
		if ident, ok := t.X.(*ast.Ident); ok {
			return ident.Name
		}
	case *ast.IndexListExpr:
		if ident, ok := t.X.(*ast.Ident); ok {
			return ident.Name
		}
	}

	return ""
}

func genericReceiver(recv *ast.FieldList) bool {
	expr := recv.List[0].Type
	if star, ok := expr.(*ast.StarExpr); ok {
		expr = star.X
	}

	switch expr.(type) {
	case *ast.IndexExpr, *ast.IndexListExpr:
		return true
	default:
		return false
	}
}

var majorVersion = regexp.MustCompile(`^v[0-9]+$`)

// guessPackageName approximates the name an unaliased import binds, which is
// conventionally the last path element without version or go- decorations.
func guessPackageName(importPath string) string {
	elems := strings.Split(importPath, "/")
	name := elems[len(elems)-1]

	if majorVersion.MatchString(name) && len(elems) > 1 {
		name = elems[len(elems)-2]
	}

	name = strings.TrimPrefix(name, "go-")
	if dot := strings.Index(name, "."); dot > 0 {
		name = name[:dot]
	}

	return strings.ReplaceAll(path.Base(name), "-", "_")
}
