package domain

import (
	"context"
	"go/ast"
	"go/token"
	"go/types"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gapfill.dev/pkg/gapfill/internal/adapter"
	m "gapfill.dev/pkg/gapfill/internal/model"
)

const placeholderSource = `package calc

import (
	"io"
	str "strings"
	"time"
)

type Options struct{}

type Box[T any] struct{ v T }

func (b *Box[T]) Get() T { return b.v }

func Configure(a int, b float64, c string, d bool, e error, f *Options, g []int, h map[string]int,
	i chan int, j func(), k io.Reader, l Options, n time.Duration, o [2]int, p str.Builder, q any, r ...int) {
}

func Pair(x, y int8) (int, error) { return 0, nil }

func Identity[T any](v T) T { return v }

func init() {}

func main() {}

func hidden(c complex128, u uint) string { return "" }

func Anonymous(struct{ X int }) {}
`

func parseSource(t *testing.T, source string) (*token.FileSet, *ast.File, []m.Symbol) {
	t.Helper()

	goFile := adapter.NewLocalGoFileAdapter()
	fset := token.NewFileSet()

	file, err := goFile.Parse(context.Background(), fset, "calc.go", []byte(source))
	require.NoError(t, err)

	return fset, file, goFile.ExtractSymbols(fset, file, "calc.go")
}

func symbolNamed(t *testing.T, symbols []m.Symbol, name string) m.Symbol {
	t.Helper()

	for _, symbol := range symbols {
		if symbol.Name == name {
			return symbol
		}
	}

	t.Fatalf("symbol %s not found", name)

	return m.Symbol{}
}

func TestTestName(t *testing.T) {
	tests := []struct {
		symbol string
		want   string
	}{
		{"Add", "TestAdd"},
		{"addOne", "Test_addOne"},
		{"Widget", "TestWidget"},
		{"Widget.Render", "TestWidget_Render"},
		{"widget.render", "Test_widget_render"},
	}

	for _, tt := range tests {
		t.Run(tt.symbol, func(t *testing.T) {
			assert.Equal(t, tt.want, TestName(m.Symbol{Name: tt.symbol}))
		})
	}
}

func TestStubBuilder_Placeholders(t *testing.T) {
	_, file, symbols := parseSource(t, placeholderSource)
	builder := newStubBuilder(file, PackageBinding{})

	plan, reason := builder.plan(symbolNamed(t, symbols, "Configure"))
	require.Empty(t, reason)

	assert.Equal(t, map[string]string{"io": "io", "str": "strings", "time": "time"}, plan.imports)

	body := builder.body(plan, map[string]string{"io": "io", "str": "strings", "time": "time"})

	assert.Equal(t, []string{
		"// Arrange",
		"",
		"// Act",
		`Configure(0, 0.0, "example", false, nil, nil, nil, nil, nil, nil, *new(io.Reader), *new(Options), *new(time.Duration), *new([2]int), *new(strings.Builder), nil)`,
		"",
		"// Assert: reaching this point means the call did not panic.",
	}, body)
}

func TestStubBuilder_MultipleResults(t *testing.T) {
	_, file, symbols := parseSource(t, placeholderSource)
	builder := newStubBuilder(file, PackageBinding{})

	plan, reason := builder.plan(symbolNamed(t, symbols, "Pair"))
	require.Empty(t, reason)

	body := builder.body(plan, nil)

	assert.Contains(t, body, "got, _ := Pair(0, 0)")
	assert.Contains(t, body, "if any(got) == nil {")
	assert.Contains(t, body, `	t.Fatal("Pair returned nil")`)
}

func TestStubBuilder_UnexportedBasicTypes(t *testing.T) {
	_, file, symbols := parseSource(t, placeholderSource)
	builder := newStubBuilder(file, PackageBinding{})

	plan, reason := builder.plan(symbolNamed(t, symbols, "hidden"))
	require.Empty(t, reason)

	assert.Contains(t, builder.body(plan, nil), "got := hidden(0, 0)")
}

func TestStubBuilder_Skips(t *testing.T) {
	_, file, symbols := parseSource(t, placeholderSource)
	internal := newStubBuilder(file, PackageBinding{})
	external := newStubBuilder(file, PackageBinding{ImportPath: "example.com/calc", Alias: "example_com_calc"})

	tests := []struct {
		name    string
		builder *stubBuilder
		symbol  m.Symbol
	}{
		{"generic function", internal, symbolNamed(t, symbols, "Identity")},
		{"generic receiver", internal, symbolNamed(t, symbols, "Box.Get")},
		{"generic type", internal, symbolNamed(t, symbols, "Box")},
		{"init", internal, symbolNamed(t, symbols, "init")},
		{"main", internal, symbolNamed(t, symbols, "main")},
		{"nested", internal, m.Symbol{Name: "Options", Nested: true}},
		{"unknown", internal, m.Symbol{Name: "Vanished"}},
		{"unexported external", external, symbolNamed(t, symbols, "hidden")},
		{"unsupported external parameter", external, symbolNamed(t, symbols, "Configure")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, reason := tt.builder.plan(tt.symbol)
			assert.NotEmpty(t, reason)
		})
	}
}

func TestStubBuilder_RenamedQualifierInCompositeType(t *testing.T) {
	const source = `package grid

import str "strings"

func Fill(a, b [2]str.Builder) {}
`

	_, file, symbols := parseSource(t, source)
	builder := newStubBuilder(file, PackageBinding{})

	plan, reason := builder.plan(symbolNamed(t, symbols, "Fill"))
	require.Empty(t, reason)
	assert.Equal(t, map[string]string{"str": "strings"}, plan.imports)

	rename := map[string]string{"str": "strings"}
	want := "Fill(*new([2]strings.Builder), *new([2]strings.Builder))"

	assert.Contains(t, builder.body(plan, rename), want)
	assert.Contains(t, builder.body(plan, rename), want, "rendering twice gives the same call")

	fn := builder.decls["Fill"].(*ast.FuncDecl)
	assert.Equal(t, "[2]str.Builder", types.ExprString(fn.Type.Params.List[0].Type), "source declaration is untouched")
}

func TestStubBuilder_InlineStructParameter(t *testing.T) {
	_, file, symbols := parseSource(t, placeholderSource)
	builder := newStubBuilder(file, PackageBinding{})

	plan, reason := builder.plan(symbolNamed(t, symbols, "Anonymous"))
	require.Empty(t, reason)

	assert.Contains(t, strings.Join(builder.body(plan, nil), "\n"), "Anonymous(*new(struct{X int}))")
}

func TestStubBuilder_Type(t *testing.T) {
	_, file, symbols := parseSource(t, calcSource)

	internal := newStubBuilder(file, PackageBinding{})
	plan, reason := internal.plan(symbolNamed(t, symbols, "Widget"))
	require.Empty(t, reason)

	assert.Equal(t, []string{
		"// Arrange",
		"// Act",
		"instance := new(Widget)",
		"",
		"// Assert",
		"if instance == nil {",
		`	t.Fatal("new(Widget) returned nil")`,
		"}",
	}, internal.body(plan, nil))

	external := newStubBuilder(file, PackageBinding{ImportPath: "example.com/calc", Alias: "example_com_calc"})
	plan, reason = external.plan(symbolNamed(t, symbols, "Widget"))
	require.Empty(t, reason)

	assert.Contains(t, external.body(plan, nil), "instance := new(example_com_calc.Widget)")
}

func TestStubBuilder_Method(t *testing.T) {
	_, file, symbols := parseSource(t, calcSource)

	builder := newStubBuilder(file, PackageBinding{ImportPath: "example.com/calc", Alias: "example_com_calc"})
	plan, reason := builder.plan(symbolNamed(t, symbols, "Widget.Render"))
	require.Empty(t, reason)

	body := builder.body(plan, nil)

	assert.Equal(t, "var receiver example_com_calc.Widget", body[1])
	assert.Contains(t, body, "got := receiver.Render()")
}

func TestRenderTest(t *testing.T) {
	test := m.GeneratedTest{
		Name:   "Test_addOne",
		Symbol: "addOne",
		Body:   []string{"// Act", "", "_ = addOne(0)"},
		Status: m.StatusPending,
	}

	assert.Equal(t, "// Test_addOne is a generated baseline test for addOne.\n"+
		"func Test_addOne(t *testing.T) {\n"+
		"\t// Act\n"+
		"\n"+
		"\t_ = addOne(0)\n"+
		"}", renderTest(test))

	test.Status = m.StatusExpectedFailure

	assert.Equal(t, "// Test_addOne is a generated baseline test for addOne.\n"+
		"//gapfill:expected-failure reason=\"auto-corrected generated test\"\n"+
		"func Test_addOne(t *testing.T) {\n"+
		"\tt.Skip(\"gapfill: auto-corrected generated test\")\n"+
		"\t// Act\n"+
		"\n"+
		"\t_ = addOne(0)\n"+
		"}", renderTest(test))
}

func TestGuessPackageName(t *testing.T) {
	tests := []struct {
		importPath string
		want       string
	}{
		{"testing", "testing"},
		{"net/http", "http"},
		{"github.com/sourcegraph/go-diff", "diff"},
		{"gopkg.in/yaml.v3", "yaml"},
		{"github.com/spf13/cobra/v2", "cobra"},
		{"example.com/my-lib", "my_lib"},
	}

	for _, tt := range tests {
		t.Run(tt.importPath, func(t *testing.T) {
			assert.Equal(t, tt.want, guessPackageName(tt.importPath))
		})
	}
}
