package extract

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/ipfls/internal/ast"
	"github.com/jward/ipfls/internal/logging"
	"github.com/jward/ipfls/internal/parser"
	"github.com/jward/ipfls/internal/reference"
	"github.com/jward/ipfls/internal/span"
)

const declarations = `// The answer
static Constant kAnswer = 42
Structure Pair
	Variable first
	String second
EndStructure
Picture Logo
End
Menu "Tools"
	Submenu "Sub"
		"Go"
	End
End
Macro MakePlot(w, color)
	Variable n
EndMacro
static Function/S Describe(Wave/Z w, [Variable verbose]) : FitFunc
	Variable i
	if (i)
		String s
	endif
	for (Variable v : {1})
	endfor
	Make/O tmp
End
Function NoArgs()
End
Function OnlyOpt([a])
End
`

func parse(t *testing.T, src string) *ast.Program {
	t.Helper()
	prog, err := parser.Parse(src, parser.Options{})
	require.NoError(t, err)
	return prog
}

func names(symbols []Symbol) []string {
	out := make([]string, len(symbols))
	for i, s := range symbols {
		out[i] = s.Name
	}
	return out
}

func TestExtract_Book(t *testing.T) {
	t.Parallel()

	book, _ := Extract(parse(t, declarations))
	assert.Equal(t, []string{"describe", "kanswer", "logo", "makeplot", "noargs", "onlyopt", "pair"}, book.Keys())

	tests := []struct {
		id        string
		category  reference.Category
		signature string
		static    bool
	}{
		{"kanswer", reference.Constant, "kAnswer", true},
		{"pair", reference.Structure, "Pair", false},
		{"logo", reference.Picture, "Logo", false},
		{"makeplot", reference.Macro, "MakePlot(w, color)", false},
		{"describe", reference.Function, "Describe(Wave/Z w, [Variable verbose]): FitFunc", true},
		{"noargs", reference.Function, "NoArgs()", false},
		{"onlyopt", reference.Function, "OnlyOpt([a])", false},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			t.Parallel()
			it, ok := book[tt.id]
			require.True(t, ok)
			assert.Equal(t, tt.category, it.Category)
			assert.Equal(t, tt.signature, it.Signature)
			assert.Equal(t, tt.static, it.IsStatic)
			assert.NotNil(t, it.Location)
		})
	}

	k := book["kanswer"]
	assert.Equal(t, "The answer", k.Description)
	assert.Equal(t, span.Position{Line: 1, Character: 0}, k.Location.Start)
}

func TestExtract_Outline(t *testing.T) {
	t.Parallel()

	_, symbols := Extract(parse(t, declarations))
	assert.Equal(t, []string{"kAnswer", "Pair", "Logo", "Tools", "MakePlot", "Describe", "NoArgs", "OnlyOpt"}, names(symbols))

	pair := symbols[1]
	assert.Equal(t, reference.SymbolStruct, pair.Kind)
	assert.Equal(t, []string{"first", "second"}, names(pair.Children))
	assert.Equal(t, reference.SymbolField, pair.Children[0].Kind)

	assert.Equal(t, reference.SymbolObject, symbols[2].Kind)

	menu := symbols[3]
	assert.Equal(t, reference.SymbolEvent, menu.Kind)
	require.Len(t, menu.Children, 1)
	assert.Equal(t, "Sub", menu.Children[0].Name)

	assert.Equal(t, reference.SymbolMethod, symbols[4].Kind)
	assert.Equal(t, []string{"n"}, names(symbols[4].Children))

	describe := symbols[5]
	assert.Equal(t, reference.SymbolFunction, describe.Kind)
	assert.Equal(t, []string{"w", "verbose", "i", "s", "v"}, names(describe.Children))
	for _, c := range describe.Children {
		assert.Equal(t, reference.SymbolVariable, c.Kind)
	}
	assert.Equal(t, 16, describe.Range.Start.Line)
	assert.Equal(t, 16, describe.SelectionRange.Start.Line)
	assert.Empty(t, symbols[6].Children)
}

func TestExtract_ReparseReplaces(t *testing.T) {
	t.Parallel()

	first, _ := Extract(parse(t, "Function Foo()\nEnd\n"))
	second, _ := Extract(parse(t, "Function Bar()\nEnd\n"))
	assert.Contains(t, first, "foo")
	assert.NotContains(t, second, "foo")
	assert.Contains(t, second, "bar")
}

func TestSignature(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  string
		want string
	}{
		{"bare params", "Function F(a, b)\nEnd\n", "F(a, b)"},
		{"typed with optional", "Function F(Variable a, String s, [Variable opt, String o2])\nEnd\n", "F(Variable a, String s, [Variable opt, String o2])"},
		{"only optional", "Function F([opt])\nEnd\n", "F([opt])"},
		{"flags and subtype", "Function/WAVE F(WAVE/T/Z w) : ButtonControl\nEnd\n", "F(WAVE/T/Z w): ButtonControl"},
		{"macro", "Macro M()\nEnd\n", "M()"},
		{"window macro subtype", "Window W() : Graph\nEndMacro\n", "W(): Graph"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			prog := parse(t, tt.src)
			assert.Equal(t, tt.want, Signature(prog.Body[0]))
		})
	}

	empty := &ast.FunctionDeclaration{
		ID:        &ast.Identifier{Name: "G"},
		Params:    []ast.Node{&ast.Identifier{Name: "a"}},
		OptParams: []ast.Node{},
	}
	assert.Equal(t, "G(a, [])", Signature(empty))
	assert.Equal(t, "", Signature(&ast.EmptyStatement{}))
}

func TestExtract_MissingLocationIsLogged(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := logging.NewLogger(&buf, slog.LevelDebug, logging.FormatText)
	prog := &ast.Program{Body: []ast.Node{
		&ast.ConstantDeclaration{ID: &ast.Identifier{Name: "kLost"}, Kind: "constant", Value: "1"},
	}}

	book, symbols := Extract(prog, WithLogger(logger))
	assert.Contains(t, book, "klost")
	assert.Nil(t, book["klost"].Location)
	assert.Empty(t, symbols)
	assert.Contains(t, buf.String(), "missing location")
}

const localsSource = `Function Outer(Variable a, [String opt])
	Variable before = 1
	if (a)
		Variable nested
	endif
	Make/O/N=3 wv, wv2 = p
	Variable after
End
Function Other()
	Variable elsewhere
End
`

func TestLocals(t *testing.T) {
	t.Parallel()

	prog := parse(t, localsSource)

	book := Locals(prog, span.Position{Line: 6, Character: 1})
	assert.Equal(t, []string{"a", "before", "nested", "opt", "wv", "wv2"}, book.Keys())
	wv2 := book["wv2"]
	assert.Equal(t, reference.Variable, wv2.Category)
	assert.Equal(t, "wv2", wv2.Signature)
	assert.NotNil(t, wv2.Location)

	other := Locals(prog, span.Position{Line: 10, Character: 0})
	assert.Equal(t, []string{"elsewhere"}, other.Keys())

	assert.Empty(t, Locals(prog, span.Position{Line: 9, Character: 0}))
	assert.Empty(t, Locals(prog, span.Position{Line: 30, Character: 0}))
	assert.Empty(t, Locals(nil, span.Position{}))
}
