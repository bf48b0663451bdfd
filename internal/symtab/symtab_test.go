package symtab

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/tuindex/internal/ast"
)

func at(file string, line, col int) ast.SourceLocation {
	return ast.SourceLocation{File: file, Line: line, Column: col}
}

func docWith(file string, syms ...ast.Symbol) *ast.Document {
	return &ast.Document{
		Root:    &ast.Node{Kind: "file", Name: file, Loc: at(file, 1, 1)},
		Symbols: syms,
	}
}

func TestAddDocument_Indexes(t *testing.T) {
	t.Parallel()
	foo := ast.NewDefinition("foo", ast.KindFunction, at("a.go", 1, 5))
	bar := ast.NewDefinition("bar", ast.KindVariable, at("a.go", 3, 2))
	fooB := ast.NewDefinition("foo", ast.KindType, at("b.go", 2, 6))

	tab := FromDocuments(docWith("a.go", foo, bar), docWith("b.go", fooB))

	assert.Equal(t, 3, tab.Len())
	assert.Equal(t, []ast.Symbol{foo, fooB}, tab.SymbolsByName("foo"))
	assert.Equal(t, []ast.Symbol{foo, bar}, tab.SymbolsInFile("a.go"))
	assert.Equal(t, []string{"a.go", "b.go"}, tab.Files())
	assert.Nil(t, tab.SymbolsByName("missing"))

	got, ok := tab.SymbolByID("function:foo @a.go:1:5")
	require.True(t, ok)
	assert.Equal(t, foo, got)
}

func TestAddDocument_FirstWriterWins(t *testing.T) {
	t.Parallel()
	first := ast.NewDefinition("foo", ast.KindFunction, at("a.go", 1, 5))
	second := first
	second.RefersTo = "something-else"

	tab := New()
	tab.AddDocument(docWith("a.go", first))
	tab.AddDocument(docWith("a.go", second))

	assert.Equal(t, 1, tab.Len())
	got, _ := tab.SymbolByID(first.ID())
	assert.Empty(t, got.RefersTo)
	assert.Len(t, tab.SymbolsByName("foo"), 1)
	assert.Len(t, tab.SymbolsInFile("a.go"), 1)
}

func TestCombineWith(t *testing.T) {
	t.Parallel()
	foo := ast.NewDefinition("foo", ast.KindFunction, at("a.go", 1, 5))
	fooOther := foo
	fooOther.RefersTo = "other"
	baz := ast.NewDefinition("baz", ast.KindFunction, at("c.go", 4, 1))

	left := FromDocuments(docWith("a.go", foo))
	right := FromDocuments(docWith("a.go", fooOther), docWith("c.go", baz))

	combined := left.CombineWith(right)
	assert.Equal(t, 2, combined.Len())
	got, _ := combined.SymbolByID(foo.ID())
	assert.Empty(t, got.RefersTo, "original table wins collisions")
	assert.Equal(t, []ast.Symbol{foo, baz}, combined.AllSymbols())

	// inputs untouched
	assert.Equal(t, 1, left.Len())
	assert.Equal(t, 2, right.Len())
}

func TestNilDocumentIgnored(t *testing.T) {
	t.Parallel()
	tab := New()
	tab.AddDocument(nil)
	assert.Zero(t, tab.Len())
	assert.Empty(t, tab.AllSymbols())
}
