package tuindex

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/tuindex/internal/ast"
	"github.com/jward/tuindex/internal/discover"
)

// indexFixture indexes testdata/go/<level>/src with the tree-sitter
// front-end and the embedded symbol scripts.
func indexFixture(t *testing.T, level string) (*Engine, string) {
	t.Helper()
	src, err := filepath.Abs(filepath.Join("testdata", "go", level, "src"))
	require.NoError(t, err)

	dir := t.TempDir()
	e, err := New(filepath.Join(dir, "cache"), filepath.Join(dir, "index.db"),
		WithLogger(quietLogger()), WithScriptsFS(Scripts()))
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })

	_, err = e.IndexDirectory(context.Background(), src, discover.Options{}, nil)
	require.NoError(t, err)
	return e, src
}

func TestGolden_MethodValueDispatch(t *testing.T) {
	t.Parallel()
	e, src := indexFixture(t, "level-11-method-value-dispatch")
	mainGo := filepath.Join(src, "main.go")
	typesGo := filepath.Join(src, "types.go")

	assert.Equal(t, []string{mainGo, typesGo}, e.Files())

	// c.Increment() resolves across files to the method.
	loc, ok := e.Definition(mainGo, 5, 4)
	require.True(t, ok)
	assert.Equal(t, ast.SourceLocation{File: typesGo, Line: 7, Column: 19}, loc)

	// c.count resolves to the struct field added by the Go symbol script.
	loc, ok = e.Definition(typesGo, 8, 4)
	require.True(t, ok)
	assert.Equal(t, ast.SourceLocation{File: typesGo, Line: 4, Column: 2}, loc)

	// &Counter{...} refers to the type.
	loc, ok = e.Definition(mainGo, 4, 8)
	require.True(t, ok)
	assert.Equal(t, ast.SourceLocation{File: typesGo, Line: 3, Column: 6}, loc)

	locs, err := e.Query().DefinitionAt(mainGo, 6, 9)
	require.NoError(t, err)
	require.Len(t, locs, 1)
	assert.Equal(t, "Value", locs[0].Name)
	assert.Equal(t, "method", locs[0].Kind)
	assert.Equal(t, typesGo, locs[0].File)
	assert.Equal(t, 11, locs[0].Line)

	refs, err := e.Query().ReferencesTo(locs[0].SymbolID)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, mainGo, refs[0].File)
}

func TestGolden_MultiFileInterfaces(t *testing.T) {
	t.Parallel()
	e, src := indexFixture(t, "level-08-multi-file-interfaces")
	dogGo := filepath.Join(src, "dog.go")
	ifaceGo := filepath.Join(src, "iface.go")

	defs, err := e.Query().DefinitionsByName("Animal")
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, Location{
		File: ifaceGo, Line: 3, Column: 6, Name: "Animal", Kind: "type",
		SymbolID: "type:Animal @" + ifaceGo + ":3:6",
	}, defs[0])

	page, err := e.Query().SearchSymbols("*", DefinitionFilter{Kinds: []string{"method"}}, Sort{Field: SortByName, Order: Asc}, Pagination{})
	require.NoError(t, err)
	var names []string
	for _, d := range page.Items {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"Move", "Name", "Sound"}, names)

	// &Dog{Breed: breed} inside NewDog.
	loc, ok := e.Definition(dogGo, 20, 10)
	require.True(t, ok)
	assert.Equal(t, ast.SourceLocation{File: dogGo, Line: 3, Column: 6}, loc)

	prefix := "New"
	items, err := e.Complete(dogGo, 1, 1, &prefix, 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "NewDog", items[0].Label)
	assert.Equal(t, "function in dog.go", items[0].Detail)
}
